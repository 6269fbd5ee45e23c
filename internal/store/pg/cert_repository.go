package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/ideal-world/bios/internal/credential"
)

// CertRepository implements credential.CertRepository against the
// `rbum_cert` table plus `rbum_cert_sk_history` (spec.md §4.2's
// Repeatable=false enforcement, "requires a history table when
// false").
type CertRepository struct {
	DB dbresolver.DB
}

const certSelect = `
	SELECT id, item_id, cert_conf_id, ak, sk, kind, supplier, status, coexist_slot, valid_start, valid_end, created_at, updated_at
	FROM rbum_cert`

func (r *CertRepository) FindByAkConf(ctx context.Context, ak, certConfID string) (*credential.Cert, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, certSelect+` WHERE ak = $1 AND cert_conf_id = $2`, ak, certConfID)

	cert, err := scanCert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return cert, err
}

func (r *CertRepository) FindByID(ctx context.Context, id string) (*credential.Cert, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, certSelect+` WHERE id = $1`, id)

	cert, err := scanCert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return cert, err
}

func (r *CertRepository) CountLive(ctx context.Context, itemID, certConfID string) (int, error) {
	q := conn(ctx, r.DB)

	var count int

	err := q.QueryRowContext(ctx, `
		SELECT count(*) FROM rbum_cert WHERE item_id = $1 AND cert_conf_id = $2 AND status = $3`,
		itemID, certConfID, credential.StatusEnabled).Scan(&count)

	return count, err
}

func (r *CertRepository) Insert(ctx context.Context, cert *credential.Cert) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO rbum_cert
			(id, item_id, cert_conf_id, ak, sk, kind, supplier, status, coexist_slot, valid_start, valid_end, created_at, updated_at)
		VALUES
			($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		cert.Id, cert.ItemId, cert.CertConfId, cert.Ak, cert.Sk, cert.Kind, cert.Supplier, cert.Status,
		cert.CoexistSlot, nullTime(cert.ValidStart), nullTime(cert.ValidEnd), cert.CreatedAt, cert.UpdatedAt,
	)

	return err
}

func (r *CertRepository) UpdateSk(ctx context.Context, id, newSkOrHash string, updatedAt int64) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		UPDATE rbum_cert SET sk = $1, updated_at = $2 WHERE id = $3`,
		newSkOrHash, time.Unix(updatedAt, 0).UTC(), id,
	)

	return err
}

func (r *CertRepository) RecordSkHistory(ctx context.Context, certID, skOrHash string) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO rbum_cert_sk_history (cert_id, sk, created_at) VALUES ($1, $2, now())`,
		certID, skOrHash,
	)

	return err
}

func (r *CertRepository) SkInHistory(ctx context.Context, certID, skOrHash string) (bool, error) {
	q := conn(ctx, r.DB)

	var count int

	err := q.QueryRowContext(ctx, `
		SELECT count(*) FROM rbum_cert_sk_history WHERE cert_id = $1 AND sk = $2`, certID, skOrHash).Scan(&count)

	return count > 0, err
}

func (r *CertRepository) ResetFailures(ctx context.Context, certID string) error {
	// Failure counters live in the Redis fail:{conf}:{ak} keyspace
	// (credential.Locker), not in Postgres; this persisted side only
	// tracks the credential row itself, so there is nothing to reset
	// here beyond bumping updated_at for audit visibility.
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `UPDATE rbum_cert SET updated_at = now() WHERE id = $1`, certID)

	return err
}

func (r *CertRepository) Disable(ctx context.Context, id string) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		UPDATE rbum_cert SET status = $1, updated_at = now() WHERE id = $2`, credential.StatusDisabled, id)

	return err
}

func scanCert(s rowScanner) (*credential.Cert, error) {
	var c credential.Cert

	var validStart, validEnd sql.NullTime

	err := s.Scan(&c.Id, &c.ItemId, &c.CertConfId, &c.Ak, &c.Sk, &c.Kind, &c.Supplier, &c.Status,
		&c.CoexistSlot, &validStart, &validEnd, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.ValidStart = validStart.Time
	c.ValidEnd = validEnd.Time

	return &c, nil
}
