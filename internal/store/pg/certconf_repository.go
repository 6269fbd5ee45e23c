package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/core/validate"
	"github.com/ideal-world/bios/internal/credential"
)

// CertConfRepository implements credential.ConfRepository against the
// `rbum_cert_conf` table (spec.md §3's CertConf, §4.2's exhaustive
// option list).
type CertConfRepository struct {
	DB dbresolver.DB
}

func (r *CertConfRepository) FindByKindSupplierScope(ctx context.Context, kind credential.Kind, supplier, relItemScope string) (*credential.CertConf, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, certConfSelect+`
		WHERE kind = $1 AND supplier = $2 AND own_paths = $3`, kind, supplier, relItemScope)

	conf, err := scanCertConf(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return conf, err
}

func (r *CertConfRepository) FindByID(ctx context.Context, id string) (*credential.CertConf, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, certConfSelect+` WHERE id = $1`, id)

	conf, err := scanCertConf(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return conf, err
}

func (r *CertConfRepository) Insert(ctx context.Context, conf *credential.CertConf) error {
	if err := conf.Validate(); err != nil {
		return err
	}

	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO rbum_cert_conf
			(id, kind, supplier, own_paths, ak_rule, sk_rule, len_min, len_max, need_num, need_uppercase,
			 need_lowercase, need_spec_char, sk_need, sk_dynamic, sk_encrypted, repeatable,
			 sk_lock_cycle_sec, sk_lock_err_times, sk_lock_duration_sec, expire_sec, coexist_num, rest_by_kinds)
		VALUES
			($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		conf.Id, conf.Kind, conf.Supplier, conf.OwnPaths, conf.AkRule, conf.SkRule,
		conf.LenMin, conf.LenMax, conf.NeedNum, conf.NeedUppercase, conf.NeedLowercase, conf.NeedSpecChar,
		conf.SkNeed, conf.SkDynamic, conf.SkEncrypted, conf.Repeatable,
		conf.SkLockCycleSec, conf.SkLockErrTimes, conf.SkLockDurationSec, conf.ExpireSec, conf.CoexistNum,
		joinKinds(conf.RestByKinds),
	)

	return err
}

func (r *CertConfRepository) Update(ctx context.Context, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}

	for _, col := range []string{"ak_rule", "sk_rule"} {
		val, ok := patch[col]
		if !ok {
			continue
		}

		pattern, _ := val.(string)
		if _, err := validate.MatchRule(pattern, ""); err != nil {
			return bioserr.ValidationError{Code: "400-iam-certconf-bad-" + col, Message: col + " is not a valid pattern: " + err.Error()}
		}
	}

	q := conn(ctx, r.DB)

	sets := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch)+1)
	i := 1

	for col, val := range patch {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}

	args = append(args, id)

	_, err := q.ExecContext(ctx, fmt.Sprintf("UPDATE rbum_cert_conf SET %s WHERE id = $%d", strings.Join(sets, ", "), i), args...)

	return err
}

const certConfSelect = `
	SELECT id, kind, supplier, own_paths, ak_rule, sk_rule, len_min, len_max, need_num, need_uppercase,
	       need_lowercase, need_spec_char, sk_need, sk_dynamic, sk_encrypted, repeatable,
	       sk_lock_cycle_sec, sk_lock_err_times, sk_lock_duration_sec, expire_sec, coexist_num, rest_by_kinds
	FROM rbum_cert_conf`

func scanCertConf(s rowScanner) (*credential.CertConf, error) {
	var c credential.CertConf

	var restByKinds string

	err := s.Scan(&c.Id, &c.Kind, &c.Supplier, &c.OwnPaths, &c.AkRule, &c.SkRule, &c.LenMin, &c.LenMax,
		&c.NeedNum, &c.NeedUppercase, &c.NeedLowercase, &c.NeedSpecChar,
		&c.SkNeed, &c.SkDynamic, &c.SkEncrypted, &c.Repeatable,
		&c.SkLockCycleSec, &c.SkLockErrTimes, &c.SkLockDurationSec, &c.ExpireSec, &c.CoexistNum, &restByKinds)
	if err != nil {
		return nil, err
	}

	c.RestByKinds = splitKinds(restByKinds)

	return &c, nil
}

func joinKinds(kinds []credential.Kind) string {
	strs := make([]string, len(kinds))
	for i, k := range kinds {
		strs[i] = string(k)
	}

	return strings.Join(strs, ",")
}

func splitKinds(s string) []credential.Kind {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	kinds := make([]credential.Kind, len(parts))

	for i, p := range parts {
		kinds[i] = credential.Kind(p)
	}

	return kinds
}
