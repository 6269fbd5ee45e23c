package credential

import (
	"context"
	"time"

	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/crypto/sm"
	"github.com/ideal-world/bios/internal/obs/metrics"
	"github.com/ideal-world/bios/internal/obs/mlog"
)

// Verifier runs the six-step verification algorithm of spec.md §4.2.
type Verifier struct {
	Confs  ConfRepository
	Certs  CertRepository
	Locker Locker
	Audit  AuditSink
	Clock  func() time.Time
}

// NewVerifier builds a Verifier with the real clock.
func NewVerifier(confs ConfRepository, certs CertRepository, locker Locker, audit AuditSink) *Verifier {
	return &Verifier{Confs: confs, Certs: certs, Locker: locker, Audit: audit, Clock: time.Now}
}

// Verify implements spec.md §4.2's six-step algorithm. presentedSk is
// the plaintext sk (password, signature, or vcode) the caller
// submitted; it is never logged.
func (v *Verifier) Verify(ctx context.Context, kind Kind, supplier, relItemScope, ak, presentedSk string) (*Cert, error) {
	logger := mlog.NewLoggerFromContext(ctx)

	// Step 1: locate the CertConf.
	conf, err := v.Confs.FindByKindSupplierScope(ctx, kind, supplier, relItemScope)
	if err != nil {
		return nil, err
	}

	if conf == nil {
		return nil, bioserr.NotFoundError{Code: "404-iam-certconf-not-found", Message: "credential configuration not found"}
	}

	// Step 2: locate the Cert.
	cert, err := v.Certs.FindByAkConf(ctx, ak, conf.Id)
	if err != nil {
		return nil, err
	}

	if cert == nil {
		return nil, bioserr.UnauthorizedError{Code: "401-iam-cert-not-found"}
	}

	now := v.Clock()

	if !cert.Valid(now) {
		return nil, bioserr.UnauthorizedError{Code: "401-iam-cert-invalid"}
	}

	// Step 3: lock-policy check.
	if conf.HasLockPolicy() {
		locked, err := v.Locker.IsLocked(ctx, conf.Id, ak)
		if err != nil {
			return nil, err
		}

		if locked {
			metrics.CredentialLockEvents.WithLabelValues(conf.Id, "already_locked").Inc()

			return nil, bioserr.LockedError{Code: "423-iam-cert-locked", Message: "credential locked, retry later"}
		}
	}

	// Step 4: compare sk.
	ok, err := v.compareSk(ctx, conf, cert, presentedSk)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, v.onFailure(ctx, conf, ak)
	}

	// Step 5: success path.
	if conf.HasLockPolicy() {
		if err := v.Locker.ResetFailure(ctx, conf.Id, ak); err != nil {
			return nil, err
		}
	}

	if err := v.Certs.ResetFailures(ctx, cert.Id); err != nil {
		return nil, err
	}

	if v.Audit != nil {
		if err := v.Audit.Append(ctx, "LoginSuccess", cert.ItemId, "login", ak); err != nil {
			logger.Warnf("credential: failed to append LoginSuccess audit record: %v", err)
		}
	}

	return cert, nil
}

// compareSk dispatches on the conf's sk_dynamic/sk_encrypted flags.
func (v *Verifier) compareSk(ctx context.Context, conf *CertConf, cert *Cert, presentedSk string) (bool, error) {
	if conf.SkDynamic {
		code, found, err := v.Locker.ConsumeVCode(ctx, conf.Id, cert.Ak)
		if err != nil {
			return false, err
		}

		return found && code == presentedSk, nil
	}

	return matchesSk(conf, cert.Sk, presentedSk), nil
}

// matchesSk compares a presented secret against the stored one for
// conf's static (non-dynamic) kinds, hashing the candidate first when
// the conf stores sk encrypted.
func matchesSk(conf *CertConf, storedSk, presentedSk string) bool {
	if conf.SkEncrypted {
		return sm.HashHex([]byte(presentedSk)) == storedSk
	}

	return presentedSk == storedSk
}

// onFailure implements step 6: increment the sliding-window failure
// counter, and set the lock marker once the budget is exhausted
// (P4). It always returns a generic 401 regardless of whether a lock
// was newly set, to avoid leaking which attempt tripped the lock.
func (v *Verifier) onFailure(ctx context.Context, conf *CertConf, ak string) error {
	if !conf.HasLockPolicy() {
		return bioserr.UnauthorizedError{Code: "401-iam-cert-mismatch"}
	}

	count, err := v.Locker.IncrFailure(ctx, conf.Id, ak, conf.SkLockCycleSec)
	if err != nil {
		return err
	}

	if count >= conf.SkLockErrTimes {
		if err := v.Locker.Lock(ctx, conf.Id, ak, conf.SkLockDurationSec); err != nil {
			return err
		}

		metrics.CredentialLockEvents.WithLabelValues(conf.Id, "budget_exhausted").Inc()
	}

	return bioserr.UnauthorizedError{Code: "401-iam-cert-mismatch"}
}
