package credential

import (
	"context"
	"time"

	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/core/validate"
	"github.com/ideal-world/bios/internal/crypto/sm"
)

// Rotator implements sk rotation: the old-sk re-verification, the
// policy-enforced shape check, the Repeatable=false history guard, and
// the coexist-cap check on new Cert creation (spec.md §4.2).
type Rotator struct {
	Confs  ConfRepository
	Certs  CertRepository
	Locker Locker
	Clock  func() time.Time
}

// NewRotator builds a Rotator with the real clock.
func NewRotator(confs ConfRepository, certs CertRepository, locker Locker) *Rotator {
	return &Rotator{Confs: confs, Certs: certs, Locker: locker, Clock: time.Now}
}

// ModifySk rotates the sk of an existing Cert. Unless the cert's kind
// is listed in the conf's RestByKinds (reset-capable kinds, e.g. a
// vcode-driven recovery flow), oldSk must match the currently stored
// secret before the rotation is accepted. The new sk is checked
// against the conf's shape policy, and when the conf forbids repeats
// (Repeatable=false) must not appear in the cert's sk-history table.
// When the cert's kind is reset-capable, a successful rotation also
// clears its failure counters (spec.md §4.2, RestByKinds).
func (r *Rotator) ModifySk(ctx context.Context, certID, oldSk, newSk string) error {
	cert, err := r.Certs.FindByID(ctx, certID)
	if err != nil {
		return err
	}

	if cert == nil {
		return bioserr.NotFoundError{Code: "404-iam-cert-not-found", Message: "credential not found"}
	}

	conf, err := r.Confs.FindByID(ctx, cert.CertConfId)
	if err != nil {
		return err
	}

	if conf == nil {
		return bioserr.NotFoundError{Code: "404-iam-certconf-not-found", Message: "credential configuration not found"}
	}

	resetCapable := conf.ResetsFailuresOn(cert.Kind)

	if !resetCapable && !matchesSk(conf, cert.Sk, oldSk) {
		return bioserr.UnauthorizedError{Code: "401-iam-cert-mismatch", Message: "current credential secret does not match"}
	}

	if err := validate.CheckPassword(conf.PasswordPolicy(), newSk); err != nil {
		return err
	}

	if ok, err := validate.MatchRule(conf.SkRule, newSk); err != nil {
		return err
	} else if !ok {
		return bioserr.ValidationError{Code: "400-iam-cert-sk-rule-mismatch", Message: "new credential secret does not match the configured sk_rule"}
	}

	stored := newSk
	if conf.SkEncrypted {
		stored = sm.HashHex([]byte(newSk))
	}

	if !conf.Repeatable {
		inHistory, err := r.Certs.SkInHistory(ctx, certID, stored)
		if err != nil {
			return err
		}

		if inHistory {
			return bioserr.ValidationError{Code: "400-iam-cert-sk-reused", Message: "new credential secret must not repeat a previous one"}
		}
	}

	now := r.Clock()

	if err := r.Certs.UpdateSk(ctx, certID, stored, now.Unix()); err != nil {
		return err
	}

	if resetCapable {
		if err := r.Certs.ResetFailures(ctx, certID); err != nil {
			return err
		}

		if conf.HasLockPolicy() && r.Locker != nil {
			if err := r.Locker.ResetFailure(ctx, conf.Id, cert.Ak); err != nil {
				return err
			}
		}
	}

	return r.Certs.RecordSkHistory(ctx, certID, stored)
}

// NewCert validates the coexist cap (at most CoexistNum live certs per
// item+conf) and inserts a fresh Cert, disabling the oldest live cert
// first when the cap would otherwise be exceeded (spec.md §4.2,
// "coexist cap").
func (r *Rotator) NewCert(ctx context.Context, conf *CertConf, itemID, ak, sk string, validStart, validEnd time.Time, oldestLive func(ctx context.Context, itemID, confID string) (*Cert, error)) (*Cert, error) {
	if ok, err := validate.MatchRule(conf.AkRule, ak); err != nil {
		return nil, err
	} else if !ok {
		return nil, bioserr.ValidationError{Code: "400-iam-cert-ak-rule-mismatch", Message: "credential ak does not match the configured ak_rule"}
	}

	if conf.SkNeed {
		if err := validate.CheckPassword(conf.PasswordPolicy(), sk); err != nil {
			return nil, err
		}

		if ok, err := validate.MatchRule(conf.SkRule, sk); err != nil {
			return nil, err
		} else if !ok {
			return nil, bioserr.ValidationError{Code: "400-iam-cert-sk-rule-mismatch", Message: "credential secret does not match the configured sk_rule"}
		}
	}

	if conf.CoexistNum > 0 {
		live, err := r.Certs.CountLive(ctx, itemID, conf.Id)
		if err != nil {
			return nil, err
		}

		if live >= conf.CoexistNum {
			oldest, err := oldestLive(ctx, itemID, conf.Id)
			if err != nil {
				return nil, err
			}

			if oldest != nil {
				if err := r.Certs.Disable(ctx, oldest.Id); err != nil {
					return nil, err
				}
			}
		}
	}

	stored := sk
	if conf.SkEncrypted {
		stored = sm.HashHex([]byte(sk))
	}

	now := r.Clock()

	cert := &Cert{
		ItemId:     itemID,
		CertConfId: conf.Id,
		Ak:         ak,
		Sk:         stored,
		Kind:       conf.Kind,
		Supplier:   conf.Supplier,
		Status:     StatusEnabled,
		ValidStart: validStart,
		ValidEnd:   validEnd,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := r.Certs.Insert(ctx, cert); err != nil {
		return nil, err
	}

	if err := r.Certs.RecordSkHistory(ctx, cert.Id, stored); err != nil {
		return nil, err
	}

	return cert, nil
}
