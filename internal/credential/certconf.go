// Package credential implements the Credential Store & Verifier (C2)
// of spec.md §4.2: CertConf configuration, Cert instances, the
// five-step verification algorithm, sk rotation, and the mail/phone
// vcode flow.
package credential

import (
	"time"

	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/core/validate"
)

// Kind enumerates the credential kinds recognized at the core
// (spec.md §4.2).
type Kind string

const (
	KindUserPwd    Kind = "UserPwd"
	KindMailVCode  Kind = "MailVCode"
	KindPhoneVCode Kind = "PhoneVCode"
	KindAkSk       Kind = "AkSk"
	KindOAuth2     Kind = "OAuth2"
	KindLdapBound  Kind = "LdapBound"
	KindToken      Kind = "Token"
	KindThirdParty Kind = "ThirdParty"
)

// CertConf configures a family of credentials: validators, lock
// policy, repeatability, expiry, and coexistence cap (spec.md §4.2,
// exhaustive option list).
type CertConf struct {
	Id       string `json:"id" db:"id"`
	Kind     Kind   `json:"kind" db:"kind"`
	Supplier string `json:"supplier" db:"supplier"` // sub-supplier for OAuth2, e.g. "wechat"
	OwnPaths string `json:"ownPaths" db:"own_paths"`

	AkRule string `json:"akRule" db:"ak_rule"`
	SkRule string `json:"skRule" db:"sk_rule"`

	LenMin        int  `json:"lenMin" db:"len_min"`
	LenMax        int  `json:"lenMax" db:"len_max"`
	NeedNum       bool `json:"needNum" db:"need_num"`
	NeedUppercase bool `json:"needUppercase" db:"need_uppercase"`
	NeedLowercase bool `json:"needLowercase" db:"need_lowercase"`
	NeedSpecChar  bool `json:"needSpecChar" db:"need_spec_char"`

	SkNeed      bool `json:"skNeed" db:"sk_need"`
	SkDynamic   bool `json:"skDynamic" db:"sk_dynamic"`
	SkEncrypted bool `json:"skEncrypted" db:"sk_encrypted"`

	Repeatable bool `json:"repeatable" db:"repeatable"`

	SkLockCycleSec    int `json:"skLockCycleSec" db:"sk_lock_cycle_sec"`
	SkLockErrTimes    int `json:"skLockErrTimes" db:"sk_lock_err_times"`
	SkLockDurationSec int `json:"skLockDurationSec" db:"sk_lock_duration_sec"`

	ExpireSec int `json:"expireSec" db:"expire_sec"`

	CoexistNum int `json:"coexistNum" db:"coexist_num"`

	// RestByKinds lists credential kinds whose rotation resets this
	// conf's failure counters (spec.md §4.2).
	RestByKinds []Kind `json:"restByKinds" db:"rest_by_kinds"`
}

// ExpireDuration is the configured validity window as a Duration.
func (c CertConf) ExpireDuration() time.Duration {
	return time.Duration(c.ExpireSec) * time.Second
}

// LockCycle is the sliding failure-count window.
func (c CertConf) LockCycle() time.Duration {
	return time.Duration(c.SkLockCycleSec) * time.Second
}

// LockDuration is how long a lock marker lives once set.
func (c CertConf) LockDuration() time.Duration {
	return time.Duration(c.SkLockDurationSec) * time.Second
}

// HasLockPolicy reports whether this conf enforces a failure-budget
// lock at all (spec.md §4.2 step 3: "If the CertConf specifies a lock
// policy").
func (c CertConf) HasLockPolicy() bool {
	return c.SkLockErrTimes > 0 && c.SkLockCycleSec > 0 && c.SkLockDurationSec > 0
}

// PasswordPolicy projects the sk shape fields into the core validator's
// policy type.
func (c CertConf) PasswordPolicy() validate.PasswordPolicy {
	return validate.PasswordPolicy{
		LenMin:        c.LenMin,
		LenMax:        c.LenMax,
		NeedNum:       c.NeedNum,
		NeedUppercase: c.NeedUppercase,
		NeedLowercase: c.NeedLowercase,
		NeedSpecChar:  c.NeedSpecChar,
	}
}

// ResetsFailuresOn reports whether rotating a credential of kind
// resets this conf's failure counters without an old-sk challenge
// (spec.md §4.2, RestByKinds).
func (c CertConf) ResetsFailuresOn(kind Kind) bool {
	for _, k := range c.RestByKinds {
		if k == kind {
			return true
		}
	}

	return false
}

// Validate checks the conf's own shape: ak_rule/sk_rule must compile
// as regexes and the length bounds must be internally consistent.
// Called from CertConf CRUD so a malformed conf never reaches storage.
func (c CertConf) Validate() error {
	if _, err := validate.MatchRule(c.AkRule, ""); err != nil {
		return bioserr.ValidationError{Code: "400-iam-certconf-bad-ak-rule", Message: "ak_rule is not a valid pattern: " + err.Error()}
	}

	if _, err := validate.MatchRule(c.SkRule, ""); err != nil {
		return bioserr.ValidationError{Code: "400-iam-certconf-bad-sk-rule", Message: "sk_rule is not a valid pattern: " + err.Error()}
	}

	if c.LenMin > 0 && c.LenMax > 0 && c.LenMin > c.LenMax {
		return bioserr.ValidationError{Code: "400-iam-certconf-bad-len-bounds", Message: "len_min must not exceed len_max"}
	}

	return nil
}
