// Package validate wires go-playground/validator/v10 with the
// CertConf-driven ak_rule/sk_rule regex checks and password-complexity
// rules of spec.md §3 (CertConf.ak_rule/sk_rule, len_min/len_max,
// need_num/need_uppercase/need_lowercase/need_spec_char), grounded on
// the teacher's common/net/http.newValidator wiring (that file pins
// the older v9 import path; the rest of the pack, including this
// module's go.mod, has moved to v10 — the translator/locale wiring is
// otherwise identical).
package validate

import (
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en2 "github.com/go-playground/validator/v10/translations/en"

	"github.com/ideal-world/bios/internal/core/bioserr"
)

// PasswordPolicy mirrors CertConf's password-complexity fields
// (spec.md §3).
type PasswordPolicy struct {
	LenMin          int
	LenMax          int
	NeedNum         bool
	NeedUppercase   bool
	NeedLowercase   bool
	NeedSpecChar    bool
}

// Validator wraps *validator.Validate with the translator the teacher
// pairs it with for human-readable field errors.
type Validator struct {
	v     *validator.Validate
	trans ut.Translator
}

// New builds a Validator with en translations registered, matching
// the teacher's newValidator.
func New() *Validator {
	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")

	v := validator.New()
	if err := en2.RegisterDefaultTranslations(v, trans); err != nil {
		panic(err)
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	return &Validator{v: v, trans: trans}
}

// Struct validates s against its `validate` struct tags, returning a
// bioserr.ValidationError with the first translated field message on
// failure.
func (vd *Validator) Struct(entity bioserr.EntityType, s any) error {
	if err := vd.v.Struct(s); err != nil {
		if fes, ok := err.(validator.ValidationErrors); ok && len(fes) > 0 {
			return bioserr.ValidationError{
				Entity:  entity,
				Code:    "400-bios-validation",
				Message: fes[0].Translate(vd.trans),
				Err:     err,
			}
		}

		return bioserr.ValidationError{Entity: entity, Code: "400-bios-validation", Message: err.Error(), Err: err}
	}

	return nil
}

// MatchRule compiles pattern (a CertConf ak_rule/sk_rule) and reports
// whether value satisfies it. An empty pattern means unconstrained.
func MatchRule(pattern, value string) (bool, error) {
	if pattern == "" {
		return true, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}

	return re.MatchString(value), nil
}

// CheckPassword enforces PasswordPolicy against a candidate sk,
// returning a bioserr.ValidationError naming the first unmet rule.
func CheckPassword(policy PasswordPolicy, candidate string) error {
	if policy.LenMin > 0 && len(candidate) < policy.LenMin {
		return bioserr.ValidationError{Code: "400-iam-cert-sk-too-short", Message: "password shorter than the configured minimum length"}
	}

	if policy.LenMax > 0 && len(candidate) > policy.LenMax {
		return bioserr.ValidationError{Code: "400-iam-cert-sk-too-long", Message: "password longer than the configured maximum length"}
	}

	var hasNum, hasUpper, hasLower, hasSpec bool

	for _, r := range candidate {
		switch {
		case unicode.IsDigit(r):
			hasNum = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			hasSpec = true
		}
	}

	switch {
	case policy.NeedNum && !hasNum:
		return bioserr.ValidationError{Code: "400-iam-cert-sk-needs-digit", Message: "password must contain a digit"}
	case policy.NeedUppercase && !hasUpper:
		return bioserr.ValidationError{Code: "400-iam-cert-sk-needs-upper", Message: "password must contain an uppercase letter"}
	case policy.NeedLowercase && !hasLower:
		return bioserr.ValidationError{Code: "400-iam-cert-sk-needs-lower", Message: "password must contain a lowercase letter"}
	case policy.NeedSpecChar && !hasSpec:
		return bioserr.ValidationError{Code: "400-iam-cert-sk-needs-special", Message: "password must contain a special character"}
	}

	return nil
}
