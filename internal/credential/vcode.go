package credential

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ideal-world/bios/internal/core/bioserr"
)

// Notifier is the narrow C7 contract vcode sending depends on: a
// single outbound channel keyed by the conf's kind (MailVCode sends
// mail, PhoneVCode sends sms).
type Notifier interface {
	Send(ctx context.Context, channel, target, content string) error
}

const vcodeDefaultTTLSec = 300

// SendVCode issues a fresh numeric one-time code for a MailVCode or
// PhoneVCode CertConf, stores it in the Locker under vcode:{conf}:{ak}
// with a TTL, and dispatches it through the matching Notifier channel
// (spec.md §4.2, "mail/phone vcode flow").
func SendVCode(ctx context.Context, confs ConfRepository, locker Locker, notifier Notifier, confID, ak string) error {
	conf, err := confs.FindByID(ctx, confID)
	if err != nil {
		return err
	}

	if conf == nil {
		return bioserr.NotFoundError{Code: "404-iam-certconf-not-found", Message: "credential configuration not found"}
	}

	if conf.Kind != KindMailVCode && conf.Kind != KindPhoneVCode {
		return bioserr.ValidationError{Code: "400-iam-certconf-wrong-kind", Message: "vcode can only be sent for MailVCode/PhoneVCode conf kinds"}
	}

	code, err := randomNumericCode(6)
	if err != nil {
		return bioserr.InternalError{Code: "500-iam-vcode-rand", Err: err}
	}

	ttl := conf.ExpireSec
	if ttl <= 0 {
		ttl = vcodeDefaultTTLSec
	}

	if err := locker.SetVCode(ctx, confID, ak, code, ttl); err != nil {
		return err
	}

	channel := "mail"
	if conf.Kind == KindPhoneVCode {
		channel = "sms"
	}

	return notifier.Send(ctx, channel, ak, code)
}

func randomNumericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}
