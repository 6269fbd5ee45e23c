package sm

import (
	"crypto/hmac"
	"encoding/hex"

	"github.com/tjfoc/gmsm/sm3"
)

// HMACSM3Hex computes hex(HMAC-SM3(key, message)), the signature
// primitive behind the canonical AK/SK signing string of spec.md §6:
//
//	UPPER(method) + "\n" + date + "\n" + sorted-query + "\n" +
//	lower(path) + "\n" + hex(sm3(body))
func HMACSM3Hex(key, message []byte) string {
	mac := hmac.New(sm3.New, key)
	mac.Write(message)

	return hex.EncodeToString(mac.Sum(nil))
}
