package gateway

import (
	"crypto/elliptic"

	"github.com/tjfoc/gmsm/sm2"

	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/crypto/sm"
)

// decodeEnvelope implements spec.md §4.5 step 1: when the crypto
// header is present, SM2-decrypt the triple under the server's
// private key, SM4-CBC-decrypt the body, and verify the SM3 digest.
func decodeEnvelope(req Request, serverPriv *sm2.PrivateKey) (Request, error) {
	if req.CryptoHeaderValue == "" {
		return req, nil
	}

	plain, err := sm.Decode(req.Body, req.CryptoHeaderValue, serverPriv)
	if err != nil {
		return Request{}, bioserr.UnauthorizedError{Code: "401-bios-envelope-invalid", Message: "request envelope could not be decoded"}
	}

	req.Body = plain

	return req, nil
}

// sealEgress implements spec.md §4.5 step 6: SM4-encrypt the response
// body with a fresh key/iv, SM2-encrypt the triple under the caller's
// public key, and return the header value alongside the cipher body.
func sealEgress(body []byte, callerPubBytes []byte) (cipherBody []byte, headerValue string, err error) {
	curve := sm2.P256Sm2()

	x, y := elliptic.Unmarshal(curve, callerPubBytes)
	if x == nil {
		return nil, "", bioserr.InternalError{Code: "500-bios-egress-pubkey", Message: "caller public key could not be parsed"}
	}

	pub := &sm2.PublicKey{Curve: curve, X: x, Y: y}

	return sm.Seal(body, pub)
}

// DecodeForServer exposes the envelope decrypt step to callers outside
// this package (internal/httpapi's /auth/crypto passthrough and its
// Mix-API outer envelope), for requests that never enter Pipeline.Handle.
func DecodeForServer(body []byte, headerValue string, serverPriv *sm2.PrivateKey) ([]byte, error) {
	req, err := decodeEnvelope(Request{Body: body, CryptoHeaderValue: headerValue}, serverPriv)
	if err != nil {
		return nil, err
	}

	return req.Body, nil
}

// SealForCaller exposes the response sealing step to callers outside
// this package, for the same reason as DecodeForServer.
func SealForCaller(body []byte, callerPubBytes []byte) (cipherBody []byte, headerValue string, err error) {
	return sealEgress(body, callerPubBytes)
}
