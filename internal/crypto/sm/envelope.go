// Package sm implements the ShangMi (SM2/SM3/SM4) envelope spec.md
// §4.5 mandates for the authorization gateway's crypto layer: the
// header carries an SM2-encrypted {digest, key, iv} triple, the body
// is SM4-CBC encrypted, and SM3 is the integrity digest. The envelope
// is a strict layer (spec.md §9's design note) — handlers never see
// this package; only internal/gateway does.
package sm

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tjfoc/gmsm/sm2"
	"github.com/tjfoc/gmsm/sm3"
	"github.com/tjfoc/gmsm/sm4"
)

// KeyPair is an SM2 public/private key pair, base64/hex-round-trippable
// for the "GET /auth/crypto/key" endpoint (spec.md §4 and §6).
type KeyPair struct {
	Private *sm2.PrivateKey
	Public  *sm2.PublicKey
}

// GenerateKeyPair creates a fresh SM2 key pair (used once at server
// start for the gateway's own decrypt key, and by clients to generate
// their per-session key per spec.md §8 scenario 4).
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := sm2.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("sm: generate sm2 key pair: %w", err)
	}

	return &KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}

// triple is the SM2-encrypted payload carried in the crypto header:
// the SM3 digest of the plaintext body, plus the SM4 key/iv used to
// encrypt it.
type triple struct {
	Sm3Digest string `json:"sm3Digest"`
	Sm4Key    string `json:"sm4Key"`
	Sm4Iv     string `json:"sm4Iv"`
}

// Seal encrypts body under a freshly generated SM4 key/iv, SM3-digests
// the plaintext, and SM2-encrypts the {digest,key,iv} triple under
// recipientPub. It returns (cipherBody, headerValue) where headerValue
// is the hex-encoded SM2 ciphertext meant for the crypto header
// (spec.md §4.5 step 6, "Egress sealing").
func Seal(body []byte, recipientPub *sm2.PublicKey) (cipherBody []byte, headerValue string, err error) {
	key := make([]byte, 16)
	iv := make([]byte, 16)

	if _, err = rand.Read(key); err != nil {
		return nil, "", fmt.Errorf("sm: generate sm4 key: %w", err)
	}

	if _, err = rand.Read(iv); err != nil {
		return nil, "", fmt.Errorf("sm: generate sm4 iv: %w", err)
	}

	cipherBody, err = sm4.Sm4CBCEncrypt(key, iv, body)
	if err != nil {
		return nil, "", fmt.Errorf("sm: sm4 cbc encrypt: %w", err)
	}

	digest := sm3.Sm3Sum(body)

	t := triple{
		Sm3Digest: hex.EncodeToString(digest[:]),
		Sm4Key:    hex.EncodeToString(key),
		Sm4Iv:     hex.EncodeToString(iv),
	}

	tripleJSON, err := json.Marshal(t)
	if err != nil {
		return nil, "", fmt.Errorf("sm: marshal triple: %w", err)
	}

	encTriple, err := sm2.Encrypt(recipientPub, tripleJSON, rand.Reader, sm2.C1C3C2)
	if err != nil {
		return nil, "", fmt.Errorf("sm: sm2 encrypt triple: %w", err)
	}

	return cipherBody, hex.EncodeToString(encTriple), nil
}

// Decode reverses Seal/the client's equivalent encryption: it SM2
// -decrypts the triple under priv, SM4-CBC-decrypts cipherBody, and
// verifies the SM3 digest, returning the plaintext body (spec.md §4.5
// step 1, "Envelope decode").
func Decode(cipherBody []byte, headerValue string, priv *sm2.PrivateKey) ([]byte, error) {
	encTriple, err := hex.DecodeString(headerValue)
	if err != nil {
		return nil, fmt.Errorf("sm: decode header hex: %w", err)
	}

	tripleJSON, err := sm2.Decrypt(priv, encTriple, sm2.C1C3C2)
	if err != nil {
		return nil, fmt.Errorf("sm: sm2 decrypt triple: %w", err)
	}

	var t triple

	if err := json.Unmarshal(tripleJSON, &t); err != nil {
		return nil, fmt.Errorf("sm: unmarshal triple: %w", err)
	}

	key, err := hex.DecodeString(t.Sm4Key)
	if err != nil {
		return nil, fmt.Errorf("sm: decode sm4 key: %w", err)
	}

	iv, err := hex.DecodeString(t.Sm4Iv)
	if err != nil {
		return nil, fmt.Errorf("sm: decode sm4 iv: %w", err)
	}

	body, err := sm4.Sm4CBCDecrypt(key, iv, cipherBody)
	if err != nil {
		return nil, fmt.Errorf("sm: sm4 cbc decrypt: %w", err)
	}

	digest := sm3.Sm3Sum(body)
	wantDigest, err := hex.DecodeString(t.Sm3Digest)
	if err != nil {
		return nil, fmt.Errorf("sm: decode sm3 digest: %w", err)
	}

	if hex.EncodeToString(digest[:]) != hex.EncodeToString(wantDigest) {
		return nil, fmt.Errorf("sm: sm3 digest mismatch, body was tampered with")
	}

	return body, nil
}

// HashHex returns the hex-encoded SM3 digest of data, used as the
// one-way hash for sk_encrypted credentials (spec.md §4.2).
func HashHex(data []byte) string {
	sum := sm3.Sm3Sum(data)
	return hex.EncodeToString(sum[:])
}
