package gateway

import (
	"crypto/elliptic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tjfoc/gmsm/sm2"

	"github.com/ideal-world/bios/internal/crypto/sm"
)

func TestDecodeForServerAndSealForCaller_RoundTrip(t *testing.T) {
	server, err := sm.GenerateKeyPair()
	require.NoError(t, err)

	caller, err := sm.GenerateKeyPair()
	require.NoError(t, err)

	plain := []byte(`{"hello":"world"}`)

	cipherBody, headerValue, err := sm.Seal(plain, server.Public)
	require.NoError(t, err)

	decoded, err := DecodeForServer(cipherBody, headerValue, server.Private)
	require.NoError(t, err)
	assert.Equal(t, plain, decoded)

	callerPubBytes := elliptic.Marshal(sm2.P256Sm2(), caller.Public.X, caller.Public.Y)

	sealedBody, sealedHeader, err := SealForCaller(plain, callerPubBytes)
	require.NoError(t, err)

	roundTripped, err := sm.Decode(sealedBody, sealedHeader, caller.Private)
	require.NoError(t, err)
	assert.Equal(t, plain, roundTripped)
}

func TestDecodeForServer_EmptyCryptoHeaderPassesBodyThrough(t *testing.T) {
	server, err := sm.GenerateKeyPair()
	require.NoError(t, err)

	body := []byte("plain body")

	decoded, err := DecodeForServer(body, "", server.Private)
	require.NoError(t, err)
	assert.Equal(t, body, decoded)
}
