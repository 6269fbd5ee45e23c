package httpapi

import (
	"encoding/hex"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideal-world/bios/internal/bootstrap"
	"github.com/ideal-world/bios/internal/crypto/sm"
)

func testApp(t *testing.T) *bootstrap.App {
	t.Helper()

	kp, err := sm.GenerateKeyPair()
	require.NoError(t, err)

	return &bootstrap.App{ServerKeyPair: kp}
}

func TestCryptoKeyEndpoint_ReturnsHexPublicKey(t *testing.T) {
	app := testApp(t)

	server := fiber.New()
	Mount(server, app)

	resp, err := server.Test(httptest.NewRequest(fiber.MethodGet, "/auth/crypto/key", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "publicKey")

	decoded, err := hex.DecodeString(string(body[len(`{"publicKey":"`) : len(body)-len(`"}`)]))
	require.NoError(t, err)
	assert.NotEmpty(t, decoded)
}

func TestRequestFromCtx_ReadsGatewayHeaders(t *testing.T) {
	server := fiber.New()

	var captured string

	server.Put("/echo", func(c *fiber.Ctx) error {
		req := requestFromCtx(c)
		captured = req.CryptoHeaderValue

		return c.SendStatus(fiber.StatusOK)
	})

	httpReq := httptest.NewRequest(fiber.MethodPut, "/echo", nil)
	httpReq.Header.Set("Bios-Crypto", "deadbeef")

	resp, err := server.Test(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "deadbeef", captured)
}
