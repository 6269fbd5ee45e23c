package httpapi

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ideal-world/bios/internal/bootstrap"
	"github.com/ideal-world/bios/internal/gateway"
)

// Mount registers the Authorization Gateway's own HTTP surface (spec.md
// §6: "Auth gateway: PUT /auth, PUT /auth/apis, PUT /auth/crypto, GET
// /auth/crypto/key") on r. Console CRUD route groups (/cs, /ct, /ca,
// /cc, /ci, /cp) are a representative, not exhaustive, surface per
// spec.md §1's Non-goals and are left to callers that need them.
func Mount(r fiber.Router, app *bootstrap.App) {
	auth := r.Group("/auth")

	auth.Put("/", handleAuth(app))
	auth.Put("/apis", handleMixApis(app))
	auth.Put("/crypto", handleCryptoOnly(app))
	auth.Get("/crypto/key", handleCryptoKey(app))
}

// handleAuth runs the full six-step pipeline against the inbound
// request and reports the decision as a Bios-Context header: an
// allowed request gets 204, or 200 with a sealed body when the
// response must be encrypted; a denied one gets the error's status
// (401/403/...), the gateway's canonical per-request form (spec.md
// §4.5).
func handleAuth(app *bootstrap.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := requestFromCtx(c)

		decision, err := app.Pipeline.Handle(c.Context(), req)
		if err != nil {
			return WithError(c, err)
		}

		return writeDecision(c, decision)
	}
}

// handleMixApis decrypts the outer envelope, unwraps the nested
// Mix-API request, claims its replay-detection nonce, and runs the
// inner request through the same pipeline (spec.md §4.5, "Mix-API
// form").
func handleMixApis(app *bootstrap.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		outer := requestFromCtx(c)

		plain, err := decodeCryptoBody(outer, app)
		if err != nil {
			return WithError(c, err)
		}

		outer.Body = plain
		outer.CryptoHeaderValue = ""

		inner, err := gateway.UnwrapMix(c.Context(), outer, app.Nonces, time.Now())
		if err != nil {
			return WithError(c, err)
		}

		decision, err := app.Pipeline.Handle(c.Context(), inner)
		if err != nil {
			return WithError(c, err)
		}

		return writeDecision(c, decision)
	}
}

// handleCryptoOnly applies just the envelope crypto layer (decrypt,
// then re-seal under the caller's key) without any identity or policy
// check, for callers that only need the body-only encryption service
// (spec.md §6, "PUT /auth/crypto (body-only encryption)").
func handleCryptoOnly(app *bootstrap.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := requestFromCtx(c)

		plain, err := decodeCryptoBody(req, app)
		if err != nil {
			return WithError(c, err)
		}

		if len(req.CallerPub) == 0 {
			return OK(c, plain)
		}

		cipherBody, headerValue, err := gateway.SealForCaller(plain, req.CallerPub)
		if err != nil {
			return WithError(c, err)
		}

		c.Set(gateway.HeaderCrypto, headerValue)

		return c.Status(fiber.StatusOK).Send(cipherBody)
	}
}

// handleCryptoKey returns the gateway's own SM2 public key, hex
// encoded, for clients to encrypt requests under (spec.md §6, "GET
// /auth/crypto/key").
func handleCryptoKey(app *bootstrap.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return OK(c, fiber.Map{"publicKey": hex.EncodeToString(app.ServerPublicKeyBytes())})
	}
}

func decodeCryptoBody(req gateway.Request, app *bootstrap.App) ([]byte, error) {
	if req.CryptoHeaderValue == "" {
		return req.Body, nil
	}

	return gateway.DecodeForServer(req.Body, req.CryptoHeaderValue, app.ServerKeyPair.Private)
}

func requestFromCtx(c *fiber.Ctx) gateway.Request {
	headers := make(map[string]string)
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})

	var date time.Time
	if raw := c.Get(gateway.HeaderDate); raw != "" {
		if parsed, err := time.Parse(time.RFC1123, raw); err == nil {
			date = parsed
		}
	}

	var callerPub []byte
	if raw := c.Get(gateway.HeaderCallerPub); raw != "" {
		callerPub, _ = hex.DecodeString(raw)
	}

	return gateway.Request{
		Method:            c.Method(),
		Path:              c.Path(),
		Query:             string(c.Request().URI().QueryString()),
		Body:              c.Body(),
		Headers:           headers,
		Date:              date,
		CryptoHeaderValue: c.Get(gateway.HeaderCrypto),
		CallerPub:         callerPub,
	}
}

func writeDecision(c *fiber.Ctx, decision gateway.Decision) error {
	ctxJSON, err := json.Marshal(decision.Identity)
	if err != nil {
		return WithError(c, err)
	}

	c.Set(gateway.HeaderContext, base64.StdEncoding.EncodeToString(ctxJSON))

	if decision.SealResponse == nil {
		return NoContent(c)
	}

	cipherBody, headerValue, err := decision.SealResponse(nil)
	if err != nil {
		return WithError(c, err)
	}

	c.Set(gateway.HeaderCrypto, headerValue)

	return c.Status(fiber.StatusOK).Send(cipherBody)
}
