package gateway

import (
	"context"
	"crypto/subtle"
	"sort"
	"strings"

	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/crypto/sm"
	"github.com/ideal-world/bios/internal/token"
)

const (
	HeaderToken         = "Bios-Token"
	HeaderAuthorization = "Bios-Authorization"
	HeaderDate          = "Bios-Date"
	HeaderContext       = "Bios-Context"
	// HeaderCrypto carries the SM2-encrypted {digest,key,iv} triple,
	// hex-encoded; a base64-encoded value is not accepted (spec.md §6's
	// "{configured}-Crypto" header). This deployment fixes the
	// configurable prefix to "Bios".
	HeaderCrypto = "Bios-Crypto"
	// HeaderCallerPub carries the caller's SM2 public key (hex,
	// uncompressed point form) alongside the crypto header, so the
	// gateway can seal its response under it (spec.md §4.5 step 6).
	HeaderCallerPub = "Bios-Crypto-Pub"
)

// Identity is the resolved caller of spec.md §4.5 step 2, ready to
// feed cache.Predicate for the policy evaluation step.
type Identity struct {
	Resolved  bool
	AccountId string
	AppId     string
	TenantId  string
	Ak        string
	RoleIds   []string
	GroupIds  []string
	Token     string
	TokenKind string
}

// AkSkLookup is the narrow cache contract identity resolution needs
// for the AK/SK branch: the aksk:{ak} cache plus the Cert's own
// rel_item_scope/tenant id, which the caller must also expose so the
// canonical signing string can be reconstructed against the right sk.
type AkSkLookup interface {
	GetAkSk(ctx context.Context, ak string) (sk, tenant, app string, ok bool, err error)
}

// resolveIdentity implements spec.md §4.5 step 2's priority order:
// Bios-Token first, then Bios-Authorization (signed AK/SK).
func resolveIdentity(ctx context.Context, req Request, policy PolicyLookup, tokens *token.Manager, tokenCfg token.KindConfig, aksk AkSkLookup) (Identity, error) {
	if tok, ok := req.header(HeaderToken); ok && tok != "" {
		return resolveByToken(ctx, tok, req, policy, tokens, tokenCfg)
	}

	if auth, ok := req.header(HeaderAuthorization); ok && auth != "" {
		return resolveByAkSk(ctx, auth, req, aksk)
	}

	return Identity{Resolved: false}, nil
}

func resolveByToken(ctx context.Context, tok string, req Request, policy PolicyLookup, tokens *token.Manager, tokenCfg token.KindConfig) (Identity, error) {
	resolved, err := tokens.Resolve(ctx, tok, tokenCfg)
	if err != nil {
		return Identity{}, err
	}

	cctx, found, err := policy.GetContext(ctx, resolved.AccountId, resolved.AppId)
	if err != nil {
		return Identity{}, err
	}

	if !found {
		return Identity{}, bioserr.UnauthorizedError{Code: "401-iam-token-context-missing"}
	}

	return Identity{
		Resolved:  true,
		AccountId: resolved.AccountId,
		AppId:     resolved.AppId,
		TenantId:  tenantFromOwnPaths(cctx.OwnPaths),
		Ak:        cctx.Ak,
		RoleIds:   cctx.Roles,
		GroupIds:  cctx.Groups,
		Token:     tok,
		TokenKind: string(resolved.Kind),
	}, nil
}

// resolveByAkSk verifies the canonical signing string of spec.md §6:
// UPPER(method) + "\n" + date + "\n" + sorted-query + "\n" +
// lower(path) + "\n" + hex(sm3(body)), HMAC-SM3'd with sk.
func resolveByAkSk(ctx context.Context, header string, req Request, aksk AkSkLookup) (Identity, error) {
	parts := strings.SplitN(header, ":", 2)
	if len(parts) != 2 {
		return Identity{}, bioserr.UnauthorizedError{Code: "401-iam-aksk-malformed"}
	}

	ak, signature := parts[0], parts[1]

	sk, tenant, app, ok, err := aksk.GetAkSk(ctx, ak)
	if err != nil {
		return Identity{}, err
	}

	if !ok {
		return Identity{}, bioserr.UnauthorizedError{Code: "401-iam-aksk-unknown"}
	}

	canonical := CanonicalSigningString(req)
	want := sm.HMACSM3Hex([]byte(sk), []byte(canonical))

	if subtle.ConstantTimeCompare([]byte(want), []byte(signature)) != 1 {
		return Identity{}, bioserr.UnauthorizedError{Code: "401-iam-aksk-signature-mismatch"}
	}

	return Identity{
		Resolved:  true,
		TenantId:  tenant,
		AppId:     app,
		Ak:        ak,
		TokenKind: "",
	}, nil
}

// CanonicalSigningString builds the canonical request string spec.md
// §6 mandates: method, date, sorted query, lower-cased path, body
// digest, newline-joined.
func CanonicalSigningString(req Request) string {
	date, _ := req.header(HeaderDate)

	return strings.ToUpper(req.Method) + "\n" +
		date + "\n" +
		sortedQuery(req.Query) + "\n" +
		strings.ToLower(req.Path) + "\n" +
		sm.HashHex(req.Body)
}

func sortedQuery(raw string) string {
	if raw == "" {
		return ""
	}

	parts := strings.Split(raw, "&")
	sort.Strings(parts)

	return strings.Join(parts, "&")
}

func tenantFromOwnPaths(ownPaths string) string {
	segs := strings.Split(ownPaths, "/")
	if len(segs) == 0 {
		return ""
	}

	return segs[0]
}
