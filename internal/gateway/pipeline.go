package gateway

import (
	"context"
	"time"

	"github.com/tjfoc/gmsm/sm2"

	"github.com/ideal-world/bios/internal/cache"
	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/token"
)

// RateLimiter is the narrow per-tenant rate-limit contract step 5
// consults (spec.md §4.5, "Cross-cutting checks").
type RateLimiter interface {
	Allow(ctx context.Context, tenantID string) (bool, error)
}

// PolicyLookup is the narrow slice of cache.PolicyIndex the pipeline
// depends on, kept as an interface (rather than the concrete Redis
// type) so Pipeline is unit testable without a live cache, matching
// the teacher's repository-interface-per-dependency pattern.
type PolicyLookup interface {
	Lookup(ctx context.Context, fingerprint string) (cache.Descriptor, bool, error)
	GetContext(ctx context.Context, account, app string) (cache.Context, bool, error)
	IsDoubleAuthed(ctx context.Context, account string) (bool, error)
}

// Config bundles the pipeline's tunables: the server's own SM2
// private key, exempt path prefixes, and login/logout path matchers.
type Config struct {
	ServerPriv      *sm2.PrivateKey
	CryptoExemptPfx []string
	LoginPaths      []string
	DoubleAuthTTL   time.Duration
	TokenKindConfig token.KindConfig
}

// Pipeline runs the six-step authorization decision of spec.md §4.5.
type Pipeline struct {
	Policy  PolicyLookup
	Tokens  *token.Manager
	AkSk    AkSkLookup
	Limiter RateLimiter
	Cfg     Config
	Clock   func() time.Time
}

// NewPipeline builds a Pipeline with the real clock.
func NewPipeline(policy PolicyLookup, tokens *token.Manager, aksk AkSkLookup, limiter RateLimiter, cfg Config) *Pipeline {
	return &Pipeline{Policy: policy, Tokens: tokens, AkSk: aksk, Limiter: limiter, Cfg: cfg, Clock: time.Now}
}

// Decision is the pipeline's admit/deny verdict plus everything the
// handler layer needs to seal the response (spec.md §4.5 step 6).
type Decision struct {
	Identity       Identity
	NeedCryptoResp bool
	SealResponse   func(body []byte) (cipherBody []byte, headerValue string, err error)
}

// Handle runs the full pipeline against req, returning a Decision on
// allow or a bioserr error (typically ForbiddenError/UnauthorizedError)
// on deny.
func (p *Pipeline) Handle(ctx context.Context, req Request) (Decision, error) {
	req, err := decodeEnvelope(req, p.Cfg.ServerPriv)
	if err != nil {
		return Decision{}, err
	}

	identity, err := resolveIdentity(ctx, req, p.Policy, p.Tokens, p.Cfg.TokenKindConfig, p.AkSk)
	if err != nil {
		return Decision{}, err
	}

	if p.isLoginPath(req.Path) {
		if err := p.crossCutting(ctx, req, identity); err != nil {
			return Decision{}, err
		}

		return Decision{Identity: identity, SealResponse: p.sealer(req, false)}, nil
	}

	fingerprint := cache.Fingerprint(req.Method, req.Path)
	if req.Query != "" {
		fingerprint = cache.Fingerprint(req.Method, req.Path+"?"+req.Query)
	}

	desc, found, err := p.Policy.Lookup(ctx, fingerprint)
	if err != nil {
		return Decision{}, err
	}

	if !found {
		return Decision{}, bioserr.ForbiddenError{Code: "403-bios-policy-not-found", Message: "no policy registered for this resource"}
	}

	if desc.NeedLogin && !identity.Resolved {
		return Decision{}, bioserr.UnauthorizedError{Code: "401-bios-login-required"}
	}

	if desc.NeedDoubleAuth {
		ok, err := p.Policy.IsDoubleAuthed(ctx, identity.AccountId)
		if err != nil {
			return Decision{}, err
		}

		if !ok {
			return Decision{}, bioserr.ForbiddenError{Code: "403-bios-double-auth-required", Message: "second factor required"}
		}
	}

	predicate := cache.Predicate{
		AccountId: identity.AccountId,
		RoleIds:   identity.RoleIds,
		GroupIds:  identity.GroupIds,
		AppId:     identity.AppId,
		TenantId:  identity.TenantId,
		Ak:        identity.Ak,
	}

	if !desc.Evaluate(predicate, p.Clock()) {
		return Decision{}, bioserr.ForbiddenError{Code: "403-bios-policy-denied", Message: "caller does not satisfy the resource's policy predicate"}
	}

	if err := p.crossCutting(ctx, req, identity); err != nil {
		return Decision{}, err
	}

	return Decision{
		Identity:       identity,
		NeedCryptoResp: desc.NeedCryptoResp && req.CryptoHeaderValue != "",
		SealResponse:   p.sealer(req, desc.NeedCryptoResp),
	}, nil
}

// crossCutting implements step 5: it applies the per-tenant rate
// limit only. The crypto-exempt path prefix is handled in sealer,
// which skips response sealing under it.
func (p *Pipeline) crossCutting(ctx context.Context, req Request, identity Identity) error {
	if p.Limiter == nil {
		return nil
	}

	ok, err := p.Limiter.Allow(ctx, identity.TenantId)
	if err != nil {
		return err
	}

	if !ok {
		return bioserr.ForbiddenError{Code: "403-bios-rate-limited", Message: "tenant rate limit exceeded"}
	}

	return nil
}

func (p *Pipeline) isLoginPath(path string) bool {
	for _, prefix := range p.Cfg.LoginPaths {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			return true
		}
	}

	return false
}

func (p *Pipeline) isCryptoExempt(path string) bool {
	for _, prefix := range p.Cfg.CryptoExemptPfx {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			return true
		}
	}

	return false
}

func (p *Pipeline) sealer(req Request, needCryptoResp bool) func([]byte) ([]byte, string, error) {
	if !needCryptoResp || req.CryptoHeaderValue == "" || p.isCryptoExempt(req.Path) {
		return nil
	}

	return func(body []byte) ([]byte, string, error) {
		return sealEgress(body, req.CallerPub)
	}
}
