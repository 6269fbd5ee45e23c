package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ideal-world/bios/internal/obs/metrics"
)

// Descriptor is the JSON auth descriptor stored as one field of the
// `resources` hash (spec.md §4.4): the permitted subject sets plus an
// optional validity window and cross-cutting flags.
type Descriptor struct {
	Accounts string `json:"accounts,omitempty"` // "#id1#id2#" delimited
	Roles    string `json:"roles,omitempty"`
	Groups   string `json:"groups,omitempty"`
	Apps     string `json:"apps,omitempty"`
	Tenants  string `json:"tenants,omitempty"`
	Ak       string `json:"ak,omitempty"`

	StartAt *time.Time `json:"st,omitempty"`
	EndAt   *time.Time `json:"et,omitempty"`

	NeedCryptoReq  bool `json:"need_crypto_req,omitempty"`
	NeedCryptoResp bool `json:"need_crypto_resp,omitempty"`
	NeedDoubleAuth bool `json:"need_double_auth,omitempty"`
	NeedLogin      bool `json:"need_login,omitempty"`
}

// Predicate is the caller-side identity the evaluator searches each
// populated subject set for.
type Predicate struct {
	AccountId string
	RoleIds   []string
	GroupIds  []string
	AppId     string
	TenantId  string
	Ak        string
}

var pathParamPattern = regexp.MustCompile(`/:[^/]+`)

// Fingerprint computes the canonical "{action}##{normalized-uri}" key
// of spec.md §4.4: lower-cased, path-param-collapsed (":id" -> "*"),
// query-sorted.
func Fingerprint(action, uri string) string {
	return strings.ToLower(action) + "##" + NormalizeURI(uri)
}

// NormalizeURI implements the normalization spec.md §4.4 mandates. A
// "scheme://" prefix (an api:// resource identifier rather than an
// HTTP request path) is left untouched by path.Clean, which would
// otherwise collapse the double slash.
func NormalizeURI(uri string) string {
	u := strings.ToLower(uri)

	parts := strings.SplitN(u, "?", 2)
	path0 := parts[0]

	var p string
	if idx := strings.Index(path0, "://"); idx >= 0 {
		scheme, rest := path0[:idx], path0[idx+3:]
		cleaned := pathParamPattern.ReplaceAllString(path.Clean("/"+strings.TrimPrefix(rest, "/")), "/*")
		p = scheme + "://" + strings.TrimPrefix(cleaned, "/")
	} else {
		p = pathParamPattern.ReplaceAllString(path.Clean("/"+strings.TrimPrefix(path0, "/")), "/*")
	}

	if len(parts) == 1 || parts[1] == "" {
		return p
	}

	query := strings.Split(parts[1], "&")
	sortStrings(query)

	return p + "?" + strings.Join(query, "&")
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// containsID reports whether delimited ("#id1#id2#") contains id. An
// empty set string means "unconstrained" for that dimension (spec.md
// §4.4's lookup rule).
func containsID(delimited, id string) bool {
	if delimited == "" || id == "" {
		return true
	}

	return strings.Contains(delimited, "#"+id+"#")
}

func containsAny(delimited string, ids []string) bool {
	if delimited == "" {
		return true
	}

	for _, id := range ids {
		if strings.Contains(delimited, "#"+id+"#") {
			return true
		}
	}

	return false
}

// Evaluate implements spec.md §4.4's predicate rule: any populated set
// that does not contain the caller fails the check; an empty set is
// unconstrained. Time windows are checked against now.
func (d Descriptor) Evaluate(p Predicate, now time.Time) bool {
	if d.StartAt != nil && now.Before(*d.StartAt) {
		return false
	}

	if d.EndAt != nil && now.After(*d.EndAt) {
		return false
	}

	if !containsID(d.Accounts, p.AccountId) {
		return false
	}

	if !containsAny(d.Roles, p.RoleIds) {
		return false
	}

	if !containsAny(d.Groups, p.GroupIds) {
		return false
	}

	if !containsID(d.Apps, p.AppId) {
		return false
	}

	if !containsID(d.Tenants, p.TenantId) {
		return false
	}

	if !containsID(d.Ak, p.Ak) {
		return false
	}

	return true
}

// Context is the pre-computed caller context cached per (account,app)
// under context:{account} (spec.md §4.4).
type Context struct {
	OwnPaths  string   `json:"own_paths"`
	Ak        string   `json:"ak"`
	Owner     string   `json:"owner"`
	Roles     []string `json:"roles"`
	Groups    []string `json:"groups"`
	Token     string   `json:"token"`
	TokenKind string   `json:"token_kind"`
}

// PolicyIndex is the Policy Index/Invalidation cache (C4) of spec.md
// §4.4, grounded on the teacher's RedisConsumerRepository Set/Get
// wrapper generalized to the resources/change/context/aksk/double-auth
// keyspace this platform needs.
type PolicyIndex struct {
	Conn             *Connection
	Prefix           string
	ChangeEntryTTL   time.Duration
}

func (p *PolicyIndex) key(parts ...string) string {
	all := append([]string{p.Prefix}, parts...)
	return strings.Join(all, ":")
}

// Lookup performs the single hash-get of spec.md §4.4's "Resource
// lookup": a miss is fail-closed (deny), signaled by ok=false.
func (p *PolicyIndex) Lookup(ctx context.Context, fingerprint string) (Descriptor, bool, error) {
	client, err := p.Conn.GetClient(ctx)
	if err != nil {
		return Descriptor{}, false, err
	}

	raw, err := client.HGet(ctx, p.key("resources"), fingerprint).Result()
	if err == redis.Nil {
		metrics.PolicyCacheLookups.WithLabelValues("miss").Inc()
		return Descriptor{}, false, nil
	}

	if err != nil {
		return Descriptor{}, false, err
	}

	var desc Descriptor
	if err := json.Unmarshal([]byte(raw), &desc); err != nil {
		return Descriptor{}, false, fmt.Errorf("cache: unmarshal descriptor for %q: %w", fingerprint, err)
	}

	metrics.PolicyCacheLookups.WithLabelValues("hit").Inc()

	return desc, true, nil
}

// Write rewrites one resources hash field and appends a change entry
// (spec.md §4.4's "Build protocol": "writes one hash field").
func (p *PolicyIndex) Write(ctx context.Context, fingerprint string, desc Descriptor, changeTsNs int64) error {
	client, err := p.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(desc)
	if err != nil {
		return err
	}

	if err := client.HSet(ctx, p.key("resources"), fingerprint, string(raw)).Err(); err != nil {
		return err
	}

	ttl := p.ChangeEntryTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return client.Set(ctx, p.key("change", strconv.FormatInt(changeTsNs, 10)), fingerprint, ttl).Err()
}

// Delete removes a resources hash field and appends a change entry so
// subscribers observe the retraction too.
func (p *PolicyIndex) Delete(ctx context.Context, fingerprint string, changeTsNs int64) error {
	client, err := p.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	if err := client.HDel(ctx, p.key("resources"), fingerprint).Err(); err != nil {
		return err
	}

	ttl := p.ChangeEntryTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return client.Set(ctx, p.key("change", strconv.FormatInt(changeTsNs, 10)), fingerprint, ttl).Err()
}

// ScanChangesSince scans change:* keys with a timestamp suffix greater
// than afterTsNs, returning their fingerprints keyed by timestamp (a map,
// so in no particular order). Used
// by the background sweep that notifies remote in-process caches when
// sharded (spec.md §4.6).
func (p *PolicyIndex) ScanChangesSince(ctx context.Context, afterTsNs int64) (map[int64]string, error) {
	client, err := p.Conn.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]string)
	prefix := p.key("change") + ":"

	iter := client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()

		ts, err := strconv.ParseInt(strings.TrimPrefix(k, prefix), 10, 64)
		if err != nil || ts <= afterTsNs {
			continue
		}

		fp, err := client.Get(ctx, k).Result()
		if err != nil {
			continue
		}

		out[ts] = fp
	}

	return out, iter.Err()
}

// GetContext reads the per-(account,app) cached Context.
func (p *PolicyIndex) GetContext(ctx context.Context, account, app string) (Context, bool, error) {
	client, err := p.Conn.GetClient(ctx)
	if err != nil {
		return Context{}, false, err
	}

	raw, err := client.HGet(ctx, p.key("context", account), app).Result()
	if err == redis.Nil {
		return Context{}, false, nil
	}

	if err != nil {
		return Context{}, false, err
	}

	var c Context
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Context{}, false, err
	}

	return c, true, nil
}

// SetContext writes the per-(account,app) cached Context.
func (p *PolicyIndex) SetContext(ctx context.Context, account, app string, c Context) error {
	client, err := p.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}

	return client.HSet(ctx, p.key("context", account), app, string(raw)).Err()
}

// BustContext deletes every cached context entry for account, forcing
// the next lookup to recompute (spec.md §4.6, "bust token caches").
func (p *PolicyIndex) BustContext(ctx context.Context, account string) error {
	client, err := p.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	return client.Del(ctx, p.key("context", account)).Err()
}

// SetAkSk caches "{sk}:{tenant}:{app}" for ak, TTL'd to remaining
// cert validity.
func (p *PolicyIndex) SetAkSk(ctx context.Context, ak, sk, tenant, app string, ttl time.Duration) error {
	client, err := p.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	return client.Set(ctx, p.key("aksk", ak), sk+":"+tenant+":"+app, ttl).Err()
}

// GetAkSk reads back the cached "{sk}:{tenant}:{app}" triple.
func (p *PolicyIndex) GetAkSk(ctx context.Context, ak string) (sk, tenant, app string, ok bool, err error) {
	client, cerr := p.Conn.GetClient(ctx)
	if cerr != nil {
		return "", "", "", false, cerr
	}

	raw, rerr := client.Get(ctx, p.key("aksk", ak)).Result()
	if rerr == redis.Nil {
		return "", "", "", false, nil
	}

	if rerr != nil {
		return "", "", "", false, rerr
	}

	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return "", "", "", false, fmt.Errorf("cache: malformed aksk cache value for %q", ak)
	}

	return parts[0], parts[1], parts[2], true, nil
}

// DeleteAkSk removes the aksk cache entry (on Cert revocation).
func (p *PolicyIndex) DeleteAkSk(ctx context.Context, ak string) error {
	client, err := p.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	return client.Del(ctx, p.key("aksk", ak)).Err()
}

// SetDoubleAuth marks account as having completed the second factor,
// TTL'd to the configured double-auth window.
func (p *PolicyIndex) SetDoubleAuth(ctx context.Context, account string, ttl time.Duration) error {
	client, err := p.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	return client.Set(ctx, p.key("double-auth", account), "1", ttl).Err()
}

// IsDoubleAuthed reports whether the double-auth marker is present.
func (p *PolicyIndex) IsDoubleAuthed(ctx context.Context, account string) (bool, error) {
	client, err := p.Conn.GetClient(ctx)
	if err != nil {
		return false, err
	}

	n, err := client.Exists(ctx, p.key("double-auth", account)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}
