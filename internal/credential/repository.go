package credential

import "context"

// ConfRepository stores CertConf rows.
type ConfRepository interface {
	FindByKindSupplierScope(ctx context.Context, kind Kind, supplier, relItemScope string) (*CertConf, error)
	FindByID(ctx context.Context, id string) (*CertConf, error)
	Insert(ctx context.Context, conf *CertConf) error
	Update(ctx context.Context, id string, patch map[string]any) error
}

// CertRepository stores Cert rows and the sk-history table used to
// enforce Repeatable=false (spec.md §4.2's "Rotation").
type CertRepository interface {
	FindByAkConf(ctx context.Context, ak, certConfID string) (*Cert, error)
	FindByID(ctx context.Context, id string) (*Cert, error)
	CountLive(ctx context.Context, itemID, certConfID string) (int, error)
	Insert(ctx context.Context, cert *Cert) error
	UpdateSk(ctx context.Context, id, newSkOrHash string, updatedAt int64) error
	RecordSkHistory(ctx context.Context, certID, skOrHash string) error
	SkInHistory(ctx context.Context, certID, skOrHash string) (bool, error)
	ResetFailures(ctx context.Context, certID string) error
	Disable(ctx context.Context, id string) error
}

// Locker is the narrow cache contract the verifier needs: the
// lock/fail/vcode keyspace of spec.md §6, backed by Redis scripted
// atomic updates in internal/cache.
type Locker interface {
	// IsLocked reports whether lock:{conf}:{ak} currently exists.
	IsLocked(ctx context.Context, confID, ak string) (bool, error)
	// Lock sets lock:{conf}:{ak} with the given TTL.
	Lock(ctx context.Context, confID, ak string, ttl int) error
	// IncrFailure atomically increments fail:{conf}:{ak} (creating it
	// with the given TTL if absent) and returns the new count.
	IncrFailure(ctx context.Context, confID, ak string, ttlSec int) (int, error)
	// ResetFailure deletes fail:{conf}:{ak}.
	ResetFailure(ctx context.Context, confID, ak string) error
	// SetVCode stores vcode:{conf}:{ak} = code with the given TTL.
	SetVCode(ctx context.Context, confID, ak, code string, ttlSec int) error
	// ConsumeVCode atomically reads and deletes vcode:{conf}:{ak},
	// returning ("", false) if absent.
	ConsumeVCode(ctx context.Context, confID, ak string) (string, bool, error)
}

// AuditSink is the narrow C7 contract the verifier uses to emit
// LoginSuccess records (spec.md §4.2 step 5).
type AuditSink interface {
	Append(ctx context.Context, tag, key, op, content string) error
}
