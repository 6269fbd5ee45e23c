package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideal-world/bios/internal/core/bioserr"
)

type fakeConfRepo struct {
	byID map[string]*CertConf
}

func (f *fakeConfRepo) FindByKindSupplierScope(_ context.Context, kind Kind, supplier, relItemScope string) (*CertConf, error) {
	for _, c := range f.byID {
		if c.Kind == kind && c.Supplier == supplier && c.OwnPaths == relItemScope {
			return c, nil
		}
	}

	return nil, nil
}

func (f *fakeConfRepo) FindByID(_ context.Context, id string) (*CertConf, error) { return f.byID[id], nil }
func (f *fakeConfRepo) Insert(_ context.Context, conf *CertConf) error           { f.byID[conf.Id] = conf; return nil }
func (f *fakeConfRepo) Update(_ context.Context, id string, patch map[string]any) error {
	return nil
}

type fakeCertRepo struct {
	byAk      map[string]*Cert
	resetCnt  int
	histories map[string][]string
}

func (f *fakeCertRepo) FindByAkConf(_ context.Context, ak, certConfID string) (*Cert, error) {
	return f.byAk[ak+"|"+certConfID], nil
}
func (f *fakeCertRepo) FindByID(_ context.Context, id string) (*Cert, error) {
	for _, c := range f.byAk {
		if c.Id == id {
			return c, nil
		}
	}
	return nil, nil
}
func (f *fakeCertRepo) CountLive(_ context.Context, itemID, certConfID string) (int, error) { return 0, nil }
func (f *fakeCertRepo) Insert(_ context.Context, cert *Cert) error                           { return nil }
func (f *fakeCertRepo) UpdateSk(_ context.Context, id, newSkOrHash string, updatedAt int64) error {
	return nil
}
func (f *fakeCertRepo) RecordSkHistory(_ context.Context, certID, skOrHash string) error {
	if f.histories == nil {
		f.histories = map[string][]string{}
	}
	f.histories[certID] = append(f.histories[certID], skOrHash)
	return nil
}
func (f *fakeCertRepo) SkInHistory(_ context.Context, certID, skOrHash string) (bool, error) {
	for _, h := range f.histories[certID] {
		if h == skOrHash {
			return true, nil
		}
	}
	return false, nil
}
func (f *fakeCertRepo) ResetFailures(_ context.Context, certID string) error { f.resetCnt++; return nil }
func (f *fakeCertRepo) Disable(_ context.Context, id string) error          { return nil }

type fakeLocker struct {
	locked map[string]bool
	fails  map[string]int
	vcodes map[string]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{locked: map[string]bool{}, fails: map[string]int{}, vcodes: map[string]string{}}
}

func (f *fakeLocker) IsLocked(_ context.Context, confID, ak string) (bool, error) {
	return f.locked[confID+"|"+ak], nil
}
func (f *fakeLocker) Lock(_ context.Context, confID, ak string, ttl int) error {
	f.locked[confID+"|"+ak] = true
	return nil
}
func (f *fakeLocker) IncrFailure(_ context.Context, confID, ak string, ttlSec int) (int, error) {
	key := confID + "|" + ak
	f.fails[key]++
	return f.fails[key], nil
}
func (f *fakeLocker) ResetFailure(_ context.Context, confID, ak string) error {
	delete(f.fails, confID+"|"+ak)
	return nil
}
func (f *fakeLocker) SetVCode(_ context.Context, confID, ak, code string, ttlSec int) error {
	f.vcodes[confID+"|"+ak] = code
	return nil
}
func (f *fakeLocker) ConsumeVCode(_ context.Context, confID, ak string) (string, bool, error) {
	key := confID + "|" + ak
	code, ok := f.vcodes[key]
	delete(f.vcodes, key)
	return code, ok, nil
}

type fakeAuditSink struct {
	appended int
}

func (f *fakeAuditSink) Append(_ context.Context, tag, key, op, content string) error {
	f.appended++
	return nil
}

func TestVerify_SucceedsOnMatchingPassword(t *testing.T) {
	conf := &CertConf{Id: "conf-1", Kind: KindUserPwd, Supplier: "", OwnPaths: "t1"}
	confs := &fakeConfRepo{byID: map[string]*CertConf{"conf-1": conf}}
	certs := &fakeCertRepo{byAk: map[string]*Cert{
		"alice|conf-1": {Id: "cert-1", Ak: "alice", Sk: "hunter2", CertConfId: "conf-1", Status: StatusEnabled},
	}}
	locker := newFakeLocker()
	audit := &fakeAuditSink{}

	v := NewVerifier(confs, certs, locker, audit)
	v.Clock = func() time.Time { return time.Unix(1000, 0) }

	cert, err := v.Verify(context.Background(), KindUserPwd, "", "t1", "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "cert-1", cert.Id)
	assert.Equal(t, 1, audit.appended)
}

func TestVerify_WrongPasswordReturnsGeneric401(t *testing.T) {
	conf := &CertConf{Id: "conf-1", Kind: KindUserPwd, OwnPaths: "t1"}
	confs := &fakeConfRepo{byID: map[string]*CertConf{"conf-1": conf}}
	certs := &fakeCertRepo{byAk: map[string]*Cert{
		"alice|conf-1": {Id: "cert-1", Ak: "alice", Sk: "hunter2", CertConfId: "conf-1", Status: StatusEnabled},
	}}
	locker := newFakeLocker()

	v := NewVerifier(confs, certs, locker, nil)

	_, err := v.Verify(context.Background(), KindUserPwd, "", "t1", "alice", "wrong")
	require.Error(t, err)

	unauthorized, ok := bioserr.As[bioserr.UnauthorizedError](err)
	require.True(t, ok)
	assert.Equal(t, "401-iam-cert-mismatch", unauthorized.Code)
}

func TestVerify_LocksAfterBudgetExhausted(t *testing.T) {
	conf := &CertConf{
		Id: "conf-1", Kind: KindUserPwd, OwnPaths: "t1",
		SkLockErrTimes: 3, SkLockCycleSec: 60, SkLockDurationSec: 300,
	}
	confs := &fakeConfRepo{byID: map[string]*CertConf{"conf-1": conf}}
	certs := &fakeCertRepo{byAk: map[string]*Cert{
		"alice|conf-1": {Id: "cert-1", Ak: "alice", Sk: "hunter2", CertConfId: "conf-1", Status: StatusEnabled},
	}}
	locker := newFakeLocker()

	v := NewVerifier(confs, certs, locker, nil)

	for i := 0; i < 3; i++ {
		_, err := v.Verify(context.Background(), KindUserPwd, "", "t1", "alice", "wrong")
		require.Error(t, err)
	}

	// Fourth attempt, even with the correct password, is rejected
	// because the lock marker is now set (P4).
	_, err := v.Verify(context.Background(), KindUserPwd, "", "t1", "alice", "hunter2")
	require.Error(t, err)

	locked, ok := bioserr.As[bioserr.LockedError](err)
	require.True(t, ok)
	assert.Equal(t, "423-iam-cert-locked", locked.Code)
}

func TestVerify_MissingCertConfReturns404(t *testing.T) {
	confs := &fakeConfRepo{byID: map[string]*CertConf{}}
	certs := &fakeCertRepo{byAk: map[string]*Cert{}}
	locker := newFakeLocker()

	v := NewVerifier(confs, certs, locker, nil)

	_, err := v.Verify(context.Background(), KindUserPwd, "", "t1", "alice", "hunter2")
	require.Error(t, err)

	_, ok := bioserr.As[bioserr.NotFoundError](err)
	assert.True(t, ok)
}

func TestVerify_OutOfValidityWindowRejected(t *testing.T) {
	conf := &CertConf{Id: "conf-1", Kind: KindUserPwd, OwnPaths: "t1"}
	confs := &fakeConfRepo{byID: map[string]*CertConf{"conf-1": conf}}
	certs := &fakeCertRepo{byAk: map[string]*Cert{
		"alice|conf-1": {
			Id: "cert-1", Ak: "alice", Sk: "hunter2", CertConfId: "conf-1", Status: StatusEnabled,
			ValidEnd: time.Unix(500, 0),
		},
	}}
	locker := newFakeLocker()

	v := NewVerifier(confs, certs, locker, nil)
	v.Clock = func() time.Time { return time.Unix(1000, 0) }

	_, err := v.Verify(context.Background(), KindUserPwd, "", "t1", "alice", "hunter2")
	require.Error(t, err)

	_, ok := bioserr.As[bioserr.UnauthorizedError](err)
	assert.True(t, ok)
}
