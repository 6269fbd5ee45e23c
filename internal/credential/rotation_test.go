package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideal-world/bios/internal/core/bioserr"
)

func TestModifySk_RejectsWrongOldSk(t *testing.T) {
	conf := &CertConf{Id: "conf-1", Kind: KindUserPwd, OwnPaths: "t1"}
	confs := &fakeConfRepo{byID: map[string]*CertConf{"conf-1": conf}}
	certs := &fakeCertRepo{byAk: map[string]*Cert{
		"alice|conf-1": {Id: "cert-1", Ak: "alice", Sk: "hunter2", CertConfId: "conf-1", Kind: KindUserPwd, Status: StatusEnabled},
	}}

	r := NewRotator(confs, certs, newFakeLocker())

	err := r.ModifySk(context.Background(), "cert-1", "wrong-old", "Newpass1!")
	require.Error(t, err)

	unauthorized, ok := bioserr.As[bioserr.UnauthorizedError](err)
	require.True(t, ok)
	assert.Equal(t, "401-iam-cert-mismatch", unauthorized.Code)
}

func TestModifySk_SucceedsWithMatchingOldSk(t *testing.T) {
	conf := &CertConf{Id: "conf-1", Kind: KindUserPwd, OwnPaths: "t1", Repeatable: true}
	confs := &fakeConfRepo{byID: map[string]*CertConf{"conf-1": conf}}
	certs := &fakeCertRepo{byAk: map[string]*Cert{
		"alice|conf-1": {Id: "cert-1", Ak: "alice", Sk: "hunter2", CertConfId: "conf-1", Kind: KindUserPwd, Status: StatusEnabled},
	}}

	r := NewRotator(confs, certs, newFakeLocker())
	r.Clock = func() time.Time { return time.Unix(2000, 0) }

	err := r.ModifySk(context.Background(), "cert-1", "hunter2", "Newpass1!")
	require.NoError(t, err)
	assert.Equal(t, 0, certs.resetCnt)
}

func TestModifySk_RestByKindsSkipsOldSkCheckAndResetsFailures(t *testing.T) {
	conf := &CertConf{
		Id: "conf-1", Kind: KindUserPwd, OwnPaths: "t1", Repeatable: true,
		SkLockErrTimes: 3, SkLockCycleSec: 60, SkLockDurationSec: 300,
		RestByKinds: []Kind{KindMailVCode},
	}
	confs := &fakeConfRepo{byID: map[string]*CertConf{"conf-1": conf}}
	certs := &fakeCertRepo{byAk: map[string]*Cert{
		"alice|conf-1": {Id: "cert-1", Ak: "alice", Sk: "hunter2", CertConfId: "conf-1", Kind: KindMailVCode, Status: StatusEnabled},
	}}
	locker := newFakeLocker()
	locker.fails["conf-1|alice"] = 2

	r := NewRotator(confs, certs, locker)

	err := r.ModifySk(context.Background(), "cert-1", "does-not-matter", "Newpass1!")
	require.NoError(t, err)
	assert.Equal(t, 1, certs.resetCnt)
	_, stillFailing := locker.fails["conf-1|alice"]
	assert.False(t, stillFailing)
}

func TestModifySk_RejectsNewSkFailingPasswordPolicy(t *testing.T) {
	conf := &CertConf{Id: "conf-1", Kind: KindUserPwd, OwnPaths: "t1", LenMin: 8, Repeatable: true}
	confs := &fakeConfRepo{byID: map[string]*CertConf{"conf-1": conf}}
	certs := &fakeCertRepo{byAk: map[string]*Cert{
		"alice|conf-1": {Id: "cert-1", Ak: "alice", Sk: "hunter2", CertConfId: "conf-1", Kind: KindUserPwd, Status: StatusEnabled},
	}}

	r := NewRotator(confs, certs, newFakeLocker())

	err := r.ModifySk(context.Background(), "cert-1", "hunter2", "short")
	require.Error(t, err)

	_, ok := bioserr.As[bioserr.ValidationError](err)
	assert.True(t, ok)
}

func TestModifySk_RejectsNewSkFailingSkRule(t *testing.T) {
	conf := &CertConf{Id: "conf-1", Kind: KindUserPwd, OwnPaths: "t1", SkRule: `^[0-9]+$`, Repeatable: true}
	confs := &fakeConfRepo{byID: map[string]*CertConf{"conf-1": conf}}
	certs := &fakeCertRepo{byAk: map[string]*Cert{
		"alice|conf-1": {Id: "cert-1", Ak: "alice", Sk: "hunter2", CertConfId: "conf-1", Kind: KindUserPwd, Status: StatusEnabled},
	}}

	r := NewRotator(confs, certs, newFakeLocker())

	err := r.ModifySk(context.Background(), "cert-1", "hunter2", "Newpass1!")
	require.Error(t, err)

	validationErr, ok := bioserr.As[bioserr.ValidationError](err)
	require.True(t, ok)
	assert.Equal(t, "400-iam-cert-sk-rule-mismatch", validationErr.Code)
}

func TestModifySk_RejectsReusedSkWhenNotRepeatable(t *testing.T) {
	conf := &CertConf{Id: "conf-1", Kind: KindUserPwd, OwnPaths: "t1", Repeatable: false}
	confs := &fakeConfRepo{byID: map[string]*CertConf{"conf-1": conf}}
	certs := &fakeCertRepo{
		byAk: map[string]*Cert{
			"alice|conf-1": {Id: "cert-1", Ak: "alice", Sk: "hunter2", CertConfId: "conf-1", Kind: KindUserPwd, Status: StatusEnabled},
		},
		histories: map[string][]string{"cert-1": {"Newpass1!"}},
	}

	r := NewRotator(confs, certs, newFakeLocker())

	err := r.ModifySk(context.Background(), "cert-1", "hunter2", "Newpass1!")
	require.Error(t, err)

	validationErr, ok := bioserr.As[bioserr.ValidationError](err)
	require.True(t, ok)
	assert.Equal(t, "400-iam-cert-sk-reused", validationErr.Code)
}

func TestModifySk_MissingCertReturns404(t *testing.T) {
	confs := &fakeConfRepo{byID: map[string]*CertConf{}}
	certs := &fakeCertRepo{byAk: map[string]*Cert{}}

	r := NewRotator(confs, certs, newFakeLocker())

	err := r.ModifySk(context.Background(), "missing-cert", "old", "Newpass1!")
	require.Error(t, err)

	_, ok := bioserr.As[bioserr.NotFoundError](err)
	assert.True(t, ok)
}

func TestNewCert_RejectsAkFailingAkRule(t *testing.T) {
	conf := &CertConf{Id: "conf-1", Kind: KindUserPwd, OwnPaths: "t1", AkRule: `^[a-z]+$`}
	certs := &fakeCertRepo{byAk: map[string]*Cert{}}

	r := NewRotator(&fakeConfRepo{byID: map[string]*CertConf{}}, certs, newFakeLocker())

	_, err := r.NewCert(context.Background(), conf, "item-1", "Alice123", "Newpass1!", time.Time{}, time.Time{}, nil)
	require.Error(t, err)

	validationErr, ok := bioserr.As[bioserr.ValidationError](err)
	require.True(t, ok)
	assert.Equal(t, "400-iam-cert-ak-rule-mismatch", validationErr.Code)
}

func TestNewCert_RejectsSkFailingPasswordPolicyWhenSkNeed(t *testing.T) {
	conf := &CertConf{Id: "conf-1", Kind: KindUserPwd, OwnPaths: "t1", SkNeed: true, LenMin: 8}
	certs := &fakeCertRepo{byAk: map[string]*Cert{}}

	r := NewRotator(&fakeConfRepo{byID: map[string]*CertConf{}}, certs, newFakeLocker())

	_, err := r.NewCert(context.Background(), conf, "item-1", "alice", "short", time.Time{}, time.Time{}, nil)
	require.Error(t, err)

	_, ok := bioserr.As[bioserr.ValidationError](err)
	assert.True(t, ok)
}

func TestNewCert_SkShapeIgnoredWhenNotSkNeed(t *testing.T) {
	conf := &CertConf{Id: "conf-1", Kind: KindAkSk, OwnPaths: "t1", SkNeed: false, LenMin: 20}
	certs := &fakeCertRepo{byAk: map[string]*Cert{}}

	r := NewRotator(&fakeConfRepo{byID: map[string]*CertConf{}}, certs, newFakeLocker())
	r.Clock = func() time.Time { return time.Unix(3000, 0) }

	cert, err := r.NewCert(context.Background(), conf, "item-1", "alice", "short", time.Time{}, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "item-1", cert.ItemId)
}

func TestNewCert_DisablesOldestLiveWhenCoexistCapExceeded(t *testing.T) {
	conf := &CertConf{Id: "conf-1", Kind: KindAkSk, OwnPaths: "t1", CoexistNum: 1}
	certs := &fakeCertRepo{byAk: map[string]*Cert{}}
	oldest := &Cert{Id: "cert-old"}
	disabled := false

	r := &Rotator{
		Confs:  &fakeConfRepo{byID: map[string]*CertConf{}},
		Certs: &countingCertRepo{fakeCertRepo: certs, live: 1, disable: func(id string) { disabled = id == "cert-old" }},
		Locker: newFakeLocker(),
		Clock:  time.Now,
	}

	_, err := r.NewCert(context.Background(), conf, "item-1", "alice", "sk", time.Time{}, time.Time{}, func(_ context.Context, _, _ string) (*Cert, error) {
		return oldest, nil
	})
	require.NoError(t, err)
	assert.True(t, disabled)
}

type countingCertRepo struct {
	*fakeCertRepo
	live    int
	disable func(id string)
}

func (c *countingCertRepo) CountLive(_ context.Context, _, _ string) (int, error) { return c.live, nil }
func (c *countingCertRepo) Disable(_ context.Context, id string) error {
	c.disable(id)
	return nil
}
