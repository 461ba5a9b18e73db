package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
)

type fakeAuth struct {
	loginErr    error
	logoutErr   error
	profile     domain.Profile
	profileCall atomic.Int32
	release     chan struct{}
	logouts     atomic.Int32
}

func (f *fakeAuth) Login(_ context.Context, creds apiclient.Credentials) (*apiclient.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &apiclient.LoginResult{
		Token:   "token-" + creds.Email,
		Role:    domain.RoleAdmin,
		Profile: domain.Profile{ID: 1, Name: "管理员", Email: creds.Email},
	}, nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.logouts.Add(1)
	return f.logoutErr
}

func (f *fakeAuth) GetProfile(context.Context) (*domain.Profile, error) {
	f.profileCall.Add(1)
	if f.release != nil {
		<-f.release
	}
	p := f.profile
	return &p, nil
}

func newTestManager() (*Manager, *MemoryKV) {
	kv := NewMemoryKV()
	return NewManager(kv, time.Hour), kv
}

func TestRestoreWithoutTokenIsAnonymous(t *testing.T) {
	m, _ := newTestManager()

	s, err := m.Open(context.Background(), "sid")
	require.NoError(t, err)

	cur := s.Current()
	assert.False(t, cur.Authenticated())
	assert.False(t, cur.IsAdmin())
}

func TestLoginPersistsAcrossOpen(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	s, err := m.Open(ctx, "sid")
	require.NoError(t, err)
	_, err = s.Login(ctx, &fakeAuth{}, apiclient.Credentials{Email: "admin@example.com", Password: "x"})
	require.NoError(t, err)

	again, err := m.Open(ctx, "sid")
	require.NoError(t, err)
	cur := again.Current()
	assert.Equal(t, "token-admin@example.com", cur.Token)
	assert.Equal(t, domain.RoleAdmin, cur.Role)
	assert.Equal(t, "管理员", cur.Profile.Name)
	assert.NotZero(t, cur.AvatarVersion)
	assert.Equal(t, cur.Token, again.Token(ctx))
}

func TestLoginFailureLeavesSessionEmpty(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	s, err := m.Open(ctx, "sid")
	require.NoError(t, err)

	_, err = s.Login(ctx, &fakeAuth{loginErr: &apiclient.HTTPError{Status: 422, Message: "密码错误"}}, apiclient.Credentials{})

	require.Error(t, err)
	assert.Equal(t, "密码错误", apiclient.Message(err))
	cur := s.Current()
	assert.False(t, cur.Authenticated())
}

func TestInvalidateClearsTokenAndRoleOnly(t *testing.T) {
	m, kv := newTestManager()
	ctx := context.Background()
	s, err := m.Open(ctx, "sid")
	require.NoError(t, err)
	_, err = s.Login(ctx, &fakeAuth{}, apiclient.Credentials{Email: "a@x.com"})
	require.NoError(t, err)

	require.NoError(t, s.Invalidate(ctx))

	fields, err := kv.Load(ctx, "sid")
	require.NoError(t, err)
	assert.NotContains(t, fields, fieldToken)
	assert.NotContains(t, fields, fieldRole)
	cur := s.Current()
	assert.False(t, cur.Authenticated())
	assert.Empty(t, cur.Role)
}

func TestRefreshBumpsAvatarVersionMonotonically(t *testing.T) {
	m, _ := newTestManager()
	fixed := time.UnixMilli(1000)
	m.now = func() time.Time { return fixed }
	ctx := context.Background()

	s, err := m.Open(ctx, "sid")
	require.NoError(t, err)
	auth := &fakeAuth{profile: domain.Profile{ID: 1, Name: "新名字", ProfileImage: "avatars/new.png"}}
	_, err = s.Login(ctx, auth, apiclient.Credentials{Email: "a@x.com"})
	require.NoError(t, err)
	before := s.Current().AvatarVersion

	after, err := s.Refresh(ctx, auth)
	require.NoError(t, err)

	assert.Greater(t, after.AvatarVersion, before)
	assert.Equal(t, "新名字", after.Profile.Name)
	assert.Equal(t, "avatars/new.png", after.Profile.ProfileImage)
}

func TestConcurrentRefreshesShareOneRequest(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	auth := &fakeAuth{release: make(chan struct{}), profile: domain.Profile{Name: "A"}}

	s, err := m.Open(ctx, "sid")
	require.NoError(t, err)
	_, err = s.Login(ctx, &fakeAuth{}, apiclient.Credentials{Email: "a@x.com"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Refresh(ctx, auth)
		}()
	}
	// 等待第一个请求进入后再放行
	require.Eventually(t, func() bool { return auth.profileCall.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(auth.release)
	wg.Wait()

	assert.Equal(t, int32(1), auth.profileCall.Load())
}

func TestUpdateAfterSuccessMergesPatch(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	s, err := m.Open(ctx, "sid")
	require.NoError(t, err)
	_, err = s.Login(ctx, &fakeAuth{}, apiclient.Credentials{Email: "a@x.com"})
	require.NoError(t, err)
	before := s.Current()

	name := "改名"
	require.NoError(t, s.UpdateAfterSuccess(ctx, ProfilePatch{Name: &name}))

	cur := s.Current()
	assert.Equal(t, "改名", cur.Profile.Name)
	assert.Equal(t, before.Profile.Email, cur.Profile.Email)
	assert.Equal(t, before.AvatarVersion, cur.AvatarVersion)

	image := "avatars/b.png"
	require.NoError(t, s.UpdateAfterSuccess(ctx, ProfilePatch{ProfileImage: &image}))
	assert.Greater(t, s.Current().AvatarVersion, before.AvatarVersion)
}

func TestLogoutAlwaysClearsLocalState(t *testing.T) {
	m, kv := newTestManager()
	ctx := context.Background()
	s, err := m.Open(ctx, "sid")
	require.NoError(t, err)
	_, err = s.Login(ctx, &fakeAuth{}, apiclient.Credentials{Email: "a@x.com"})
	require.NoError(t, err)

	serverErr := &apiclient.HTTPError{Status: 500, Message: "服务器内部错误"}
	auth := &fakeAuth{logoutErr: serverErr}
	err = s.Logout(ctx, auth)

	require.Error(t, err)
	assert.True(t, errors.Is(err, serverErr))
	assert.Equal(t, int32(1), auth.logouts.Load())
	cur := s.Current()
	assert.False(t, cur.Authenticated())
	fields, err := kv.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestLogoutWhenAnonymousSkipsServer(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	s, err := m.Open(ctx, "sid")
	require.NoError(t, err)

	auth := &fakeAuth{}
	require.NoError(t, s.Logout(ctx, auth))
	assert.Zero(t, auth.logouts.Load())
}

func TestMemoryKVExpires(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Now()
	kv.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, kv.Save(ctx, "sid", map[string]string{"a": "1"}, time.Minute))
	fields, err := kv.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "1", fields["a"])

	now = now.Add(2 * time.Minute)
	fields, err = kv.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, fields)
}
