package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"golang.org/x/sync/singleflight"
)

// 与原先浏览器本地存储中的键保持一致
const (
	fieldToken         = "authToken"
	fieldRole          = "role"
	fieldUser          = "user"
	fieldAvatarVersion = "avatarVersion"
)

// Authenticator 是会话需要用到的认证接口，由 *apiclient.Client 实现
type Authenticator interface {
	Login(ctx context.Context, creds apiclient.Credentials) (*apiclient.LoginResult, error)
	Logout(ctx context.Context) error
	GetProfile(ctx context.Context) (*domain.Profile, error)
}

// Manager 创建绑定到浏览器会话的 Store
type Manager struct {
	kv        KV
	ttl       time.Duration
	refreshes singleflight.Group
	now       func() time.Time
}

func NewManager(kv KV, ttl time.Duration) *Manager {
	return &Manager{kv: kv, ttl: ttl, now: time.Now}
}

// Open 打开并恢复一个会话
func (m *Manager) Open(ctx context.Context, id string) (*Store, error) {
	s := &Store{m: m, id: id}
	if err := s.Restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Store 是一个浏览器会话的登录身份，所有读写都经过它
type Store struct {
	m  *Manager
	id string

	mu    sync.RWMutex
	state domain.Session
}

func (s *Store) ID() string {
	return s.id
}

// Current 返回当前会话的快照
func (s *Store) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Restore 从持久化存储中恢复会话，没有令牌时视为未登录
func (s *Store) Restore(ctx context.Context) error {
	fields, err := s.m.kv.Load(ctx, s.id)
	if err != nil {
		return fmt.Errorf("无法读取会话: %w", err)
	}

	state := domain.Session{
		Token: fields[fieldToken],
		Role:  domain.Role(fields[fieldRole]),
	}
	if raw := fields[fieldUser]; raw != "" {
		// 缓存的个人信息损坏时忽略，下一次刷新会覆盖
		_ = json.Unmarshal([]byte(raw), &state.Profile)
	}
	if v, err := strconv.ParseInt(fields[fieldAvatarVersion], 10, 64); err == nil {
		state.AvatarVersion = v
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return nil
}

func (s *Store) Login(ctx context.Context, auth Authenticator, creds apiclient.Credentials) (*domain.Session, error) {
	res, err := auth.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.state = domain.Session{
		Token:         res.Token,
		Role:          res.Role,
		Profile:       res.Profile,
		AvatarVersion: s.nextAvatarVersion(),
	}
	state := s.state
	s.mu.Unlock()

	if err := s.persist(ctx, state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Refresh 从服务端重新获取个人信息并合并到会话中。
// 同一会话的并发刷新只会发出一次请求，结果以最后一次写入为准。
func (s *Store) Refresh(ctx context.Context, auth Authenticator) (*domain.Session, error) {
	v, err, _ := s.m.refreshes.Do(s.id, func() (any, error) {
		return auth.GetProfile(ctx)
	})
	if err != nil {
		return nil, err
	}
	profile := v.(*domain.Profile)

	s.mu.Lock()
	if !s.state.Authenticated() {
		// 刷新期间会话已经失效，不再写回
		s.mu.Unlock()
		return nil, apiclient.ErrUnauthorized
	}
	s.state.Profile = *profile
	s.state.AvatarVersion = s.nextAvatarVersion()
	state := s.state
	s.mu.Unlock()

	if err := s.persist(ctx, state); err != nil {
		return nil, err
	}
	return &state, nil
}

type ProfilePatch struct {
	Name         *string
	Email        *string
	ProfileImage *string
}

// UpdateAfterSuccess 在服务端修改成功之后合并本地的个人信息，不做任何校验
func (s *Store) UpdateAfterSuccess(ctx context.Context, patch ProfilePatch) error {
	s.mu.Lock()
	if patch.Name != nil {
		s.state.Profile.Name = *patch.Name
	}
	if patch.Email != nil {
		s.state.Profile.Email = *patch.Email
	}
	if patch.ProfileImage != nil {
		s.state.Profile.ProfileImage = *patch.ProfileImage
		s.state.AvatarVersion = s.nextAvatarVersion()
	}
	state := s.state
	s.mu.Unlock()

	return s.persist(ctx, state)
}

// Logout 通知服务端登出，无论服务端是否成功都会清除本地会话，
// 服务端的错误会返回给调用方
func (s *Store) Logout(ctx context.Context, auth Authenticator) error {
	var serverErr error
	if current := s.Current(); current.Authenticated() {
		serverErr = auth.Logout(ctx)
	}

	s.mu.Lock()
	s.state = domain.Session{}
	s.mu.Unlock()

	if err := s.m.kv.Remove(ctx, s.id); err != nil {
		return errors.Join(serverErr, fmt.Errorf("无法清除会话: %w", err))
	}
	if serverErr != nil && !apiclient.IsUnauthorized(serverErr) {
		return fmt.Errorf("服务端登出失败: %w", serverErr)
	}
	return nil
}

// Token 实现 apiclient.TokenSource
func (s *Store) Token(context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// Invalidate 实现 apiclient.TokenSource，收到 401 时清除令牌和角色
func (s *Store) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.state.Token = ""
	s.state.Role = ""
	s.mu.Unlock()

	return s.m.kv.Remove(ctx, s.id, fieldToken, fieldRole)
}

// 调用方需要持有写锁
func (s *Store) nextAvatarVersion() int64 {
	return max(s.state.AvatarVersion+1, s.m.now().UnixMilli())
}

func (s *Store) persist(ctx context.Context, state domain.Session) error {
	user, err := json.Marshal(state.Profile)
	if err != nil {
		return err
	}

	fields := map[string]string{
		fieldToken:         state.Token,
		fieldRole:          string(state.Role),
		fieldUser:          string(user),
		fieldAvatarVersion: strconv.FormatInt(state.AvatarVersion, 10),
	}
	if err := s.m.kv.Save(ctx, s.id, fields, s.m.ttl); err != nil {
		return fmt.Errorf("无法保存会话: %w", err)
	}
	return nil
}
