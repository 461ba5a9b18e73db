package console

import (
	"encoding/gob"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/sysu-ecnc-dev/info-admin/internal/listing"
)

const sidKey = "sid"

func init() {
	// 提示消息通过 cookie 中的 flash 在重定向之间传递
	gob.Register(listing.Notification{})
}

// newCookieStore 没有配置密钥时使用随机密钥，重启后所有浏览器都需要重新登录
func newCookieStore(secret string, maxAge int, secure bool) *sessions.CookieStore {
	hashKey := []byte(secret)
	if len(hashKey) == 0 {
		slog.Warn("未配置 CONSOLE_COOKIE_SECRET，使用随机生成的密钥")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(hashKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func (s *Server) cookie(r *http.Request) *sessions.Session {
	// 签名校验失败时 Get 仍然返回一个新的会话，相当于重新分配会话 ID
	cs, err := s.cookies.Get(r, s.config.Console.CookieName)
	if err != nil {
		slog.Debug("无法解析会话 cookie", "error", err)
	}
	return cs
}

// sessionID 返回浏览器对应的控制台会话 ID，没有时分配一个新的
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	cs := s.cookie(r)
	if sid, ok := cs.Values[sidKey].(string); ok && sid != "" {
		return sid, nil
	}

	sid := uuid.NewString()
	cs.Values[sidKey] = sid
	if err := cs.Save(r, w); err != nil {
		return "", err
	}
	return sid, nil
}

// rotateSessionID 在登录成功后更换会话 ID，防止会话固定
func (s *Server) rotateSessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	cs := s.cookie(r)
	sid := uuid.NewString()
	cs.Values[sidKey] = sid
	if err := cs.Save(r, w); err != nil {
		return "", err
	}
	return sid, nil
}

func (s *Server) flash(w http.ResponseWriter, r *http.Request, kind listing.NotificationKind, msg string) {
	cs := s.cookie(r)
	cs.AddFlash(listing.Notification{Kind: kind, Message: msg})
	if err := cs.Save(r, w); err != nil {
		slog.Error("无法保存提示消息", "error", err)
	}
}

func (s *Server) takeFlashes(w http.ResponseWriter, r *http.Request) []listing.Notification {
	cs := s.cookie(r)
	flashes := cs.Flashes()
	if len(flashes) == 0 {
		return nil
	}
	if err := cs.Save(r, w); err != nil {
		slog.Error("无法清除提示消息", "error", err)
	}

	notes := make([]listing.Notification, 0, len(flashes))
	for _, f := range flashes {
		if n, ok := f.(listing.Notification); ok {
			notes = append(notes, n)
		}
	}
	return notes
}
