package console

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/listing"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (s *Server) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		slog.Info("已处理请求", "status", rw.StatusCode, "ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", duration)
	})
}

// recoverer 把渲染过程中的 panic 转成错误页面，导航仍然可用
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				stackTrace := string(debug.Stack())
				fmt.Print(stackTrace) // 这里如果用 slog 的话会很乱
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// identity 根据 cookie 中的会话 ID 恢复登录状态，并把绑定了令牌的 API 客户端附在 context 中
func (s *Server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, err := s.sessionID(w, r)
		if err != nil {
			s.internalServerError(w, r, err)
			return
		}

		store, err := s.sessions.Open(r.Context(), sid)
		if err != nil {
			s.internalServerError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), StoreCtxKey, store)
		ctx = context.WithValue(ctx, ClientCtxKey, s.api.WithTokens(store))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cur := storeOf(r).Current(); !cur.Authenticated() {
			s.redirect(w, r, "/login")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// redirectAuthenticated 让已登录的用户跳过登录相关的页面
func (s *Server) redirectAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cur := storeOf(r).Current(); cur.Authenticated() {
			s.redirect(w, r, s.menu.Home(cur.Role))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// unauthorized 在令牌失效后调用，此时会话已经被 API 客户端清除
func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request) {
	store := storeOf(r)
	s.screens.Evict(store.ID())
	slog.Info("会话已失效", "sid", store.ID(), "path", r.URL.Path)
	s.flash(w, r, listing.NotificationError, apiclient.ErrUnauthorized.Error())
	s.redirect(w, r, "/login")
}
