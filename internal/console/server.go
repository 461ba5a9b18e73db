package console

import (
	"context"
	"html/template"
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/config"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/form"
	"github.com/sysu-ecnc-dev/info-admin/internal/listing"
	"github.com/sysu-ecnc-dev/info-admin/internal/nav"
	"github.com/sysu-ecnc-dev/info-admin/internal/notice"
	"github.com/sysu-ecnc-dev/info-admin/internal/session"
)

// MailPublisher 把邮件任务放进队列，*mailqueue.Publisher 实现了它
type MailPublisher interface {
	Publish(ctx context.Context, msg domain.MailMessage) error
}

// Server 是管理后台的页面服务，页面状态保存在服务端，浏览器只持有会话 cookie
type Server struct {
	config    *config.Config
	api       *apiclient.Client
	sessions  *session.Manager
	cookies   *sessions.CookieStore
	screens   *listing.Registry
	menu      *nav.Menu
	validator *form.Validator
	notices   *notice.Editor
	mail      MailPublisher
	clock     clock.Clock
	pages     map[string]*template.Template

	Mux *chi.Mux
}

// NewServer 创建页面服务，mail 为 nil 时不发送新用户邮件
func NewServer(cfg *config.Config, api *apiclient.Client, mgr *session.Manager, screens *listing.Registry, mail MailPublisher, clk clock.Clock) (*Server, error) {
	menu, err := nav.Load()
	if err != nil {
		return nil, err
	}

	v, err := form.NewValidator()
	if err != nil {
		return nil, err
	}

	if clk == nil {
		clk = clock.New()
	}

	s := &Server{
		config:    cfg,
		api:       api,
		sessions:  mgr,
		cookies:   newCookieStore(cfg.Console.CookieSecret, cfg.Console.SessionTTL, cfg.Environment == "production"),
		screens:   screens,
		menu:      menu,
		validator: v,
		notices:   notice.NewEditor(cfg.Notice.DefaultContent),
		mail:      mail,
		clock:     clk,

		Mux: chi.NewRouter(),
	}
	if err := s.parseTemplates(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) RegisterRoutes() {
	s.Mux.Use(s.logger)
	s.Mux.Use(s.recoverer)

	s.Mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.Mux.Handle("/metrics", promhttp.Handler())

	s.Mux.Group(func(r chi.Router) {
		r.Use(s.identity)
		r.NotFound(s.notFound)

		// 登录前的页面
		r.Group(func(r chi.Router) {
			r.Use(s.redirectAuthenticated)
			r.Get("/login", s.LoginPage)
			r.Post("/login", s.Login)
			r.Get("/forgot-password", s.ForgotPasswordPage)
			r.Post("/forgot-password", s.ForgotPassword)
			r.Get("/verify-user", s.VerifyUserPage)
			r.Post("/verify-user", s.VerifyUser)
			r.Get("/reset-password", s.ResetPasswordPage)
			r.Post("/reset-password", s.ResetPassword)
		})

		// 以下页面必须在登录后才能访问，菜单中 adminOnly 的页面由 Guard 拦截
		r.Group(func(r chi.Router) {
			r.Use(s.requireLogin)
			r.Use(s.menu.Guard(roleOf, s.forbidden))

			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				s.redirect(w, r, s.menu.Home(roleOf(r)))
			})
			r.Get("/logout", s.LogoutPage)
			r.Post("/logout", s.Logout)

			mountList(s, r, usersScreen())
			mountList(s, r, bookmarksScreen(domain.BookmarkKindForm))
			mountList(s, r, bookmarksScreen(domain.BookmarkKindWebsite))
			mountList(s, r, uploadsScreen())

			r.Route("/info", func(r chi.Router) {
				r.Get("/", s.NoticePage)
				r.With(nav.RequireAdmin(roleOf, s.forbidden)).Post("/", s.SaveNotice)
			})

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", s.ProfilePage)
				r.Post("/", s.UpdateProfile)
				r.With(middleware.RequestSize(domain.UploadMaxRequestSize)).Post("/image", s.UpdateProfileImage)
				r.Post("/password", s.ChangePassword)
				r.Post("/refresh", s.RefreshProfile)
			})
		})
	})
}

