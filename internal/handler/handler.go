package handler

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/info-admin/internal/config"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/repository"
)

// MailPublisher 把邮件交给邮件 worker 发送
type MailPublisher interface {
	Publish(ctx context.Context, msg domain.MailMessage) error
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	mail        MailPublisher
	redisClient *redis.Client
	storage     *Storage

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, mail MailPublisher, rdb *redis.Client) (*Handler, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, err
	}

	storage, err := NewStorage(cfg.Storage.Dir)
	if err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		mail:        mail,
		redisClient: rdb,
		storage:     storage,

		Mux: chi.NewRouter(),
	}, nil
}

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, err
	}

	// 字段错误的键使用 json 标签，与请求体中的字段名保持一致
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return validate, trans, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 上传的文件和头像
	h.Mux.Handle("/storage/*", http.StripPrefix("/storage/", h.storage.FileServer()))

	h.Mux.Route("/admin", func(r chi.Router) {
		// 认证相关
		r.Post("/login", h.Login)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/verify-user", h.VerifyUser)
		r.Post("/reset-password", h.ResetPassword)

		// 以下 API 必须要在登录后才允许调用
		r.Group(func(r chi.Router) {
			r.Use(h.auth)
			r.Post("/logout", h.Logout)

			r.Route("/profile", func(r chi.Router) {
				r.Use(h.myInfo)
				r.Get("/", h.GetMyInfo)
				r.Post("/update", h.UpdateMyInfo)
				r.With(limitUpload).Post("/image", h.UpdateMyProfileImage)
				r.Post("/change-password", h.UpdateMyPassword)
			})

			// 所有登录用户都可以查看列表，只有管理员可以修改
			r.Route("/user", func(r chi.Router) {
				r.Post("/showall", h.GetAllUsers)
				r.Group(func(r chi.Router) {
					r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
					r.Post("/create", h.CreateUser)
					r.With(h.userInfo).Post("/update/{id}", h.UpdateUser)
					r.With(h.userInfo, h.preventOperateInitialAdmin).Post("/destroy/{id}", h.DeleteUser)
				})
			})

			r.Route("/form-stack-url", h.bookmarkRoutes(domain.BookmarkKindForm))
			r.Route("/website-url", h.bookmarkRoutes(domain.BookmarkKindWebsite))

			r.Route("/upload", func(r chi.Router) {
				r.Post("/showall", h.GetAllUploads)
				r.Group(func(r chi.Router) {
					r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
					r.With(limitUpload).Post("/create", h.CreateUpload)
					r.With(limitUpload).Post("/update/{id}", h.UpdateUpload)
					r.Post("/destroy/{id}", h.DeleteUpload)
				})
			})

			r.Route("/info", func(r chi.Router) {
				r.Post("/showall", h.GetAllNotices)
				r.Group(func(r chi.Router) {
					r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
					r.Post("/create", h.CreateNotice)
					r.Post("/update/{id}", h.UpdateNotice)
				})
			})
		})
	})
}

func (h *Handler) bookmarkRoutes(kind domain.BookmarkKind) func(r chi.Router) {
	return func(r chi.Router) {
		r.Use(h.bookmarkKind(kind))
		r.Post("/showall", h.GetAllBookmarks)
		r.Group(func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
			r.Post("/create", h.CreateBookmark)
			r.Post("/update/{id}", h.UpdateBookmark)
			r.Post("/destroy/{id}", h.DeleteBookmark)
		})
	}
}
