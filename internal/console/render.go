package console

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/listing"
	"github.com/sysu-ecnc-dev/info-admin/internal/nav"
	"github.com/sysu-ecnc-dev/info-admin/internal/notice"
)

//go:embed templates
var templateFS embed.FS

// 每个页面和布局、公共片段一起单独解析，页面之间的 content 定义互不覆盖
func (s *Server) parseTemplates() error {
	funcs := template.FuncMap{
		"assetURL": s.api.AssetURL,
		"avatarURL": func(sess domain.Session) string {
			if sess.Profile.ProfileImage == "" {
				return ""
			}
			return s.api.AssetURL(sess.Profile.ProfileImage) + "?v=" + strconv.FormatInt(sess.AvatarVersion, 10)
		},
		"notice": func(content string) template.HTML {
			return template.HTML(notice.Sanitize(content))
		},
		"fieldError": func(errs map[string]string, key string) string {
			return errs[key]
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Local().Format("2006-01-02 15:04")
		},
		"add": func(a, b int) int { return a + b },
	}

	pages, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return err
	}

	s.pages = make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/partials.html", page)
		if err != nil {
			return fmt.Errorf("无法解析模板 %s: %w", page, err)
		}
		name := page[len("templates/pages/") : len(page)-len(".html")]
		s.pages[name] = t
	}
	return nil
}

type pageData struct {
	Title     string
	Active    string
	Session   domain.Session
	Menu      []nav.Entry
	CanManage bool
	Notes     []listing.Notification
	Data      any
}

// render 渲染页面，先写到缓冲区，模板出错时不会输出半个页面
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any, notes ...listing.Notification) {
	t, ok := s.pages[name]
	if !ok {
		s.internalServerError(w, r, fmt.Errorf("模板 %s 不存在", name))
		return
	}

	pd := pageData{
		Title:  title,
		Active: r.URL.Path,
		Data:   data,
	}
	if store, ok := r.Context().Value(StoreCtxKey).(interface{ Current() domain.Session }); ok {
		pd.Session = store.Current()
		if pd.Session.Authenticated() {
			pd.Menu = s.menu.Visible(pd.Session.Role)
			pd.CanManage = nav.CanManage(pd.Session.Role)
		}
	}
	pd.Notes = append(s.takeFlashes(w, r), notes...)

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", pd); err != nil {
		s.internalServerError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("无法写入响应", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) logInternalServerError(r *http.Request, err error) {
	slog.Error("服务器内部错误", "method", r.Method, "path", r.URL.Path, "error", err)
}

// internalServerError 在外壳中渲染错误页面，不影响导航
func (s *Server) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	s.logInternalServerError(r, err)

	t, ok := s.pages["error"]
	if !ok {
		http.Error(w, "服务器内部错误", http.StatusInternalServerError)
		return
	}

	pd := pageData{Title: "出错了"}
	if store, ok := r.Context().Value(StoreCtxKey).(interface{ Current() domain.Session }); ok {
		pd.Session = store.Current()
		if pd.Session.Authenticated() {
			pd.Menu = s.menu.Visible(pd.Session.Role)
		}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", pd); err != nil {
		http.Error(w, "服务器内部错误", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = buf.WriteTo(w)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "notfound", "页面不存在", nil)
}

func (s *Server) forbidden(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusForbidden, "forbidden", "无权访问", nil)
}

// redirect 用于 POST 之后跳转，避免刷新页面重复提交
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}
