package console

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/form"
	"github.com/sysu-ecnc-dev/info-admin/internal/listing"
)

func postValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

func usersScreen() *screen[domain.User, form.UserForm] {
	return &screen[domain.User, form.UserForm]{
		path:     "/users-list",
		title:    "用户管理",
		template: "users",
		options: listing.Options[domain.User]{
			Noun: "用户",
			ID:   func(u domain.User) int64 { return u.ID },
			SearchFields: func(u domain.User) []string {
				return []string{u.Name, u.Email, u.Phone, string(u.Status)}
			},
		},
		spec: form.UserSpec(),
		backend: func(c *apiclient.Client) listing.Backend[domain.User] {
			return c.Users()
		},
		payload: func(f form.UserForm) any { return f.Payload() },
		parse: func(r *http.Request, cur form.UserForm) (form.UserForm, map[string]string, error) {
			if err := r.ParseForm(); err != nil {
				return cur, nil, err
			}
			return form.UserForm{
				Name:     postValue(r, "name"),
				Email:    postValue(r, "email"),
				Phone:    postValue(r, "phone"),
				Status:   domain.UserStatus(postValue(r, "status")),
				Password: r.PostFormValue("password"),
			}, nil, nil
		},
		withPassword: func(f form.UserForm, password string) form.UserForm {
			f.Password = password
			return f
		},
		created: sendWelcomeMail,
	}
}

// sendWelcomeMail 把新用户的初始密码通过邮件队列发给本人，发送失败不影响已经创建的用户
func sendWelcomeMail(ctx context.Context, s *Server, st *screenState[domain.User, form.UserForm], f form.UserForm) {
	if s.mail == nil || f.Password == "" {
		return
	}

	msg := domain.MailMessage{
		Type: domain.MailTypeCreateUser,
		To:   f.Email,
		Data: domain.CreateUserMailData{
			Name:     f.Name,
			Email:    f.Email,
			Password: f.Password,
		},
	}
	if err := s.mail.Publish(ctx, msg); err != nil {
		slog.Error("无法发送新用户邮件", "email", f.Email, "error", err)
		st.Notify(listing.NotificationError, "用户已添加，但通知邮件发送失败")
	}
}

func bookmarksScreen(kind domain.BookmarkKind) *screen[domain.Bookmark, form.BookmarkForm] {
	sc := &screen[domain.Bookmark, form.BookmarkForm]{
		path:     "/formstack-list",
		title:    "表单链接",
		template: "bookmarks",
		options: listing.Options[domain.Bookmark]{
			Noun: "表单链接",
			ID:   func(b domain.Bookmark) int64 { return b.ID },
			SearchFields: func(b domain.Bookmark) []string {
				return []string{b.Title, b.URL}
			},
		},
		spec: form.BookmarkSpec(),
		backend: func(c *apiclient.Client) listing.Backend[domain.Bookmark] {
			return c.Bookmarks(kind)
		},
		payload: func(f form.BookmarkForm) any { return f.Payload() },
		parse: func(r *http.Request, cur form.BookmarkForm) (form.BookmarkForm, map[string]string, error) {
			if err := r.ParseForm(); err != nil {
				return cur, nil, err
			}
			return form.BookmarkForm{
				Title: postValue(r, "title"),
				URL:   postValue(r, "url"),
			}, nil, nil
		},
	}
	if kind == domain.BookmarkKindWebsite {
		sc.path = "/website-list"
		sc.title = "网站链接"
		sc.options.Noun = "网站链接"
	}
	return sc
}

// 超过这个大小的表单内容会暂存到磁盘
const uploadMemory = 8 << 20

func uploadsScreen() *screen[domain.Upload, form.UploadForm] {
	return &screen[domain.Upload, form.UploadForm]{
		path:     "/uploads",
		title:    "文件上传",
		template: "uploads",
		options: listing.Options[domain.Upload]{
			Noun: "文件",
			ID:   func(u domain.Upload) int64 { return u.ID },
			SearchFields: func(u domain.Upload) []string {
				return []string{u.Title}
			},
		},
		spec: form.UploadSpec(),
		backend: func(c *apiclient.Client) listing.Backend[domain.Upload] {
			return c.Uploads()
		},
		payload: func(f form.UploadForm) any { return f.Payload() },
		parse:   parseUploadForm,
	}
}

// bodyTooLarge 判断错误是否来自 RequestSize 对请求体的限制
func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// 请求体过大时表单没有被读取，沿用当前内容但不保留文件
func rejectUpload(cur form.UploadForm) form.UploadForm {
	cur.File = nil
	return cur
}

// parseUploadForm 没有选择新文件时沿用表单中已经通过校验的文件
func parseUploadForm(r *http.Request, cur form.UploadForm) (form.UploadForm, map[string]string, error) {
	if r.ContentLength > domain.UploadMaxRequestSize {
		return rejectUpload(cur), map[string]string{"pdf": form.ErrFileTooLarge.Error()}, nil
	}
	if err := r.ParseMultipartForm(uploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		if bodyTooLarge(err) {
			return rejectUpload(cur), map[string]string{"pdf": form.ErrFileTooLarge.Error()}, nil
		}
		return cur, nil, err
	}

	f := form.UploadForm{
		Title:   strings.TrimSpace(r.FormValue("title")),
		File:    cur.File,
		Current: cur.Current,
	}

	file, header, err := r.FormFile("pdf")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return f, nil, nil
	case err != nil:
		return cur, nil, err
	}
	defer file.Close()

	if header.Size > domain.UploadMaxFileSize {
		f.File = nil
		return f, map[string]string{"pdf": form.ErrFileTooLarge.Error()}, nil
	}

	data, err := io.ReadAll(io.LimitReader(file, domain.UploadMaxFileSize+1))
	if err != nil {
		return cur, nil, err
	}

	checked, err := form.CheckPDF(header.Filename, data)
	if err != nil {
		f.File = nil
		return f, map[string]string{"pdf": err.Error()}, nil
	}
	f.File = checked
	return f, nil, nil
}
