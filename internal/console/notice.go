package console

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/listing"
	"github.com/sysu-ecnc-dev/info-admin/internal/notice"
)

type noticePage struct {
	Notice  *domain.Notice
	CanEdit bool
	// Content 是编辑框中的内容，保存失败时保留用户输入
	Content string
	Error   string
}

func (s *Server) NoticePage(w http.ResponseWriter, r *http.Request) {
	doc, err := s.notices.Load(r.Context(), clientOf(r).Notices())
	if apiclient.IsUnauthorized(err) {
		s.unauthorized(w, r)
		return
	}

	page := noticePage{Notice: doc, CanEdit: notice.CanEdit(roleOf(r))}
	if err != nil {
		page.Error = apiclient.Message(err)
	} else {
		page.Content = doc.Content
	}
	s.render(w, r, http.StatusOK, "info", "重要通知", page)
}

func (s *Server) SaveNotice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.internalServerError(w, r, err)
		return
	}

	content := r.PostFormValue("content")
	id, _ := strconv.ParseInt(r.PostFormValue("id"), 10, 64)

	err := s.notices.Save(r.Context(), clientOf(r).Notices(), roleOf(r), id, content)
	switch {
	case err == nil:
		s.flash(w, r, listing.NotificationSuccess, "通知已保存")
		s.redirect(w, r, "/info")
	case apiclient.IsUnauthorized(err):
		s.unauthorized(w, r)
	case errors.Is(err, notice.ErrForbidden):
		s.forbidden(w, r)
	default:
		msg := err.Error()
		if !errors.Is(err, notice.ErrEmpty) {
			msg = apiclient.Message(err)
		}
		page := noticePage{
			Notice:  &domain.Notice{ID: id},
			CanEdit: true,
			Content: content,
			Error:   msg,
		}
		s.render(w, r, http.StatusUnprocessableEntity, "info", "重要通知", page)
	}
}
