package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/notice"
	"github.com/sysu-ecnc-dev/info-admin/internal/repository"
)

type noticeRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *Handler) readNotice(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req noticeRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return "", false
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return "", false
	}
	if notice.IsEmpty(req.Content) {
		h.fieldError(w, r, "content", "通知内容不能为空")
		return "", false
	}
	return req.Content, true
}

func (h *Handler) GetAllNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := h.repository.GetAllNotices()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取通知成功", map[string]any{"info": notices})
}

// CreateNotice 只允许存在一份通知，已经存在时返回冲突
func (h *Handler) CreateNotice(w http.ResponseWriter, r *http.Request) {
	content, ok := h.readNotice(w, r)
	if !ok {
		return
	}

	notices, err := h.repository.GetAllNotices()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if len(notices) > 0 {
		h.errorResponse(w, r, http.StatusConflict, "通知已存在")
		return
	}

	n := &domain.Notice{Content: content}
	if err := h.repository.CreateNotice(n); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建通知成功", map[string]any{"data": n})
}

func (h *Handler) UpdateNotice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.notFound(w, r, "通知不存在")
		return
	}

	content, ok := h.readNotice(w, r)
	if !ok {
		return
	}

	n := &domain.Notice{ID: id, Content: content}
	if err := h.repository.UpdateNotice(n); err != nil {
		switch {
		case repository.IsNotFound(err):
			h.notFound(w, r, "通知不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新通知成功", map[string]any{"data": n})
}
