package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/repository"
)

type bookmarkRequest struct {
	Title string `json:"title" validate:"required,max=255"`
	URL   string `json:"url" validate:"required,url"`
}

// 两种书签的列表字段名沿用旧接口
func listKey(kind domain.BookmarkKind) string {
	if kind == domain.BookmarkKindWebsite {
		return "website_url"
	}
	return "form_stack_url"
}

func kindOf(r *http.Request) domain.BookmarkKind {
	return r.Context().Value(KindCtxKey).(domain.BookmarkKind)
}

func (h *Handler) GetAllBookmarks(w http.ResponseWriter, r *http.Request) {
	kind := kindOf(r)

	page, err := h.readPage(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	bookmarks, err := h.repository.GetBookmarks(kind, page, PerPage)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取链接列表成功", map[string]any{listKey(kind): paged(bookmarks.Items, page, bookmarks.Total)})
}

func (h *Handler) CreateBookmark(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	b := &domain.Bookmark{Kind: kindOf(r), Title: req.Title, URL: req.URL}
	if err := h.repository.CreateBookmark(b); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "添加链接成功", map[string]any{"data": b})
}

func (h *Handler) UpdateBookmark(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.notFound(w, r, "链接不存在")
		return
	}

	var req bookmarkRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	b := &domain.Bookmark{ID: id, Kind: kindOf(r), Title: req.Title, URL: req.URL}
	if err := h.repository.UpdateBookmark(b); err != nil {
		switch {
		case repository.IsNotFound(err):
			h.notFound(w, r, "链接不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新链接成功", map[string]any{"data": b})
}

func (h *Handler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.notFound(w, r, "链接不存在")
		return
	}

	if err := h.repository.DeleteBookmark(kindOf(r), id); err != nil {
		switch {
		case repository.IsNotFound(err):
			h.notFound(w, r, "链接不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "删除链接成功", nil)
}
