package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/info-admin/internal/pagination"
)

// PerPage 是所有列表接口每页返回的记录数
const PerPage = 10

type pageMeta struct {
	CurrentPage int  `json:"current_page"`
	LastPage    int  `json:"last_page"`
	PerPage     int  `json:"per_page"`
	Total       int  `json:"total"`
	From        *int `json:"from"`
	To          *int `json:"to"`
}

func newPageMeta(page, perPage, total int) pageMeta {
	lastPage := max((total+perPage-1)/perPage, 1)
	meta := pageMeta{
		CurrentPage: page,
		LastPage:    lastPage,
		PerPage:     perPage,
		Total:       total,
	}
	// 没有记录时 from 和 to 为 null
	if from, to := pagination.Range(page, perPage, total); from > 0 {
		meta.From, meta.To = &from, &to
	}
	return meta
}

// readPage 从请求体中读取页码，缺省为第一页
func (h *Handler) readPage(r *http.Request) (int, error) {
	var req struct {
		Page int `json:"page" validate:"gte=0"`
	}
	if err := h.readJSON(r, &req); err != nil {
		return 0, err
	}
	if err := h.validate.Struct(req); err != nil {
		return 0, err
	}
	return max(req.Page, 1), nil
}

func paged[T any](items []T, page, total int) map[string]any {
	return map[string]any{
		"data": items,
		"meta": newPageMeta(page, PerPage, total),
	}
}
