package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/repository"
)

type uploadRequest struct {
	Title string `json:"title" validate:"required,max=50"`
}

func (h *Handler) GetAllUploads(w http.ResponseWriter, r *http.Request) {
	page, err := h.readPage(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	uploads, err := h.repository.GetUploads(page, PerPage)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取文件列表成功", map[string]any{"uploads": paged(uploads.Items, page, uploads.Total)})
}

// readUpload 解析上传表单，required 为 true 时必须带有 PDF 文件；没有文件时返回空路径
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, required bool) (string, string, bool) {
	if err := parseMultipart(r); err != nil {
		if errors.Is(err, errFileTooLarge) {
			h.fieldError(w, r, "pdf", "文件大小不能超过 5MB")
		} else {
			h.fieldError(w, r, "pdf", "请使用 multipart/form-data 上传文件")
		}
		return "", "", false
	}

	req := uploadRequest{Title: strings.TrimSpace(r.FormValue("title"))}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return "", "", false
	}

	data, err := readFormFile(r, "pdf", domain.UploadMaxFileSize)
	switch {
	case errors.Is(err, http.ErrMissingFile) && !required:
		return req.Title, "", true
	case errors.Is(err, http.ErrMissingFile):
		h.fieldError(w, r, "pdf", "请选择要上传的 PDF 文件")
		return "", "", false
	case errors.Is(err, errFileTooLarge):
		h.fieldError(w, r, "pdf", "文件大小不能超过 5MB")
		return "", "", false
	case err != nil:
		h.internalServerError(w, r, err)
		return "", "", false
	}

	name, err := h.storage.Save("uploads", data, "application/pdf")
	switch {
	case errors.Is(err, ErrUnsupportedFileType):
		h.fieldError(w, r, "pdf", "只能上传 PDF 文件")
		return "", "", false
	case err != nil:
		h.internalServerError(w, r, err)
		return "", "", false
	}
	return req.Title, name, true
}

func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	title, file, ok := h.readUpload(w, r, true)
	if !ok {
		return
	}

	u := &domain.Upload{Title: title, File: file}
	if err := h.repository.CreateUpload(u); err != nil {
		_ = h.storage.Remove(file)
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "上传文件成功", map[string]any{"data": u})
}

// UpdateUpload 没有上传新文件时只修改标题
func (h *Handler) UpdateUpload(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.notFound(w, r, "文件不存在")
		return
	}

	u, err := h.repository.GetUploadByID(id)
	if err != nil {
		switch {
		case repository.IsNotFound(err):
			h.notFound(w, r, "文件不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	title, file, ok := h.readUpload(w, r, false)
	if !ok {
		return
	}

	old := u.File
	u.Title = title
	if file != "" {
		u.File = file
	}

	if err := h.repository.UpdateUpload(u); err != nil {
		if file != "" {
			_ = h.storage.Remove(file)
		}
		switch {
		case repository.IsNotFound(err):
			h.notFound(w, r, "文件不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if file != "" {
		if err := h.storage.Remove(old); err != nil {
			h.logInternalServerError(r, err)
		}
	}

	h.successResponse(w, r, "更新文件成功", map[string]any{"data": u})
}

func (h *Handler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.notFound(w, r, "文件不存在")
		return
	}

	u, err := h.repository.GetUploadByID(id)
	if err != nil {
		switch {
		case repository.IsNotFound(err):
			h.notFound(w, r, "文件不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.repository.DeleteUpload(id); err != nil {
		switch {
		case repository.IsNotFound(err):
			h.notFound(w, r, "文件不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.storage.Remove(u.File); err != nil {
		h.logInternalServerError(r, err)
	}

	h.successResponse(w, r, "删除文件成功", nil)
}
