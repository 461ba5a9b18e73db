package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	slog.Error("服务器内部错误", "method", r.Method, "path", r.URL.Path, "error", err)
}

// readJSON 解码请求体，空的请求体视为空对象
func (h *Handler) readJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("请求体格式错误")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
	}
}

// Response 是所有接口的响应格式，Fields 中的内容会平铺到响应的顶层
type Response struct {
	Status  bool
	Message string
	Errors  map[string][]string
	Fields  map[string]any
}

func (resp Response) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(resp.Fields)+3)
	for k, v := range resp.Fields {
		body[k] = v
	}
	body["status"] = resp.Status
	body["message"] = resp.Message
	if len(resp.Errors) > 0 {
		body["errors"] = resp.Errors
	}
	return json.Marshal(body)
}

func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, Response{
		Status:  false,
		Message: msg,
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	h.errorResponse(w, r, http.StatusUnauthorized, msg)
}

func (h *Handler) forbidden(w http.ResponseWriter, r *http.Request) {
	h.errorResponse(w, r, http.StatusForbidden, "权限不足")
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request, msg string) {
	h.errorResponse(w, r, http.StatusNotFound, msg)
}

// fieldError 返回带有单个字段错误的 422 响应
func (h *Handler) fieldError(w http.ResponseWriter, r *http.Request, field, msg string) {
	h.writeJSON(w, r, http.StatusUnprocessableEntity, Response{
		Status:  false,
		Message: msg,
		Errors:  map[string][]string{field: {msg}},
	})
}

// badRequest 把校验错误翻译成中文，第一个错误作为 message，所有错误按字段放在 errors 中
func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		h.errorResponse(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	fields := make(map[string][]string, len(validationErrors))
	for _, fe := range validationErrors {
		fields[fe.Field()] = append(fields[fe.Field()], fe.Translate(h.translator))
	}

	h.writeJSON(w, r, http.StatusUnprocessableEntity, Response{
		Status:  false,
		Message: validationErrors[0].Translate(h.translator),
		Errors:  fields,
	})
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)
	h.writeJSON(w, r, http.StatusInternalServerError, Response{
		Status:  false,
		Message: "服务器内部错误",
	})
}

func (h *Handler) successResponse(w http.ResponseWriter, r *http.Request, msg string, fields map[string]any) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Status:  true,
		Message: msg,
		Fields:  fields,
	})
}
