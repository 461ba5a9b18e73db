package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/info-admin/internal/config"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
)

type fakeMail struct {
	sent []domain.MailMessage
}

func (f *fakeMail) Publish(_ context.Context, msg domain.MailMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Expiration = 1
	cfg.Storage.Dir = t.TempDir()
	cfg.NewUser.PasswordLength = 12

	h, err := NewHandler(cfg, nil, &fakeMail{}, nil)
	require.NoError(t, err)
	h.RegisterRoutes()
	return h
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func post(h *Handler, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)
	return rec
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newTestHandler(t)

	for _, path := range []string{"/admin/user/showall", "/admin/form-stack-url/create", "/admin/upload/showall", "/admin/info/showall", "/admin/logout"} {
		rec := post(h, path, `{}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		body := decode(t, rec)
		assert.Equal(t, false, body["status"])
		assert.Equal(t, "用户未登录", body["message"])
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	h := newTestHandler(t)

	rec := post(h, "/admin/user/showall", `{}`, http.Header{"Authorization": {"Bearer not-a-token"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "无效的令牌", decode(t, rec)["message"])

	// 其他密钥签发的令牌同样无效
	other := newTestHandler(t)
	other.config.JWT.Secret = "another-secret"
	token, err := other.issueToken(&domain.User{ID: 1, Role: domain.RoleAdmin}, time.Now())
	require.NoError(t, err)

	rec = post(h, "/admin/user/showall", `{}`, http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	h := newTestHandler(t)

	rec := post(h, "/admin/login", `{"email":"not-an-email"}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["status"])
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
	assert.NotEmpty(t, body["message"])
}

func TestMalformedJSON(t *testing.T) {
	h := newTestHandler(t)

	rec := post(h, "/admin/forgot-password", `{"email":`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "请求体格式错误", decode(t, rec)["message"])
}

func TestIssueAndParseToken(t *testing.T) {
	h := newTestHandler(t)

	now := time.Now()
	token, err := h.issueToken(&domain.User{ID: 42, Role: domain.RoleUser}, now)
	require.NoError(t, err)

	claims, err := h.parseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, string(domain.RoleUser), claims.Role)
	assert.NotEmpty(t, claims.ID)

	// 过期的令牌
	expired, err := h.issueToken(&domain.User{ID: 42}, now.Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = h.parseToken(expired)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", bearerToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", bearerToken(r))

	r.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", bearerToken(r))
}

func TestPageMeta(t *testing.T) {
	meta := newPageMeta(2, 10, 25)
	assert.Equal(t, 3, meta.LastPage)
	require.NotNil(t, meta.From)
	assert.Equal(t, 11, *meta.From)
	assert.Equal(t, 20, *meta.To)

	meta = newPageMeta(3, 10, 25)
	assert.Equal(t, 21, *meta.From)
	assert.Equal(t, 25, *meta.To)

	meta = newPageMeta(1, 10, 0)
	assert.Equal(t, 1, meta.LastPage)
	assert.Nil(t, meta.From)
	assert.Nil(t, meta.To)

	data, err := json.Marshal(paged([]int{1, 2}, 1, 2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[1,2],"meta":{"current_page":1,"last_page":1,"per_page":10,"total":2,"from":1,"to":2}}`, string(data))
}

func TestResponseFlattensFields(t *testing.T) {
	data, err := json.Marshal(Response{Status: true, Message: "ok", Fields: map[string]any{"token": "abc"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":true,"message":"ok","token":"abc"}`, string(data))

	data, err = json.Marshal(Response{Message: "bad", Errors: map[string][]string{"email": {"邮箱已存在"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":false,"message":"bad","errors":{"email":["邮箱已存在"]}}`, string(data))
}

const pdfContent = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

func TestStorageSaveAndServe(t *testing.T) {
	h := newTestHandler(t)

	name, err := h.storage.Save("uploads", []byte(pdfContent), "application/pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "uploads/"))
	assert.True(t, strings.HasSuffix(name, ".pdf"))

	req := httptest.NewRequest(http.MethodGet, "/storage/"+name, nil)
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, pdfContent, string(got))

	require.NoError(t, h.storage.Remove(name))
	require.NoError(t, h.storage.Remove(name))

	rec = httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/storage/"+name, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStorageRejectsWrongType(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.storage.Save("uploads", []byte("just some text"), "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func oversizedUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	require.NoError(t, mw.WriteField("title", "过大的文件"))
	part, err := mw.CreateFormFile("pdf", "big.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte(pdfContent))
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{'0'}, domain.UploadMaxRequestSize))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestOversizedUploadRejectedBeforeReading(t *testing.T) {
	body, contentType := oversizedUpload(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/upload/create", body)
	req.Header.Set("Content-Type", contentType)

	assert.ErrorIs(t, parseMultipart(req), errFileTooLarge)
	// 只根据 Content-Length 判断，请求体还没有被读取
	assert.Greater(t, body.Len(), domain.UploadMaxRequestSize)
}

func TestOversizedChunkedUploadStopsAtLimit(t *testing.T) {
	body, contentType := oversizedUpload(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/upload/create", body)
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = -1

	var err error
	limitUpload(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err = parseMultipart(r)
	})).ServeHTTP(httptest.NewRecorder(), req)

	assert.ErrorIs(t, err, errFileTooLarge)
}
