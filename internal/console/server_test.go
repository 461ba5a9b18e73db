package console

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/config"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/form"
	"github.com/sysu-ecnc-dev/info-admin/internal/listing"
	"github.com/sysu-ecnc-dev/info-admin/internal/session"
)

// fakeAPI 模拟后端接口，只实现测试用到的部分
type fakeAPI struct {
	mu        sync.Mutex
	bookmarks []domain.Bookmark
	notices   []domain.Notice
	nextID    int64
	expired   atomic.Bool
	showalls  atomic.Int32
}

var testAccounts = map[string]struct {
	token string
	role  domain.Role
}{
	"admin@example.com": {token: "t-admin", role: domain.RoleAdmin},
	"user@example.com":  {token: "t-user", role: domain.RoleUser},
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) authorized(w http.ResponseWriter, r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if f.expired.Load() || (auth != "Bearer t-admin" && auth != "Bearer t-user") {
		writeTestJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
		return false
	}
	return true
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	// handle 在 Go 1.21 的 ServeMux 上模拟 "POST /path" 形式的路由：非 POST 请求返回 405
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(strings.TrimPrefix(pattern, "POST "), func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				w.Header().Set("Allow", http.MethodPost)
				http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
				return
			}
			h(w, r)
		})
	}

	handle("POST /admin/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		account, ok := testAccounts[body["email"]]
		if !ok || body["password"] != "secret123" {
			writeTestJSON(w, http.StatusUnauthorized, map[string]any{"status": false, "message": "邮箱或密码错误"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{
			"token": account.token,
			"type":  string(account.role),
			"user":  map[string]any{"id": 1, "name": "测试账号", "email": body["email"]},
		})
	})

	handle("POST /admin/logout", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{"status": true})
	})

	handle("POST /admin/verify-user", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusUnauthorized, map[string]any{"status": false, "message": "验证码错误或已过期"})
	})

	handle("POST /admin/form-stack-url/showall", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		f.showalls.Add(1)
		f.mu.Lock()
		items := append([]domain.Bookmark(nil), f.bookmarks...)
		f.mu.Unlock()
		writeTestJSON(w, http.StatusOK, map[string]any{
			"form_stack_url": map[string]any{
				"data":         items,
				"current_page": 1,
				"last_page":    1,
				"per_page":     10,
				"total":        len(items),
				"from":         min(1, len(items)),
				"to":           len(items),
			},
		})
	})

	handle("POST /admin/form-stack-url/create", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.nextID++
		f.bookmarks = append(f.bookmarks, domain.Bookmark{ID: f.nextID, Title: body["title"], URL: body["url"], CreatedAt: time.Now()})
		f.mu.Unlock()
		writeTestJSON(w, http.StatusOK, map[string]any{"status": true, "message": "created"})
	})

	handle("POST /admin/user/showall", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{"users": []domain.User{
			{ID: 1, Name: "测试账号", Email: "admin@example.com", Status: domain.UserStatusActive},
		}})
	})

	handle("POST /admin/info/showall", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		f.mu.Lock()
		docs := append([]domain.Notice(nil), f.notices...)
		f.mu.Unlock()
		writeTestJSON(w, http.StatusOK, map[string]any{"info": docs})
	})

	handle("POST /admin/info/create", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		if r.Header.Get("Authorization") == "Bearer t-user" {
			writeTestJSON(w, http.StatusForbidden, map[string]any{"status": false, "message": "权限不足"})
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.nextID++
		f.notices = append(f.notices, domain.Notice{ID: f.nextID, Content: body["content"]})
		f.mu.Unlock()
		writeTestJSON(w, http.StatusOK, map[string]any{"status": true})
	})

	return mux
}

type testConsole struct {
	srv    *httptest.Server
	api    *fakeAPI
	client *http.Client
	server *Server
}

func newTestConsole(t *testing.T) *testConsole {
	t.Helper()

	api := &fakeAPI{}
	apiSrv := httptest.NewServer(api.handler())
	t.Cleanup(apiSrv.Close)

	cfg := &config.Config{}
	cfg.API.BaseURL = apiSrv.URL + "/"
	cfg.API.RequestTimeout = 5
	cfg.API.DeviceName = "web"
	cfg.API.UnauthorizedAllowList = []string{"admin/verify-user"}
	cfg.Console.CookieName = "console-session"
	cfg.Console.CookieSecret = "0123456789abcdef0123456789abcdef"
	cfg.Console.SessionTTL = 3600
	cfg.NewUser.PasswordLength = 12
	cfg.Notice.DefaultContent = "<p>默认通知内容</p><script>alert(1)</script>"

	client, err := apiclient.NewClient(cfg, nil)
	require.NoError(t, err)

	clk := clock.NewMock()
	s, err := NewServer(cfg, client, session.NewManager(session.NewMemoryKV(), time.Hour), listing.NewRegistry(time.Hour, clk), nil, clk)
	require.NoError(t, err)
	s.RegisterRoutes()

	srv := httptest.NewServer(s.Mux)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testConsole{srv: srv, api: api, client: &http.Client{Jar: jar}, server: s}
}

func (tc *testConsole) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := tc.client.Get(tc.srv.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (tc *testConsole) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := tc.client.PostForm(tc.srv.URL+path, form)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (tc *testConsole) login(t *testing.T, email string) (*http.Response, string) {
	t.Helper()
	return tc.post(t, "/login", url.Values{"email": {email}, "password": {"secret123"}})
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestProtectedPagesRedirectToLogin(t *testing.T) {
	tc := newTestConsole(t)

	resp, body := tc.get(t, "/formstack-list")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, `action="/login"`)
}

func TestAdminLoginShowsManageControls(t *testing.T) {
	tc := newTestConsole(t)

	resp, body := tc.login(t, "admin@example.com")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/users-list", resp.Request.URL.Path)
	assert.Contains(t, body, "新增用户")
	assert.Contains(t, body, `href="/users-list"`)
}

func TestUserLoginHidesAdminPages(t *testing.T) {
	tc := newTestConsole(t)

	resp, body := tc.login(t, "user@example.com")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/formstack-list", resp.Request.URL.Path)
	assert.NotContains(t, body, "新增表单链接")
	assert.NotContains(t, body, `href="/users-list"`)

	resp, body = tc.get(t, "/users-list")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "无权访问")

	// 管理操作的路由同样被拦截
	resp, _ = tc.get(t, "/formstack-list/new")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	tc := newTestConsole(t)

	resp, body := tc.post(t, "/login", url.Values{"email": {"admin@example.com"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "邮箱或密码错误")
}

func TestLoginValidation(t *testing.T) {
	tc := newTestConsole(t)

	resp, body := tc.post(t, "/login", url.Values{"email": {"not-an-email"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, `class="invalid"`)
	assert.Contains(t, body, "not-an-email")
}

func TestCreateBookmarkRefetchesList(t *testing.T) {
	tc := newTestConsole(t)
	tc.login(t, "admin@example.com")

	resp, body := tc.get(t, "/formstack-list/new")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "新增表单链接")

	before := tc.api.showalls.Load()
	resp, body = tc.post(t, "/formstack-list/save", url.Values{"title": {"Portal"}, "url": {"https://example.com"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/formstack-list", resp.Request.URL.Path)
	assert.Greater(t, tc.api.showalls.Load(), before)

	assert.Contains(t, body, "<td>Portal</td>")
	assert.Contains(t, body, `href="https://example.com"`)
	assert.Contains(t, body, "表单链接已添加")
}

func TestInvalidBookmarkKeepsModalOpen(t *testing.T) {
	tc := newTestConsole(t)
	tc.login(t, "admin@example.com")
	tc.get(t, "/formstack-list/new")

	resp, body := tc.post(t, "/formstack-list/save", url.Values{"title": {"Portal"}, "url": {"not a url"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, `value="Portal"`)
	assert.Contains(t, body, `action="/formstack-list/save"`)

	tc.api.mu.Lock()
	defer tc.api.mu.Unlock()
	assert.Empty(t, tc.api.bookmarks)
}

func TestExpiredTokenReturnsToLogin(t *testing.T) {
	tc := newTestConsole(t)
	tc.login(t, "admin@example.com")

	tc.api.expired.Store(true)
	resp, body := tc.get(t, "/formstack-list")
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, apiclient.ErrUnauthorized.Error())

	// 会话已经清除，之后的访问直接跳转到登录页
	tc.api.expired.Store(false)
	resp, _ = tc.get(t, "/users-list")
	assert.Equal(t, "/login", resp.Request.URL.Path)
}

func TestLogoutClearsSession(t *testing.T) {
	tc := newTestConsole(t)
	tc.login(t, "admin@example.com")
	require.Positive(t, tc.server.screens.Len())

	resp, body := tc.post(t, "/logout", nil)
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, "已退出登录")
	assert.Zero(t, tc.server.screens.Len())

	resp, _ = tc.get(t, "/formstack-list")
	assert.Equal(t, "/login", resp.Request.URL.Path)
}

func TestVerifyUserRejectionKeepsSession(t *testing.T) {
	tc := newTestConsole(t)

	resp, body := tc.post(t, "/verify-user", url.Values{"email": {"user@example.com"}, "otp": {"123456"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "验证码错误或已过期")
	assert.NotContains(t, body, apiclient.ErrUnauthorized.Error())
}

func TestNoticeSeededOnce(t *testing.T) {
	tc := newTestConsole(t)
	tc.login(t, "admin@example.com")

	for i := 0; i < 2; i++ {
		resp, body := tc.get(t, "/info")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "<p>默认通知内容</p>")
		assert.NotContains(t, body, "<script>alert(1)</script>")
	}

	tc.api.mu.Lock()
	defer tc.api.mu.Unlock()
	require.Len(t, tc.api.notices, 1)
	assert.True(t, strings.HasPrefix(tc.api.notices[0].Content, "<p>默认通知内容</p>"))
}

func TestUnknownPathRendersNotFound(t *testing.T) {
	tc := newTestConsole(t)
	tc.login(t, "admin@example.com")

	resp, body := tc.get(t, "/no-such-page")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "页面不存在")
	// 导航仍然可用
	assert.Contains(t, body, `href="/formstack-list"`)
}

func TestPageOutOfRangeNotifies(t *testing.T) {
	tc := newTestConsole(t)
	tc.login(t, "admin@example.com")

	resp, body := tc.get(t, "/formstack-list?page="+strconv.Itoa(5))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, listing.ErrPageOutOfRange.Error())
}

func TestPasswordButtonsKeepTypedFields(t *testing.T) {
	tc := newTestConsole(t)
	tc.login(t, "admin@example.com")

	resp, _ := tc.get(t, "/users-list/new")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	typed := url.Values{"name": {"张三"}, "email": {"zhangsan@example.com"}, "phone": {"13800000000"}, "status": {"Active"}}
	resp, body := tc.post(t, "/users-list/password/toggle", typed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `value="张三"`)
	assert.Contains(t, body, `value="zhangsan@example.com"`)
	assert.Contains(t, body, `id="password" type="text"`)

	typed.Set("name", "李四")
	resp, body = tc.post(t, "/users-list/password/generate", typed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `value="李四"`)

	typed.Set("name", "王五")
	resp, body = tc.post(t, "/users-list/password/copy", typed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `value="王五"`)
	assert.Contains(t, body, ">已复制</button>")
}

func TestCopyButtonUsesClipboard(t *testing.T) {
	tc := newTestConsole(t)
	tc.login(t, "admin@example.com")
	tc.get(t, "/users-list/new")

	_, body := tc.post(t, "/users-list/password/generate", url.Values{"name": {"张三"}})
	assert.Contains(t, body, `data-copy-target="password"`)
	assert.Contains(t, body, `data-revert-ms="2000"`)
	assert.NotContains(t, body, "data-copied-ms")
	assert.Contains(t, body, "navigator.clipboard.writeText")

	// 服务端标记的“已复制”会在剩余时间后由页面恢复
	_, body = tc.post(t, "/users-list/password/copy", url.Values{"name": {"张三"}})
	assert.Contains(t, body, `data-copied-ms="2000"`)

	tc.server.clock.(*clock.Mock).Add(form.CopiedDuration)
	_, body = tc.get(t, "/users-list")
	assert.Contains(t, body, ">复制</button>")
	assert.NotContains(t, body, "data-copied-ms")
}

func TestOversizedUploadRejectedWithoutReading(t *testing.T) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	require.NoError(t, mw.WriteField("title", "过大的文件"))
	part, err := mw.CreateFormFile("pdf", "big.pdf")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{'0'}, domain.UploadMaxRequestSize))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads/save", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	cur := form.UploadForm{Title: "旧标题", File: &apiclient.File{Name: "old.pdf"}}
	f, rejections, err := parseUploadForm(req, cur)
	require.NoError(t, err)
	assert.Equal(t, form.ErrFileTooLarge.Error(), rejections["pdf"])
	assert.Nil(t, f.File)
	assert.Equal(t, "旧标题", f.Title)
	assert.Greater(t, buf.Len(), domain.UploadMaxRequestSize)
}

func TestNoticeShownReadOnlyBeforeAdminSeeds(t *testing.T) {
	tc := newTestConsole(t)
	tc.login(t, "user@example.com")

	resp, body := tc.get(t, "/info")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<p>默认通知内容</p>")
	assert.NotContains(t, body, "权限不足")

	tc.api.mu.Lock()
	defer tc.api.mu.Unlock()
	assert.Empty(t, tc.api.notices)
}
