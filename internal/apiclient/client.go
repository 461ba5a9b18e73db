package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/info-admin/internal/config"
	"github.com/tidwall/gjson"
)

const maxResponseSize = 10 << 20

// TokenSource 提供请求所用的令牌，并在令牌失效时清除本地会话
type TokenSource interface {
	Token(ctx context.Context) string
	Invalidate(ctx context.Context) error
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
	allowList  []string
	deviceName string
}

func NewClient(cfg *config.Config, httpClient *http.Client) (*Client, error) {
	baseURL, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("无效的 API 地址: %w", err)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.API.RequestTimeout) * time.Second}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		allowList:  cfg.API.UnauthorizedAllowList,
		deviceName: cfg.API.DeviceName,
	}, nil
}

// WithTokens 返回绑定到某个会话的客户端副本
func (c *Client) WithTokens(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// AssetURL 返回服务端存储的文件地址
func (c *Client) AssetURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL.ResolveReference(&url.URL{Path: "storage/" + strings.TrimPrefix(path, "/")}).String()
}

func (c *Client) allowListed(path string) bool {
	for _, allowed := range c.allowList {
		if allowed != "" && strings.Contains(path, allowed) {
			return true
		}
	}
	return false
}

// Do 发送请求，成功时把响应解码到 out（out 为 nil 时丢弃响应体）
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	raw, err := c.Raw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("无法解析 %s 的响应: %w", path, err)
	}
	return nil
}

// Raw 发送请求并返回原始响应体，所有传输层的成功约定都在这里统一为 error
func (c *Client) Raw(ctx context.Context, method, path string, body any) ([]byte, error) {
	path = strings.TrimPrefix(path, "/")

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observe(method, path, 0, time.Since(start))
		return nil, fmt.Errorf("请求 %s 失败: %w", path, err)
	}
	defer resp.Body.Close()
	observe(method, path, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("读取 %s 的响应失败: %w", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		httpErr := newHTTPError(resp.StatusCode, path, raw)
		if c.allowListed(path) {
			// 这类接口把 401 当作正常的业务结果，交给调用方处理
			return nil, httpErr
		}
		if c.tokens != nil {
			if err := c.tokens.Invalidate(ctx); err != nil {
				slog.Error("无法清除失效的会话", "path", path, "error", err)
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, httpErr)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, newHTTPError(resp.StatusCode, path, raw)
	}

	// 部分接口用 {status: false} 或 {success: false} 表示失败
	if gjson.ValidBytes(raw) {
		for _, flag := range []string{"status", "success"} {
			if r := gjson.GetBytes(raw, flag); r.Type == gjson.False {
				return nil, newHTTPError(http.StatusUnprocessableEntity, path, raw)
			}
		}
	}

	return raw, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	target := c.baseURL.ResolveReference(&url.URL{Path: path})

	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case *Multipart:
		buf, ct, err := b.encode()
		if err != nil {
			return nil, fmt.Errorf("无法构造表单: %w", err)
		}
		reader, contentType = buf, ct
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("无法序列化请求体: %w", err)
		}
		reader, contentType = bytes.NewReader(data), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func newHTTPError(status int, path string, raw []byte) *HTTPError {
	httpErr := &HTTPError{
		Status:  status,
		Path:    path,
		Message: genericMessage,
	}
	if !gjson.ValidBytes(raw) {
		return httpErr
	}

	if msg := gjson.GetBytes(raw, "message"); msg.Type == gjson.String && msg.Str != "" {
		httpErr.Message = msg.Str
	}

	// {errors: {field: ["msg", ...]}} 或 {errors: {field: "msg"}}
	gjson.GetBytes(raw, "errors").ForEach(func(field, value gjson.Result) bool {
		if httpErr.Fields == nil {
			httpErr.Fields = make(map[string]string)
		}
		if value.IsArray() {
			value = value.Get("0")
		}
		httpErr.Fields[field.String()] = value.String()
		return true
	})

	return httpErr
}

func pageBody(page int) map[string]int {
	return map[string]int{"page": page}
}
