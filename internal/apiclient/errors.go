package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized 表示令牌已失效，本地会话已被清除
var ErrUnauthorized = errors.New("登录已过期，请重新登录")

const genericMessage = "请求失败，请稍后重试"

// HTTPError 是服务端明确返回的错误
type HTTPError struct {
	Status  int
	Path    string
	Message string
	Fields  map[string]string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Path)
}

func asHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	ok := errors.As(err, &httpErr)
	return httpErr, ok
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsValidation(err error) bool {
	httpErr, ok := asHTTPError(err)
	if !ok {
		return false
	}
	return httpErr.Status == http.StatusUnprocessableEntity || httpErr.Status == http.StatusBadRequest || len(httpErr.Fields) > 0
}

func IsNotFound(err error) bool {
	httpErr, ok := asHTTPError(err)
	return ok && httpErr.Status == http.StatusNotFound
}

func IsForbidden(err error) bool {
	httpErr, ok := asHTTPError(err)
	return ok && httpErr.Status == http.StatusForbidden
}

// Message 返回适合展示给用户的错误信息，没有服务端信息时返回通用提示
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case IsUnauthorized(err):
		return ErrUnauthorized.Error()
	}
	if httpErr, ok := asHTTPError(err); ok && httpErr.Message != "" {
		return httpErr.Message
	}
	return genericMessage
}

// FieldErrors 返回服务端给出的字段级错误
func FieldErrors(err error) map[string]string {
	if httpErr, ok := asHTTPError(err); ok {
		return httpErr.Fields
	}
	return nil
}
