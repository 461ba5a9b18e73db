package console

import (
	"net/http"

	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/session"
)

type ContextKey string

var (
	StoreCtxKey  ContextKey = "store"
	ClientCtxKey ContextKey = "client"
)

func storeOf(r *http.Request) *session.Store {
	return r.Context().Value(StoreCtxKey).(*session.Store)
}

// clientOf 返回绑定到当前会话令牌的 API 客户端
func clientOf(r *http.Request) *apiclient.Client {
	return r.Context().Value(ClientCtxKey).(*apiclient.Client)
}

func roleOf(r *http.Request) domain.Role {
	cur := storeOf(r).Current()
	if !cur.Authenticated() {
		return ""
	}
	return cur.Role
}
