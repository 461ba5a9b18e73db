package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/pagination"
)

// Resource 封装后端统一的 showall / create / update / destroy 接口
type Resource[T any] struct {
	c    *Client
	base string
	key  string
}

func NewResource[T any](c *Client, base, key string) *Resource[T] {
	return &Resource[T]{c: c, base: base, key: key}
}

func (r *Resource[T]) Index(ctx context.Context, page int) (*domain.PagedResult[T], error) {
	raw, err := r.c.Raw(ctx, http.MethodPost, r.base+"/showall", pageBody(page))
	if err != nil {
		return nil, err
	}
	return pagination.Normalize[T](raw, r.key, page), nil
}

// Store 的 payload 可以是可序列化为 JSON 的值，也可以是 *Multipart
func (r *Resource[T]) Store(ctx context.Context, payload any) error {
	return r.c.Do(ctx, http.MethodPost, r.base+"/create", payload, nil)
}

func (r *Resource[T]) Update(ctx context.Context, id int64, payload any) error {
	return r.c.Do(ctx, http.MethodPost, fmt.Sprintf("%s/update/%d", r.base, id), payload, nil)
}

func (r *Resource[T]) Destroy(ctx context.Context, id int64) error {
	return r.c.Do(ctx, http.MethodPost, fmt.Sprintf("%s/destroy/%d", r.base, id), nil, nil)
}

func (c *Client) Users() *Resource[domain.User] {
	return NewResource[domain.User](c, "admin/user", "users")
}

func (c *Client) Bookmarks(kind domain.BookmarkKind) *Resource[domain.Bookmark] {
	if kind == domain.BookmarkKindWebsite {
		return NewResource[domain.Bookmark](c, "admin/website-url", "website_url")
	}
	return NewResource[domain.Bookmark](c, "admin/form-stack-url", "form_stack_url")
}

func (c *Client) Uploads() *Resource[domain.Upload] {
	return NewResource[domain.Upload](c, "admin/upload", "uploads")
}

// Notices 对应单例公告的接口，列表接口返回零个或一个文档
type Notices struct {
	c *Client
}

func (c *Client) Notices() *Notices {
	return &Notices{c: c}
}

func (n *Notices) List(ctx context.Context) ([]domain.Notice, error) {
	raw, err := n.c.Raw(ctx, http.MethodPost, "admin/info/showall", nil)
	if err != nil {
		return nil, err
	}
	return pagination.Normalize[domain.Notice](raw, "info", 1).Items, nil
}

func (n *Notices) Create(ctx context.Context, content string) error {
	return n.c.Do(ctx, http.MethodPost, "admin/info/create", map[string]string{"content": content}, nil)
}

func (n *Notices) Update(ctx context.Context, id int64, content string) error {
	return n.c.Do(ctx, http.MethodPost, fmt.Sprintf("admin/info/update/%d", id), map[string]string{"content": content}, nil)
}
