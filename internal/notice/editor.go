package notice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
)

var (
	ErrForbidden = errors.New("只有管理员可以编辑通知")
	ErrEmpty     = errors.New("通知内容不能为空")
	ErrNotSeeded = errors.New("无法初始化通知")
)

// Backend 是通知的接口，*apiclient.Notices 实现了它
type Backend interface {
	List(ctx context.Context) ([]domain.Notice, error)
	Create(ctx context.Context, content string) error
	Update(ctx context.Context, id int64, content string) error
}

// Editor 负责读取和保存唯一的一份通知
type Editor struct {
	defaultContent string

	// 同一个进程内串行化初始化，避免并发打开页面时写入多份默认通知
	seedMu sync.Mutex
}

func NewEditor(defaultContent string) *Editor {
	return &Editor{defaultContent: defaultContent}
}

func CanEdit(role domain.Role) bool {
	return role.IsAdmin()
}

// Load 返回通知，不存在时先写入默认内容再读取，多次调用结果一致。
// 没有写入权限时返回未保存的默认通知，ID 为 0
func (e *Editor) Load(ctx context.Context, b Backend) (*domain.Notice, error) {
	docs, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		return &docs[0], nil
	}

	e.seedMu.Lock()
	defer e.seedMu.Unlock()

	// 拿到锁之后再确认一次，可能已经被其他请求写入
	docs, err = b.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		if err := b.Create(ctx, e.defaultContent); err != nil {
			// 普通用户没有写入权限，只展示默认内容，等管理员打开时再写入
			if apiclient.IsForbidden(err) {
				return &domain.Notice{Content: e.defaultContent}, nil
			}
			return nil, fmt.Errorf("无法写入默认通知: %w", err)
		}
		if docs, err = b.List(ctx); err != nil {
			return nil, err
		}
	}
	if len(docs) == 0 {
		return nil, ErrNotSeeded
	}
	return &docs[0], nil
}

// Save 保存完整的通知内容，id 为 0 时新建
func (e *Editor) Save(ctx context.Context, b Backend, role domain.Role, id int64, content string) error {
	if !CanEdit(role) {
		return ErrForbidden
	}
	if IsEmpty(content) {
		return ErrEmpty
	}
	if id == 0 {
		return b.Create(ctx, content)
	}
	return b.Update(ctx, id, content)
}
