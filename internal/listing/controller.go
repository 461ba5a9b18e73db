package listing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/pagination"
)

var (
	ErrBusy            = errors.New("操作正在进行中，请稍候")
	ErrPageOutOfRange  = errors.New("页码超出范围")
	ErrNoPendingDelete = errors.New("没有待确认的删除操作")
	ErrItemNotLoaded   = errors.New("记录不在当前页中")
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Backend 是列表页依赖的接口，*apiclient.Resource 实现了它
type Backend[T any] interface {
	Index(ctx context.Context, page int) (*domain.PagedResult[T], error)
	Store(ctx context.Context, payload any) error
	Update(ctx context.Context, id int64, payload any) error
	Destroy(ctx context.Context, id int64) error
}

type Options[T any] struct {
	// Noun 用于拼接提示信息，例如 "用户"
	Noun string
	ID   func(T) int64
	// SearchFields 返回参与搜索的展示字段
	SearchFields func(T) []string
}

// Controller 保存一个列表页面的状态：当前页、搜索词、删除确认和提示消息
type Controller[T any] struct {
	opts Options[T]

	mu       sync.Mutex
	state    State
	result   *domain.PagedResult[T]
	page     int
	term     string
	err      error
	seq      uint64
	closed   bool
	pending  *T
	deleting map[int64]struct{}
	notes    []Notification
}

func NewController[T any](opts Options[T]) *Controller[T] {
	return &Controller[T]{
		opts:     opts,
		page:     1,
		deleting: make(map[int64]struct{}),
	}
}

// Load 获取当前页，首次进入页面时调用
func (c *Controller[T]) Load(ctx context.Context, b Backend[T]) error {
	c.mu.Lock()
	page := c.page
	c.mu.Unlock()
	return c.fetch(ctx, b, page)
}

// SetPage 切换到第 n 页，n 必须在 [1, totalPages] 内（没有数据时只允许第 1 页）
func (c *Controller[T]) SetPage(ctx context.Context, b Backend[T], n int) error {
	c.mu.Lock()
	total := 1
	if c.result != nil {
		total = max(c.result.TotalPages, 1)
	}
	c.mu.Unlock()

	if n < 1 || n > total {
		return ErrPageOutOfRange
	}
	return c.fetch(ctx, b, n)
}

// fetch 发出请求时记下序号，响应返回时如果已经有更新的请求或页面已关闭就丢弃结果。
// 当前页只在请求成功后更新，失败时页码和数据仍然是上一次成功的那一页
func (c *Controller[T]) fetch(ctx context.Context, b Backend[T], page int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.seq++
	seq := c.seq
	c.state = StateLoading
	c.mu.Unlock()

	res, err := b.Index(ctx, page)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq != c.seq {
		return nil
	}
	if err != nil {
		// 保留上一次成功加载的数据
		c.state = StateError
		c.err = err
		return err
	}
	c.state = StateReady
	c.err = nil
	c.result = res
	c.page = res.Page
	return nil
}

// Search 只在已加载的当前页中按展示字段过滤，不会请求其他页
func (c *Controller[T]) Search(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.term = strings.TrimSpace(term)
}

func (c *Controller[T]) matches(item T, term string) bool {
	if term == "" || c.opts.SearchFields == nil {
		return true
	}
	term = strings.ToLower(term)
	for _, f := range c.opts.SearchFields(item) {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func (c *Controller[T]) find(id int64) (T, bool) {
	var zero T
	if c.result == nil {
		return zero, false
	}
	i := slices.IndexFunc(c.result.Items, func(item T) bool { return c.opts.ID(item) == id })
	if i < 0 {
		return zero, false
	}
	return c.result.Items[i], true
}

// Item 在已加载的当前页中查找记录，用于打开编辑表单
func (c *Controller[T]) Item(id int64) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.find(id)
}

// RequestDelete 打开删除确认框
func (c *Controller[T]) RequestDelete(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.find(id)
	if !ok {
		return ErrItemNotLoaded
	}
	c.pending = &item
	return nil
}

func (c *Controller[T]) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// ConfirmDelete 删除确认框中的记录，同一条记录的删除请求未返回前再次确认会返回 ErrBusy
func (c *Controller[T]) ConfirmDelete(ctx context.Context, b Backend[T]) error {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return ErrNoPendingDelete
	}
	id := c.opts.ID(*c.pending)
	if _, busy := c.deleting[id]; busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.deleting[id] = struct{}{}
	page := c.page
	c.mu.Unlock()

	err := b.Destroy(ctx, id)

	c.mu.Lock()
	delete(c.deleting, id)
	if c.pending != nil && c.opts.ID(*c.pending) == id {
		c.pending = nil
	}
	switch {
	case err == nil:
		c.notify(NotificationSuccess, fmt.Sprintf("%s已删除", c.opts.Noun))
	case apiclient.IsUnauthorized(err):
		c.mu.Unlock()
		return err
	case apiclient.IsNotFound(err):
		c.notify(NotificationError, fmt.Sprintf("%s不存在或已被删除", c.opts.Noun))
	default:
		c.notify(NotificationError, apiclient.Message(err))
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	// 删除成功或记录已不存在时都以服务端为准重新获取当前页
	if ferr := c.fetch(ctx, b, page); ferr != nil && apiclient.IsUnauthorized(ferr) {
		return ferr
	}
	return nil
}

// Deleting 表示该记录的删除请求是否还未返回
func (c *Controller[T]) Deleting(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.deleting[id]
	return ok
}

// Create 调用新增接口，失败时把错误交给表单展示，成功后重新获取当前页
func (c *Controller[T]) Create(ctx context.Context, b Backend[T], payload any) error {
	if err := b.Store(ctx, payload); err != nil {
		return err
	}
	return c.afterMutation(ctx, b, fmt.Sprintf("%s已添加", c.opts.Noun))
}

func (c *Controller[T]) Update(ctx context.Context, b Backend[T], id int64, payload any) error {
	if err := b.Update(ctx, id, payload); err != nil {
		return err
	}
	return c.afterMutation(ctx, b, fmt.Sprintf("%s已更新", c.opts.Noun))
}

func (c *Controller[T]) afterMutation(ctx context.Context, b Backend[T], msg string) error {
	c.mu.Lock()
	c.notify(NotificationSuccess, msg)
	page := c.page
	c.mu.Unlock()

	// 修改已经成功，刷新失败只体现在列表的错误提示中
	if err := c.fetch(ctx, b, page); err != nil && apiclient.IsUnauthorized(err) {
		return err
	}
	return nil
}

// Close 在页面被替换或会话结束时调用，之后返回的请求结果都会被丢弃
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Controller[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// View 是渲染列表页需要的快照
type View[T any] struct {
	State          State
	InitialLoading bool
	Rows           []T
	Page           int
	TotalPages     int
	TotalRecords   int
	RangeStart     int
	RangeEnd       int
	Pages          []int
	HasPrev        bool
	HasNext        bool
	Term           string
	Error          string
	PendingDelete  *T
	DeleteBusy     bool
}

func (c *Controller[T]) View() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View[T]{
		State:          c.state,
		InitialLoading: c.result == nil && c.state == StateLoading,
		Page:           c.page,
		TotalPages:     1,
		Term:           c.term,
	}
	if c.state == StateError {
		v.Error = apiclient.Message(c.err)
	}
	if c.result != nil {
		v.TotalPages = max(c.result.TotalPages, 1)
		v.TotalRecords = c.result.TotalRecords
		v.RangeStart = c.result.RangeStart
		v.RangeEnd = c.result.RangeEnd
		for _, item := range c.result.Items {
			if c.matches(item, c.term) {
				v.Rows = append(v.Rows, item)
			}
		}
	}
	v.Pages = pagination.Window(v.Page, v.TotalPages)
	v.HasPrev = pagination.HasPrev(v.Page)
	v.HasNext = pagination.HasNext(v.Page, v.TotalPages)
	if c.pending != nil {
		item := *c.pending
		v.PendingDelete = &item
		_, v.DeleteBusy = c.deleting[c.opts.ID(item)]
	}
	return v
}
