package form

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
)

var (
	ErrBusy    = errors.New("正在提交，请稍候")
	ErrClosed  = errors.New("表单未打开")
	ErrInvalid = errors.New("表单填写有误")
)

type Mode int

const (
	ModeClosed Mode = iota
	ModeCreate
	ModeEdit
)

// Spec 描述某一种实体的表单：默认值、从实体生成初始值、额外的校验
type Spec[E any, F any] struct {
	Defaults   func() F
	FromEntity func(E) F
	// Check 在结构体标签校验之后执行，用于和模式相关的规则（例如新增时必须上传文件）
	Check func(Mode, F) map[string]string
}

// SubmitFunc 由列表页提供，负责把表单发送到服务端
type SubmitFunc[F any] func(ctx context.Context, mode Mode, id int64, f F) error

// Modal 是新增/编辑实体的表单状态，只负责受控输入和校验，不关心请求如何发送
type Modal[E any, F any] struct {
	spec Spec[E, F]
	v    *Validator

	mu        sync.Mutex
	mode      Mode
	targetID  int64
	fields    F
	submitted bool
	busy      bool
	errs      map[string]string
	// 选择文件时立即产生的错误，不依赖是否提交过
	rejections map[string]string
	message    string
}

func NewModal[E any, F any](v *Validator, spec Spec[E, F]) *Modal[E, F] {
	return &Modal[E, F]{spec: spec, v: v}
}

// 调用方需要持有锁
func (m *Modal[E, F]) reset(mode Mode, id int64, fields F) {
	m.mode = mode
	m.targetID = id
	m.fields = fields
	m.submitted = false
	m.errs = nil
	m.rejections = nil
	m.message = ""
}

func (m *Modal[E, F]) OpenCreate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return ErrBusy
	}
	m.reset(ModeCreate, 0, m.spec.Defaults())
	return nil
}

// OpenEdit 总是用传入的实体重新初始化表单，不会保留上一次编辑的内容
func (m *Modal[E, F]) OpenEdit(id int64, entity E) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return ErrBusy
	}
	m.reset(ModeEdit, id, m.spec.FromEntity(entity))
	return nil
}

// Close 在提交过程中不允许关闭
func (m *Modal[E, F]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return ErrBusy
	}
	var zero F
	m.reset(ModeClosed, 0, zero)
	return nil
}

// Set 更新表单的字段值，提交过一次之后会同时更新校验结果
func (m *Modal[E, F]) Set(f F) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.mode == ModeClosed:
		return ErrClosed
	case m.busy:
		return ErrBusy
	}
	m.fields = f
	m.rejections = nil
	if m.submitted {
		m.errs = m.validate(f)
	}
	return nil
}

// Reject 在字段上标记一条立即显示的错误，例如选择了不合法的文件
func (m *Modal[E, F]) Reject(field, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejections == nil {
		m.rejections = make(map[string]string)
	}
	m.rejections[field] = msg
}

// 调用方需要持有锁
func (m *Modal[E, F]) validate(f F) map[string]string {
	errs := m.v.Check(f)
	if m.spec.Check != nil {
		for k, msg := range m.spec.Check(m.mode, f) {
			if errs == nil {
				errs = make(map[string]string)
			}
			if _, exists := errs[k]; !exists {
				errs[k] = msg
			}
		}
	}
	return errs
}

// Submit 校验表单并调用 onSubmit。失败时表单保持打开且保留已填写的内容，成功时关闭。
func (m *Modal[E, F]) Submit(ctx context.Context, onSubmit SubmitFunc[F]) error {
	m.mu.Lock()
	switch {
	case m.mode == ModeClosed:
		m.mu.Unlock()
		return ErrClosed
	case m.busy:
		m.mu.Unlock()
		return ErrBusy
	}
	m.submitted = true
	m.message = ""
	m.errs = m.validate(m.fields)
	if len(m.errs) > 0 || len(m.rejections) > 0 {
		m.mu.Unlock()
		return ErrInvalid
	}
	m.busy = true
	mode, id, fields := m.mode, m.targetID, m.fields
	m.mu.Unlock()

	err := onSubmit(ctx, mode, id, fields)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
	if err != nil {
		m.message = apiclient.Message(err)
		if fieldErrs := apiclient.FieldErrors(err); len(fieldErrs) > 0 {
			m.errs = maps.Clone(fieldErrs)
		}
		return err
	}
	var zero F
	m.reset(ModeClosed, 0, zero)
	return nil
}

// ModalView 是渲染表单需要的快照
type ModalView[F any] struct {
	Open     bool
	Mode     Mode
	TargetID int64
	Fields   F
	// Errors 只在第一次提交之后才包含校验错误
	Errors  map[string]string
	Message string
	Busy    bool
}

func (m *Modal[E, F]) View() ModalView[F] {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := ModalView[F]{
		Open:     m.mode != ModeClosed,
		Mode:     m.mode,
		TargetID: m.targetID,
		Fields:   m.fields,
		Message:  m.message,
		Busy:     m.busy,
	}
	if m.submitted && len(m.errs) > 0 {
		v.Errors = maps.Clone(m.errs)
	}
	if len(m.rejections) > 0 {
		if v.Errors == nil {
			v.Errors = make(map[string]string)
		}
		maps.Copy(v.Errors, m.rejections)
	}
	return v
}
