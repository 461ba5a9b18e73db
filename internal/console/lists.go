package console

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/form"
	"github.com/sysu-ecnc-dev/info-admin/internal/listing"
	"github.com/sysu-ecnc-dev/info-admin/internal/nav"
)

// screen 描述一个列表页面：接口、表单以及请求参数的解析方式
type screen[T any, F any] struct {
	path     string
	title    string
	template string

	options listing.Options[T]
	spec    form.Spec[T, F]
	backend func(c *apiclient.Client) listing.Backend[T]
	payload func(F) any
	// parse 从请求中读出表单，cur 是表单当前的值，返回的 rejections 会立即显示在字段上
	parse func(r *http.Request, cur F) (F, map[string]string, error)

	// 以下两项只有用户列表使用
	withPassword func(F, string) F
	created      func(ctx context.Context, s *Server, st *screenState[T, F], f F)
}

// screenState 是一个浏览器会话中某个列表页面的全部状态
type screenState[T any, F any] struct {
	*listing.Controller[T]
	modal    *form.Modal[T, F]
	password *form.PasswordField
}

type passwordView struct {
	Value   string
	Visible bool
	Copied  bool
	// 浏览器中复制后“已复制”保持的毫秒数，以及服务端标记的剩余毫秒数
	RevertMillis int64
	CopiedMillis int64
}

func newPasswordView(p *form.PasswordField) passwordView {
	return passwordView{
		Value:        p.Value(),
		Visible:      p.Visible(),
		Copied:       p.Copied(),
		RevertMillis: form.CopiedDuration.Milliseconds(),
		CopiedMillis: p.CopiedRemaining().Milliseconds(),
	}
}

type listPage[T any, F any] struct {
	Path     string
	Noun     string
	View     listing.View[T]
	Modal    form.ModalView[F]
	Password passwordView
}

type listHandlers[T any, F any] struct {
	s  *Server
	sc *screen[T, F]
}

func mountList[T any, F any](s *Server, r chi.Router, sc *screen[T, F]) {
	h := &listHandlers[T, F]{s: s, sc: sc}

	r.Route(sc.path, func(r chi.Router) {
		r.Get("/", h.list)

		// 新增、编辑、删除只对管理员开放
		r.Group(func(r chi.Router) {
			r.Use(nav.RequireAdmin(roleOf, s.forbidden))
			r.Get("/new", h.openCreate)
			r.Get("/{id}/edit", h.openEdit)
			r.With(middleware.RequestSize(domain.UploadMaxRequestSize)).Post("/save", h.save)
			r.Post("/cancel", h.cancel)
			r.Get("/{id}/delete", h.requestDelete)
			r.Post("/delete/confirm", h.confirmDelete)
			r.Post("/delete/cancel", h.cancelDelete)

			if sc.withPassword != nil {
				r.Post("/password/generate", h.generatePassword)
				r.Post("/password/toggle", h.togglePassword)
				r.Post("/password/copy", h.copyPassword)
			}
		})
	})
}

func (h *listHandlers[T, F]) state(r *http.Request) *screenState[T, F] {
	return listing.Get(h.s.screens, storeOf(r).ID(), h.sc.path, func() *screenState[T, F] {
		st := &screenState[T, F]{
			Controller: listing.NewController(h.sc.options),
			modal:      form.NewModal(h.s.validator, h.sc.spec),
		}
		if h.sc.withPassword != nil {
			st.password = form.NewPasswordField(h.s.config.NewUser.PasswordLength, h.s.clock)
		}
		return st
	})
}

func (h *listHandlers[T, F]) backend(r *http.Request) listing.Backend[T] {
	return h.sc.backend(clientOf(r))
}

// render 渲染列表页，首次进入页面时先加载数据
func (h *listHandlers[T, F]) render(w http.ResponseWriter, r *http.Request, st *screenState[T, F], status int) {
	if v := st.View(); v.State == listing.StateIdle {
		if err := st.Load(r.Context(), h.backend(r)); apiclient.IsUnauthorized(err) {
			h.s.unauthorized(w, r)
			return
		}
	}

	page := listPage[T, F]{
		Path:  h.sc.path,
		Noun:  h.sc.options.Noun,
		View:  st.View(),
		Modal: st.modal.View(),
	}
	if st.password != nil {
		page.Password = newPasswordView(st.password)
	}
	h.s.render(w, r, status, h.sc.template, h.sc.title, page, st.TakeNotifications()...)
}

func (h *listHandlers[T, F]) back(w http.ResponseWriter, r *http.Request) {
	h.s.redirect(w, r, h.sc.path)
}

// list 每次访问都重新获取数据，page 和 q 参数分别用于翻页和搜索当前页
func (h *listHandlers[T, F]) list(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	query := r.URL.Query()

	if query.Has("q") {
		st.Search(query.Get("q"))
	}

	var err error
	if raw := query.Get("page"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			n = 0
		}
		err = st.SetPage(r.Context(), h.backend(r), n)
	} else {
		err = st.Load(r.Context(), h.backend(r))
	}

	switch {
	case apiclient.IsUnauthorized(err):
		h.s.unauthorized(w, r)
		return
	case errors.Is(err, listing.ErrPageOutOfRange):
		st.Notify(listing.NotificationError, err.Error())
	}
	// 其他错误由列表中的错误提示展示，保留上一次成功加载的数据
	h.render(w, r, st, http.StatusOK)
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *listHandlers[T, F]) openCreate(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	if err := st.modal.OpenCreate(); err != nil {
		st.Notify(listing.NotificationError, err.Error())
		h.render(w, r, st, http.StatusOK)
		return
	}
	// 新用户默认带一个随机密码，管理员可以重新生成或清空
	if h.sc.withPassword != nil {
		fields := st.modal.View().Fields
		_ = st.modal.Set(h.sc.withPassword(fields, st.password.Generate()))
	}
	h.render(w, r, st, http.StatusOK)
}

func (h *listHandlers[T, F]) openEdit(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	id, ok := parseID(r)
	if !ok {
		h.s.notFound(w, r)
		return
	}

	item, ok := st.Item(id)
	if !ok {
		st.Notify(listing.NotificationError, listing.ErrItemNotLoaded.Error())
		h.back(w, r)
		return
	}
	if err := st.modal.OpenEdit(id, item); err != nil {
		st.Notify(listing.NotificationError, err.Error())
	}
	h.render(w, r, st, http.StatusOK)
}

func (h *listHandlers[T, F]) save(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	cur := st.modal.View()
	if !cur.Open {
		h.back(w, r)
		return
	}

	fields, rejections, err := h.sc.parse(r, cur.Fields)
	if err != nil {
		h.s.internalServerError(w, r, err)
		return
	}
	if err := st.modal.Set(fields); err != nil {
		st.Notify(listing.NotificationError, err.Error())
		h.render(w, r, st, http.StatusConflict)
		return
	}
	for field, msg := range rejections {
		st.modal.Reject(field, msg)
	}

	b := h.backend(r)
	err = st.modal.Submit(r.Context(), func(ctx context.Context, mode form.Mode, id int64, f F) error {
		if mode == form.ModeCreate {
			if err := st.Create(ctx, b, h.sc.payload(f)); err != nil {
				return err
			}
			if h.sc.created != nil {
				h.sc.created(ctx, h.s, st, f)
			}
			return nil
		}
		return st.Update(ctx, b, id, h.sc.payload(f))
	})

	switch {
	case err == nil:
		h.back(w, r)
	case apiclient.IsUnauthorized(err):
		h.s.unauthorized(w, r)
	case errors.Is(err, form.ErrBusy):
		st.Notify(listing.NotificationError, err.Error())
		h.render(w, r, st, http.StatusConflict)
	default:
		// 表单保持打开，错误显示在表单中
		h.render(w, r, st, http.StatusUnprocessableEntity)
	}
}

func (h *listHandlers[T, F]) cancel(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	if err := st.modal.Close(); err != nil {
		st.Notify(listing.NotificationError, err.Error())
	}
	h.back(w, r)
}

func (h *listHandlers[T, F]) requestDelete(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	id, ok := parseID(r)
	if !ok {
		h.s.notFound(w, r)
		return
	}

	if err := st.RequestDelete(id); err != nil {
		st.Notify(listing.NotificationError, err.Error())
		h.back(w, r)
		return
	}
	h.render(w, r, st, http.StatusOK)
}

func (h *listHandlers[T, F]) confirmDelete(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	err := st.ConfirmDelete(r.Context(), h.backend(r))
	switch {
	case apiclient.IsUnauthorized(err):
		h.s.unauthorized(w, r)
		return
	case errors.Is(err, listing.ErrBusy), errors.Is(err, listing.ErrNoPendingDelete):
		st.Notify(listing.NotificationError, err.Error())
	}
	// 删除失败的提示已经由控制器记录
	h.back(w, r)
}

func (h *listHandlers[T, F]) cancelDelete(w http.ResponseWriter, r *http.Request) {
	h.state(r).CancelDelete()
	h.back(w, r)
}

// keepTyped 把这次提交中已经填写的内容写回表单，密码按钮不能清空其他输入
func (h *listHandlers[T, F]) keepTyped(r *http.Request, st *screenState[T, F]) F {
	cur := st.modal.View()
	fields := cur.Fields
	if parsed, _, err := h.sc.parse(r, cur.Fields); err == nil {
		fields = parsed
	}
	if err := st.modal.Set(fields); err != nil {
		st.Notify(listing.NotificationError, err.Error())
	}
	return fields
}

// 生成的密码同时写入表单，提交时随表单一起发送
func (h *listHandlers[T, F]) generatePassword(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	if !st.modal.View().Open {
		h.back(w, r)
		return
	}

	fields := h.keepTyped(r, st)
	if err := st.modal.Set(h.sc.withPassword(fields, st.password.Generate())); err != nil {
		st.Notify(listing.NotificationError, err.Error())
	}
	h.render(w, r, st, http.StatusOK)
}

func (h *listHandlers[T, F]) togglePassword(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	if !st.modal.View().Open {
		h.back(w, r)
		return
	}

	h.keepTyped(r, st)
	st.password.ToggleVisible()
	h.render(w, r, st, http.StatusOK)
}

// copyPassword 是浏览器不支持剪贴板时的退路，支持时页面脚本直接复制输入框中的密码
func (h *listHandlers[T, F]) copyPassword(w http.ResponseWriter, r *http.Request) {
	st := h.state(r)
	if !st.modal.View().Open {
		h.back(w, r)
		return
	}

	h.keepTyped(r, st)
	if _, ok := st.password.Copy(); !ok {
		st.Notify(listing.NotificationError, "请先生成密码")
	}
	h.render(w, r, st, http.StatusOK)
}
