package console

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/form"
	"github.com/sysu-ecnc-dev/info-admin/internal/listing"
)

// authPage 是登录前各个页面共用的数据
type authPage struct {
	Form     any
	Errors   map[string]string
	Message  string
	Password passwordView
}

// serverMessage 优先使用服务端返回的信息，登录失败的 401 也会带上服务端的提示
func serverMessage(err error) string {
	var httpErr *apiclient.HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return apiclient.Message(err)
}

func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", "登录", authPage{Form: form.LoginForm{}})
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.internalServerError(w, r, err)
		return
	}

	f := form.LoginForm{
		Email:    postValue(r, "email"),
		Password: r.PostFormValue("password"),
	}
	if errs := s.validator.Check(f); errs != nil {
		f.Password = ""
		s.render(w, r, http.StatusUnprocessableEntity, "login", "登录", authPage{Form: f, Errors: errs})
		return
	}

	// 登录成功后使用新的会话 ID
	old := storeOf(r)
	s.screens.Evict(old.ID())
	sid, err := s.rotateSessionID(w, r)
	if err != nil {
		s.internalServerError(w, r, err)
		return
	}
	store, err := s.sessions.Open(r.Context(), sid)
	if err != nil {
		s.internalServerError(w, r, err)
		return
	}

	sess, err := store.Login(r.Context(), s.api, apiclient.Credentials{Email: f.Email, Password: f.Password})
	if err != nil {
		slog.Info("登录失败", "email", f.Email, "error", err)
		f.Password = ""
		page := authPage{Form: f, Message: serverMessage(err), Errors: apiclient.FieldErrors(err)}
		s.render(w, r, http.StatusUnprocessableEntity, "login", "登录", page)
		return
	}

	slog.Info("用户已登录", "email", f.Email, "role", sess.Role)
	s.redirect(w, r, s.menu.Home(sess.Role))
}

func (s *Server) LogoutPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "logout", "退出登录", nil)
}

// Logout 总是清除本地会话，服务端登出失败时只给出提示
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	store := storeOf(r)
	err := store.Logout(r.Context(), clientOf(r))
	s.screens.Evict(store.ID())

	if _, rerr := s.rotateSessionID(w, r); rerr != nil {
		slog.Error("无法更换会话 ID", "error", rerr)
	}

	if err != nil {
		slog.Error("登出时出现错误", "sid", store.ID(), "error", err)
		s.flash(w, r, listing.NotificationError, "已退出登录，但服务端登出失败")
	} else {
		s.flash(w, r, listing.NotificationSuccess, "已退出登录")
	}
	s.redirect(w, r, "/login")
}

func (s *Server) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "forgot", "忘记密码", authPage{Form: form.ForgotPasswordForm{}})
}

func (s *Server) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.internalServerError(w, r, err)
		return
	}

	f := form.ForgotPasswordForm{Email: postValue(r, "email")}
	if errs := s.validator.Check(f); errs != nil {
		s.render(w, r, http.StatusUnprocessableEntity, "forgot", "忘记密码", authPage{Form: f, Errors: errs})
		return
	}

	msg, err := s.api.ForgotPassword(r.Context(), f.Email)
	if err != nil {
		page := authPage{Form: f, Message: serverMessage(err), Errors: apiclient.FieldErrors(err)}
		s.render(w, r, http.StatusUnprocessableEntity, "forgot", "忘记密码", page)
		return
	}

	if msg == "" {
		msg = "验证码已发送到你的邮箱"
	}
	s.flash(w, r, listing.NotificationSuccess, msg)
	s.redirect(w, r, "/verify-user?"+url.Values{"email": {f.Email}}.Encode())
}

func (s *Server) VerifyUserPage(w http.ResponseWriter, r *http.Request) {
	f := form.VerifyForm{Email: r.URL.Query().Get("email")}
	s.render(w, r, http.StatusOK, "verify", "验证身份", authPage{Form: f})
}

// VerifyUser 校验验证码，验证码错误时服务端返回 401，此时不会影响会话
func (s *Server) VerifyUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.internalServerError(w, r, err)
		return
	}

	f := form.VerifyForm{Email: postValue(r, "email"), OTP: postValue(r, "otp")}
	if errs := s.validator.Check(f); errs != nil {
		s.render(w, r, http.StatusUnprocessableEntity, "verify", "验证身份", authPage{Form: f, Errors: errs})
		return
	}

	token, err := s.api.VerifyUser(r.Context(), f.Email, f.OTP)
	if err != nil {
		f.OTP = ""
		s.render(w, r, http.StatusUnprocessableEntity, "verify", "验证身份", authPage{Form: f, Message: serverMessage(err)})
		return
	}

	s.redirect(w, r, "/reset-password?"+url.Values{"email": {f.Email}, "token": {token}}.Encode())
}

// resetState 保存重置密码页面的密码生成器
type resetState struct {
	password *form.PasswordField
	closed   atomic.Bool
}

func (st *resetState) Close()       { st.closed.Store(true) }
func (st *resetState) Closed() bool { return st.closed.Load() }

func (s *Server) resetScreen(r *http.Request) *resetState {
	return listing.Get(s.screens, storeOf(r).ID(), "/reset-password", func() *resetState {
		return &resetState{password: form.NewPasswordField(s.config.NewUser.PasswordLength, s.clock)}
	})
}

func (s *Server) renderReset(w http.ResponseWriter, r *http.Request, status int, st *resetState, page authPage) {
	page.Password = newPasswordView(st.password)
	s.render(w, r, status, "reset", "重置密码", page)
}

func (s *Server) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	f := form.ResetPasswordForm{Email: query.Get("email"), Token: query.Get("token")}

	page := authPage{Form: f}
	if f.Email == "" || f.Token == "" {
		page.Message = "重置链接无效，缺少邮箱或令牌"
	}
	s.renderReset(w, r, http.StatusOK, s.resetScreen(r), page)
}

// ResetPassword 同时处理生成、显示、复制密码以及提交，由 action 区分
func (s *Server) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.internalServerError(w, r, err)
		return
	}

	st := s.resetScreen(r)
	f := form.ResetPasswordForm{
		Email:                postValue(r, "email"),
		Token:                postValue(r, "token"),
		Password:             r.PostFormValue("password"),
		PasswordConfirmation: r.PostFormValue("password_confirmation"),
	}

	switch r.PostFormValue("action") {
	case "generate":
		f.Password = st.password.Generate()
		f.PasswordConfirmation = f.Password
		s.renderReset(w, r, http.StatusOK, st, authPage{Form: f})
		return
	case "toggle":
		st.password.ToggleVisible()
		s.renderReset(w, r, http.StatusOK, st, authPage{Form: f})
		return
	case "copy":
		page := authPage{Form: f}
		if _, ok := st.password.Copy(); !ok {
			page.Message = "请先生成密码"
		}
		s.renderReset(w, r, http.StatusOK, st, page)
		return
	}

	if f.Email == "" || f.Token == "" {
		s.renderReset(w, r, http.StatusUnprocessableEntity, st, authPage{Form: f, Message: "重置链接无效，缺少邮箱或令牌"})
		return
	}
	if errs := s.validator.Check(f); errs != nil {
		s.renderReset(w, r, http.StatusUnprocessableEntity, st, authPage{Form: f, Errors: errs})
		return
	}

	err := s.api.ResetPassword(r.Context(), apiclient.PasswordReset{
		Email:                f.Email,
		Token:                f.Token,
		Password:             f.Password,
		PasswordConfirmation: f.PasswordConfirmation,
	})
	if err != nil {
		page := authPage{Form: f, Message: serverMessage(err), Errors: apiclient.FieldErrors(err)}
		s.renderReset(w, r, http.StatusUnprocessableEntity, st, page)
		return
	}

	st.Close()
	s.flash(w, r, listing.NotificationSuccess, "密码已重置，请使用新密码登录")
	s.redirect(w, r, "/login")
}
