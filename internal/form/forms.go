package form

import (
	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
)

type UserForm struct {
	Name     string            `form:"name" label:"姓名" validate:"required,max=100"`
	Email    string            `form:"email" label:"邮箱" validate:"required,email"`
	Phone    string            `form:"phone" label:"手机号" validate:"required,max=20"`
	Status   domain.UserStatus `form:"status" label:"状态" validate:"required,oneof=Active Inactive"`
	Password string            `form:"password" label:"密码" validate:"omitempty,min=8"`
}

func (f UserForm) Payload() map[string]string {
	p := map[string]string{
		"name":   f.Name,
		"email":  f.Email,
		"phone":  f.Phone,
		"status": string(f.Status),
	}
	if f.Password != "" {
		p["password"] = f.Password
	}
	return p
}

func UserSpec() Spec[domain.User, UserForm] {
	return Spec[domain.User, UserForm]{
		Defaults: func() UserForm {
			return UserForm{Status: domain.UserStatusActive}
		},
		FromEntity: func(u domain.User) UserForm {
			status := u.Status
			if status == "" {
				status = domain.UserStatusActive
			}
			return UserForm{Name: u.Name, Email: u.Email, Phone: u.Phone, Status: status}
		},
	}
}

type BookmarkForm struct {
	Title string `form:"title" label:"标题" validate:"required,max=255"`
	URL   string `form:"url" label:"链接" validate:"required,url"`
}

func (f BookmarkForm) Payload() map[string]string {
	return map[string]string{"title": f.Title, "url": f.URL}
}

func BookmarkSpec() Spec[domain.Bookmark, BookmarkForm] {
	return Spec[domain.Bookmark, BookmarkForm]{
		Defaults: func() BookmarkForm { return BookmarkForm{} },
		FromEntity: func(b domain.Bookmark) BookmarkForm {
			return BookmarkForm{Title: b.Title, URL: b.URL}
		},
	}
}

type UploadForm struct {
	Title string `form:"title" label:"标题" validate:"required,max=50"`
	// File 只保存通过 CheckPDF 的文件，编辑时为空表示不替换
	File *apiclient.File `form:"pdf" validate:"-"`
	// Current 是编辑时已有文件的路径，仅用于展示
	Current string `validate:"-"`
}

func (f UploadForm) Payload() *apiclient.Multipart {
	body := apiclient.NewMultipart()
	body.Fields["title"] = f.Title
	if f.File != nil {
		body.Files["pdf"] = *f.File
	}
	return body
}

func UploadSpec() Spec[domain.Upload, UploadForm] {
	return Spec[domain.Upload, UploadForm]{
		Defaults: func() UploadForm { return UploadForm{} },
		FromEntity: func(u domain.Upload) UploadForm {
			return UploadForm{Title: u.Title, Current: u.File}
		},
		Check: func(mode Mode, f UploadForm) map[string]string {
			if mode == ModeCreate && f.File == nil {
				return map[string]string{"pdf": "请选择要上传的 PDF 文件"}
			}
			return nil
		},
	}
}

type NoticeForm struct {
	Content string `form:"content" label:"内容" validate:"required"`
}

type ProfileForm struct {
	Name  string `form:"name" label:"姓名" validate:"required,max=100"`
	Email string `form:"email" label:"邮箱" validate:"required,email"`
}

func ProfileSpec() Spec[domain.Profile, ProfileForm] {
	return Spec[domain.Profile, ProfileForm]{
		Defaults: func() ProfileForm { return ProfileForm{} },
		FromEntity: func(p domain.Profile) ProfileForm {
			return ProfileForm{Name: p.Name, Email: p.Email}
		},
	}
}

type PasswordForm struct {
	CurrentPassword         string `form:"current_password" label:"当前密码" validate:"required"`
	NewPassword             string `form:"new_password" label:"新密码" validate:"required,min=8"`
	NewPasswordConfirmation string `form:"new_password_confirmation" label:"确认密码" validate:"required"`
}

func PasswordSpec() Spec[struct{}, PasswordForm] {
	return Spec[struct{}, PasswordForm]{
		Defaults:   func() PasswordForm { return PasswordForm{} },
		FromEntity: func(struct{}) PasswordForm { return PasswordForm{} },
		Check:      checkConfirmation,
	}
}

func checkConfirmation(_ Mode, f PasswordForm) map[string]string {
	if f.NewPasswordConfirmation != "" && f.NewPassword != f.NewPasswordConfirmation {
		return map[string]string{"new_password_confirmation": "两次输入的密码不一致"}
	}
	return nil
}

// 以下是登录前页面使用的表单，直接用 Validator.Check 校验

type LoginForm struct {
	Email    string `form:"email" label:"邮箱" validate:"required,email"`
	Password string `form:"password" label:"密码" validate:"required"`
}

type ForgotPasswordForm struct {
	Email string `form:"email" label:"邮箱" validate:"required,email"`
}

type VerifyForm struct {
	Email string `form:"email" label:"邮箱" validate:"required,email"`
	OTP   string `form:"otp" label:"验证码" validate:"required,len=6,numeric"`
}

type ResetPasswordForm struct {
	Email                string `form:"email" label:"邮箱" validate:"required,email"`
	Token                string `form:"token" label:"令牌" validate:"required"`
	Password             string `form:"password" label:"新密码" validate:"required,min=6"`
	PasswordConfirmation string `form:"password_confirmation" label:"确认密码" validate:"required,eqfield=Password"`
}
