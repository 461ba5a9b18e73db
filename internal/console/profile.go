package console

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/form"
	"github.com/sysu-ecnc-dev/info-admin/internal/listing"
	"github.com/sysu-ecnc-dev/info-admin/internal/session"
)

type profilePage struct {
	Profile        domain.Profile
	ProfileForm    form.ProfileForm
	ProfileErrors  map[string]string
	ImageError     string
	PasswordErrors map[string]string
	Error          string
}

func (s *Server) newProfilePage(r *http.Request) profilePage {
	cur := storeOf(r).Current()
	return profilePage{
		Profile:     cur.Profile,
		ProfileForm: form.ProfileSpec().FromEntity(cur.Profile),
	}
}

func (s *Server) renderProfile(w http.ResponseWriter, r *http.Request, status int, page profilePage) {
	s.render(w, r, status, "profile", "个人信息", page)
}

// ProfilePage 每次进入页面都从服务端刷新个人信息，刷新失败时显示缓存的内容
func (s *Server) ProfilePage(w http.ResponseWriter, r *http.Request) {
	_, err := storeOf(r).Refresh(r.Context(), clientOf(r))
	if apiclient.IsUnauthorized(err) {
		s.unauthorized(w, r)
		return
	}

	page := s.newProfilePage(r)
	if err != nil {
		page.Error = apiclient.Message(err)
	}
	s.renderProfile(w, r, http.StatusOK, page)
}

func (s *Server) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	_, err := storeOf(r).Refresh(r.Context(), clientOf(r))
	switch {
	case err == nil:
		s.flash(w, r, listing.NotificationSuccess, "个人信息已刷新")
	case apiclient.IsUnauthorized(err):
		s.unauthorized(w, r)
		return
	default:
		s.flash(w, r, listing.NotificationError, apiclient.Message(err))
	}
	s.redirect(w, r, "/profile")
}

func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.internalServerError(w, r, err)
		return
	}

	f := form.ProfileForm{Name: postValue(r, "name"), Email: postValue(r, "email")}
	page := s.newProfilePage(r)
	page.ProfileForm = f
	if errs := s.validator.Check(f); errs != nil {
		page.ProfileErrors = errs
		s.renderProfile(w, r, http.StatusUnprocessableEntity, page)
		return
	}

	err := clientOf(r).UpdateProfile(r.Context(), apiclient.ProfileUpdate{Name: f.Name, Email: f.Email})
	switch {
	case apiclient.IsUnauthorized(err):
		s.unauthorized(w, r)
		return
	case err != nil:
		page.Error = apiclient.Message(err)
		page.ProfileErrors = apiclient.FieldErrors(err)
		s.renderProfile(w, r, http.StatusUnprocessableEntity, page)
		return
	}

	if err := storeOf(r).UpdateAfterSuccess(r.Context(), session.ProfilePatch{Name: &f.Name, Email: &f.Email}); err != nil {
		s.internalServerError(w, r, err)
		return
	}
	s.flash(w, r, listing.NotificationSuccess, "个人信息已更新")
	s.redirect(w, r, "/profile")
}

// UpdateProfileImage 上传成功后重新获取个人信息，头像地址以服务端为准
func (s *Server) UpdateProfileImage(w http.ResponseWriter, r *http.Request) {
	page := s.newProfilePage(r)

	if r.ContentLength > domain.UploadMaxRequestSize {
		page.ImageError = form.ErrFileTooLarge.Error()
		s.renderProfile(w, r, http.StatusUnprocessableEntity, page)
		return
	}
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		page.ImageError = "请选择要上传的图片"
		if bodyTooLarge(err) {
			page.ImageError = form.ErrFileTooLarge.Error()
		}
		s.renderProfile(w, r, http.StatusUnprocessableEntity, page)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		page.ImageError = "请选择要上传的图片"
		s.renderProfile(w, r, http.StatusUnprocessableEntity, page)
		return
	}
	defer file.Close()

	if header.Size > domain.UploadMaxFileSize {
		page.ImageError = form.ErrFileTooLarge.Error()
		s.renderProfile(w, r, http.StatusUnprocessableEntity, page)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, domain.UploadMaxFileSize+1))
	if err != nil {
		s.internalServerError(w, r, err)
		return
	}
	image, err := form.CheckImage(header.Filename, data)
	if err != nil {
		page.ImageError = err.Error()
		s.renderProfile(w, r, http.StatusUnprocessableEntity, page)
		return
	}

	store := storeOf(r)
	err = clientOf(r).UpdateProfileImage(r.Context(), *image)
	switch {
	case apiclient.IsUnauthorized(err):
		s.unauthorized(w, r)
		return
	case err != nil:
		page.ImageError = apiclient.Message(err)
		s.renderProfile(w, r, http.StatusUnprocessableEntity, page)
		return
	}

	if _, err := store.Refresh(r.Context(), clientOf(r)); err != nil {
		if apiclient.IsUnauthorized(err) {
			s.unauthorized(w, r)
			return
		}
		// 刷新失败时仍然更新头像版本，避免浏览器继续显示旧的缓存
		slog.Warn("上传头像后无法刷新个人信息", "error", err)
		cur := store.Current()
		if err := store.UpdateAfterSuccess(r.Context(), session.ProfilePatch{ProfileImage: &cur.Profile.ProfileImage}); err != nil {
			s.internalServerError(w, r, err)
			return
		}
	}
	s.flash(w, r, listing.NotificationSuccess, "头像已更新")
	s.redirect(w, r, "/profile")
}

func (s *Server) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.internalServerError(w, r, err)
		return
	}

	f := form.PasswordForm{
		CurrentPassword:         r.PostFormValue("current_password"),
		NewPassword:             r.PostFormValue("new_password"),
		NewPasswordConfirmation: r.PostFormValue("new_password_confirmation"),
	}
	page := s.newProfilePage(r)

	errs := s.validator.Check(f)
	for k, msg := range form.PasswordSpec().Check(form.ModeEdit, f) {
		if errs == nil {
			errs = make(map[string]string)
		}
		if _, exists := errs[k]; !exists {
			errs[k] = msg
		}
	}
	if errs != nil {
		page.PasswordErrors = errs
		s.renderProfile(w, r, http.StatusUnprocessableEntity, page)
		return
	}

	err := clientOf(r).ChangePassword(r.Context(), apiclient.PasswordChange{
		CurrentPassword:         f.CurrentPassword,
		NewPassword:             f.NewPassword,
		NewPasswordConfirmation: f.NewPasswordConfirmation,
	})
	switch {
	case err == nil:
		s.flash(w, r, listing.NotificationSuccess, "密码已修改")
		s.redirect(w, r, "/profile")
	case apiclient.IsUnauthorized(err):
		s.unauthorized(w, r)
	default:
		page.Error = apiclient.Message(err)
		page.PasswordErrors = apiclient.FieldErrors(err)
		s.renderProfile(w, r, http.StatusUnprocessableEntity, page)
	}
}
