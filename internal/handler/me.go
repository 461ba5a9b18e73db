package handler

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
	h.successResponse(w, r, "获取个人信息成功", map[string]any{"user": myInfo})
}

func (h *Handler) UpdateMyInfo(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		Name  string `json:"name" validate:"required,max=100"`
		Email string `json:"email" validate:"required,email"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 检测新邮箱是否已被占用
	isExists, err := h.repository.CheckEmailIfExists(req.Email, myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if isExists {
		h.fieldError(w, r, "email", "邮箱已被占用")
		return
	}

	myInfo.Name = req.Name
	myInfo.Email = req.Email

	if err := h.repository.UpdateUser(myInfo); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "users_email_key":
			h.fieldError(w, r, "email", "邮箱已被占用")
		case repository.IsNotFound(err):
			h.errorResponse(w, r, http.StatusConflict, "更新个人信息失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新个人信息成功", map[string]any{"user": myInfo})
}

var imageTypes = []string{"image/jpeg", "image/png", "image/webp"}

func (h *Handler) UpdateMyProfileImage(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	if err := parseMultipart(r); err != nil {
		if errors.Is(err, errFileTooLarge) {
			h.fieldError(w, r, "image", "图片大小不能超过 5MB")
		} else {
			h.fieldError(w, r, "image", "请选择要上传的图片")
		}
		return
	}

	data, err := readFormFile(r, "image", domain.UploadMaxFileSize)
	switch {
	case errors.Is(err, errFileTooLarge):
		h.fieldError(w, r, "image", "图片大小不能超过 5MB")
		return
	case err != nil:
		h.fieldError(w, r, "image", "请选择要上传的图片")
		return
	}

	name, err := h.storage.Save("avatars", data, imageTypes...)
	switch {
	case errors.Is(err, ErrUnsupportedFileType):
		h.fieldError(w, r, "image", "只能上传 JPG、PNG 或 WEBP 图片")
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	}

	old := myInfo.ProfileImage
	myInfo.ProfileImage = name
	if err := h.repository.UpdateUser(myInfo); err != nil {
		_ = h.storage.Remove(name)
		switch {
		case repository.IsNotFound(err):
			h.errorResponse(w, r, http.StatusConflict, "更新头像失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.storage.Remove(old); err != nil {
		h.logInternalServerError(r, err)
	}

	h.successResponse(w, r, "更新头像成功", map[string]any{"user": myInfo})
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		CurrentPassword         string `json:"current_password" validate:"required"`
		NewPassword             string `json:"new_password" validate:"required,min=8"`
		NewPasswordConfirmation string `json:"new_password_confirmation" validate:"required,eqfield=NewPassword"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(myInfo.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		h.fieldError(w, r, "current_password", "当前密码错误")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	myInfo.PasswordHash = string(hashedPassword)

	if err := h.repository.UpdateUser(myInfo); err != nil {
		switch {
		case repository.IsNotFound(err):
			h.errorResponse(w, r, http.StatusConflict, "更新密码失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新密码成功", nil)
}
