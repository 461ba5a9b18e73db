package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/repository"
	"github.com/sysu-ecnc-dev/info-admin/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

type userRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,max=20"`
	Status   string `json:"status" validate:"required,oneof=Active Inactive"`
	Role     string `json:"role" validate:"omitempty,oneof=Admin User"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

func (h *Handler) userConflict(w http.ResponseWriter, r *http.Request, err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == "users_email_key" {
		h.fieldError(w, r, "email", "邮箱已存在")
		return true
	}
	return false
}

func (h *Handler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.readPage(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	users, err := h.repository.GetUsers(page, PerPage)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取用户列表成功", map[string]any{"users": paged(users.Items, page, users.Total)})
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 没有指定密码时生成随机密码，并通过邮件告知用户
	password := req.Password
	generated := password == ""
	if generated {
		password = utils.GenerateRandomPassword(h.config.NewUser.PasswordLength)
	}

	// 对密码进行哈希
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	role := domain.RoleUser
	if req.Role != "" {
		role = domain.Role(req.Role)
	}

	// 插入用户到数据库中
	user := &domain.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Status:       domain.UserStatus(req.Status),
		Role:         role,
		PasswordHash: string(hashedPassword),
	}

	if err := h.repository.CreateUser(user); err != nil {
		if !h.userConflict(w, r, err) {
			h.internalServerError(w, r, err)
		}
		return
	}

	msg := "用户创建成功"
	if generated {
		mailMessage := domain.MailMessage{
			Type: domain.MailTypeCreateUser,
			To:   user.Email,
			Data: domain.CreateUserMailData{
				Name:     user.Name,
				Email:    user.Email,
				Password: password,
			},
		}
		// 用户已经创建，邮件发送失败只记录日志
		if err := h.mail.Publish(r.Context(), mailMessage); err != nil {
			slog.Error("无法发送新用户邮件", "email", user.Email, "error", err)
			msg = "用户创建成功，但邮件发送失败"
		}
	}

	h.successResponse(w, r, msg, map[string]any{"user": user})
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user := r.Context().Value(UserInfoCtx).(*domain.User)

	// 初始管理员不能被停用或降级
	if user.Email == h.config.InitialAdmin.Email {
		if req.Status != string(domain.UserStatusActive) || (req.Role != "" && req.Role != string(domain.RoleAdmin)) || req.Email != user.Email {
			h.errorResponse(w, r, http.StatusForbidden, "禁止修改初始管理员的状态、角色或邮箱")
			return
		}
	}

	user.Name = req.Name
	user.Email = req.Email
	user.Phone = req.Phone
	user.Status = domain.UserStatus(req.Status)
	if req.Role != "" {
		user.Role = domain.Role(req.Role)
	}
	if req.Password != "" {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		user.PasswordHash = string(hashedPassword)
	}

	if err := h.repository.UpdateUser(user); err != nil {
		switch {
		case h.userConflict(w, r, err):
		case repository.IsNotFound(err):
			h.errorResponse(w, r, http.StatusConflict, "更新用户信息失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新用户信息成功", map[string]any{"user": user})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	if err := h.repository.DeleteUser(user.ID); err != nil {
		switch {
		case repository.IsNotFound(err):
			h.notFound(w, r, "用户不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.storage.Remove(user.ProfileImage); err != nil {
		h.logInternalServerError(r, err)
	}

	h.successResponse(w, r, "删除用户成功", nil)
}
