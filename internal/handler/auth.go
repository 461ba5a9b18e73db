package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/repository"
	"github.com/sysu-ecnc-dev/info-admin/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) redisContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, time.Duration(h.config.Redis.OperationExpiration)*time.Second)
}

func otpKey(email string) string {
	return fmt.Sprintf("otp_%s_reset_password", email)
}

func resetTokenKey(email string) string {
	return fmt.Sprintf("reset_token_%s", email)
}

func revokedKey(id string) string {
	return fmt.Sprintf("revoked_token_%s", id)
}

func (h *Handler) issueToken(user *domain.User, now time.Time) (string, error) {
	expiration := now.Add(time.Duration(h.config.JWT.Expiration) * time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	})
	return token.SignedString([]byte(h.config.JWT.Secret))
}

func (h *Handler) parseToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(h.config.JWT.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (h *Handler) isRevoked(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	ctx, cancel := h.redisContext(ctx)
	defer cancel()

	n, err := h.redisClient.Exists(ctx, revokedKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// loginUser 是登录响应中的用户信息，roles 与旧版前端的格式保持一致
func loginUser(user *domain.User) map[string]any {
	return map[string]any{
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"phone":         user.Phone,
		"status":        user.Status,
		"profile_image": user.ProfileImage,
		"roles":         []map[string]string{{"name": string(user.Role)}},
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email" validate:"required,email"`
		Password   string `json:"password" validate:"required"`
		DeviceName string `json:"device_name"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 验证邮箱和密码
	user, err := h.repository.GetUserByEmail(req.Email)
	if err != nil {
		switch {
		case repository.IsNotFound(err):
			h.unauthorized(w, r, "邮箱或密码错误")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			h.unauthorized(w, r, "邮箱或密码错误")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if user.Status == domain.UserStatusInactive {
		h.errorResponse(w, r, http.StatusForbidden, "账号已被停用")
		return
	}

	// 生成 JWT，通过响应体返回给客户端
	ss, err := h.issueToken(user, time.Now())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	slog.Info("用户登录", "id", user.ID, "device", req.DeviceName)
	h.successResponse(w, r, "登录成功", map[string]any{
		"token": ss,
		"type":  string(user.Role),
		"user":  loginUser(user),
	})
}

// Logout 把当前令牌加入黑名单直到它自然过期
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(TokenCtxKey).(*AuthClaims)

	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}

	if claims.ID != "" && ttl > 0 {
		ctx, cancel := h.redisContext(r.Context())
		defer cancel()

		if err := h.redisClient.Set(ctx, revokedKey(claims.ID), 1, ttl).Err(); err != nil {
			h.internalServerError(w, r, err)
			return
		}
	}

	h.successResponse(w, r, "登出成功", nil)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
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

	const sent = "重置密码所需验证码已通过邮件发送"

	user, err := h.repository.GetUserByEmail(req.Email)
	if err != nil {
		switch {
		case repository.IsNotFound(err):
			// 这里虽然已经知道了用户不存在，但是为了安全起见，还是告诉客户端邮件已发送，以防止接口被滥用
			h.successResponse(w, r, sent, nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 生成 OTP 并将 OTP 存到 redis
	otp := utils.GenerateRandomOTP()

	ctx, cancel := h.redisContext(r.Context())
	defer cancel()

	if err := h.redisClient.Set(ctx, otpKey(user.Email), otp, time.Duration(h.config.OTP.Expiration)*time.Second).Err(); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 发送邮件到消息队列中
	mailMessage := domain.MailMessage{
		Type: domain.MailTypeResetPassword,
		To:   user.Email,
		Data: domain.ResetPasswordMailData{
			Name:       user.Name,
			OTP:        otp,
			Expiration: h.config.OTP.Expiration / 60, // 邮件中显示的过期时间以分钟为单位，而配置中以秒为单位
		},
	}
	if err := h.mail.Publish(r.Context(), mailMessage); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, sent, nil)
}

// VerifyUser 校验验证码，成功后换成一次性的重置令牌；验证码错误时返回 401
func (h *Handler) VerifyUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
		OTP   string `json:"otp" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	ctx, cancel := h.redisContext(r.Context())
	defer cancel()

	otp, err := h.redisClient.Get(ctx, otpKey(req.Email)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		h.unauthorized(w, r, "验证码错误或已过期")
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	case otp != req.OTP:
		h.unauthorized(w, r, "验证码错误或已过期")
		return
	}

	token := uuid.NewString()
	if err := h.redisClient.Set(ctx, resetTokenKey(req.Email), token, time.Duration(h.config.OTP.Expiration)*time.Second).Err(); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 验证码只能使用一次
	if err := h.redisClient.Del(ctx, otpKey(req.Email)).Err(); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "验证成功", map[string]any{"token": token})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email                string `json:"email" validate:"required,email"`
		Token                string `json:"token" validate:"required"`
		Password             string `json:"password" validate:"required,min=8"`
		PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 检验重置令牌
	ctx, cancel := h.redisContext(r.Context())
	defer cancel()

	token, err := h.redisClient.Get(ctx, resetTokenKey(req.Email)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		h.errorResponse(w, r, http.StatusUnprocessableEntity, "重置链接已失效，请重新获取验证码")
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	case token != req.Token:
		h.errorResponse(w, r, http.StatusUnprocessableEntity, "重置链接已失效，请重新获取验证码")
		return
	}

	user, err := h.repository.GetUserByEmail(req.Email)
	if err != nil {
		switch {
		case repository.IsNotFound(err):
			h.errorResponse(w, r, http.StatusUnprocessableEntity, "用户不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 更新密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	user.PasswordHash = string(hashedPassword)

	if err := h.repository.UpdateUser(user); err != nil {
		switch {
		case repository.IsNotFound(err):
			h.errorResponse(w, r, http.StatusConflict, "请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 删除重置令牌
	if err := h.redisClient.Del(ctx, resetTokenKey(req.Email)).Err(); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "重置密码成功", nil)
}
