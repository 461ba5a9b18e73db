package apiclient

import (
	"context"
	"net/http"

	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/tidwall/gjson"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token   string
	Role    domain.Role
	Profile domain.Profile
}

type loginResponse struct {
	Token string `json:"token"`
	Type  string `json:"type"`
	User  struct {
		domain.Profile
		Avatar string `json:"avatar"`
		Roles  []struct {
			Name string `json:"name"`
		} `json:"roles"`
	} `json:"user"`
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	body := map[string]string{
		"email":       creds.Email,
		"password":    creds.Password,
		"device_name": c.deviceName,
	}

	var resp loginResponse
	if err := c.Do(ctx, http.MethodPost, "admin/login", body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &HTTPError{Status: http.StatusUnprocessableEntity, Path: "admin/login", Message: "登录失败：未收到令牌"}
	}

	result := &LoginResult{
		Token:   resp.Token,
		Role:    domain.Role(resp.Type),
		Profile: resp.User.Profile,
	}
	if len(resp.User.Roles) > 0 && resp.User.Roles[0].Name != "" {
		result.Role = domain.Role(resp.User.Roles[0].Name)
	}
	if result.Profile.ProfileImage == "" {
		result.Profile.ProfileImage = resp.User.Avatar
	}
	return result, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "admin/logout", nil, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	raw, err := c.Raw(ctx, http.MethodPost, "admin/forgot-password", map[string]string{"email": email})
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(raw, "message").String(), nil
}

// VerifyUser 校验重置密码的验证码并返回重置令牌，验证码错误时服务端返回 401
func (c *Client) VerifyUser(ctx context.Context, email, otp string) (string, error) {
	raw, err := c.Raw(ctx, http.MethodPost, "admin/verify-user", map[string]string{"email": email, "otp": otp})
	if err != nil {
		return "", err
	}
	for _, path := range []string{"token", "data.token"} {
		if token := gjson.GetBytes(raw, path).String(); token != "" {
			return token, nil
		}
	}
	return "", &HTTPError{Status: http.StatusUnprocessableEntity, Path: "admin/verify-user", Message: "验证失败：未收到重置令牌"}
}

type PasswordReset struct {
	Email                string `json:"email"`
	Token                string `json:"token"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (c *Client) ResetPassword(ctx context.Context, req PasswordReset) error {
	return c.Do(ctx, http.MethodPost, "admin/reset-password", req, nil)
}
