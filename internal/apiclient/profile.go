package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/tidwall/gjson"
)

func (c *Client) GetProfile(ctx context.Context) (*domain.Profile, error) {
	raw, err := c.Raw(ctx, http.MethodGet, "admin/profile", nil)
	if err != nil {
		return nil, err
	}

	// 兼容 {user: {...}}、{data: {...}} 以及直接返回对象三种结构
	obj := gjson.ParseBytes(raw)
	for _, key := range []string{"user", "data"} {
		if r := obj.Get(key); r.IsObject() {
			obj = r
			break
		}
	}

	profile := &domain.Profile{}
	if err := json.Unmarshal([]byte(obj.Raw), profile); err != nil {
		return nil, fmt.Errorf("无法解析个人信息: %w", err)
	}
	if profile.ProfileImage == "" {
		profile.ProfileImage = obj.Get("avatar").String()
	}
	return profile, nil
}

type ProfileUpdate struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (c *Client) UpdateProfile(ctx context.Context, req ProfileUpdate) error {
	return c.Do(ctx, http.MethodPost, "admin/profile/update", req, nil)
}

func (c *Client) UpdateProfileImage(ctx context.Context, image File) error {
	body := NewMultipart()
	body.Files["image"] = image
	return c.Do(ctx, http.MethodPost, "admin/profile/image", body, nil)
}

type PasswordChange struct {
	CurrentPassword         string `json:"current_password"`
	NewPassword             string `json:"new_password"`
	NewPasswordConfirmation string `json:"new_password_confirmation"`
}

func (c *Client) ChangePassword(ctx context.Context, req PasswordChange) error {
	return c.Do(ctx, http.MethodPost, "admin/profile/change-password", req, nil)
}
