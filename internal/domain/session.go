package domain

type Profile struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	ProfileImage string `json:"profile_image"`
}

// Session 表示控制台中某个浏览器会话的登录状态
type Session struct {
	Token         string  `json:"-"`
	Role          Role    `json:"role"`
	Profile       Profile `json:"profile"`
	AvatarVersion int64   `json:"avatarVersion"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

func (s *Session) IsAdmin() bool {
	return s.Authenticated() && s.Role.IsAdmin()
}
