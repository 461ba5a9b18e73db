package domain

import "time"

// Notice 是唯一的一份富文本公告
type Notice struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}
