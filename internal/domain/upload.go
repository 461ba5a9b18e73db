package domain

import "time"

const (
	UploadTitleMaxLength = 50
	UploadMaxFileSize    = 5 * 1024 * 1024
	// 上传请求体的上限，文件之外给标题等表单字段留出余量
	UploadMaxRequestSize = UploadMaxFileSize + 1024*1024
)

type Upload struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	File      string    `json:"pdf"`
	CreatedAt time.Time `json:"created_at"`
}
