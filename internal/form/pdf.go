package form

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
)

var (
	ErrNotPDF       = errors.New("只能上传 PDF 文件")
	ErrFileTooLarge = fmt.Errorf("文件大小不能超过 %dMB", domain.UploadMaxFileSize>>20)
	ErrEmptyFile    = errors.New("文件内容为空")
	ErrNotImage     = errors.New("只能上传 JPG、PNG 或 WEBP 图片")
)

// CheckPDF 在选择文件时校验类型和大小，类型以文件内容为准而不是扩展名
func CheckPDF(name string, data []byte) (*apiclient.File, error) {
	switch {
	case len(data) == 0:
		return nil, ErrEmptyFile
	case len(data) > domain.UploadMaxFileSize:
		return nil, ErrFileTooLarge
	}

	mtype := mimetype.Detect(data)
	if !mtype.Is("application/pdf") {
		return nil, ErrNotPDF
	}
	return &apiclient.File{Name: name, ContentType: "application/pdf", Data: data}, nil
}

var imageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// CheckImage 校验头像图片
func CheckImage(name string, data []byte) (*apiclient.File, error) {
	switch {
	case len(data) == 0:
		return nil, ErrEmptyFile
	case len(data) > domain.UploadMaxFileSize:
		return nil, ErrFileTooLarge
	}

	mtype := mimetype.Detect(data)
	for _, t := range imageTypes {
		if mtype.Is(t) {
			return &apiclient.File{Name: name, ContentType: t, Data: data}, nil
		}
	}
	return nil, ErrNotImage
}
