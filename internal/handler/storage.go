package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
)

var ErrUnsupportedFileType = errors.New("不支持的文件类型")

// Storage 把上传的文件保存在本地目录中，文件名使用随机的 uuid
type Storage struct {
	dir string
}

func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("无法创建存储目录: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Save 按文件内容判断类型，只接受 allowed 中列出的类型，返回相对于存储目录的路径
func (s *Storage) Save(folder string, data []byte, allowed ...string) (string, error) {
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowed...) {
		return "", ErrUnsupportedFileType
	}

	if err := os.MkdirAll(filepath.Join(s.dir, folder), 0o755); err != nil {
		return "", err
	}

	name := path.Join(folder, uuid.NewString()+mtype.Extension())
	if err := os.WriteFile(filepath.Join(s.dir, filepath.FromSlash(name)), data, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// Remove 删除之前保存的文件，文件不存在时忽略
func (s *Storage) Remove(name string) error {
	if name == "" || strings.Contains(name, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *Storage) FileServer() http.Handler {
	return http.FileServer(http.Dir(s.dir))
}

// limitUpload 限制上传请求体的大小，过大的请求不会被完整读取或写入临时文件
var limitUpload = middleware.RequestSize(domain.UploadMaxRequestSize)

// parseMultipart 解析上传表单，请求体超过上限时返回 errFileTooLarge
func parseMultipart(r *http.Request) error {
	if r.ContentLength > domain.UploadMaxRequestSize {
		return errFileTooLarge
	}

	err := r.ParseMultipartForm(domain.UploadMaxFileSize)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errFileTooLarge
	}
	return err
}

// readFormFile 读取 multipart 表单中的文件，超过 limit 时返回 errFileTooLarge
func readFormFile(r *http.Request, field string, limit int64) ([]byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if header.Size > limit {
		return nil, errFileTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errFileTooLarge
	}
	return data, nil
}

var errFileTooLarge = errors.New("文件过大")
