package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// Store 是插入测试数据所需的数据库操作
type Store interface {
	CreateUser(user *domain.User) error
	CreateBookmark(b *domain.Bookmark) error
	CreateUpload(u *domain.Upload) error
	GetAllNotices() ([]*domain.Notice, error)
	CreateNotice(n *domain.Notice) error
}

// FileSaver 保存上传文件的内容
type FileSaver interface {
	Save(folder string, data []byte, allowed ...string) (string, error)
}

// 所有随机用户共用同一个密码，只需要计算一次哈希
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Users 插入 n 个随机用户，返回成功插入的数量
func Users(s Store, n int, password, emailDomain string) (int, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return 0, err
	}

	cnt := 0
	for i := 0; i < n; i++ {
		user := utils.GenerateRandomUser(emailDomain)
		user.PasswordHash = hash
		if err := s.CreateUser(user); err != nil {
			// 随机生成的邮箱可能重复
			slog.Error("无法插入用户", "email", user.Email, "error", err)
			continue
		}
		cnt++
	}
	return cnt, nil
}

func Bookmarks(s Store, kind domain.BookmarkKind, n int) int {
	cnt := 0
	for i := 0; i < n; i++ {
		if err := s.CreateBookmark(utils.GenerateRandomBookmark(kind)); err != nil {
			slog.Error("无法插入链接", "kind", kind, "error", err)
			continue
		}
		cnt++
	}
	return cnt
}

// samplePDF 是一个只有一页空白内容的 PDF 文件
const samplePDF = "%PDF-1.4\n" +
	"1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n" +
	"2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj\n" +
	"3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] >> endobj\n" +
	"trailer << /Root 1 0 R >>\n" +
	"%%EOF\n"

func Uploads(s Store, files FileSaver, n int) int {
	cnt := 0
	for i := 0; i < n; i++ {
		name, err := files.Save("uploads", []byte(samplePDF), "application/pdf")
		if err != nil {
			slog.Error("无法保存文件", "error", err)
			continue
		}

		u := &domain.Upload{Title: utils.GenerateRandomUploadTitle(), File: name}
		if err := s.CreateUpload(u); err != nil {
			slog.Error("无法插入文件", "error", err)
			continue
		}
		cnt++
	}
	return cnt
}

// Notice 在还没有通知时插入一份，已经存在时不做任何事
func Notice(s Store, content string) (bool, error) {
	notices, err := s.GetAllNotices()
	if err != nil {
		return false, err
	}
	if len(notices) > 0 {
		return false, nil
	}
	if err := s.CreateNotice(&domain.Notice{Content: content}); err != nil {
		return false, err
	}
	return true, nil
}

var columns = []string{"姓名", "邮箱", "手机号"}

// ImportUsers 从 CSV 中导入真实的用户，表头必须包含姓名、邮箱和手机号，状态列可选
func ImportUsers(s Store, r io.Reader, password string) (int, error) {
	reader := csv.NewReader(r)

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("读取表头失败: %w", err)
	}
	index := make(map[string]int, len(headers))
	for i, header := range headers {
		index[strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))] = i
	}
	for _, col := range columns {
		if _, ok := index[col]; !ok {
			return 0, fmt.Errorf("没有找到 %s 列", col)
		}
	}

	hash, err := hashPassword(password)
	if err != nil {
		return 0, err
	}

	cnt := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cnt, fmt.Errorf("读取文件失败: %w", err)
		}

		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		user := &domain.User{
			Name:         get("姓名"),
			Email:        get("邮箱"),
			Phone:        get("手机号"),
			Status:       domain.UserStatusActive,
			Role:         domain.RoleUser,
			PasswordHash: hash,
		}
		if get("状态") == "离职" || get("状态") == string(domain.UserStatusInactive) {
			user.Status = domain.UserStatusInactive
		}
		if user.Name == "" || user.Email == "" {
			slog.Error("缺少姓名或邮箱", "row", row)
			continue
		}

		if err := s.CreateUser(user); err != nil {
			slog.Error("无法插入用户", "email", user.Email, "error", err)
			continue
		}
		cnt++
	}
	return cnt, nil
}
