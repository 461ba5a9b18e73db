package form

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/utils"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestOpenEditInitializesFromEntity(t *testing.T) {
	m := NewModal(newValidator(t), UserSpec())

	require.NoError(t, m.OpenEdit(1, domain.User{Name: "张三", Email: "z@x.com", Phone: "13800000000", Status: domain.UserStatusInactive}))
	v := m.View()
	assert.True(t, v.Open)
	assert.Equal(t, ModeEdit, v.Mode)
	assert.Equal(t, "张三", v.Fields.Name)
	assert.Equal(t, domain.UserStatusInactive, v.Fields.Status)

	// 切换到另一个实体时不会带上之前的内容
	require.NoError(t, m.Set(UserForm{Name: "改过的", Email: "z@x.com", Phone: "1", Status: domain.UserStatusActive}))
	require.NoError(t, m.OpenEdit(2, domain.User{Name: "李四", Email: "l@x.com"}))
	v = m.View()
	assert.Equal(t, int64(2), v.TargetID)
	assert.Equal(t, "李四", v.Fields.Name)
	assert.Empty(t, v.Fields.Phone)
	assert.Equal(t, domain.UserStatusActive, v.Fields.Status)

	require.NoError(t, m.OpenCreate())
	v = m.View()
	assert.Equal(t, ModeCreate, v.Mode)
	assert.Equal(t, UserForm{Status: domain.UserStatusActive}, v.Fields)
}

func TestValidationSurfacedOnlyAfterSubmit(t *testing.T) {
	m := NewModal(newValidator(t), BookmarkSpec())
	require.NoError(t, m.OpenCreate())

	require.NoError(t, m.Set(BookmarkForm{Title: "", URL: "not a url"}))
	assert.Empty(t, m.View().Errors)

	called := false
	err := m.Submit(context.Background(), func(context.Context, Mode, int64, BookmarkForm) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.False(t, called)

	v := m.View()
	assert.True(t, v.Open)
	assert.Contains(t, v.Errors, "title")
	assert.Contains(t, v.Errors, "url")
	assert.Contains(t, v.Errors["title"], "标题")

	// 提交过之后修改字段会立即更新校验结果
	require.NoError(t, m.Set(BookmarkForm{Title: "Portal", URL: "not a url"}))
	v = m.View()
	assert.NotContains(t, v.Errors, "title")
	assert.Contains(t, v.Errors, "url")
}

func TestSubmitSuccessClosesModal(t *testing.T) {
	m := NewModal(newValidator(t), BookmarkSpec())
	require.NoError(t, m.OpenEdit(9, domain.Bookmark{ID: 9, Title: "旧标题", URL: "https://old.example.com"}))
	require.NoError(t, m.Set(BookmarkForm{Title: "Portal", URL: "https://example.com"}))

	var gotMode Mode
	var gotID int64
	var got BookmarkForm
	err := m.Submit(context.Background(), func(_ context.Context, mode Mode, id int64, f BookmarkForm) error {
		gotMode, gotID, got = mode, id, f
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, ModeEdit, gotMode)
	assert.Equal(t, int64(9), gotID)
	assert.Equal(t, map[string]string{"title": "Portal", "url": "https://example.com"}, got.Payload())
	assert.False(t, m.View().Open)
}

func TestSubmitFailureKeepsFields(t *testing.T) {
	m := NewModal(newValidator(t), UserSpec())
	require.NoError(t, m.OpenCreate())
	input := UserForm{Name: "王五", Email: "w@x.com", Phone: "13900000000", Status: domain.UserStatusActive}
	require.NoError(t, m.Set(input))

	serverErr := &apiclient.HTTPError{
		Status:  http.StatusUnprocessableEntity,
		Message: "The given data was invalid.",
		Fields:  map[string]string{"email": "邮箱已被使用"},
	}
	err := m.Submit(context.Background(), func(context.Context, Mode, int64, UserForm) error {
		return serverErr
	})

	require.ErrorIs(t, err, serverErr)
	v := m.View()
	assert.True(t, v.Open)
	assert.Equal(t, input, v.Fields)
	assert.Equal(t, "The given data was invalid.", v.Message)
	assert.Equal(t, "邮箱已被使用", v.Errors["email"])
}

func TestSubmitWhileBusy(t *testing.T) {
	m := NewModal(newValidator(t), BookmarkSpec())
	require.NoError(t, m.OpenCreate())
	require.NoError(t, m.Set(BookmarkForm{Title: "Portal", URL: "https://example.com"}))

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.Submit(context.Background(), func(context.Context, Mode, int64, BookmarkForm) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.True(t, m.View().Busy)
	assert.ErrorIs(t, m.Submit(context.Background(), func(context.Context, Mode, int64, BookmarkForm) error {
		t.Fatal("不应该重复提交")
		return nil
	}), ErrBusy)
	assert.ErrorIs(t, m.Close(), ErrBusy)
	assert.ErrorIs(t, m.Set(BookmarkForm{}), ErrBusy)

	close(release)
	wg.Wait()
	assert.False(t, m.View().Open)
}

func TestSubmitClosedModal(t *testing.T) {
	m := NewModal(newValidator(t), BookmarkSpec())
	assert.ErrorIs(t, m.Submit(context.Background(), nil), ErrClosed)
	assert.ErrorIs(t, m.Set(BookmarkForm{}), ErrClosed)
}

func TestUploadRequiresFileOnlyOnCreate(t *testing.T) {
	m := NewModal(newValidator(t), UploadSpec())
	noop := func(context.Context, Mode, int64, UploadForm) error { return nil }

	require.NoError(t, m.OpenCreate())
	require.NoError(t, m.Set(UploadForm{Title: "季度报告"}))
	assert.ErrorIs(t, m.Submit(context.Background(), noop), ErrInvalid)
	assert.Contains(t, m.View().Errors, "pdf")

	require.NoError(t, m.OpenEdit(3, domain.Upload{ID: 3, Title: "季度报告", File: "uploads/a.pdf"}))
	assert.Equal(t, "uploads/a.pdf", m.View().Fields.Current)
	assert.NoError(t, m.Submit(context.Background(), noop))
}

func TestUploadTitleLength(t *testing.T) {
	v := newValidator(t)

	assert.Empty(t, v.Check(UploadForm{Title: strings.Repeat("文", domain.UploadTitleMaxLength)}))
	errs := v.Check(UploadForm{Title: strings.Repeat("文", domain.UploadTitleMaxLength+1)})
	assert.Contains(t, errs, "title")
}

func TestRejectedFileShownImmediately(t *testing.T) {
	m := NewModal(newValidator(t), UploadSpec())
	require.NoError(t, m.OpenCreate())

	_, err := CheckPDF("a.txt", []byte("hello world"))
	require.ErrorIs(t, err, ErrNotPDF)
	require.NoError(t, m.Set(UploadForm{Title: "x"}))
	m.Reject("pdf", err.Error())

	v := m.View()
	assert.Equal(t, ErrNotPDF.Error(), v.Errors["pdf"])
	assert.Nil(t, v.Fields.File)
}

func pdfOfSize(n int) []byte {
	header := []byte("%PDF-1.4\n")
	return append(header, bytes.Repeat([]byte{' '}, n-len(header))...)
}

func TestCheckPDFBoundary(t *testing.T) {
	f, err := CheckPDF("exact.pdf", pdfOfSize(domain.UploadMaxFileSize))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType)
	assert.Equal(t, "exact.pdf", f.Name)

	_, err = CheckPDF("big.pdf", pdfOfSize(domain.UploadMaxFileSize+1))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = CheckPDF("empty.pdf", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestCheckPDFIgnoresExtension(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	_, err := CheckPDF("fake.pdf", png)
	assert.True(t, errors.Is(err, ErrNotPDF))

	_, err = CheckImage("avatar.png", png)
	assert.NoError(t, err)
	_, err = CheckImage("doc.png", pdfOfSize(100))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestGeneratedPasswordUsesCharset(t *testing.T) {
	p := NewPasswordField(12, clock.NewMock())
	for i := 0; i < 200; i++ {
		pw := p.Generate()
		require.Len(t, pw, 12)
		for _, r := range pw {
			require.True(t, strings.ContainsRune(utils.PasswordCharset, r), "字符 %q 不在字符集中", r)
		}
	}
	assert.Equal(t, p.Generate(), p.Value())
}

func TestPasswordCopiedRevertsAfterTwoSeconds(t *testing.T) {
	clk := clock.NewMock()
	p := NewPasswordField(12, clk)

	_, ok := p.Copy()
	assert.False(t, ok)
	assert.False(t, p.Copied())

	pw := p.Generate()
	copied, ok := p.Copy()
	require.True(t, ok)
	assert.Equal(t, pw, copied)
	assert.True(t, p.Copied())
	assert.Equal(t, CopiedDuration, p.CopiedRemaining())

	clk.Add(1999 * time.Millisecond)
	assert.True(t, p.Copied())
	assert.Equal(t, time.Millisecond, p.CopiedRemaining())
	clk.Add(time.Millisecond)
	assert.False(t, p.Copied())
	assert.Zero(t, p.CopiedRemaining())

	// 重新生成会清除提示
	_, _ = p.Copy()
	p.Generate()
	assert.False(t, p.Copied())
}

func TestToggleVisible(t *testing.T) {
	p := NewPasswordField(12, nil)
	assert.False(t, p.Visible())
	assert.True(t, p.ToggleVisible())
	assert.False(t, p.ToggleVisible())
}

func TestPasswordConfirmation(t *testing.T) {
	m := NewModal(newValidator(t), PasswordSpec())
	require.NoError(t, m.OpenCreate())
	require.NoError(t, m.Set(PasswordForm{CurrentPassword: "old", NewPassword: "12345678", NewPasswordConfirmation: "87654321"}))

	err := m.Submit(context.Background(), func(context.Context, Mode, int64, PasswordForm) error { return nil })
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, "两次输入的密码不一致", m.View().Errors["new_password_confirmation"])
}
