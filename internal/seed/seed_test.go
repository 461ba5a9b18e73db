package seed

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type memStore struct {
	users     []*domain.User
	bookmarks []*domain.Bookmark
	uploads   []*domain.Upload
	notices   []*domain.Notice
	emails    map[string]bool
}

func newMemStore() *memStore {
	return &memStore{emails: make(map[string]bool)}
}

func (m *memStore) CreateUser(u *domain.User) error {
	if m.emails[u.Email] {
		return errors.New("duplicate email")
	}
	m.emails[u.Email] = true
	u.ID = int64(len(m.users) + 1)
	m.users = append(m.users, u)
	return nil
}

func (m *memStore) CreateBookmark(b *domain.Bookmark) error {
	m.bookmarks = append(m.bookmarks, b)
	return nil
}

func (m *memStore) CreateUpload(u *domain.Upload) error {
	m.uploads = append(m.uploads, u)
	return nil
}

func (m *memStore) GetAllNotices() ([]*domain.Notice, error) {
	return m.notices, nil
}

func (m *memStore) CreateNotice(n *domain.Notice) error {
	n.ID = int64(len(m.notices) + 1)
	m.notices = append(m.notices, n)
	return nil
}

type fakeFiles struct {
	saved int
}

func (f *fakeFiles) Save(folder string, data []byte, allowed ...string) (string, error) {
	f.saved++
	if !strings.HasPrefix(string(data), "%PDF-") {
		return "", errors.New("not a pdf")
	}
	return folder + "/file.pdf", nil
}

func TestUsersShareHashedPassword(t *testing.T) {
	s := newMemStore()

	n, err := Users(s, 3, "password", "example.com")
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 3)
	require.Len(t, s.users, n)

	for _, u := range s.users {
		assert.True(t, strings.HasSuffix(u.Email, "@example.com"))
		assert.Equal(t, domain.RoleUser, u.Role)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password")))
	}
}

func TestBookmarksAndUploads(t *testing.T) {
	s := newMemStore()

	assert.Equal(t, 4, Bookmarks(s, domain.BookmarkKindWebsite, 4))
	for _, b := range s.bookmarks {
		assert.Equal(t, domain.BookmarkKindWebsite, b.Kind)
		assert.True(t, strings.HasPrefix(b.URL, "https://"))
	}

	files := &fakeFiles{}
	assert.Equal(t, 2, Uploads(s, files, 2))
	assert.Equal(t, 2, files.saved)
	for _, u := range s.uploads {
		assert.Equal(t, "uploads/file.pdf", u.File)
		assert.LessOrEqual(t, len([]rune(u.Title)), domain.UploadTitleMaxLength)
	}
}

func TestNoticeSeededOnce(t *testing.T) {
	s := newMemStore()

	created, err := Notice(s, "<p>hello</p>")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = Notice(s, "<p>again</p>")
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, s.notices, 1)
	assert.Equal(t, "<p>hello</p>", s.notices[0].Content)
}

func TestImportUsers(t *testing.T) {
	s := newMemStore()

	csv := "\ufeff姓名,邮箱,手机号,状态\n" +
		"张三,zhangsan@example.com,13800000000,在职\n" +
		"李四,lisi@example.com,13900000000,离职\n" +
		",nobody@example.com,13700000000,\n" +
		"王五,zhangsan@example.com,13600000000,\n"

	n, err := ImportUsers(s, strings.NewReader(csv), "password")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, s.users, 2)
	assert.Equal(t, domain.UserStatusActive, s.users[0].Status)
	assert.Equal(t, domain.UserStatusInactive, s.users[1].Status)
}

func TestImportUsersRequiresColumns(t *testing.T) {
	_, err := ImportUsers(newMemStore(), strings.NewReader("姓名,邮箱\n张三,a@example.com\n"), "password")
	assert.ErrorContains(t, err, "手机号")
}
