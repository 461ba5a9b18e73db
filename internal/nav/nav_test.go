package nav

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
)

func paths(entries []Entry) []string {
	var ps []string
	for _, e := range entries {
		ps = append(ps, e.Path)
	}
	return ps
}

func TestVisibleByRole(t *testing.T) {
	m, err := Load()
	require.NoError(t, err)

	admin := paths(m.Visible(domain.RoleAdmin))
	user := paths(m.Visible(domain.RoleUser))
	unknown := paths(m.Visible(""))

	assert.Contains(t, admin, "/users-list")
	assert.NotContains(t, user, "/users-list")
	assert.Equal(t, user, unknown)
	assert.Equal(t, len(admin)-1, len(user))
}

func TestHome(t *testing.T) {
	m, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/users-list", m.Home(domain.RoleAdmin))
	assert.Equal(t, "/formstack-list", m.Home(domain.RoleUser))
}

func TestAllowedCoversSubPaths(t *testing.T) {
	m, err := Load()
	require.NoError(t, err)

	assert.False(t, m.Allowed("/users-list", domain.RoleUser))
	assert.False(t, m.Allowed("/users-list/3/edit", domain.RoleUser))
	assert.True(t, m.Allowed("/users-list/3/edit", domain.RoleAdmin))
	assert.True(t, m.Allowed("/users-listing", domain.RoleUser))
	assert.True(t, m.Allowed("/info", domain.RoleUser))
}

func TestGuardRendersForbidden(t *testing.T) {
	m, err := Load()
	require.NoError(t, err)

	role := domain.RoleUser
	guard := m.Guard(
		func(*http.Request) domain.Role { return role },
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) },
	)
	h := guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users-list", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	role = domain.RoleAdmin
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users-list", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParseRejectsRelativePath(t *testing.T) {
	_, err := Parse([]byte("- path: users\n  label: x\n"))
	assert.Error(t, err)
}

func TestCanManage(t *testing.T) {
	assert.True(t, CanManage(domain.RoleAdmin))
	assert.False(t, CanManage(domain.RoleUser))
	assert.False(t, CanManage("Administrator"))
}
