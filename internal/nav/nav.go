package nav

import (
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"gopkg.in/yaml.v2"
)

//go:embed menu.yaml
var menuYAML []byte

type Entry struct {
	Path      string `yaml:"path"`
	Label     string `yaml:"label"`
	Icon      string `yaml:"icon"`
	AdminOnly bool   `yaml:"adminOnly"`
}

// Menu 是静态的菜单定义，侧边栏和路由守卫都依据它判断权限
type Menu struct {
	entries []Entry
}

func Load() (*Menu, error) {
	return Parse(menuYAML)
}

func Parse(data []byte) (*Menu, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("无法解析菜单: %w", err)
	}
	for i, e := range entries {
		if !strings.HasPrefix(e.Path, "/") {
			return nil, fmt.Errorf("菜单第 %d 项的路径必须以 / 开头: %q", i+1, e.Path)
		}
	}
	return &Menu{entries: entries}, nil
}

// Permits 是唯一的权限规则：adminOnly 的页面只有管理员可以访问，角色缺失视为普通用户
func Permits(e Entry, role domain.Role) bool {
	return !e.AdminOnly || role.IsAdmin()
}

// Visible 返回该角色可见的菜单项，保持定义中的顺序
func (m *Menu) Visible(role domain.Role) []Entry {
	visible := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if Permits(e, role) {
			visible = append(visible, e)
		}
	}
	return visible
}

// Lookup 返回 path 所属的菜单项，子路径（例如 /users-list/3/edit）归属于其菜单项
func (m *Menu) Lookup(path string) (Entry, bool) {
	for _, e := range m.entries {
		if path == e.Path || strings.HasPrefix(path, e.Path+"/") {
			return e, true
		}
	}
	return Entry{}, false
}

// Allowed 判断该角色能否访问 path，不在菜单中的路径不受限制
func (m *Menu) Allowed(path string, role domain.Role) bool {
	e, ok := m.Lookup(path)
	return !ok || Permits(e, role)
}

// Home 返回登录后的默认页面
func (m *Menu) Home(role domain.Role) string {
	if visible := m.Visible(role); len(visible) > 0 {
		return visible[0].Path
	}
	return "/profile"
}

// Guard 是路由级别的权限检查，不能只依赖隐藏菜单。
// role 从请求中取出当前会话的角色，forbidden 负责渲染无权限页面。
func (m *Menu) Guard(role func(*http.Request) domain.Role, forbidden http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.Allowed(r.URL.Path, role(r)) {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// adminAction 表示列表中的新增、编辑、删除等管理操作
var adminAction = Entry{AdminOnly: true}

// CanManage 判断角色能否进行管理操作，和菜单使用同一条规则
func CanManage(role domain.Role) bool {
	return Permits(adminAction, role)
}

// RequireAdmin 用于保护管理操作的路由
func RequireAdmin(role func(*http.Request) domain.Role, forbidden http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !CanManage(role(r)) {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
