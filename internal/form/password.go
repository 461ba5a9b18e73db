package form

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sysu-ecnc-dev/info-admin/internal/utils"
)

// CopiedDuration 是复制密码后“已复制”提示保持的时间
const CopiedDuration = 2 * time.Second

// PasswordField 是新增用户时的密码生成器
type PasswordField struct {
	length int
	clock  clock.Clock

	mu       sync.Mutex
	value    string
	visible  bool
	copiedAt time.Time
	copied   bool
}

func NewPasswordField(length int, clk clock.Clock) *PasswordField {
	if clk == nil {
		clk = clock.New()
	}
	return &PasswordField{length: length, clock: clk}
}

// Generate 生成新的密码并清除“已复制”状态
func (p *PasswordField) Generate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = utils.GenerateRandomPassword(p.length)
	p.copied = false
	return p.value
}

func (p *PasswordField) Value() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

func (p *PasswordField) ToggleVisible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = !p.visible
	return p.visible
}

func (p *PasswordField) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Copy 返回要写入剪贴板的密码，没有密码时返回 false
func (p *PasswordField) Copy() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.value == "" {
		return "", false
	}
	p.copied = true
	p.copiedAt = p.clock.Now()
	return p.value, true
}

// Copied 在复制后的 CopiedDuration 内为 true
func (p *PasswordField) Copied() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copied && p.clock.Since(p.copiedAt) < CopiedDuration
}

// CopiedRemaining 返回“已复制”提示还要保持多久，没有复制时为 0
func (p *PasswordField) CopiedRemaining() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.copied {
		return 0
	}
	return max(CopiedDuration-p.clock.Since(p.copiedAt), 0)
}
