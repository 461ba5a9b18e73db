package mailer

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"

	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var embedded embed.FS

// Templates 返回内置的邮件模板
func Templates() fs.FS {
	sub, _ := fs.Sub(embedded, "templates")
	return sub
}

// ErrUnknownType 表示队列中出现了不支持的邮件类型，这类消息不应该重新入队
var ErrUnknownType = errors.New("不支持的邮件类型")

type kind struct {
	template string
	subject  string
	data     func() any
}

var kinds = map[string]kind{
	domain.MailTypeCreateUser: {
		template: "create_user.html",
		subject:  "信息管理后台 - 账户信息",
		data:     func() any { return &domain.CreateUserMailData{} },
	},
	domain.MailTypeResetPassword: {
		template: "reset_password.html",
		subject:  "信息管理后台 - 重置密码",
		data:     func() any { return &domain.ResetPasswordMailData{} },
	},
}

// Builder 把队列中的消息转换为可以发送的邮件
type Builder struct {
	from      string
	templates map[string]*template.Template
}

// NewBuilder 在启动时解析所有模板，模板缺失时直接返回错误
func NewBuilder(from string, fsys fs.FS) (*Builder, error) {
	b := &Builder{from: from, templates: make(map[string]*template.Template, len(kinds))}
	for typ, k := range kinds {
		tmpl, err := template.ParseFS(fsys, k.template)
		if err != nil {
			return nil, fmt.Errorf("无法解析邮件模板 %s: %w", k.template, err)
		}
		b.templates[typ] = tmpl
	}
	return b, nil
}

type envelope struct {
	Type string          `json:"type"`
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

// Build 解析消息体并渲染邮件
func (b *Builder) Build(body []byte) (*mail.Msg, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("邮件信息反序列化失败: %w", err)
	}

	k, ok := kinds[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, env.Type)
	}
	data := k.data()
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return nil, fmt.Errorf("邮件数据反序列化失败: %w", err)
		}
	}

	msg := mail.NewMsg()
	if err := msg.From(b.from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := msg.To(env.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}
	msg.Subject(k.subject)
	if err := msg.SetBodyHTMLTemplate(b.templates[env.Type], data); err != nil {
		return nil, fmt.Errorf("无法设置邮件正文: %w", err)
	}
	return msg, nil
}
