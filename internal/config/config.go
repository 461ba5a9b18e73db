package config

import (
	"errors"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Console struct {
		Port          string `env:"PORT" envDefault:"3001"`
		CookieName    string `env:"COOKIE_NAME" envDefault:"console-session"`
		CookieSecret  string `env:"COOKIE_SECRET"`
		SessionTTL    int    `env:"SESSION_TTL" envDefault:"1209600"` // 14 天
		ScreenIdleTTL int    `env:"SCREEN_IDLE_TTL" envDefault:"1800"`
	} `envPrefix:"CONSOLE_"`
	API struct {
		BaseURL               string   `env:"BASE_URL" envDefault:"http://localhost:3000/"`
		RequestTimeout        int      `env:"REQUEST_TIMEOUT" envDefault:"15"`
		DeviceName            string   `env:"DEVICE_NAME" envDefault:"web"`
		UnauthorizedAllowList []string `env:"UNAUTHORIZED_ALLOW_LIST" envDefault:"admin/verify-user"`
	} `envPrefix:"API_"`
	Database struct {
		DSN            string `env:"DSN"`
		ConnectTimeout int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout   int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		MaxOpenConns   int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns   int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime    int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Name     string `env:"NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL" envDefault:"admin@example.com"`
		Password string `env:"PASSWORD"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // 小时，14 天
		Secret     string `env:"SECRET"`
	} `envPrefix:"JWT_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD" envDefault:"password"`
		} `envPrefix:"USER_"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN" envDefault:"example.com"`
		SMTP       struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
		TemplateDir string `env:"TEMPLATE_DIR"` // 为空时使用内置模板
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN"`
		Queue          string `env:"QUEUE" envDefault:"email_queue"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD"`
		DB                  int    `env:"DB" envDefault:"0"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
	} `envPrefix:"REDIS_"`
	OTP struct {
		Expiration int `env:"EXPIRATION" envDefault:"900"` // 15 分钟
	} `envPrefix:"OTP_"`
	NewUser struct {
		PasswordLength int `env:"PASSWORD_LENGTH" envDefault:"12"`
	} `envPrefix:"NEW_USER_"`
	Storage struct {
		Dir string `env:"DIR" envDefault:"./storage"`
	} `envPrefix:"STORAGE_"`
	Notice struct {
		DefaultContent string `env:"DEFAULT_CONTENT" envDefault:"<p>欢迎使用信息管理后台。请在此处编辑重要通知。</p>"`
	} `envPrefix:"NOTICE_"`
}

func LoadConfig() (*Config, error) {
	// 本地开发时可以把环境变量写在 .env 中，文件不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}

// RequireAPI 检查参考 API 启动所必需的配置
func (cfg *Config) RequireAPI() error {
	switch {
	case cfg.Database.DSN == "":
		return errors.New("缺少环境变量 DATABASE_DSN")
	case cfg.JWT.Secret == "":
		return errors.New("缺少环境变量 JWT_SECRET")
	case cfg.InitialAdmin.Password == "":
		return errors.New("缺少环境变量 INITIAL_ADMIN_PASSWORD")
	case cfg.RabbitMQ.DSN == "":
		return errors.New("缺少环境变量 RABBITMQ_DSN")
	}
	return nil
}

// RequireMail 检查邮件 worker 启动所必需的配置
func (cfg *Config) RequireMail() error {
	switch {
	case cfg.RabbitMQ.DSN == "":
		return errors.New("缺少环境变量 RABBITMQ_DSN")
	case cfg.Email.SMTP.Host == "":
		return errors.New("缺少环境变量 EMAIL_SMTP_HOST")
	}
	return nil
}
