package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/info-admin/internal/apiclient"
	"github.com/sysu-ecnc-dev/info-admin/internal/config"
	"github.com/sysu-ecnc-dev/info-admin/internal/console"
	"github.com/sysu-ecnc-dev/info-admin/internal/listing"
	"github.com/sysu-ecnc-dev/info-admin/internal/mailqueue"
	"github.com/sysu-ecnc-dev/info-admin/internal/session"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接 redis，会话保存在 redis 中
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}

	sessions := session.NewManager(session.NewRedisKV(rdb), time.Duration(cfg.Console.SessionTTL)*time.Second)

	/**********************************************
	 * 连接 rabbitmq（可选），用于给新用户发送邮件
	 **********************************************/
	var mail console.MailPublisher
	if cfg.RabbitMQ.DSN != "" {
		publisher, err := mailqueue.Dial(cfg.RabbitMQ.DSN, cfg.RabbitMQ.Queue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
		if err != nil {
			logger.Error("无法连接到 rabbitmq", "error", err)
			return
		}
		defer publisher.Close()
		mail = publisher
	} else {
		logger.Warn("未配置 RABBITMQ_DSN，新用户将不会收到邮件")
	}

	/**********************************************
	 * 创建 API 客户端
	 **********************************************/
	api, err := apiclient.NewClient(cfg, nil)
	if err != nil {
		logger.Error("无法创建 API 客户端", "error", err)
		return
	}

	/**********************************************
	 * 定期清理空闲的页面状态
	 **********************************************/
	clk := clock.New()
	screens := listing.NewRegistry(time.Duration(cfg.Console.ScreenIdleTTL)*time.Second, clk)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go screens.Run(sweepCtx)

	/**********************************************
	 * 创建页面服务
	 **********************************************/
	server, err := console.NewServer(cfg, api, sessions, screens, mail, clk)
	if err != nil {
		logger.Error("无法创建页面服务", "error", err)
		return
	}
	server.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Console.Port),
		Handler:      server.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动管理后台...", "port", cfg.Console.Port, "api", cfg.API.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动管理后台", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("正在关闭管理后台...")

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭管理后台失败", slog.String("error", err.Error()))
	}
	logger.Info("管理后台已成功关闭")
}
