package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/info-admin/internal/config"
	"github.com/sysu-ecnc-dev/info-admin/internal/domain"
	"github.com/sysu-ecnc-dev/info-admin/internal/handler"
	"github.com/sysu-ecnc-dev/info-admin/internal/migrations"
	"github.com/sysu-ecnc-dev/info-admin/internal/repository"
	"github.com/sysu-ecnc-dev/info-admin/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var file string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 插入随机链接, 3: 插入随机文件, 4: 插入默认通知, 5: 从 CSV 导入用户)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.StringVar(&file, "file", "./users.csv", "导入用户时使用的 CSV 文件")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 单独运行 seed 时表可能还不存在
	if err := migrations.Up(dbpool); err != nil {
		logger.Error("无法迁移数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的用户数量")
			return
		}
		cnt, err := seed.Users(repo, n, cfg.Seed.User.Password, cfg.Email.UserDomain)
		if err != nil {
			slog.Error("无法生成随机用户", slog.String("error", err.Error()))
			return
		}
		slog.Info("插入用户成功", slog.Int("count", cnt))
	case 2:
		if n <= 0 {
			slog.Error("请输入合法的链接数量")
			return
		}
		forms := seed.Bookmarks(repo, domain.BookmarkKindForm, n)
		websites := seed.Bookmarks(repo, domain.BookmarkKindWebsite, n)
		slog.Info("插入链接成功", slog.Int("forms", forms), slog.Int("websites", websites))
	case 3:
		if n <= 0 {
			slog.Error("请输入合法的文件数量")
			return
		}
		storage, err := handler.NewStorage(cfg.Storage.Dir)
		if err != nil {
			slog.Error("无法打开存储目录", slog.String("error", err.Error()))
			return
		}
		slog.Info("插入文件成功", slog.Int("count", seed.Uploads(repo, storage, n)))
	case 4:
		created, err := seed.Notice(repo, cfg.Notice.DefaultContent)
		if err != nil {
			slog.Error("无法插入通知", slog.String("error", err.Error()))
			return
		}
		if created {
			slog.Info("插入通知成功")
		} else {
			slog.Info("通知已存在，未做修改")
		}
	case 5:
		f, err := os.Open(file)
		if err != nil {
			slog.Error("打开文件失败", "error", err)
			return
		}
		defer f.Close()

		cnt, err := seed.ImportUsers(repo, f, cfg.Seed.User.Password)
		if err != nil {
			slog.Error("导入用户失败", "error", err, "count", cnt)
			return
		}
		slog.Info("导入用户成功", slog.Int("count", cnt))
	default:
		slog.Error("指定的操作非法")
	}
}
