package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"HibiscusMeet/pkg/config"
	"HibiscusMeet/pkg/logger"
	"HibiscusMeet/pkg/scheduler"

	"go.uber.org/zap"
)

// StartBackupScheduler 按配置的 Cron 表达式定时备份数据库
//
// BACKUP_SCHEDULE 为空时不启动。
func StartBackupScheduler(cr *scheduler.Cron) error {
	schedule := config.GlobalConfig.BackupSchedule
	if schedule == "" {
		return nil
	}

	return cr.Add(schedule, func(ctx context.Context) {
		if err := ExecuteBackup(); err != nil {
			logger.Warn("database backup failed", zap.Error(err))
		} else {
			logger.Info("database backup completed")
		}
	})
}

// ExecuteBackup 根据配置执行数据库备份
func ExecuteBackup() error {
	stamp := time.Now().Format("20060102_150405")
	switch config.GlobalConfig.DBDriver {
	case "", "sqlite":
		dst := filepath.Join(config.GlobalConfig.BackupPath, fmt.Sprintf("meet_backup_%s.db", stamp))
		return backupSQLite(config.GlobalConfig.DSN, dst)
	case "mysql":
		dst := filepath.Join(config.GlobalConfig.BackupPath, fmt.Sprintf("meet_backup_%s.sql", stamp))
		return backupWithTool("mysqldump", config.GlobalConfig.DSN, dst)
	case "pg":
		dst := filepath.Join(config.GlobalConfig.BackupPath, fmt.Sprintf("meet_backup_%s.sql", stamp))
		return backupWithTool("pg_dump", config.GlobalConfig.DSN, dst)
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", config.GlobalConfig.DBDriver)
	}
}

func ensureDir(dst string) error {
	return os.MkdirAll(filepath.Dir(dst), os.ModePerm)
}

// backupSQLite 文件级拷贝
func backupSQLite(src, dst string) error {
	if err := ensureDir(dst); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source database: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("copy database: %w", err)
	}

	logger.Info("sqlite backup written", zap.String("path", dst))
	return nil
}

// backupWithTool 调外部 dump 工具，标准输出落到备份文件
func backupWithTool(tool, dsn, dst string) error {
	if err := ensureDir(dst); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer destFile.Close()

	cmd := exec.Command(tool, dsn)
	cmd.Stdout = destFile
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", tool, err)
	}

	logger.Info("database backup written", zap.String("tool", tool), zap.String("path", dst))
	return nil
}
