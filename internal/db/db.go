package db

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/tracklog/internal/calendar"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DB 是一个全局的数据库连接实例
var DB *gorm.DB

// DefaultTimezone 是历史数据缺失时区时的回填值
const DefaultTimezone = "UTC"

// Init 初始化数据库连接并执行自动迁移。
// databasePath 为空时将回退到默认值 tracklog.db。
func Init(databasePath string) error {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = "tracklog.db"
	}

	if err := ensureParentDir(path); err != nil {
		return err
	}

	var err error
	// TranslateError 让唯一索引冲突以 gorm.ErrDuplicatedKey 暴露，供打卡流程识别
	DB, err = gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return err
	}

	// 自动迁移模式，为核心模型创建表
	if err = DB.AutoMigrate(
		&TrackableItem{},
		&CompletionRecord{},
		&ReconcileRun{},
	); err != nil {
		return err
	}

	// 历史数据修复：缺失时区的条目回填默认时区
	if err := DB.Model(&TrackableItem{}).
		Where("timezone = '' OR timezone IS NULL").
		Update("timezone", DefaultTimezone).Error; err != nil {
		return err
	}

	// 展示模式为空时按完成上限回填
	if err := DB.Model(&TrackableItem{}).
		Where("display_mode = '' OR display_mode IS NULL").
		Update("display_mode", gorm.Expr(
			"CASE WHEN completions_per_day <= 0 THEN 'unlimited' "+
				"WHEN completions_per_day > 1 THEN 'counter' "+
				"ELSE 'simple' END")).Error; err != nil {
		return err
	}

	// 循环条目缺失下一次发生日期时按规则补算，规则求值无法在 SQL 里完成
	var missing []TrackableItem
	if err := DB.Where("next_occurrence IS NULL").Find(&missing).Error; err != nil {
		return err
	}
	for _, item := range missing {
		if !item.Recurring() {
			continue
		}
		next, err := calendar.NextOccurrence(item.AnchorDate, item.Rule())
		if err != nil || next == nil {
			continue
		}
		if err := DB.Model(&TrackableItem{}).
			Where("id = ?", item.ID).
			Update("next_occurrence", next).Error; err != nil {
			return err
		}
	}

	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
