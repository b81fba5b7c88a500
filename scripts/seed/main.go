package main

import (
	"fmt"
	"log"
	"time"

	"github.com/tracklog/internal/calendar"
	"github.com/tracklog/internal/config"
	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/service"
	"gorm.io/gorm"
)

// 测试数据生成器
func main() {
	// 初始化数据库
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")

	items := createTestItems(cfg.DefaultTimezone)
	createTestCompletions(items)

	fmt.Println("测试数据生成完成！")
}

// 创建测试条目
func createTestItems(defaultTimezone string) []db.TrackableItem {
	var count int64
	db.DB.Model(&db.TrackableItem{}).Count(&count)
	if count > 0 {
		fmt.Println("条目已存在，跳过创建")
		var items []db.TrackableItem
		db.DB.Find(&items)
		return items
	}

	itemSvc := service.NewItemService(db.DB, defaultTimezone)
	inputs := []service.ItemInput{
		{
			Title:             "晨跑",
			Description:       "每天 5 公里",
			CompletionsPerDay: 1,
		},
		{
			Title:             "喝水",
			Description:       "目标每天 8 杯",
			CompletionsPerDay: 8,
			DisplayMode:       db.DisplayModeCounter,
		},
		{
			Title:             "俯卧撑",
			Description:       "不限次数，多多益善",
			CompletionsPerDay: 0,
		},
		{
			Title:              "交房租",
			Description:        "每月 1 号前完成",
			RecurrenceKind:     string(calendar.KindMonthly),
			RecurrenceInterval: 1,
			CompletionsPerDay:  1,
		},
		{
			Title:              "体检",
			Description:        "年度例行体检",
			RecurrenceKind:     string(calendar.KindYearly),
			RecurrenceInterval: 1,
			CompletionsPerDay:  1,
		},
	}

	items := make([]db.TrackableItem, 0, len(inputs))
	for _, input := range inputs {
		item, err := itemSvc.Create(input)
		if err != nil {
			log.Fatalf("创建条目 %q 失败: %v", input.Title, err)
		}
		items = append(items, *item)
		fmt.Printf("条目: %s (ID: %d)\n", item.Title, item.ID)
	}

	return items
}

// 为每日类条目补最近一周的打卡记录
func createTestCompletions(items []db.TrackableItem) {
	completionSvc := service.NewCompletionService(db.DB)

	for _, item := range items {
		if item.Recurring() || item.Unlimited() {
			continue
		}

		loc, err := item.Location()
		if err != nil {
			log.Fatalf("加载条目 %d 时区失败: %v", item.ID, err)
		}

		// 历史打卡直接写台账并同步计数，保持台账与计数一致
		today := calendar.Today(loc)
		for i := 7; i >= 1; i-- {
			record := db.CompletionRecord{
				ItemID:         item.ID,
				CompletionDate: today.AddDays(-i),
				Sequence:       1,
				Source:         "seed",
				Model:          gorm.Model{CreatedAt: time.Now()},
			}
			if err := db.DB.Create(&record).Error; err != nil {
				log.Fatalf("写入打卡记录失败: %v", err)
			}
			if err := db.DB.Model(&db.TrackableItem{}).
				Where("id = ?", item.ID).
				UpdateColumn("total_completions", item.TotalCompletions+8-i).Error; err != nil {
				log.Fatalf("更新计数失败: %v", err)
			}
		}

		// 今天的打卡走正式流程
		if _, err := completionSvc.Record(item.ID, "seed", "生成测试数据"); err != nil {
			log.Fatalf("打卡失败: %v", err)
		}

		fmt.Printf("条目 %s 补齐最近 8 天打卡\n", item.Title)
	}
}
