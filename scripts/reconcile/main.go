package main

import (
	"fmt"
	"log"

	"github.com/tracklog/internal/config"
	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/service"
)

// 一次性校准命令：重算全部条目的派生计数与下一次发生日期。
// 可以随时重复执行，无新增打卡时不会产生进一步修正。
func main() {
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	results, err := service.NewReconcileService(db.DB).ReconcileAll()
	if err != nil {
		log.Fatal("校准失败:", err)
	}

	corrected := 0
	for _, result := range results {
		if !result.Corrected {
			continue
		}
		corrected++
		fmt.Printf("条目 %d: counter %d -> %d (run %s)\n",
			result.ItemID, result.CounterBefore, result.CounterAfter, result.RunID)
	}

	fmt.Printf("共检查 %d 个条目，修正 %d 个\n", len(results), corrected)
}
