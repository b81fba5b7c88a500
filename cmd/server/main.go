package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/tracklog/internal/config"
	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/handler"
	"github.com/tracklog/internal/router"
)

func main() {
	cfg := config.Load()

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// 设置并运行 Gin 服务器
	gin.SetMode(cfg.GinMode)
	api := handler.NewAPI(db.DB, cfg.DefaultTimezone)
	r := router.Setup(api)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
