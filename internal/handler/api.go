package handler

import (
	"time"

	"github.com/tracklog/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	items       *service.ItemService
	completions *service.CompletionService
	reconciler  *service.ReconcileService
	defaultLoc  *time.Location
}

// NewAPI constructs a handler set with shared services.
// 跨条目视图（如热力图）以配置的默认时区取"今天"，绝不读取服务器系统时区。
func NewAPI(gdb *gorm.DB, defaultTimezone string) *API {
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		loc = time.UTC
	}

	return &API{
		db:          gdb,
		items:       service.NewItemService(gdb, defaultTimezone),
		completions: service.NewCompletionService(gdb),
		reconciler:  service.NewReconcileService(gdb),
		defaultLoc:  loc,
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}
