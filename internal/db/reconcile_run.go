package db

import (
	"github.com/tracklog/internal/calendar"
	"gorm.io/gorm"
)

// ReconcileRun 记录一次校准执行的前后状态，作为审计痕迹。
// Corrected 为 true 表示发现派生字段与台账分叉并已按台账修正。
type ReconcileRun struct {
	gorm.Model
	RunID         string `gorm:"size:36;index"`
	ItemID        uint   `gorm:"index"`
	CounterBefore int
	CounterAfter  int
	NextBefore    *calendar.Date
	NextAfter     *calendar.Date
	Corrected     bool
}

// TableName 自定义表名以保持命名一致
func (ReconcileRun) TableName() string {
	return "reconcile_runs"
}
