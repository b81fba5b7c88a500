package db

import (
	"github.com/tracklog/internal/calendar"
	"gorm.io/gorm"
)

// CompletionRecord 是打卡台账，只追加；撤销通过软删除（DeletedAt）表达，
// 记录永不物理删除，历史保留用于审计与校准。
// ItemID + CompletionDate + Sequence 的唯一索引覆盖含软删除在内的全部记录，
// 新记录总取当日最大序号加一，索引兜底拦截并发下的越界插入。
type CompletionRecord struct {
	gorm.Model
	ItemID         uint          `gorm:"index;index:idx_completion_day_seq,unique"`
	Item           TrackableItem `gorm:"constraint:OnDelete:CASCADE"`
	CompletionDate calendar.Date `gorm:"index:idx_completion_day_seq,unique"`
	Sequence       int           `gorm:"index:idx_completion_day_seq,unique"`
	Source         string        `gorm:"size:32"`
	Note           string
}

// TableName 重写确保唯一索引作用到 item_id + completion_date + sequence
func (CompletionRecord) TableName() string {
	return "completion_records"
}
