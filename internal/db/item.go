package db

import (
	"time"

	"github.com/tracklog/internal/calendar"
	"gorm.io/gorm"
)

// 展示模式取代旧数据里把计数状态编码进标题的做法（如 "喝水 (3/8)"）
const (
	DisplayModeSimple    = "simple"
	DisplayModeCounter   = "counter"
	DisplayModeUnlimited = "unlimited"
)

// TrackableItem 统一表示可追踪条目（习惯与循环任务）。
// Timezone 为条目显式配置的 IANA 时区，"今天"一律以它为准，绝不取服务器本地时区。
// CompletionsPerDay 为 0 时当日打卡不设上限。
// NextOccurrence 为派生字段，只能由完成流程或校准流程重算，禁止手工改写。
// TotalCompletions 为派生计数，必须始终等于台账中未删除记录数。
type TrackableItem struct {
	gorm.Model
	Title              string `gorm:"size:255;not null"`
	Description        string `gorm:"type:text"`
	Timezone           string `gorm:"size:64;not null"`
	AnchorDate         calendar.Date
	RecurrenceKind     string `gorm:"size:16;default:none"`
	RecurrenceInterval int    `gorm:"default:1"`
	CompletionsPerDay  int    `gorm:"default:1"`
	DisplayMode        string `gorm:"size:16;default:simple"`
	NextOccurrence     *calendar.Date
	TotalCompletions   int  `gorm:"default:0"`
	IsComplete         bool `gorm:"default:false"`
}

// TableName 自定义表名以保持命名一致
func (TrackableItem) TableName() string {
	return "trackable_items"
}

// Rule 返回条目的循环规则
func (t TrackableItem) Rule() calendar.Rule {
	return calendar.Rule{
		Kind:     calendar.Kind(t.RecurrenceKind),
		Interval: t.RecurrenceInterval,
	}
}

// Recurring 判断条目是否配置了循环
func (t TrackableItem) Recurring() bool {
	return t.Rule().Kind.Recurring()
}

// Unlimited 判断当日打卡是否不设上限
func (t TrackableItem) Unlimited() bool {
	return t.CompletionsPerDay <= 0
}

// DailyTarget 返回当日视为完成所需的打卡次数，无上限条目首次打卡即算完成。
func (t TrackableItem) DailyTarget() int {
	if t.Unlimited() {
		return 1
	}
	return t.CompletionsPerDay
}

// Location 加载条目配置的时区
func (t TrackableItem) Location() (*time.Location, error) {
	return time.LoadLocation(t.Timezone)
}
