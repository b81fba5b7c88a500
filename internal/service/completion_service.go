package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tracklog/internal/calendar"
	"github.com/tracklog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrLimitReached 在当日打卡次数已达上限时返回
	ErrLimitReached = errors.New("daily completion limit reached")
	// ErrNothingToRemove 在当日没有可撤销的打卡时返回
	ErrNothingToRemove = errors.New("no completion to remove today")

	// errSequenceConflict 表示并发事务争抢了同一序号，上限未满时应重试
	errSequenceConflict = errors.New("completion sequence conflict")
)

// 序号冲突的重试次数上限
const recordRetryLimit = 3

// CompletionOutcome 汇总一次打卡/撤销之后的条目状态
type CompletionOutcome struct {
	CompletionsToday int
	TotalCompletions int
	IsComplete       bool
}

// LedgerFilter 指定台账查询区间
type LedgerFilter struct {
	ItemID uint
	Start  calendar.Date
	End    calendar.Date
}

// LedgerStats 汇总区间统计数据
type LedgerStats struct {
	RangeStart     calendar.Date
	RangeEnd       calendar.Date
	CompletedCount int
	TargetCount    int
	CompletionRate float64
	CurrentStreak  int
	LongestStreak  int
}

// HeatmapEntry 表示热力图中的单条打卡数据
type HeatmapEntry struct {
	CompletionDate calendar.Date
	ItemID         uint
	ItemTitle      string
	DisplayMode    string
}

// CompletionService 负责打卡台账与派生计数维护。
// 台账写入与计数更新必须位于同一事务：这是台账与计数不分叉的唯一保证，
// 先查后插的分步写法在并发下会越过上限，这里不允许。
type CompletionService struct {
	db *gorm.DB
}

// NewCompletionService 构造 CompletionService
func NewCompletionService(gdb *gorm.DB) *CompletionService {
	return &CompletionService{db: gdb}
}

// Record 为条目在其时区的今天追加一条打卡。
// 上限已满且非无上限条目时返回 ErrLimitReached；
// 循环条目达到当日目标时重算下一次发生日期。
// 并发事务争抢同一序号时以下一个序号重试，重试耗尽才按上限冲突处理。
func (s *CompletionService) Record(itemID uint, source, note string) (*CompletionOutcome, error) {
	for attempt := 0; attempt < recordRetryLimit; attempt++ {
		outcome, err := s.recordOnce(itemID, source, note)
		if errors.Is(err, errSequenceConflict) {
			continue
		}
		return outcome, err
	}
	return nil, ErrLimitReached
}

func (s *CompletionService) recordOnce(itemID uint, source, note string) (*CompletionOutcome, error) {
	var outcome CompletionOutcome

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var item db.TrackableItem
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return fmt.Errorf("load item: %w", err)
		}

		loc, err := item.Location()
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidTimezone, item.Timezone)
		}
		today := calendar.Today(loc)

		var liveCount int64
		if err := tx.Model(&db.CompletionRecord{}).
			Where("item_id = ? AND completion_date = ?", item.ID, today).
			Count(&liveCount).Error; err != nil {
			return fmt.Errorf("count completions: %w", err)
		}

		if !item.Unlimited() && liveCount >= int64(item.CompletionsPerDay) {
			return ErrLimitReached
		}

		// 序号取当日全部记录（含软删除）的最大值加一；
		// 撤销过的打卡不复用旧行，重打卡永远追加新行，计数随台账同步走
		var maxSequence int64
		if err := tx.Unscoped().Model(&db.CompletionRecord{}).
			Where("item_id = ? AND completion_date = ?", item.ID, today).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSequence).Error; err != nil {
			return fmt.Errorf("resolve sequence: %w", err)
		}

		record := db.CompletionRecord{
			ItemID:         item.ID,
			CompletionDate: today,
			Sequence:       int(maxSequence) + 1,
			Source:         strings.TrimSpace(source),
			Note:           strings.TrimSpace(note),
		}
		if err := tx.Create(&record).Error; err != nil {
			// 唯一索引兜底：上限检查已在前面完成，这里的冲突只可能是
			// 另一个并发事务抢先占用了同一序号，交给外层重试
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errSequenceConflict
			}
			return fmt.Errorf("create completion: %w", err)
		}

		completionsToday := int(liveCount) + 1
		item.TotalCompletions++

		if completionsToday >= item.DailyTarget() {
			item.IsComplete = true
			if item.Recurring() {
				next, err := calendar.NextOccurrence(item.AnchorDate, item.Rule())
				if err != nil {
					return fmt.Errorf("compute next occurrence: %w", err)
				}
				item.NextOccurrence = next
			}
		}

		if err := tx.Model(&db.TrackableItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]any{
				"total_completions": item.TotalCompletions,
				"is_complete":       item.IsComplete,
				"next_occurrence":   item.NextOccurrence,
			}).Error; err != nil {
			return fmt.Errorf("update item counters: %w", err)
		}

		outcome = CompletionOutcome{
			CompletionsToday: completionsToday,
			TotalCompletions: item.TotalCompletions,
			IsComplete:       item.IsComplete,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &outcome, nil
}

// Remove 软删除条目今天最近一条打卡并回退计数（不低于 0）。
// 当日没有打卡时返回 ErrNothingToRemove。
func (s *CompletionService) Remove(itemID uint) (*CompletionOutcome, error) {
	var outcome CompletionOutcome

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var item db.TrackableItem
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return fmt.Errorf("load item: %w", err)
		}

		loc, err := item.Location()
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidTimezone, item.Timezone)
		}
		today := calendar.Today(loc)

		var record db.CompletionRecord
		if err := tx.Where("item_id = ? AND completion_date = ?", item.ID, today).
			Order("sequence DESC").
			First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNothingToRemove
			}
			return fmt.Errorf("find completion: %w", err)
		}

		var liveCount int64
		if err := tx.Model(&db.CompletionRecord{}).
			Where("item_id = ? AND completion_date = ?", item.ID, today).
			Count(&liveCount).Error; err != nil {
			return fmt.Errorf("count completions: %w", err)
		}

		// 软删除，台账保留审计历史
		if err := tx.Delete(&record).Error; err != nil {
			return fmt.Errorf("remove completion: %w", err)
		}

		completionsToday := int(liveCount) - 1
		if item.TotalCompletions > 0 {
			item.TotalCompletions--
		}
		if completionsToday < item.DailyTarget() {
			item.IsComplete = false
		}

		if err := tx.Model(&db.TrackableItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]any{
				"total_completions": item.TotalCompletions,
				"is_complete":       item.IsComplete,
			}).Error; err != nil {
			return fmt.Errorf("update item counters: %w", err)
		}

		outcome = CompletionOutcome{
			CompletionsToday: completionsToday,
			TotalCompletions: item.TotalCompletions,
			IsComplete:       item.IsComplete,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &outcome, nil
}

// CompletionsToday 按条目时区统计今天未删除的打卡数，列表展示一律走台账而非缓存字段
func (s *CompletionService) CompletionsToday(item db.TrackableItem) (int, error) {
	loc, err := item.Location()
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTimezone, item.Timezone)
	}

	var count int64
	if err := s.db.Model(&db.CompletionRecord{}).
		Where("item_id = ? AND completion_date = ?", item.ID, calendar.Today(loc)).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return int(count), nil
}

// ListBetween 返回指定区间内的打卡记录
func (s *CompletionService) ListBetween(filter LedgerFilter) ([]db.CompletionRecord, error) {
	if filter.ItemID == 0 {
		return nil, fmt.Errorf("item id is required")
	}
	if filter.End.Before(filter.Start) {
		return nil, fmt.Errorf("invalid range: end before start")
	}

	var records []db.CompletionRecord
	if err := s.db.Where("item_id = ?", filter.ItemID).
		Where("completion_date BETWEEN ? AND ?", filter.Start, filter.End).
		Order("completion_date ASC, sequence ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}

	return records, nil
}

// HeatmapRange 返回指定区间内所有条目的打卡数据
func (s *CompletionService) HeatmapRange(start, end calendar.Date) ([]HeatmapEntry, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range: end before start")
	}

	var rows []HeatmapEntry
	if err := s.db.Model(&db.CompletionRecord{}).
		Select("completion_records.completion_date AS completion_date, " +
			"completion_records.item_id AS item_id, " +
			"trackable_items.title AS item_title, " +
			"trackable_items.display_mode AS display_mode").
		Joins("JOIN trackable_items ON trackable_items.id = completion_records.item_id").
		Where("completion_records.completion_date BETWEEN ? AND ?", start, end).
		Order("completion_records.completion_date ASC, trackable_items.title ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list heatmap completions: %w", err)
	}

	return rows, nil
}

// StatsBetween 计算区间内的完成数、目标完成数及连续天数
func (s *CompletionService) StatsBetween(filter LedgerFilter, item db.TrackableItem) (*LedgerStats, error) {
	records, err := s.ListBetween(filter)
	if err != nil {
		return nil, err
	}

	stats := &LedgerStats{
		RangeStart: filter.Start,
		RangeEnd:   filter.End,
	}

	stats.CompletedCount = len(records)
	stats.TargetCount = expectedCount(item, filter.Start, filter.End)
	if stats.TargetCount <= 0 {
		stats.TargetCount = stats.CompletedCount
	}

	if stats.TargetCount > 0 {
		stats.CompletionRate = float64(stats.CompletedCount) / float64(stats.TargetCount)
	}

	stats.CurrentStreak, stats.LongestStreak = calculateStreaks(records)

	return stats, nil
}

// expectedCount 估算区间内的目标打卡数；无上限条目以实际完成数为目标
func expectedCount(item db.TrackableItem, start, end calendar.Date) int {
	if end.Before(start) {
		return 0
	}
	if item.Unlimited() {
		return 0
	}

	days := calendar.DaysBetween(start, end) + 1
	perDay := item.DailyTarget()

	switch calendar.Kind(item.RecurrenceKind) {
	case calendar.KindWeekly:
		weeks := days / 7
		if weeks == 0 {
			weeks = 1
		}
		return weeks * perDay
	case calendar.KindMonthly:
		months := diffMonths(start, end)
		if months == 0 {
			months = 1
		}
		return months * perDay
	case calendar.KindYearly:
		years := end.Year - start.Year
		if years == 0 {
			years = 1
		}
		return years * perDay
	default:
		return days * perDay
	}
}

// calculateStreaks 以去重后的打卡日期计算当前与最长连续天数，
// 同一天多次打卡只算一天
func calculateStreaks(records []db.CompletionRecord) (current, longest int) {
	var days []calendar.Date
	for _, record := range records {
		if len(days) == 0 || days[len(days)-1] != record.CompletionDate {
			days = append(days, record.CompletionDate)
		}
	}

	if len(days) == 0 {
		return 0, 0
	}

	longest = 1
	current = 1

	for i := 1; i < len(days); i++ {
		if calendar.DaysBetween(days[i-1], days[i]) == 1 {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 1
		}
	}

	return current, longest
}

func diffMonths(start, end calendar.Date) int {
	return (end.Year-start.Year)*12 + int(end.Month) - int(start.Month) + 1
}
