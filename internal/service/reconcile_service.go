package service

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/tracklog/internal/calendar"
	"github.com/tracklog/internal/db"
	"gorm.io/gorm"
)

// ReconcileResult 描述一次校准对单个条目的修正情况
type ReconcileResult struct {
	RunID         string
	ItemID        uint
	CounterBefore int
	CounterAfter  int
	NextBefore    *calendar.Date
	NextAfter     *calendar.Date
	Corrected     bool
}

// ReconcileService 校准派生字段与台账的一致性。
// 台账只追加，被视为唯一可信来源：计数或下一次发生日期与按台账/规则
// 重算的结果不一致时，一律以重算结果覆盖，绝不反向修台账。
// 无新增打卡时重复执行不产生进一步修正。
type ReconcileService struct {
	db *gorm.DB
}

// NewReconcileService 构造 ReconcileService
func NewReconcileService(gdb *gorm.DB) *ReconcileService {
	return &ReconcileService{db: gdb}
}

// Reconcile 校准单个条目，返回修正前后的状态。
// 与打卡流程使用同一事务隔离级别，可与其并发运行。
func (s *ReconcileService) Reconcile(itemID uint) (*ReconcileResult, error) {
	runID := uuid.NewString()
	var result ReconcileResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var item db.TrackableItem
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return fmt.Errorf("load item: %w", err)
		}

		var actual int64
		if err := tx.Model(&db.CompletionRecord{}).
			Where("item_id = ?", item.ID).
			Count(&actual).Error; err != nil {
			return fmt.Errorf("count ledger: %w", err)
		}

		var expectedNext *calendar.Date
		if item.Recurring() {
			next, err := calendar.NextOccurrence(item.AnchorDate, item.Rule())
			if err != nil {
				return fmt.Errorf("compute next occurrence: %w", err)
			}
			expectedNext = next
		}

		result = ReconcileResult{
			RunID:         runID,
			ItemID:        item.ID,
			CounterBefore: item.TotalCompletions,
			CounterAfter:  int(actual),
			NextBefore:    item.NextOccurrence,
			NextAfter:     expectedNext,
		}
		result.Corrected = result.CounterBefore != result.CounterAfter ||
			!datePtrEqual(result.NextBefore, result.NextAfter)

		if result.Corrected {
			if err := tx.Model(&db.TrackableItem{}).
				Where("id = ?", item.ID).
				Updates(map[string]any{
					"total_completions": result.CounterAfter,
					"next_occurrence":   expectedNext,
				}).Error; err != nil {
				return fmt.Errorf("correct item: %w", err)
			}

			log.Printf("[reconcile] 条目 %d 状态不一致已修正: counter %d -> %d, next %s -> %s (run %s)",
				item.ID, result.CounterBefore, result.CounterAfter,
				formatDatePtr(result.NextBefore), formatDatePtr(result.NextAfter), runID)
		}

		run := db.ReconcileRun{
			RunID:         runID,
			ItemID:        item.ID,
			CounterBefore: result.CounterBefore,
			CounterAfter:  result.CounterAfter,
			NextBefore:    result.NextBefore,
			NextAfter:     result.NextAfter,
			Corrected:     result.Corrected,
		}
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("record reconcile run: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// ReconcileAll 逐条校准全部条目
func (s *ReconcileService) ReconcileAll() ([]ReconcileResult, error) {
	var ids []uint
	if err := s.db.Model(&db.TrackableItem{}).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list item ids: %w", err)
	}

	results := make([]ReconcileResult, 0, len(ids))
	for _, id := range ids {
		result, err := s.Reconcile(id)
		if err != nil {
			// 校准途中条目可能被删除，跳过即可
			if errors.Is(err, ErrItemNotFound) {
				continue
			}
			return nil, err
		}
		results = append(results, *result)
	}

	return results, nil
}

func datePtrEqual(a, b *calendar.Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatDatePtr(d *calendar.Date) string {
	if d == nil {
		return "<nil>"
	}
	return d.String()
}
