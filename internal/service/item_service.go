package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tracklog/internal/calendar"
	"github.com/tracklog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrItemNotFound 在指定条目不存在时返回
	ErrItemNotFound = errors.New("trackable item not found")
	// ErrInvalidItem 当条目基础字段配置异常时返回
	ErrInvalidItem = errors.New("invalid trackable item configuration")
	// ErrInvalidRecurrence 当循环规则配置异常时返回
	ErrInvalidRecurrence = errors.New("invalid recurrence configuration")
	// ErrInvalidTimezone 当时区名称无法加载时返回
	ErrInvalidTimezone = errors.New("invalid timezone configuration")
)

// ItemService 负责 TrackableItem 的增删改查。
// 下一次发生日期在每次创建/更新时由规则重算，绝不接受外部传入的值。
type ItemService struct {
	db              *gorm.DB
	defaultTimezone string
}

// ItemFilter 描述列表过滤条件
type ItemFilter struct {
	DisplayMode string
	Complete    *bool
	Search      string
}

// ItemInput 定义创建/更新条目时可配置字段。
// CompletionsPerDay 为 0 表示当日打卡不设上限。
type ItemInput struct {
	Title              string
	Description        string
	Timezone           string
	AnchorDate         calendar.Date
	RecurrenceKind     string
	RecurrenceInterval int
	CompletionsPerDay  int
	DisplayMode        string
}

// NewItemService 构造 ItemService
func NewItemService(gdb *gorm.DB, defaultTimezone string) *ItemService {
	if strings.TrimSpace(defaultTimezone) == "" {
		defaultTimezone = db.DefaultTimezone
	}
	return &ItemService{db: gdb, defaultTimezone: defaultTimezone}
}

// List 返回条目集合，支持基本筛选
func (s *ItemService) List(filter ItemFilter) ([]db.TrackableItem, error) {
	var items []db.TrackableItem

	query := s.db.Model(&db.TrackableItem{})

	if filter.DisplayMode != "" {
		query = query.Where("display_mode = ?", filter.DisplayMode)
	}
	if filter.Complete != nil {
		query = query.Where("is_complete = ?", *filter.Complete)
	}
	if filter.Search != "" {
		like := fmt.Sprintf("%%%s%%", strings.TrimSpace(filter.Search))
		query = query.Where("title LIKE ? OR description LIKE ?", like, like)
	}

	if err := query.Order("is_complete ASC, created_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	return items, nil
}

// Get 根据 ID 获取条目
func (s *ItemService) Get(id uint) (*db.TrackableItem, error) {
	var item db.TrackableItem
	if err := s.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

// Create 新建条目，锚点日期缺省为条目时区的今天
func (s *ItemService) Create(input ItemInput) (*db.TrackableItem, error) {
	item, err := s.buildItem(input)
	if err != nil {
		return nil, err
	}

	if err := s.db.Create(item).Error; err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return item, nil
}

// Update 更新条目配置并重算下一次发生日期，完成计数保持不变
func (s *ItemService) Update(id uint, input ItemInput) (*db.TrackableItem, error) {
	var existing db.TrackableItem
	if err := s.db.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("find item: %w", err)
	}

	built, err := s.buildItem(input)
	if err != nil {
		return nil, err
	}

	existing.Title = built.Title
	existing.Description = built.Description
	existing.Timezone = built.Timezone
	existing.AnchorDate = built.AnchorDate
	existing.RecurrenceKind = built.RecurrenceKind
	existing.RecurrenceInterval = built.RecurrenceInterval
	existing.CompletionsPerDay = built.CompletionsPerDay
	existing.DisplayMode = built.DisplayMode
	existing.NextOccurrence = built.NextOccurrence

	if err := s.db.Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return &existing, nil
}

// Delete 删除条目
func (s *ItemService) Delete(id uint) error {
	result := s.db.Delete(&db.TrackableItem{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// CreateSuccessor 以当前下一次发生日期为锚点生成后继条目，
// 计数清零、完成状态复位，原条目保持不变。
func (s *ItemService) CreateSuccessor(id uint) (*db.TrackableItem, error) {
	var item db.TrackableItem
	if err := s.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("find item: %w", err)
	}

	if !item.Recurring() || item.NextOccurrence == nil {
		return nil, fmt.Errorf("%w: item %d has no next occurrence", ErrInvalidRecurrence, id)
	}

	rule := item.Rule()
	next, err := calendar.NextOccurrence(*item.NextOccurrence, rule)
	if err != nil {
		return nil, fmt.Errorf("compute next occurrence: %w", err)
	}

	successor := db.TrackableItem{
		Title:              item.Title,
		Description:        item.Description,
		Timezone:           item.Timezone,
		AnchorDate:         *item.NextOccurrence,
		RecurrenceKind:     item.RecurrenceKind,
		RecurrenceInterval: item.RecurrenceInterval,
		CompletionsPerDay:  item.CompletionsPerDay,
		DisplayMode:        item.DisplayMode,
		NextOccurrence:     next,
	}

	if err := s.db.Create(&successor).Error; err != nil {
		return nil, fmt.Errorf("create successor: %w", err)
	}
	return &successor, nil
}

func (s *ItemService) buildItem(input ItemInput) (*db.TrackableItem, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidItem)
	}

	if input.CompletionsPerDay < 0 {
		return nil, fmt.Errorf("%w: completions per day must not be negative", ErrInvalidItem)
	}

	kind, err := calendar.ParseKind(input.RecurrenceKind)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecurrence, input.RecurrenceKind)
	}

	interval := input.RecurrenceInterval
	if !kind.Recurring() {
		interval = 1
	}
	rule := calendar.Rule{Kind: kind, Interval: interval}
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}

	timezone := strings.TrimSpace(input.Timezone)
	if timezone == "" {
		timezone = s.defaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, timezone)
	}

	anchor := input.AnchorDate
	if anchor.IsZero() {
		anchor = calendar.Today(loc)
	}

	next, err := calendar.NextOccurrence(anchor, rule)
	if err != nil {
		return nil, fmt.Errorf("compute next occurrence: %w", err)
	}

	return &db.TrackableItem{
		Title:              title,
		Description:        strings.TrimSpace(input.Description),
		Timezone:           timezone,
		AnchorDate:         anchor,
		RecurrenceKind:     string(kind),
		RecurrenceInterval: interval,
		CompletionsPerDay:  input.CompletionsPerDay,
		DisplayMode:        normalizeDisplayMode(input.DisplayMode, input.CompletionsPerDay),
		NextOccurrence:     next,
	}, nil
}

// normalizeDisplayMode 以显式字段表达展示模式，缺省时按完成上限推断
func normalizeDisplayMode(mode string, completionsPerDay int) string {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case db.DisplayModeSimple:
		return db.DisplayModeSimple
	case db.DisplayModeCounter:
		return db.DisplayModeCounter
	case db.DisplayModeUnlimited:
		return db.DisplayModeUnlimited
	}

	switch {
	case completionsPerDay <= 0:
		return db.DisplayModeUnlimited
	case completionsPerDay > 1:
		return db.DisplayModeCounter
	default:
		return db.DisplayModeSimple
	}
}
