package handler

import (
	"cmp"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tracklog/internal/calendar"
	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/service"
)

const defaultCalendarView = "monthly"

// CompleteItem 为条目追加一条当日打卡
func (a *API) CompleteItem(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的条目ID")
		return
	}

	var payload struct {
		Source string `json:"source"`
		Note   string `json:"note"`
	}
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}
	}
	if strings.TrimSpace(payload.Source) == "" {
		payload.Source = "api"
	}

	outcome, err := a.completions.Record(id, payload.Source, payload.Note)
	if err != nil {
		handleCompletionError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcomeToPayload(outcome))
}

// UncompleteItem 撤销条目今天最近一条打卡
func (a *API) UncompleteItem(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的条目ID")
		return
	}

	outcome, err := a.completions.Remove(id)
	if err != nil {
		handleCompletionError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcomeToPayload(outcome))
}

// GetItemCalendar 返回日期区间内的打卡数据和统计
func (a *API) GetItemCalendar(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的条目ID")
		return
	}

	item, err := a.items.Get(id)
	if err != nil {
		handleItemError(c, err)
		return
	}

	loc, err := item.Location()
	if err != nil {
		respondError(c, http.StatusBadRequest, "时区配置无效")
		return
	}

	view := c.DefaultQuery("view", defaultCalendarView)
	start, end := resolveRange(c.Query("start"), view, loc)

	filter := service.LedgerFilter{ItemID: item.ID, Start: start, End: end}

	records, err := a.completions.ListBetween(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	stats, err := a.completions.StatsBetween(filter, *item)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "计算统计信息失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"item":        itemToPayload(*item, 0),
		"completions": serializeCompletions(records),
		"stats":       serializeStats(stats),
		"range":       gin.H{"start": start.String(), "end": end.String(), "view": view},
	})
}

// GetHeatmap 返回过去一年所有条目的打卡热力图。
// 窗口终点取配置的默认时区的今天，不用服务器本地时区。
func (a *API) GetHeatmap(c *gin.Context) {
	end := calendar.Today(a.defaultLoc)
	start := end.AddDays(-364)

	entries, err := a.completions.HeatmapRange(start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取热力图数据失败")
		return
	}

	c.JSON(http.StatusOK, buildHeatmapPayload(entries, start, end))
}

type heatmapItem struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	DisplayMode string `json:"display_mode"`
}

type heatmapDay struct {
	Date  string        `json:"date"`
	Items []heatmapItem `json:"items"`
}

func buildHeatmapPayload(entries []service.HeatmapEntry, start, end calendar.Date) gin.H {
	dayMap := make(map[string][]heatmapItem)
	legendMap := make(map[uint]heatmapItem)

	for _, entry := range entries {
		item := heatmapItem{ID: entry.ItemID, Title: entry.ItemTitle, DisplayMode: entry.DisplayMode}
		key := entry.CompletionDate.String()
		dayMap[key] = append(dayMap[key], item)
		if _, exists := legendMap[item.ID]; !exists {
			legendMap[item.ID] = item
		}
	}

	days := make([]heatmapDay, 0, len(dayMap))
	for date, items := range dayMap {
		days = append(days, heatmapDay{Date: date, Items: items})
	}
	sortHeatmapDays(days)

	legend := make([]heatmapItem, 0, len(legendMap))
	for _, item := range legendMap {
		legend = append(legend, item)
	}
	sortHeatmapLegend(legend)

	return gin.H{
		"range": gin.H{"start": start.String(), "end": end.String()},
		"days":  days,
		"items": legend,
		"summary": gin.H{
			"total_completions": len(entries),
			"active_days":       len(dayMap),
			"item_count":        len(legend),
		},
	}
}

func sortHeatmapDays(days []heatmapDay) {
	for _, day := range days {
		slices.SortFunc(day.Items, func(a, b heatmapItem) int {
			return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		})
	}
	slices.SortFunc(days, func(a, b heatmapDay) int {
		return cmp.Compare(a.Date, b.Date)
	})
}

func sortHeatmapLegend(legend []heatmapItem) {
	slices.SortFunc(legend, func(a, b heatmapItem) int {
		if diff := cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); diff != 0 {
			return diff
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func outcomeToPayload(outcome *service.CompletionOutcome) gin.H {
	return gin.H{
		"completions_today": outcome.CompletionsToday,
		"total_completions": outcome.TotalCompletions,
		"is_complete":       outcome.IsComplete,
	}
}

func serializeCompletions(records []db.CompletionRecord) []gin.H {
	items := make([]gin.H, 0, len(records))
	for _, record := range records {
		items = append(items, gin.H{
			"id":              record.ID,
			"item_id":         record.ItemID,
			"completion_date": record.CompletionDate.String(),
			"sequence":        record.Sequence,
			"source":          record.Source,
			"note":            record.Note,
			"created_at":      record.CreatedAt.Format(time.RFC3339),
		})
	}
	return items
}

func serializeStats(stats *service.LedgerStats) gin.H {
	return gin.H{
		"range_start":     stats.RangeStart.String(),
		"range_end":       stats.RangeEnd.String(),
		"completed_count": stats.CompletedCount,
		"target_count":    stats.TargetCount,
		"completion_rate": stats.CompletionRate,
		"current_streak":  stats.CurrentStreak,
		"longest_streak":  stats.LongestStreak,
	}
}

// resolveRange 解析查询起点并按视图展开为周/月区间
func resolveRange(startStr, view string, loc *time.Location) (calendar.Date, calendar.Date) {
	var start calendar.Date
	if startStr != "" {
		if parsed, err := calendar.ParseDate(startStr); err == nil {
			start = parsed
		}
	}
	if start.IsZero() {
		start = calendar.Today(loc)
	}

	switch strings.ToLower(view) {
	case "weekly":
		weekday := int(start.Time(time.UTC).Weekday())
		if weekday == 0 {
			weekday = 7
		}
		weekStart := start.AddDays(-weekday + 1)
		return weekStart, weekStart.AddDays(6)
	default:
		monthStart := calendar.NewDate(start.Year, start.Month, 1)
		return monthStart, monthStart.AddDays(daysInRangeMonth(start) - 1)
	}
}

func daysInRangeMonth(d calendar.Date) int {
	return calendar.NewDate(d.Year, d.Month+1, 0).Day
}

func handleCompletionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		respondError(c, http.StatusNotFound, "条目不存在")
	case errors.Is(err, service.ErrLimitReached):
		respondError(c, http.StatusConflict, "当日打卡已达上限")
	case errors.Is(err, service.ErrNothingToRemove):
		respondError(c, http.StatusConflict, "今天没有可撤销的打卡")
	case errors.Is(err, service.ErrInvalidTimezone):
		respondError(c, http.StatusBadRequest, "时区配置无效")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
