package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tracklog/internal/calendar"
	"github.com/tracklog/internal/db"
	"github.com/tracklog/internal/service"
)

type itemPayload struct {
	Title              string `json:"title"`
	Description        string `json:"description"`
	Timezone           string `json:"timezone"`
	AnchorDate         string `json:"anchor_date"`
	RecurrenceKind     string `json:"recurrence_kind"`
	RecurrenceInterval int    `json:"recurrence_interval"`
	CompletionsPerDay  *int   `json:"completions_per_day"`
	DisplayMode        string `json:"display_mode"`
}

// ListItems 返回条目列表，completions_today 一律按台账实时统计
func (a *API) ListItems(c *gin.Context) {
	filter := service.ItemFilter{
		DisplayMode: c.Query("display_mode"),
		Search:      c.Query("search"),
	}
	if raw := c.Query("complete"); raw != "" {
		if complete, err := strconv.ParseBool(raw); err == nil {
			filter.Complete = &complete
		}
	}

	items, err := a.items.List(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取条目列表失败")
		return
	}

	payload := make([]gin.H, 0, len(items))
	for _, item := range items {
		completionsToday, err := a.completions.CompletionsToday(item)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "统计当日打卡失败")
			return
		}
		payload = append(payload, itemToPayload(item, completionsToday))
	}

	c.JSON(http.StatusOK, gin.H{"items": payload})
}

// GetItem 返回单个条目详情，附带描述渲染后的 HTML
func (a *API) GetItem(c *gin.Context) {
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

	completionsToday, err := a.completions.CompletionsToday(*item)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "统计当日打卡失败")
		return
	}

	payload := itemToPayload(*item, completionsToday)
	payload["description_html"] = renderDescriptionHTML(item.Description)

	c.JSON(http.StatusOK, gin.H{"item": payload})
}

// CreateItem 创建条目
func (a *API) CreateItem(c *gin.Context) {
	input, ok := a.parseItemInput(c)
	if !ok {
		return
	}

	item, err := a.items.Create(input)
	if err != nil {
		handleItemError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": itemToPayload(*item, 0)})
}

// UpdateItem 更新条目配置，下一次发生日期由服务端重算
func (a *API) UpdateItem(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的条目ID")
		return
	}

	input, ok := a.parseItemInput(c)
	if !ok {
		return
	}

	item, err := a.items.Update(id, input)
	if err != nil {
		handleItemError(c, err)
		return
	}

	completionsToday, err := a.completions.CompletionsToday(*item)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "统计当日打卡失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": itemToPayload(*item, completionsToday)})
}

// DeleteItem 删除条目
func (a *API) DeleteItem(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的条目ID")
		return
	}

	if err := a.items.Delete(id); err != nil {
		handleItemError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CreateNextOccurrence 以当前下一次发生日期为锚点生成后继条目
func (a *API) CreateNextOccurrence(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的条目ID")
		return
	}

	successor, err := a.items.CreateSuccessor(id)
	if err != nil {
		handleItemError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": itemToPayload(*successor, 0)})
}

func (a *API) parseItemInput(c *gin.Context) (service.ItemInput, bool) {
	var payload itemPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return service.ItemInput{}, false
	}

	var anchor calendar.Date
	if strings.TrimSpace(payload.AnchorDate) != "" {
		parsed, err := calendar.ParseDate(payload.AnchorDate)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的锚点日期")
			return service.ItemInput{}, false
		}
		anchor = parsed
	}

	completionsPerDay := 1
	if payload.CompletionsPerDay != nil {
		completionsPerDay = *payload.CompletionsPerDay
	}

	interval := payload.RecurrenceInterval
	if interval == 0 {
		interval = 1
	}

	return service.ItemInput{
		Title:              payload.Title,
		Description:        payload.Description,
		Timezone:           payload.Timezone,
		AnchorDate:         anchor,
		RecurrenceKind:     payload.RecurrenceKind,
		RecurrenceInterval: interval,
		CompletionsPerDay:  completionsPerDay,
		DisplayMode:        payload.DisplayMode,
	}, true
}

func itemToPayload(item db.TrackableItem, completionsToday int) gin.H {
	payload := gin.H{
		"id":                  item.ID,
		"title":               item.Title,
		"description":         item.Description,
		"timezone":            item.Timezone,
		"anchor_date":         item.AnchorDate.String(),
		"recurrence_kind":     item.RecurrenceKind,
		"recurrence_interval": item.RecurrenceInterval,
		"completions_per_day": item.CompletionsPerDay,
		"display_mode":        item.DisplayMode,
		"total_completions":   item.TotalCompletions,
		"is_complete":         item.IsComplete,
		"completions_today":   completionsToday,
	}

	if item.NextOccurrence != nil {
		payload["next_occurrence"] = item.NextOccurrence.String()
	} else {
		payload["next_occurrence"] = nil
	}

	return payload
}

func handleItemError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		respondError(c, http.StatusNotFound, "条目不存在")
	case errors.Is(err, service.ErrInvalidItem):
		respondError(c, http.StatusBadRequest, "条目配置无效")
	case errors.Is(err, service.ErrInvalidRecurrence):
		respondError(c, http.StatusBadRequest, "循环规则配置无效")
	case errors.Is(err, service.ErrInvalidTimezone):
		respondError(c, http.StatusBadRequest, "时区配置无效")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
