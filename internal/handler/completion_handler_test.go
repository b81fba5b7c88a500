package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tracklog/internal/calendar"
	"github.com/tracklog/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) (*API, func()) {
	t.Helper()

	dsn := fmt.Sprintf("file:tracklog-handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := gdb.AutoMigrate(&db.TrackableItem{}, &db.CompletionRecord{}, &db.ReconcileRun{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	db.DB = gdb

	return NewAPI(gdb, "UTC"), func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func seedItem(t *testing.T, item *db.TrackableItem) {
	t.Helper()
	if item.Timezone == "" {
		item.Timezone = "UTC"
	}
	if item.RecurrenceKind == "" {
		item.RecurrenceKind = "none"
	}
	if item.RecurrenceInterval == 0 {
		item.RecurrenceInterval = 1
	}
	if item.DisplayMode == "" {
		item.DisplayMode = db.DisplayModeSimple
	}
	if err := db.DB.Create(item).Error; err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}
}

func postJSON(t *testing.T, handle gin.HandlerFunc, path string, id uint, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(http.MethodPost, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	if id != 0 {
		c.Params = gin.Params{gin.Param{Key: "id", Value: strconv.Itoa(int(id))}}
	}

	handle(c)
	return w
}

func TestCompleteItemReturnsOutcome(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	item := db.TrackableItem{Title: "晨跑", CompletionsPerDay: 2}
	seedItem(t, &item)

	w := postJSON(t, api.CompleteItem, "/api/items/1/complete", item.ID, map[string]any{"source": "web"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		CompletionsToday int  `json:"completions_today"`
		TotalCompletions int  `json:"total_completions"`
		IsComplete       bool `json:"is_complete"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CompletionsToday != 1 || resp.TotalCompletions != 1 {
		t.Fatalf("unexpected outcome: %+v", resp)
	}
	if resp.IsComplete {
		t.Fatal("item should not be complete before reaching target")
	}
}

func TestCompleteItemLimitReturnsConflict(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	item := db.TrackableItem{Title: "晨跑", CompletionsPerDay: 1}
	seedItem(t, &item)

	if w := postJSON(t, api.CompleteItem, "/api/items/1/complete", item.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w := postJSON(t, api.CompleteItem, "/api/items/1/complete", item.ID, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCompleteItemMissingReturnsNotFound(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	w := postJSON(t, api.CompleteItem, "/api/items/9999/complete", 9999, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUncompleteItemEmptyDayReturnsConflict(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	item := db.TrackableItem{Title: "晨跑", CompletionsPerDay: 1}
	seedItem(t, &item)

	w := postJSON(t, api.UncompleteItem, "/api/items/1/uncomplete", item.ID, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCompleteItemInvalidIDReturnsBadRequest(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/items/abc/complete", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{gin.Param{Key: "id", Value: "abc"}}

	api.CompleteItem(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestGetHeatmapUsesConfiguredTimezone(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	// UTC+14：当服务器本地时区落后时，该时区的"今天"最容易被窗口漏掉
	const zone = "Pacific/Kiritimati"
	api := NewAPI(db.DB, zone)

	item := db.TrackableItem{Title: "晨跑", Timezone: zone, CompletionsPerDay: 1}
	seedItem(t, &item)

	if w := postJSON(t, api.CompleteItem, "/api/items/1/complete", item.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/heatmap", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	api.GetHeatmap(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	today := calendar.Today(loc)

	var resp struct {
		Range struct {
			End string `json:"end"`
		} `json:"range"`
		Summary struct {
			TotalCompletions int `json:"total_completions"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Range.End != today.String() {
		t.Fatalf("expected window end %s in configured zone, got %s", today, resp.Range.End)
	}
	if resp.Summary.TotalCompletions != 1 {
		t.Fatalf("expected today's completion inside the window, got %d", resp.Summary.TotalCompletions)
	}
}

func TestGetItemCalendarWeeklyRange(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	item := db.TrackableItem{Title: "晨跑", CompletionsPerDay: 1}
	seedItem(t, &item)

	// 2026-08-26 是周三，周视图应展开为周一到周日
	req := httptest.NewRequest(http.MethodGet,
		"/api/items/"+strconv.Itoa(int(item.ID))+"/calendar?view=weekly&start=2026-08-26", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{gin.Param{Key: "id", Value: strconv.Itoa(int(item.ID))}}

	api.GetItemCalendar(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Range struct {
			Start string `json:"start"`
			End   string `json:"end"`
			View  string `json:"view"`
		} `json:"range"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Range.Start != "2026-08-24" || resp.Range.End != "2026-08-30" {
		t.Fatalf("unexpected weekly range: %+v", resp.Range)
	}
}

func TestGetHeatmapSummary(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	item := db.TrackableItem{Title: "晨跑", CompletionsPerDay: 2}
	seedItem(t, &item)

	if w := postJSON(t, api.CompleteItem, "/api/items/1/complete", item.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := postJSON(t, api.CompleteItem, "/api/items/1/complete", item.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/heatmap", nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	api.GetHeatmap(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Days []struct {
			Date  string `json:"date"`
			Items []struct {
				Title string `json:"title"`
			} `json:"items"`
		} `json:"days"`
		Summary struct {
			TotalCompletions int `json:"total_completions"`
			ActiveDays       int `json:"active_days"`
			ItemCount        int `json:"item_count"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Summary.TotalCompletions != 2 || resp.Summary.ActiveDays != 1 || resp.Summary.ItemCount != 1 {
		t.Fatalf("unexpected summary: %+v", resp.Summary)
	}
	if len(resp.Days) != 1 || len(resp.Days[0].Items) != 2 {
		t.Fatalf("unexpected days payload: %+v", resp.Days)
	}
}
