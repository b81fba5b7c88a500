package calendar

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DateFormat 日历日期的标准字符串格式
const DateFormat = "2006-01-02"

// Date 表示纯日历日期（年/月/日），不携带时刻与时区信息。
// 数据库与 JSON 统一使用 YYYY-MM-DD 字符串表示，
// 避免经由 UTC 零点往返造成的日期偏移。
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate 构造日历日期并做进位归一（如 4 月 31 日归一为 5 月 1 日）。
func NewDate(year int, month time.Month, day int) Date {
	y, m, d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate 解析 YYYY-MM-DD 字符串，非法日期返回错误。
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(DateFormat, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}, nil
}

// Today 返回指定时区此刻观察到的日历日期。
// 直接读取该时区下的年月日，绝不经过 UTC 字符串往返；
// loc 为 nil 时回退到 UTC 而不是服务器本地时区。
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := time.Now().In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero 判断是否为零值日期
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time 返回该日期在指定时区的零点时刻
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays 按日历语义增加 n 天，n 可为负数。
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// Compare 按时间先后比较两个日期，早于返回 -1，相同返回 0，晚于返回 1。
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(int(d.Month) - int(other.Month))
	default:
		return sign(d.Day - other.Day)
	}
}

func (d Date) Before(other Date) bool {
	return d.Compare(other) < 0
}

func (d Date) After(other Date) bool {
	return d.Compare(other) > 0
}

// DaysBetween 返回 from 到 to 的天数差，to 在后为正。
func DaysBetween(from, to Date) int {
	return int(to.Time(time.UTC).Sub(from.Time(time.UTC)).Hours() / 24)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// GormDataType 告知 ORM 以 date 列类型存储
func (Date) GormDataType() string {
	return "date"
}

// Value 实现 driver.Valuer，零值日期落库为 NULL。
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan 实现 sql.Scanner，兼容驱动返回的字符串、字节与 time.Time。
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case time.Time:
		y, m, day := v.Date()
		*d = Date{Year: y, Month: m, Day: day}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into calendar.Date", src)
	}
}

func (d *Date) scanString(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*d = Date{}
		return nil
	}
	// 兼容历史数据中带时间部分的日期字符串
	if len(value) > len(DateFormat) {
		value = value[:len(DateFormat)]
	}
	parsed, err := ParseDate(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON 输出 "YYYY-MM-DD"，零值输出 null。
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON 接受 "YYYY-MM-DD" 或 null。
func (d *Date) UnmarshalJSON(data []byte) error {
	value := strings.Trim(string(data), `"`)
	if value == "null" || value == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
