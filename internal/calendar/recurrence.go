package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind 定义循环周期类型
type Kind string

const (
	KindNone    Kind = "none"
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
	KindMonthly Kind = "monthly"
	KindYearly  Kind = "yearly"
)

// ErrInvalidRecurrenceKind 在对非循环或未知周期类型做周期运算时返回，
// 属于调用方错误，调用前应先判断 Recurring。
var ErrInvalidRecurrenceKind = errors.New("invalid recurrence kind")

// ParseKind 解析周期类型字符串，空串视为 none。
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.TrimSpace(strings.ToLower(value))) {
	case "", KindNone:
		return KindNone, nil
	case KindDaily:
		return KindDaily, nil
	case KindWeekly:
		return KindWeekly, nil
	case KindMonthly:
		return KindMonthly, nil
	case KindYearly:
		return KindYearly, nil
	default:
		return KindNone, fmt.Errorf("%w: %s", ErrInvalidRecurrenceKind, value)
	}
}

// Recurring 判断该类型是否会产生下一次发生日期
func (k Kind) Recurring() bool {
	switch k {
	case KindDaily, KindWeekly, KindMonthly, KindYearly:
		return true
	default:
		return false
	}
}

// Rule 描述循环规则：每 Interval 个周期重复一次。
// Kind 为 none 时不计算下一次发生日期。
type Rule struct {
	Kind     Kind
	Interval int
}

// Validate 校验规则配置
func (r Rule) Validate() error {
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}
	if r.Kind.Recurring() && r.Interval < 1 {
		return fmt.Errorf("recurrence interval must be positive, got %d", r.Interval)
	}
	return nil
}

// AddPeriod 按日历语义将日期前移 interval 个周期。
// 月/年运算把日号夹取到目标月份的最后一个有效日
// （1 月 31 日 + 1 月 = 2 月 28/29 日，而不是 3 月初），
// 杜绝先设月后设日导致的静默进位。
func AddPeriod(d Date, kind Kind, interval int) (Date, error) {
	if !kind.Recurring() {
		return Date{}, fmt.Errorf("%w: %s", ErrInvalidRecurrenceKind, kind)
	}
	if interval < 1 {
		return Date{}, fmt.Errorf("add period: interval must be positive, got %d", interval)
	}

	switch kind {
	case KindDaily:
		return d.AddDays(interval), nil
	case KindWeekly:
		return d.AddDays(interval * 7), nil
	case KindMonthly:
		months := int(d.Month) - 1 + interval
		year := d.Year + months/12
		month := time.Month(months%12 + 1)
		return Date{Year: year, Month: month, Day: clampDay(d.Day, year, month)}, nil
	default: // KindYearly
		year := d.Year + interval
		return Date{Year: year, Month: d.Month, Day: clampDay(d.Day, year, d.Month)}, nil
	}
}

// NextOccurrence 计算下一次发生日期，规则为 none 时返回 nil。
// 完成事件触发的重算必须走这里，禁止手工改写结果字段。
func NextOccurrence(anchor Date, rule Rule) (*Date, error) {
	if !rule.Kind.Recurring() {
		return nil, nil
	}
	next, err := AddPeriod(anchor, rule.Kind, rule.Interval)
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func clampDay(day, year int, month time.Month) int {
	if last := daysInMonth(year, month); day > last {
		return last
	}
	return day
}

func daysInMonth(year int, month time.Month) int {
	// 下月第 0 天即本月最后一天
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
