package calendar

import (
	"errors"
	"testing"
	"time"
)

func TestAddPeriodDailyAndWeekly(t *testing.T) {
	anchor := NewDate(2025, time.June, 5)

	got, err := AddPeriod(anchor, KindDaily, 3)
	if err != nil {
		t.Fatalf("AddPeriod daily returned error: %v", err)
	}
	if got.String() != "2025-06-08" {
		t.Fatalf("expected 2025-06-08, got %s", got)
	}

	got, err = AddPeriod(anchor, KindWeekly, 2)
	if err != nil {
		t.Fatalf("AddPeriod weekly returned error: %v", err)
	}
	if got.String() != "2025-06-19" {
		t.Fatalf("expected 2025-06-19, got %s", got)
	}
}

func TestAddPeriodMonthClamp(t *testing.T) {
	cases := []struct {
		anchor   Date
		interval int
		want     string
	}{
		{NewDate(2024, time.January, 31), 1, "2024-02-29"}, // 闰年
		{NewDate(2023, time.January, 31), 1, "2023-02-28"},
		{NewDate(2023, time.August, 31), 1, "2023-09-30"},
		{NewDate(2023, time.November, 15), 3, "2024-02-15"}, // 跨年进位
		{NewDate(2023, time.October, 31), 16, "2025-02-28"},
	}

	for _, tc := range cases {
		got, err := AddPeriod(tc.anchor, KindMonthly, tc.interval)
		if err != nil {
			t.Fatalf("AddPeriod(%s, monthly, %d) returned error: %v", tc.anchor, tc.interval, err)
		}
		if got.String() != tc.want {
			t.Fatalf("AddPeriod(%s, monthly, %d) = %s, want %s", tc.anchor, tc.interval, got, tc.want)
		}
	}
}

func TestAddPeriodYearlyLeapAnchor(t *testing.T) {
	anchor := NewDate(2024, time.February, 29)

	got, err := AddPeriod(anchor, KindYearly, 1)
	if err != nil {
		t.Fatalf("AddPeriod yearly returned error: %v", err)
	}
	// 非闰年夹取到 2 月 28 日，而不是顺延到 3 月 1 日
	if got.String() != "2025-02-28" {
		t.Fatalf("expected 2025-02-28, got %s", got)
	}

	got, err = AddPeriod(anchor, KindYearly, 4)
	if err != nil {
		t.Fatalf("AddPeriod yearly returned error: %v", err)
	}
	if got.String() != "2028-02-29" {
		t.Fatalf("expected 2028-02-29, got %s", got)
	}
}

func TestAddPeriodRejectsNonRecurring(t *testing.T) {
	if _, err := AddPeriod(NewDate(2025, time.June, 5), KindNone, 1); !errors.Is(err, ErrInvalidRecurrenceKind) {
		t.Fatalf("expected ErrInvalidRecurrenceKind, got %v", err)
	}

	if _, err := AddPeriod(NewDate(2025, time.June, 5), KindDaily, 0); err == nil {
		t.Fatal("expected error for non-positive interval")
	}
}

func TestNextOccurrence(t *testing.T) {
	anchor := NewDate(2025, time.June, 5)

	next, err := NextOccurrence(anchor, Rule{Kind: KindYearly, Interval: 1})
	if err != nil {
		t.Fatalf("NextOccurrence returned error: %v", err)
	}
	if next == nil || next.String() != "2026-06-05" {
		t.Fatalf("expected 2026-06-05, got %v", next)
	}

	next, err = NextOccurrence(anchor, Rule{Kind: KindNone})
	if err != nil {
		t.Fatalf("NextOccurrence none returned error: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nil for non-recurring rule, got %s", next)
	}
}

func TestParseKindAndValidate(t *testing.T) {
	kind, err := ParseKind(" Monthly ")
	if err != nil {
		t.Fatalf("ParseKind returned error: %v", err)
	}
	if kind != KindMonthly {
		t.Fatalf("expected monthly, got %s", kind)
	}

	if _, err := ParseKind("hourly"); !errors.Is(err, ErrInvalidRecurrenceKind) {
		t.Fatalf("expected ErrInvalidRecurrenceKind, got %v", err)
	}

	if kind, err := ParseKind(""); err != nil || kind != KindNone {
		t.Fatalf("expected empty string to parse as none, got %s err=%v", kind, err)
	}

	if err := (Rule{Kind: KindWeekly, Interval: 0}).Validate(); err == nil {
		t.Fatal("expected error for zero interval")
	}

	if err := (Rule{Kind: KindNone}).Validate(); err != nil {
		t.Fatalf("none rule should validate, got %v", err)
	}
}
