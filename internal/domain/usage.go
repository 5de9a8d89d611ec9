// Package domain contains core business types and interfaces.
//
// This file defines usage records and the calendar periods they are keyed by.
// All period arithmetic happens in UTC.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultFreeMessagesPerMonth is the free allowance for users without an
// active subscription.
const DefaultFreeMessagesPerMonth = 3

// ResetDateLayout formats reset dates as ISO dates without a time component.
const ResetDateLayout = "2006-01-02"

// UsageKind selects which counter of a usage record a message consumes.
type UsageKind string

const (
	UsageFree UsageKind = "free"
	UsagePaid UsageKind = "paid"
)

// Period is one calendar month.
type Period struct {
	Month int // 1..12
	Year  int
}

// PeriodOf returns the calendar month containing t.
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Month: int(t.Month()), Year: t.Year()}
}

// Start returns midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the following calendar month.
func (p Period) Next() Period {
	return PeriodOf(p.Start().AddDate(0, 1, 0))
}

// NextResetDate returns the first day of the following month, when counters reset.
func (p Period) NextResetDate() time.Time {
	return p.Next().Start()
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// IsFirstDayOfMonth reports whether t falls on day 1 of its month.
func IsFirstDayOfMonth(t time.Time) bool {
	return t.UTC().Day() == 1
}

// MonthInfo describes the current usage period for clients.
type MonthInfo struct {
	CurrentMonth  int    `json:"currentMonth"`
	CurrentYear   int    `json:"currentYear"`
	IsFirstDay    bool   `json:"isFirstDay"`
	NextResetDate string `json:"nextResetDate"`
}

// MonthInfoAt returns the period information as of now.
func MonthInfoAt(now time.Time) MonthInfo {
	p := PeriodOf(now)
	return MonthInfo{
		CurrentMonth:  p.Month,
		CurrentYear:   p.Year,
		IsFirstDay:    IsFirstDayOfMonth(now),
		NextResetDate: p.NextResetDate().Format(ResetDateLayout),
	}
}

// UsageRecord holds one user's message counters for one calendar month.
type UsageRecord struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	FreeUsed  int       `json:"freeUsed"`
	PaidUsed  int       `json:"paidUsed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Period returns the calendar month the record counts.
func (r *UsageRecord) Period() Period {
	return Period{Month: r.Month, Year: r.Year}
}

// Used returns the counter for kind.
func (r *UsageRecord) Used(kind UsageKind) int {
	if kind == UsagePaid {
		return r.PaidUsed
	}
	return r.FreeUsed
}

// FreeRemaining returns how many free messages are left under limit.
func (r *UsageRecord) FreeRemaining(limit int) int {
	if r.FreeUsed >= limit {
		return 0
	}
	return limit - r.FreeUsed
}
