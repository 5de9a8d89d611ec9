// Package domain contains core business types and interfaces.
//
// This file defines the quota snapshot returned after each admitted message.
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Remaining is a message count that may be unbounded.
// It marshals to a JSON number, or to the string "unbounded".
type Remaining struct {
	n         int
	unbounded bool
}

const unboundedLiteral = "unbounded"

// RemainingOf returns a bounded remaining count.
func RemainingOf(n int) Remaining {
	return Remaining{n: n}
}

// Unbounded returns the remaining count of a plan without a cap.
func Unbounded() Remaining {
	return Remaining{unbounded: true}
}

// IsUnbounded reports whether there is no cap.
func (r Remaining) IsUnbounded() bool { return r.unbounded }

// Count returns the bounded count. It is zero for unbounded values.
func (r Remaining) Count() int { return r.n }

func (r Remaining) String() string {
	if r.unbounded {
		return unboundedLiteral
	}
	return strconv.Itoa(r.n)
}

func (r Remaining) MarshalJSON() ([]byte, error) {
	if r.unbounded {
		return []byte(`"` + unboundedLiteral + `"`), nil
	}
	return strconv.AppendInt(nil, int64(r.n), 10), nil
}

func (r *Remaining) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte(`"`+unboundedLiteral+`"`)) {
		*r = Unbounded()
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = RemainingOf(n)
	return nil
}

// QuotaInfo is the usage snapshot returned with every answered message.
// Paid-only fields are omitted on the free path.
type QuotaInfo struct {
	FreeRemaining        int        `json:"freeRemaining"`
	IsFree               bool       `json:"isFree"`
	RequiresSubscription bool       `json:"requiresSubscription"`
	BundleTier           Tier       `json:"bundleTier,omitempty"`
	MaxMessages          *int       `json:"maxMessages,omitempty"`
	MessagesRemaining    *Remaining `json:"messagesRemaining,omitempty"`
	UsedMessages         *int       `json:"usedMessages,omitempty"`
	ResetDate            string     `json:"resetDate"`
	IsFirstDayOfMonth    bool       `json:"isFirstDayOfMonth"`
}

// FreeQuotaInfo builds the snapshot after a free message, given the free
// counter after the increment.
func FreeQuotaInfo(limit, freeUsed int, now time.Time) QuotaInfo {
	remaining := limit - freeUsed
	if remaining < 0 {
		remaining = 0
	}
	return QuotaInfo{
		FreeRemaining:        remaining,
		IsFree:               true,
		RequiresSubscription: remaining <= 0,
		ResetDate:            PeriodOf(now).NextResetDate().Format(ResetDateLayout),
		IsFirstDayOfMonth:    IsFirstDayOfMonth(now),
	}
}

// PaidQuotaInfo builds the snapshot after a paid message, given the paid
// counter after the increment.
func PaidQuotaInfo(bundle *Bundle, paidUsed int, now time.Time) QuotaInfo {
	remaining := Unbounded()
	if bundle.MaxMessages != nil {
		left := *bundle.MaxMessages - paidUsed
		if left < 0 {
			left = 0
		}
		remaining = RemainingOf(left)
	}
	used := paidUsed
	return QuotaInfo{
		FreeRemaining:     0,
		IsFree:            false,
		BundleTier:        bundle.Tier,
		MaxMessages:       bundle.MaxMessages,
		MessagesRemaining: &remaining,
		UsedMessages:      &used,
		ResetDate:         PeriodOf(now).NextResetDate().Format(ResetDateLayout),
		IsFirstDayOfMonth: IsFirstDayOfMonth(now),
	}
}
