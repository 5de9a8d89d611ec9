// Package domain contains core business types and interfaces.
//
// This file defines subscription bundles (priced plan templates) and the
// subscriptions users hold against them.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier identifies a subscription plan level. The set is open to extension;
// the values below are the ones offered today.
type Tier string

const (
	TierBasic      Tier = "BASIC"
	TierPro        Tier = "PRO"
	TierEnterprise Tier = "ENTERPRISE"
)

// KnownTiers lists the tiers the product sells, in ascending order.
var KnownTiers = []Tier{TierBasic, TierPro, TierEnterprise}

// BillingCycle is how often a subscription is billed.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "MONTHLY"
	BillingCycleYearly  BillingCycle = "YEARLY"
)

// normalizeName upper-cases a client-supplied enum value. Casers keep state,
// so each call gets its own.
func normalizeName(s string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}

// maxTierLength bounds custom tier names.
const maxTierLength = 32

// ParseTier normalizes a tier name as sent by clients ("pro", " Pro "). Any
// name of letters, digits, '_' or '-' is accepted so new plans need no
// code change.
func ParseTier(s string) (Tier, error) {
	name := normalizeName(s)
	if name == "" || len(name) > maxTierLength {
		return "", fmt.Errorf("invalid tier %q", s)
	}
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return "", fmt.Errorf("invalid tier %q", s)
		}
	}
	return Tier(name), nil
}

// TierOther is the metrics label for tiers outside KnownTiers.
const TierOther Tier = "OTHER"

// MetricLabel returns t if it is a known tier and TierOther otherwise, so
// custom plan names cannot grow label cardinality.
func (t Tier) MetricLabel() string {
	if t.IsKnown() {
		return string(t)
	}
	return string(TierOther)
}

// IsKnown reports whether t is one of the tiers sold today.
func (t Tier) IsKnown() bool {
	for _, known := range KnownTiers {
		if t == known {
			return true
		}
	}
	return false
}

// ParseBillingCycle normalizes a billing cycle name as sent by clients.
func ParseBillingCycle(s string) (BillingCycle, error) {
	c := BillingCycle(normalizeName(s))
	switch c {
	case BillingCycleMonthly, BillingCycleYearly:
		return c, nil
	default:
		return "", fmt.Errorf("unknown billing cycle %q", s)
	}
}

// EndDate returns when a subscription started at start expires.
func (c BillingCycle) EndDate(start time.Time) time.Time {
	if c == BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// Bundle is a reusable plan template, unique per (Tier, BillingCycle).
// A nil MaxMessages means the plan has no monthly cap.
type Bundle struct {
	ID           uuid.UUID    `json:"id"`
	Tier         Tier         `json:"tier"`
	BillingCycle BillingCycle `json:"billingCycle"`
	MaxMessages  *int         `json:"maxMessages"`
	Price        float64      `json:"price"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// IsUnbounded returns true if the bundle has no message cap.
func (b *Bundle) IsUnbounded() bool {
	return b.MaxMessages == nil
}

// Subscription is a user's purchase of a bundle for one billing window.
type Subscription struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"userId"`
	BundleID    uuid.UUID `json:"bundleId"`
	Bundle      *Bundle   `json:"bundle,omitempty"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	RenewalDate time.Time `json:"renewalDate"`
	IsActive    bool      `json:"isActive"`
	AutoRenew   bool      `json:"autoRenew"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsCurrentlyActive reports whether the subscription grants paid access at now.
func (s *Subscription) IsCurrentlyActive(now time.Time) bool {
	return s.IsActive && s.EndDate.After(now)
}

// PickActive returns the subscription that governs paid access at now, or nil.
// When several qualify the most recently created one wins, ties broken by id.
func PickActive(subs []Subscription, now time.Time) *Subscription {
	var best *Subscription
	for i := range subs {
		s := &subs[i]
		if !s.IsCurrentlyActive(now) {
			continue
		}
		if best == nil || newerThan(s, best) {
			best = s
		}
	}
	return best
}

func newerThan(a, b *Subscription) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}
