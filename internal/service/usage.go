// Package service contains the business logic layer.
//
// This file implements the usage tracker: one pair of message counters per
// user per calendar month, reset when the month changes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/DukeRupert/quotachat/internal/metrics"
	"github.com/DukeRupert/quotachat/internal/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UsageService defines operations on monthly usage records.
type UsageService interface {
	// GetOrCreateUsageRecord returns the user's record for the month
	// containing now, creating a zeroed one if absent. Repeated calls in the
	// same month return the same record.
	GetOrCreateUsageRecord(ctx context.Context, userID string, now time.Time) (*domain.UsageRecord, error)

	// Summary returns the user's current record with derived quota figures.
	Summary(ctx context.Context, userID string, now time.Time) (*UsageSummary, error)

	// ResetAllMonthlyQuotas deletes every record of the current month when
	// now is the first day of a month, and does nothing otherwise.
	ResetAllMonthlyQuotas(ctx context.Context, now time.Time) (*ResetResult, error)

	// MonthInfo describes the usage period containing now.
	MonthInfo(now time.Time) domain.MonthInfo
}

// UsageSummary is a user's usage for the current month.
type UsageSummary struct {
	Usage         *domain.UsageRecord `json:"usage"`
	FreeLimit     int                 `json:"freeLimit"`
	FreeRemaining int                 `json:"freeRemaining"`
	MonthInfo     domain.MonthInfo    `json:"monthInfo"`
}

// ResetResult reports the outcome of a bulk monthly reset.
type ResetResult struct {
	Performed bool   `json:"performed"`
	Count     int64  `json:"count"`
	Message   string `json:"message"`
}

// =============================================================================
// Implementation
// =============================================================================

type usageService struct {
	store  store.Store
	cfg    LedgerConfig
	logger *slog.Logger
}

// NewUsageService creates a new UsageService.
func NewUsageService(st store.Store, cfg LedgerConfig, logger *slog.Logger) UsageService {
	return &usageService{
		store:  st,
		cfg:    cfg.normalize(),
		logger: logger,
	}
}

// GetOrCreateUsageRecord returns the current month's record for the user.
func (s *usageService) GetOrCreateUsageRecord(ctx context.Context, userID string, now time.Time) (*domain.UsageRecord, error) {
	const op = "usage.get_or_create"

	var rec *domain.UsageRecord
	err := s.store.InUserTx(ctx, userID, func(q store.Queries) error {
		var err error
		rec, err = ensureUsageRecord(ctx, q, userID, now, s.logger)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.UserNotFound(op, userID)
		}
		return nil, domain.Internal(err, op, "failed to load usage record")
	}

	return rec, nil
}

// Summary returns the current record plus derived figures.
func (s *usageService) Summary(ctx context.Context, userID string, now time.Time) (*UsageSummary, error) {
	rec, err := s.GetOrCreateUsageRecord(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	return &UsageSummary{
		Usage:         rec,
		FreeLimit:     s.cfg.FreeMessagesPerMonth,
		FreeRemaining: rec.FreeRemaining(s.cfg.FreeMessagesPerMonth),
		MonthInfo:     domain.MonthInfoAt(now),
	}, nil
}

// ResetAllMonthlyQuotas runs the administrative first-of-month sweep.
func (s *usageService) ResetAllMonthlyQuotas(ctx context.Context, now time.Time) (*ResetResult, error) {
	const op = "usage.reset_all"

	if !domain.IsFirstDayOfMonth(now) {
		return &ResetResult{
			Performed: false,
			Message:   "Reset not needed - not first day of month",
		}, nil
	}

	period := domain.PeriodOf(now)
	count, err := s.store.DeleteUsageRecordsForPeriod(ctx, period)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to reset usage records")
	}

	metrics.UsageReset("bulk", count)
	s.logger.Info("Monthly quotas reset",
		"period", period.String(),
		"count", count,
	)

	return &ResetResult{
		Performed: true,
		Count:     count,
		Message:   fmt.Sprintf("Reset %d usage records for %s", count, period),
	}, nil
}

// MonthInfo describes the period containing now.
func (s *usageService) MonthInfo(now time.Time) domain.MonthInfo {
	return domain.MonthInfoAt(now)
}
