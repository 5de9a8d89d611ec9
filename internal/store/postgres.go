package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/DukeRupert/quotachat/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sqlc-dev/pqtype"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Postgres is a Store backed by PostgreSQL through the sqlc query layer.
type Postgres struct {
	*pgQueries
	db *sql.DB
}

// NewPostgres creates a Postgres store over an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		pgQueries: &pgQueries{q: repository.New(db)},
		db:        db,
	}
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// InUserTx runs fn inside a transaction holding a row lock on the user.
func (p *Postgres) InUserTx(ctx context.Context, userID string, fn func(q Queries) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := p.q.WithTx(tx)
	if _, err := q.LockUser(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}

	if err := fn(&pgQueries{q: q}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// pgQueries adapts repository.Queries to the Queries interface.
type pgQueries struct {
	q *repository.Queries
}

// =============================================================================
// Users
// =============================================================================

func (p *pgQueries) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	row, err := p.q.CreateUser(ctx, repository.CreateUserParams{
		ID:        user.ID,
		CreatedAt: user.CreatedAt,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return &domain.User{ID: row.ID, CreatedAt: row.CreatedAt}, nil
}

func (p *pgQueries) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row, err := p.q.GetUser(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return &domain.User{ID: row.ID, CreatedAt: row.CreatedAt}, nil
}

// =============================================================================
// Usage Records
// =============================================================================

func (p *pgQueries) EnsureUsageRecord(ctx context.Context, userID string, period domain.Period, now time.Time) (*domain.UsageRecord, error) {
	err := p.q.EnsureUsageRecord(ctx, repository.EnsureUsageRecordParams{
		ID:        uuid.New(),
		UserID:    userID,
		Month:     int16(period.Month),
		Year:      int32(period.Year),
		CreatedAt: now,
	})
	if err != nil {
		return nil, mapError(err)
	}

	row, err := p.q.GetUsageRecord(ctx, repository.GetUsageRecordParams{
		UserID: userID,
		Month:  int16(period.Month),
		Year:   int32(period.Year),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return usageRecordToDomain(row), nil
}

func (p *pgQueries) ResetStaleUsageRecord(ctx context.Context, id uuid.UUID, periodStart, now time.Time) (bool, error) {
	n, err := p.q.ResetStaleUsageRecord(ctx, repository.ResetStaleUsageRecordParams{
		ID:          id,
		PeriodStart: periodStart,
		UpdatedAt:   now,
	})
	if err != nil {
		return false, mapError(err)
	}
	return n > 0, nil
}

func (p *pgQueries) IncrementUsage(ctx context.Context, id uuid.UUID, kind domain.UsageKind, limit *int, now time.Time) (int, error) {
	var (
		used int32
		err  error
	)
	switch kind {
	case domain.UsageFree:
		if limit == nil {
			return 0, fmt.Errorf("free usage requires a limit")
		}
		used, err = p.q.IncrementFreeUsed(ctx, repository.IncrementFreeUsedParams{
			ID:        id,
			Limit:     int32(*limit),
			UpdatedAt: now,
		})
	case domain.UsagePaid:
		used, err = p.q.IncrementPaidUsed(ctx, repository.IncrementPaidUsedParams{
			ID:        id,
			Limit:     nullInt32(limit),
			UpdatedAt: now,
		})
	default:
		return 0, fmt.Errorf("unknown usage kind %q", kind)
	}
	if err != nil {
		// No row came back: either the record is gone or the cap held.
		if errors.Is(err, sql.ErrNoRows) {
			exists, existsErr := p.q.UsageRecordExists(ctx, id)
			if existsErr != nil {
				return 0, mapError(existsErr)
			}
			if !exists {
				return 0, ErrNotFound
			}
			return 0, ErrLimitReached
		}
		return 0, mapError(err)
	}
	return int(used), nil
}

func (p *pgQueries) DecrementUsage(ctx context.Context, id uuid.UUID, kind domain.UsageKind, now time.Time) (int, error) {
	var (
		used int32
		err  error
	)
	switch kind {
	case domain.UsageFree:
		used, err = p.q.DecrementFreeUsed(ctx, repository.DecrementFreeUsedParams{ID: id, UpdatedAt: now})
	case domain.UsagePaid:
		used, err = p.q.DecrementPaidUsed(ctx, repository.DecrementPaidUsedParams{ID: id, UpdatedAt: now})
	default:
		return 0, fmt.Errorf("unknown usage kind %q", kind)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, mapError(err)
	}
	return int(used), nil
}

func (p *pgQueries) DeleteUsageRecordsForPeriod(ctx context.Context, period domain.Period) (int64, error) {
	n, err := p.q.DeleteUsageRecordsForPeriod(ctx, repository.DeleteUsageRecordsForPeriodParams{
		Month: int16(period.Month),
		Year:  int32(period.Year),
	})
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// =============================================================================
// Bundles
// =============================================================================

func (p *pgQueries) InsertBundleIfAbsent(ctx context.Context, b domain.Bundle) (*domain.Bundle, error) {
	err := p.q.InsertBundleIfAbsent(ctx, repository.InsertBundleIfAbsentParams{
		ID:           b.ID,
		Tier:         string(b.Tier),
		BillingCycle: string(b.BillingCycle),
		MaxMessages:  nullInt32(b.MaxMessages),
		Price:        strconv.FormatFloat(b.Price, 'f', 2, 64),
		CreatedAt:    b.CreatedAt,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return p.GetBundleByKey(ctx, b.Tier, b.BillingCycle)
}

func (p *pgQueries) GetBundle(ctx context.Context, id uuid.UUID) (*domain.Bundle, error) {
	row, err := p.q.GetBundle(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return bundleToDomain(row)
}

func (p *pgQueries) GetBundleByKey(ctx context.Context, tier domain.Tier, cycle domain.BillingCycle) (*domain.Bundle, error) {
	row, err := p.q.GetBundleByKey(ctx, repository.GetBundleByKeyParams{
		Tier:         string(tier),
		BillingCycle: string(cycle),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return bundleToDomain(row)
}

func (p *pgQueries) ListBundles(ctx context.Context) ([]domain.Bundle, error) {
	rows, err := p.q.ListBundles(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	bundles := make([]domain.Bundle, 0, len(rows))
	for _, row := range rows {
		b, err := bundleToDomain(row)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, *b)
	}
	return bundles, nil
}

// =============================================================================
// Subscriptions
// =============================================================================

func (p *pgQueries) CreateSubscription(ctx context.Context, s domain.Subscription) (*domain.Subscription, error) {
	row, err := p.q.CreateSubscription(ctx, repository.CreateSubscriptionParams{
		ID:          s.ID,
		UserID:      s.UserID,
		BundleID:    s.BundleID,
		StartDate:   s.StartDate,
		EndDate:     s.EndDate,
		RenewalDate: s.RenewalDate,
		AutoRenew:   s.AutoRenew,
		CreatedAt:   s.CreatedAt,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return subscriptionToDomain(row), nil
}

func (p *pgQueries) GetSubscription(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	row, err := p.q.GetSubscription(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return subscriptionToDomain(row), nil
}

func (p *pgQueries) ListActiveSubscriptions(ctx context.Context, userID string, now time.Time) ([]domain.Subscription, error) {
	rows, err := p.q.ListActiveSubscriptions(ctx, repository.ListActiveSubscriptionsParams{
		UserID: userID,
		Now:    now,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return subscriptionsToDomain(rows), nil
}

func (p *pgQueries) ListActiveSubscriptionsForUsers(ctx context.Context, userIDs []string, now time.Time) ([]domain.Subscription, error) {
	rows, err := p.q.ListActiveSubscriptionsForUsers(ctx, repository.ListActiveSubscriptionsForUsersParams{
		UserIds: userIDs,
		Now:     now,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return subscriptionsToDomain(rows), nil
}

func (p *pgQueries) CancelSubscription(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Subscription, error) {
	row, err := p.q.CancelSubscription(ctx, repository.CancelSubscriptionParams{
		ID:        id,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return subscriptionToDomain(row), nil
}

func (p *pgQueries) SetAutoRenew(ctx context.Context, id uuid.UUID, autoRenew bool, now time.Time) (*domain.Subscription, error) {
	row, err := p.q.SetAutoRenew(ctx, repository.SetAutoRenewParams{
		ID:        id,
		AutoRenew: autoRenew,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return subscriptionToDomain(row), nil
}

// =============================================================================
// Chat Transcript
// =============================================================================

func (p *pgQueries) CreateChatMessage(ctx context.Context, m domain.ChatMessage, metadata json.RawMessage) (*domain.ChatMessage, error) {
	row, err := p.q.CreateChatMessage(ctx, repository.CreateChatMessageParams{
		ID:         m.ID,
		UserID:     m.UserID,
		Question:   m.Question,
		Answer:     m.Answer,
		TokenCount: int32(m.TokenCount),
		Metadata:   pqtype.NullRawMessage{RawMessage: metadata, Valid: len(metadata) > 0},
		CreatedAt:  m.CreatedAt,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return chatMessageToDomain(row), nil
}

func (p *pgQueries) ListChatMessages(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	rows, err := p.q.ListChatMessages(ctx, repository.ListChatMessagesParams{
		UserID: userID,
		Limit:  int32(limit),
	})
	if err != nil {
		return nil, mapError(err)
	}
	messages := make([]domain.ChatMessage, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, *chatMessageToDomain(row))
	}
	return messages, nil
}

// =============================================================================
// Conversions
// =============================================================================

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func nullInt32(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func usageRecordToDomain(r repository.UsageRecord) *domain.UsageRecord {
	return &domain.UsageRecord{
		ID:        r.ID,
		UserID:    r.UserID,
		Month:     int(r.Month),
		Year:      int(r.Year),
		FreeUsed:  int(r.FreeUsed),
		PaidUsed:  int(r.PaidUsed),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func bundleToDomain(r repository.SubscriptionBundle) (*domain.Bundle, error) {
	price, err := strconv.ParseFloat(r.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("parse bundle price %q: %w", r.Price, err)
	}
	b := &domain.Bundle{
		ID:           r.ID,
		Tier:         domain.Tier(r.Tier),
		BillingCycle: domain.BillingCycle(r.BillingCycle),
		Price:        price,
		CreatedAt:    r.CreatedAt,
	}
	if r.MaxMessages.Valid {
		n := int(r.MaxMessages.Int32)
		b.MaxMessages = &n
	}
	return b, nil
}

func subscriptionToDomain(r repository.UserSubscription) *domain.Subscription {
	return &domain.Subscription{
		ID:          r.ID,
		UserID:      r.UserID,
		BundleID:    r.BundleID,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		RenewalDate: r.RenewalDate,
		IsActive:    r.IsActive,
		AutoRenew:   r.AutoRenew,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func subscriptionsToDomain(rows []repository.UserSubscription) []domain.Subscription {
	subs := make([]domain.Subscription, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, *subscriptionToDomain(row))
	}
	return subs
}

func chatMessageToDomain(r repository.ChatMessage) *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:         r.ID,
		UserID:     r.UserID,
		Question:   r.Question,
		Answer:     r.Answer,
		TokenCount: int(r.TokenCount),
		CreatedAt:  r.CreatedAt,
	}
}
