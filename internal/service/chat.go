// Package service contains the business logic layer.
//
// This file implements message admission: deciding whether a user may send a
// chat message now, consuming the matching allowance and answering it.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DukeRupert/quotachat/internal/ai"
	"github.com/DukeRupert/quotachat/internal/cache"
	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/DukeRupert/quotachat/internal/metrics"
	"github.com/DukeRupert/quotachat/internal/store"
	"github.com/google/uuid"
)

// MaxQuestionLength is the longest question accepted, in characters.
const MaxQuestionLength = 4000

// =============================================================================
// Interface Definition
// =============================================================================

// ChatService defines message admission and visitor operations.
type ChatService interface {
	// ProcessMessage answers a question if the user's allowance permits it.
	// Without an active subscription the free allowance is used; with one,
	// the bundle's cap applies and the exchange is added to the transcript.
	// Quota errors are final for the request and must not be retried.
	ProcessMessage(ctx context.Context, userID, question string) (*domain.ChatResult, error)

	// CreateUser registers a new anonymous visitor.
	CreateUser(ctx context.Context) (*domain.User, error)

	// GetUser returns a visitor by id.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// ListTranscript returns the user's paid messages, newest first.
	ListTranscript(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)
}

// =============================================================================
// Implementation
// =============================================================================

type chatService struct {
	store     store.Store
	generator ai.Generator
	bundles   *bundleCache
	cfg       LedgerConfig
	logger    *slog.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(
	st store.Store,
	generator ai.Generator,
	c cache.Cache,
	cfg LedgerConfig,
	logger *slog.Logger,
) ChatService {
	cfg = cfg.normalize()
	return &chatService{
		store:     st,
		generator: generator,
		bundles:   newBundleCache(c, cfg.BundleCacheTTL, logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// reservation is one unit of allowance taken before the answer is generated.
type reservation struct {
	recordID uuid.UUID
	kind     domain.UsageKind
	used     int // counter value after the increment
	sub      *domain.Subscription
}

// ProcessMessage runs the admission decision for one message.
func (s *chatService) ProcessMessage(ctx context.Context, userID, question string) (*domain.ChatResult, error) {
	const op = "chat.process_message"

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.NewValidationError(op, "question", "Question is required")
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return nil, domain.NewValidationError(op, "question", "Question is too long")
	}

	now := s.cfg.Now()

	res, err := s.reserve(ctx, op, userID, now)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	answer, err := s.generator.Generate(ctx, question)
	if err != nil {
		s.release(ctx, userID, res, now)
		metrics.MessageFailed(string(res.kind))
		s.logger.Error("answer generation failed",
			"user_id", userID,
			"path", res.kind,
			"error", err,
		)
		return nil, domain.Internal(err, op, "failed to generate answer")
	}
	metrics.MessageAdmitted(string(res.kind), time.Since(start))

	tokens := domain.CountTokens(answer)

	if res.kind == domain.UsageFree {
		return &domain.ChatResult{
			Answer:     answer,
			MessageID:  domain.MessageID(domain.UsageFree, uuid.New()),
			TokensUsed: tokens,
			QuotaInfo:  domain.FreeQuotaInfo(s.cfg.FreeMessagesPerMonth, res.used, now),
		}, nil
	}

	msg, err := s.appendTranscript(ctx, userID, question, answer, tokens, res, now)
	if err != nil {
		s.release(ctx, userID, res, now)
		s.logger.Error("failed to record chat message",
			"user_id", userID,
			"subscription_id", res.sub.ID,
			"error", err,
		)
		return nil, domain.Internal(err, op, "failed to record chat message")
	}

	return &domain.ChatResult{
		Answer:     answer,
		MessageID:  domain.MessageID(domain.UsagePaid, msg.ID),
		TokensUsed: tokens,
		QuotaInfo:  domain.PaidQuotaInfo(res.sub.Bundle, res.used, now),
	}, nil
}

// reserve resolves the user's usage record and active subscription under the
// user's ledger lock and atomically takes one unit of the right allowance.
func (s *chatService) reserve(ctx context.Context, op, userID string, now time.Time) (*reservation, error) {
	var res *reservation
	err := s.store.InUserTx(ctx, userID, func(q store.Queries) error {
		sub, err := activeSubscription(ctx, q, s.bundles, userID, now)
		if err != nil {
			return domain.Internal(err, op, "failed to load active subscription")
		}

		// A period sweep may delete the record between load and increment.
		// The second attempt recreates it with fresh counters.
		for attempt := 1; ; attempt++ {
			rec, err := ensureUsageRecord(ctx, q, userID, now, s.logger)
			if err != nil {
				return domain.Internal(err, op, "failed to load usage record")
			}

			res, err = s.take(ctx, op, q, rec, sub, now)
			if errors.Is(err, store.ErrNotFound) {
				if attempt < 2 {
					s.logger.Warn("usage record removed during admission, retrying", "user_id", userID)
					continue
				}
				return domain.Internal(err, op, "usage record disappeared")
			}
			return err
		}
	})
	if err == nil {
		return res, nil
	}

	var de *domain.Error
	if errors.As(err, &de) {
		switch {
		case errors.Is(err, domain.ErrFreeQuotaExceeded):
			metrics.MessageDenied(string(domain.UsageFree))
			s.logger.Info("Free quota exceeded", "user_id", userID)
		case errors.Is(err, domain.ErrPaidQuotaExceeded):
			metrics.MessageDenied(string(domain.UsagePaid))
			s.logger.Info("Paid quota exceeded", "user_id", userID)
		default:
			s.logger.Error("message admission failed", "user_id", userID, "error", err)
		}
		return nil, de
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.UserNotFound(op, userID)
	}
	s.logger.Error("message admission failed", "user_id", userID, "error", err)
	return nil, domain.Internal(err, op, "failed to admit message")
}

// take increments the counter that governs rec: the free allowance when sub
// is nil, otherwise the subscription's bundle cap.
func (s *chatService) take(ctx context.Context, op string, q store.Queries, rec *domain.UsageRecord, sub *domain.Subscription, now time.Time) (*reservation, error) {
	if sub == nil {
		limit := s.cfg.FreeMessagesPerMonth
		used, err := q.IncrementUsage(ctx, rec.ID, domain.UsageFree, &limit, now)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, err
		case errors.Is(err, store.ErrLimitReached):
			return nil, domain.FreeQuotaExceeded(op, rec.FreeUsed, limit)
		case err != nil:
			return nil, domain.Internal(err, op, "failed to record free usage")
		}
		return &reservation{recordID: rec.ID, kind: domain.UsageFree, used: used}, nil
	}

	used, err := q.IncrementUsage(ctx, rec.ID, domain.UsagePaid, sub.Bundle.MaxMessages, now)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, err
	case errors.Is(err, store.ErrLimitReached) && sub.Bundle.MaxMessages != nil:
		return nil, domain.PaidQuotaExceeded(op, rec.PaidUsed, *sub.Bundle.MaxMessages)
	case err != nil:
		return nil, domain.Internal(err, op, "failed to record paid usage")
	}
	return &reservation{recordID: rec.ID, kind: domain.UsagePaid, used: used, sub: sub}, nil
}

// release gives back a reservation whose message was not delivered. It runs
// even if the request context is already done.
func (s *chatService) release(ctx context.Context, userID string, res *reservation, now time.Time) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.store.DecrementUsage(ctx, res.recordID, res.kind, now); err != nil {
		s.logger.Error("failed to release usage reservation",
			"user_id", userID,
			"usage_record_id", res.recordID,
			"path", res.kind,
			"error", err,
		)
	}
}

// transcriptMetadata is stored alongside each paid transcript entry.
type transcriptMetadata struct {
	SubscriptionID uuid.UUID   `json:"subscriptionId"`
	BundleTier     domain.Tier `json:"bundleTier"`
	Period         string      `json:"period"`
	UsedMessages   int         `json:"usedMessages"`
}

func (s *chatService) appendTranscript(ctx context.Context, userID, question, answer string, tokens int, res *reservation, now time.Time) (*domain.ChatMessage, error) {
	metadata, err := json.Marshal(transcriptMetadata{
		SubscriptionID: res.sub.ID,
		BundleTier:     res.sub.Bundle.Tier,
		Period:         domain.PeriodOf(now).String(),
		UsedMessages:   res.used,
	})
	if err != nil {
		return nil, err
	}

	return s.store.CreateChatMessage(ctx, domain.ChatMessage{
		ID:         uuid.New(),
		UserID:     userID,
		Question:   question,
		Answer:     answer,
		TokenCount: tokens,
		CreatedAt:  now,
	}, metadata)
}

// CreateUser registers a new anonymous visitor.
func (s *chatService) CreateUser(ctx context.Context) (*domain.User, error) {
	const op = "chat.create_user"

	user, err := s.store.CreateUser(ctx, domain.User{
		ID:        uuid.NewString(),
		CreatedAt: s.cfg.Now(),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create user")
	}

	s.logger.Info("Visitor created", "user_id", user.ID)
	return user, nil
}

// GetUser returns a visitor by id.
func (s *chatService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	const op = "chat.get_user"

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.UserNotFound(op, userID)
		}
		return nil, domain.Internal(err, op, "failed to load user")
	}
	return user, nil
}

// ListTranscript returns the user's paid messages, newest first.
func (s *chatService) ListTranscript(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	const op = "chat.list_transcript"

	if limit <= 0 {
		limit = DefaultTranscriptLimit
	}
	if limit > MaxTranscriptLimit {
		limit = MaxTranscriptLimit
	}

	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	messages, err := s.store.ListChatMessages(ctx, userID, limit)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list chat messages")
	}
	return messages, nil
}
