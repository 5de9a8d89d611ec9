package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/DukeRupert/quotachat/internal/domain"
	"github.com/DukeRupert/quotachat/internal/service"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Mock ChatService Implementation
// =============================================================================

// mockChatService implements the service.ChatService interface for testing.
type mockChatService struct {
	ProcessMessageFunc func(ctx context.Context, userID, question string) (*domain.ChatResult, error)
	CreateUserFunc     func(ctx context.Context) (*domain.User, error)
	GetUserFunc        func(ctx context.Context, userID string) (*domain.User, error)
	ListTranscriptFunc func(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)
}

var _ service.ChatService = (*mockChatService)(nil)

func (m *mockChatService) ProcessMessage(ctx context.Context, userID, question string) (*domain.ChatResult, error) {
	if m.ProcessMessageFunc != nil {
		return m.ProcessMessageFunc(ctx, userID, question)
	}
	return nil, errors.New("ProcessMessageFunc not implemented")
}

func (m *mockChatService) CreateUser(ctx context.Context) (*domain.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx)
	}
	return nil, errors.New("CreateUserFunc not implemented")
}

func (m *mockChatService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, userID)
	}
	return nil, errors.New("GetUserFunc not implemented")
}

func (m *mockChatService) ListTranscript(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	if m.ListTranscriptFunc != nil {
		return m.ListTranscriptFunc(ctx, userID, limit)
	}
	return nil, errors.New("ListTranscriptFunc not implemented")
}

// =============================================================================
// Mock SubscriptionService Implementation
// =============================================================================

// mockSubscriptionService implements the service.SubscriptionService interface for testing.
type mockSubscriptionService struct {
	SubscribeFunc                       func(ctx context.Context, params service.SubscribeParams) (*domain.Subscription, error)
	CreateSubscriptionFunc              func(ctx context.Context, params service.CreateSubscriptionParams) (*domain.Subscription, error)
	CancelSubscriptionFunc              func(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)
	SetAutoRenewFunc                    func(ctx context.Context, id uuid.UUID, autoRenew bool) (*domain.Subscription, error)
	GetActiveSubscriptionFunc           func(ctx context.Context, userID string, now time.Time) (*domain.Subscription, error)
	ListActiveSubscriptionsFunc         func(ctx context.Context, userID string) ([]domain.Subscription, error)
	ListActiveSubscriptionsForUsersFunc func(ctx context.Context, userIDs []string) (map[string][]domain.Subscription, error)
	GetOrCreateBundleFunc               func(ctx context.Context, params service.BundleParams) (*domain.Bundle, error)
	ListBundlesFunc                     func(ctx context.Context) ([]domain.Bundle, error)
}

var _ service.SubscriptionService = (*mockSubscriptionService)(nil)

func (m *mockSubscriptionService) Subscribe(ctx context.Context, params service.SubscribeParams) (*domain.Subscription, error) {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, params)
	}
	return nil, errors.New("SubscribeFunc not implemented")
}

func (m *mockSubscriptionService) CreateSubscription(ctx context.Context, params service.CreateSubscriptionParams) (*domain.Subscription, error) {
	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, params)
	}
	return nil, errors.New("CreateSubscriptionFunc not implemented")
}

func (m *mockSubscriptionService) CancelSubscription(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, id)
	}
	return nil, errors.New("CancelSubscriptionFunc not implemented")
}

func (m *mockSubscriptionService) SetAutoRenew(ctx context.Context, id uuid.UUID, autoRenew bool) (*domain.Subscription, error) {
	if m.SetAutoRenewFunc != nil {
		return m.SetAutoRenewFunc(ctx, id, autoRenew)
	}
	return nil, errors.New("SetAutoRenewFunc not implemented")
}

func (m *mockSubscriptionService) GetActiveSubscription(ctx context.Context, userID string, now time.Time) (*domain.Subscription, error) {
	if m.GetActiveSubscriptionFunc != nil {
		return m.GetActiveSubscriptionFunc(ctx, userID, now)
	}
	return nil, errors.New("GetActiveSubscriptionFunc not implemented")
}

func (m *mockSubscriptionService) ListActiveSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	if m.ListActiveSubscriptionsFunc != nil {
		return m.ListActiveSubscriptionsFunc(ctx, userID)
	}
	return nil, errors.New("ListActiveSubscriptionsFunc not implemented")
}

func (m *mockSubscriptionService) ListActiveSubscriptionsForUsers(ctx context.Context, userIDs []string) (map[string][]domain.Subscription, error) {
	if m.ListActiveSubscriptionsForUsersFunc != nil {
		return m.ListActiveSubscriptionsForUsersFunc(ctx, userIDs)
	}
	return nil, errors.New("ListActiveSubscriptionsForUsersFunc not implemented")
}

func (m *mockSubscriptionService) GetOrCreateBundle(ctx context.Context, params service.BundleParams) (*domain.Bundle, error) {
	if m.GetOrCreateBundleFunc != nil {
		return m.GetOrCreateBundleFunc(ctx, params)
	}
	return nil, errors.New("GetOrCreateBundleFunc not implemented")
}

func (m *mockSubscriptionService) ListBundles(ctx context.Context) ([]domain.Bundle, error) {
	if m.ListBundlesFunc != nil {
		return m.ListBundlesFunc(ctx)
	}
	return nil, errors.New("ListBundlesFunc not implemented")
}

// =============================================================================
// Mock UsageService Implementation
// =============================================================================

// mockUsageService implements the service.UsageService interface for testing.
type mockUsageService struct {
	GetOrCreateUsageRecordFunc func(ctx context.Context, userID string, now time.Time) (*domain.UsageRecord, error)
	SummaryFunc                func(ctx context.Context, userID string, now time.Time) (*service.UsageSummary, error)
	ResetAllMonthlyQuotasFunc  func(ctx context.Context, now time.Time) (*service.ResetResult, error)
}

var _ service.UsageService = (*mockUsageService)(nil)

func (m *mockUsageService) GetOrCreateUsageRecord(ctx context.Context, userID string, now time.Time) (*domain.UsageRecord, error) {
	if m.GetOrCreateUsageRecordFunc != nil {
		return m.GetOrCreateUsageRecordFunc(ctx, userID, now)
	}
	return nil, errors.New("GetOrCreateUsageRecordFunc not implemented")
}

func (m *mockUsageService) Summary(ctx context.Context, userID string, now time.Time) (*service.UsageSummary, error) {
	if m.SummaryFunc != nil {
		return m.SummaryFunc(ctx, userID, now)
	}
	return nil, errors.New("SummaryFunc not implemented")
}

func (m *mockUsageService) ResetAllMonthlyQuotas(ctx context.Context, now time.Time) (*service.ResetResult, error) {
	if m.ResetAllMonthlyQuotasFunc != nil {
		return m.ResetAllMonthlyQuotasFunc(ctx, now)
	}
	return nil, errors.New("ResetAllMonthlyQuotasFunc not implemented")
}

func (m *mockUsageService) MonthInfo(now time.Time) domain.MonthInfo {
	return domain.MonthInfoAt(now)
}
