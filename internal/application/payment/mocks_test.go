package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/kctmenswear/storefront/internal/domain/customer"
	"github.com/kctmenswear/storefront/internal/domain/notification"
	"github.com/kctmenswear/storefront/internal/domain/order"
	"github.com/kctmenswear/storefront/internal/domain/payment"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/cache"
	"github.com/kctmenswear/storefront/internal/infrastructure/job"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) Save(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByCheckoutSessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*order.Order, error) {
	args := m.Called(ctx, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, s *order.CheckoutSession) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSessionRepository) FindByStripeSessionID(ctx context.Context, id string) (*order.CheckoutSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.CheckoutSession), args.Error(1)
}

func (m *MockSessionRepository) MarkCompleted(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSessionRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) Reserve(ctx context.Context, key string, reqs []order.ReservationRequest, expiresAt time.Time) error {
	return m.Called(ctx, key, reqs, expiresAt).Error(0)
}

func (m *MockReservationRepository) Release(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReservationRepository) Finalize(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockReservationRepository) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	return m.Called(ctx, c).Error(0)
}

type MockWebhookLogRepository struct {
	mock.Mock
}

func (m *MockWebhookLogRepository) Create(ctx context.Context, l *payment.WebhookLog) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockWebhookLogRepository) Finish(ctx context.Context, l *payment.WebhookLog) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockWebhookLogRepository) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

type MockEmailLogRepository struct {
	mock.Mock
}

func (m *MockEmailLogRepository) Create(ctx context.Context, l *notification.EmailLog) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockEmailLogRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockEmailLogRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *MockEmailLogRepository) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueVerificationEmail(ctx context.Context, p job.VerificationEmailPayload) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockEnqueuer) EnqueueOrderConfirmation(ctx context.Context, p job.OrderConfirmationPayload) error {
	return m.Called(ctx, p).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	return m.Called(ctx, events).Error(0)
}

type recordingInvalidator struct {
	types []cache.Type
}

func (r *recordingInvalidator) InvalidateType(t cache.Type) {
	r.types = append(r.types, t)
}
