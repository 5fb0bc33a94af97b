package verification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/application/checkout"
	"github.com/kctmenswear/storefront/internal/domain/identity"
	"github.com/kctmenswear/storefront/internal/domain/notification"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/auth"
	"github.com/kctmenswear/storefront/internal/infrastructure/cache"
	"github.com/kctmenswear/storefront/internal/infrastructure/config"
	"github.com/kctmenswear/storefront/internal/infrastructure/job"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) ConfirmEmail(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type MockEmailLogRepository struct {
	mock.Mock
}

func (m *MockEmailLogRepository) Create(ctx context.Context, log *notification.EmailLog) error {
	return m.Called(ctx, log).Error(0)
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

type fixture struct {
	svc    *Service
	users  *MockUserRepository
	logs   *MockEmailLogRepository
	queue  *MockEnqueuer
	tokens *auth.JWTService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		users: new(MockUserRepository),
		logs:  new(MockEmailLogRepository),
		queue: new(MockEnqueuer),
		tokens: auth.NewJWTService(config.JWTConfig{
			Secret:         "verification-test-secret-32-chars!!",
			Issuer:         "kct-storefront",
			AccessTokenTTL: 15 * time.Minute,
		}, 24*time.Hour),
	}
	f.svc = NewService(ServiceConfig{
		Users:    f.users,
		Logs:     f.logs,
		Queue:    f.queue,
		Tokens:   f.tokens,
		Replays:  store,
		Origins:  checkout.HostAllowlist{"localhost:5173", "kctmenswear.com"},
		SiteURL:  "https://kctmenswear.com/",
		TokenTTL: 24 * time.Hour,
		Logger:   zap.NewNop(),
	})
	return f
}

func unverifiedUser() *identity.User {
	return &identity.User{ID: uuid.New(), Email: "jane@example.com"}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	confirmed := time.Now()
	verified := &identity.User{ID: uuid.New(), Email: "a@example.com", EmailConfirmedAt: &confirmed}
	pending := unverifiedUser()
	f.users.On("FindByID", mock.Anything, verified.ID).Return(verified, nil)
	f.users.On("FindByID", mock.Anything, pending.ID).Return(pending, nil)

	st, err := f.svc.Status(context.Background(), verified.ID)
	require.NoError(t, err)
	assert.True(t, st.IsVerified)

	st, err = f.svc.Status(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.False(t, st.IsVerified)
}

func TestBanner(t *testing.T) {
	f := newFixture(t)
	confirmed := time.Now()
	verified := &identity.User{ID: uuid.New(), Email: "a@example.com", EmailConfirmedAt: &confirmed}
	pending := unverifiedUser()
	missing := uuid.New()
	f.users.On("FindByID", mock.Anything, verified.ID).Return(verified, nil)
	f.users.On("FindByID", mock.Anything, pending.ID).Return(pending, nil)
	f.users.On("FindByID", mock.Anything, missing).Return(nil, shared.ErrNotFound)

	t.Run("no user", func(t *testing.T) {
		b, err := f.svc.Banner(context.Background(), uuid.Nil)
		require.NoError(t, err)
		assert.False(t, b.Visible)
	})

	t.Run("unknown user", func(t *testing.T) {
		b, err := f.svc.Banner(context.Background(), missing)
		require.NoError(t, err)
		assert.False(t, b.Visible)
	})

	t.Run("verified", func(t *testing.T) {
		b, err := f.svc.Banner(context.Background(), verified.ID)
		require.NoError(t, err)
		assert.False(t, b.Visible)
	})

	t.Run("unverified", func(t *testing.T) {
		b, err := f.svc.Banner(context.Background(), pending.ID)
		require.NoError(t, err)
		assert.Equal(t, &Banner{
			Visible:     true,
			Title:       "Verify your email address",
			Message:     BannerMessage,
			ActionLabel: "Send Verification Email",
		}, b)
	})
}

func TestSendVerificationEmail(t *testing.T) {
	f := newFixture(t)
	u := unverifiedUser()
	f.users.On("FindByID", mock.Anything, u.ID).Return(u, nil)

	var logged *notification.EmailLog
	f.logs.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { logged = args.Get(1).(*notification.EmailLog) }).
		Return(nil)

	var payload job.VerificationEmailPayload
	f.queue.On("EnqueueVerificationEmail", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(1).(job.VerificationEmailPayload) }).
		Return(nil)

	res, err := f.svc.SendVerificationEmail(context.Background(), u.ID, "http://localhost:5173")
	require.NoError(t, err)

	assert.Equal(t, "Verification email sent", res.Title)
	assert.Equal(t, "24 hours", res.ExpiresIn)

	require.NotNil(t, logged)
	assert.Equal(t, notification.EmailPending, logged.Status)
	assert.Equal(t, notification.EmailVerification, logged.EmailType)
	assert.Equal(t, "jane@example.com", logged.RecipientEmail)

	assert.Equal(t, logged.ID, payload.EmailLogID)
	assert.Equal(t, "jane@example.com", payload.To)
	require.True(t, strings.HasPrefix(payload.VerificationURL, "http://localhost:5173/verify-email?token="))

	token := strings.TrimPrefix(payload.VerificationURL, "http://localhost:5173/verify-email?token=")
	claims, err := f.tokens.ValidateVerificationToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.UserID)
	assert.Equal(t, auth.PurposeEmailVerification, claims.Purpose)

	assert.False(t, f.svc.Sending(u.ID))
}

func TestSendVerificationEmail_UntrustedOriginUsesSiteURL(t *testing.T) {
	f := newFixture(t)
	u := unverifiedUser()
	f.users.On("FindByID", mock.Anything, u.ID).Return(u, nil)
	f.logs.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.queue.On("EnqueueVerificationEmail", mock.Anything, mock.MatchedBy(func(p job.VerificationEmailPayload) bool {
		return strings.HasPrefix(p.VerificationURL, "https://kctmenswear.com/verify-email?token=")
	})).Return(nil)

	_, err := f.svc.SendVerificationEmail(context.Background(), u.ID, "https://phish.example")

	require.NoError(t, err)
	f.queue.AssertExpectations(t)
}

func TestSendVerificationEmail_NoEmail(t *testing.T) {
	f := newFixture(t)
	u := &identity.User{ID: uuid.New()}
	f.users.On("FindByID", mock.Anything, u.ID).Return(u, nil)

	_, err := f.svc.SendVerificationEmail(context.Background(), u.ID, "")

	require.ErrorIs(t, err, ErrNoEmail)
	assert.Equal(t, "No user email found", err.Error())
	f.logs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendVerificationEmail_AlreadyVerified(t *testing.T) {
	f := newFixture(t)
	confirmed := time.Now()
	u := &identity.User{ID: uuid.New(), Email: "a@example.com", EmailConfirmedAt: &confirmed}
	f.users.On("FindByID", mock.Anything, u.ID).Return(u, nil)

	_, err := f.svc.SendVerificationEmail(context.Background(), u.ID, "")

	require.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestSendVerificationEmail_ConcurrentSendRejected(t *testing.T) {
	f := newFixture(t)
	u := unverifiedUser()
	f.users.On("FindByID", mock.Anything, u.ID).Return(u, nil)
	f.logs.On("Create", mock.Anything, mock.Anything).Return(nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.queue.On("EnqueueVerificationEmail", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(nil).Once()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.svc.SendVerificationEmail(context.Background(), u.ID, "")
	}()

	<-entered
	assert.True(t, f.svc.Sending(u.ID))

	b, err := f.svc.Banner(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, b.Sending)
	assert.Equal(t, "Sending...", b.ActionLabel)

	_, err = f.svc.SendVerificationEmail(context.Background(), u.ID, "")
	require.ErrorIs(t, err, ErrInProgress)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.False(t, f.svc.Sending(u.ID))
	f.queue.AssertNumberOfCalls(t, "EnqueueVerificationEmail", 1)
}

func TestBeginFor_DroppedStateCannotBeClaimedTwice(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	first, ok := f.svc.beginFor(userID)
	require.True(t, ok)
	_, ok = f.svc.beginFor(userID)
	assert.False(t, ok, "second claim while the first is in flight")

	first.SetLoading(false)
	f.svc.dropState(userID, first)

	next, ok := f.svc.beginFor(userID)
	require.True(t, ok)
	assert.NotSame(t, first, next)
	_, ok = f.svc.beginFor(userID)
	assert.False(t, ok)
}

func TestBeginFor_SingleOwnerUnderContention(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				st, ok := f.svc.beginFor(userID)
				if !ok {
					continue
				}
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				active.Add(-1)
				st.SetLoading(false)
				f.svc.dropState(userID, st)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.False(t, f.svc.Sending(userID))
}

func TestSendVerificationEmail_EnqueueFailureMarksLogFailed(t *testing.T) {
	f := newFixture(t)
	u := unverifiedUser()
	f.users.On("FindByID", mock.Anything, u.ID).Return(u, nil)
	f.logs.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.logs.On("MarkFailed", mock.Anything, mock.AnythingOfType("uuid.UUID"), "queue unavailable").Return(nil)
	f.queue.On("EnqueueVerificationEmail", mock.Anything, mock.Anything).Return(errors.New("queue unavailable"))

	_, err := f.svc.SendVerificationEmail(context.Background(), u.ID, "")

	require.Error(t, err)
	f.logs.AssertExpectations(t)
	assert.False(t, f.svc.Sending(u.ID))
}

func TestVerifyEmail_RoundTrip(t *testing.T) {
	f := newFixture(t)
	u := unverifiedUser()
	token, err := f.tokens.GenerateVerificationToken(u.ID, u.Email)
	require.NoError(t, err)

	f.users.On("ConfirmEmail", mock.Anything, u.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

	ok, err := f.svc.VerifyEmail(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.VerifyEmail(context.Background(), token)
	assert.False(t, ok)
	require.ErrorIs(t, err, ErrTokenUsed)
	f.users.AssertNumberOfCalls(t, "ConfirmEmail", 1)
}

func TestVerifyEmail_InvalidToken(t *testing.T) {
	f := newFixture(t)

	access, _, err := f.tokens.GenerateAccessToken(uuid.New(), "jane@example.com")
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-jwt", access} {
		ok, err := f.svc.VerifyEmail(context.Background(), token)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
	f.users.AssertNotCalled(t, "ConfirmEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyEmail_FailureAllowsRetry(t *testing.T) {
	f := newFixture(t)
	u := unverifiedUser()
	token, err := f.tokens.GenerateVerificationToken(u.ID, u.Email)
	require.NoError(t, err)

	f.users.On("ConfirmEmail", mock.Anything, u.ID, mock.Anything).Return(errors.New("db down")).Once()
	f.users.On("ConfirmEmail", mock.Anything, u.ID, mock.Anything).Return(nil).Once()

	_, err = f.svc.VerifyEmail(context.Background(), token)
	require.Error(t, err)

	ok, err := f.svc.VerifyEmail(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, ok)
}
