// Package verification drives the email verification banner: status, the
// send action and token confirmation.
package verification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/domain/identity"
	"github.com/kctmenswear/storefront/internal/domain/notification"
	"github.com/kctmenswear/storefront/internal/domain/shared"
	"github.com/kctmenswear/storefront/internal/infrastructure/auth"
	"github.com/kctmenswear/storefront/internal/infrastructure/email"
	"github.com/kctmenswear/storefront/internal/infrastructure/job"
	"github.com/kctmenswear/storefront/internal/infrastructure/telemetry"
	"github.com/kctmenswear/storefront/internal/pkg/loadingstate"
)

// Banner copy
const (
	BannerTitle        = "Verify your email address"
	BannerMessage      = "Please verify your email address to access all features and ensure account security."
	ActionLabel        = "Send Verification Email"
	ActionLabelSending = "Sending..."
)

const (
	sentTitle       = "Verification email sent"
	sentDescription = "Please check your email and click the verification link."
	verifyPath      = "/verify-email?token="
	usedTokenPrefix = "verify:"
)

// Verification errors
var (
	ErrInProgress      = shared.NewDomainError("VERIFICATION_IN_PROGRESS", "A verification email is already being sent")
	ErrNoEmail         = shared.NewDomainError("NO_EMAIL", "No user email found")
	ErrAlreadyVerified = shared.NewDomainError("ALREADY_VERIFIED", "Email address is already verified")
	ErrInvalidToken    = shared.NewDomainError("INVALID_TOKEN", "Invalid or expired verification link")
	ErrTokenUsed       = shared.NewDomainError("TOKEN_USED", "This verification link has already been used")
)

// TokenIssuer signs and checks verification tokens
type TokenIssuer interface {
	GenerateVerificationToken(userID uuid.UUID, email string) (string, error)
	ValidateVerificationToken(token string) (*auth.Claims, error)
}

// OriginPolicy decides whether a request origin may appear in emailed links
type OriginPolicy interface {
	Allows(raw string) bool
}

// Status is the verification state of a user
type Status struct {
	IsVerified bool `json:"is_verified"`
}

// Banner is the state of the verification banner
type Banner struct {
	Visible     bool   `json:"visible"`
	Sending     bool   `json:"sending"`
	Title       string `json:"title,omitempty"`
	Message     string `json:"message,omitempty"`
	ActionLabel string `json:"action_label,omitempty"`
}

// SendResult is the notification shown after a send
type SendResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ExpiresIn   string `json:"expires_in"`
}

// ServiceConfig contains the dependencies of Service
type ServiceConfig struct {
	Users    identity.UserRepository
	Logs     notification.EmailLogRepository
	Queue    job.Enqueuer
	Tokens   TokenIssuer
	Replays  shared.IdempotencyStore
	Origins  OriginPolicy
	SiteURL  string
	TokenTTL time.Duration
	Metrics  *telemetry.StoreMetrics
	Logger   *zap.Logger
}

// Service implements the verification operations
type Service struct {
	users    identity.UserRepository
	logs     notification.EmailLogRepository
	queue    job.Enqueuer
	tokens   TokenIssuer
	replays  shared.IdempotencyStore
	origins  OriginPolicy
	siteURL  string
	tokenTTL time.Duration
	metrics  *telemetry.StoreMetrics
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	states map[uuid.UUID]*loadingstate.State
}

// NewService creates a verification Service
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = auth.DefaultVerificationTTL
	}
	return &Service{
		users:    cfg.Users,
		logs:     cfg.Logs,
		queue:    cfg.Queue,
		tokens:   cfg.Tokens,
		replays:  cfg.Replays,
		origins:  cfg.Origins,
		siteURL:  strings.TrimRight(cfg.SiteURL, "/"),
		tokenTTL: ttl,
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      time.Now,
		states:   make(map[uuid.UUID]*loadingstate.State),
	}
}

// Status reports whether the user's email is confirmed
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Status{IsVerified: u.IsVerified()}, nil
}

// Banner returns what the verification banner should show. Unknown and
// verified users get a hidden banner.
func (s *Service) Banner(ctx context.Context, userID uuid.UUID) (*Banner, error) {
	if userID == uuid.Nil {
		return &Banner{}, nil
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return &Banner{}, nil
		}
		return nil, err
	}
	if u.IsVerified() {
		return &Banner{}, nil
	}

	sending := s.Sending(userID)
	label := ActionLabel
	if sending {
		label = ActionLabelSending
	}
	return &Banner{
		Visible:     true,
		Sending:     sending,
		Title:       BannerTitle,
		Message:     BannerMessage,
		ActionLabel: label,
	}, nil
}

// Sending reports whether a verification email is being sent for userID
func (s *Service) Sending(userID uuid.UUID) bool {
	s.mu.Lock()
	st, ok := s.states[userID]
	s.mu.Unlock()
	return ok && st.Loading()
}

// SendVerificationEmail issues a verification link for the user and queues
// the email. A second send while one is in flight returns ErrInProgress.
func (s *Service) SendVerificationEmail(ctx context.Context, userID uuid.UUID, origin string) (*SendResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "verification", "send_email",
		telemetry.AttrUserID, userID.String())
	defer span.End()

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if strings.TrimSpace(u.Email) == "" {
		return nil, ErrNoEmail
	}
	if u.IsVerified() {
		return nil, ErrAlreadyVerified
	}

	st, ok := s.beginFor(userID)
	if !ok {
		return nil, ErrInProgress
	}
	defer s.dropState(userID, st)

	result, err := loadingstate.Execute(ctx, st, func(ctx context.Context) (*SendResult, error) {
		return s.send(ctx, u, s.linkOrigin(origin))
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

func (s *Service) send(ctx context.Context, u *identity.User, origin string) (*SendResult, error) {
	token, err := s.tokens.GenerateVerificationToken(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	expiresIn := email.FormatDuration(s.tokenTTL)

	entry := notification.NewEmailLog(u.Email, notification.EmailVerification, string(email.TemplateVerification),
		map[string]any{
			"user_id":    u.ID.String(),
			"expires_in": expiresIn,
		})
	if err := s.logs.Create(ctx, entry); err != nil {
		return nil, err
	}

	err = s.queue.EnqueueVerificationEmail(ctx, job.VerificationEmailPayload{
		EmailLogID:      entry.ID,
		To:              u.Email,
		VerificationURL: origin + verifyPath + token,
		ExpiresIn:       expiresIn,
	})
	if err != nil {
		if merr := s.logs.MarkFailed(ctx, entry.ID, err.Error()); merr != nil {
			s.logger.Warn("Failed to mark email log failed",
				zap.String("email_log_id", entry.ID.String()),
				zap.Error(merr))
		}
		s.metrics.RecordEmail(ctx, string(email.TemplateVerification), "enqueue_failed")
		return nil, err
	}

	s.logger.Info("Verification email queued",
		zap.String("user_id", u.ID.String()),
		zap.String("email_log_id", entry.ID.String()))
	return &SendResult{
		Title:       sentTitle,
		Description: sentDescription,
		ExpiresIn:   expiresIn,
	}, nil
}

// VerifyEmail confirms the address named by token. Each token works once.
func (s *Service) VerifyEmail(ctx context.Context, token string) (bool, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "verification", "verify_email")
	defer span.End()

	verified, err := s.verify(ctx, token)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	return verified, nil
}

func (s *Service) verify(ctx context.Context, token string) (bool, error) {
	claims, err := s.tokens.ValidateVerificationToken(strings.TrimSpace(token))
	if err != nil {
		return false, shared.WrapDomainError(ErrInvalidToken.Code, ErrInvalidToken.Message, err)
	}
	userID, err := claims.GetUserUUID()
	if err != nil {
		return false, shared.WrapDomainError(ErrInvalidToken.Code, ErrInvalidToken.Message, err)
	}

	key := usedTokenPrefix + claims.ID
	fresh, err := s.replays.MarkProcessed(ctx, key, max(claims.GetRemainingTTL(), time.Minute))
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, ErrTokenUsed
	}

	if err := s.users.ConfirmEmail(ctx, userID, s.now()); err != nil {
		if ferr := s.replays.Forget(ctx, key); ferr != nil {
			s.logger.Warn("Failed to forget verification token", zap.Error(ferr))
		}
		if errors.Is(err, shared.ErrNotFound) {
			return false, ErrInvalidToken
		}
		return false, err
	}

	s.logger.Info("Email verified", zap.String("user_id", userID.String()))
	return true, nil
}

// linkOrigin returns origin when it may appear in emailed links, else SiteURL
func (s *Service) linkOrigin(origin string) string {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" || s.origins == nil || !s.origins.Allows(origin) {
		return s.siteURL
	}
	return origin
}

// beginFor claims the user's send slot. Lookup and claim happen under s.mu
// so dropState never removes a state between the two.
func (s *Service) beginFor(userID uuid.UUID) (*loadingstate.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok {
		st = loadingstate.New(
			loadingstate.WithContext("send_verification_email"),
			loadingstate.WithNotifier(loadingstate.ZapNotifier{Logger: s.logger}),
			loadingstate.WithLogger(s.logger),
		)
		s.states[userID] = st
	}
	return st, st.TryBegin()
}

func (s *Service) dropState(userID uuid.UUID, st *loadingstate.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[userID] == st && !st.Loading() {
		delete(s.states, userID)
	}
}
