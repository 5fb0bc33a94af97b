package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/domain/notification"
	"github.com/kctmenswear/storefront/internal/domain/order"
	"github.com/kctmenswear/storefront/internal/domain/payment"
	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

// Maintenance job names
const (
	JobReleaseReservations = "release-expired-reservations"
	JobExpireSessions      = "expire-checkout-sessions"
	JobPruneLogs           = "prune-logs"
)

// DefaultLogRetention is how long webhook and email logs are kept
const DefaultLogRetention = 30 * 24 * time.Hour

// Maintenance holds the cleanup work run on a schedule
type Maintenance struct {
	Reservations order.ReservationRepository
	Sessions     order.CheckoutSessionRepository
	WebhookLogs  payment.WebhookLogRepository
	EmailLogs    notification.EmailLogRepository
	Retention    time.Duration
	Logger       *zap.Logger

	now func() time.Time
}

func (m *Maintenance) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *Maintenance) log() *zap.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return zap.NewNop()
}

// ReleaseExpiredReservations frees inventory held by abandoned checkouts
func (m *Maintenance) ReleaseExpiredReservations(ctx context.Context) error {
	n, err := m.Reservations.ReleaseExpired(ctx, m.clock())
	if err != nil {
		return fmt.Errorf("release expired reservations: %w", err)
	}
	if n > 0 {
		m.log().Info("Released expired stock reservations", zap.Int64("count", n))
	}
	return nil
}

// ExpireCheckoutSessions marks unpaid sessions past their expiry as expired
func (m *Maintenance) ExpireCheckoutSessions(ctx context.Context) error {
	n, err := m.Sessions.ExpireStale(ctx, m.clock())
	if err != nil {
		return fmt.Errorf("expire checkout sessions: %w", err)
	}
	if n > 0 {
		m.log().Info("Expired stale checkout sessions", zap.Int64("count", n))
	}
	return nil
}

// PruneLogs deletes webhook and email logs older than the retention window
func (m *Maintenance) PruneLogs(ctx context.Context) error {
	retention := m.Retention
	if retention <= 0 {
		retention = DefaultLogRetention
	}
	cutoff := m.clock().Add(-retention)

	var errs []error
	webhooks, err := m.WebhookLogs.PruneBefore(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("prune webhook logs: %w", err))
	}
	emails, err := m.EmailLogs.PruneBefore(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("prune email logs: %w", err))
	}

	m.log().Info("Pruned logs",
		zap.Time("cutoff", cutoff),
		zap.Int64("webhook_logs", webhooks),
		zap.Int64("email_logs", emails))
	return errors.Join(errs...)
}

// RegisterMaintenance registers the maintenance jobs on s using the configured schedules
func RegisterMaintenance(s *Scheduler, cfg config.SchedulerConfig, m *Maintenance) error {
	if m.Retention <= 0 {
		m.Retention = cfg.LogRetention
	}
	jobs := []struct {
		name string
		spec string
		fn   JobFunc
	}{
		{JobReleaseReservations, cfg.ReleaseReservationsCron, m.ReleaseExpiredReservations},
		{JobExpireSessions, cfg.ExpireSessionsCron, m.ExpireCheckoutSessions},
		{JobPruneLogs, cfg.PruneLogsCron, m.PruneLogs},
	}
	for _, j := range jobs {
		if err := s.Register(j.name, j.spec, j.fn); err != nil {
			return err
		}
	}
	return nil
}
