package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"transkribator/internal/logging"
)

const (
	KindPreExpiry = "plan_pre_expiry_notification"
	KindExpired   = "plan_expired_notification"

	PreExpiryWindow = 3 * 24 * time.Hour
	ExpiredLookback = 3 * 24 * time.Hour

	defaultTimezone = "Europe/Moscow"
)

// Candidate is a user with a paid plan and a known expiry.
type Candidate struct {
	UserID     int64
	TelegramID int64
	Plan       string
	PlanName   string
	ExpiresAt  time.Time
	Timezone   string
}

// Notification is a reminder ready to send.
type Notification struct {
	UserID     int64
	TelegramID int64
	Kind       string
	ExpiresAt  time.Time
	Message    string
}

// Source supplies candidates and remembers what was sent.
type Source interface {
	Candidates(ctx context.Context, now time.Time) ([]Candidate, error)
	AlreadySent(ctx context.Context, userID int64, kind string, expiresAt time.Time) (bool, error)
	Record(ctx context.Context, userID int64, kind string, expiresAt time.Time) error
}

// Sender delivers a text message to a Telegram chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Task collects and sends reminders.
type Task struct {
	source Source
	sender Sender
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Task.
type Option func(*Task)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Task) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates a reminder task.
func New(source Source, sender Sender, logger *slog.Logger, opts ...Option) *Task {
	t := &Task{
		source: source,
		sender: sender,
		logger: logging.NewComponentLogger(logger, "reminders"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Collect returns the reminders due at now.
func (t *Task) Collect(ctx context.Context, now time.Time) ([]Notification, error) {
	now = now.UTC()
	candidates, err := t.source.Candidates(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}

	var out []Notification
	for _, c := range candidates {
		if c.ExpiresAt.IsZero() {
			continue
		}
		expires := c.ExpiresAt.UTC()
		kind := ""
		switch {
		case !expires.After(now):
			if now.Sub(expires) > ExpiredLookback {
				continue
			}
			kind = KindExpired
		case expires.Sub(now) <= PreExpiryWindow:
			kind = KindPreExpiry
		default:
			continue
		}

		sent, err := t.source.AlreadySent(ctx, c.UserID, kind, expires)
		if err != nil {
			return nil, fmt.Errorf("check reminder history for user %d: %w", c.UserID, err)
		}
		if sent {
			continue
		}

		message := expiredMessage(c, expires)
		if kind == KindPreExpiry {
			message = preExpiryMessage(c, now, expires)
		}
		out = append(out, Notification{
			UserID:     c.UserID,
			TelegramID: c.TelegramID,
			Kind:       kind,
			ExpiresAt:  expires,
			Message:    message,
		})
	}
	return out, nil
}

// Run sends every due reminder and returns how many were delivered.
// Delivery failures are logged and retried on the next run.
func (t *Task) Run(ctx context.Context) (int, error) {
	notifications, err := t.Collect(ctx, t.now())
	if err != nil {
		return 0, err
	}
	if len(notifications) == 0 {
		return 0, nil
	}
	t.logger.Info("sending plan reminders", logging.Int("count", len(notifications)))

	sent := 0
	for _, n := range notifications {
		attrs := []logging.Attr{
			logging.Int64("user_id", n.UserID),
			logging.String("kind", n.Kind),
		}
		if err := t.sender.SendMessage(ctx, n.TelegramID, n.Message); err != nil {
			logging.WarnWithContext(t.logger, "failed to send plan reminder", "reminder_failed",
				append(attrs,
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "will retry on the next reminder run"),
				)...)
			continue
		}
		sent++
		if err := t.source.Record(ctx, n.UserID, n.Kind, n.ExpiresAt); err != nil {
			logging.WarnWithContext(t.logger, "failed to record plan reminder", "reminder_record_failed",
				append(attrs,
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "the reminder may be sent twice"),
				)...)
		}
	}
	return sent, nil
}

// ExpiryKey is the value stored in event payloads to identify an expiry date.
func ExpiryKey(expiresAt time.Time) string {
	return expiresAt.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05")
}

func preExpiryMessage(c Candidate, now, expires time.Time) string {
	days := int(math.Ceil(expires.Sub(now).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf("⏰ До окончания тарифа %s осталось %d дн. (до %s).\n\n"+
		"Продлите подписку заранее, чтобы сохранить полный доступ: /plans",
		planName(c), days, formatLocal(expires, c.Timezone))
}

func expiredMessage(c Candidate, expires time.Time) string {
	return fmt.Sprintf("⚠️ Тариф %s закончился %s.\n\n"+
		"Сервис переключится на бесплатный план с ограничениями. "+
		"Продлите подписку, чтобы вернуть полный доступ: /plans",
		planName(c), formatLocal(expires, c.Timezone))
}

func planName(c Candidate) string {
	if name := strings.TrimSpace(c.PlanName); name != "" {
		return name
	}
	if plan := strings.TrimSpace(c.Plan); plan != "" {
		return plan
	}
	return "тариф"
}

func formatLocal(t time.Time, tz string) string {
	return t.In(resolveLocation(tz)).Format("02.01.2006 15:04")
}

func resolveLocation(tz string) *time.Location {
	for _, name := range []string{strings.TrimSpace(tz), defaultTimezone} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}
