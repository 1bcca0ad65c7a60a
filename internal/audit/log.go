package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/secureblog/apiserver/types"
	"go.uber.org/zap"
)

const appendTimeout = 5 * time.Second

// Repository appends events to the durable audit table.
type Repository interface {
	Append(ctx context.Context, event types.AuditEvent) error
}

// Publisher fans events out to an external broker channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Log is the append-only security event log. Record is fire-and-forget:
// a write failure is downgraded to a local warning and never fails the
// flow that triggered the event.
type Log struct {
	logger    *zap.Logger
	repo      Repository
	publisher Publisher
	channel   string
}

// New constructs a Log. publisher may be nil to disable broker fan-out.
func New(logger *zap.Logger, repo Repository, publisher Publisher, channel string) *Log {
	return &Log{
		logger:    logger,
		repo:      repo,
		publisher: publisher,
		channel:   channel,
	}
}

// Record appends one event to the file stream, the audit table, and the
// broker channel. Persistence runs on a detached, bounded context so a
// cancelled request or a slow sink cannot block or fail the caller.
func (l *Log) Record(ctx context.Context, event types.AuditEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.Severity == "" {
		event.Severity = types.SeverityInfo
	}

	l.write(event)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()

	if err := l.repo.Append(ctx, event); err != nil {
		l.logger.Warn("audit append failed", zap.Error(err))
	}

	if l.publisher == nil || l.channel == "" {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		l.logger.Warn("audit event encode failed", zap.Error(err))
		return
	}
	attrs := map[string]string{"category": event.Category, "severity": string(event.Severity)}
	if _, err := l.publisher.Publish(ctx, l.channel, data, attrs); err != nil {
		l.logger.Warn("audit event publish failed", zap.Error(err))
	}
}

func (l *Log) write(event types.AuditEvent) {
	fields := []zap.Field{
		zap.String("category", event.Category),
		zap.String("email", event.Email),
		zap.String("role", event.Role),
		zap.String("ip", event.IP),
	}
	switch event.Severity {
	case types.SeverityError:
		l.logger.Error(event.Message, fields...)
	case types.SeverityWarning:
		l.logger.Warn(event.Message, fields...)
	default:
		l.logger.Info(event.Message, fields...)
	}
}

// NewFileLogger builds the zap logger backing the security log file.
func NewFileLogger(path string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
