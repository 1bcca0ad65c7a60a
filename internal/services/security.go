package services

import (
	"context"
	"fmt"

	"github.com/secureblog/apiserver/types"
)

const defaultDashboardEntries = 10

// AuditReader reads the append-only event log for the dashboard.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]types.AuditEvent, error)
}

// AccessLogReader lists account login histories for the dashboard.
type AccessLogReader interface {
	List(ctx context.Context) ([]types.AccessLog, error)
}

// Dashboard is the security dashboard view: the most recent audit
// entries plus every account's login history.
type Dashboard struct {
	Events     []types.AuditEvent `json:"events"`
	AccessLogs []types.AccessLog  `json:"access_logs"`
}

// SecurityService serves the security dashboard reads.
type SecurityService struct {
	events     AuditReader
	accessLogs AccessLogReader
}

func NewSecurityService(events AuditReader, accessLogs AccessLogReader) *SecurityService {
	return &SecurityService{events: events, accessLogs: accessLogs}
}

// Dashboard returns the limit most recent audit entries and all access
// logs. A non-positive limit falls back to the default.
func (s *SecurityService) Dashboard(ctx context.Context, limit int) (Dashboard, error) {
	if limit <= 0 {
		limit = defaultDashboardEntries
	}

	events, err := s.events.Recent(ctx, limit)
	if err != nil {
		return Dashboard{}, fmt.Errorf("read audit events: %w", err)
	}

	logs, err := s.accessLogs.List(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("read access logs: %w", err)
	}

	return Dashboard{Events: events, AccessLogs: logs}, nil
}
