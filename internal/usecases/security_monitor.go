package usecases

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"entropy-gate.backend/internal/config"
	"entropy-gate.backend/internal/domain/entities"
	"entropy-gate.backend/internal/domain/repositories"
	"entropy-gate.backend/pkg/logger"
	redispkg "entropy-gate.backend/pkg/redis"
	"entropy-gate.backend/pkg/utils"
)

const (
	blockedIPKeyPrefix  = "security:blocked:"
	eventCounterPrefix  = "security:events:"
	alertCooldownPrefix = "security:alerted:"
)

// Known-automation user agents. A heuristic, not a guarantee: false positives
// are tolerated because the pipeline only blocks at the edge.
var suspiciousUAPattern = regexp.MustCompile(`(?i)(bot|crawler|spider|scraper|curl|wget|python-requests|go-http-client)`)

// severeEventTypes are the types that escalate to an automatic IP block.
var severeEventTypes = map[entities.SecurityEventType]bool{
	entities.EventRateLimitExceeded: true,
	entities.EventInvalidApiKey:     true,
	entities.EventSuspiciousRequest: true,
}

// SecurityMonitor detects and reacts to abuse patterns and maintains the
// durable audit trail. All of its writes are best-effort: a monitor failure
// must never fail the request being observed.
type SecurityMonitor struct {
	eventRepo repositories.SecurityEventRepository
	cfg       config.SecurityConfig
}

// NewSecurityMonitor creates a new security monitor
func NewSecurityMonitor(eventRepo repositories.SecurityEventRepository, cfg config.SecurityConfig) *SecurityMonitor {
	return &SecurityMonitor{
		eventRepo: eventRepo,
		cfg:       cfg,
	}
}

// ExtractRequestInfo resolves the original client IP through proxy chains and
// the user agent. Header order matters: forwarded-for first hop, then real-ip,
// then the CDN header. This trusts the proxy and is spoofable if the service
// is reachable directly; see DESIGN.md.
func ExtractRequestInfo(r *http.Request) (ip, userAgent string) {
	userAgent = r.UserAgent()

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, found := strings.Cut(fwd, ","); found {
			return strings.TrimSpace(first), userAgent
		}
		return strings.TrimSpace(fwd), userAgent
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real), userAgent
	}
	if cf := r.Header.Get("CF-Connecting-IP"); cf != "" {
		return strings.TrimSpace(cf), userAgent
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host, userAgent
	}
	return "unknown", userAgent
}

// LogSecurityEvent records an event in the short-lived real-time counter and
// the durable audit trail, then runs the threshold check. Failures in either
// write are logged and swallowed.
func (m *SecurityMonitor) LogSecurityEvent(ctx context.Context, event *entities.SecurityEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// The counter's TTL refreshes on every event, so its value tracks
	// sustained activity within the detection window.
	counterKey := eventCounterPrefix + event.IPAddress + ":" + string(event.EventType)
	count, counterErr := redispkg.IncrWithTTL(ctx, counterKey, m.cfg.DetectionWindow)
	if counterErr != nil {
		logger.Warn(ctx, "Failed to bump security event counter", zap.Error(counterErr))
	}

	if err := m.eventRepo.Create(ctx, event); err != nil {
		logger.Error(ctx, "Failed to persist security event",
			zap.String("event_type", string(event.EventType)),
			zap.Error(err),
		)
	}

	m.checkThresholds(ctx, event, count, counterErr == nil)
}

// checkThresholds alerts when an (ip, type) pair is noisy and auto-blocks the
// IP when a severe type crosses the block threshold. The real-time counter is
// the primary input; when it is unavailable the durable audit trail is
// counted instead.
func (m *SecurityMonitor) checkThresholds(ctx context.Context, event *entities.SecurityEvent, count int64, counterOK bool) {
	if !counterOK {
		since := event.CreatedAt.Add(-m.cfg.DetectionWindow)
		durable, err := m.eventRepo.CountByIPAndType(ctx, event.IPAddress, event.EventType, since)
		if err != nil {
			logger.Warn(ctx, "Threshold check skipped: event count unavailable", zap.Error(err))
			return
		}
		count = durable
	}

	if count >= int64(m.cfg.AlertThreshold) {
		cooldownKey := alertCooldownPrefix + event.IPAddress + ":" + string(event.EventType)
		first, err := redispkg.SetNX(ctx, cooldownKey, "1", m.cfg.AlertCooldown)
		if err != nil || first {
			logger.Warn(ctx, "Security alert threshold exceeded",
				zap.String("ip", event.IPAddress),
				zap.String("event_type", string(event.EventType)),
				zap.Int64("count", count),
			)
		}
	}

	if severeEventTypes[event.EventType] && count >= int64(m.cfg.BlockThreshold) {
		if blocked, _ := m.IsIPBlocked(ctx, event.IPAddress); !blocked {
			m.BlockIP(ctx, event.IPAddress, int(m.cfg.AutoBlockDuration.Seconds()),
				"auto-block: "+strconv.FormatInt(count, 10)+" "+string(event.EventType)+" events")
		}
	}
}

// IsIPBlocked reports whether an IP is currently blocked.
func (m *SecurityMonitor) IsIPBlocked(ctx context.Context, ip string) (bool, error) {
	return redispkg.Exists(ctx, blockedIPKeyPrefix+ip)
}

// BlockIP blocks an IP for the given duration and audits the action.
func (m *SecurityMonitor) BlockIP(ctx context.Context, ip string, durationSeconds int, reason string) {
	duration := time.Duration(durationSeconds) * time.Second
	if err := redispkg.Set(ctx, blockedIPKeyPrefix+ip, "1", duration); err != nil {
		logger.Error(ctx, "Failed to block IP", zap.String("ip", ip), zap.Error(err))
		return
	}

	logger.Warn(ctx, "IP blocked",
		zap.String("ip", ip),
		zap.Duration("duration", duration),
		zap.String("reason", reason),
	)

	if err := m.eventRepo.Create(ctx, &entities.SecurityEvent{
		EventType: entities.EventIPBlocked,
		IPAddress: ip,
		Severity:  entities.SeverityCritical,
		Details:   reason,
		CreatedAt: time.Now(),
	}); err != nil {
		logger.Warn(ctx, "Failed to audit IP block", zap.Error(err))
	}
}

// UnblockIP clears a block and audits the action.
func (m *SecurityMonitor) UnblockIP(ctx context.Context, ip string) {
	if err := redispkg.Del(ctx, blockedIPKeyPrefix+ip); err != nil {
		logger.Error(ctx, "Failed to unblock IP", zap.String("ip", ip), zap.Error(err))
		return
	}

	if err := m.eventRepo.Create(ctx, &entities.SecurityEvent{
		EventType: entities.EventIPUnblocked,
		IPAddress: ip,
		Severity:  entities.SeverityMedium,
		Details:   "manual unblock",
		CreatedAt: time.Now(),
	}); err != nil {
		logger.Warn(ctx, "Failed to audit IP unblock", zap.Error(err))
	}
}

// DetectSuspiciousActivity returns true when the request's IP is blocked or
// its user agent matches the known-automation pattern set.
func (m *SecurityMonitor) DetectSuspiciousActivity(ctx context.Context, ip, userAgent string) bool {
	blocked, err := m.IsIPBlocked(ctx, ip)
	if err != nil {
		logger.Warn(ctx, "Block check unavailable, treating IP as unblocked", zap.Error(err))
	}
	if blocked {
		return true
	}
	return suspiciousUAPattern.MatchString(userAgent)
}

// GetSecurityStats aggregates the durable audit trail for a time range.
// Read-only and off the hot path.
func (m *SecurityMonitor) GetSecurityStats(ctx context.Context, from, to time.Time) (*entities.SecurityStats, error) {
	return m.eventRepo.Stats(ctx, from, to, 50)
}

// ListSecurityEvents pages through the raw audit trail for a time range.
func (m *SecurityMonitor) ListSecurityEvents(ctx context.Context, from, to time.Time, params utils.PaginationParams) ([]*entities.SecurityEvent, utils.PaginationMeta, error) {
	events, total, err := m.eventRepo.List(ctx, from, to, params)
	if err != nil {
		return nil, utils.PaginationMeta{}, err
	}
	return events, utils.CalculateMeta(total, params.Page, params.Limit), nil
}
