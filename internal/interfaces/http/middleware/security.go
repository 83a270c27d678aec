package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"entropy-gate.backend/internal/config"
	"entropy-gate.backend/internal/domain/entities"
	domainerrors "entropy-gate.backend/internal/domain/errors"
	"entropy-gate.backend/internal/interfaces/http/response"
	"entropy-gate.backend/internal/usecases"
	"entropy-gate.backend/pkg/logger"
	"entropy-gate.backend/pkg/metrics"
)

const (
	// ApiKeyHeader carries the raw API key secret
	ApiKeyHeader = "X-Api-Key"
	// SignatureHeader carries the HMAC for privileged calls
	SignatureHeader = "X-Signature"
	// TimestampHeader carries the unix timestamp signed into the HMAC
	TimestampHeader = "X-Timestamp"

	// Context keys set on approval
	KeyIDKey         = "apiKeyId"
	KeyNameKey       = "apiKeyName"
	KeyUserIDKey     = "apiKeyUserId"
	RateRemainingKey = "rateRemaining"
	RateResetKey     = "rateReset"
	ClientIPKey      = "clientIp"
	ClientUserAgent  = "clientUserAgent"
)

// RoutePolicy configures the security pipeline for one route group.
type RoutePolicy struct {
	RequireAuth        bool
	RequiredPermission string
	RequireSignature   bool
	ValidateOrigin     bool
	MaxBodySize        int64 // 0 = use the configured default
	RateLimitPolicy    string
	LogUsage           bool
}

// SecurityPipeline is the single gate every business request passes through.
// It runs the ordered checks from the design doc: blocked/suspicious, body
// size, origin, signature, authentication, rate limiting, then success
// bookkeeping. Cheap local checks run before store-backed ones, and auth runs
// before rate limiting so limits attribute to the authenticated identity.
type SecurityPipeline struct {
	monitor     *usecases.SecurityMonitor
	apiKeys     *usecases.ApiKeyUsecase
	rateLimiter *usecases.RateLimiter
	usage       *usecases.UsageUsecase
	cfg         config.SecurityConfig
}

// NewSecurityPipeline creates the pipeline with explicit collaborators.
func NewSecurityPipeline(
	monitor *usecases.SecurityMonitor,
	apiKeys *usecases.ApiKeyUsecase,
	rateLimiter *usecases.RateLimiter,
	usage *usecases.UsageUsecase,
	cfg config.SecurityConfig,
) *SecurityPipeline {
	return &SecurityPipeline{
		monitor:     monitor,
		apiKeys:     apiKeys,
		rateLimiter: rateLimiter,
		usage:       usage,
		cfg:         cfg,
	}
}

// Gate returns the gin middleware enforcing the given policy.
func (p *SecurityPipeline) Gate(policy RoutePolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()

		ip, userAgent := usecases.ExtractRequestInfo(c.Request)
		c.Set(ClientIPKey, ip)
		c.Set(ClientUserAgent, userAgent)

		// 1. Blocked IP / suspicious client
		if p.monitor.DetectSuspiciousActivity(ctx, ip, userAgent) {
			p.reject(c, "suspicious", &entities.SecurityEvent{
				EventType: entities.EventSuspiciousRequest,
				IPAddress: ip,
				UserAgent: userAgent,
				Endpoint:  c.FullPath(),
				Severity:  entities.SeverityHigh,
				Details:   "blocked IP or automation user agent",
			}, domainerrors.SuspiciousActivity("request blocked"))
			return
		}

		// 2. Body size
		maxBody := policy.MaxBodySize
		if maxBody <= 0 {
			maxBody = p.cfg.MaxBodyBytes
		}
		body, err := readBody(c, maxBody)
		if err != nil {
			p.reject(c, "body_size", &entities.SecurityEvent{
				EventType: entities.EventOversizedPayload,
				IPAddress: ip,
				UserAgent: userAgent,
				Endpoint:  c.FullPath(),
				Severity:  entities.SeverityMedium,
				Details:   fmt.Sprintf("body exceeds %d bytes", maxBody),
			}, domainerrors.PayloadTooLarge("request body too large"))
			return
		}

		// 3. Origin. Requests without an Origin header (server-to-server)
		// pass; this check only constrains browser cross-site calls.
		if policy.ValidateOrigin {
			if origin := c.GetHeader("Origin"); origin != "" && !p.originAllowed(origin) {
				p.reject(c, "origin", &entities.SecurityEvent{
					EventType: entities.EventBlockedOrigin,
					IPAddress: ip,
					UserAgent: userAgent,
					Endpoint:  c.FullPath(),
					Severity:  entities.SeverityMedium,
					Details:   "origin not allowed: " + origin,
				}, domainerrors.Forbidden("origin not allowed"))
				return
			}
		}

		// 4. Signature (privileged/administrative calls)
		if policy.RequireSignature {
			if err := p.verifySignature(c, body); err != nil {
				p.reject(c, "signature", &entities.SecurityEvent{
					EventType: entities.EventInvalidSignature,
					IPAddress: ip,
					UserAgent: userAgent,
					Endpoint:  c.FullPath(),
					Severity:  entities.SeverityHigh,
					Details:   err.Error(),
				}, domainerrors.Unauthorized(err.Error()))
				return
			}
		}

		// 5. Authentication. Routes that don't require a key still honor one
		// when presented, so limits attribute to the key instead of the IP.
		// A presented-but-invalid key is rejected either way.
		var keyInfo *entities.KeyInfo
		if policy.RequireAuth || c.GetHeader(ApiKeyHeader) != "" {
			keyInfo, err = p.authenticate(c, policy.RequiredPermission)
			if err != nil {
				appErr, ok := err.(*domainerrors.AppError)
				if !ok {
					appErr = domainerrors.Unauthorized("authentication failed")
				}
				p.reject(c, "auth", &entities.SecurityEvent{
					EventType: entities.EventInvalidApiKey,
					IPAddress: ip,
					UserAgent: userAgent,
					Endpoint:  c.FullPath(),
					Severity:  entities.SeverityMedium,
					Details:   appErr.Message,
				}, appErr)
				return
			}
			c.Set(KeyIDKey, keyInfo.ID.String())
			c.Set(KeyNameKey, keyInfo.Name)
			c.Set(KeyUserIDKey, keyInfo.UserID.String())
		}

		// 6. Rate limiting, attributed to the key when authenticated
		identity := ip
		limitOverride := 0
		if keyInfo != nil {
			identity = "key:" + keyInfo.ID.String()
			limitOverride = keyInfo.RateLimit
		}
		result := p.rateLimiter.Check(ctx, identity, policy.RateLimitPolicy, limitOverride)
		response.RateLimitHeaders(c, result.Limit, result.Remaining, result.ResetAt.Unix())
		if !result.Allowed {
			response.RetryAfterHeader(c, int(result.RetryAfter.Seconds()))
			p.reject(c, "rate_limit", &entities.SecurityEvent{
				EventType: entities.EventRateLimitExceeded,
				IPAddress: ip,
				UserAgent: userAgent,
				Endpoint:  c.FullPath(),
				Severity:  entities.SeverityLow,
				Details:   "policy " + policy.RateLimitPolicy,
			}, domainerrors.TooManyRequests("rate limit exceeded"))
			return
		}
		c.Set(RateRemainingKey, result.Remaining)
		c.Set(RateResetKey, result.ResetAt.Unix())

		// 7. Run the handler, then fire-and-forget the usage record
		c.Next()

		if keyInfo != nil {
			p.apiKeys.RecordUsage(keyInfo)
		}
		if policy.LogUsage {
			record := &entities.UsageRecord{
				Endpoint:       c.FullPath(),
				Method:         c.Request.Method,
				StatusCode:     c.Writer.Status(),
				ResponseTimeMs: time.Since(start).Milliseconds(),
				RequestSize:    int64(len(body)),
				ResponseSize:   int64(c.Writer.Size()),
				IPAddress:      ip,
				UserAgent:      userAgent,
				CreatedAt:      time.Now(),
			}
			if keyInfo != nil {
				record.ApiKeyID = null.StringFrom(keyInfo.ID.String())
				record.UserID = null.StringFrom(keyInfo.UserID.String())
			}
			p.usage.LogRequest(record)
		}
	}
}

// reject logs the security event, counts the rejection and writes the typed
// error. Every rejection funnels through here.
func (p *SecurityPipeline) reject(c *gin.Context, check string, event *entities.SecurityEvent, appErr *domainerrors.AppError) {
	metrics.PipelineRejections.WithLabelValues(check).Inc()
	p.monitor.LogSecurityEvent(c.Request.Context(), event)
	logger.Debug(c.Request.Context(), "Pipeline rejection",
		zap.String("check", check),
		zap.String("ip", event.IPAddress),
		zap.String("endpoint", event.Endpoint),
	)
	response.AbortError(c, appErr)
}

func (p *SecurityPipeline) originAllowed(origin string) bool {
	for _, allowed := range p.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// verifySignature checks an HMAC-SHA256 over "timestamp.body" with the shared
// secret, requiring the timestamp to be within the clock-skew tolerance.
func (p *SecurityPipeline) verifySignature(c *gin.Context, body []byte) error {
	signature := c.GetHeader(SignatureHeader)
	timestamp := c.GetHeader(TimestampHeader)
	if signature == "" || timestamp == "" {
		return errors.New("signature and timestamp headers are required")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errors.New("invalid timestamp")
	}
	if math.Abs(float64(time.Now().Unix()-ts)) > p.cfg.SignatureSkew.Seconds() {
		return errors.New("request timestamp expired")
	}

	mac := hmac.New(sha256.New, []byte(p.cfg.SignatureSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.New("invalid signature")
	}
	return nil
}

// authenticate resolves the API key header through the key store. Store
// unavailability fails closed: no request is treated as authenticated
// without confirmed identity.
func (p *SecurityPipeline) authenticate(c *gin.Context, requiredPermission string) (*entities.KeyInfo, error) {
	secret := c.GetHeader(ApiKeyHeader)
	if secret == "" {
		return nil, domainerrors.Unauthorized("API key required")
	}

	info, err := p.apiKeys.LookupKey(c.Request.Context(), secret)
	if err != nil {
		if errors.Is(err, domainerrors.ErrStoreUnavailable) {
			return nil, domainerrors.ServiceUnavailable("authentication temporarily unavailable")
		}
		return nil, domainerrors.Unauthorized("Invalid API key")
	}

	if !usecases.HasPermission(info.Permissions, requiredPermission) {
		return nil, domainerrors.Forbidden("insufficient permissions")
	}

	return info, nil
}

// readBody reads and restores the request body, enforcing the size cap.
func readBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		return nil, errors.New("body too large")
	}

	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	return body, nil
}
