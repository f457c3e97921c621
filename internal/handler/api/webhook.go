// Package api holds the gin handlers. WebhookHandler implements the intake
// handler (component A): it owns nothing of its own beyond request
// plumbing, delegating authentication, deduplication, and storage to the
// core components it is constructed with.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"webhook-forwarder/internal/core/auth"
	"webhook-forwarder/internal/core/dedup"
	"webhook-forwarder/internal/core/retry"
	"webhook-forwarder/internal/domain/webhook"
	"webhook-forwarder/internal/handler/httperr"
	"webhook-forwarder/internal/infra/metrics"
	"webhook-forwarder/internal/infra/repository"
	"webhook-forwarder/internal/pkg/clock"
	"webhook-forwarder/internal/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var signatureHeaders = []string{"X-Alchemy-Signature", "X-Signature", "X-Hub-Signature-256"}

// EventStore is the narrow slice of the event repository the handler
// needs, letting unit tests substitute a hand-written fake instead of a
// real Postgres-backed repository.
type EventStore interface {
	Store(ctx context.Context, event webhook.StoredEvent) (uuid.UUID, error)
	RecentByProvider(ctx context.Context, provider string, limit int) ([]webhook.StoredEvent, error)
}

type WebhookHandler struct {
	authenticator *auth.Authenticator
	deduplicator  *dedup.Deduplicator
	repo          EventStore
	retryPolicy   *retry.Policy
	maxBodyBytes  int64
	clock         clock.Clock
	logger        *slog.Logger
}

func NewWebhookHandler(
	authenticator *auth.Authenticator,
	deduplicator *dedup.Deduplicator,
	repo EventStore,
	retryPolicy *retry.Policy,
	cfg config.IngestConfig,
	clk clock.Clock,
) *WebhookHandler {
	return &WebhookHandler{
		authenticator: authenticator,
		deduplicator:  deduplicator,
		repo:          repo,
		retryPolicy:   retryPolicy,
		maxBodyBytes:  cfg.MaxBodyBytes,
		clock:         clk,
		logger:        slog.Default(),
	}
}

// Ingest is the single intake operation, wired to POST /webhook/:provider.
func (h *WebhookHandler) Ingest(c *gin.Context) {
	provider := c.Param("provider")
	ctx := c.Request.Context()

	body, err := h.readBody(c.Request.Body)
	if err != nil {
		metrics.IntakeTotal.WithLabelValues(provider, metrics.OutcomeBadInput).Inc()
		httperr.AbortWithError(c, http.StatusRequestEntityTooLarge, err, "request body exceeds size limit", nil)
		return
	}
	if len(body) == 0 {
		metrics.IntakeTotal.WithLabelValues(provider, metrics.OutcomeBadInput).Inc()
		httperr.AbortWithError(c, http.StatusBadRequest, errEmptyBody, "empty request body", nil)
		return
	}

	event := h.buildIncomingEvent(c, provider, body)

	authResult := h.authenticator.Authenticate(provider, event.Signature, event.SourceAddress, body)
	if !authResult.Authenticated {
		metrics.IntakeTotal.WithLabelValues(provider, metrics.OutcomeAuthFail).Inc()
		h.logger.Warn("webhook authentication failed",
			slog.String("provider", provider), slog.String("reason", authResult.FailureReason))
		httperr.AbortWithError(c, http.StatusUnauthorized, errors.New(authResult.FailureReason), authResult.FailureReason, nil)
		return
	}

	hash := dedup.ComputeHash(body)

	isDup, err := h.deduplicator.IsDuplicate(ctx, provider, hash)
	if err != nil {
		h.logger.Error("deduplication check failed", slog.String("provider", provider), slog.Any("error", err))
		metrics.IntakeTotal.WithLabelValues(provider, metrics.OutcomeStoreErr).Inc()
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "failed to process event", nil)
		return
	}
	if isDup {
		metrics.IntakeTotal.WithLabelValues(provider, metrics.OutcomeDup).Inc()
		h.logger.Info("duplicate webhook event",
			slog.String("provider", provider), slog.String("event_type", event.EventType), slog.String("hash_prefix", hashPrefix(hash)))
		c.JSON(http.StatusOK, gin.H{"message": "Event already processed", "duplicate": true})
		return
	}

	stored := webhook.StoredEvent{
		ID:            uuid.New(),
		Provider:      provider,
		EventType:     event.EventType,
		Body:          body,
		Hash:          hash,
		ReceivedAt:    event.ReceivedAt,
		SourceAddress: parseSourceIP(event.SourceAddress),
		Headers:       event.Headers,
	}

	start := h.clock.Now()
	id, err := retry.Execute(ctx, h.retryPolicy, repository.IsTransient, func(ctx context.Context) (uuid.UUID, error) {
		return h.repo.Store(ctx, stored)
	})
	if err != nil {
		if repository.IsDuplicateKey(err) {
			metrics.IntakeTotal.WithLabelValues(provider, metrics.OutcomeDup).Inc()
			metrics.ObserveStore(provider, metrics.OutcomeDup, start)
			c.JSON(http.StatusOK, gin.H{"message": "Event already processed", "duplicate": true})
			return
		}
		metrics.IntakeTotal.WithLabelValues(provider, metrics.OutcomeStoreErr).Inc()
		metrics.ObserveStore(provider, metrics.OutcomeStoreErr, start)
		h.logger.Error("failed to store webhook event", slog.String("provider", provider), slog.Any("error", err))
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "failed to store event", nil)
		return
	}

	metrics.IntakeTotal.WithLabelValues(provider, metrics.OutcomeStored).Inc()
	metrics.ObserveStore(provider, metrics.OutcomeStored, start)
	h.logger.Info("webhook event stored",
		slog.String("provider", provider), slog.String("event_type", event.EventType), slog.String("hash_prefix", hashPrefix(hash)))

	c.JSON(http.StatusOK, gin.H{"message": "Event stored", "eventId": id, "duplicate": false})
}

// Events backs the debug-only listing endpoint, capped at 50 rows.
func (h *WebhookHandler) Events(c *gin.Context) {
	provider := c.Param("provider")

	events, err := h.repo.RecentByProvider(c.Request.Context(), provider, 50)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "failed to list events", nil)
		return
	}
	if events == nil {
		events = []webhook.StoredEvent{}
	}

	c.JSON(http.StatusOK, events)
}

func (h *WebhookHandler) readBody(body io.ReadCloser) ([]byte, error) {
	limited := io.LimitReader(body, h.maxBodyBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.maxBodyBytes {
		return nil, errBodyTooLarge
	}
	return data, nil
}

var (
	errBodyTooLarge = errors.New("request body exceeds size limit")
	errEmptyBody    = errors.New("empty request body")
)

func (h *WebhookHandler) buildIncomingEvent(c *gin.Context, provider string, body []byte) webhook.IncomingEvent {
	headers := make(map[string]string, len(c.Request.Header))
	for key := range c.Request.Header {
		headers[key] = c.Request.Header.Get(key)
	}

	return webhook.IncomingEvent{
		Provider:      provider,
		EventType:     resolveEventType(body),
		Body:          body,
		Signature:     firstSignatureHeader(c),
		SourceAddress: c.ClientIP(),
		ReceivedAt:    h.clock.Now(),
		Headers:       headers,
	}
}

// resolveEventType inspects the body's "type" field if the payload parses
// as a JSON object; any parse failure is swallowed and treated as unknown,
// matching the contract that deserialization never fails the request.
func resolveEventType(body []byte) string {
	var parsed struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Type == "" {
		return webhook.UnknownEventType
	}
	return parsed.Type
}

func firstSignatureHeader(c *gin.Context) string {
	for _, name := range signatureHeaders {
		if v := c.GetHeader(name); v != "" {
			return v
		}
	}
	return ""
}

// parseSourceIP strips an optional port and parses the remainder as an IP;
// an unparseable address degrades to nil, which the repository stores as
// NULL rather than failing the request over a log-only field.
func parseSourceIP(sourceAddress string) net.IP {
	host := sourceAddress
	if h, _, err := net.SplitHostPort(sourceAddress); err == nil {
		host = h
	}
	return net.ParseIP(host)
}

func hashPrefix(hash string) string {
	if len(hash) < 8 {
		return hash
	}
	return hash[:8]
}
