//go:build unit

package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"webhook-forwarder/internal/core/auth"
	"webhook-forwarder/internal/core/dedup"
	"webhook-forwarder/internal/core/retry"
	"webhook-forwarder/internal/domain/webhook"
	"webhook-forwarder/internal/pkg/clock"
	"webhook-forwarder/internal/pkg/config"
	httptesthelper "webhook-forwarder/tests/common/httptest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventStore struct {
	stored      []webhook.StoredEvent
	storeErr    error
	byHashExist map[string]bool
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{byHashExist: map[string]bool{}}
}

func (f *fakeEventStore) Store(ctx context.Context, event webhook.StoredEvent) (uuid.UUID, error) {
	if f.storeErr != nil {
		return uuid.Nil, f.storeErr
	}
	f.stored = append(f.stored, event)
	f.byHashExist[event.Hash] = true
	return event.ID, nil
}

func (f *fakeEventStore) RecentByProvider(ctx context.Context, provider string, limit int) ([]webhook.StoredEvent, error) {
	return f.stored, nil
}

func (f *fakeEventStore) HashExists(ctx context.Context, hash string) (bool, error) {
	return f.byHashExist[hash], nil
}

func newTestRouter(t *testing.T, store *fakeEventStore, authCfg config.AuthConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authenticator := auth.New(authCfg, nil)
	deduplicator := dedup.New(store, time.Minute, 0, clock.NewRealClock())
	policy := retry.New(3, time.Millisecond, 10*time.Millisecond, 2.0)
	handler := NewWebhookHandler(authenticator, deduplicator, store, policy, config.IngestConfig{MaxBodyBytes: 1024}, clock.NewRealClock())

	router := gin.New()
	router.POST("/webhook/:provider", handler.Ingest)
	router.GET("/webhook/:provider/events", handler.Events)
	return router
}

func sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func TestIngest_HappyPath_StoresAndReturnsEventId(t *testing.T) {
	store := newFakeEventStore()
	router := newTestRouter(t, store, config.AuthConfig{Enabled: false})

	body := []byte(`{"type":"mined"}`)
	w := httptesthelper.PerformRawRequest(t, router, "POST", "/webhook/alchemy", body, nil)

	require.Equal(t, 200, w.Code)
	httptesthelper.AssertHeaders(t, w, map[string]string{"Content-Type": "application/json; charset=utf-8"})
	assert.Contains(t, w.Body.String(), `"duplicate":false`)
	assert.Contains(t, w.Body.String(), `"message":"Event stored"`)
	assert.Len(t, store.stored, 1)
	assert.Equal(t, "mined", store.stored[0].EventType)
}

func TestIngest_EmptyBody_BadRequest(t *testing.T) {
	store := newFakeEventStore()
	router := newTestRouter(t, store, config.AuthConfig{Enabled: false})

	w := httptesthelper.PerformRawRequest(t, router, "POST", "/webhook/alchemy", []byte{}, nil)

	httptesthelper.AssertErrorResponse(t, w, 400, "empty request body")
	assert.Empty(t, store.stored)
}

func TestIngest_OversizeBody_RequestEntityTooLarge(t *testing.T) {
	store := newFakeEventStore()
	router := newTestRouter(t, store, config.AuthConfig{Enabled: false})

	oversized := make([]byte, 2048)
	w := httptesthelper.PerformRawRequest(t, router, "POST", "/webhook/alchemy", oversized, nil)

	httptesthelper.AssertErrorResponse(t, w, 413, "request body exceeds size limit")
}

func TestIngest_UnparseableBody_TreatedAsUnknownEventTypeAndStored(t *testing.T) {
	store := newFakeEventStore()
	router := newTestRouter(t, store, config.AuthConfig{Enabled: false})

	w := httptesthelper.PerformRawRequest(t, router, "POST", "/webhook/alchemy", []byte("not json"), nil)

	require.Equal(t, 200, w.Code)
	require.Len(t, store.stored, 1)
	assert.Equal(t, webhook.UnknownEventType, store.stored[0].EventType)
}

func TestIngest_DuplicateBody_ReturnsDuplicateTrueWithoutRestoring(t *testing.T) {
	store := newFakeEventStore()
	router := newTestRouter(t, store, config.AuthConfig{Enabled: false})

	body := []byte(`{"type":"mined"}`)
	w1 := httptesthelper.PerformRawRequest(t, router, "POST", "/webhook/alchemy", body, nil)
	require.Equal(t, 200, w1.Code)

	w2 := httptesthelper.PerformRawRequest(t, router, "POST", "/webhook/alchemy", body, nil)
	require.Equal(t, 200, w2.Code)
	assert.Contains(t, w2.Body.String(), `"duplicate":true`)
	assert.Contains(t, w2.Body.String(), `"message":"Event already processed"`)
	assert.Len(t, store.stored, 1, "a duplicate must not be persisted a second time")
}

func TestIngest_AuthEnabled_ValidSignature_Stores(t *testing.T) {
	store := newFakeEventStore()
	secret := "s3cret"
	router := newTestRouter(t, store, config.AuthConfig{
		Enabled:         true,
		ProviderSecrets: map[string]string{"alchemy": secret},
	})

	body := []byte(`{"type":"mined"}`)
	w := httptesthelper.PerformRawRequest(t, router, "POST", "/webhook/alchemy", body,
		map[string]string{"X-Alchemy-Signature": sign(secret, body)})

	require.Equal(t, 200, w.Code)
	assert.Len(t, store.stored, 1)
}

func TestIngest_AuthEnabled_InvalidSignature_Unauthorized(t *testing.T) {
	store := newFakeEventStore()
	router := newTestRouter(t, store, config.AuthConfig{
		Enabled:         true,
		ProviderSecrets: map[string]string{"alchemy": "s3cret"},
	})

	body := []byte(`{"type":"mined"}`)
	w := httptesthelper.PerformRawRequest(t, router, "POST", "/webhook/alchemy", body,
		map[string]string{"X-Alchemy-Signature": "deadbeef"})

	httptesthelper.AssertErrorResponse(t, w, 401, "Invalid signature")
	assert.Empty(t, store.stored)
}

func TestIngest_AuthEnabled_NoSecretConfigured_FailsOpenAndStores(t *testing.T) {
	store := newFakeEventStore()
	router := newTestRouter(t, store, config.AuthConfig{Enabled: true})

	body := []byte(`{"type":"mined"}`)
	w := httptesthelper.PerformRawRequest(t, router, "POST", "/webhook/alchemy", body, nil)

	require.Equal(t, 200, w.Code, "an unconfigured provider must never lose an event")
	assert.Len(t, store.stored, 1)
}

func TestIngest_StoreFailure_InternalServerError(t *testing.T) {
	store := newFakeEventStore()
	store.storeErr = assert.AnError
	router := newTestRouter(t, store, config.AuthConfig{Enabled: false})

	body := []byte(`{"type":"mined"}`)
	w := httptesthelper.PerformRawRequest(t, router, "POST", "/webhook/alchemy", body, nil)

	httptesthelper.AssertErrorResponse(t, w, 500, "failed to store event")
}

func TestEvents_ReturnsStoredEventsForProvider(t *testing.T) {
	store := newFakeEventStore()
	router := newTestRouter(t, store, config.AuthConfig{Enabled: false})

	_ = httptesthelper.PerformRawRequest(t, router, "POST", "/webhook/alchemy", []byte(`{"type":"mined"}`), nil)

	w := httptesthelper.PerformRawRequest(t, router, "GET", "/webhook/alchemy/events", nil, nil)

	var events []webhook.StoredEvent
	httptesthelper.AssertSuccessResponse(t, w, 200, &events)
	require.Len(t, events, 1)
	assert.Equal(t, "mined", events[0].EventType)
}
