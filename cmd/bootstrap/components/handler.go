package components

import (
	"webhook-forwarder/internal/core/auth"
	"webhook-forwarder/internal/core/dedup"
	"webhook-forwarder/internal/core/retry"
	"webhook-forwarder/internal/handler"
	"webhook-forwarder/internal/handler/api"
	"webhook-forwarder/internal/infra/repository"
	"webhook-forwarder/internal/pkg/clock"
	"webhook-forwarder/internal/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		gin.New,
		NewWebhookHandler,
	),
	fx.Invoke(handler.NewRouter),
)

func NewWebhookHandler(
	authenticator *auth.Authenticator,
	deduplicator *dedup.Deduplicator,
	repo *repository.EventRepository,
	retryPolicy *retry.Policy,
	cfg config.Config,
	clk clock.Clock,
) *api.WebhookHandler {
	return api.NewWebhookHandler(authenticator, deduplicator, repo, retryPolicy, cfg.Ingest, clk)
}
