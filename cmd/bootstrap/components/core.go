// Package components wires the ingestion pipeline's concrete
// implementations into fx, the way the teacher's RepositoryModule/
// UseCaseModule/HandlerModule chain providers together.
package components

import (
	"webhook-forwarder/internal/core/auth"
	"webhook-forwarder/internal/core/dedup"
	"webhook-forwarder/internal/core/retry"
	"webhook-forwarder/internal/infra/repository"
	"webhook-forwarder/internal/pkg/clock"
	"webhook-forwarder/internal/pkg/config"

	"go.uber.org/fx"
)

var CoreModule = fx.Module("core",
	fx.Provide(
		clock.NewRealClock,
		NewAuthenticator,
		NewDeduplicator,
		NewRetryPolicy,
	),
)

func NewAuthenticator(cfg config.Config) *auth.Authenticator {
	return auth.New(cfg.Auth, nil)
}

func NewDeduplicator(cfg config.Config, repo *repository.EventRepository, clk clock.Clock) *dedup.Deduplicator {
	return dedup.New(repo, cfg.Ingest.DedupCacheTTL, cfg.Ingest.DedupCacheSoftLimit, clk)
}

func NewRetryPolicy(cfg config.Config) *retry.Policy {
	ingest := cfg.Ingest
	return retry.New(ingest.RetryMaxAttempts, ingest.RetryInitialDelay, ingest.RetryMaxDelay, ingest.RetryMultiplier)
}
