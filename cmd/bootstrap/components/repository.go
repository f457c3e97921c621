package components

import (
	"webhook-forwarder/internal/infra/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var RepositoryModule = fx.Module("repository",
	fx.Provide(
		NewEventRepository,
	),
)

func NewEventRepository(pool *pgxpool.Pool) *repository.EventRepository {
	return repository.NewEventRepository(pool)
}
