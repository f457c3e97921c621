package bootstrap

import (
	"webhook-forwarder/cmd/bootstrap/components"

	"go.uber.org/fx"
)

var Module = fx.Options(
	ConfigModule,
	DBModule,
	LoggerModule,
	components.CoreModule,
	components.RepositoryModule,
	components.HandlerModule,
)
