package storageutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wso2/copilotsse/pkg/config"
	"github.com/wso2/copilotsse/pkg/storage"
	"github.com/wso2/copilotsse/pkg/storage/inmemory"
	"github.com/wso2/copilotsse/pkg/storage/postgres"
	"github.com/wso2/copilotsse/pkg/storage/sqlite"
)

type NewDriverOpts struct {
	// DriverType is one of config.StorageDrivers(). Empty picks sqlite when
	// SQLitePath is set, otherwise in-memory.
	DriverType  string
	SQLitePath  string
	PostgresDSN string
	Logger      *slog.Logger
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	driverType := o.DriverType
	if driverType == "" {
		driverType = config.DriverInMemory
		if o.SQLitePath != "" {
			driverType = config.DriverSQLite
		}
	}

	switch driverType {
	case config.DriverInMemory:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case config.DriverSQLite:
		if o.SQLitePath == "" {
			return nil, fmt.Errorf("storage driver %q requires a sqlite path", driverType)
		}
		driver, err := sqlite.NewSQLiteDriver(ctx, o.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		logger.Info("using SQLite storage", "path", o.SQLitePath)
		return driver, nil

	case config.DriverPostgres:
		if o.PostgresDSN == "" {
			return nil, fmt.Errorf("storage driver %q requires a postgres DSN", driverType)
		}
		driver, err := postgres.NewDriver(ctx, o.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driverType)
	}
}
