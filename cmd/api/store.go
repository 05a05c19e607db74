package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"agency-chat/internal/config"
	"agency-chat/internal/db"
	"agency-chat/internal/store"
)

// openStore elige el backend del gateway segun STORE_DRIVER y aplica las migraciones.
// La funcion devuelta libera la conexion.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Gateway, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := db.RunMigrations(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("db migrate: %w", err)
		}
		return store.NewPostgresGateway(pool, store.ChatSchema), pool.Close, nil

	case config.DriverSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open: %w", err)
		}
		if err := db.RunSQLiteMigrations(ctx, conn, logger); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("sqlite migrate: %w", err)
		}
		return store.NewSQLiteGateway(conn, store.ChatSchema), func() { _ = conn.Close() }, nil

	case config.DriverMemory:
		logger.Warn("using in-memory chat store, data is lost on restart")
		return store.NewMemoryGateway(store.ChatSchema), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
