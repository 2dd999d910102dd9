package health

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mjs/cacophony-api/pkg/storage"
)

// DatabaseChecker returns a health check function for PostgreSQL
func DatabaseChecker(pool *pgxpool.Pool) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}
}

// StorageChecker returns a health check function for the object store.
// A clean not-found result still proves the store is reachable.
func StorageChecker(store storage.Storage) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := store.Exists(ctx, "healthcheck")
		return err
	}
}
