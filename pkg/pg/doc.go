// Package pg connects to PostgreSQL through pgx/v5 and applies goose
// migrations.
//
// Connect builds a *pgxpool.Pool from Config and retries until the server
// answers a ping. Migrate applies a migrations directory from disk, while
// MigrateFS applies migrations embedded in a Go package, which is how the
// notification store ships its schema:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pgstore.Migrate(ctx, pool, slog.Default()); err != nil {
//		return err
//	}
//
// Healthcheck returns a func(context.Context) error suitable for readiness
// probes. IsNotFoundError, IsDuplicateKeyError and friends classify errors
// coming back from pgx.
package pg
