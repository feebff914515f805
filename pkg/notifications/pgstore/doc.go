// Package pgstore stores database channel notifications in PostgreSQL.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err := pgstore.Migrate(ctx, pool, log); err != nil { ... }
//	storage := pgstore.New(pool)
//
// Migrate applies the embedded goose migration that creates the
// notifications table. Storage accepts a pool or a transaction.
package pgstore
