package pgstore

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

// MigrationsTable is the goose version table used by Migrate. It is kept
// apart from the application's own migrations table.
const MigrationsTable = "notifications_migrations"

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate creates or upgrades the notifications table.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	return pg.MigrateFS(ctx, pool, migrations, "migrations", MigrationsTable, log)
}

// DB is the subset of pgxpool.Pool and pgx.Tx used by Storage.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Storage is a notifications.Storage backed by PostgreSQL.
type Storage struct {
	db  DB
	now func() time.Time
}

var _ notifications.Storage = (*Storage)(nil)

// New creates a storage on db. Run Migrate first.
func New(db DB) *Storage {
	return &Storage{db: db, now: time.Now}
}

const columns = `id, notifiable_type, notifiable_key, type, data, read_at, created_at`

func (s *Storage) Create(ctx context.Context, rec notifications.Record) (*notifications.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO notifications (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+columns,
		rec.ID, rec.NotifiableType, rec.NotifiableKey, rec.Type, rec.Data, rec.ReadAt, rec.CreatedAt,
	)
	out, err := scanRecord(row)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: duplicate id %q", notifications.ErrRecordNotStored, rec.ID)
		}
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return &out, nil
}

func (s *Storage) Get(ctx context.Context, id string) (*notifications.Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, `SELECT `+columns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, notifications.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &rec, nil
}

func (s *Storage) MarkRead(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET read_at = COALESCE(read_at, $2) WHERE id = $1`, id, s.now())
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Storage) MarkAllRead(ctx context.Context, notifiableType, notifiableKey string) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET read_at = $3
		WHERE notifiable_type = $1 AND notifiable_key = $2 AND read_at IS NULL`,
		notifiableType, notifiableKey, s.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Storage) FindUnread(ctx context.Context, notifiableType, notifiableKey string) ([]notifications.Record, error) {
	return s.find(ctx, `read_at IS NULL`, notifiableType, notifiableKey)
}

func (s *Storage) FindRead(ctx context.Context, notifiableType, notifiableKey string) ([]notifications.Record, error) {
	return s.find(ctx, `read_at IS NOT NULL`, notifiableType, notifiableKey)
}

func (s *Storage) CountUnread(ctx context.Context, notifiableType, notifiableKey string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM notifications
		WHERE notifiable_type = $1 AND notifiable_key = $2 AND read_at IS NULL`,
		notifiableType, notifiableKey,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (s *Storage) DeleteFor(ctx context.Context, notifiableType, notifiableKey string) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE notifiable_type = $1 AND notifiable_key = $2`, notifiableType, notifiableKey)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Prune deletes read notifications older than age and returns how many
// were removed.
func (s *Storage) Prune(ctx context.Context, age time.Duration) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE read_at IS NOT NULL AND read_at < $1`, s.now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Storage) find(ctx context.Context, filter, notifiableType, notifiableKey string) ([]notifications.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+columns+` FROM notifications
		WHERE notifiable_type = $1 AND notifiable_key = $2 AND `+filter+`
		ORDER BY created_at DESC, id DESC`,
		notifiableType, notifiableKey,
	)
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.Record, error) {
		return scanRecord(row)
	})
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	return recs, nil
}

func scanRecord(row pgx.Row) (notifications.Record, error) {
	var rec notifications.Record
	if err := row.Scan(&rec.ID, &rec.NotifiableType, &rec.NotifiableKey, &rec.Type, &rec.Data, &rec.ReadAt, &rec.CreatedAt); err != nil {
		return rec, err
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	return rec, nil
}
