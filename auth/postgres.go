package auth

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

// PostgresRepository stores keys in the api_keys table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const keyColumns = `id, key_hash, name, tier, created_at, rate_limit_per_minute,
	monthly_minutes, minutes_used, features, active`

func (r *PostgresRepository) Create(ctx context.Context, key *APIKey) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO api_keys (`+keyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		key.ID, key.Hash, key.Name, string(key.Tier), key.CreatedAt, key.RateLimitPerMinute,
		key.MonthlyMinutes, key.MinutesUsed, key.Features, key.Active)
	if err != nil {
		return errors.Wrap(err, "insert api key")
	}
	return nil
}

func (r *PostgresRepository) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	return r.get(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE key_hash = $1`, hash)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*APIKey, error) {
	return r.get(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE id = $1`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg string) (*APIKey, error) {
	var (
		key  APIKey
		tier string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&key.ID, &key.Hash, &key.Name, &tier, &key.CreatedAt, &key.RateLimitPerMinute,
		&key.MonthlyMinutes, &key.MinutesUsed, &key.Features, &key.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select api key")
	}
	key.Tier = Tier(tier)
	return &key, nil
}

func (r *PostgresRepository) AddUsage(ctx context.Context, id string, minutes float64) error {
	return r.exec(ctx, `UPDATE api_keys SET minutes_used = minutes_used + $2 WHERE id = $1`, id, minutes)
}

func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE api_keys SET active = FALSE WHERE id = $1`, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "update api key")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
