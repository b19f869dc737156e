package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/profilekeeper/internal/dbx"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/server/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresCodec keeps the collection as a single JSONB document in the
// record_collections table, one row per collection name. It is still a
// whole-collection codec: every Save rewrites the document.
type PostgresCodec struct {
	db     *sql.DB
	name   string
	logger logging.Logger
}

func NewPostgresCodec(db *sql.DB, name string, logger logging.Logger) *PostgresCodec {
	return &PostgresCodec{db: db, name: name, logger: logger.With("module", "postgres_codec", "collection", name)}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// OpenPostgres connects through the pgx stdlib driver, checks the
// connection and brings the schema up to date.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (c *PostgresCodec) Load(ctx context.Context) ([]Record, error) {
	query := `SELECT body FROM record_collections WHERE name = $1`

	var body []byte
	err := c.db.QueryRowContext(ctx, query, c.name).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	records, err := decodeCollection(body)
	if err != nil {
		c.logger.Warn(ctx, "stored collection is corrupt, starting from an empty collection",
			"size", len(body), "error", err.Error())
		return []Record{}, nil
	}
	return records, nil
}

// Save locks the collection row (if any) and rewrites it in one transaction,
// bumping its revision.
func (c *PostgresCodec) Save(ctx context.Context, records []Record) error {
	data, err := encodeCollection(records)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var revision int64
		err := tx.QueryRowContext(ctx,
			`SELECT revision FROM record_collections WHERE name = $1 FOR UPDATE`, c.name).Scan(&revision)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				`INSERT INTO record_collections (name, body, revision) VALUES ($1, $2, 1)`,
				c.name, string(data))
		case err == nil:
			_, err = tx.ExecContext(ctx,
				`UPDATE record_collections SET body = $2, revision = $3, updated_at = now() WHERE name = $1`,
				c.name, string(data), revision+1)
		}

		if err != nil {
			return fmt.Errorf("error performing sql request: %w", err)
		}
		return nil
	})
}
