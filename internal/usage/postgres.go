package usage

import (
	"context"
	"database/sql"
	"os"

	_ "github.com/lib/pq"
)

type postgresRecorder struct {
	db *sql.DB
}

func (p *postgresRecorder) Close() error {
	return p.db.Close()
}

// NewPostgresRecorder connects to DATABASE_URL. Run EnsureMigrations first.
func NewPostgresRecorder() (Recorder, error) {
	db, err := sql.Open("postgres", getDBUrl())
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &postgresRecorder{db: db}, nil
}

func (p *postgresRecorder) Record(ctx context.Context, rec Record) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO usage_records (call_id, provider, model, operation, tokens, failed, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (call_id) DO UPDATE SET
	tokens = EXCLUDED.tokens,
	failed = EXCLUDED.failed`,
		rec.CallID, rec.Provider, rec.Model, rec.Operation, rec.Tokens, rec.Failed, rec.CreatedAt)
	return err
}

func (p *postgresRecorder) ListRecords(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := p.db.QueryContext(ctx,
		"SELECT call_id, provider, model, operation, tokens, failed, created_at "+
			"FROM usage_records ORDER BY created_at DESC LIMIT $1",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.CallID, &rec.Provider, &rec.Model, &rec.Operation, &rec.Tokens, &rec.Failed, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func getDBUrl() string {
	return os.Getenv("DATABASE_URL")
}
