package trip

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/rendezvous/internal/models"
)

// PostgresStore implements RemoteStore. Each trip row carries the full
// JSON snapshot; saves upsert so successive mirrors supersede each other.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Save(ctx context.Context, t *models.Trip) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO trips(id, snapshot, updated_at) VALUES($1,$2,$3)
		 ON CONFLICT (id) DO UPDATE SET snapshot=$2, updated_at=$3`,
		t.TripID, b, time.Now())
	return err
}

func (p *PostgresStore) List(ctx context.Context) ([]*models.Trip, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT snapshot FROM trips ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Trip
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		var t models.Trip
		if err := json.Unmarshal(b, &t); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Delete(ctx context.Context, tripID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM trips WHERE id=$1`, tripID)
	return err
}
