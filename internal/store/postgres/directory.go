package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/roster/internal/core"
)

// ingestLockKey is the session advisory lock shared by every process that
// writes the directory.
const ingestLockKey int64 = 0x526f73746572 // "Roster"

// Directory is a core.Directory and core.IngestLocker over the personas
// table.
type Directory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

const (
	personaColumns = `dni, nombre, tipo_ingreso, puerta_acceso, ubicacion, cuota, updated_at`

	upsertPersona = `
INSERT INTO personas (` + personaColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (dni) DO UPDATE SET
  nombre        = EXCLUDED.nombre,
  tipo_ingreso  = EXCLUDED.tipo_ingreso,
  puerta_acceso = EXCLUDED.puerta_acceso,
  ubicacion     = EXCLUDED.ubicacion,
  cuota         = EXCLUDED.cuota,
  updated_at    = EXCLUDED.updated_at`
)

func (d *Directory) Get(ctx context.Context, key string) (core.PersonRecord, bool, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+personaColumns+` FROM personas WHERE dni = $1`, key)
	if err != nil {
		return core.PersonRecord{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanPersona)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.PersonRecord{}, false, nil
	}
	if err != nil {
		return core.PersonRecord{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	return rec, true, nil
}

func (d *Directory) List(ctx context.Context) ([]core.PersonRecord, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+personaColumns+` FROM personas ORDER BY dni COLLATE "C"`)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanPersona)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	return recs, nil
}

func (d *Directory) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM personas`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count personas: %w", err)
	}
	return n, nil
}

// UpsertMany sends recs as one batch inside one transaction.
func (d *Directory) UpsertMany(ctx context.Context, recs []core.PersonRecord) error {
	if len(recs) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range recs {
			updated := r.UpdatedAt
			if updated.IsZero() {
				updated = time.Now().UTC()
			}
			batch.Queue(upsertPersona,
				r.Key, r.DisplayName, r.Category, r.AccessZone,
				toPgText(r.Location), r.DuesStatus, updated,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for _, r := range recs {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("upsert %s: %w", r.Key, err)
			}
		}
		return br.Close()
	})
}

func (d *Directory) DeleteKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := d.pool.Exec(ctx, `DELETE FROM personas WHERE dni = ANY($1)`, keys); err != nil {
		return fmt.Errorf("delete personas: %w", err)
	}
	return nil
}

// LockIngest holds a pooled connection for the duration of the ingest and
// takes the session advisory lock on it.
func (d *Directory) LockIngest(ctx context.Context) (func(), error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", ingestLockKey); err != nil {
		// A cancelled wait leaves the connection in an unknown state.
		conn.Hijack().Close(context.Background())
		return nil, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", ingestLockKey); err != nil {
			// Closing the session drops the lock.
			conn.Hijack().Close(ctx)
			return
		}
		conn.Release()
	}, nil
}

func scanPersona(row pgx.CollectableRow) (core.PersonRecord, error) {
	var (
		rec      core.PersonRecord
		location pgtype.Text
	)
	err := row.Scan(&rec.Key, &rec.DisplayName, &rec.Category, &rec.AccessZone, &location, &rec.DuesStatus, &rec.UpdatedAt)
	if err != nil {
		return core.PersonRecord{}, err
	}
	rec.Location = location.String
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}
