package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/roster/internal/core"
)

// maxDeleteParams keeps DELETE ... IN (...) below SQLite's variable limit.
const maxDeleteParams = 500

// Directory is a core.Directory backed by the personas table.
type Directory struct {
	db     *sql.DB
	writer *Worker
}

func NewDirectory(db *sql.DB, writer *Worker) *Directory {
	return &Directory{db: db, writer: writer}
}

const personaColumns = `dni, nombre, tipo_ingreso, puerta_acceso, ubicacion, cuota, updated_at_ms`

func (d *Directory) Get(ctx context.Context, key string) (core.PersonRecord, bool, error) {
	row := d.db.QueryRowContext(ctx, `
SELECT `+personaColumns+`
FROM personas
WHERE dni = ?;
`, key)

	rec, err := scanPersona(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PersonRecord{}, false, nil
	}
	if err != nil {
		return core.PersonRecord{}, false, fmt.Errorf("Get %s: %w", key, err)
	}
	return rec, true, nil
}

func (d *Directory) List(ctx context.Context) ([]core.PersonRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT `+personaColumns+`
FROM personas
ORDER BY dni;
`)
	if err != nil {
		return nil, fmt.Errorf("List query: %w", err)
	}
	defer rows.Close()

	var out []core.PersonRecord
	for rows.Next() {
		rec, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("List scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (d *Directory) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM personas;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

// UpsertMany writes recs in one transaction.
func (d *Directory) UpsertMany(ctx context.Context, recs []core.PersonRecord) error {
	if len(recs) == 0 {
		return nil
	}

	return d.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO personas(`+personaColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(dni) DO UPDATE SET
  nombre        = excluded.nombre,
  tipo_ingreso  = excluded.tipo_ingreso,
  puerta_acceso = excluded.puerta_acceso,
  ubicacion     = excluded.ubicacion,
  cuota         = excluded.cuota,
  updated_at_ms = excluded.updated_at_ms;
`)
		if err != nil {
			return fmt.Errorf("UpsertMany prepare: %w", err)
		}
		defer stmt.Close()

		for _, r := range recs {
			updated := r.UpdatedAt
			if updated.IsZero() {
				updated = time.Now()
			}
			if _, err := stmt.ExecContext(ctx,
				r.Key, r.DisplayName, r.Category, r.AccessZone,
				nullIfEmpty(r.Location), boolInt(r.DuesStatus), updated.UTC().UnixMilli(),
			); err != nil {
				return fmt.Errorf("UpsertMany %s: %w", r.Key, err)
			}
		}
		return nil
	})
}

// DeleteKeys removes keys in one transaction.
func (d *Directory) DeleteKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	return d.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for start := 0; start < len(keys); start += maxDeleteParams {
			batch := keys[start:min(start+maxDeleteParams, len(keys))]

			args := make([]any, len(batch))
			for i, k := range batch {
				args[i] = k
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")

			if _, err := tx.ExecContext(ctx,
				`DELETE FROM personas WHERE dni IN (`+placeholders+`);`, args...,
			); err != nil {
				return fmt.Errorf("DeleteKeys: %w", err)
			}
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPersona(s scanner) (core.PersonRecord, error) {
	var (
		rec       core.PersonRecord
		location  sql.NullString
		cuota     int
		updatedMs int64
	)
	if err := s.Scan(&rec.Key, &rec.DisplayName, &rec.Category, &rec.AccessZone, &location, &cuota, &updatedMs); err != nil {
		return core.PersonRecord{}, err
	}
	rec.Location = location.String
	rec.DuesStatus = cuota == 1
	rec.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
