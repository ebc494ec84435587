package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/roster/internal/core"
)

// AccessLog is an append-only core.AccessLog backed by the access_log table.
type AccessLog struct {
	db     *sql.DB
	writer *Worker
}

func NewAccessLog(db *sql.DB, writer *Worker) *AccessLog {
	return &AccessLog{db: db, writer: writer}
}

func (l *AccessLog) Append(ctx context.Context, e core.AccessLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	// Snapshot columns stay NULL for misses.
	var nombre, tipo, puerta, ubicacion, cuota any
	if s := e.Snapshot; s != nil {
		nombre = s.DisplayName
		tipo = s.Category
		puerta = s.AccessZone
		ubicacion = nullIfEmpty(s.Location)
		cuota = boolInt(s.DuesStatus)
	}

	return l.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_log(
  id, ts_ms, dni_buscado, encontrado,
  nombre, tipo_ingreso, puerta_acceso, ubicacion, cuota, client_ip
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			e.ID.String(), e.Timestamp.UTC().UnixMilli(), e.QueriedKey, boolInt(e.Found),
			nombre, tipo, puerta, ubicacion, cuota, nullIfEmpty(e.ClientIP),
		); err != nil {
			return fmt.Errorf("Append insert: %w", err)
		}
		return nil
	})
}

func (l *AccessLog) Query(ctx context.Context, from, to time.Time) ([]core.AccessLogEntry, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT id, ts_ms, dni_buscado, encontrado,
       nombre, tipo_ingreso, puerta_acceso, ubicacion, cuota, client_ip
FROM access_log
WHERE ts_ms >= ? AND ts_ms < ?
ORDER BY ts_ms DESC, rowid DESC;
`, from.UTC().UnixMilli(), to.UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("Query access_log: %w", err)
	}
	defer rows.Close()

	var out []core.AccessLogEntry
	for rows.Next() {
		var (
			e                    core.AccessLogEntry
			id                   string
			tsMs                 int64
			found                int
			nombre, tipo, puerta sql.NullString
			ubicacion, clientIP  sql.NullString
			cuota                sql.NullInt64
		)
		if err := rows.Scan(&id, &tsMs, &e.QueriedKey, &found,
			&nombre, &tipo, &puerta, &ubicacion, &cuota, &clientIP); err != nil {
			return nil, fmt.Errorf("Query scan: %w", err)
		}

		e.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("Query id %q: %w", id, err)
		}
		e.Timestamp = time.UnixMilli(tsMs).UTC()
		e.Found = found == 1
		e.ClientIP = clientIP.String
		if e.Found {
			e.Snapshot = &core.PersonSnapshot{
				DisplayName: nombre.String,
				Category:    tipo.String,
				AccessZone:  puerta.String,
				Location:    ubicacion.String,
				DuesStatus:  cuota.Int64 == 1,
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
