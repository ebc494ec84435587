package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/roster/internal/core"
)

// AccessLog is an append-only core.AccessLog over the access_log table.
type AccessLog struct {
	pool *pgxpool.Pool
}

func NewAccessLog(pool *pgxpool.Pool) *AccessLog {
	return &AccessLog{pool: pool}
}

func (l *AccessLog) Append(ctx context.Context, e core.AccessLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var (
		nombre, tipo, puerta, ubicacion pgtype.Text
		cuota                           pgtype.Bool
	)
	if s := e.Snapshot; s != nil {
		nombre = pgtype.Text{String: s.DisplayName, Valid: true}
		tipo = pgtype.Text{String: s.Category, Valid: true}
		puerta = pgtype.Text{String: s.AccessZone, Valid: true}
		ubicacion = toPgText(s.Location)
		cuota = pgtype.Bool{Bool: s.DuesStatus, Valid: true}
	}

	_, err := l.pool.Exec(ctx, `
INSERT INTO access_log (
  id, ts, dni_buscado, encontrado,
  nombre, tipo_ingreso, puerta_acceso, ubicacion, cuota, client_ip
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		pgtype.UUID{Bytes: e.ID, Valid: true}, e.Timestamp, e.QueriedKey, e.Found,
		nombre, tipo, puerta, ubicacion, cuota, toPgText(e.ClientIP),
	)
	if err != nil {
		return fmt.Errorf("append access log: %w", err)
	}
	return nil
}

func (l *AccessLog) Query(ctx context.Context, from, to time.Time) ([]core.AccessLogEntry, error) {
	rows, err := l.pool.Query(ctx, `
SELECT id, ts, dni_buscado, encontrado,
       nombre, tipo_ingreso, puerta_acceso, ubicacion, cuota, client_ip
FROM access_log
WHERE ts >= $1 AND ts < $2
ORDER BY ts DESC, seq DESC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query access log: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanAccessLogRow)
	if err != nil {
		return nil, fmt.Errorf("query access log: %w", err)
	}
	return entries, nil
}

func scanAccessLogRow(row pgx.CollectableRow) (core.AccessLogEntry, error) {
	var (
		e                               core.AccessLogEntry
		id                              pgtype.UUID
		nombre, tipo, puerta, ubicacion pgtype.Text
		cuota                           pgtype.Bool
		clientIP                        pgtype.Text
	)
	if err := row.Scan(&id, &e.Timestamp, &e.QueriedKey, &e.Found,
		&nombre, &tipo, &puerta, &ubicacion, &cuota, &clientIP); err != nil {
		return core.AccessLogEntry{}, err
	}

	e.ID = uuid.UUID(id.Bytes)
	e.Timestamp = e.Timestamp.UTC()
	e.ClientIP = clientIP.String
	if e.Found {
		e.Snapshot = &core.PersonSnapshot{
			DisplayName: nombre.String,
			Category:    tipo.String,
			AccessZone:  puerta.String,
			Location:    ubicacion.String,
			DuesStatus:  cuota.Bool,
		}
	}
	return e, nil
}
