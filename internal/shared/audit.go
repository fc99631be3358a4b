package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one row in audit_logs. CompanyID scopes the entry to a tenant;
// every lifecycle event (post, void, reverse, depreciation run) records one.
type AuditLog struct {
	CompanyID int64
	ActorID   int64
	Action    string
	Entity    string
	EntityID  string
	Meta      map[string]any
	At        time.Time
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry. Meta is stored as NULL when empty so the
// jsonb column stays queryable without empty-object noise.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	var metaJSON []byte
	if len(log.Meta) > 0 {
		var err error
		metaJSON, err = json.Marshal(log.Meta)
		if err != nil {
			return err
		}
	}
	if log.At.IsZero() {
		log.At = time.Now()
	}
	_, err := l.pool.Exec(ctx, `
		INSERT INTO audit_logs (company_id, actor_id, action, entity, entity_id, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.CompanyID, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	return err
}
