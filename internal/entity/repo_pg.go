package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/matricare/matricare/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type pgRepo struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPGRepository returns a Repository backed by the entities table.
func NewPGRepository(pool *pgxpool.Pool, log zerolog.Logger) Repository {
	return &pgRepo{pool: pool, log: log}
}

func (r *pgRepo) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const entCols = `id, owner_id, type, subtype, data, created_at, updated_at`

// scanRow decodes one entities row. A payload that fails to parse is logged
// and surfaced as an empty payload so that one corrupted row cannot take a
// whole listing down.
func (r *pgRepo) scanRow(row pgx.Row) (*Entity, error) {
	var (
		e   Entity
		raw []byte
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Type, &e.Subtype, &raw, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &e.Payload); err != nil || e.Payload == nil {
		if err != nil {
			r.log.Warn().Err(err).Str("entity_id", e.ID.String()).Str("type", e.Type).
				Msg("corrupt entity payload, treating as empty")
		}
		e.Payload = map[string]any{}
	}
	return &e, nil
}

func (r *pgRepo) collect(rows pgx.Rows) ([]*Entity, error) {
	defer rows.Close()
	items := []*Entity{}
	for rows.Next() {
		e, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *pgRepo) Insert(ctx context.Context, e *Entity) error {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO entities (id, owner_id, type, subtype, data, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.OwnerID, e.Type, e.Subtype, raw, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *pgRepo) Get(ctx context.Context, id uuid.UUID, typ, ownerID string) (*Entity, error) {
	sql := `SELECT ` + entCols + ` FROM entities WHERE id = $1 AND type = $2`
	args := []interface{}{id, typ}
	if ownerID != "" {
		sql += ` AND owner_id = $3`
		args = append(args, ownerID)
	}
	e, err := r.scanRow(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *pgRepo) List(ctx context.Context, typ string, f Filter) ([]*Entity, error) {
	sql := `SELECT ` + entCols + ` FROM entities WHERE type = $1`
	args := []interface{}{typ}
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		sql += fmt.Sprintf(` AND owner_id = $%d`, len(args))
	}
	if f.Subtype != "" {
		args = append(args, f.Subtype)
		sql += fmt.Sprintf(` AND subtype = $%d`, len(args))
	}
	dir := "ASC"
	if f.Order == OrderDesc {
		dir = "DESC"
	}
	sql += ` ORDER BY created_at ` + dir
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		sql += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *pgRepo) MergePayload(ctx context.Context, id uuid.UUID, typ, ownerID string, data map[string]any, updatedAt time.Time) (*Entity, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	sql := `UPDATE entities SET data = data || $2::jsonb, updated_at = $3
		WHERE id = $1 AND type = $4`
	args := []interface{}{id, raw, updatedAt, typ}
	if ownerID != "" {
		args = append(args, ownerID)
		sql += fmt.Sprintf(` AND owner_id = $%d`, len(args))
	}
	sql += ` RETURNING ` + entCols
	e, err := r.scanRow(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *pgRepo) Delete(ctx context.Context, id uuid.UUID, typ, ownerID string) (bool, error) {
	sql := `DELETE FROM entities WHERE id = $1 AND type = $2`
	args := []interface{}{id, typ}
	if ownerID != "" {
		sql += ` AND owner_id = $3`
		args = append(args, ownerID)
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgRepo) GetBySubtype(ctx context.Context, typ, ownerID, subtype string) (*Entity, error) {
	e, err := r.scanRow(r.conn(ctx).QueryRow(ctx, `
		SELECT `+entCols+` FROM entities
		WHERE type = $1 AND owner_id = $2 AND subtype = $3`,
		typ, ownerID, subtype))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// UpsertBySubtype relies on the partial unique index on (owner_id, type,
// subtype): jsonb || gives the same shallow-merge semantics as MergePayload,
// but as a single conditional write.
func (r *pgRepo) UpsertBySubtype(ctx context.Context, typ, ownerID, subtype string, data map[string]any, now time.Time) (*Entity, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	e, err := r.scanRow(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO entities (id, owner_id, type, subtype, data, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
		ON CONFLICT (owner_id, type, subtype) WHERE owner_id IS NOT NULL AND subtype IS NOT NULL
		DO UPDATE SET data = entities.data || EXCLUDED.data, updated_at = EXCLUDED.updated_at
		RETURNING `+entCols,
		uuid.New(), ownerID, typ, subtype, raw, now))
	return e, err
}

func (r *pgRepo) DeleteByTypes(ctx context.Context, ownerID string, types []string) (int64, error) {
	if len(types) == 0 {
		return 0, nil
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM entities WHERE owner_id = $1 AND type = ANY($2)`,
		ownerID, types)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *pgRepo) ListByField(ctx context.Context, typ, ownerID, field, value string, limit int) ([]*Entity, error) {
	sql := `SELECT ` + entCols + ` FROM entities WHERE type = $1 AND data->>$2 = $3`
	args := []interface{}{typ, field, value}
	if ownerID != "" {
		args = append(args, ownerID)
		sql += fmt.Sprintf(` AND owner_id = $%d`, len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}
