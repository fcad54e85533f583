package repository

import (
	"context"
	"database/sql"
	"fmt"

	"roadsense-data/internal/domain"
)

// PostgresReadingsRepo ReadingsRepository 的 PostgreSQL 实现
type PostgresReadingsRepo struct {
	db *sql.DB
}

// NewPostgresReadingsRepo 创建 Readings Repository
func NewPostgresReadingsRepo(db *sql.DB) *PostgresReadingsRepo {
	return &PostgresReadingsRepo{db: db}
}

// 确保实现了接口
var _ ReadingsRepository = (*PostgresReadingsRepo)(nil)

const readingColumns = `id, road_state, user_id, x, y, z, latitude, longitude, timestamp`

func scanReading(row interface{ Scan(dest ...any) error }) (domain.StoredRecord, error) {
	var rec domain.StoredRecord
	err := row.Scan(
		&rec.ID,
		&rec.RoadState,
		&rec.UserID,
		&rec.X,
		&rec.Y,
		&rec.Z,
		&rec.Latitude,
		&rec.Longitude,
		&rec.Timestamp,
	)
	return rec, err
}

// InsertBatch 批量插入：每行独立事务，fail-fast
func (r *PostgresReadingsRepo) InsertBatch(ctx context.Context, records []domain.ProcessedRecord) ([]domain.StoredRecord, error) {
	stored := make([]domain.StoredRecord, 0, len(records))
	for i := range records {
		rec, err := r.insertOne(ctx, &records[i])
		if err != nil {
			// 已提交的行保持提交（每行一个事务），调用方据此上报部分成功
			return stored, fmt.Errorf("failed to insert record %d of %d: %w", i+1, len(records), err)
		}
		stored = append(stored, rec)
	}
	return stored, nil
}

// insertOne 单行插入，自带事务；任何出错路径都回滚
func (r *PostgresReadingsRepo) insertOne(ctx context.Context, record *domain.ProcessedRecord) (domain.StoredRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoredRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	flat := record.Flatten()
	query := `
		INSERT INTO processed_agent_data
			(road_state, user_id, x, y, z, latitude, longitude, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		flat.RoadState,
		flat.UserID,
		flat.X,
		flat.Y,
		flat.Z,
		flat.Latitude,
		flat.Longitude,
		flat.Timestamp,
	).Scan(&flat.ID)
	if err != nil {
		return domain.StoredRecord{}, fmt.Errorf("insert failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.StoredRecord{}, fmt.Errorf("commit failed: %w", err)
	}
	return flat, nil
}

// GetByID 按 id 查询
func (r *PostgresReadingsRepo) GetByID(ctx context.Context, id int64) (domain.StoredRecord, error) {
	query := `SELECT ` + readingColumns + ` FROM processed_agent_data WHERE id = $1`
	rec, err := scanReading(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.StoredRecord{}, ErrNotFound
		}
		return domain.StoredRecord{}, fmt.Errorf("failed to get record %d: %w", id, err)
	}
	return rec, nil
}

// ListAll 返回全部行
func (r *PostgresReadingsRepo) ListAll(ctx context.Context) ([]domain.StoredRecord, error) {
	query := `SELECT ` + readingColumns + ` FROM processed_agent_data`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.StoredRecord, 0)
	for rows.Next() {
		rec, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// UpdateByID 覆盖全部扁平字段，返回更新后的行
func (r *PostgresReadingsRepo) UpdateByID(ctx context.Context, id int64, record domain.ProcessedRecord) (domain.StoredRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoredRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	flat := record.Flatten()
	query := `
		UPDATE processed_agent_data
		SET road_state = $1, user_id = $2, x = $3, y = $4, z = $5,
		    latitude = $6, longitude = $7, timestamp = $8
		WHERE id = $9
		RETURNING ` + readingColumns
	rec, err := scanReading(tx.QueryRowContext(ctx, query,
		flat.RoadState,
		flat.UserID,
		flat.X,
		flat.Y,
		flat.Z,
		flat.Latitude,
		flat.Longitude,
		flat.Timestamp,
		id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.StoredRecord{}, ErrNotFound
		}
		return domain.StoredRecord{}, fmt.Errorf("failed to update record %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.StoredRecord{}, fmt.Errorf("commit failed: %w", err)
	}
	return rec, nil
}

// DeleteByID 删除并返回删除前的行内容
func (r *PostgresReadingsRepo) DeleteByID(ctx context.Context, id int64) (domain.StoredRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoredRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `DELETE FROM processed_agent_data WHERE id = $1 RETURNING ` + readingColumns
	rec, err := scanReading(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.StoredRecord{}, ErrNotFound
		}
		return domain.StoredRecord{}, fmt.Errorf("failed to delete record %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.StoredRecord{}, fmt.Errorf("commit failed: %w", err)
	}
	return rec, nil
}
