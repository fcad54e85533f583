package repository

import (
	"context"
	"errors"

	"roadsense-data/internal/domain"
)

// ErrNotFound 指定 id 的行不存在（区别于底层存储错误）
var ErrNotFound = errors.New("record not found")

// ReadingsRepository 路况读数 Repository 接口
// 使用强类型领域模型；Repository 层只负责数据访问
type ReadingsRepository interface {
	// InsertBatch 批量插入。每行一个独立事务（行内失败只回滚该行）；
	// 遇到第一个失败即中止后续行，已提交的行保持提交并随错误一并返回，
	// 由调用方决定如何上报部分成功。
	InsertBatch(ctx context.Context, records []domain.ProcessedRecord) ([]domain.StoredRecord, error)

	// GetByID 按 id 查询；不存在返回 ErrNotFound
	GetByID(ctx context.Context, id int64) (domain.StoredRecord, error)

	// ListAll 返回全部行（存储顺序）
	ListAll(ctx context.Context) ([]domain.StoredRecord, error)

	// UpdateByID 覆盖指定行的全部扁平字段并返回更新后的行；
	// 不存在返回 ErrNotFound
	UpdateByID(ctx context.Context, id int64, record domain.ProcessedRecord) (domain.StoredRecord, error)

	// DeleteByID 删除指定行并返回删除前的内容；不存在返回 ErrNotFound
	DeleteByID(ctx context.Context, id int64) (domain.StoredRecord, error)
}
