package service

import (
	"context"
	"encoding/json"
	"time"

	"roadsense-data/internal/domain"
	"roadsense-data/internal/repository"
	"roadsense-data/internal/store"

	"go.uber.org/zap"
)

// Broadcaster 订阅表的广播面（registry.Registry 实现）
type Broadcaster interface {
	Broadcast(userID int64, payload []byte)
}

// IngestService 路况读数的编排层：校验 → 落库 → 推送/缓存，
// 以及 CRUD 透传
type IngestService interface {
	// Ingest 处理一批 ProcessedRecord。任一条校验失败则整批拒绝
	// （在任何落库动作之前）；落库中途失败时返回已提交的行和错误。
	// 推送与缓存是 best-effort，永不使 Ingest 失败。
	Ingest(ctx context.Context, records []domain.ProcessedRecord) ([]domain.StoredRecord, error)

	Get(ctx context.Context, id int64) (domain.StoredRecord, error)
	List(ctx context.Context) ([]domain.StoredRecord, error)
	Update(ctx context.Context, id int64, record domain.ProcessedRecord) (domain.StoredRecord, error)
	Delete(ctx context.Context, id int64) (domain.StoredRecord, error)

	// Latest 返回用户最近一条落库行（Redis 缓存）；
	// 未命中返回 repository.ErrNotFound
	Latest(ctx context.Context, userID int64) (domain.StoredRecord, error)
}

type ingestService struct {
	repo        repository.ReadingsRepository
	broadcaster Broadcaster
	kv          store.KV
	latestTTL   time.Duration
	logger      *zap.Logger
}

// NewIngestService 创建 IngestService 实例；kv 可为 nil（禁用最新读数缓存）
func NewIngestService(
	repo repository.ReadingsRepository,
	broadcaster Broadcaster,
	kv store.KV,
	latestTTL time.Duration,
	logger *zap.Logger,
) IngestService {
	return &ingestService{
		repo:        repo,
		broadcaster: broadcaster,
		kv:          kv,
		latestTTL:   latestTTL,
		logger:      logger,
	}
}

var _ IngestService = (*ingestService)(nil)

func (s *ingestService) Ingest(ctx context.Context, records []domain.ProcessedRecord) ([]domain.StoredRecord, error) {
	// 先整批校验：坏数据不应触发任何落库
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, err
		}
	}

	stored, err := s.repo.InsertBatch(ctx, records)

	// 已提交的行即使整批失败也要推送出去（提交与通知一一对应）
	for i := range stored {
		s.notify(ctx, &stored[i])
	}

	if err != nil {
		return stored, err
	}
	return stored, nil
}

// notify 将一条落库行推给该用户的在线订阅并刷新最新读数缓存；
// 两者失败均只记日志
func (s *ingestService) notify(ctx context.Context, rec *domain.StoredRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("failed to encode stored record for broadcast",
			zap.Int64("id", rec.ID), zap.Error(err))
		return
	}

	s.broadcaster.Broadcast(rec.UserID, payload)

	if s.kv != nil {
		key := store.LatestReadingKey(rec.UserID)
		if err := s.kv.Set(ctx, key, string(payload), s.latestTTL); err != nil {
			s.logger.Warn("failed to cache latest reading",
				zap.Int64("user_id", rec.UserID), zap.Error(err))
		}
	}
}

func (s *ingestService) Get(ctx context.Context, id int64) (domain.StoredRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ingestService) List(ctx context.Context) ([]domain.StoredRecord, error) {
	return s.repo.ListAll(ctx)
}

func (s *ingestService) Update(ctx context.Context, id int64, record domain.ProcessedRecord) (domain.StoredRecord, error) {
	if err := record.Validate(); err != nil {
		return domain.StoredRecord{}, err
	}
	return s.repo.UpdateByID(ctx, id, record)
}

func (s *ingestService) Delete(ctx context.Context, id int64) (domain.StoredRecord, error) {
	return s.repo.DeleteByID(ctx, id)
}

func (s *ingestService) Latest(ctx context.Context, userID int64) (domain.StoredRecord, error) {
	if s.kv == nil {
		return domain.StoredRecord{}, repository.ErrNotFound
	}
	raw, err := s.kv.Get(ctx, store.LatestReadingKey(userID))
	if err != nil {
		if err == store.ErrMiss {
			return domain.StoredRecord{}, repository.ErrNotFound
		}
		return domain.StoredRecord{}, err
	}
	var rec domain.StoredRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.StoredRecord{}, err
	}
	return rec, nil
}
