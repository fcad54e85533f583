package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"roadsense-data/internal/domain"
	"roadsense-data/internal/repository"
	"roadsense-data/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockReadingsRepository 是 ReadingsRepository 的 mock 实现
type MockReadingsRepository struct {
	mock.Mock
}

func (m *MockReadingsRepository) InsertBatch(ctx context.Context, records []domain.ProcessedRecord) ([]domain.StoredRecord, error) {
	args := m.Called(ctx, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StoredRecord), args.Error(1)
}

func (m *MockReadingsRepository) GetByID(ctx context.Context, id int64) (domain.StoredRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.StoredRecord), args.Error(1)
}

func (m *MockReadingsRepository) ListAll(ctx context.Context) ([]domain.StoredRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StoredRecord), args.Error(1)
}

func (m *MockReadingsRepository) UpdateByID(ctx context.Context, id int64, record domain.ProcessedRecord) (domain.StoredRecord, error) {
	args := m.Called(ctx, id, record)
	return args.Get(0).(domain.StoredRecord), args.Error(1)
}

func (m *MockReadingsRepository) DeleteByID(ctx context.Context, id int64) (domain.StoredRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.StoredRecord), args.Error(1)
}

var _ repository.ReadingsRepository = (*MockReadingsRepository)(nil)

// recordingBroadcaster 记录每次广播的 user_id + payload
type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []struct {
		userID  int64
		payload []byte
	}
}

func (b *recordingBroadcaster) Broadcast(userID int64, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, struct {
		userID  int64
		payload []byte
	}{userID, payload})
}

// fakeKV 内存 KV，可注入 Set 失败
type fakeKV struct {
	mu      sync.Mutex
	data    map[string]string
	setErr  error
	getMiss bool
}

func newFakeKV() *fakeKV { return &fakeKV{data: make(map[string]string)} }

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getMiss {
		return "", store.ErrMiss
	}
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

func validRecord(userID int64) domain.ProcessedRecord {
	return domain.ProcessedRecord{
		RoadState: "pothole",
		AgentData: domain.AgentReading{
			Accelerometer: domain.AccelerometerSample{X: 1.0, Y: 2.0, Z: 3.0},
			GPS:           domain.GpsSample{Latitude: 10.0, Longitude: 20.0},
			Timestamp:     domain.NewTimestamp(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
			UserID:        userID,
		},
	}
}

func storedFrom(rec domain.ProcessedRecord, id int64) domain.StoredRecord {
	flat := rec.Flatten()
	flat.ID = id
	return flat
}

func newTestService(repo repository.ReadingsRepository, b Broadcaster, kv store.KV) IngestService {
	return NewIngestService(repo, b, kv, time.Hour, zap.NewNop())
}

func TestIngest_ValidationFailureBeforeStorage(t *testing.T) {
	repo := new(MockReadingsRepository)
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, bc, newFakeKV())

	bad := validRecord(7)
	bad.RoadState = ""

	_, err := svc.Ingest(context.Background(), []domain.ProcessedRecord{validRecord(7), bad})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	repo.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
	assert.Empty(t, bc.calls)
}

func TestIngest_BroadcastsEachStoredRow(t *testing.T) {
	repo := new(MockReadingsRepository)
	bc := &recordingBroadcaster{}
	kv := newFakeKV()
	svc := newTestService(repo, bc, kv)

	rec := validRecord(7)
	stored := storedFrom(rec, 41)
	repo.On("InsertBatch", mock.Anything, mock.Anything).
		Return([]domain.StoredRecord{stored}, nil)

	got, err := svc.Ingest(context.Background(), []domain.ProcessedRecord{rec})
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.Len(t, bc.calls, 1)
	assert.Equal(t, int64(7), bc.calls[0].userID)

	// 广播 payload 就是落库行的 JSON
	var pushed domain.StoredRecord
	require.NoError(t, json.Unmarshal(bc.calls[0].payload, &pushed))
	assert.Equal(t, stored, pushed)

	// 最新读数缓存同步刷新
	cached, err := kv.Get(context.Background(), store.LatestReadingKey(7))
	require.NoError(t, err)
	assert.JSONEq(t, string(bc.calls[0].payload), cached)

	repo.AssertExpectations(t)
}

func TestIngest_PartialCommitStillNotifies(t *testing.T) {
	repo := new(MockReadingsRepository)
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, bc, newFakeKV())

	rec := validRecord(7)
	stored := storedFrom(rec, 41)
	storageErr := errors.New("insert failed: connection reset")
	repo.On("InsertBatch", mock.Anything, mock.Anything).
		Return([]domain.StoredRecord{stored}, storageErr)

	got, err := svc.Ingest(context.Background(), []domain.ProcessedRecord{rec, rec})

	require.ErrorIs(t, err, storageErr)
	require.Len(t, got, 1)
	// 已提交的行照常推送
	require.Len(t, bc.calls, 1)
	assert.Equal(t, int64(7), bc.calls[0].userID)
}

func TestIngest_CacheFailureIsSwallowed(t *testing.T) {
	repo := new(MockReadingsRepository)
	bc := &recordingBroadcaster{}
	kv := newFakeKV()
	kv.setErr = errors.New("redis down")
	svc := newTestService(repo, bc, kv)

	rec := validRecord(7)
	repo.On("InsertBatch", mock.Anything, mock.Anything).
		Return([]domain.StoredRecord{storedFrom(rec, 41)}, nil)

	_, err := svc.Ingest(context.Background(), []domain.ProcessedRecord{rec})
	assert.NoError(t, err)
	assert.Len(t, bc.calls, 1)
}

func TestIngest_NilKV(t *testing.T) {
	repo := new(MockReadingsRepository)
	bc := &recordingBroadcaster{}
	svc := newTestService(repo, bc, nil)

	rec := validRecord(7)
	repo.On("InsertBatch", mock.Anything, mock.Anything).
		Return([]domain.StoredRecord{storedFrom(rec, 41)}, nil)

	_, err := svc.Ingest(context.Background(), []domain.ProcessedRecord{rec})
	assert.NoError(t, err)
}

func TestUpdate_ValidatesFirst(t *testing.T) {
	repo := new(MockReadingsRepository)
	svc := newTestService(repo, &recordingBroadcaster{}, nil)

	bad := validRecord(7)
	bad.RoadState = ""

	_, err := svc.Update(context.Background(), 41, bad)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	repo.AssertNotCalled(t, "UpdateByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestLatest_CacheMissMapsToNotFound(t *testing.T) {
	svc := newTestService(new(MockReadingsRepository), &recordingBroadcaster{}, newFakeKV())

	_, err := svc.Latest(context.Background(), 7)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLatest_Hit(t *testing.T) {
	kv := newFakeKV()
	svc := newTestService(new(MockReadingsRepository), &recordingBroadcaster{}, kv)

	stored := storedFrom(validRecord(7), 41)
	raw, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), store.LatestReadingKey(7), string(raw), time.Hour))

	rec, err := svc.Latest(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, stored, rec)
}
