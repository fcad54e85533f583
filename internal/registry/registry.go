package registry

import (
	"sync"

	"go.uber.org/zap"
)

// Channel 一条可向订阅端推送的连接（WebSocket 适配器在 http 层）
// Send 失败视为该连接不可达，不影响同用户的其它连接
type Channel interface {
	Send(payload []byte) error
}

// Registry 进程级订阅表：user_id → 当前在线连接集合
// 生命周期随服务启停，由 main 构造并注入；这是全系统唯一的共享可变内存结构，
// 订阅 / 退订 / 广播遍历全部在同一把锁内完成——Unsubscribe 返回后该连接
// 不会再收到任何广播。
type Registry struct {
	mu      sync.Mutex
	buckets map[int64]map[Channel]struct{}
	logger  *zap.Logger
}

// NewRegistry 创建空订阅表
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		buckets: make(map[int64]map[Channel]struct{}),
		logger:  logger,
	}
}

// Subscribe 将连接注册到 userID 名下；首个连接时建桶
func (r *Registry) Subscribe(userID int64, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.buckets[userID]
	if !ok {
		bucket = make(map[Channel]struct{})
		r.buckets[userID] = bucket
	}
	bucket[ch] = struct{}{}
	r.logger.Debug("channel subscribed",
		zap.Int64("user_id", userID),
		zap.Int("bucket_size", len(bucket)),
	)
}

// Unsubscribe 将连接从 userID 名下移除；空桶即删
func (r *Registry) Unsubscribe(userID int64, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.buckets[userID]
	if !ok {
		return
	}
	delete(bucket, ch)
	if len(bucket) == 0 {
		delete(r.buckets, userID)
	}
}

// Broadcast 向 userID 的全部在线连接推送 payload（best-effort）：
// 单条连接失败只记日志，既不中断遍历也不作为错误返回
func (r *Registry) Broadcast(userID int64, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ch := range r.buckets[userID] {
		if err := ch.Send(payload); err != nil {
			r.logger.Warn("broadcast to channel failed",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
	}
}

// SubscriberCount 当前 userID 名下的在线连接数（用于观测与测试）
func (r *Registry) SubscriberCount(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets[userID])
}
