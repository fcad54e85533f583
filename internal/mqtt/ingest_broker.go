package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"roadsense-data/internal/config"
	"roadsense-data/internal/domain"
	"roadsense-data/internal/service"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const ingestTimeout = 10 * time.Second

// IngestBroker 车载 agent 经 MQTT 上报的旁路入口：
// 每条消息是一个 ProcessedRecord JSON 数组，走与 HTTP 相同的入库管线。
// broker 通道没有应答方，坏消息和失败批次只记日志后丢弃。
type IngestBroker struct {
	client mqtt.Client
	cfg    *config.MQTTConfig
	svc    service.IngestService
	logger *zap.Logger
}

// NewIngestBroker 连接 broker 并创建入口（不订阅）
func NewIngestBroker(cfg *config.MQTTConfig, svc service.IngestService, logger *zap.Logger) (*IngestBroker, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &IngestBroker{client: client, cfg: cfg, svc: svc, logger: logger}, nil
}

// Start 订阅配置的主题
func (b *IngestBroker) Start() error {
	token := b.client.Subscribe(b.cfg.Topic, b.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		b.HandleMessage(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", b.cfg.Topic, token.Error())
	}
	b.logger.Info("MQTT ingest subscribed", zap.String("topic", b.cfg.Topic))
	return nil
}

// HandleMessage 处理一条 broker 消息（拆出来便于测试）
func (b *IngestBroker) HandleMessage(topic string, payload []byte) {
	var records []domain.ProcessedRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		b.logger.Warn("dropping malformed MQTT batch",
			zap.String("topic", topic),
			zap.Int("payload_size", len(payload)),
			zap.Error(err),
		)
		return
	}
	if len(records) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	stored, err := b.svc.Ingest(ctx, records)
	if err != nil {
		b.logger.Error("MQTT batch ingest failed",
			zap.String("topic", topic),
			zap.Int("committed", len(stored)),
			zap.Error(err),
		)
		return
	}
	b.logger.Debug("MQTT batch ingested",
		zap.String("topic", topic),
		zap.Int("count", len(stored)),
	)
}

// Stop 断开 broker 连接
func (b *IngestBroker) Stop() {
	b.client.Disconnect(250)
}
