package feedback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/pkg/logging"
)

// KafkaConfig 是 Kafka 采集器配置。
type KafkaConfig struct {
	Brokers []string `koanf:"brokers" yaml:"brokers"`
	Topic   string   `koanf:"topic" yaml:"topic"`

	BatchSize     int           `koanf:"batch_size" yaml:"batch_size"`         // 批量大小，达到后立即发送
	FlushInterval time.Duration `koanf:"flush_interval" yaml:"flush_interval"` // 定时刷新间隔

	ClientID     string `koanf:"client_id" yaml:"client_id"`
	RequiredAcks int16  `koanf:"required_acks" yaml:"required_acks"` // 1=leader（默认）, -1=all
	Compression  string `koanf:"compression" yaml:"compression"`     // gzip / snappy / lz4 / zstd
	MaxRetries   int    `koanf:"max_retries" yaml:"max_retries"`
}

// producer 是 kgo.Client 中用到的部分。
type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// KafkaCollector 把事件批量异步写入 Kafka，key 为 user id（同一用户的事件有序）。
type KafkaCollector struct {
	client        producer
	topic         string
	batchSize     int
	flushInterval time.Duration

	mu        sync.Mutex
	buffer    []Event
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
	stopCh    chan struct{}

	recorder
}

// NewKafkaCollector 创建 franz-go 客户端并启动后台刷新。
func NewKafkaCollector(cfg KafkaConfig) (*KafkaCollector, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("feedback: kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("feedback: kafka topic is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "shoprec-feedback"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RecordRetries(cfg.MaxRetries),
	}
	// 幂等写要求 AllISRAcks，其余级别需关闭
	if cfg.RequiredAcks == -1 {
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	} else {
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	}
	switch cfg.Compression {
	case "gzip":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.GzipCompression()))
	case "snappy":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.SnappyCompression()))
	case "lz4":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.Lz4Compression()))
	case "zstd":
		opts = append(opts, kgo.ProducerBatchCompression(kgo.ZstdCompression()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("feedback: kafka client: %w", err)
	}
	return newKafkaCollector(client, cfg), nil
}

func newKafkaCollector(client producer, cfg KafkaConfig) *KafkaCollector {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	c := &KafkaCollector{
		client:        client,
		topic:         cfg.Topic,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		buffer:        make([]Event, 0, cfg.BatchSize),
		stopCh:        make(chan struct{}),
	}
	c.recorder = recorder{name: "kafka", fn: c.enqueue}

	c.wg.Add(1)
	go c.flushLoop()
	return c
}

func (c *KafkaCollector) RecordClick(ctx context.Context, userID, productID, algorithm string) {
	c.record(ctx, EventClick, userID, productID, algorithm)
}

func (c *KafkaCollector) RecordPurchase(ctx context.Context, userID, productID, algorithm string) {
	c.record(ctx, EventPurchase, userID, productID, algorithm)
}

// enqueue 非阻塞写入缓冲，达到批量大小时异步发送。
func (c *KafkaCollector) enqueue(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("feedback: kafka collector closed")
	}
	c.buffer = append(c.buffer, ev)
	if len(c.buffer) >= c.batchSize {
		batch := c.take()
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.send(batch)
		}()
	}
	return nil
}

// take 取出缓冲（调用方持有锁）。
func (c *KafkaCollector) take() []Event {
	batch := c.buffer
	c.buffer = make([]Event, 0, c.batchSize)
	return batch
}

func (c *KafkaCollector) flushLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.stopCh:
			return
		}
	}
}

func (c *KafkaCollector) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.take()
	c.mu.Unlock()
	c.send(batch)
}

func (c *KafkaCollector) send(batch []Event) {
	for _, ev := range batch {
		data, err := json.Marshal(ev)
		if err != nil {
			metrics.FeedbackErrors.WithLabelValues("kafka").Inc()
			continue
		}
		record := &kgo.Record{Topic: c.topic, Key: []byte(ev.UserID), Value: data}
		c.client.Produce(context.Background(), record, func(r *kgo.Record, err error) {
			if err != nil {
				metrics.FeedbackErrors.WithLabelValues("kafka").Inc()
				logging.Warn().Err(err).Str("topic", r.Topic).Msg("kafka produce failed")
			}
		})
	}
}

// Close 停止后台刷新，发送剩余缓冲并等待 Kafka 确认。
func (c *KafkaCollector) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.stopCh)
		c.wg.Wait()
		c.flush()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = c.client.Flush(ctx)
		c.client.Close()
	})
	return err
}
