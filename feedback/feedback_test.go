package feedback

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/store"
)

func TestStoreCollector_Counts(t *testing.T) {
	ms := store.NewMemoryStore()
	defer ms.Close()
	c := NewStoreCollector(ms)
	ctx := context.Background()

	c.RecordClick(ctx, "u1", "p1", core.AlgorithmHybrid)
	c.RecordClick(ctx, "u2", "p2", core.AlgorithmHybrid)
	c.RecordPurchase(ctx, "u1", "p1", core.AlgorithmHybrid)
	c.RecordClick(ctx, "u1", "p3", "")

	got, err := c.Counts(ctx, core.AlgorithmHybrid)
	if err != nil {
		t.Fatal(err)
	}
	want := map[EventType]int64{EventClick: 2, EventPurchase: 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Counts(hybrid) = %v, want %v", got, want)
	}

	got, _ = c.Counts(ctx, "unknown")
	if got[EventClick] != 1 {
		t.Errorf("未带算法的事件应计入 unknown: %v", got)
	}

	got, _ = c.Counts(ctx, core.AlgorithmTrending)
	if len(got) != 0 {
		t.Errorf("无事件的算法应返回空计数: %v", got)
	}
}

type failingCounters struct {
	*store.MemoryStore
}

func (failingCounters) HIncrBy(context.Context, string, string, int64) (int64, error) {
	return 0, errors.New("dial tcp: connection refused")
}

func TestStoreCollector_SwallowsErrors(t *testing.T) {
	ms := store.NewMemoryStore()
	defer ms.Close()
	c := NewStoreCollector(failingCounters{ms})

	before := testutil.ToFloat64(metrics.FeedbackErrors.WithLabelValues("store"))
	c.RecordPurchase(context.Background(), "u1", "p1", core.AlgorithmItemBased)
	after := testutil.ToFloat64(metrics.FeedbackErrors.WithLabelValues("store"))
	if after-before != 1 {
		t.Errorf("写入失败应计入 feedback errors: before=%v after=%v", before, after)
	}
}

func TestMetricsCollector(t *testing.T) {
	var c MetricsCollector
	counter := metrics.FeedbackEvents.WithLabelValues(string(EventClick), core.AlgorithmContent)
	before := testutil.ToFloat64(counter)

	c.RecordClick(context.Background(), "u1", "p1", core.AlgorithmContent)
	c.RecordClick(context.Background(), "u1", "p2", core.AlgorithmContent)

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("click 计数增加 %v, want 2", got)
	}
}

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	flushed bool
	closed  bool
}

func (p *fakeProducer) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	p.mu.Lock()
	p.records = append(p.records, r)
	p.mu.Unlock()
	promise(r, nil)
}

func (p *fakeProducer) Flush(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushed = true
	return nil
}

func (p *fakeProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *fakeProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

func TestKafkaCollector_FlushOnClose(t *testing.T) {
	p := &fakeProducer{}
	c := newKafkaCollector(p, KafkaConfig{Topic: "shoprec.feedback", BatchSize: 100, FlushInterval: time.Hour})
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	ctx := context.Background()

	c.RecordClick(ctx, "u1", "p1", core.AlgorithmHybrid)
	c.RecordPurchase(ctx, "u2", "p2", core.AlgorithmTrending)
	if p.count() != 0 {
		t.Fatalf("未达到批量大小前不应发送, got %d", p.count())
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if p.count() != 2 || !p.flushed || !p.closed {
		t.Fatalf("Close 应发送剩余事件并关闭客户端: records=%d flushed=%v closed=%v", p.count(), p.flushed, p.closed)
	}

	r := p.records[1]
	if r.Topic != "shoprec.feedback" || string(r.Key) != "u2" {
		t.Errorf("record topic/key = %s/%s", r.Topic, r.Key)
	}
	var ev Event
	if err := json.Unmarshal(r.Value, &ev); err != nil {
		t.Fatal(err)
	}
	want := Event{Type: EventPurchase, UserID: "u2", ProductID: "p2", Algorithm: core.AlgorithmTrending, Timestamp: 1700000000}
	if ev != want {
		t.Errorf("event = %+v, want %+v", ev, want)
	}

	// 关闭后的事件直接丢弃
	c.RecordClick(ctx, "u3", "p3", core.AlgorithmHybrid)
	if p.count() != 2 {
		t.Errorf("关闭后不应再发送, got %d", p.count())
	}
}

func TestKafkaCollector_FlushOnBatchSize(t *testing.T) {
	p := &fakeProducer{}
	c := newKafkaCollector(p, KafkaConfig{Topic: "t", BatchSize: 2, FlushInterval: time.Hour})
	defer c.Close()

	c.RecordClick(context.Background(), "u1", "p1", core.AlgorithmHybrid)
	c.RecordClick(context.Background(), "u1", "p2", core.AlgorithmHybrid)

	deadline := time.Now().Add(2 * time.Second)
	for p.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.count() != 2 {
		t.Errorf("达到批量大小应立即发送, got %d", p.count())
	}
}

func TestNewKafkaCollector_RequiresBrokersAndTopic(t *testing.T) {
	if _, err := NewKafkaCollector(KafkaConfig{Topic: "t"}); err == nil {
		t.Error("缺少 brokers 应报错")
	}
	if _, err := NewKafkaCollector(KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Error("缺少 topic 应报错")
	}
}

type closeErr struct{ NopCollector }

func (closeErr) Close() error { return errors.New("boom") }

func TestMultiCollector(t *testing.T) {
	a, b := store.NewMemoryStore(), store.NewMemoryStore()
	defer a.Close()
	defer b.Close()
	ca, cb := NewStoreCollector(a), NewStoreCollector(b)
	m := MultiCollector{ca, cb, NopCollector{}}

	m.RecordClick(context.Background(), "u1", "p1", core.AlgorithmCollaborative)
	m.RecordPurchase(context.Background(), "u1", "p1", core.AlgorithmCollaborative)

	for _, c := range []*StoreCollector{ca, cb} {
		got, err := c.Counts(context.Background(), core.AlgorithmCollaborative)
		if err != nil {
			t.Fatal(err)
		}
		if got[EventClick] != 1 || got[EventPurchase] != 1 {
			t.Errorf("counts = %v", got)
		}
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if err := (MultiCollector{ca, closeErr{}}).Close(); err == nil {
		t.Error("任一 Collector 关闭失败应返回错误")
	}
}
