package kafkaconsumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/cache/keys"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/cache/tiered"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/model"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/invalidation"
)

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "ranking-data-published" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventBytes(kind model.BarrierKind, version uint64) []byte {
	b, _ := json.Marshal(invalidation.Event{
		Version: 1, BarrierKind: kind, DatasetVersion: version, TS: time.Now().UTC(),
	})
	return b
}

func msg(part int32, off int64, value []byte) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "ranking-data-published", Partition: part, Offset: off, Value: value}
}

func newConsumerForTest(gens *keys.Generations, local Purger) *Consumer {
	cfg := DefaultConfig([]string{"x"}, "ranking-data-published", "g")
	return New(cfg, nil, gens, local)
}

func TestSinglePartition_OrderAndCommitAfterWork(t *testing.T) {
	gens := keys.NewGenerations()
	local := tiered.New(tiered.Config{LocalSize: 8, LocalTTL: time.Minute}, nil, nil)
	if err := local.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	c := newConsumerForTest(gens, local)

	g := &groupHandler{process: c.ProcessOne, logger: slog.Default()}
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- msg(0, 10, eventBytes(model.BarrierDams, 0))
	ch <- msg(0, 11, eventBytes(model.BarrierDams, 0))
	close(ch)

	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
	if got := gens.Get(string(model.BarrierDams)); got != 2 {
		t.Fatalf("generation = %d, want 2", got)
	}
	if local.Len() != 0 {
		t.Fatalf("local tier not purged")
	}
}

func TestRedeliveredOffsetAppliedOnce(t *testing.T) {
	gens := keys.NewGenerations()
	c := newConsumerForTest(gens, nil)
	ctx := context.Background()

	m := msg(0, 5, eventBytes(model.BarrierSmallBarriers, 0))
	for range 3 {
		if err := c.ProcessOne(ctx, m); err != nil {
			t.Fatalf("ProcessOne: %v", err)
		}
	}
	if got := gens.Get(string(model.BarrierSmallBarriers)); got != 1 {
		t.Fatalf("generation = %d, want 1", got)
	}
	if got := gens.Get(string(model.BarrierDams)); got != 0 {
		t.Fatalf("dams touched: %d", got)
	}
}

func TestDatasetVersionIsMonotonic(t *testing.T) {
	gens := keys.NewGenerations()
	c := newConsumerForTest(gens, nil)
	ctx := context.Background()

	for i, v := range []uint64{7, 3, 9} {
		if err := c.ProcessOne(ctx, msg(0, int64(i), eventBytes(model.BarrierDams, v))); err != nil {
			t.Fatal(err)
		}
	}
	if got := gens.Get(string(model.BarrierDams)); got != 9 {
		t.Fatalf("generation = %d, want 9", got)
	}
}

func TestMalformedEventIsSkipped(t *testing.T) {
	gens := keys.NewGenerations()
	c := newConsumerForTest(gens, nil)
	g := &groupHandler{process: c.ProcessOne, logger: slog.Default()}
	s := &sess{ctx: t.Context()}

	ch := make(chan *sarama.ConsumerMessage, 3)
	ch <- msg(0, 1, []byte("{not json"))
	ch <- msg(0, 2, []byte(`{"version":1,"barrier_kind":"culverts","ts":"2025-01-01T00:00:00Z"}`))
	ch <- msg(0, 3, eventBytes(model.BarrierDams, 0))
	close(ch)

	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 3 {
		t.Fatalf("marked = %v", s.marked)
	}
	if got := gens.Get(string(model.BarrierDams)); got != 1 {
		t.Fatalf("generation = %d", got)
	}
}

func TestMultiPartition_Parallel(t *testing.T) {
	gens := keys.NewGenerations()
	c := newConsumerForTest(gens, nil)
	g := &groupHandler{process: c.ProcessOne, logger: slog.Default()}
	s := &sess{ctx: t.Context()}

	p0 := make(chan *sarama.ConsumerMessage, 2)
	p1 := make(chan *sarama.ConsumerMessage, 2)
	p0 <- msg(0, 1, eventBytes(model.BarrierDams, 0))
	p0 <- msg(0, 2, eventBytes(model.BarrierDams, 0))
	p1 <- msg(1, 1, eventBytes(model.BarrierDams, 0))
	p1 <- msg(1, 2, eventBytes(model.BarrierDams, 0))
	close(p0)
	close(p1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 0, msgs: p0}) }()
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 1, msgs: p1}) }()
	wg.Wait()

	if len(s.marked) != 4 {
		t.Fatalf("expected 4 marks total; got %v", s.marked)
	}
	if got := gens.Get(string(model.BarrierDams)); got != 4 {
		t.Fatalf("generation = %d, want 4", got)
	}
}

func TestSaramaConfigFromConfig(t *testing.T) {
	cfg := DefaultConfig([]string{"k:9092"}, "ranking-data-published", "g")
	sc := cfg.sarama()
	if sc.Consumer.Offsets.Initial != sarama.OffsetNewest {
		t.Fatalf("default initial offset = %d", sc.Consumer.Offsets.Initial)
	}
	if sc.ClientID != "barrier-prioritizer" || sc.Consumer.Group.Heartbeat.Interval != 3*time.Second {
		t.Fatalf("unexpected sarama config: client=%q heartbeat=%v", sc.ClientID, sc.Consumer.Group.Heartbeat.Interval)
	}
	cfg.FromOldest = true
	if cfg.sarama().Consumer.Offsets.Initial != sarama.OffsetOldest {
		t.Fatalf("FromOldest not applied")
	}
	if err := cfg.sarama().Validate(); err != nil {
		t.Fatalf("invalid sarama config: %v", err)
	}
}
