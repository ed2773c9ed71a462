package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	msgs   chan kafka.Message
	closed chan struct{}
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-f.msgs:
		return m, nil
	}
}

func (f *fakeReader) Close() error {
	close(f.closed)
	return nil
}

type fakeInvalidator struct {
	mu    sync.Mutex
	pairs []string
	err   error
	seen  chan struct{}
}

func (f *fakeInvalidator) Invalidate(_ context.Context, size, svc string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs = append(f.pairs, size+"/"+svc)
	if f.seen != nil {
		f.seen <- struct{}{}
	}
	return f.err
}

func TestPricingConsumerInvalidates(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 4), closed: make(chan struct{})}
	cache := &fakeInvalidator{seen: make(chan struct{}, 4)}
	c := newPricingConsumer(reader, cache, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	reader.msgs <- kafka.Message{Topic: DefaultPricingTopic, Value: []byte(`not json`)}
	reader.msgs <- kafka.Message{Topic: DefaultPricingTopic, Value: []byte(`{"vehicle_size":" suv ","service_type":"full_detail"}`)}

	select {
	case <-cache.seen:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for invalidation")
	}
	cancel()
	<-done
	<-reader.closed

	cache.mu.Lock()
	defer cache.mu.Unlock()
	if len(cache.pairs) != 1 || cache.pairs[0] != "suv/full_detail" {
		t.Fatalf("unexpected invalidations %v", cache.pairs)
	}
}

func TestPricingConsumerHandleErrors(t *testing.T) {
	cache := &fakeInvalidator{err: errors.New("redis down")}
	c := newPricingConsumer(&fakeReader{}, cache, discardLogger())

	if err := c.handle(context.Background(), kafka.Message{Value: []byte(`{"vehicle_size":"suv"}`)}); !errors.Is(err, errInvalidPricingEvent) {
		t.Fatalf("expected invalid event error, got %v", err)
	}
	if err := c.handle(context.Background(), kafka.Message{Value: []byte(`{"vehicle_size":"suv","service_type":"wash"}`)}); err == nil {
		t.Fatalf("expected invalidation error")
	}
}
