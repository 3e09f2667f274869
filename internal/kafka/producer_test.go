package kafka

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

// Replays the binaries' shutdown sequence: a signal context gets cancelled,
// main calls Close and then waits for the flush. Close must stay safe even
// when called again.
func TestProducerShutdownAfterCancelledContext(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, zap.NewNop(), 8)
	p.Start()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	<-ctx.Done()

	p.Close()

	done := make(chan struct{})
	go func() {
		p.WaitClosed()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer did not finish flushing")
	}

	// Repeat Close is a no-op, not a panic.
	p.Close()
}
