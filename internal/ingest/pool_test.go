package ingest

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	p := NewPool(3, 16)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		ok := p.Submit("unit", func() { ran.Add(1) })
		assert.True(t, ok)
	}
	p.Stop()

	assert.Equal(t, int32(10), ran.Load())
}

func TestPool_DropsWhenQueueFull(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Stop()

	block := make(chan struct{})
	done := make(chan struct{})
	p.Submit("blocker", func() {
		<-block
		close(done)
	})

	// Fill the single queue slot, then overflow it.
	p.Submit("queued", func() {})
	dropped := false
	for i := 0; i < 50; i++ {
		if !p.Submit("overflow", func() {}) {
			dropped = true
			break
		}
	}
	assert.True(t, dropped)

	close(block)
	<-done
}

func TestPool_ContainsPanics(t *testing.T) {
	p := NewPool(1, 4)

	var ran atomic.Bool
	p.Submit("panics", func() { panic("boom") })
	p.Submit("survives", func() { ran.Store(true) })
	p.Stop()

	assert.True(t, ran.Load())
}
