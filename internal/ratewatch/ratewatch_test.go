package ratewatch

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tokenfleet/dispatchctl/internal/logging"
)

func TestObserveWithinCeilingDoesNotLog(t *testing.T) {
	var buf bytes.Buffer
	w := New(map[time.Duration]int{time.Second: 10}, logging.New(&buf, logging.LevelDebug))
	assert.NotPanics(t, func() {
		for i := 0; i < 5; i++ {
			w.Observe(0, 4)
		}
	})
	assert.Empty(t, buf.String())
}

func TestObserveOverCeilingDoesNotPanic(t *testing.T) {
	w := New(map[time.Duration]int{time.Second: 2}, logging.NewNop())
	for i := 0; i < 10; i++ {
		w.Observe(1, 4)
	}
}

func TestDefaultRatesMonotonic(t *testing.T) {
	rates := DefaultRates(64, 256)
	assert.Equal(t, 64, rates[time.Second])
	assert.Equal(t, 256, rates[10*time.Second])
	assert.Less(t, rates[time.Second], rates[10*time.Second])
}

func TestNewWithNilLoggerDoesNotPanic(t *testing.T) {
	w := New(map[time.Duration]int{time.Second: 1}, nil)
	assert.NotPanics(t, func() { w.Observe(0, 1) })
}
