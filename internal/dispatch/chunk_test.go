package dispatch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonclaudio/dreamseeker-sub000/internal/gateway/expo"
)

func makeMessages(n int) []expo.Message {
	msgs := make([]expo.Message, n)
	for i := range msgs {
		msgs[i] = expo.Message{To: fmt.Sprintf("ExponentPushToken[%04d]", i)}
	}
	return msgs
}

func TestChunkMessages(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		wantSizes []int
	}{
		{"empty", 0, nil},
		{"under one batch", 5, []int{5}},
		{"exactly one batch", 100, []int{100}},
		{"one over", 101, []int{100, 1}},
		{"several batches", 250, []int{100, 100, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := chunkMessages(makeMessages(tt.count), expo.MaxBatchSize)

			require.Len(t, batches, len(tt.wantSizes))
			for i, want := range tt.wantSizes {
				assert.Len(t, batches[i], want)
			}
		})
	}
}

func TestChunkMessagesPreservesOrder(t *testing.T) {
	msgs := makeMessages(150)

	var flat []expo.Message
	for _, batch := range chunkMessages(msgs, expo.MaxBatchSize) {
		flat = append(flat, batch...)
	}

	require.Len(t, flat, len(msgs))
	for i := range msgs {
		assert.Equal(t, msgs[i].To, flat[i].To)
	}
}
