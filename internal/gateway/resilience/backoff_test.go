package resilience

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newResponseWithRetryAfter(value string) *http.Response {
	resp := &http.Response{Header: http.Header{}}
	if value != "" {
		resp.Header.Set("Retry-After", value)
	}
	return resp
}

func TestBackoffScheduleWorstCase(t *testing.T) {
	client := NewClient(DefaultClientConfig("schedule"))
	bo := client.newBackOff()

	var total time.Duration
	delays := make([]time.Duration, 0, client.config.MaxAttempts)
	for i := 0; i < client.config.MaxAttempts; i++ {
		d := bo.NextBackOff()
		delays = append(delays, d)
		total += d
	}

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
	assert.Equal(t, 7*time.Second, total)
	assert.Less(t, total, 10*time.Second)
}

func TestRetryAfterHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
		ok     bool
	}{
		{name: "seconds", header: "30", want: 30 * time.Second, ok: true},
		{name: "zero", header: "0", want: 0, ok: true},
		{name: "missing", header: "", ok: false},
		{name: "garbage", header: "soon", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := newResponseWithRetryAfter(tt.header)
			got, ok := retryAfter(resp)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
