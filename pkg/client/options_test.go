package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithRetryMax(t *testing.T) {
	tests := []struct {
		name  string
		input int
		want  int
	}{
		{"positive", 5, 5},
		{"zero disables retries", 0, 0},
		{"negative ignored", -1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{retryMax: 3}
			WithRetryMax(tt.input)(c)
			assert.Equal(t, tt.want, c.retryMax)
		})
	}
}

func TestWithRetryWait(t *testing.T) {
	tests := []struct {
		name             string
		min, max         time.Duration
		wantMin, wantMax time.Duration
	}{
		{"both valid", time.Second, 10 * time.Second, time.Second, 10 * time.Second},
		{"max below min keeps max", 2 * time.Second, time.Second, 2 * time.Second, 5 * time.Second},
		{"zero min ignored", 0, time.Second, 500 * time.Millisecond, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{retryWaitMin: 500 * time.Millisecond, retryWaitMax: 5 * time.Second}
			WithRetryWait(tt.min, tt.max)(c)
			assert.Equal(t, tt.wantMin, c.retryWaitMin)
			assert.Equal(t, tt.wantMax, c.retryWaitMax)
		})
	}
}

func TestWithTimeout_KeepsTransport(t *testing.T) {
	tr := &http.Transport{}
	c := &Client{httpClient: &http.Client{Transport: tr}}
	WithTimeout(3 * time.Second)(c)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
	assert.Same(t, tr, c.httpClient.Transport)
}

func TestNilOptionsIgnored(t *testing.T) {
	hc := &http.Client{}
	c := &Client{httpClient: hc, logger: noopLogger{}, userAgent: "ua"}
	WithHTTPClient(nil)(c)
	WithLogger(nil)(c)
	WithUserAgent("")(c)
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, noopLogger{}, c.logger)
	assert.Equal(t, "ua", c.userAgent)
}

//Personal.AI order the ending
