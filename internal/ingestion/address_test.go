package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"github.com/mr1hm/abandoned-explorer/internal/geocode"
	"github.com/mr1hm/abandoned-explorer/internal/ratelimit"
)

type stubGeocoder struct {
	result geocode.Result
	err    error
	block  bool
}

func (s *stubGeocoder) Search(ctx context.Context, _ string) (geocode.Result, error) {
	return s.Reverse(ctx, 0, 0)
}

func (s *stubGeocoder) Reverse(ctx context.Context, _, _ float64) (geocode.Result, error) {
	if s.block {
		<-ctx.Done()
		return geocode.Result{}, ctx.Err()
	}
	return s.result, s.err
}

func newReverse(g geocode.Geocoder, timeout time.Duration) *ReverseAddresses {
	return NewReverseAddresses(g, ratelimit.NewScheduler(clockwork.NewRealClock(), 0), timeout, testLogger())
}

func TestFastAddresses(t *testing.T) {
	assert.Equal(t, "42.331400, -83.045800", FastAddresses{}.Address(context.Background(), 42.3314, -83.0458))
}

func TestReverseAddresses_Found(t *testing.T) {
	g := &stubGeocoder{result: geocode.Result{Lat: 1, Lon: 2, DisplayName: "1 Mill St, Detroit"}}

	assert.Equal(t, "1 Mill St, Detroit", newReverse(g, time.Second).Address(context.Background(), 1, 2))
}

func TestReverseAddresses_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		g    *stubGeocoder
	}{
		{"error", &stubGeocoder{err: errors.New("503")}},
		{"empty result", &stubGeocoder{}},
		{"timeout", &stubGeocoder{block: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			got := newReverse(tt.g, 20*time.Millisecond).Address(context.Background(), 1.5, -2.25)

			assert.Equal(t, "1.500000, -2.250000", got)
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}
}

func TestReverseAddresses_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := &stubGeocoder{result: geocode.Result{DisplayName: "should not be used"}}
	assert.Equal(t, "0.000000, 0.000000", newReverse(g, time.Second).Address(ctx, 0, 0))
}
