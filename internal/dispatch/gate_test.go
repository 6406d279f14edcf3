package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChannel struct {
	name string
	err  error

	mu  sync.Mutex
	got []string
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(_ context.Context, a domain.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, a.ID)
	return c.err
}

func (c *fakeChannel) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

type recorder struct {
	mu       sync.Mutex
	outcomes []domain.DispatchOutcome
}

func (r *recorder) Record(_ context.Context, o domain.DispatchOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *recorder) statuses() map[domain.DispatchStatus]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.DispatchStatus]int)
	for _, o := range r.outcomes {
		out[o.Status]++
	}
	return out
}

func testPolicy(perHour int) Policy {
	return Policy{
		DefaultFloor:     domain.SeverityMedium,
		MaxAlertsPerHour: perHour,
		Scope:            ScopeShared,
		DuplicateWindow:  10 * time.Minute,
	}
}

func testOptions() Options {
	return Options{QueueCapacity: 16, MaxInFlight: 2, SendTimeout: time.Second, DrainTimeout: 2 * time.Second}
}

func alert(market string, sev domain.Severity) domain.Alert {
	return domain.Alert{
		ID:       "alert-" + market + "-" + sev.String(),
		MarketID: market,
		Type:     domain.AlertWhaleActivity,
		Severity: sev,
	}
}

// runGate submits alerts to a running gate, shuts it down and returns what
// was published.
func runGate(t *testing.T, g *Gate, alerts ...domain.Alert) []domain.Alert {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	for _, a := range alerts {
		require.NoError(t, g.Submit(a))
	}
	require.Eventually(t, func() bool {
		return g.Stats().Offered == int64(len(alerts))
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	var out []domain.Alert
	for a := range g.Alerts() {
		out = append(out, a)
	}
	require.NoError(t, <-done)
	return out
}

func TestRateLimitDropsExcessAlerts(t *testing.T) {
	const n = 3
	ch := &fakeChannel{name: "console"}
	rec := &recorder{}
	g := New([]Channel{ch}, NewTokenBucket(n, time.Hour, nil), rec, testPolicy(n), testOptions(), discardLogger())

	var alerts []domain.Alert
	for i := 0; i <= n; i++ {
		alerts = append(alerts, alert(fmt.Sprintf("m%d", i), domain.SeverityHigh))
	}
	published := runGate(t, g, alerts...)

	assert.Len(t, published, n)
	assert.Len(t, ch.received(), n)
	st := g.Stats()
	assert.Equal(t, int64(n+1), st.Offered)
	assert.Equal(t, int64(n), st.Sent)
	assert.Equal(t, int64(1), st.RateLimited)
	assert.Equal(t, map[domain.DispatchStatus]int{domain.DispatchSent: n, domain.DispatchRateLimited: 1}, rec.statuses())
}

func TestSeverityFloorsPerChannel(t *testing.T) {
	console := &fakeChannel{name: "console"}
	discord := &fakeChannel{name: "discord"}
	p := testPolicy(100)
	p.Floors = map[string]domain.Severity{"discord": domain.SeverityCritical}
	g := New([]Channel{console, discord}, NewTokenBucket(100, time.Hour, nil), nil, p, testOptions(), discardLogger())

	published := runGate(t, g,
		alert("m1", domain.SeverityHigh),
		alert("m2", domain.SeverityCritical),
		alert("m3", domain.SeverityLow),
	)

	assert.Len(t, published, 2)
	assert.ElementsMatch(t, []string{"alert-m1-HIGH", "alert-m2-CRITICAL"}, console.received())
	assert.Equal(t, []string{"alert-m2-CRITICAL"}, discord.received())
	st := g.Stats()
	assert.Equal(t, int64(1), st.Channels["console"].BelowSeverity)
	assert.Equal(t, int64(2), st.Channels["discord"].BelowSeverity)
}

func TestDuplicateWindow(t *testing.T) {
	ch := &fakeChannel{name: "console"}
	g := New([]Channel{ch}, nil, nil, testPolicy(100), testOptions(), discardLogger())

	a := alert("m1", domain.SeverityHigh)
	b := a
	b.ID = "alert-m1-again"
	c := alert("m1", domain.SeverityCritical)
	published := runGate(t, g, a, b, c)

	assert.Len(t, published, 2)
	assert.ElementsMatch(t, []string{a.ID, c.ID}, ch.received())
	assert.Equal(t, int64(1), g.Stats().Duplicate)
}

func TestSharedAndPerChannelScopes(t *testing.T) {
	for _, tc := range []struct {
		scope    string
		wantSent int64
	}{
		// One token covers every channel of an alert.
		{ScopeShared, 2},
		// Each channel spends its own token.
		{ScopePerChannel, 2},
	} {
		t.Run(tc.scope, func(t *testing.T) {
			a, b := &fakeChannel{name: "a"}, &fakeChannel{name: "b"}
			p := testPolicy(1)
			p.Scope = tc.scope
			g := New([]Channel{a, b}, NewTokenBucket(1, time.Hour, nil), nil, p, testOptions(), discardLogger())

			published := runGate(t, g, alert("m1", domain.SeverityHigh), alert("m2", domain.SeverityHigh))
			assert.Len(t, published, 1)
			st := g.Stats()
			assert.Equal(t, tc.wantSent, st.Sent)
			assert.Equal(t, int64(2), st.RateLimited)
		})
	}
}

func TestFailedSendIsRecorded(t *testing.T) {
	ch := &fakeChannel{name: "discord", err: errors.New("502")}
	rec := &recorder{}
	g := New([]Channel{ch}, nil, rec, testPolicy(10), testOptions(), discardLogger())

	published := runGate(t, g, alert("m1", domain.SeverityHigh))
	assert.Len(t, published, 1, "admitted alerts are published even when delivery fails")
	assert.Equal(t, int64(1), g.Stats().Failed)
	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, "502", rec.outcomes[0].Error)
}

func TestDrainOnShutdown(t *testing.T) {
	ch := &fakeChannel{name: "console"}
	g := New([]Channel{ch}, nil, nil, testPolicy(100), testOptions(), discardLogger())

	for i := 0; i < 5; i++ {
		require.NoError(t, g.Submit(alert(fmt.Sprintf("m%d", i), domain.SeverityHigh)))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, g.Run(ctx))

	var published int
	for range g.Alerts() {
		published++
	}
	assert.Equal(t, 5, published)
	assert.Len(t, ch.received(), 5)
	assert.ErrorIs(t, g.Submit(alert("late", domain.SeverityHigh)), domain.ErrClosed)
}

func TestSubmitQueueFull(t *testing.T) {
	opts := testOptions()
	opts.QueueCapacity = 1
	g := New(nil, nil, nil, testPolicy(1), opts, discardLogger())

	require.NoError(t, g.Submit(alert("m1", domain.SeverityHigh)))
	assert.ErrorIs(t, g.Submit(alert("m2", domain.SeverityHigh)), domain.ErrQueueFull)
	assert.Equal(t, int64(1), g.Stats().QueueDropped)
}

func TestConfigureSwapsPolicy(t *testing.T) {
	ch := &fakeChannel{name: "console"}
	limiter := NewTokenBucket(100, time.Hour, nil)
	g := New([]Channel{ch}, limiter, nil, testPolicy(100), testOptions(), discardLogger())

	p := testPolicy(100)
	p.Floors = map[string]domain.Severity{"console": domain.SeverityCritical}
	g.Configure(p)

	published := runGate(t, g, alert("m1", domain.SeverityHigh))
	assert.Empty(t, published)
	assert.Equal(t, int64(1), g.Stats().BelowSeverity)
}
