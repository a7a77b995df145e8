package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"polyradar/config"
	"polyradar/logging"
	"polyradar/models"
)

type fakeMarketData struct {
	candles []models.Candle
	calls   int
	err     error
}

func (f *fakeMarketData) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

func (f *fakeMarketData) Price(ctx context.Context, symbol string) (float64, error) {
	return 0, fmt.Errorf("not implemented")
}

func (f *fakeMarketData) PriceAt(ctx context.Context, symbol string, ts int64) (float64, error) {
	return 0, fmt.Errorf("not implemented")
}

func testCandles(n int) []models.Candle {
	base := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Minute),
			Open:     100,
			High:     101,
			Low:      99,
			Close:    100.5,
			Volume:   10,
		}
	}
	return out
}

func newTestFeed(md *fakeMarketData) *Feed {
	cfg := config.Default()
	return NewFeed(cfg, md, logging.Nop{})
}

func TestCandlesDisconnectedUsesFallback(t *testing.T) {
	md := &fakeMarketData{candles: testCandles(10)}
	f := newTestFeed(md)

	got, source, err := f.Candles(context.Background(), 10)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if source != models.SourceFallback {
		t.Fatalf("source got %s want fallback", source)
	}
	if len(got) != 10 {
		t.Fatalf("got %d candles want 10", len(got))
	}
	if md.calls != 1 {
		t.Fatalf("fallback calls got %d want 1", md.calls)
	}
}

func TestFallbackReseedsBuffer(t *testing.T) {
	md := &fakeMarketData{candles: testCandles(10)}
	f := newTestFeed(md)

	if _, _, err := f.Candles(context.Background(), 10); err != nil {
		t.Fatalf("candles: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.closed) != 9 {
		t.Fatalf("closed buffer got %d want 9", len(f.closed))
	}
	if f.forming == nil {
		t.Fatalf("expected forming slot to be seeded")
	}
	if !f.forming.OpenTime.Equal(md.candles[9].OpenTime) {
		t.Fatalf("forming slot holds wrong candle")
	}
}

func TestStaleStreamFallsBack(t *testing.T) {
	md := &fakeMarketData{candles: testCandles(10)}
	f := newTestFeed(md)

	// Pretend the stream was healthy a while ago.
	f.mu.Lock()
	f.connected = true
	f.closed = testCandles(8)
	f.lastUpdate = time.Now().Add(-time.Duration(f.cfg.StreamStaleSec+5) * time.Second)
	f.mu.Unlock()

	_, source, err := f.Candles(context.Background(), 10)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if source != models.SourceFallback {
		t.Fatalf("stale stream: source got %s want fallback", source)
	}
}

func TestFreshStreamServesBuffer(t *testing.T) {
	md := &fakeMarketData{candles: testCandles(10)}
	f := newTestFeed(md)

	f.mu.Lock()
	f.connected = true
	f.closed = testCandles(8)
	f.lastUpdate = time.Now()
	f.mu.Unlock()

	got, source, err := f.Candles(context.Background(), 30)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if source != models.SourceStream {
		t.Fatalf("source got %s want stream", source)
	}
	if len(got) != 8 {
		t.Fatalf("got %d candles want 8", len(got))
	}
	if md.calls != 0 {
		t.Fatalf("fallback must not be called, got %d calls", md.calls)
	}
}

func TestFallbackErrorSurfaces(t *testing.T) {
	md := &fakeMarketData{err: fmt.Errorf("network down")}
	f := newTestFeed(md)

	_, _, err := f.Candles(context.Background(), 10)
	if err == nil {
		t.Fatalf("expected error when fallback fails")
	}
}

func TestFallbackEmptyBatchErrors(t *testing.T) {
	// A nil error with zero candles must not reach callers as a
	// usable batch.
	md := &fakeMarketData{candles: []models.Candle{}}
	f := newTestFeed(md)

	_, _, err := f.Candles(context.Background(), 10)
	if err == nil {
		t.Fatalf("expected error when fallback returns no candles")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.closed) != 0 || f.forming != nil {
		t.Fatalf("empty fallback must not touch the buffer")
	}
}

func TestNextBackoffProgression(t *testing.T) {
	base := 2 * time.Second
	max := 30 * time.Second

	// Consecutive dial failures double the wait up to the cap.
	var got []time.Duration
	cur := time.Duration(0)
	for i := 0; i < 6; i++ {
		cur = nextBackoff(cur, base, max, false)
		got = append(got, cur)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("failure %d: backoff got %v want %v", i+1, got[i], want[i])
		}
	}

	// A successful open resets the progression even from the cap.
	if d := nextBackoff(30*time.Second, base, max, true); d != base {
		t.Fatalf("after open: backoff got %v want %v", d, base)
	}
	if d := nextBackoff(base, base, max, false); d != 2*base {
		t.Fatalf("after reset then failure: backoff got %v want %v", d, 2*base)
	}
}

func TestConnectAndReadReportsOpen(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	f := newTestFeed(&fakeMarketData{})

	opened, err := f.connectAndRead(context.Background(), url)
	if !opened {
		t.Fatalf("expected opened=true for a dial that succeeded")
	}
	if err == nil {
		t.Fatalf("expected read error after server close")
	}

	// Each connection's watcher must exit with the connection.
	before := runtime.NumGoroutine()
	for i := 0; i < 5; i++ {
		f.connectAndRead(context.Background(), url)
	}
	time.Sleep(100 * time.Millisecond)
	if after := runtime.NumGoroutine(); after > before+2 {
		t.Fatalf("goroutines grew from %d to %d across reconnects", before, after)
	}
}

func TestConnectAndReadDialFailure(t *testing.T) {
	f := newTestFeed(&fakeMarketData{})

	opened, err := f.connectAndRead(context.Background(), "ws://127.0.0.1:1/ws")
	if opened {
		t.Fatalf("expected opened=false for a refused dial")
	}
	if err == nil {
		t.Fatalf("expected dial error")
	}
}

func wireKline(startMillis int64, closePrice string, closed bool) []byte {
	ev := models.KlineEvent{
		Event:  "kline",
		Symbol: "BTCUSDT",
		Kline: models.KlineData{
			StartTime: startMillis,
			Interval:  "1m",
			Open:      closePrice,
			High:      closePrice,
			Low:       closePrice,
			Close:     closePrice,
			Volume:    "1",
			Closed:    closed,
		},
	}
	b, _ := json.Marshal(ev)
	return b
}

func TestHandleMessageClosedCandleAppends(t *testing.T) {
	f := newTestFeed(&fakeMarketData{})

	f.handleMessage(wireKline(1000, "100.5", true))
	f.handleMessage(wireKline(61000, "101.5", true))

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.closed) != 2 {
		t.Fatalf("closed got %d want 2", len(f.closed))
	}
	if f.closed[1].Close != 101.5 {
		t.Fatalf("close got %f want 101.5", f.closed[1].Close)
	}
	if f.forming != nil {
		t.Fatalf("forming slot must be cleared after a closed candle")
	}
}

func TestHandleMessageFormingReplaces(t *testing.T) {
	f := newTestFeed(&fakeMarketData{})

	f.handleMessage(wireKline(1000, "100.5", false))
	f.handleMessage(wireKline(1000, "100.8", false))

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.closed) != 0 {
		t.Fatalf("closed got %d want 0", len(f.closed))
	}
	if f.forming == nil || f.forming.Close != 100.8 {
		t.Fatalf("forming slot not updated: %+v", f.forming)
	}
}

func TestHandleMessageRejectsOutOfOrder(t *testing.T) {
	f := newTestFeed(&fakeMarketData{})

	f.handleMessage(wireKline(61000, "101.5", true))
	// Older and duplicate open times must be dropped.
	f.handleMessage(wireKline(1000, "100.5", true))
	f.handleMessage(wireKline(61000, "101.5", true))

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.closed) != 1 {
		t.Fatalf("closed got %d want 1", len(f.closed))
	}
}

func TestHandleMessageMalformedDropped(t *testing.T) {
	f := newTestFeed(&fakeMarketData{})

	f.handleMessage([]byte("{not json"))
	f.handleMessage([]byte(`{"e":"trade"}`))

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.closed) != 0 || f.forming != nil {
		t.Fatalf("malformed messages must not touch the buffer")
	}
}

func TestBufferEvictsOldest(t *testing.T) {
	f := newTestFeed(&fakeMarketData{})
	f.cfg.MaxCandles = 5

	for i := 0; i < 8; i++ {
		f.handleMessage(wireKline(int64(i)*60000+1000, "100", true))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.closed) != 5 {
		t.Fatalf("buffer got %d want 5", len(f.closed))
	}
	// Oldest entries evicted, newest kept.
	want := time.UnixMilli(7*60000 + 1000)
	if !f.closed[4].OpenTime.Equal(want) {
		t.Fatalf("newest candle wrong: %v", f.closed[4].OpenTime)
	}
}
