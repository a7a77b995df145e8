package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"polyradar/config"
	"polyradar/interfaces"
	"polyradar/logging"
	"polyradar/models"
)

// Feed owns the candle buffer fed by the kline websocket stream. All
// buffer access goes through its mutex; the run loop is the only writer
// on the stream path, Candles may reseed on the fallback path.
type Feed struct {
	cfg      *config.Config
	fallback interfaces.MarketData
	logger   logging.LoggerInterface

	mu         sync.Mutex
	closed     []models.Candle
	forming    *models.Candle
	connected  bool
	lastUpdate time.Time
	lastErr    error
	running    bool
	loopAlive  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewFeed creates a candle feed for the configured symbol and interval.
// fallback serves synchronous fetches when the stream is not trustworthy.
func NewFeed(cfg *config.Config, fallback interfaces.MarketData, log logging.LoggerInterface) *Feed {
	return &Feed{
		cfg:      cfg,
		fallback: fallback,
		logger:   log,
	}
}

// Start launches the background stream loop. Safe to call once per feed.
func (f *Feed) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	done := make(chan struct{})

	f.mu.Lock()
	f.running = true
	f.loopAlive = true
	f.cancel = cancel
	f.done = done
	f.mu.Unlock()

	go f.run(runCtx, done)
}

// Stop terminates the stream loop and waits for it to exit.
func (f *Feed) Stop() {
	f.mu.Lock()
	f.running = false
	cancel := f.cancel
	done := f.done
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status reports connection health. If the run loop died while the feed
// is supposed to be running, it is restarted transparently.
func (f *Feed) Status(ctx context.Context) (connected bool, lastUpdate time.Time, err error) {
	f.mu.Lock()
	restart := f.running && !f.loopAlive
	connected = f.connected
	lastUpdate = f.lastUpdate
	err = f.lastErr
	f.mu.Unlock()

	if restart {
		f.logger.Warning("Stream loop is dead, restarting")
		f.Start(ctx)
	}
	return connected, lastUpdate, err
}

// Candles returns up to limit candles, newest last, with the source they
// came from. Stream data is used only while the connection is healthy:
// connected, enough candles buffered, and updated within the staleness
// bound. Otherwise a synchronous fallback fetch reseeds the buffer.
func (f *Feed) Candles(ctx context.Context, limit int) ([]models.Candle, models.Source, error) {
	f.mu.Lock()
	fresh := f.connected &&
		f.bufferLenLocked() >= f.cfg.StreamMinCandles &&
		time.Since(f.lastUpdate) < time.Duration(f.cfg.StreamStaleSec)*time.Second
	if fresh {
		out := f.snapshotLocked(limit)
		f.mu.Unlock()
		return out, models.SourceStream, nil
	}
	f.mu.Unlock()

	candles, err := f.fallback.GetKlines(ctx, f.cfg.Symbol, f.cfg.Interval, limit)
	if err != nil {
		return nil, models.SourceFallback, fmt.Errorf("fallback fetch: %w", err)
	}
	if len(candles) == 0 {
		return nil, models.SourceFallback, fmt.Errorf("fallback fetch: no candles for %s %s", f.cfg.Symbol, f.cfg.Interval)
	}
	f.reseed(candles)
	return candles, models.SourceFallback, nil
}

func (f *Feed) bufferLenLocked() int {
	n := len(f.closed)
	if f.forming != nil {
		n++
	}
	return n
}

func (f *Feed) snapshotLocked(limit int) []models.Candle {
	out := make([]models.Candle, 0, f.bufferLenLocked())
	out = append(out, f.closed...)
	if f.forming != nil {
		out = append(out, *f.forming)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// reseed replaces the buffer with fallback data: all but the newest
// candle become the closed buffer, the newest becomes the forming slot.
func (f *Feed) reseed(candles []models.Candle) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = f.closed[:0]
	f.forming = nil
	if len(candles) == 0 {
		return
	}

	closed := candles[:len(candles)-1]
	if len(closed) > f.cfg.MaxCandles {
		closed = closed[len(closed)-f.cfg.MaxCandles:]
	}
	f.closed = append(f.closed, closed...)
	last := candles[len(candles)-1]
	f.forming = &last
	f.lastUpdate = time.Now()
}

func (f *Feed) run(ctx context.Context, done chan struct{}) {
	defer func() {
		f.mu.Lock()
		f.loopAlive = false
		f.connected = false
		f.mu.Unlock()
		close(done)
	}()

	baseBackoff := time.Duration(f.cfg.ReconnectBaseSec) * time.Second
	maxBackoff := time.Duration(f.cfg.ReconnectMaxSec) * time.Second
	var backoff time.Duration
	endpoint := 0

	for {
		if ctx.Err() != nil {
			return
		}

		url := f.streamURL(f.cfg.StreamEndpoints[endpoint%len(f.cfg.StreamEndpoints)])
		endpoint++

		opened, err := f.connectAndRead(ctx, url)
		if ctx.Err() != nil {
			return
		}
		backoff = nextBackoff(backoff, baseBackoff, maxBackoff, opened)
		if err != nil {
			f.mu.Lock()
			f.connected = false
			f.lastErr = err
			f.mu.Unlock()
			f.logger.Warning("Stream disconnected: %v, reconnecting in %s", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// nextBackoff returns the wait before the next dial attempt. A
// successful open resets the progression to the base; repeated
// failures double the previous wait up to max.
func nextBackoff(cur, base, max time.Duration, opened bool) time.Duration {
	if opened || cur <= 0 {
		return base
	}
	next := 2 * cur
	if next > max {
		return max
	}
	return next
}

func (f *Feed) streamURL(base string) string {
	stream := fmt.Sprintf("%s@kline_%s", strings.ToLower(f.cfg.Symbol), f.cfg.Interval)
	return strings.TrimRight(base, "/") + "/" + stream
}

// connectAndRead dials one endpoint and pumps messages until the
// connection drops. The opened result reports whether the dial
// succeeded, so the caller can reset its backoff even when the
// connection later fails.
func (f *Feed) connectAndRead(ctx context.Context, url string) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	// Connection established: reset error state.
	f.mu.Lock()
	f.connected = true
	f.lastErr = nil
	f.mu.Unlock()
	f.logger.Info("Stream connected: %s", url)

	// Unblock ReadMessage when the context is cancelled. The watcher
	// lives only as long as this connection.
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-connDone:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		f.handleMessage(msg)
	}
}

func (f *Feed) handleMessage(msg []byte) {
	var ev models.KlineEvent
	if err := json.Unmarshal(msg, &ev); err != nil || ev.Event != "kline" {
		// Malformed or unrelated messages are dropped, the
		// connection stays up.
		return
	}

	candle := ev.Kline.Candle()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdate = time.Now()

	if !ev.Kline.Closed {
		f.forming = &candle
		return
	}

	// Closed candle: append once, keep openTime strictly increasing.
	if n := len(f.closed); n > 0 && !candle.OpenTime.After(f.closed[n-1].OpenTime) {
		return
	}
	f.closed = append(f.closed, candle)
	if len(f.closed) > f.cfg.MaxCandles {
		f.closed = f.closed[len(f.closed)-f.cfg.MaxCandles:]
	}
	f.forming = nil
}
