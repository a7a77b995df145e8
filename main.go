package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"polyradar/binance"
	"polyradar/config"
	"polyradar/daemon"
	"polyradar/indicators"
	"polyradar/interfaces"
	"polyradar/logging"
	"polyradar/models"
	"polyradar/polymarket"
	"polyradar/recorder"
	"polyradar/scheduler"
	"polyradar/stats"
	"polyradar/status"
	"polyradar/strategy"
	"polyradar/stream"
	"polyradar/trade"
)

// session wires the feed, the signal engine and the trade controller
// together for one run of the radar. The active market rotates as
// windows expire; everything else lives for the whole process.
type session struct {
	cfg        *config.Config
	logger     logging.LoggerInterface
	feed       *stream.Feed
	assets     interfaces.MarketData
	gateway    *polymarket.Client
	engine     *strategy.Engine
	controller *trade.Controller
	recorder   interfaces.Recorder
	sched      *scheduler.Scheduler
	board      *status.Board
	statusSrv  *http.Server

	mu            sync.Mutex
	market        *models.Market
	cancelMonitor chan struct{}

	trading atomic.Bool
}

func initLogging(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.NewLogger(
		cfg.LogFile,
		cfg.LogMaxSize,
		cfg.LogMaxBackups,
		cfg.LogMaxAge,
		cfg.LogCompress,
		logging.LogLevel(cfg.LogLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func newSession(cfg *config.Config, logger logging.LoggerInterface) (*session, error) {
	var rec interfaces.Recorder
	if cfg.DBEnabled {
		sqlRec, err := recorder.NewSQLiteRecorder(cfg.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open recorder: %w", err)
		}
		rec = sqlRec
	} else {
		rec = &recorder.Noop{}
	}

	assets := binance.NewClient(logger)
	gateway := polymarket.NewClient(cfg, logger)

	return &session{
		cfg:        cfg,
		logger:     logger,
		feed:       stream.NewFeed(cfg, assets, logger),
		assets:     assets,
		gateway:    gateway,
		engine:     strategy.NewEngine(cfg, logger),
		controller: trade.NewController(cfg, gateway, rec, logger),
		recorder:   rec,
		sched:      scheduler.New(logger),
		board:      &status.Board{},
	}, nil
}

func (s *session) currentMarket() *models.Market {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.market
}

// rotate closes out the expiring window and discovers the next one.
// Called at startup with a nil market and again whenever the active
// window runs out of time.
func (s *session) rotate(ctx context.Context) {
	s.mu.Lock()
	old := s.market
	s.market = nil
	cancelMon := s.cancelMonitor
	s.cancelMonitor = nil
	s.mu.Unlock()

	if cancelMon != nil {
		close(cancelMon)
	}

	if old != nil {
		if closed := s.controller.CloseAll(ctx, old); closed > 0 {
			s.logger.Info("Closed %.0f shares at window end for %s", closed, old.Slug)
		}
		s.controller.CloseAllTracked(ctx, old)
		s.engine.Reset()
	}

	market, err := s.gateway.FindCurrentMarket(ctx, s.cfg.Asset, s.cfg.WindowMins)
	if err != nil {
		s.logger.Error("Market lookup failed: %v", err)
		return
	}

	if open, err := s.assets.PriceAt(ctx, s.cfg.Symbol, market.WindowStart.UnixMilli()); err == nil {
		market.PriceToBeat = open
	} else if last, perr := s.assets.Price(ctx, s.cfg.Symbol); perr == nil {
		s.logger.Warning("Window-open price unavailable for %s, using last trade: %v", market.Slug, err)
		market.PriceToBeat = last
	} else {
		s.logger.Warning("Price-to-beat unavailable for %s: %v", market.Slug, err)
	}

	if err := s.controller.Sync(ctx, market); err != nil {
		s.logger.Warning("Initial position sync failed: %v", err)
	}

	s.mu.Lock()
	s.market = market
	s.mu.Unlock()

	s.logger.Info("Active market %s — window closes %s, price to beat %.2f",
		market.Slug, market.WindowEnd.Format(time.RFC3339), market.PriceToBeat)
}

type quoteResult struct {
	direction models.Direction
	price     float64
	err       error
}

// fetchQuotes pulls both contract prices concurrently. Either failure
// fails the pair; a signal computed from one stale side is worse than
// no signal.
func (s *session) fetchQuotes(ctx context.Context, market *models.Market) (float64, float64, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.FetchTimeoutSec)*time.Second)
	defer cancel()

	results := make(chan quoteResult, 2)
	for _, req := range []struct {
		direction models.Direction
		tokenID   string
	}{
		{models.DirectionUp, market.UpTokenID},
		{models.DirectionDown, market.DownTokenID},
	} {
		go func(direction models.Direction, tokenID string) {
			price, err := s.gateway.Quote(fetchCtx, tokenID, "BUY")
			results <- quoteResult{direction, price, err}
		}(req.direction, req.tokenID)
	}

	var up, down float64
	for i := 0; i < 2; i++ {
		res := <-results
		if res.err != nil {
			return 0, 0, fmt.Errorf("%s quote: %w", res.direction, res.err)
		}
		if res.direction == models.DirectionUp {
			up = res.price
		} else {
			down = res.price
		}
	}
	return up, down, nil
}

func buildSnapshot(candles []models.Candle, cfg *config.Config) *models.IndicatorSnapshot {
	regime, adx := indicators.DetectRegime(candles, cfg.ADXPeriod)
	macd := indicators.MACD(candles, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	vwap := indicators.VWAP(candles)
	bb := indicators.Bollinger(candles, cfg.BBPeriod, cfg.BBStd)

	return &models.IndicatorSnapshot{
		RSI:           indicators.RSI(candles, cfg.RSIPeriod),
		ATR:           indicators.ATR(candles),
		ADX:           adx,
		Regime:        regime,
		MACDLine:      macd.Line,
		MACDSignal:    macd.Signal,
		MACDHist:      macd.Hist,
		MACDHistDelta: macd.HistDelta,
		VWAP:          vwap.VWAP,
		VWAPPos:       vwap.Pos,
		VWAPSlope:     vwap.Slope,
		BBUpper:       bb.Upper,
		BBMid:         bb.Middle,
		BBLower:       bb.Lower,
		BBBandwidth:   bb.Bandwidth,
		BBPos:         bb.Pos,
		BBSqueeze:     bb.Squeeze,
	}
}

// evaluate runs one radar cycle: read candles, compute indicators and
// the weighted signal, record it, and hand strong signals to the trade
// path when auto trading is on.
func (s *session) evaluate(ctx context.Context) {
	now := time.Now()

	market := s.currentMarket()
	if market == nil || market.Remaining(now) <= 0 {
		s.rotate(ctx)
		if market = s.currentMarket(); market == nil {
			return
		}
	}

	candles, source, err := s.feed.Candles(ctx, s.cfg.MaxCandles)
	if err != nil {
		s.logger.Warning("No candles this cycle: %v", err)
		return
	}
	if len(candles) == 0 {
		s.logger.Warning("Empty candle batch from %s, skipping cycle", source)
		return
	}
	assetPrice := candles[len(candles)-1].Close

	upPrice, downPrice, err := s.fetchQuotes(ctx, market)
	if err != nil {
		s.logger.Warning("Quote fetch failed: %v", err)
		return
	}

	snap := buildSnapshot(candles, s.cfg)
	assetTrend := indicators.AnalyzeTrend(candles)
	phase, minStrength := strategy.Phase(market.Remaining(now), float64(market.WindowMins), s.cfg)

	s.engine.Observe(models.HistorySample{
		Timestamp:  now,
		UpPrice:    upPrice,
		DownPrice:  downPrice,
		AssetPrice: assetPrice,
	})

	sig := s.engine.Compute(upPrice, downPrice, assetPrice, snap, assetTrend, phase)
	if sig == nil {
		return
	}

	scenario := strategy.DetectScenario(sig)
	s.logger.Info("[%s] %s %d (score %.3f, regime %s, phase %s, src %s, asset %.2f, up %.3f/down %.3f)",
		scenario, sig.Direction, sig.Strength, sig.Score, sig.Regime, phase, source, assetPrice, upPrice, downPrice)
	s.logger.Debug("Components: mom %.3f div %.3f sr %.3f macd %.3f vwap %.3f bb %.3f",
		sig.Components.Momentum, sig.Components.Divergence, sig.Components.SR,
		sig.Components.MACD, sig.Components.VWAP, sig.Components.BB)

	if err := s.recorder.RecordSignal(sig, *snap, upPrice, downPrice, assetPrice); err != nil {
		s.logger.Warning("Record signal: %v", err)
	}

	connected, _, _ := s.feed.Status(ctx)
	s.board.Publish(status.Snapshot{
		Time:            now,
		Market:          market.Slug,
		WindowEnd:       market.WindowEnd,
		PriceToBeat:     market.PriceToBeat,
		AssetPrice:      assetPrice,
		UpPrice:         upPrice,
		DownPrice:       downPrice,
		Source:          source,
		StreamConnected: connected,
		Signal:          sig,
		Indicators:      snap,
		Positions:       s.controller.Positions(),
		SessionPnL:      s.controller.SessionPnL(),
	})

	if !s.cfg.AutoTrade || sig.Direction == models.DirectionNeutral || sig.Suggestion == nil {
		return
	}
	if sig.Strength < minStrength {
		s.logger.Debug("Strength %d below %s floor %d, no entry", sig.Strength, phase, minStrength)
		return
	}
	s.enter(ctx, market, sig)
}

// enter runs the buy-monitor-close cycle in the background so the
// radar keeps evaluating while a position is open. One position at a
// time; further entries are skipped until the monitor finishes.
func (s *session) enter(ctx context.Context, market *models.Market, sig *models.Signal) {
	if !s.trading.CompareAndSwap(false, true) {
		s.logger.Debug("Trade already in flight, skipping entry")
		return
	}

	cancelMon := make(chan struct{})
	s.mu.Lock()
	s.cancelMonitor = cancelMon
	s.mu.Unlock()

	go func() {
		defer s.trading.Store(false)

		res, msg := s.controller.Buy(ctx, market, sig.Direction, s.cfg.TradeAmount)
		if res == nil {
			s.logger.Info("Entry skipped: %s", msg)
			return
		}

		pos := models.Position{
			Direction:  sig.Direction,
			Shares:     res.Shares,
			EntryPrice: res.Price,
			OpenedAt:   time.Now(),
			Source:     models.SourceLocal,
		}
		outcome, exitPrice := s.controller.MonitorTPSL(
			ctx, market, pos, sig.Suggestion.TakeProfit, sig.Suggestion.StopLoss, cancelMon)
		s.logger.Info("Monitor done: %s at %.3f (entry %.3f, %s %.0f shares)",
			outcome, exitPrice, res.Price, sig.Direction, res.Shares)

		if outcome == models.OutcomeCancel {
			// Rotation owns the close in this case.
			return
		}
		if closed := s.controller.CloseAll(ctx, market); closed > 0 {
			s.logger.Info("Closed %.0f shares after %s", closed, outcome)
		}
		s.controller.CloseAllTracked(ctx, market)
	}()
}

func (s *session) logStats() {
	summary := stats.Compute(s.controller.Trades())
	if summary.Trades == 0 {
		return
	}
	s.logger.Info("Session: %d trades, %d/%d W/L (%.1f%%), pnl %.2f, pf %.2f, maxdd %.2f",
		summary.Trades, summary.Wins, summary.Losses, summary.WinRate,
		summary.TotalPnL, summary.ProfitFactor, summary.MaxDrawdown)
}

func (s *session) run(ctx context.Context) error {
	s.feed.Start(ctx)
	s.statusSrv = status.StartServer(s.cfg.StatusAddr, s.board, s.logger)

	if bal, err := s.gateway.Balance(ctx); err != nil {
		s.logger.Warning("Balance check failed: %v", err)
	} else {
		s.logger.Info("Init balance: %.2f USDC", bal)
	}

	s.rotate(ctx)

	if err := s.sched.Register("0 * * * * *", "position-sync", func() {
		if market := s.currentMarket(); market != nil {
			if err := s.controller.Sync(context.Background(), market); err != nil {
				s.logger.Warning("Scheduled sync failed: %v", err)
			}
		}
	}); err != nil {
		return fmt.Errorf("register sync job: %w", err)
	}
	if err := s.sched.Register("0 */10 * * * *", "session-stats", s.logStats); err != nil {
		return fmt.Errorf("register stats job: %w", err)
	}
	s.sched.Start()

	ticker := time.NewTicker(time.Duration(s.cfg.CycleSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.evaluate(ctx)
		}
	}
}

// shutdown flushes what the run loop left behind. It gets its own
// context because the run context is already cancelled by the time we
// arrive here.
func (s *session) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.sched.Stop()
	s.feed.Stop()
	status.StopServer(s.statusSrv)

	if market := s.currentMarket(); market != nil && s.cfg.AutoTrade {
		if closed := s.controller.CloseAll(ctx, market); closed > 0 {
			s.logger.Info("Closed %.0f shares on shutdown", closed)
		}
		s.controller.CloseAllTracked(ctx, market)
	}

	summary := stats.Compute(s.controller.Trades())
	s.logger.Info("Final: %d trades, %d wins, %d losses, pnl %.2f",
		summary.Trades, summary.Wins, summary.Losses, summary.TotalPnL)
	if err := s.recorder.RecordSummary(summary.Wins, summary.Losses, summary.TotalPnL); err != nil {
		s.logger.Warning("Record summary: %v", err)
	}
	if err := s.recorder.Close(); err != nil {
		s.logger.Warning("Close recorder: %v", err)
	}
}

// stripFlag removes one daemon control flag from the argument list so
// the spawned child runs in the normal foreground path.
func stripFlag(flagName string) []string {
	args := []string{}
	for _, arg := range os.Args[1:] {
		if arg != flagName {
			args = append(args, arg)
		}
	}
	return args
}

func main() {
	configPath := flag.String("config", os.Getenv("RADAR_CONFIG"), "path to YAML config file")
	debugFlag := flag.Bool("debug", false, "enable debug logs")
	daemonStart := flag.Bool("start-daemon", false, "start the radar as a background process")
	daemonStop := flag.Bool("stop-daemon", false, "stop the background process")
	daemonRestart := flag.Bool("restart-daemon", false, "restart the background process")
	flag.Parse()

	switch {
	case *daemonStart:
		if err := daemon.StartDaemon(stripFlag("-start-daemon")); err != nil {
			log.Fatalf("Failed to start daemon: %v", err)
		}
		return
	case *daemonStop:
		if err := daemon.StopDaemon(); err != nil {
			log.Fatalf("Failed to stop daemon: %v", err)
		}
		return
	case *daemonRestart:
		if err := daemon.RestartDaemon(stripFlag("-restart-daemon")); err != nil {
			log.Fatalf("Failed to restart daemon: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *debugFlag {
		cfg.LogLevel = int(logging.DEBUG)
	}

	logger, err := initLogging(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Sync()

	logger.Info("Radar starting: %s %dm windows (%s), auto trade %t",
		cfg.Asset, cfg.WindowMins, cfg.Symbol, cfg.AutoTrade)
	logger.Info("Daemon mode: %t", daemon.IsDaemon())

	sess, err := newSession(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.run(ctx); err != nil {
		logger.Error("Run loop: %v", err)
	}

	logger.Info("Shutting down...")
	sess.shutdown()
	logger.Info("Shutdown complete")
}
