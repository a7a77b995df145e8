package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"polyradar/logging"
	"polyradar/models"
)

// Snapshot is the radar's last published state, served for diagnostics.
type Snapshot struct {
	Time            time.Time                 `json:"time"`
	Market          string                    `json:"market,omitempty"`
	WindowEnd       time.Time                 `json:"windowEnd,omitempty"`
	PriceToBeat     float64                   `json:"priceToBeat,omitempty"`
	AssetPrice      float64                   `json:"assetPrice,omitempty"`
	UpPrice         float64                   `json:"upPrice,omitempty"`
	DownPrice       float64                   `json:"downPrice,omitempty"`
	Source          models.Source             `json:"source,omitempty"`
	StreamConnected bool                      `json:"streamConnected"`
	Signal          *models.Signal            `json:"signal,omitempty"`
	Indicators      *models.IndicatorSnapshot `json:"indicators,omitempty"`
	Positions       []models.Position         `json:"positions,omitempty"`
	SessionPnL      float64                   `json:"sessionPnl"`
}

// Board holds the most recent snapshot for the status endpoint.
// The evaluation loop publishes; HTTP handlers read.
type Board struct {
	mu   sync.RWMutex
	snap Snapshot
}

// Publish replaces the current snapshot.
func (b *Board) Publish(snap Snapshot) {
	b.mu.Lock()
	b.snap = snap
	b.mu.Unlock()
}

// Current returns a copy of the last published snapshot.
func (b *Board) Current() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// StartServer starts a local HTTP status server for diagnostics.
// Returns nil when the address is empty or disabled.
func StartServer(addr string, board *Board, logger logging.LoggerInterface) *http.Server {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.EqualFold(addr, "off") || strings.EqualFold(addr, "disabled") {
		logger.Info("Status server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		snap := board.Current()

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			http.Error(w, "failed to encode status", http.StatusInternalServerError)
			return
		}
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Status server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server error: %v", err)
		}
	}()

	return server
}

// StopServer shuts the status server down, waiting briefly for
// in-flight requests.
func StopServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}
