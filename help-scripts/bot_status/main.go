package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type snapshot struct {
	Time            time.Time  `json:"time"`
	Market          string     `json:"market"`
	WindowEnd       time.Time  `json:"windowEnd"`
	PriceToBeat     float64    `json:"priceToBeat"`
	AssetPrice      float64    `json:"assetPrice"`
	UpPrice         float64    `json:"upPrice"`
	DownPrice       float64    `json:"downPrice"`
	Source          string     `json:"source"`
	StreamConnected bool       `json:"streamConnected"`
	Signal          *signal    `json:"signal"`
	Positions       []position `json:"positions"`
	SessionPnL      float64    `json:"sessionPnl"`
}

type signal struct {
	Direction string  `json:"Direction"`
	Strength  int     `json:"Strength"`
	Score     float64 `json:"Score"`
	Regime    string  `json:"Regime"`
	Phase     string  `json:"Phase"`
}

type position struct {
	Direction  string  `json:"Direction"`
	Shares     float64 `json:"Shares"`
	EntryPrice float64 `json:"EntryPrice"`
	Source     string  `json:"Source"`
}

func main() {
	defaultAddr := os.Getenv("RADAR_STATUS_ADDR")
	if defaultAddr == "" {
		defaultAddr = "127.0.0.1:8787"
	}

	addr := flag.String("addr", defaultAddr, "status server address or URL")
	jsonOut := flag.Bool("json", false, "print raw JSON")
	timeout := flag.Duration("timeout", 5*time.Second, "HTTP timeout")
	flag.Parse()

	url := strings.TrimSpace(*addr)
	if url == "" {
		fmt.Fprintln(os.Stderr, "status address is empty")
		os.Exit(1)
	}
	if !strings.Contains(url, "://") {
		url = "http://" + url
	}
	url = strings.TrimRight(url, "/") + "/status"

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read response: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "status request error: %s\n%s\n", resp.Status, string(body))
		os.Exit(1)
	}
	if *jsonOut {
		fmt.Println(string(body))
		return
	}

	var snap snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Time: %s\n", formatTime(snap.Time))
	fmt.Printf("Market: %s (closes %s, price to beat %.2f)\n",
		snap.Market, formatTime(snap.WindowEnd), snap.PriceToBeat)
	fmt.Printf("Prices: asset=%.2f up=%.3f down=%.3f source=%s connected=%t\n",
		snap.AssetPrice, snap.UpPrice, snap.DownPrice, snap.Source, snap.StreamConnected)

	if snap.Signal == nil {
		fmt.Println("Signal: none")
	} else {
		fmt.Printf("Signal: %s strength=%d score=%.3f regime=%s phase=%s\n",
			snap.Signal.Direction, snap.Signal.Strength, snap.Signal.Score,
			snap.Signal.Regime, snap.Signal.Phase)
	}

	if len(snap.Positions) == 0 {
		fmt.Println("Positions: none")
	} else {
		for _, pos := range snap.Positions {
			fmt.Printf("Position: %s %.0f shares @ %.3f (%s)\n",
				pos.Direction, pos.Shares, pos.EntryPrice, pos.Source)
		}
	}

	fmt.Printf("Session PnL: %.4f\n", snap.SessionPnL)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.UTC().Format(time.RFC3339)
}
