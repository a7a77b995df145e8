package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type closeEvent struct {
	Time      time.Time
	Direction string
	Shares    float64
	Price     float64
	PnL       float64
}

func fetchCloses(db *sql.DB, start, end int64) ([]closeEvent, error) {
	rows, err := db.Query(
		`SELECT timestamp, direction, shares, price, pnl
		 FROM trade_events
		 WHERE action = 'CLOSE' AND timestamp BETWEEN ? AND ?
		 ORDER BY timestamp`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []closeEvent
	for rows.Next() {
		var ts int64
		var ev closeEvent
		if err := rows.Scan(&ts, &ev.Direction, &ev.Shares, &ev.Price, &ev.PnL); err != nil {
			return nil, err
		}
		ev.Time = time.Unix(ts, 0)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func main() {
	dbPath := flag.String("db", "polyradar.db", "path to the recorder database")
	hours := flag.Int("hours", 24, "lookback window in hours")
	today := flag.Bool("today", false, "limit to current calendar day (local time); overrides -hours")
	outCSV := flag.String("out", "", "path to write CSV report (empty to disable)")
	flag.Parse()

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	now := time.Now()
	end := now.Unix()
	start := now.Add(-time.Duration(*hours) * time.Hour).Unix()
	if *today {
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		start = startOfDay.Unix()
	}

	events, err := fetchCloses(db, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error fetching closed trades: %v\n", err)
		os.Exit(1)
	}

	if len(events) == 0 {
		fmt.Println("No closed positions in the selected window.")
		return
	}

	windowLabel := fmt.Sprintf("last %dh", *hours)
	if *today {
		windowLabel = "today"
	}

	fmt.Printf("Closed PnL %s\n", windowLabel)
	fmt.Printf("%-19s %-5s %-10s %-10s %-10s\n", "Time", "Side", "Shares", "Exit", "PnL")

	var csvBuilder strings.Builder
	if *outCSV != "" {
		csvBuilder.WriteString("time,side,shares,exit,pnl\n")
	}

	var total, wins, losses float64
	for _, ev := range events {
		t := ev.Time.In(time.Local).Format("2006-01-02 15:04")

		total += ev.PnL
		if ev.PnL >= 0 {
			wins += ev.PnL
		} else {
			losses += ev.PnL
		}

		fmt.Printf("%-19s %-5s %-10.0f %-10.3f %-10.4f\n",
			t, ev.Direction, ev.Shares, ev.Price, ev.PnL)

		if *outCSV != "" {
			fmt.Fprintf(&csvBuilder, "%s,%s,%.0f,%.3f,%.4f\n",
				t, ev.Direction, ev.Shares, ev.Price, ev.PnL)
		}
	}
	fmt.Printf("\nTotal PnL: %.4f (wins %.4f, losses %.4f)\n", total, wins, losses)

	if *outCSV != "" {
		if err := os.WriteFile(*outCSV, []byte(csvBuilder.String()), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("CSV saved to %s\n", *outCSV)
	}
}
