// Command generate produces deterministic sample data for manual testing:
// a month of bank statement CSV plus the matching day-sheet deposits.
//
// Usage:
//
//	go run generate.go -output-dir=../generated -month=2026-01 -seed=42
//
// The generated statement contains credits that settle recorded deposits
// with a lag of up to a few business days, a configurable share of deposits
// that never settle, unclaimed credits, and exact duplicate rows so the
// import pipeline's deduplication path can be exercised end to end.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

type options struct {
	outputDir    string
	month        string
	seed         int64
	missingRatio float64
	orphanCount  int
	duplicates   int
}

type depositFixture struct {
	ID     string  `json:"id"`
	Date   string  `json:"date"`
	Total  float64 `json:"total"`
	Status string  `json:"status"`
}

func main() {
	opts := options{}
	flag.StringVar(&opts.outputDir, "output-dir", "../generated", "output directory")
	flag.StringVar(&opts.month, "month", "2026-01", "month to generate (YYYY-MM)")
	flag.Int64Var(&opts.seed, "seed", 42, "random seed")
	flag.Float64Var(&opts.missingRatio, "missing-ratio", 0.1, "share of deposits without a settling credit")
	flag.IntVar(&opts.orphanCount, "orphans", 2, "credits with no recorded deposit")
	flag.IntVar(&opts.duplicates, "duplicates", 2, "exact duplicate statement rows")
	flag.Parse()

	start, err := time.Parse("2006-01", opts.month)
	if err != nil {
		log.Fatalf("invalid -month, want YYYY-MM: %v", err)
	}

	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	rng := rand.New(rand.NewSource(opts.seed))
	deposits, statementRows := generateMonth(rng, start, opts)

	statementPath := filepath.Join(opts.outputDir, fmt.Sprintf("statement_%s.csv", opts.month))
	if err := writeStatement(statementPath, statementRows); err != nil {
		log.Fatalf("failed to write statement: %v", err)
	}

	depositsPath := filepath.Join(opts.outputDir, fmt.Sprintf("deposits_%s.json", opts.month))
	if err := writeDeposits(depositsPath, deposits); err != nil {
		log.Fatalf("failed to write deposits: %v", err)
	}

	fmt.Printf("Generated %d deposits and %d statement rows\n", len(deposits), len(statementRows))
	fmt.Printf("  %s\n  %s\n", statementPath, depositsPath)
}

func generateMonth(rng *rand.Rand, start time.Time, opts options) ([]depositFixture, [][]string) {
	var deposits []depositFixture
	var rows [][]string

	end := start.AddDate(0, 1, 0)
	sequence := 1
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		total := float64(rng.Intn(200000)+5000) / 100.0
		deposits = append(deposits, depositFixture{
			ID:     fmt.Sprintf("DEP%03d", sequence),
			Date:   day.Format("2006-01-02"),
			Total:  total,
			Status: "pending",
		})
		sequence++

		if rng.Float64() < opts.missingRatio {
			continue
		}

		// Credits settle one to four days after the deposit.
		lag := rng.Intn(4) + 1
		settled := day.AddDate(0, 0, lag)
		rows = append(rows, []string{
			settled.Format("2006-01-02"),
			"BRANCH DEPOSIT",
			fmt.Sprintf("%.2f", total),
		})
	}

	for i := 0; i < opts.orphanCount; i++ {
		day := start.AddDate(0, 0, rng.Intn(27))
		rows = append(rows, []string{
			day.Format("2006-01-02"),
			"MISC CREDIT",
			fmt.Sprintf("%.2f", float64(rng.Intn(50000)+100)/100.0),
		})
	}

	for i := 0; i < opts.duplicates && i < len(rows); i++ {
		rows = append(rows, rows[rng.Intn(len(rows))])
	}

	return deposits, rows
}

func writeStatement(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"date", "description", "amount"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeDeposits(path string, deposits []depositFixture) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(deposits)
}
