// Package main generates the offline trading performance report:
// REPORT.md plus leaderboard.csv, built from the stores the trader
// writes to.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"solana-copy-trader/internal/marketdata"
	"solana-copy-trader/internal/reporting"
	"solana-copy-trader/internal/storage"
	chstore "solana-copy-trader/internal/storage/clickhouse"
	"solana-copy-trader/internal/storage/migrations"
	pgstore "solana-copy-trader/internal/storage/postgres"
)

func main() {
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	flag.Parse()

	ctx := context.Background()

	if *postgresDSN == "" || *clickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn and --clickhouse-dsn are required")
		os.Exit(1)
	}

	walletStore, auditStore, positionStore, orderStore, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	prices := marketdata.NewClient()
	generator := reporting.NewGenerator(walletStore, auditStore, positionStore, orderStore, prices)

	report, err := generator.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	mdPath := filepath.Join(*outputDir, "REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", mdPath, err)
		os.Exit(1)
	}

	csvPath := filepath.Join(*outputDir, "leaderboard.csv")
	if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.Leaderboard)), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", csvPath, err)
		os.Exit(1)
	}

	fmt.Printf("Report generated: %s, %s\n", mdPath, csvPath)
	fmt.Printf("Wallets: %d, swaps: %d, positions: %d open / %d closed\n",
		report.Summary.TrackedWallets, report.Summary.RecordedSwaps,
		report.Summary.OpenPositions, report.Summary.ClosedPositions)
}

func createStores(ctx context.Context, postgresDSN, clickhouseDSN string) (
	storage.TrackedWalletStore,
	storage.SwapAuditStore,
	storage.PositionStore,
	storage.LimitOrderStore,
	func(),
	error,
) {
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return pgstore.NewTrackedWalletStore(pool),
		chstore.NewSwapAuditStore(chConn),
		pgstore.NewPositionStore(pool),
		pgstore.NewLimitOrderStore(pool),
		cleanup,
		nil
}
