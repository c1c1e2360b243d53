package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/APARENCE/binance-options-visualizer-25/config"
	"github.com/APARENCE/binance-options-visualizer-25/internal/adapters/binancefeed"
	"github.com/APARENCE/binance-options-visualizer-25/internal/adapters/logger"
	"github.com/APARENCE/binance-options-visualizer-25/internal/adapters/sqlite"
	"github.com/APARENCE/binance-options-visualizer-25/internal/adapters/synthfeed"
	"github.com/APARENCE/binance-options-visualizer-25/internal/adapters/webui"
	"github.com/APARENCE/binance-options-visualizer-25/internal/app"
	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
	"github.com/APARENCE/binance-options-visualizer-25/internal/feed"
	"github.com/APARENCE/binance-options-visualizer-25/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Trade Log)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade repository")
		log.Fatalf("FATAL: Failed to initialize trade repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing trade repository")
		}
	}()
	appLogger.Info(context.Background(), "Trade repository initialized", map[string]interface{}{"path": cfg.DBPath})

	// 4. Initialize Feed Sources. Two independent RNGs so the synthetic walk
	// and the settlement perturbation never share a rand.Rand across goroutines.
	seed := cfg.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	synthSource, err := synthfeed.New(synthfeed.Config{
		Logger:          appLogger,
		Rand:            rand.New(rand.NewSource(seed)),
		BackfillCandles: cfg.BackfillCandles,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize synthetic feed")
		log.Fatalf("FATAL: Failed to initialize synthetic feed: %v", err)
	}
	binanceSource, err := binancefeed.New(binancefeed.Config{
		Logger:          appLogger,
		ReconnectDelay:  cfg.ReconnectDelay,
		BackfillCandles: cfg.BackfillCandles,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance feed")
		log.Fatalf("FATAL: Failed to initialize Binance feed: %v", err)
	}

	// 5. Initialize the presentation hub and the feed manager behind it
	hub := webui.NewHub(appLogger)
	feedManager, err := feed.NewManager(feed.ManagerConfig{
		Logger:   appLogger,
		Chart:    hub,
		Notifier: hub,
		Sources: map[domain.AssetClass]ports.FeedSource{
			domain.ClassForex:  synthSource,
			domain.ClassCrypto: binanceSource,
		},
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize feed manager")
		log.Fatalf("FATAL: Failed to initialize feed manager: %v", err)
	}

	// 6. Initialize Application Service
	service, err := app.NewTradingService(
		cfg,
		appLogger,
		feedManager,
		repo,
		hub,
		hub,
		hub,
		rand.New(rand.NewSource(seed+1)),
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}

	// 7. Initialize the shell server
	server, err := webui.NewServer(cfg.ListenAddr, appLogger, hub, service)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize shell server")
		log.Fatalf("FATAL: Failed to initialize shell server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := service.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to start trading service")
		log.Fatalf("FATAL: Failed to start trading service: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	// 8. Wait for termination
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		appLogger.Info(ctx, "Received signal, shutting down", map[string]interface{}{"signal": sig.String()})
	case err := <-serverErr:
		if err != nil {
			appLogger.Error(ctx, err, "Shell server failed")
		}
	}

	// 9. Graceful shutdown: stop new resolutions, tear the feed down, drain HTTP
	service.Shutdown(ctx)
	feedManager.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(ctx, err, "Error shutting down shell server")
	}

	printSessionSummary(ctx, appLogger, repo, cfg.HistoryLimit)
	appLogger.Info(ctx, "Shutdown complete")
}

// printSessionSummary renders the session's trade log to stdout before the
// in-memory store disappears with the process.
func printSessionSummary(ctx context.Context, appLogger ports.Logger, repo ports.TradeRepository, limit int) {
	trades, err := repo.Recent(ctx, limit)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to load trades for session summary")
		return
	}
	stats, err := repo.Stats(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to load stats for session summary")
		return
	}
	if stats.Total == 0 {
		fmt.Println("No trades this session.")
		return
	}

	fmt.Printf("\nSession summary: %d trades, %d won, %d lost, %.1f%% win rate\n",
		stats.Total, stats.Won, stats.Lost, stats.WinRate)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Opened", "Symbol", "Dir", "Stake", "Entry", "Exit", "Result")
	for _, t := range trades {
		result := string(t.Status)
		exit := "-"
		if !t.IsActive() {
			exit = t.Class.FormatPrice(t.ExitPrice)
		}
		table.Append(
			t.OpenedAt.Format("15:04:05"),
			t.Symbol,
			string(t.Direction),
			fmt.Sprintf("%.2f", t.Stake),
			t.Class.FormatPrice(t.EntryPrice),
			exit,
			result,
		)
	}
	table.Render()
}
