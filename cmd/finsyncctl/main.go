package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"finsync/internal/amqp"
	"finsync/internal/budget"
	"finsync/internal/cli"
	"finsync/internal/core"
	"finsync/internal/services"
	syncpkg "finsync/internal/sync"
)

const usage = `usage: finsyncctl <command> [flags]

commands:
  sync         publish a sync request for a running daemon
  add          record a local transaction
  set-budget   create or replace a category budget
  clear-cache  wipe the local cache (next sync repopulates it)
`

func main() {
	cli.LoadEnvFile()
	cli.SetupLogger()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "sync":
		err = runSync(ctx, os.Args[2:])
	case "add":
		err = runAdd(ctx, os.Args[2:])
	case "set-budget":
		err = runSetBudget(ctx, os.Args[2:])
	case "clear-cache":
		err = runClearCache(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func runSync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	entity := fs.String("entity", "transactions", "entity type to sync (transactions or budgets)")
	reason := fs.String("reason", "manual", "reason recorded on the sync request")
	fs.Parse(args)

	if !syncpkg.Entity(*entity).IsValid() {
		return fmt.Errorf("unknown entity %q", *entity)
	}

	cfg := cli.LoadAndValidateConfig()
	if cfg.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required for the sync command")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRequestQueue, cfg.AMQPOutcomeQueue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	msg := amqp.NewSyncRequestMessage(syncpkg.Entity(*entity), *reason)
	if err := client.PublishSyncRequest(ctx, msg); err != nil {
		return err
	}

	fmt.Printf("sync requested for %s\n", *entity)
	return nil
}

func runAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	amount := fs.String("amount", "", "transaction amount (positive for spend, negative for refund)")
	category := fs.String("category", "", "transaction category")
	account := fs.String("account", "manual", "account identifier")
	description := fs.String("desc", "", "free-form description")
	fs.Parse(args)

	parsed, err := decimal.NewFromString(*amount)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", *amount, err)
	}

	svc, err := newLedgerService()
	if err != nil {
		return err
	}
	defer svc.Close()

	id, err := svc.CreateTransaction(ctx, core.Transaction{
		Amount:      parsed,
		Date:        time.Now(),
		Category:    core.Category(*category),
		AccountID:   *account,
		Description: *description,
	})
	if err != nil {
		return err
	}

	fmt.Printf("transaction %s recorded\n", id)
	return nil
}

func runSetBudget(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set-budget", flag.ExitOnError)
	category := fs.String("category", "", "budget category")
	limit := fs.String("limit", "", "monthly spend limit")
	threshold := fs.Float64("threshold", 0.8, "alert threshold as a fraction of the limit")
	fs.Parse(args)

	parsed, err := decimal.NewFromString(*limit)
	if err != nil {
		return fmt.Errorf("parse limit %q: %w", *limit, err)
	}

	svc, err := newLedgerService()
	if err != nil {
		return err
	}
	defer svc.Close()

	err = svc.SetBudget(ctx, core.Budget{
		Category:       core.Category(*category),
		MonthlyLimit:   parsed,
		AlertThreshold: *threshold,
	})
	if err != nil {
		return err
	}

	fmt.Printf("budget for %s set to %s\n", *category, parsed)
	return nil
}

func runClearCache(ctx context.Context) error {
	svc, err := newLedgerService()
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.ClearCache(ctx); err != nil {
		return err
	}

	fmt.Println("local cache cleared")
	return nil
}

// newLedgerService wires a store-backed service. AMQP is attached when
// configured so local edits trigger a reconciling sync.
func newLedgerService() (*services.LedgerService, error) {
	cfg := cli.LoadAndValidateConfig()
	store := cli.InitStore(cfg)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRequestQueue, cfg.AMQPOutcomeQueue)
		if err != nil {
			slog.Warn("AMQP unavailable, continuing without sync requests", "error", err)
			amqpClient = nil
		}
	}

	aggregator := budget.NewAggregator(store, cfg.BudgetFreshness)
	return services.NewLedgerService(store, aggregator, amqpClient), nil
}
