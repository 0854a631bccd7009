package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sectorwatch/internal/config"
	"sectorwatch/internal/dashboard"
	"sectorwatch/internal/gateway"
	"sectorwatch/internal/util"
)

const version = "0.1.0"

// maxSymbolChecks bounds concurrent symbol lookups. All of them still share
// the client's rate limiter.
const maxSymbolChecks = 4

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sector-cli <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                       Print the CLI and gateway versions\n")
		fmt.Fprintf(os.Stderr, "  account                       Show the terminal account summary\n")
		fmt.Fprintf(os.Stderr, "  positions                     List open positions\n")
		fmt.Fprintf(os.Stderr, "  tick SYMBOL                   Show the current quote\n")
		fmt.Fprintf(os.Stderr, "  ohlc SYMBOL [TF] [COUNT]      Show recent bars (default D1 10)\n")
		fmt.Fprintf(os.Stderr, "  symbols [SYMBOL...]           Check that symbols resolve (default: configured sectors)\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}
	cmd, args := os.Args[1], os.Args[2:]

	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		flag.Usage()
		return
	}

	cfgPath := "config/sectorwatch.yaml"
	if p := os.Getenv("SECTORWATCH_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	client := gateway.New(gateway.OptionsFromConfig(cfg), cfg.Credentials(), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "version":
		err = runVersion(ctx, client)
	case "account":
		err = runAccount(ctx, client)
	case "positions":
		err = runPositions(ctx, client)
	case "tick":
		err = runTick(ctx, client, args)
	case "ohlc":
		err = runOHLC(ctx, client, args)
	case "symbols":
		symbols := args
		if len(symbols) == 0 {
			for _, s := range cfg.Dashboard.Sectors {
				symbols = append(symbols, s.Symbol)
			}
			symbols = append(symbols, cfg.Dashboard.Benchmark)
		}
		err = runSymbols(ctx, client, symbols)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func runVersion(ctx context.Context, client *gateway.Client) error {
	fmt.Printf("sector-cli %s\n", version)

	res, err := client.Request(ctx, "version", http.MethodGet, nil)
	if err != nil {
		return err
	}
	rec, err := res.Object()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("gateway %-12s %v\n", k, rec[k])
	}
	return nil
}

func runAccount(ctx context.Context, client *gateway.Client) error {
	a, err := client.GetAccountInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Login:       %d\n", a.Login)
	fmt.Printf("Server:      %s\n", a.Server)
	fmt.Printf("Currency:    %s\n", a.Currency)
	fmt.Printf("Leverage:    1:%d\n", a.Leverage)
	fmt.Printf("Balance:     %.2f\n", a.Balance)
	fmt.Printf("Equity:      %.2f\n", a.Equity)
	fmt.Printf("Margin:      %.2f\n", a.Margin)
	fmt.Printf("Free margin: %.2f\n", a.FreeMargin)
	fmt.Printf("Profit:      %.2f\n", a.Profit)
	return nil
}

func runPositions(ctx context.Context, client *gateway.Client) error {
	positions, err := client.GetPositions(ctx)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		fmt.Println("no open positions")
		return nil
	}
	fmt.Printf("%-12s %-14s %-6s %8s %12s %12s %12s\n",
		"Ticket", "Symbol", "Side", "Volume", "Open", "Current", "Profit")
	for _, p := range positions {
		fmt.Printf("%-12d %-14s %-6s %8.2f %12s %12s %12.2f\n",
			p.Ticket, p.Symbol, p.Side, p.Volume,
			dashboard.FormatPrice(p.PriceOpen), dashboard.FormatPrice(p.PriceCurrent), p.Profit)
	}
	return nil
}

func runTick(ctx context.Context, client *gateway.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: sector-cli tick SYMBOL")
	}
	t, err := client.GetTick(ctx, args[0])
	if err != nil {
		return err
	}
	if !t.Quoted() {
		return fmt.Errorf("%s: quote has no bid/ask", args[0])
	}
	fmt.Printf("%s  bid %s  ask %s  mid %s  volume %s",
		args[0], dashboard.FormatPrice(t.Bid), dashboard.FormatPrice(t.Ask),
		dashboard.FormatPrice(t.Mid()), dashboard.FormatVolume(t.Volume))
	if !t.Time.IsZero() {
		fmt.Printf("  at %s", t.Time.Format(time.RFC3339))
	}
	fmt.Println()
	return nil
}

func runOHLC(ctx context.Context, client *gateway.Client, args []string) error {
	if len(args) < 1 || len(args) > 3 {
		return fmt.Errorf("usage: sector-cli ohlc SYMBOL [TF] [COUNT]")
	}
	symbol, tf, count := args[0], "D1", 10
	if len(args) > 1 {
		tf = strings.ToUpper(args[1])
	}
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid count %q", args[2])
		}
		count = n
	}

	bars, err := client.GetOHLC(ctx, symbol, tf, count)
	if err != nil {
		return err
	}
	fmt.Printf("%-20s %10s %10s %10s %10s %10s\n", "Time", "Open", "High", "Low", "Close", "Volume")
	for _, b := range bars {
		fmt.Printf("%-20s %10.2f %10.2f %10.2f %10.2f %10s\n",
			time.Unix(b.Time, 0).UTC().Format("2006-01-02 15:04"),
			b.Open, b.High, b.Low, b.Close, dashboard.FormatVolume(b.Volume))
	}
	return nil
}

// runSymbols resolves each symbol concurrently and reports the ones the
// terminal does not know. Lookups are independent; a failure of one does
// not cancel the others.
func runSymbols(ctx context.Context, client *gateway.Client, symbols []string) error {
	if err := client.Connect(ctx); err != nil {
		return err
	}

	results := make([]error, len(symbols))
	var g errgroup.Group
	g.SetLimit(maxSymbolChecks)
	for i, sym := range symbols {
		g.Go(func() error {
			_, results[i] = client.GetSymbolInfo(ctx, sym)
			return nil
		})
	}
	g.Wait()

	missing := 0
	for i, sym := range symbols {
		if results[i] != nil {
			missing++
			fmt.Printf("%-14s MISSING  %v\n", sym, results[i])
			continue
		}
		fmt.Printf("%-14s ok\n", sym)
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d symbols unavailable", missing, len(symbols))
	}
	return nil
}
