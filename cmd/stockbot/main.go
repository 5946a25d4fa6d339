package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/stockbot/internal/api"
	"github.com/kjannette/stockbot/internal/bot"
	"github.com/kjannette/stockbot/internal/config"
	"github.com/kjannette/stockbot/internal/db"
	"github.com/kjannette/stockbot/internal/external"
	"github.com/kjannette/stockbot/internal/logging"
	"github.com/kjannette/stockbot/internal/notifications"
	"github.com/kjannette/stockbot/internal/repository"
	"github.com/kjannette/stockbot/internal/schema"
)

const usage = `usage: stockbot [flags] <command> [args]

commands:
  run               sample prices, then refresh averages
  monitor           sample prices only
  averages          refresh averages only
  history           write today's history rows
  symbols           print the monitored symbols
  add <SYMBOL>      start monitoring a symbol
  remove [-all] <SYMBOL>
                    stop monitoring a symbol; -all also drops its rows
  query <SQL>       run raw SQL and print the results
  serve             start the read-only REST API
  schema            print the mirrored database schema

flags:
`

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	verbose := flag.Bool("v", false, "debug logging, overrides LOG_LEVEL")
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		return 1
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if err := cfg.Validate(log); err != nil {
		log.Error(err)
		return 1
	}
	cfg.Print(log)

	layout, err := schema.LoadLayout(cfg.SchemaLayoutFile)
	if err != nil {
		log.WithError(err).Error("schema layout")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	log.Infof("connecting to %s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)
	pool, err := db.Connect(ctx, cfg.DSN(), cfg.DBMaxConns, cfg.DBSchema)
	if err != nil {
		log.WithError(err).Error("database connection failed")
		return 1
	}
	defer func() {
		pool.Close()
		log.Debug("connection pool closed")
	}()
	if err := db.TestConnection(ctx, pool, log); err != nil {
		log.WithError(err).Error("database test query failed")
		return 1
	}

	repo := repository.NewStockRepo(pool, layout, cfg.DBSchema)

	switch cmd {
	case "serve":
		return serve(ctx, cfg, repo, log)
	case "query":
		return query(ctx, repo, strings.Join(args, " "), log)
	case "schema":
		return printSchema(ctx, cfg, repo, log)
	case "symbols":
		return printSymbols(ctx, repo, log)
	}

	if err := cfg.ValidateQuotes(); err != nil {
		log.Error(err)
		return 1
	}
	quotes, err := newQuoteSource(cfg)
	if err != nil {
		log.Error(err)
		return 1
	}
	b := bot.NewStockBot(repo, quotes, log, bot.Options{
		Layout:   layout,
		Notifier: notifications.NewSender(cfg.WebhookURL, cfg.BotName, log),
		Location: mustLocation(cfg),
	})
	b.Init(ctx, repo, cfg.DBSchema)

	switch cmd {
	case "run":
		if err := b.Run(ctx); err != nil {
			log.WithError(err).Warn("run interrupted")
		}
	case "monitor":
		b.Monitor(ctx)
	case "averages":
		b.UpdateStockAverages(ctx)
	case "history":
		b.PostStockHistory(ctx)
	case "add":
		if len(args) != 1 {
			log.Error("add takes exactly one symbol")
			return 2
		}
		if err := b.PostStock(ctx, args[0]); err != nil {
			return 1
		}
	case "remove":
		fs := flag.NewFlagSet("remove", flag.ContinueOnError)
		all := fs.Bool("all", false, "also delete the symbol's activity and history rows")
		if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
			log.Error("usage: stockbot remove [-all] <SYMBOL>")
			return 2
		}
		if err := b.RemoveStock(ctx, fs.Arg(0), *all); err != nil {
			return 1
		}
	default:
		log.Errorf("unknown command %q", cmd)
		flag.Usage()
		return 2
	}
	return 0
}

func newQuoteSource(cfg *config.Config) (external.QuoteSource, error) {
	switch cfg.QuoteProvider {
	case config.ProviderFinnhub:
		return external.NewFinnhubClient(cfg.FinnhubAPIKey, external.FinnhubOptions{
			BaseURL:           cfg.FinnhubBaseURL,
			RequestsPerMinute: cfg.QuoteRequestsPerMinute,
			Timeout:           cfg.QuoteTimeout,
		}), nil
	case config.ProviderYahoo:
		return external.NewYahooClient(), nil
	default:
		return nil, fmt.Errorf("unknown quote provider %q", cfg.QuoteProvider)
	}
}

// mustLocation is only reached after Validate has accepted the timezone.
func mustLocation(cfg *config.Config) *time.Location {
	loc, err := cfg.Location()
	if err != nil {
		return time.Local
	}
	return loc
}

func serve(ctx context.Context, cfg *config.Config, repo *repository.StockRepo, log logrus.FieldLogger) int {
	srv := api.NewServer(repo, log, api.Options{
		Port:       cfg.APIPort,
		APIKey:     cfg.APIKey,
		CORSOrigin: cfg.CORSAllowOrigin,
		Location:   mustLocation(cfg),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("API server error")
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	log.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("API shutdown error")
	}
	log.Info("API server closed")
	return 0
}

func query(ctx context.Context, repo *repository.StockRepo, sql string, log logrus.FieldLogger) int {
	if strings.TrimSpace(sql) == "" {
		log.Error("query needs SQL text")
		return 2
	}
	results, execErr := repo.ExecScript(ctx, sql)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, r := range results {
		if !r.WithRows() {
			fmt.Fprintf(w, "%s (%d rows affected)\n", r.CommandTag, r.RowsAffected)
			continue
		}
		fmt.Fprintln(w, strings.Join(r.Columns, "\t"))
		for _, row := range r.Rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		fmt.Fprintf(w, "(%d rows)\n", len(r.Rows))
	}
	if err := w.Flush(); err != nil {
		log.WithError(err).Error("write results")
		return 1
	}
	if execErr != nil {
		log.WithError(execErr).Errorf("query failed after %d statement(s)", len(results))
		return 1
	}
	return 0
}

func printSymbols(ctx context.Context, repo *repository.StockRepo, log logrus.FieldLogger) int {
	ids, err := repo.StockIDs(ctx)
	if err != nil {
		log.WithError(err).Error("load symbols")
		return 1
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return 0
}

func printSchema(ctx context.Context, cfg *config.Config, repo *repository.StockRepo, log logrus.FieldLogger) int {
	m := schema.Load(ctx, repo, cfg.DBSchema, log)
	for _, problem := range m.Check(repo.Layout()) {
		log.Warnf("schema mismatch: %s", problem)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.Schema()); err != nil {
		log.WithError(err).Error("encode schema")
		return 1
	}
	return 0
}
