package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tinoosan/fxledger/internal/amort"
	"github.com/tinoosan/fxledger/internal/config"
	"github.com/tinoosan/fxledger/internal/fx"
	"github.com/tinoosan/fxledger/internal/httpapi"
	"github.com/tinoosan/fxledger/internal/quote"
	"github.com/tinoosan/fxledger/internal/resolver"
	"github.com/tinoosan/fxledger/internal/storage/memory"
	pgstore "github.com/tinoosan/fxledger/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "fxledger",
		Short:        "Foreign-currency sub-ledger service",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), amortizeCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	return cmd
}

func serve(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env is optional; real env always wins
	_ = godotenv.Load()

	logger := buildLoggerFromEnv()
	slog.SetDefault(logger)

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	quotes := quote.NewStatic()
	for _, seed := range cfg.Quotes {
		q, mode, err := seed.Quote()
		if err != nil {
			return err
		}
		quotes.Set(mode, q)
	}

	var handler http.Handler
	var closeFn func()

	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			return err
		}
		closeFn = pg.Close
		if err := applyRoleMapping(ctx, pg, cfg.Roles, logger); err != nil {
			return err
		}
		handler = httpapi.New(pg, quotes, cfg.LocalCurrency, logger).Handler()
		logger.Info("storage backend: postgres")
	} else {
		store := memory.New()
		seedDevChart(store, logger)
		mapping, err := resolveRoleCodes(ctx, store, cfg.Roles)
		if err != nil {
			return err
		}
		store.SetRoleMapping(mapping)
		handler = httpapi.New(store, quotes, cfg.LocalCurrency, logger).Handler()
		logger.Info("storage backend: memory")
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fxledger service listening", "addr", srv.Addr, "local_currency", cfg.LocalCurrency)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
	return nil
}

// applyRoleMapping resolves configured role codes against the ingested
// chart and stores the mapping.
func applyRoleMapping(ctx context.Context, pg *pgstore.Store, roles config.RoleMapping, logger *slog.Logger) error {
	if len(roles) == 0 {
		return nil
	}
	mapping, err := resolveRoleCodes(ctx, pg, roles)
	if err != nil {
		return err
	}
	if err := pg.SetRoleMapping(ctx, mapping); err != nil {
		return err
	}
	logger.Info("role mapping applied", "roles", len(mapping))
	return nil
}

type accountLister interface {
	Accounts(ctx context.Context) ([]fx.Account, error)
}

// resolveRoleCodes turns role -> ledger-code entries into role -> account-id
// entries. Codes that match no account are skipped; the resolver's fallback
// chain covers them at posting time.
func resolveRoleCodes(ctx context.Context, store accountLister, roles config.RoleMapping) (map[fx.Role]uuid.UUID, error) {
	accounts, err := store.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]uuid.UUID, len(accounts))
	for _, a := range accounts {
		byCode[a.Code] = a.ID
	}
	mapping := make(map[fx.Role]uuid.UUID, len(roles))
	for role, code := range roles {
		if id, ok := byCode[code]; ok {
			mapping[fx.Role(role)] = id
		}
	}
	return mapping, nil
}

// seedDevChart loads a minimal chart of accounts into the memory store so
// the service is usable without a bookkeeping collaborator attached. The
// codes line up with the resolver's fallback chain.
func seedDevChart(store *memory.Store, logger *slog.Logger) {
	seed := []fx.Account{
		{ID: uuid.New(), Code: resolver.FallbackCode(fx.RoleCounterpart), Name: "Cash"},
		{ID: uuid.New(), Code: resolver.FallbackCode(fx.RoleCommission), Name: "Bank commissions"},
		{ID: uuid.New(), Code: resolver.FallbackCode(fx.RoleFXResult), Name: "Exchange difference"},
		{ID: uuid.New(), Code: resolver.FallbackCode(fx.RoleInterest), Name: "Interest expense"},
	}
	for _, a := range seed {
		store.SeedAccount(a)
	}
	logger.Info("DEV seed (memory)", "accounts", len(seed))
}

func amortizeCmd() *cobra.Command {
	var (
		principal  string
		annualRate string
		count      int
		system     string
		frequency  string
		firstDue   string
	)
	cmd := &cobra.Command{
		Use:   "amortize",
		Short: "Print an amortization schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := decimal.NewFromString(principal)
			if err != nil {
				return fmt.Errorf("bad principal %q: %w", principal, err)
			}
			r, err := decimal.NewFromString(annualRate)
			if err != nil {
				return fmt.Errorf("bad rate %q: %w", annualRate, err)
			}
			due, err := time.Parse("2006-01-02", firstDue)
			if err != nil {
				return fmt.Errorf("bad first due date %q: %w", firstDue, err)
			}
			sys := fx.AmortSystem(system)
			if !sys.Valid() {
				return fmt.Errorf("unknown amortization system %q", system)
			}
			freq := fx.Frequency(frequency)
			if freq.Months() == 0 {
				return fmt.Errorf("unknown frequency %q", frequency)
			}
			if !p.IsPositive() || count <= 0 {
				return fmt.Errorf("principal and installments must be positive")
			}
			sched := amort.Generate(p, r, count, freq, sys, due)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-4s %-12s %14s %14s %14s\n", "#", "due", "principal", "interest", "total")
			for _, ins := range sched {
				total := ins.Principal.Add(ins.Interest)
				fmt.Fprintf(w, "%-4d %-12s %14s %14s %14s\n",
					ins.Number, ins.DueDate.Format("2006-01-02"),
					ins.Principal.StringFixed(2), ins.Interest.StringFixed(2), total.StringFixed(2))
			}
			fmt.Fprintf(w, "total principal: %s\n", amort.PrincipalTotal(sched).StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&principal, "principal", "", "loan principal")
	cmd.Flags().StringVar(&annualRate, "rate", "0", "nominal annual interest rate, e.g. 0.12")
	cmd.Flags().IntVar(&count, "installments", 12, "number of installments")
	cmd.Flags().StringVar(&system, "system", "french", "amortization system: french, german, american or bullet")
	cmd.Flags().StringVar(&frequency, "frequency", "monthly", "installment frequency")
	cmd.Flags().StringVar(&firstDue, "first-due", "", "first due date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("first-due")
	return cmd
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLoggerFromEnv() *slog.Logger {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
