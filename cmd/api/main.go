package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-checkout/internal/api"
	"github.com/example/ec-checkout/internal/app"
	"github.com/example/ec-checkout/internal/auth"
	"github.com/example/ec-checkout/internal/cache"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/example/ec-checkout/internal/payment"
	"github.com/example/ec-checkout/internal/query"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "ec-api",
		Usage: "checkout HTTP API",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: serve,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Usage: "apply database migrations before serving", Value: true},
				},
			},
			{
				Name:   "migrate",
				Usage:  "apply or roll back database migrations",
				Action: migrate,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "down", Usage: "roll back this many migrations instead of applying"},
				},
			},
			{
				Name:      "seed",
				Usage:     "upsert catalog products from a JSON file",
				ArgsUsage: "<products.json>",
				Action:    seed,
			},
			{
				Name:   "token",
				Usage:  "issue an access token for local testing",
				Action: token,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "user id", Required: true},
					&cli.StringFlag{Name: "email", Usage: "user email"},
					&cli.StringFlag{Name: "role", Usage: "customer or admin", Value: auth.RoleCustomer},
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := cliApp.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("ec-api failed")
	}
}

func load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

func serve(c *cli.Context) error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}
	log := logging.Component(logger, "api")

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, shutdownMetrics, err := app.NewMetrics(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.WithError(err).Warn("failed to flush metrics")
		}
	}()

	st, err := app.OpenStore(ctx, cfg, c.Bool("migrate"), log)
	if err != nil {
		return err
	}
	defer st.Close()

	publisher := app.NewPublisher(cfg, log)
	defer publisher.Close()

	memCache := cache.NewMemoryCache(m, time.Minute)
	defer memCache.Close()

	gateway, err := app.NewGateway(cfg, log)
	if err != nil {
		return err
	}
	sandbox, _ := gateway.(*payment.Sandbox)

	cmdHandler := app.NewCommandHandler(cfg, app.Deps{
		Store:     st,
		Gateway:   gateway,
		Cache:     memCache,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
	})
	queryHandler := query.NewHandler(st, memCache, logger)

	router := api.NewRouter(api.RouterConfig{
		Commands: cmdHandler,
		Queries:  queryHandler,
		Tokens:   auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTokenTTL),
		Metrics:  m,
		Logger:   logger,
		Sandbox:  sandbox,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func migrate(c *cli.Context) error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}
	log := logging.Component(logger, "migrate")

	db, err := store.ConnectPostgres(c.Context, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if steps := c.Int("down"); steps > 0 {
		if err := store.MigrateDown(db.DB, steps); err != nil {
			return err
		}
		log.WithField("steps", steps).Info("migrations rolled back")
		return nil
	}
	if err := store.MigrateUp(db.DB); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func seed(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: ec-api seed <products.json>", 2)
	}
	cfg, logger, err := load()
	if err != nil {
		return err
	}
	log := logging.Component(logger, "seed")

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}
	var products []*product.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return fmt.Errorf("failed to decode fixture: %w", err)
	}

	now := time.Now().UTC()
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("product %q: %w", p.ID, err)
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
	}

	st, err := app.OpenStore(c.Context, cfg, true, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Seed(c.Context, products); err != nil {
		return err
	}
	log.WithField("products", len(products)).Info("catalog seeded")
	return nil
}

func token(c *cli.Context) error {
	cfg, _, err := load()
	if err != nil {
		return err
	}
	role := c.String("role")
	if role != auth.RoleCustomer && role != auth.RoleAdmin {
		return cli.Exit(fmt.Sprintf("unknown role %q", role), 2)
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTokenTTL)
	signed, expiresAt, err := jwtService.IssueToken(c.String("user"), c.String("email"), role)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, signed)
	fmt.Fprintf(c.App.ErrWriter, "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
