// Command entityfilterd serves the tables of a DuckDB database over Arrow
// Flight. Clients attach a Filter to a query and receive only the matching
// rows; filters are pushed down to DuckDB as SQL.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/duckdb/duckdb-go/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/hugr-lab/entityfilter"
	"github.com/hugr-lab/entityfilter/catalog"
	"github.com/hugr-lab/entityfilter/internal/config"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "entityfilterd: %v\n", err)
		os.Exit(2)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.Level()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// run serves until ctx is cancelled or the listener fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := sql.Open("duckdb", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if cfg.Database.Init != "" {
		if _, err := db.ExecContext(ctx, cfg.Database.Init); err != nil {
			return fmt.Errorf("database init: %w", err)
		}
	}

	cat, err := buildCatalog(ctx, db, cfg.Database.Schema, logger)
	if err != nil {
		return err
	}

	serverConfig := entityfilter.ServerConfig{
		Catalog:        cat,
		MaxFilterDepth: cfg.MaxFilterDepth,
		Logger:         logger,
		MaxMessageSize: cfg.MaxMessageSize,
		Address:        cfg.PublicAddress,
	}
	if len(cfg.Auth.Tokens) > 0 {
		serverConfig.Auth = entityfilter.StaticTokens(cfg.Auth.TokenTables())
	}

	grpcServer := grpc.NewServer(entityfilter.ServerOptions(serverConfig)...)
	srv, err := entityfilter.NewServer(grpcServer, serverConfig)
	if err != nil {
		return err
	}
	defer srv.Close()

	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Address, err)
	}

	return serve(ctx, grpcServer, lis, logger)
}

func buildCatalog(ctx context.Context, db *sql.DB, schemaName string, logger *slog.Logger) (catalog.Catalog, error) {
	collections, err := catalog.DiscoverSQLCollections(ctx, db, schemaName, logger)
	if err != nil {
		return nil, fmt.Errorf("discover collections in %s: %w", schemaName, err)
	}
	if len(collections) == 0 {
		logger.Warn("No tables found", "schema", schemaName)
	}

	sb := entityfilter.NewCatalogBuilder().Schema(schemaName)
	for _, c := range collections {
		sb.Collection(c)
	}
	return sb.Build()
}

// serve runs grpcServer on lis and stops it gracefully once ctx is done.
func serve(ctx context.Context, grpcServer *grpc.Server, lis net.Listener, logger *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Serving", "address", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}
