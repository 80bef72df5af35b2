package cmd

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/linkrank/internal/config"
	"github.com/papapumpkin/linkrank/internal/engine"
	"github.com/papapumpkin/linkrank/internal/rpc"
	"github.com/papapumpkin/linkrank/internal/server"
	"github.com/papapumpkin/linkrank/internal/store"
	"github.com/papapumpkin/linkrank/internal/ui"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve ranking over HTTP and gRPC",
	Long: `Starts the HTTP API and the gRPC Ranker service. Both rank uploaded graphs
with the configured parameters as defaults, and can save runs to the history
database unless --no-history is given. Jobs asking for more samples or
iterations than the --limit-* bounds are rejected.

HTTP routes:
  GET  /healthz     liveness
  POST /rank        rank a graph
  GET  /runs        list saved runs
  GET  /runs/:id    show a saved run`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addRankFlags(serveCmd.Flags(), config.MethodBoth)
	serveCmd.Flags().String("http-addr", ":8080", "HTTP listen address")
	serveCmd.Flags().String("grpc-addr", ":9090", "gRPC listen address")
	serveCmd.Flags().String("db", ".linkrank/history.db", "history database path")
	serveCmd.Flags().Bool("no-history", false, "do not open the history database")
	serveCmd.Flags().String("limit-body", "4M", "largest accepted HTTP request body")
	addLimitFlags(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	noHistory, _ := cmd.Flags().GetBool("no-history")

	log := newLogger(cfg.Verbose)
	printer := ui.New()
	printer.Banner()
	ctx, cancel := setupSignalContext(printer)
	defer cancel()

	var (
		history server.History
		saver   rpc.Saver
	)
	if !noHistory {
		st, err := store.Open(ctx, cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		history, saver = st, st
		log.WithField("db", cfg.Store.Path).Info("run history enabled")
	}

	defaults := engine.FromConfig(cfg)
	limits := engine.LimitsFromConfig(cfg)
	httpSrv := server.New(server.Options{
		Defaults:  defaults,
		Limits:    limits,
		BodyLimit: cfg.Limits.MaxBody,
	}, history, log)
	grpcSrv := rpc.NewServer(&rpc.Service{Defaults: defaults, Limits: limits, History: saver}, log)

	lis, err := net.Listen("tcp", cfg.Serve.GRPCAddr)
	if err != nil {
		return fmt.Errorf("serve: listen %s: %w", cfg.Serve.GRPCAddr, err)
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(context.Context) error {
		return httpSrv.Start(cfg.Serve.HTTPAddr)
	})
	p.Go(func(context.Context) error {
		log.WithField("addr", cfg.Serve.GRPCAddr).Info("grpc server listening")
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("serve: grpc: %w", err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		log.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return p.Wait()
}
