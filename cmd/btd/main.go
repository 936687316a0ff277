// Command btd is the long-lived agent daemon: it owns the block store
// and metadata catalog, and serves the RPC protocol described in
// internal/rpc over a Unix domain socket. It also exposes gc and audit
// subcommands that run retention directly against the catalog and
// block store, bypassing RPC, since those are maintenance operations
// rather than client requests.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bt-go/internal/agent"
	"bt-go/internal/app"
	"bt-go/internal/blockstore"
	"bt-go/internal/catalog"
	"bt-go/internal/config"
	"bt-go/internal/errs"
	"bt-go/internal/retention"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(errs.ExitCode(err))
	}
}

func newLogger() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler)
}

func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// openCatalog builds the Catalog backend selected by cfg.Catalog.Type,
// mirroring blockstore.NewFromConfig's tagged-union pattern.
func openCatalog(cfg config.CatalogConfig) (catalog.Catalog, error) {
	switch cfg.Type {
	case "sqlite", "":
		path := cfg.DataDir
		if path != ":memory:" {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return nil, fmt.Errorf("creating catalog dir: %w", err)
			}
			path = filepath.Join(path, "catalog.db")
		}
		return catalog.NewSQLiteCatalog(path)
	default:
		return nil, fmt.Errorf("unknown catalog type: %s", cfg.Type)
	}
}

var rootCmd = &cobra.Command{
	Use:   "btd",
	Short: "Backup agent daemon",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve the RPC agent on its configured Unix socket",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		blocks, err := blockstore.NewFromConfig(cfg.BlockStore)
		if err != nil {
			return fmt.Errorf("opening block store: %w", err)
		}

		cat, err := openCatalog(cfg.Catalog)
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}

		// The agent never decrypts or encrypts chunk payloads itself —
		// sealing happens client-side — so it runs with a nil sealer.
		a := agent.New(cat, blocks, nil, log)

		socketPath := cfg.Agent.SocketPath
		if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
			return fmt.Errorf("creating socket dir: %w", err)
		}
		if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale socket: %w", err)
		}

		listener, err := net.Listen("unix", socketPath)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", socketPath, err)
		}
		defer listener.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info("agent listening", "socket", socketPath)
			errCh <- a.Serve(listener)
		}()

		select {
		case <-ctx.Done():
			log.Info("shutting down")
			listener.Close()
			return nil
		case err := <-errCh:
			return fmt.Errorf("agent serve: %w", err)
		}
	},
}

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Expire old versions and sweep zero-refcount chunks",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		maxAgeDays, _ := cmd.Flags().GetInt("max-age-days")

		log := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if maxAgeDays <= 0 {
			maxAgeDays = cfg.Retention.MaxAgeDays
		}

		blocks, err := blockstore.NewFromConfig(cfg.BlockStore)
		if err != nil {
			return fmt.Errorf("opening block store: %w", err)
		}
		cat, err := openCatalog(cfg.Catalog)
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}

		gc := retention.New(cat, blocks, log)
		result, err := gc.Run(time.Duration(maxAgeDays)*24*time.Hour, dryRun)
		if err != nil {
			return fmt.Errorf("gc run: %w", err)
		}

		fmt.Printf("Expired versions: %d\n", len(result.ExpiredVersions))
		fmt.Printf("Swept chunks:      %d\n", len(result.SweptChunks))
		if dryRun {
			fmt.Println("(dry run, nothing was removed)")
		}
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Cross-check the catalog against the block store",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		blocks, err := blockstore.NewFromConfig(cfg.BlockStore)
		if err != nil {
			return fmt.Errorf("opening block store: %w", err)
		}
		cat, err := openCatalog(cfg.Catalog)
		if err != nil {
			return fmt.Errorf("opening catalog: %w", err)
		}

		gc := retention.New(cat, blocks, log)
		report, err := gc.Audit()
		if err != nil {
			fmt.Printf("Orphan blocks:         %d\n", len(report.OrphanBlocks))
			fmt.Printf("Integrity violations:  %d\n", len(report.IntegrityViolations))
			return err
		}

		fmt.Printf("Orphan blocks:         %d\n", len(report.OrphanBlocks))
		fmt.Printf("Integrity violations:  %d\n", len(report.IntegrityViolations))
		fmt.Println("Repository is consistent.")
		return nil
	},
}

func init() {
	gcCmd.Flags().Bool("dry-run", false, "Report what would be removed without deleting anything")
	gcCmd.Flags().Int("max-age-days", 0, "Override the configured retention window")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(auditCmd)
}
