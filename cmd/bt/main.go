package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bt-go/internal/app"
	"bt-go/internal/chunker"
	"bt-go/internal/config"
	"bt-go/internal/crypto"
	"bt-go/internal/errs"
	"bt-go/internal/repo"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(errs.ExitCode(err))
	}
}

// newApp reads the config, prompts for the repository passphrase, and
// creates an App. The caller must defer app.Close().
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	passphrase, err := readPassphrase()
	if err != nil {
		return nil, err
	}

	a, err := app.New(cfg, passphrase, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase reads BT_PASSPHRASE if set, otherwise prompts on the
// controlling terminal without echoing input.
func readPassphrase() (string, error) {
	if p := os.Getenv("BT_PASSPHRASE"); p != "" {
		return p, nil
	}

	fmt.Fprint(os.Stderr, "Repository passphrase: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:   "bt",
	Short: "Continuous content-addressed backup client",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:       %s\n", cfg.HostID)
		fmt.Printf("Repo Root:     %s\n", cfg.RepoRoot)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Agent Socket:  %s\n", cfg.Agent.SocketPath)
		fmt.Printf("Block Store:   %s\n", cfg.BlockStore.Type)
		fmt.Printf("Catalog:       %s\n", cfg.Catalog.Type)
		fmt.Printf("Retention:     %d days\n", cfg.Retention.MaxAgeDays)
		return nil
	},
}

// repo command
var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage the repository",
}

var repoInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new repository at the configured root",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		params, err := chunker.DefaultParams()
		if err != nil {
			return fmt.Errorf("generating chunker parameters: %w", err)
		}

		salt, err := crypto.NewSalt()
		if err != nil {
			return fmt.Errorf("generating salt: %w", err)
		}

		manifest := repo.Manifest{
			FormatVersion:    repo.ManifestVersion,
			ChunkerVersion:   1,
			CryptoVersion:    1,
			Polynomial:       params.Polynomial,
			MinChunkSize:     params.Min,
			AvgChunkSize:     params.Avg,
			MaxChunkSize:     params.Max,
			PBKDF2SaltHex:    hex.EncodeToString(salt),
			PBKDF2Iterations: 200_000,
		}

		if err := repo.WriteManifest(cfg.RepoRoot, manifest); err != nil {
			return fmt.Errorf("writing manifest: %w", err)
		}

		fmt.Printf("Repository initialized at %s\n", cfg.RepoRoot)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup PATH",
	Short: "Back up a single file as a new version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("backup")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		res, err := a.BackupFile(args[0], f)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Committed version %d for %s\n", res.VersionID, args[0])
		return nil
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm PATH",
	Short: "Record a deletion as a new tombstone version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("delete")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.DeleteFile(args[0])
		if err != nil {
			return fmt.Errorf("recording deletion failed: %w", err)
		}

		fmt.Printf("Committed tombstone version %d for %s\n", res.VersionID, args[0])
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch [PATH]",
	Short: "Watch a directory and continuously back up changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("watch")
		if err != nil {
			return err
		}
		defer a.Close()

		root := ""
		if len(args) > 0 {
			root = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("Watching for changes. Press Ctrl-C to stop.")
		return a.Watch(ctx, root)
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls [PREFIX]",
	Short: "List tracked files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("list-files")
		if err != nil {
			return err
		}
		defer a.Close()

		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}

		files, err := a.ListFiles(prefix)
		if err != nil {
			return err
		}

		if len(files) == 0 {
			fmt.Println("No files tracked.")
			return nil
		}

		for _, f := range files {
			fmt.Printf("%-10s %10d  %s\n", f.LastAction, f.CurrentSize, f.Path)
		}
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log PATH",
	Short: "View a file's version history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("list-versions")
		if err != nil {
			return err
		}
		defer a.Close()

		versions, err := a.ListVersions(args[0])
		if err != nil {
			return err
		}

		if len(versions) == 0 {
			fmt.Println("No versions recorded.")
			return nil
		}

		for _, v := range versions {
			fmt.Printf("#%-6d %s  %-8s  %10d -> %10d\n",
				v.VersionID,
				v.Timestamp.Format("2006-01-02 15:04:05"),
				v.Action,
				v.PlainSize,
				v.StoredSize,
			)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent backup operations recorded by the agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No backup operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if !op.FinishedAt.IsZero() {
				duration = op.FinishedAt.Sub(op.StartedAt).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore PATH VERSION_ID DEST",
	Short: "Restore a version's content to a destination file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		var versionID int64
		if _, err := fmt.Sscanf(args[1], "%d", &versionID); err != nil {
			return fmt.Errorf("invalid version ID %q: %w", args[1], err)
		}

		a, err := newApp("restore")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Create(args[2])
		if err != nil {
			return fmt.Errorf("creating %s: %w", args[2], err)
		}
		defer f.Close()

		if err := a.RestoreFile(path, versionID, f); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored version %d to %s\n", versionID, args[2])
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "View repository-wide counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("stats")
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Stats()
		if err != nil {
			return err
		}

		fmt.Printf("Files:             %d\n", stats.FileCount)
		fmt.Printf("Chunks:            %d\n", stats.ChunkCount)
		fmt.Printf("Total stored size: %d bytes\n", stats.TotalStoredSize)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	repoCmd.AddCommand(repoInitCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(statsCmd)
}
