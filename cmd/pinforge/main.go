package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/PinForge/internal/config"
	"github.com/TobiSchelling/PinForge/internal/database"
	"github.com/TobiSchelling/PinForge/internal/logging"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     = zap.NewNop()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "pinforge",
	Short:   "Pinterest-ready article generation",
	Long:    "PinForge generates illustrated blog articles and tracks Pinterest keyword popularity.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadEnv(); err != nil {
			return err
		}
		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cmd.Name() != "serve")
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(bulkCmd)
	rootCmd.AddCommand(regenerateCmd)
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(keywordsCmd)
	rootCmd.AddCommand(pinsCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("pinforge", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/pinforge/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Printf("Put your API keys in %s or export them in your shell.\n", filepath.Join(config.ConfigDir(), ".env"))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and provider status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		stats, err := db.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Articles:")
		fmt.Printf("  Total: %d\n", stats.TotalArticles)
		fmt.Printf("  Completed: %d\n", stats.CompletedArticles)
		fmt.Printf("  Drafts (no images): %d\n", stats.DraftArticles)
		fmt.Printf("  WordPress drafts: %d\n", stats.WordPressDrafts)
		fmt.Printf("  Images: %d\n", stats.TotalImages)
		fmt.Println("\nKeywords:")
		fmt.Printf("  Tracked: %d\n", stats.TrackedKeywords)
		fmt.Printf("  Ranked: %d\n", stats.RankedKeywords)

		fmt.Println("\nLast runs:")
		for _, kind := range []database.RunKind{database.RunBulk, database.RunKeywordRefresh} {
			r, err := db.GetLastReport(ctx, kind)
			if err != nil {
				return err
			}
			if r == nil {
				fmt.Printf("  %s: never\n", kind)
				continue
			}
			fmt.Printf("  %s: %s (%d/%d succeeded)\n", kind, r.FinishedAt.Local().Format("2006-01-02 15:04"), r.Succeeded, r.Total)
		}
		return nil
	},
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "pinforge.db")
	return database.Open(dbPath)
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid image index: %s", s)
	}
	return n, nil
}
