package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/PinForge/internal/keywords"
	"github.com/TobiSchelling/PinForge/internal/pipeline"
	"github.com/TobiSchelling/PinForge/internal/server"
)

var (
	servePort int
	serveCron bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var kw *keywords.Engine
		if cfg.PinterestToken() != "" {
			kw = a.keywords
		} else {
			logger.Warn("No Pinterest access token, keyword endpoints are disabled",
				zap.String("env", cfg.Pinterest.AccessTokenEnv))
		}

		srv, err := server.New(a.db, a.dispatcher, kw, cfg.ProviderConfig, server.Options{
			ImageDir: imageDirFor(),
			Gatherer: a.gatherer,
			Logger:   logger,
			Debug:    verbose,
		})
		if err != nil {
			return err
		}

		if serveCron && kw != nil && cfg.Keywords.RefreshSchedule != "" {
			c, err := scheduleRefresh(ctx, a, kw)
			if err != nil {
				return err
			}
			c.Start()
			defer func() { <-c.Stop().Done() }()
		}

		fmt.Printf("Starting server at http://localhost:%d\n", cfg.Server.Port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.Serve(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
	serveCmd.Flags().BoolVar(&serveCron, "refresh", true, "Refresh tracked keywords on keywords.refresh_schedule")
}

// imageDirFor returns the directory served under /images, or "" when images
// live in object storage.
func imageDirFor() string {
	if cfg.Storage.Driver != "fs" {
		return ""
	}
	return cfg.ImageDir()
}

func scheduleRefresh(ctx context.Context, a *app, kw *keywords.Engine) (*cron.Cron, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	p := pipeline.New(a.dispatcher, a.db, logger)
	_, err := c.AddFunc(cfg.Keywords.RefreshSchedule, func() {
		step := p.RefreshKeywords(ctx, kw)
		if step.Err != nil {
			logger.Error("Scheduled keyword refresh failed", zap.Error(step.Err))
			return
		}
		logger.Info("Scheduled keyword refresh", zap.String("summary", step.Summary))
	})
	if err != nil {
		return nil, fmt.Errorf("keywords.refresh_schedule: %w", err)
	}
	logger.Info("Keyword refresh scheduled", zap.String("schedule", cfg.Keywords.RefreshSchedule))
	return c, nil
}
