package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"github.com/enthusiasm-bot/enthusiasm/internal/audit"
	"github.com/enthusiasm-bot/enthusiasm/internal/bot"
	"github.com/enthusiasm-bot/enthusiasm/internal/config"
	"github.com/enthusiasm-bot/enthusiasm/internal/httpapi"
	"github.com/enthusiasm-bot/enthusiasm/internal/ledger"
	"github.com/enthusiasm-bot/enthusiasm/internal/near"
)

var serveDebug bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if serveDebug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		net, err := cfg.ResolveNetwork(cfg.Env)
		if err != nil {
			return err
		}
		if cfg.Slack.SigningSecret == "" || cfg.Slack.BotToken == "" {
			return fmt.Errorf("SLACK_SIGNING_SECRET and SLACK_BOT_TOKEN are required")
		}

		led, err := ledger.NewService(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer led.Close()

		gateway, err := near.NewGateway(net)
		if err != nil {
			return err
		}

		api := slack.New(cfg.Slack.BotToken, slack.OptionAPIURL(cfg.Slack.APIBase+"/"))
		publisher := audit.NewPublisher(cfg.Audit.Brokers, cfg.Audit.Topic)
		defer publisher.Close()

		router := bot.NewRouter(net, api, gateway, led, publisher)
		server, err := httpapi.NewServer(net, router, led, cfg.Slack.SigningSecret)
		if err != nil {
			return err
		}

		httpServer := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			slog.Info("enthusiasm listening",
				"addr", cfg.ListenAddr, "network", net.NetworkID, "contract", net.ContractName)
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	rootCmd.AddCommand(serveCmd)
}
