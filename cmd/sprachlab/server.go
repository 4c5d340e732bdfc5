package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/sprachlab/sprachlab/internal/api"
	"github.com/sprachlab/sprachlab/internal/config"
	"github.com/sprachlab/sprachlab/internal/content"
	"github.com/sprachlab/sprachlab/internal/evaluation"
	"github.com/sprachlab/sprachlab/internal/llm"
	"github.com/sprachlab/sprachlab/internal/notify"
	"github.com/sprachlab/sprachlab/internal/progress"
	"github.com/sprachlab/sprachlab/internal/schedule"
	"github.com/sprachlab/sprachlab/internal/storage"
	"github.com/sprachlab/sprachlab/internal/tts"
	"github.com/sprachlab/sprachlab/internal/webhooks"
	"github.com/sprachlab/sprachlab/internal/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sprachlab server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		mcpUser, _ := cmd.Flags().GetString("mcp-user")
		return runServer(debug, mcpUser)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running sprachlab server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sprachlab system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().Bool("debug", false, "enable debug logging")
	startCmd.Flags().String("mcp-user", "local", "learner id the MCP stdio session is scoped to")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "sprachlab.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(debug bool, mcpUser string) error {
	fmt.Fprintf(os.Stderr, "sprachlab version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	apiToken, err := config.GetAPIToken(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	// Refuse to start twice. The health probe catches a server that is
	// running under a stale or missing PID file.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("sprachlab is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("sprachlab is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Load content packs.
	loaded, err := content.LoadDir(cfg.Content.Dir, store, logger)
	if err != nil {
		return fmt.Errorf("loading content packs: %w", err)
	}
	if loaded > 0 {
		logger.Info("content packs loaded", "items", loaded)
	}

	// Build services.
	llmClient := llm.NewClientWithBaseURL(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	evaluator := evaluation.NewServiceWithChatModel(llmClient, store, cfg.LLM.EvalModel, cfg.LLM.ChatModel, logger)
	ttsClient := tts.NewClient(cfg.LLM.APIKey, cfg.TTS.BaseURL, cfg.TTS.DefaultVoice)
	audio := tts.NewService(ttsClient, store, cfg.TTS.WorkerURL, cfg.TTS.WorkerKey, logger)
	dashboards := progress.NewService(store)

	var webhookHandler *webhooks.Handler
	if cfg.Webhook.SigningSecret != "" {
		webhookHandler, err = webhooks.NewHandler(cfg.Webhook.SigningSecret, store, logger)
		if err != nil {
			return fmt.Errorf("initializing webhook verifier: %w", err)
		}
	} else {
		logger.Warn("webhook signing secret not set, webhook route disabled")
	}

	var roles webhooks.RoleSetter
	if cfg.Webhook.ProviderAPIKey != "" {
		roles = webhooks.NewRoleClient(cfg.Webhook.ProviderAPIKey)
	}

	channelKeys := map[string]string{}
	if cfg.Channels.WhatsAppKey != "" {
		channelKeys["whatsapp"] = cfg.Channels.WhatsAppKey
	}
	if cfg.Channels.TelegramKey != "" {
		channelKeys["telegram"] = cfg.Channels.TelegramKey
	}

	handler := api.NewHandler(api.Deps{
		Store:       store,
		Evaluator:   evaluator,
		Audio:       audio,
		Dashboards:  dashboards,
		Webhooks:    webhookHandler,
		Token:       apiToken,
		ChannelKeys: channelKeys,
		HTTPClient:  &http.Client{Timeout: 15 * time.Second},
		Logger:      logger,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Background worker for audio generation and webhook side effects.
	bgWorker := worker.NewWorker(store, audio, store, roles, 500*time.Millisecond)
	go bgWorker.Run(ctx)

	// Nightly sweep and optional Telegram digests.
	var digester schedule.Digester
	if cfg.Notify.TelegramToken != "" {
		notifier, err := notify.NewNotifier(cfg.Notify.TelegramToken, logger)
		if err != nil {
			logger.Warn("telegram notifier unavailable, digests disabled", "error", err)
		} else {
			digester = notifier
		}
	}
	scheduler := schedule.New(store, dashboards, digester, cfg.Notify.DigestHour, logger)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer scheduler.Stop()

	// MCP server over stdio.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:      store,
		Dashboards: dashboards,
		UserID:     mcpUser,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("MCP stdio server error", "error", err)
		}
	}()
	logger.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "sprachlab listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("sprachlab is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop sprachlab (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to sprachlab (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Chat model", "%s", cfg.LLM.ChatModel)
	printStatus("Eval model", "%s", cfg.LLM.EvalModel)
	if cfg.TTS.WorkerURL != "" {
		printStatus("Audio worker", "%s", cfg.TTS.WorkerURL)
	} else {
		printStatus("Audio worker", "not configured (inline audio fallback)")
	}

	if running {
		testsResp, err := client.Get(serverURL + "/api/tests?limit=100")
		if err == nil {
			var tests []json.RawMessage
			if json.NewDecoder(testsResp.Body).Decode(&tests) == nil {
				printStatus("Tests", "%s", countLabel(len(tests), 100))
			}
			testsResp.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
