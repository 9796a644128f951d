package main

import (
	"context"
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

	"github.com/paperdesk/advisor/internal/advisor"
	"github.com/paperdesk/advisor/internal/api"
	"github.com/paperdesk/advisor/internal/config"
	"github.com/paperdesk/advisor/internal/ingest"
	"github.com/paperdesk/advisor/internal/ollama"
	"github.com/paperdesk/advisor/internal/retrieval"
	"github.com/paperdesk/advisor/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the advisor server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running advisor server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show advisor system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "advisor.pid")
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "advisor version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	apiToken, err := config.EnsureAPIToken()
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	// Refuse to double-start: probe the health endpoint before claiming
	// the PID file.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("advisor is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("advisor is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	if err := ollama.EnsureReady(ctx, ollamaClient, cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel, os.Stderr); err != nil {
		return err
	}

	store, err := storage.Open(filepath.Join(cfg.Storage.DataDir, "advisor.db"))
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	embedder := retrieval.NewEmbedder(ollamaClient, cfg.Ollama.EmbedModel)
	index, sourcePath := buildReferenceIndex(ctx, cfg, embedder)
	retriever := retrieval.NewRetriever(embedder, index, slog.Default())

	advisorSvc := advisor.New(ollamaClient, retriever, advisor.Config{
		Model:     cfg.Ollama.ChatModel,
		TopK:      cfg.Advisor.TopK,
		Timeout:   time.Duration(cfg.Advisor.TimeoutSeconds) * time.Second,
		Fallbacks: cfg.Advisor.Fallbacks(),
	}, slog.Default())

	handler := api.NewHandler(api.Deps{
		Advisor:    advisorSvc,
		Retriever:  retriever,
		Store:      store,
		Token:      apiToken,
		SourcePath: sourcePath,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP over stdio so local agent hosts can drive the advisor directly.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Advisor:   advisorSvc,
		Retriever: retriever,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "advisor listening on %s\n", addr)
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

// buildReferenceIndex loads, chunks, and embeds the reference document. Any
// failure degrades retrieval for the process lifetime instead of aborting
// startup: the advisor still answers, just without grounding.
func buildReferenceIndex(ctx context.Context, cfg config.Config, embedder *retrieval.Embedder) (*retrieval.MemoryIndex, string) {
	path, err := ingest.Locate(cfg.Reference.Path, cfg.Reference.Filename)
	if err != nil {
		slog.Warn("reference document unavailable, retrieval disabled", "error", err)
		return nil, ""
	}

	pages, err := ingest.Load(path)
	if err != nil {
		slog.Warn("reference document unreadable, retrieval disabled", "path", path, "error", err)
		return nil, ""
	}

	chunks := ingest.ChunkPages(pages, cfg.Reference.ChunkSize, cfg.Reference.ChunkOverlap)
	slog.Info("reference document loaded", "path", path, "pages", len(pages), "chunks", len(chunks))

	index, err := retrieval.NewBuilder(embedder, chunks).Build(ctx)
	if err != nil {
		slog.Warn("reference index build failed, retrieval disabled", "error", err)
		return nil, ""
	}
	slog.Info("reference index ready", "chunks", index.Len())
	return index, path
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
		printError("advisor is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop advisor (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to advisor (PID %d)", pid)
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
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Chat model", "%s", cfg.Ollama.ChatModel)
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)

	if resp != nil && resp.StatusCode == 200 {
		statusResp, err := client.Get(serverURL + "/v1/reference/status")
		if err == nil {
			var status struct {
				Ready  bool `json:"ready"`
				Chunks int  `json:"chunks"`
			}
			if decodeJSON(statusResp, &status) == nil {
				if status.Ready {
					printStatus("Reference index", "%d chunks", status.Chunks)
				} else {
					printStatus("Reference index", "unavailable (degraded)")
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
