package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/vinq/internal/api"
	"github.com/kalambet/vinq/internal/config"
	"github.com/kalambet/vinq/internal/ollama"
	"github.com/kalambet/vinq/internal/retrieval"
	"github.com/kalambet/vinq/internal/sources"
	"github.com/kalambet/vinq/internal/storage"
)

// loadLocalApp loads config, sets up logging and wires the pipeline in-process.
func loadLocalApp(ctx context.Context, opts wireOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)
	return newApp(ctx, cfg, opts)
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question-and-answer session (type exit or quit to leave)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := loadLocalApp(ctx, wireOptions{readiness: true, progress: os.Stderr})
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.New().String()
		}
		printStep("Session %s", sessionID)
		return runREPL(ctx, a.chatbot, os.Stdin, os.Stdout, sessionID)
	},
}

func init() {
	chatCmd.Flags().String("session", "", "session id to continue (default: new session)")
}

// runREPL reads one question per line from in and writes framed answers to out.
func runREPL(ctx context.Context, chat api.ChatService, in io.Reader, out io.Writer, sessionID string) error {
	fmt.Fprintln(out, "Ask about vehicle inspections. Type 'exit' or 'quit' to leave.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		ans := chat.Process(ctx, line, sessionID)
		fmt.Fprintln(out)
		printFramed(out, ans.Response)

		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		sessionID, _ := cmd.Flags().GetString("session")

		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			resp, err := askRemote(cmd.Context(), client, query, sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Response)
			printStatus("Session", "%s", resp.SessionID)
			return nil
		}

		a, err := loadLocalApp(cmd.Context(), wireOptions{readiness: true})
		if err != nil {
			return err
		}
		defer a.Close()

		ans := a.chatbot.Process(cmd.Context(), query, sessionID)
		fmt.Fprintln(cmd.OutOrStdout(), ans.Response)

		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			printStatus("Outcome", "%s", ans.Outcome)
			if ans.Route != "" {
				printStatus("Route", "%s", ans.Route)
			}
			if ans.SQL != "" {
				printStatus("SQL", "%s", ans.SQL)
			}
			printStatus("Rows", "%d", ans.RowCount)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("session", "", "session id for conversational context")
	askCmd.Flags().BoolP("verbose", "v", false, "print route, SQL and row count")
	askCmd.Flags().Bool("remote", false, "send the question to the running server instead of answering in-process")
}

// askRemote posts one question to the running server's /chat endpoint.
func askRemote(ctx context.Context, client *apiClient, query, sessionID string) (api.ChatResponse, error) {
	var out api.ChatResponse
	resp, err := client.post(ctx, "/chat", api.ChatRequest{Query: query, SessionID: sessionID})
	if err != nil {
		return out, err
	}
	if err := decodeJSON(resp, &out); err != nil {
		return out, fmt.Errorf("asking server: %w", err)
	}
	return out, nil
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the query pipeline over MCP (stdio transport)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// stdout carries the protocol; all progress goes to stderr.
		a, err := loadLocalApp(ctx, wireOptions{readiness: true, progress: os.Stderr})
		if err != nil {
			return err
		}
		defer a.Close()

		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Chat:    a.chatbot,
			Records: a.store,
			Version: version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio server: %w", err)
		}
		return nil
	},
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the semantic search index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the semantic index (skipped when it already has vectors, unless --force)",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := loadLocalApp(cmd.Context(), wireOptions{readiness: true, progress: os.Stderr, skipIndexLoad: true})
		if err != nil {
			return err
		}
		defer a.Close()

		printStep("Indexing damage descriptions with %s...", a.cfg.Ollama.EmbedModel)
		start := time.Now()
		n, err := retrieval.EnsureIndex(cmd.Context(), a.store, a.embedder, a.index, force)
		if err != nil {
			return err
		}
		printSuccess("Index has %d vectors (%s backend, %s)", n, a.cfg.Index.Backend, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	indexBuildCmd.Flags().Bool("force", false, "rebuild even if the index is populated")
	indexCmd.AddCommand(indexBuildCmd)
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Load inspection records from a CSV file",
	Long: `Load inspection records from a CSV file. The header row names the
columns; record_id is required. Existing records with the same record_id
are replaced.

Examples:
  vinq import inspections.csv
  vinq import inspections.csv --reindex`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		store, err := storage.Open(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		n, err := store.ImportCSV(cmd.Context(), f)
		store.Close()
		if err != nil {
			return err
		}
		printSuccess("Imported %d records into %s", n, cfg.Storage.DBPath)

		if reindex, _ := cmd.Flags().GetBool("reindex"); !reindex {
			printWarning("Run \"vinq index build --force\" to refresh semantic search")
			return nil
		}

		a, err := newApp(cmd.Context(), cfg, wireOptions{readiness: true, progress: os.Stderr, skipIndexLoad: true})
		if err != nil {
			return err
		}
		defer a.Close()
		printStep("Rebuilding semantic index...")
		built, err := retrieval.Build(cmd.Context(), a.store, a.embedder, a.index)
		if err != nil {
			return err
		}
		printSuccess("Indexed %d records", built)
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("reindex", false, "rebuild the semantic index after importing")
}

// --- source ---

var sourceCmd = &cobra.Command{
	Use:   "source <file>",
	Short: "Print the text of a source inspection document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		text, err := sources.NewLibrary(cfg.Sources.Dir).Text(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

// --- session ---

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage conversation sessions on the running server",
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <id>",
	Short: "Clear the history of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := clearSession(cmd.Context(), client, args[0]); err != nil {
			return err
		}
		printSuccess("Session %s cleared", args[0])
		return nil
	},
}

func clearSession(ctx context.Context, client *apiClient, id string) error {
	resp, err := client.delete(ctx, "/session/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	var result map[string]string
	return decodeJSON(resp, &result)
}

func init() {
	sessionCmd.AddCommand(sessionClearCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vinq system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// probeServer asks the running server for its health report.
func probeServer(ctx context.Context, client *apiClient) (api.HealthResponse, error) {
	var health api.HealthResponse
	resp, err := client.get(ctx, "/health")
	if err != nil {
		return health, err
	}
	err = decodeJSON(resp, &health)
	return health, err
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	if client, err := newAPIClient(); err == nil {
		health, err := probeServer(ctx, client)
		if err != nil {
			printStatus("Server", "stopped")
		} else {
			printStatus("Server", "running on port %d", cfg.Server.Port)
			if idx := health.Index; idx != nil {
				line := fmt.Sprintf("%d background rebuilds", idx.Builds)
				if idx.LastError != "" {
					line += ", last error: " + idx.LastError
				}
				printStatus("Reindex", "%s", line)
			}
		}
	}

	llm := ollama.New(cfg.Ollama.BaseURL)
	if llm.IsRunning(ctx) {
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	} else {
		printStatus("Ollama", "not running")
	}
	printStatus("Model", "%s", cfg.Ollama.Model)
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)

	if store, err := storage.Open(cfg.Storage.DBPath); err == nil {
		if n, err := store.CountRecords(ctx); err == nil {
			printStatus("Records", "%d", n)
		}
		if versions, err := store.AppliedMigrations(); err == nil && len(versions) > 0 {
			printStatus("Schema", "migration %d", versions[len(versions)-1])
		}
		store.Close()
	}
	printStatus("Index", "%s", cfg.Index.Backend)
	printStatus("Memory", "%s", cfg.Memory.Backend)
	printStatus("Cache", "%s", cfg.Cache.Backend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
