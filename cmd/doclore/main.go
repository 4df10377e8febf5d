// doclore is a local-first "chat with your documents" tool: documents
// are chunked, embedded, and stored in SQLite; chat turns retrieve the
// most relevant chunks under a token budget and can invoke tools to
// read, write, and reorganize the document base.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"doclore/internal/agent"
	"doclore/internal/chat"
	"doclore/internal/config"
	"doclore/internal/contextmgr"
	"doclore/internal/docproc"
	"doclore/internal/embedding"
	"doclore/internal/ingest"
	"doclore/internal/llm"
	"doclore/internal/logging"
	"doclore/internal/store"
	"doclore/internal/syncer"
	"doclore/internal/tools"
	"doclore/internal/version"
	"doclore/internal/websearch"
)

var (
	// Global flags
	configPath  string
	dataDir     string
	debugMode   bool
	projectName string
)

var rootCmd = &cobra.Command{
	Use:   "doclore",
	Short: "doclore - chat with your local document base",
	Long: `doclore ingests your documents into a local SQLite store, embeds them
for semantic retrieval, and lets you chat over them with an LLM that can
read, search, summarize, and edit files through tool calls.

Run without arguments to start an interactive chat.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, dataDir)
		if err != nil {
			return err
		}
		if debugMode {
			cfg.Logging.DebugMode = true
		}
		if err := logging.Initialize(logging.Options{
			DebugMode:  cfg.Logging.DebugMode,
			Categories: cfg.Logging.Categories,
			Dir:        filepath.Join(cfg.DataDir, "logs"),
		}); err != nil {
			return err
		}
		loadedCfg = cfg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Shutdown()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// loadedCfg is populated by the root PersistentPreRunE.
var loadedCfg config.Config

// app bundles the wired subsystems a command works against.
type app struct {
	cfg      config.Config
	store    *store.Store
	engine   embedding.Engine
	client   llm.Client
	versions *version.Manager
	indexer  *ingest.Indexer
	registry *tools.Registry
	contexts *contextmgr.Manager
	chat     *chat.Service
	agent    *agent.Agent
	research *websearch.Service
	syncer   *syncer.Syncer
}

// openApp wires the full system. needLLM commands fail early when no
// completion client can be configured; ingestion-only commands pass
// false and work offline.
func openApp(needLLM bool) (*app, error) {
	cfg := loadedCfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	s, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return nil, err
	}

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		s.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		store:    s,
		engine:   engine,
		versions: version.NewManager(s, 0),
	}
	a.indexer = ingest.NewIndexer(s, engine, docproc.NewProcessor(), a.versions, cfg.Chunking)
	a.contexts = contextmgr.NewManager(s, engine, cfg.Context)

	if provider, err := websearch.NewProvider(cfg.WebSearch); err == nil {
		fetcher := websearch.NewHTTPFetcher(cfg.WebSearch.FetchTimeout, cfg.WebSearch.MaxFetchBytes)
		a.research = websearch.NewService(s, engine, provider, fetcher, cfg.WebSearch, cfg.Chunking)
	} else {
		logging.Get(logging.CategorySearch).Warn("Web research disabled: %v", err)
	}

	a.client, err = llm.NewClient(cfg.LLM)
	if err != nil {
		if needLLM {
			s.Close()
			return nil, fmt.Errorf("no LLM configured: %w (set GEMINI_API_KEY)", err)
		}
		logging.Get(logging.CategoryLLM).Warn("No LLM configured: %v", err)
	}

	a.registry = tools.NewRegistry()
	tools.RegisterAll(a.registry, tools.Deps{
		Store:    s,
		Engine:   engine,
		LLM:      a.client,
		Versions: a.versions,
		Indexer:  a.indexer,
		Research: a.research,
		Cfg:      cfg,
	})

	if a.client != nil {
		a.chat = chat.New(s, a.contexts, a.client, a.registry)
		a.agent = agent.New(a.client, a.registry, cfg.Agent)
	}
	a.syncer = syncer.New(s, a.indexer, cfg.Sync.Dir)
	return a, nil
}

func (a *app) Close() {
	a.store.Close()
}

// scope resolves the --project flag to a store scope; empty means
// global.
func (a *app) scope() (store.Scope, error) {
	if projectName == "" {
		return store.Scope{}, nil
	}
	p, err := a.store.GetProjectByName(projectName)
	if err != nil {
		return store.Scope{}, err
	}
	return store.Scope{ProjectID: p.ID}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default $DOCLORE_DATA_DIR/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.doclore)")
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&projectName, "project", "p", "", "project scope (default: global)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(syncCmd)
}
