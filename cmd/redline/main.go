// Command redline is an AI-assisted wiki page editor. It runs either as a
// local HTTP service for browser clients or as an interactive terminal
// session against a single page.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/odvcencio/redline/pkg/config"
	"github.com/odvcencio/redline/pkg/httpapi"
	"github.com/odvcencio/redline/pkg/logging"
	"github.com/odvcencio/redline/pkg/memory"
	"github.com/odvcencio/redline/pkg/orchestrator"
	"github.com/odvcencio/redline/pkg/pagecache"
	"github.com/odvcencio/redline/pkg/session"
	"github.com/odvcencio/redline/pkg/storage"
	"github.com/odvcencio/redline/pkg/suggest"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default ~/.redline/config.yaml)")
		repoURL     = flag.String("repo", "", "repository URL of the wiki to edit")
		pageID      = flag.String("page", "", "wiki page ID to edit")
		dbPath      = flag.String("db", "", "override sqlite database path")
		serve       = flag.Bool("serve", false, "run the HTTP API instead of an interactive session")
		bind        = flag.String("bind", "", "override HTTP API bind address")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("redline %s (%s, built %s)\n", version, commit, buildDate)
		return
	}

	if err := run(*configPath, *repoURL, *pageID, *dbPath, *bind, *serve); err != nil {
		fmt.Fprintf(os.Stderr, "redline: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, repoURL, pageID, dbPath, bind string, serve bool) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if bind != "" {
		cfg.API.Bind = bind
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, session.GenerateSessionID("redline"))
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logger.Close()
	logger.SetMinLevel(logging.Level(cfg.Logging.Level))

	db, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer db.Close()

	provider := suggest.NewClientWithOptions(cfg.Provider.APIKey, cfg.Provider.BaseURL, suggest.ClientOptions{
		RequestsPerSec: cfg.Provider.RequestsPerSec,
		Timeout:        cfg.ProviderTimeout(),
	})

	deps := httpapi.Options{
		Provider:        provider,
		MemoryStore:     memory.NewStore(db),
		PageCache:       pagecache.NewClient(cfg.PageCache.BaseURL),
		Transient:       pagecache.NewTransientCache(),
		Logger:          logger,
		AllowManualEdit: cfg.Editor.AllowManualEdit,
		MemoryContext:   cfg.Editor.MemoryContext,
		TokenBudget:     cfg.Editor.TokenBudget,
		Model:           cfg.Provider.Model,
	}

	if serve {
		return runServer(cfg.API.Bind, deps, logger)
	}
	return runInteractive(repoURL, pageID, deps, logger)
}

func runServer(bind string, deps httpapi.Options, logger *logging.Logger) error {
	srv := &http.Server{
		Addr:              bind,
		Handler:           httpapi.NewServer(deps).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info(logging.CategoryAPI, "server_started", "http api listening", map[string]any{
			"bind": bind,
		})
		fmt.Printf("redline API listening on %s\n", bind)
		errs <- srv.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sig:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func runInteractive(repoURL, pageID string, deps httpapi.Options, logger *logging.Logger) error {
	if repoURL == "" || pageID == "" {
		return fmt.Errorf("interactive mode requires -repo and -page (or use -serve)")
	}

	owner, repo, err := session.ParseRepoURL(repoURL)
	if err != nil {
		return err
	}

	ctx := context.Background()
	cache, err := deps.PageCache.Load(ctx, pagecache.Key{Owner: owner, Repo: repo})
	if err != nil {
		return err
	}
	page, ok := cache.GeneratedPages[pageID]
	if !ok {
		return fmt.Errorf("page %q not found in cached wiki for %s/%s", pageID, owner, repo)
	}

	logger.SetPageID(pageID)

	sess, err := orchestrator.NewSession(orchestrator.Config{
		RepoURL:         repoURL,
		PageID:          pageID,
		PageTitle:       page.Title,
		Document:        page.Content,
		Model:           deps.Model,
		Provider:        deps.Provider,
		MemoryStore:     deps.MemoryStore,
		PageCache:       deps.PageCache,
		Transient:       deps.Transient,
		Logger:          logger,
		AllowManualEdit: deps.AllowManualEdit,
		MemoryContext:   deps.MemoryContext,
		TokenBudget:     deps.TokenBudget,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Printf("Editing %s/%s page %q (%d bytes)\n", owner, repo, pageID, len(page.Content))
	fmt.Println(`Type an edit request, or :help for commands.`)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			done, err := runCommand(ctx, sess, line)
			if err != nil {
				fmt.Printf("error: %v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		submit(ctx, sess, line)
	}
}

func submit(ctx context.Context, sess *orchestrator.Session, prompt string) {
	outcome, err := sess.Submit(ctx, prompt, func(chunk string) {
		fmt.Print(chunk)
	})
	fmt.Println()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	switch {
	case outcome.DocumentChanged:
		if outcome.UnifiedDiff != "" {
			fmt.Print(outcome.UnifiedDiff)
		}
		fmt.Printf("revision applied (+%d/-%d lines); :accept to keep it, :reject to undo\n",
			outcome.Diff.LinesAdded, outcome.Diff.LinesRemoved)
	case outcome.Kind == "irrelevant":
		fmt.Println("the request was judged unrelated to this page; nothing changed")
	}
}

func runCommand(ctx context.Context, sess *orchestrator.Session, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":help":
		fmt.Println(`commands:
  :show                 print the document
  :highlight START END  highlight a byte range
  :highlights           list highlights
  :clear                clear highlights
  :accept / :reject     resolve the pending revision
  :save                 save the page back to the wiki cache
  :reset                clear edit memory and preferences
  :quit                 exit`)
	case ":show":
		fmt.Println(sess.AnnotatedDocument())
	case ":highlight":
		if len(fields) != 3 {
			return false, fmt.Errorf("usage: :highlight START END")
		}
		start, err1 := strconv.Atoi(fields[1])
		end, err2 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil {
			return false, fmt.Errorf("offsets must be integers")
		}
		if err := sess.AddHighlight(start, end); err != nil {
			return false, err
		}
		fmt.Printf("%d highlight(s)\n", len(sess.Highlights()))
	case ":highlights":
		for _, r := range sess.Highlights() {
			fmt.Printf("  [%d,%d) %q\n", r.Start, r.End, r.Text)
		}
	case ":clear":
		sess.ClearHighlights()
	case ":accept":
		if err := sess.AcceptRevision(); err != nil {
			return false, err
		}
		fmt.Println("revision accepted")
	case ":reject":
		if err := sess.RejectRevision(); err != nil {
			return false, err
		}
		fmt.Println("revision rejected; document restored")
	case ":save":
		if err := sess.Save(ctx); err != nil {
			return false, err
		}
		fmt.Println("saved")
	case ":reset":
		if err := sess.ResetMemory(); err != nil {
			return false, err
		}
		fmt.Println("edit memory cleared")
	case ":quit", ":q", ":exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %s (try :help)", fields[0])
	}
	return false, nil
}
