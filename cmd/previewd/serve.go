package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sandview/previewd/internal/broadcast"
	"github.com/sandview/previewd/internal/config"
	"github.com/sandview/previewd/internal/htmlproc"
	"github.com/sandview/previewd/internal/inspector"
	"github.com/sandview/previewd/internal/modserver"
	"github.com/sandview/previewd/internal/projectfs"
	"github.com/sandview/previewd/internal/resolve"
	"github.com/sandview/previewd/internal/telemetry"
	"github.com/sandview/previewd/internal/transform"
	"github.com/sandview/previewd/internal/ui"
)

const shutdownGrace = 5 * time.Second

// serveCmd runs the preview server until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the project with hot reload",
	Long: `Serve the project's files as native ES modules, compiling TypeScript
and JSX on the fly, watching the project root for changes, and pushing
hot updates to connected preview frames.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("config", "c", config.ConfigFileName, "Path to the project config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		ui.PrintError("Failed to load config: %v", err)
		return err
	}

	shutdownTelemetry, err := telemetry.Setup("previewd", version)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	projectID := cfg.Project.Name
	fs := projectfs.New(cfg.Project.Root)
	resolver := resolve.New(fs, cfg.Server.BasePath, cfg.CDN.BaseURL)
	modules := modserver.New(resolver)
	registry := broadcast.NewRegistry(cfg.HMR.SessionIdleTimeout())
	defer registry.Close()
	bridges := inspector.NewBridges()

	watcher, err := broadcast.NewWatcher(cfg.Project.Root, cfg.HMR.WatchDebounce(), func(paths []string) {
		log.Debug("change batch", "project", projectID, "paths", paths)
		registry.Session(projectID).NotifyChange(paths)
	})
	if err != nil {
		return fmt.Errorf("failed to watch project root: %w", err)
	}
	go watcher.Run(ctx)

	srv := &server{
		cfg:       cfg,
		projectID: projectID,
		fs:        fs,
		modules:   modules,
		registry:  registry,
		bridges:   bridges,
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	printServing(cfg)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	ui.Println()
	ui.PrintDim("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", "err", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Debug("telemetry shutdown failed", "err", err)
	}
	return nil
}

// printServing announces the serving endpoints.
func printServing(cfg *config.ProjectConfig) {
	if ui.StdoutIsTerminal() {
		ui.PrintBox(cfg.Project.Name, fmt.Sprintf("Preview  %s\nChannel  %s", cfg.BaseURL(), cfg.ChannelURL(cfg.Project.Name)))
	} else {
		ui.PrintSuccess("Serving %s", cfg.Project.Name)
		ui.PrintLink("Preview", cfg.BaseURL())
		ui.PrintLink("Channel", cfg.ChannelURL(cfg.Project.Name))
	}
	ui.PrintDim("Watching %s", cfg.Project.Root)
}

// server holds the wired request-handling collaborators.
type server struct {
	cfg       *config.ProjectConfig
	projectID string
	fs        *projectfs.ProjectFS
	modules   *modserver.Server
	registry  *broadcast.Registry
	bridges   *inspector.Bridges
}

// routes builds the HTTP mux: module serving under the base path plus the
// channel, inspector, and health endpoints.
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	base := strings.TrimSuffix(s.cfg.Server.BasePath, "/")
	mux.HandleFunc(base+"/", s.handlePreview)
	mux.HandleFunc(base, s.handlePreview)

	mux.HandleFunc(config.ChannelPath, s.handleChannel)
	mux.HandleFunc(config.InspectorPath, s.handleInspector)
	mux.HandleFunc(config.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// handlePreview serves the instrumented HTML entry for the base path itself
// and transformed modules for everything beneath it.
func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSuffix(s.cfg.Server.BasePath, "/")
	path := strings.TrimPrefix(r.URL.Path, base)

	if path == "" || path == "/" || path == "/"+s.cfg.Project.Entry {
		s.serveEntry(w, r)
		return
	}
	s.serveModule(w, r, path)
}

// serveEntry reads the entry document and instruments it with the reload
// bootstrap before serving.
func (s *server) serveEntry(w http.ResponseWriter, r *http.Request) {
	doc, err := s.fs.ReadFile(r.Context(), "/"+s.cfg.Project.Entry)
	if err != nil {
		http.Error(w, "entry document not found", http.StatusNotFound)
		return
	}

	out, err := htmlproc.Process(string(doc), htmlproc.Config{
		ChannelURL:           s.cfg.ChannelURL(s.projectID),
		BaseURL:              s.cfg.Server.BasePath,
		ReloadDebounceMs:     s.cfg.HMR.ReloadDebounceMs,
		MaxReconnectAttempts: s.cfg.HMR.MaxReconnectAttempts,
	})
	if err != nil {
		log.Error("failed to instrument entry", "err", err)
		http.Error(w, "failed to process entry document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// serveModule transforms one project file and serves it with its imports
// rewritten. Transform failures are broadcast to connected clients as
// bundle errors in addition to failing the request.
func (s *server) serveModule(w http.ResponseWriter, r *http.Request, path string) {
	content, err := s.fs.ReadFile(r.Context(), path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	served, err := s.modules.Serve(r.Context(), path, content)
	if err != nil {
		var be *transform.BundleError
		if errors.As(err, &be) {
			s.registry.Session(s.projectID).NotifyError(broadcast.ErrorPayload{
				Type:    broadcast.ErrorTypeBundle,
				Message: be.Error(),
				Path:    be.Path,
				Overlay: true,
			})
		}
		log.Error("failed to serve module", "path", path, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", served.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(served.Code)
}

// handleChannel attaches a reload client websocket to its project session.
func (s *server) handleChannel(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project")
	if projectID == "" {
		projectID = s.projectID
	}
	session := s.registry.Session(projectID)
	if err := broadcast.ServeChannel(w, r, session); err != nil {
		log.Debug("channel upgrade failed", "err", err)
	}
}

// handleInspector attaches one side of the inspector bridge.
func (s *server) handleInspector(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project")
	if projectID == "" {
		projectID = s.projectID
	}
	role := r.URL.Query().Get("role")
	bridge := s.bridges.Bridge(projectID)
	if err := bridge.Attach(w, r, role); err != nil {
		log.Debug("inspector attach failed", "role", role, "err", err)
	}
}
