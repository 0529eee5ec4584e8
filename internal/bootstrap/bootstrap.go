// Package bootstrap wires configuration, logging, the document engine and
// the HTTP surface together, and owns the service lifecycle from start to
// graceful shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/abdrou13-pixel/ReadCard/internal/domain/engine"
	"github.com/abdrou13-pixel/ReadCard/internal/domain/engine/sim"
	"github.com/abdrou13-pixel/ReadCard/internal/domain/image"
	"github.com/abdrou13-pixel/ReadCard/internal/domain/reader"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/config"
	platformerrors "github.com/abdrou13-pixel/ReadCard/internal/platform/errors"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/logging"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/observability"
	httptransport "github.com/abdrou13-pixel/ReadCard/internal/transport/http"
	"github.com/abdrou13-pixel/ReadCard/internal/transport/http/events"
	"github.com/abdrou13-pixel/ReadCard/internal/transport/http/readapi"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config     *config.Config
	configPath string
	logger     *logging.Logger

	observabilityShutdown observability.ShutdownFunc

	engine      engine.Engine
	gateway     *reader.Gateway
	coordinator *reader.Coordinator
}

// Run starts the whole service lifecycle: init graph, HTTP server, and
// graceful shutdown on SIGINT/SIGTERM.
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	cfg := state.config
	logger := state.logger
	if cfg == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}
	if state.coordinator == nil || state.gateway == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"read coordinator not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	if shutdown := state.observabilityShutdown; shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.WarnTag("[BOOT]", "observability shutdown: %v", err)
			}
		}()
	}
	defer state.gateway.Close()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	eventsService, err := startHTTPServer(state, group, groupCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("start http server: %w", err)
	}
	defer eventsService.Close()

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("[BOOT]", "service stopped cleanly")
	logger.Close()
	return nil
}

func logBootstrapGraph(steps []initStep, logger *logging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("[BOOT]", "init sequence:")
	for _, step := range steps {
		logger.InfoTag("[BOOT]", "  %s (%s)", step.ID, step.Title)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph declares the ordered init steps and their dependencies.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init",
			Title:     "Initialise logging",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "engine:init",
			Title:     "Initialise document engine",
			DependsOn: []string{"logging:init"},
			Kind:      platformerrors.KindEngine,
			Execute:   initEngineStep,
		},
		{
			ID:        "gateway:init",
			Title:     "Open reader device",
			DependsOn: []string{"engine:init"},
			Kind:      platformerrors.KindEngine,
			Execute:   initGatewayStep,
		},
		{
			ID:        "coordinator:init",
			Title:     "Initialise read coordinator",
			DependsOn: []string{"gateway:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initCoordinatorStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := config.NewLoader().Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	logger, err := logging.New(logging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init", "create logger", err)
	}
	state.logger = logger
	logging.DefaultLogger = logger
	logger.InfoTag("[BOOT]", "configuration loaded from %s", state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	shutdown, err := observability.Setup(ctx, observability.Config{Enabled: true}, state.logger.Slog())
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "setup observability", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func initEngineStep(_ context.Context, state *appState) error {
	backend := state.config.Reader.Engine
	switch backend {
	case "", "sim":
		state.engine = sim.New(defaultSimScript(), state.logger)
		state.logger.InfoTag("[BOOT]", "document engine: simulator")
	default:
		return platformerrors.New(
			platformerrors.KindEngine,
			"engine:init",
			"unknown engine backend: "+backend,
		)
	}
	return nil
}

func initGatewayStep(_ context.Context, state *appState) error {
	state.gateway = reader.NewGateway(state.engine, state.config.Reader.DeviceName, state.logger)

	// A missing device at startup is not fatal; the coordinator opens
	// lazily and the gateway reopens on reconnect events.
	if err := state.gateway.OpenConfigured(""); err != nil {
		state.logger.WarnTag("[BOOT]", "reader device not ready: %v", err)
	}
	return nil
}

func initCoordinatorStep(_ context.Context, state *appState) error {
	state.coordinator = reader.NewCoordinator(reader.Options{
		Engine:       state.engine,
		Gateway:      state.gateway,
		Logger:       state.logger,
		Photo:        image.NewValidator(state.config.Photo, state.logger),
		Timeout:      time.Duration(state.config.Reader.TimeoutSeconds) * time.Second,
		AuthLevel:    mapAuthLevel(state.config.Reader.AuthLevel),
		IncludePhoto: state.config.Reader.IncludePhoto,
	})
	return nil
}

func mapAuthLevel(level config.AuthLevel) engine.AuthLevel {
	switch level {
	case config.AuthLevelMin:
		return engine.AuthMin
	case config.AuthLevelMax:
		return engine.AuthMax
	default:
		return engine.AuthOpt
	}
}

// defaultSimScript seeds the simulator with a sample document so a fresh
// checkout answers reads end to end.
func defaultSimScript() sim.Script {
	return sim.Script{
		Devices:     []string{"SIM-READER"},
		CardPresent: true,
		AuthOK:      true,
		Optical: map[engine.FieldRef]engine.Value{
			{Source: engine.SourceMRZ, ID: engine.FieldMRZText}:        {Text: "IDDZA000012345<<<<<<<<<<<<<<<"},
			{Source: engine.SourceMRZ, ID: engine.FieldSurname}:        {Text: "SAMPLE"},
			{Source: engine.SourceMRZ, ID: engine.FieldGivenName}:      {Text: "HOLDER"},
			{Source: engine.SourceMRZ, ID: engine.FieldBirthDate}:      {Text: "900101"},
			{Source: engine.SourceMRZ, ID: engine.FieldExpiryDate}:     {Text: "330101"},
			{Source: engine.SourceMRZ, ID: engine.FieldSex}:            {Text: "M"},
			{Source: engine.SourceMRZ, ID: engine.FieldDocumentNumber}: {Text: "000012345"},
		},
		Files: map[engine.ChipFileID]map[engine.FieldRef]engine.Value{
			engine.FilePersonalDetails: {
				{Source: engine.SourceChip, ID: engine.FieldSurname}:        {Text: "SAMPLE"},
				{Source: engine.SourceChip, ID: engine.FieldGivenName}:      {Text: "HOLDER"},
				{Source: engine.SourceChip, ID: engine.FieldFullNameNative}: {Text: "حامل عينة"},
				{Source: engine.SourceChip, ID: engine.FieldBirthDate}:      {Text: "19900101"},
				{Source: engine.SourceChip, ID: engine.FieldSex}:            {Text: "M"},
				{Source: engine.SourceChip, ID: engine.FieldDocumentNumber}: {Text: "000012345"},
			},
			engine.FileGeneralData: {},
			engine.FileDomesticData: {
				{Source: engine.SourceChip, ID: engine.FieldNIN}:     {Text: "109900000123456789"},
				{Source: engine.SourceChip, ID: engine.FieldAddress}: {Text: "ALGIERS"},
			},
			engine.FileIssuerDetails: {
				{Source: engine.SourceChip, ID: engine.FieldIssueDate}: {Text: "20240101"},
			},
			engine.FileFace:            {},
			engine.FileSignatureImage:  {},
			engine.FileSecurityObjects: {},
		},
	}
}

func startHTTPServer(
	state *appState,
	g *errgroup.Group,
	groupCtx context.Context,
) (*events.Service, error) {
	cfg := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config:     cfg,
		Logger:     logger,
		StaticRoot: cfg.Web.StaticDir,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api") {
			c.JSON(http.StatusNotFound, httptransport.APIResponse{
				Success: false,
				Data:    gin.H{},
				Message: "api not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		c.File(cfg.Web.StaticDir + "/index.html")
	})

	readService := readapi.NewService(cfg, state.coordinator, state.gateway, logger)
	readService.RegisterRoutes(httpRouter)

	eventsService := events.NewService(state.engine, logger)
	eventsService.RegisterRoutes(httpRouter)

	addr := cfg.Server.IP + ":" + strconv.Itoa(cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	g.Go(func() error {
		logger.InfoTag("[HTTP]", "listening on http://%s", addr)
		logger.InfoTag("[HTTP]", "read endpoint: POST http://%s/read", addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("[HTTP]", "shutdown: %v", err)
			} else {
				logger.InfoTag("[HTTP]", "server stopped gracefully")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("[HTTP]", "serve: %v", err)
			return err
		}
		return nil
	})

	return eventsService, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *logging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("[BOOT]", "shutdown signal received, cleaning up")

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("[BOOT]", "shutdown error: %v", err)
			return err
		}
		logger.InfoTag("[BOOT]", "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("[BOOT]", "shutdown timed out, forcing exit")
		return errors.New("shutdown timed out")
	}
	return nil
}

// loadConfigAndLogger runs the config and logging steps only; used by tests.
func loadConfigAndLogger() (*config.Config, *logging.Logger, error) {
	state := &appState{}
	steps := []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init",
			Title:     "Initialise logging",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
	}
	if err := executeInitSteps(context.Background(), steps, state); err != nil {
		return nil, nil, err
	}
	return state.config, state.logger, nil
}
