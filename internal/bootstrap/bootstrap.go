package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	blobstore "imgconv-server-go/internal/domain/blob/store"
	domainconvert "imgconv-server-go/internal/domain/convert"
	"imgconv-server-go/internal/domain/eventbus"
	"imgconv-server-go/internal/domain/stats"
	platformconfig "imgconv-server-go/internal/platform/config"
	platformerrors "imgconv-server-go/internal/platform/errors"
	platformlogging "imgconv-server-go/internal/platform/logging"
	platformobservability "imgconv-server-go/internal/platform/observability"
	platformstorage "imgconv-server-go/internal/platform/storage"
	httptransport "imgconv-server-go/internal/transport/http"
	httpconvert "imgconv-server-go/internal/transport/http/convert"
	"imgconv-server-go/internal/utils"
)

const (
	eventWorkers = 2
	eventQueue   = 256
)

// Options 控制配置文件来源。
type Options struct {
	ConfigPath string
	DotEnv     bool
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	opts                  Options
	config                *platformconfig.Config
	configPath            string
	logProvider           *platformlogging.Logger
	logger                *utils.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	db                    *gorm.DB
	store                 blobstore.Store
	bus                   *eventbus.Bus
	collector             *stats.Collector
	converter             *domainconvert.Converter
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context, opts Options) error {
	state := &appState{opts: opts}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.release()
		return err
	}
	defer state.release()

	if state.config == nil || state.logger == nil || state.converter == nil || state.store == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger/converter/store not initialised",
		)
	}
	logger := state.logger
	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		_ = group.Wait()
		return err
	}

	return waitForShutdown(signalCtx, groupCtx, cancel, logger, group, state.config.Server.ShutdownTimeout)
}

// release 按初始化的逆序释放资源，未初始化的部分跳过。
func (s *appState) release() {
	logger := s.logger
	if s.bus != nil {
		s.bus.Stop()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logger.WarnTag("存储", "结果存储未正常关闭: %v", err)
		}
	}
	if s.db != nil {
		if err := platformstorage.Close(s.db); err != nil {
			logger.WarnTag("存储", "数据库未正常关闭: %v", err)
		}
	}
	if s.converter != nil {
		domainconvert.ShutdownCodecs()
	}
	if shutdown := s.observabilityShutdown; shutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := shutdown(shutdownCtx); err != nil {
			logger.WarnTag("引导", "可观测性未正常关闭: %v", err)
		}
		cancel()
	}
	if s.logProvider != nil {
		logger.InfoTag("引导", "服务已退出")
		_ = s.logProvider.Close()
	}
}

func logBootstrapGraph(steps []initStep, logger *utils.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("引导", "初始化依赖关系概览")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("引导", "%s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag("引导", "%s (%s) <- %s", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
	logger.InfoTag("引导", "启动服务")
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

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-blob-store",
			Title:     "Initialise result store",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initBlobStoreStep,
		},
		{
			ID:        "events:init-bus",
			Title:     "Initialise event bus and statistics",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "convert:init-converter",
			Title:     "Initialise converter",
			DependsOn: []string{"observability:setup-hooks", "events:init-bus"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initConverterStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := platformconfig.NewLoader().WithDotEnv(state.opts.DotEnv)
	if state.opts.ConfigPath != "" {
		loader = loader.WithFile(state.opts.ConfigPath)
	}
	result, err := loader.Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load config", err)
	}

	state.config = result.Config
	state.configPath = result.Path
	if state.configPath == "" {
		state.configPath = "defaults"
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logProvider, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logProvider = logProvider
	state.logger = logProvider.Legacy()
	state.slogger = logProvider.Slog()
	utils.DefaultLogger = state.logger

	state.logger.InfoTag(
		"引导",
		"日志模块就绪 [%s] %s",
		state.config.Log.Level,
		state.configPath,
	)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state == nil || state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	cfg := platformobservability.Config{
		Enabled: state.config.Observability.Enabled || strings.EqualFold(state.config.Log.Level, "debug"),
	}
	shutdown, err := platformobservability.Setup(ctx, cfg, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func initBlobStoreStep(_ context.Context, state *appState) error {
	cfg := state.config.Store
	storeCfg := blobstore.Config{
		Driver:            strings.ToLower(cfg.Driver),
		TTL:               cfg.TTL,
		CompressThreshold: cfg.CompressThreshold,
		Memory:            &blobstore.MemoryConfig{GCInterval: cfg.Cleanup},
		Redis: &blobstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		},
	}

	var deps blobstore.Dependencies
	if storeCfg.Driver == blobstore.DriverSQLite {
		db, err := platformstorage.Open(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		state.db = db
		deps.SQLiteDB = db
	}

	store, err := blobstore.New(storeCfg, deps)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-blob-store", "failed to create result store", err)
	}
	state.store = store

	driver := storeCfg.Driver
	if driver == "" {
		driver = blobstore.DriverMemory
	}
	state.logger.InfoTag("存储", "结果存储就绪 [%s] ttl=%s", driver, cfg.TTL)
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.New(eventWorkers, eventQueue, state.logger)
	collector := stats.NewCollector()
	if err := collector.Attach(bus); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "events:init-bus", "failed to attach stats collector", err)
	}
	if err := eventbus.SubscribeLogging(bus, state.logger); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "events:init-bus", "failed to subscribe event logging", err)
	}
	bus.Start()

	state.bus = bus
	state.collector = collector
	return nil
}

func initConverterStep(_ context.Context, state *appState) error {
	cfg := state.config
	state.converter = domainconvert.NewConverter(domainconvert.Options{
		Logger:            state.logger,
		Publisher:         state.bus,
		ArchiveAllowGIF:   cfg.Convert.ArchiveAllowGIF,
		MaxArchiveEntries: cfg.Convert.MaxArchiveEntries,
		PreviewSize:       cfg.Convert.PreviewSize,
		Limits: domainconvert.Limits{
			MaxFileSize: cfg.Security.MaxFileSize,
			MaxPixels:   cfg.Security.MaxPixels,
			MaxWidth:    cfg.Security.MaxWidth,
			MaxHeight:   cfg.Security.MaxHeight,
		},
	})
	return nil
}

func buildRouter(state *appState, groupCtx context.Context) (*gin.Engine, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	index := ""
	if config.Web.StaticDir != "" {
		candidate := filepath.Join(config.Web.StaticDir, "index.html")
		if _, err := os.Stat(candidate); err == nil {
			index = candidate
		}
	}
	router.NoRoute(func(c *gin.Context) {
		if index == "" || strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, httptransport.APIResponse{
				Success: false,
				Data:    gin.H{},
				Message: "api Not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		c.File(index)
	})

	convertService, err := httpconvert.NewService(config, logger, state.converter, state.store, state.collector)
	if err != nil {
		logger.ErrorTag("HTTP", "转换服务初始化失败: %v", err)
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "convert:new-service", "failed to create convert service", err)
	}
	if err := convertService.Register(groupCtx, httpRouter.API); err != nil {
		return nil, err
	}

	if config.Web.Docs {
		httptransport.RegisterDocs(router, logger)
	}
	return router, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	router, err := buildRouter(state, groupCtx)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	timeout := config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "Gin 服务已启动，访问地址 http://%s", addr)
		if config.Web.Docs {
			logger.InfoTag("HTTP", "在线文档入口: http://%s/docs", addr)
		}

		shutdownDone := make(chan struct{})
		go func() {
			defer close(shutdownDone)
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP 服务关闭失败: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP 服务已优雅关闭")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP 服务启动失败: %v", err)
			return err
		}
		<-shutdownDone
		return nil
	})

	return httpServer, nil
}

// startCleanupLoop 定期清除过期结果，redis 依赖原生 TTL，调用为空操作。
func startCleanupLoop(state *appState, g *errgroup.Group, groupCtx context.Context) {
	interval := state.config.Store.Cleanup
	if interval <= 0 {
		return
	}
	store := state.store
	logger := state.logger

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if err := store.CleanupExpired(groupCtx); err != nil && groupCtx.Err() == nil {
					logger.WarnTag("存储", "清理过期结果失败: %v", err)
				}
			}
		}
	})
}

func waitForShutdown(
	ctx context.Context,
	groupCtx context.Context,
	cancel context.CancelFunc,
	logger *utils.Logger,
	g *errgroup.Group,
	timeout time.Duration,
) error {
	select {
	case <-ctx.Done():
		logger.InfoTag("引导", "收到退出信号 %v，正在进行资源清理", context.Cause(ctx))
	case <-groupCtx.Done():
		logger.WarnTag("引导", "服务异常退出，正在进行资源清理")
	}

	cancel()

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("引导", "服务关闭过程中出现错误: %v", err)
			return err
		}
		logger.InfoTag("引导", "所有服务已成功关闭")
	case <-time.After(timeout + 5*time.Second):
		logger.ErrorTag("引导", "服务关闭超时，已强制退出")
		return errors.New("服务关闭超时")
	}
	return nil
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	if _, err := startHTTPServer(state, g, groupCtx); err != nil {
		return fmt.Errorf("启动 Http 服务失败: %w", err)
	}
	startCleanupLoop(state, g, groupCtx)
	return nil
}
