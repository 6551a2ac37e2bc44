package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/semdex/semdex/internal/ai"
	"github.com/semdex/semdex/internal/cache"
	"github.com/semdex/semdex/internal/config"
	"github.com/semdex/semdex/internal/filestore"
	"github.com/semdex/semdex/internal/handler"
	"github.com/semdex/semdex/internal/job"
	"github.com/semdex/semdex/internal/middleware"
	"github.com/semdex/semdex/internal/pipeline"
	"github.com/semdex/semdex/internal/schedule"
	"github.com/semdex/semdex/internal/store"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "semdex",
		Short: "semantic search over local media",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	loadConfig := func() (*config.Config, error) {
		if configPath == "" {
			return nil, fmt.Errorf("--config is required")
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(
			cfg.LogConfig.File,
			cfg.LogConfig.Level,
			int(cfg.LogConfig.FileCount),
			int(cfg.LogConfig.FileSize),
			int(cfg.LogConfig.KeepDays),
			cfg.LogConfig.Console,
		)
		logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
		return cfg, nil
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the semdex http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return runServer(cfg, app)
		},
	}

	var indexModality, indexDir string
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "index a directory of media files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return runIndex(cfg, app, indexModality, indexDir)
		},
	}
	indexCmd.Flags().StringVar(&indexModality, "modality", "text", "modality to index")
	indexCmd.Flags().StringVar(&indexDir, "dir", "", "directory to scan, defaults to the configured root")

	var searchModality string
	var searchTopK int
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "search the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return runSearch(app, searchModality, args[0], searchTopK)
		},
	}
	searchCmd.Flags().StringVar(&searchModality, "modality", "text", "modality to search")
	searchCmd.Flags().IntVar(&searchTopK, "k", 10, "number of results")

	rootCmd.AddCommand(serveCmd, indexCmd, searchCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

type app struct {
	stores    map[string]store.Store
	files     filestore.Store
	manager   *ai.Manager
	pipelines map[string]pipeline.Pipeline
	text      *pipeline.TextPipeline
	runner    *pipeline.Runner
}

func buildApp(cfg *config.Config) (*app, error) {
	files, err := filestore.New(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}

	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	manager := ai.NewManager(provider, ai.ManagerConfig{
		EmbedModel:       cfg.AI.EmbedModel,
		CaptionModel:     cfg.AI.CaptionModel,
		TranscribeModel:  cfg.AI.TranscribeModel,
		Timeout:          cfg.AI.TimeoutSeconds,
		Language:         cfg.AI.Language,
		CaptionMaxLength: cfg.AI.CaptionMaxLength,
		CaptionNumBeams:  cfg.AI.CaptionNumBeams,
	})

	stores := make(map[string]store.Store)
	for _, modality := range config.Modalities() {
		st, err := store.New(cfg.Store.Type, modality, cfg.Store.Data)
		if err != nil {
			for _, opened := range stores {
				opened.Close()
			}
			return nil, fmt.Errorf("open %s store: %w", modality, err)
		}
		stores[modality] = st
	}

	diskCache, err := cache.NewDiskCache(filepath.Join(cfg.DataDir, "captions"))
	if err != nil {
		return nil, fmt.Errorf("init caption cache: %w", err)
	}
	captionCache := cache.WrapLRU(diskCache, 4096, time.Hour)

	textPipe := pipeline.NewTextPipeline(manager, stores["text"], cfg.Index.Extensions["text"], cfg.Index.SnippetHalfLen)
	imagePipe := pipeline.NewImagePipeline(manager, manager, stores["image"], captionCache, files,
		cfg.Index.Extensions["image"], cfg.Index.ImageMaxSize, cfg.Index.PDFWorkers)
	// Video keyframes go through the image pipeline, sharing its caption cache.
	videoPipe := pipeline.NewVideoPipeline(manager, imagePipe, stores["video"], files,
		cfg.Index.Extensions["video"], cfg.Index.FrameIntervalSeconds)
	musicPipe := pipeline.NewMusicPipeline(manager, manager, stores["music"], cfg.Index.Extensions["music"])

	pipelines := map[string]pipeline.Pipeline{
		textPipe.Name():  textPipe,
		imagePipe.Name(): imagePipe,
		videoPipe.Name(): videoPipe,
		musicPipe.Name(): musicPipe,
	}
	return &app{
		stores:    stores,
		files:     files,
		manager:   manager,
		pipelines: pipelines,
		text:      textPipe,
		runner:    pipeline.NewRunner(),
	}, nil
}

func (a *app) Close() {
	for _, st := range a.stores {
		if err := st.Close(); err != nil {
			logutil.GetLogger(context.Background()).Warn("close store failed", zap.Error(err))
		}
	}
}

func runServer(cfg *config.Config, a *app) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("store", cfg.Store.Type),
		zap.String("file_store", cfg.FileStore.Type),
	)

	deps := handler.RouterDeps{
		Search:         handler.NewSearchHandler(a.pipelines, a.text),
		Index:          handler.NewIndexHandler(a.runner, a.pipelines, cfg.Index.Roots, cfg.Index.Extensions),
		Files:          handler.NewFileHandler(a.files),
		IndexRateLimit: time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Index.Schedule != "" {
		scheduler := schedule.NewCronScheduler()
		for modality, root := range cfg.Index.Roots {
			if err := scheduler.AddJob(job.NewReindexJob(a.runner, a.pipelines[modality], root, cfg.Index.Extensions[modality]), cfg.Index.Schedule); err != nil {
				return fmt.Errorf("schedule %s reindex: %w", modality, err)
			}
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func runIndex(cfg *config.Config, a *app, modality, dir string) error {
	p, ok := a.pipelines[modality]
	if !ok {
		return fmt.Errorf("unknown modality: %s", modality)
	}
	if dir == "" {
		dir = cfg.Index.Roots[modality]
	}
	if dir == "" {
		return fmt.Errorf("--dir is required: no configured root for %s", modality)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.IndexDirectory(ctx, p, dir, cfg.Index.Extensions[modality], nil)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil && report == nil {
		return err
	}
	out, encErr := json.MarshalIndent(report, "", "  ")
	if encErr != nil {
		return encErr
	}
	fmt.Println(string(out))
	return err
}

func runSearch(a *app, modality, query string, topK int) error {
	p, ok := a.pipelines[modality]
	if !ok {
		return fmt.Errorf("unknown modality: %s", modality)
	}
	results, err := p.Search(context.Background(), query, topK)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
