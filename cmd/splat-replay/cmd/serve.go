package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/saw4405/splat-replay/internal/analyzer"
	"github.com/saw4405/splat-replay/internal/database"
	"github.com/saw4405/splat-replay/internal/editor"
	"github.com/saw4405/splat-replay/internal/events"
	"github.com/saw4405/splat-replay/internal/ffmpeg"
	internalhttp "github.com/saw4405/splat-replay/internal/http"
	"github.com/saw4405/splat-replay/internal/http/handlers"
	"github.com/saw4405/splat-replay/internal/ocr"
	"github.com/saw4405/splat-replay/internal/recorder"
	"github.com/saw4405/splat-replay/internal/repository"
	"github.com/saw4405/splat-replay/internal/scheduler"
	"github.com/saw4405/splat-replay/internal/speech"
	"github.com/saw4405/splat-replay/internal/startup"
	"github.com/saw4405/splat-replay/internal/storage"
	"github.com/saw4405/splat-replay/internal/uploader"
	"github.com/saw4405/splat-replay/internal/version"
	"github.com/saw4405/splat-replay/internal/vision"
	"github.com/saw4405/splat-replay/internal/weapons"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the splat-replay daemon",
	Long: `Start the capture loop, the edit/upload scheduler, and the HTTP API.

The server provides:
- REST API for recorder control and asset management
- Server-sent event streams under /events
- Health check endpoint
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// disabledTask stands in for a pipeline stage that is switched off in
// configuration.
type disabledTask struct {
	stage  string
	logger *slog.Logger
}

func (t disabledTask) Run(context.Context) error {
	t.logger.Debug("pipeline stage disabled", slog.String("stage", t.stage))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := initLogging(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if removed, err := startup.CleanupTempFiles(logger, cfg.Storage.TempDir, startup.DefaultCleanupAge); err != nil {
		logger.Warn("temp file cleanup failed", slog.String("error", err.Error()))
	} else if removed > 0 {
		logger.Info("cleaned stale temp files on startup", slog.Int("removed_count", removed))
	}

	bus := events.NewBus(cfg.Events.QueueSize, logger)
	defer bus.Close()
	commands := events.NewCommandBus(cfg.Events.QueueSize, logger)

	// Frame analysis.
	registry, err := vision.LoadRegistry(cfg.Matcher.ConfigDir, cfg.Matcher.AssetDir)
	if err != nil {
		return fmt.Errorf("loading matcher registry: %w", err)
	}
	engine := ocr.NewTesseract(cfg.Analyzer.TesseractPath, logger)
	frameAnalyzer := analyzer.New(registry, logger,
		analyzer.NewBattleAnalyzer(registry, engine, logger, cfg.Analyzer.FastKDOCR),
		analyzer.NewSalmonAnalyzer(registry, logger),
	)

	// Weapon recognition.
	ikaMask, err := vision.LoadGrayImage(filepath.Join(cfg.Matcher.AssetDir, "weapons", "ika_mask.png"))
	if err != nil {
		return fmt.Errorf("loading ika outline mask: %w", err)
	}
	takoMask, err := vision.LoadGrayImage(filepath.Join(cfg.Matcher.AssetDir, "weapons", "tako_mask.png"))
	if err != nil {
		return fmt.Errorf("loading tako outline mask: %w", err)
	}
	detector := weapons.NewOutlineDetector(ikaMask, takoMask,
		cfg.Weapons.OutlineIoUThreshold, cfg.Weapons.OutlineMinMatchingSlots, logger)
	recognizer, err := weapons.LoadTemplateRecognizer(cfg.Weapons.TemplateDir, cfg.Weapons.UnmatchedDir, logger)
	if err != nil {
		return fmt.Errorf("loading weapon templates: %w", err)
	}
	weaponService := weapons.NewService(detector, recognizer, bus, cfg.Weapons, logger)

	// Asset repository.
	store := storage.NewRepository(cfg.Storage, bus, logger)

	// Capture and recording.
	source := recorder.NewFFmpegSource(cfg.Capture, cfg.FFmpeg.BinaryPath, logger)
	obs := recorder.NewOBSRecorder(cfg.Recorder, logger)
	rec := recorder.NewAutoRecorder(cfg.Recorder, source, obs, recorder.NullSubtitleCapture{},
		frameAnalyzer, weaponService, store, bus, logger)
	recorder.RegisterCommands(commands, rec)
	recorderClient := recorder.NewCommandClient(commands, rec)

	// Edit/upload pipeline.
	shell, err := ffmpeg.NewShell(cfg.FFmpeg, cfg.Storage.TempDir, logger)
	if err != nil {
		return fmt.Errorf("initializing ffmpeg: %w", err)
	}

	var synth speech.Synthesizer
	if cfg.Editor.Narration {
		voicevox, err := speech.NewVoicevoxEngine(cfg.Speech, logger)
		if err != nil {
			logger.Warn("narration requested but speech engine unavailable",
				slog.String("error", err.Error()))
		} else {
			synth = voicevox
		}
	}

	db, err := database.New(cfg.Database, logger, &repository.UploadRecord{})
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()
	history := repository.NewUploadHistoryRepo(db.DB)

	var editTask scheduler.Task = disabledTask{stage: "edit", logger: logger}
	if cfg.Editor.Enabled {
		editTask = editor.New(cfg.Editor, shell, synth, store, bus, cfg.Storage.TempDir, logger)
	}
	var uploadTask scheduler.Task = disabledTask{stage: "upload", logger: logger}
	if cfg.Uploader.Enabled {
		youtube, err := uploader.NewYouTubeClient(cfg.Uploader, logger)
		if err != nil {
			return fmt.Errorf("initializing upload client: %w", err)
		}
		uploadTask = uploader.New(cfg.Uploader, youtube, history, store, bus, logger)
	}
	sched, err := scheduler.New(cfg.Scheduler, editTask, uploadTask, logger)
	if err != nil {
		return fmt.Errorf("initializing scheduler: %w", err)
	}
	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// HTTP server.
	server := internalhttp.NewServer(cfg.Server, logger, version.Short())
	handlers.NewRecorderHandler(recorderClient).Register(server.API())
	handlers.NewAssetsHandler(store).Register(server.API())
	handlers.NewSubtitlesHandler(store).Register(server.API())
	handlers.NewHealthHandler(version.Short()).WithDB(db.DB).Register(server.API())
	handlers.NewSystemHandler(cfg.Storage.RecordedDir).Register(server.API())
	handlers.NewEventsHandler(bus).RegisterRoutes(server.Router())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		commands.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := rec.Run(gctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("capture loop: %w", err)
		}
		// Power-off ends the capture loop; the day's recordings get
		// edited and uploaded right away rather than at the next slot.
		if err := sched.RunNow(gctx); err != nil {
			logger.Error("post-capture pipeline failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if cfg.Storage.Watch {
		watcher := storage.NewWatcher(store, bus, logger)
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("asset watcher: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	logger.Info("splat-replay daemon started",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Short()),
	)

	return g.Wait()
}
