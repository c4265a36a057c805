// Package config provides configuration management for splat-replay using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8090
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultCaptureWidth  = 1920
	defaultCaptureHeight = 1080
	defaultCaptureFPS    = 30

	defaultOBSHost          = "127.0.0.1"
	defaultOBSPort          = 4455
	defaultOBSProcessName   = "obs64.exe"
	defaultRecorderStopWait = 1500 * time.Millisecond

	defaultBattleTimeout    = 10 * time.Minute
	defaultAbortWindow      = 60 * time.Second
	defaultPowerOffInterval = 10 * time.Second
	defaultPowerOffStreak   = 6

	defaultDetectionWindow         = 20 * time.Second
	defaultRecognitionTimeout      = 3 * time.Second
	defaultFinalizeTimeout         = 15 * time.Second
	defaultOutlineIoUThreshold     = 0.25
	defaultOutlineMinMatchingSlots = 6

	defaultEventQueueSize = 256
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	Weapons   WeaponsConfig   `mapstructure:"weapons"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Events    EventsConfig    `mapstructure:"events"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"`
	Editor    EditorConfig    `mapstructure:"editor"`
	Uploader  UploaderConfig  `mapstructure:"uploader"`
	Speech    SpeechConfig    `mapstructure:"speech"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text, console
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// CaptureConfig holds capture-device configuration.
type CaptureConfig struct {
	// DeviceName is the video capture device as listed by the editor's
	// device enumeration (empty = first available).
	DeviceName string `mapstructure:"device_name"`
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	FPS        int    `mapstructure:"fps"`
}

// RecorderConfig holds external recorder (OBS) configuration.
type RecorderConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Password    string `mapstructure:"password"`
	ProcessName string `mapstructure:"process_name"`
	// StopWait is how long to wait before asking the recorder to stop,
	// so the result screen makes it into the file.
	StopWait time.Duration `mapstructure:"stop_wait"`
	// BattleTimeout force-stops a recording session that never reaches
	// the finish screen.
	BattleTimeout time.Duration `mapstructure:"battle_timeout"`
	// AbortWindow is how long after battle start an abort screen cancels
	// the session instead of being ignored.
	AbortWindow time.Duration `mapstructure:"abort_window"`
	// PowerOffInterval and PowerOffStreak debounce console power-off
	// detection: the loop exits only after Streak consecutive positives
	// sampled Interval apart.
	PowerOffInterval time.Duration `mapstructure:"power_off_interval"`
	PowerOffStreak   int           `mapstructure:"power_off_streak"`
	// EnableVirtualCamera starts the recorder's virtual camera on connect.
	EnableVirtualCamera bool `mapstructure:"enable_virtual_camera"`
}

// MatcherConfig holds matcher registry configuration.
type MatcherConfig struct {
	// ConfigDir contains the matcher YAML definitions.
	ConfigDir string `mapstructure:"config_dir"`
	// AssetDir contains reference images, masks and templates.
	AssetDir string `mapstructure:"asset_dir"`
}

// AnalyzerConfig holds frame-analyzer configuration.
type AnalyzerConfig struct {
	// TesseractPath is the tesseract binary (empty = find on PATH).
	TesseractPath string `mapstructure:"tesseract_path"`
	// FastKDOCR enables the experimental stacked one-pass K/D/special OCR.
	FastKDOCR bool `mapstructure:"fast_kd_ocr"`
	// Workers bounds concurrent OCR / template work.
	Workers int `mapstructure:"workers"`
}

// WeaponsConfig holds weapon-recognition configuration.
type WeaponsConfig struct {
	// TemplateDir contains per-weapon template images.
	TemplateDir string `mapstructure:"template_dir"`
	// UnmatchedDir receives unmatched-slot reports from the finalize pass.
	UnmatchedDir string `mapstructure:"unmatched_dir"`
	// DetectionWindow is how long after battle start the weapon display
	// is looked for.
	DetectionWindow time.Duration `mapstructure:"detection_window"`
	// RecognitionTimeout bounds one regular recognition task.
	RecognitionTimeout time.Duration `mapstructure:"recognition_timeout"`
	// FinalizeTimeout bounds the one-shot finalize recognition.
	FinalizeTimeout time.Duration `mapstructure:"finalize_timeout"`
	// OutlineIoUThreshold and OutlineMinMatchingSlots gate the
	// weapon-display outline test.
	OutlineIoUThreshold     float64 `mapstructure:"outline_iou_threshold"`
	OutlineMinMatchingSlots int     `mapstructure:"outline_min_matching_slots"`
}

// StorageConfig holds asset repository configuration.
type StorageConfig struct {
	RecordedDir string `mapstructure:"recorded_dir"`
	EditedDir   string `mapstructure:"edited_dir"`
	TempDir     string `mapstructure:"temp_dir"`
	// Watch enables the fsnotify watcher that publishes asset events for
	// files changed outside the daemon.
	Watch bool `mapstructure:"watch"`
}

// EventsConfig holds event bus configuration.
type EventsConfig struct {
	// QueueSize is the per-subscriber bounded queue; oldest events are
	// dropped when full.
	QueueSize int `mapstructure:"queue_size"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // Path to ffmpeg binary (empty = auto-detect)
	ProbePath  string `mapstructure:"probe_path"`  // Path to ffprobe binary (empty = auto-detect)
}

// EditorConfig holds auto-editor configuration.
type EditorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// SlotHours are the boundaries of upload time slots, in local hours.
	SlotHours []int `mapstructure:"slot_hours"`
	// Narration enables synthesized match summaries on edited videos.
	Narration bool    `mapstructure:"narration"`
	Volume    float64 `mapstructure:"volume"`
}

// UploaderConfig holds upload client configuration.
type UploaderConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	ClientSecret  string   `mapstructure:"client_secret"`
	PrivacyStatus string   `mapstructure:"privacy_status"` // private, unlisted, public
	Tags          []string `mapstructure:"tags"`
	PlaylistID    string   `mapstructure:"playlist_id"`
}

// SpeechConfig holds speech synthesis configuration.
type SpeechConfig struct {
	// EngineURL is the base URL of the VOICEVOX-compatible engine.
	EngineURL string `mapstructure:"engine_url"`
	SpeakerID int    `mapstructure:"speaker_id"`
}

// DatabaseConfig holds the upload-history database configuration.
type DatabaseConfig struct {
	Path     string `mapstructure:"path"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

// SchedulerConfig holds edit/upload scheduler configuration.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Cron is a 6-field cron expression for the slot runner.
	Cron string `mapstructure:"cron"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with SPLAT_REPLAY and use underscores
// for nesting. Example: SPLAT_REPLAY_SERVER_PORT=8090.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("splat-replay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.splat-replay")
	}

	v.SetEnvPrefix("SPLAT_REPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file so defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Capture defaults
	v.SetDefault("capture.device_name", "")
	v.SetDefault("capture.width", defaultCaptureWidth)
	v.SetDefault("capture.height", defaultCaptureHeight)
	v.SetDefault("capture.fps", defaultCaptureFPS)

	// Recorder defaults
	v.SetDefault("recorder.host", defaultOBSHost)
	v.SetDefault("recorder.port", defaultOBSPort)
	v.SetDefault("recorder.process_name", defaultOBSProcessName)
	v.SetDefault("recorder.stop_wait", defaultRecorderStopWait)
	v.SetDefault("recorder.battle_timeout", defaultBattleTimeout)
	v.SetDefault("recorder.abort_window", defaultAbortWindow)
	v.SetDefault("recorder.power_off_interval", defaultPowerOffInterval)
	v.SetDefault("recorder.power_off_streak", defaultPowerOffStreak)
	v.SetDefault("recorder.enable_virtual_camera", true)

	// Matcher defaults
	v.SetDefault("matcher.config_dir", "./configs/matchers")
	v.SetDefault("matcher.asset_dir", "./assets/matchers")

	// Analyzer defaults
	v.SetDefault("analyzer.tesseract_path", "")
	v.SetDefault("analyzer.fast_kd_ocr", false)
	v.SetDefault("analyzer.workers", 4)

	// Weapons defaults
	v.SetDefault("weapons.template_dir", "./assets/weapons")
	v.SetDefault("weapons.unmatched_dir", "./data/unmatched")
	v.SetDefault("weapons.detection_window", defaultDetectionWindow)
	v.SetDefault("weapons.recognition_timeout", defaultRecognitionTimeout)
	v.SetDefault("weapons.finalize_timeout", defaultFinalizeTimeout)
	v.SetDefault("weapons.outline_iou_threshold", defaultOutlineIoUThreshold)
	v.SetDefault("weapons.outline_min_matching_slots", defaultOutlineMinMatchingSlots)

	// Storage defaults
	v.SetDefault("storage.recorded_dir", "./data/recorded")
	v.SetDefault("storage.edited_dir", "./data/edited")
	v.SetDefault("storage.temp_dir", "./data/temp")
	v.SetDefault("storage.watch", true)

	// Events defaults
	v.SetDefault("events.queue_size", defaultEventQueueSize)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")

	// Editor defaults
	v.SetDefault("editor.enabled", true)
	v.SetDefault("editor.slot_hours", []int{0, 6, 12, 18})
	v.SetDefault("editor.narration", true)
	v.SetDefault("editor.volume", 1.0)

	// Uploader defaults
	v.SetDefault("uploader.enabled", false)
	v.SetDefault("uploader.privacy_status", "private")
	v.SetDefault("uploader.tags", []string{})
	v.SetDefault("uploader.playlist_id", "")

	// Speech defaults
	v.SetDefault("speech.engine_url", "http://127.0.0.1:50021")
	v.SetDefault("speech.speaker_id", 1)

	// Database defaults
	v.SetDefault("database.path", "./data/splat-replay.db")
	v.SetDefault("database.log_level", "warn")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.cron", "0 0 0,6,12,18 * * *")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text, console")
	}

	if c.Capture.Width < 1 || c.Capture.Height < 1 {
		return fmt.Errorf("capture.width and capture.height must be positive")
	}
	if c.Capture.FPS < 1 {
		return fmt.Errorf("capture.fps must be at least 1")
	}

	if c.Recorder.Port < 1 || c.Recorder.Port > maxPort {
		return fmt.Errorf("recorder.port must be between 1 and %d", maxPort)
	}
	if c.Recorder.PowerOffStreak < 1 {
		return fmt.Errorf("recorder.power_off_streak must be at least 1")
	}

	if c.Matcher.ConfigDir == "" {
		return fmt.Errorf("matcher.config_dir is required")
	}

	if c.Weapons.DetectionWindow <= 0 {
		return fmt.Errorf("weapons.detection_window must be positive")
	}
	if c.Weapons.OutlineIoUThreshold <= 0 || c.Weapons.OutlineIoUThreshold > 1 {
		return fmt.Errorf("weapons.outline_iou_threshold must be in (0, 1]")
	}

	if c.Storage.RecordedDir == "" || c.Storage.EditedDir == "" {
		return fmt.Errorf("storage.recorded_dir and storage.edited_dir are required")
	}

	if c.Events.QueueSize < 1 {
		return fmt.Errorf("events.queue_size must be at least 1")
	}

	validPrivacy := map[string]bool{"private": true, "unlisted": true, "public": true}
	if !validPrivacy[c.Uploader.PrivacyStatus] {
		return fmt.Errorf("uploader.privacy_status must be one of: private, unlisted, public")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TempPath returns a path under the temp directory.
func (c *StorageConfig) TempPath(name string) string {
	return filepath.Join(c.TempDir, name)
}
