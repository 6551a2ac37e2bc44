package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xxxsen/common/logger"
)

var modalities = []string{"text", "image", "video", "music"}

type Config struct {
	DataDir       string           `json:"data_dir"`
	Port          int              `json:"port"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Store         BackendConfig    `json:"store"`
	FileStore     BackendConfig    `json:"file_store"`
	AI            AIConfig         `json:"ai"`
	Index         IndexConfig      `json:"index"`
	CORSAllowlist []string         `json:"cors_allowlist"`
}

// BackendConfig selects a registered backend by type; Data is handed to the
// backend factory as-is.
type BackendConfig struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type AIConfig struct {
	Provider         string                 `json:"provider"`
	Data             map[string]interface{} `json:"data"`
	EmbedModel       string                 `json:"embed_model"`
	CaptionModel     string                 `json:"caption_model"`
	TranscribeModel  string                 `json:"transcribe_model"`
	TimeoutSeconds   int                    `json:"timeout_seconds"`
	Language         string                 `json:"language"`
	CaptionMaxLength int                    `json:"caption_max_length"`
	CaptionNumBeams  int                    `json:"caption_num_beams"`
}

type IndexConfig struct {
	// Roots maps a modality to the directory its scheduled and default
	// indexing runs scan.
	Roots                map[string]string   `json:"roots"`
	Extensions           map[string][]string `json:"extensions"`
	Schedule             string              `json:"schedule"`
	FrameIntervalSeconds int                 `json:"frame_interval_seconds"`
	ImageMaxSize         int                 `json:"image_max_size"`
	SnippetHalfLen       int                 `json:"snippet_half_len"`
	PDFWorkers           int                 `json:"pdf_workers"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 8901
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "sqlite"
	}
	if cfg.Store.Type == "sqlite" && cfg.Store.Data == nil {
		cfg.Store.Data = map[string]interface{}{"dir": filepath.Join(cfg.DataDir, "embeddings")}
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.FileStore.Type == "local" && cfg.FileStore.Data == nil {
		cfg.FileStore.Data = map[string]interface{}{"dir": filepath.Join(cfg.DataDir, "files")}
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	for modality := range cfg.Index.Roots {
		if !isModality(modality) {
			return nil, fmt.Errorf("index.roots: unknown modality %q", modality)
		}
	}
	for modality := range cfg.Index.Extensions {
		if !isModality(modality) {
			return nil, fmt.Errorf("index.extensions: unknown modality %q", modality)
		}
	}
	if cfg.Index.FrameIntervalSeconds == 0 {
		cfg.Index.FrameIntervalSeconds = 1
	}
	if cfg.Index.ImageMaxSize == 0 {
		cfg.Index.ImageMaxSize = 512
	}
	if cfg.Index.SnippetHalfLen == 0 {
		cfg.Index.SnippetHalfLen = 100
	}
	if cfg.Index.PDFWorkers == 0 {
		cfg.Index.PDFWorkers = 4
	}
	return &cfg, nil
}

// Modalities lists every modality the engine knows about, in a fixed order.
func Modalities() []string {
	out := make([]string, len(modalities))
	copy(out, modalities)
	return out
}

func isModality(name string) bool {
	for _, m := range modalities {
		if m == name {
			return true
		}
	}
	return false
}
