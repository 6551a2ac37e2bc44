// Package ai wraps the pretrained-model inference services the indexer
// depends on: text encoding, image captioning and speech transcription.
// Providers are registered by name and constructed from config, so pipelines
// receive an explicitly built service instead of reaching for globals.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrUnavailable = errors.New("ai provider unavailable")

type CaptionOptions struct {
	MaxLength int
	NumBeams  int
}

type IProvider interface {
	Name() string
	// EncodeText returns one fixed-dimensionality vector per input string.
	EncodeText(ctx context.Context, model string, texts []string) ([][]float32, error)
	// CaptionImages returns one caption per input image, order preserved.
	CaptionImages(ctx context.Context, model string, images [][]byte, opts CaptionOptions) ([]string, error)
	// Transcribe returns the speech transcript of an audio file, possibly
	// empty when no speech is detected.
	Transcribe(ctx context.Context, model string, audioPath string, language string) (string, error)
}

type Factory func(args interface{}) (IProvider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
