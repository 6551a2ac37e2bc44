package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ManagerConfig struct {
	EmbedModel       string
	CaptionModel     string
	TranscribeModel  string
	Timeout          int // seconds, per inference call
	Language         string
	CaptionMaxLength int
	CaptionNumBeams  int
}

// Manager binds a provider to the configured per-task model names. One
// manager is built at startup and injected into every pipeline; its lifetime
// is the application session.
type Manager struct {
	provider IProvider
	cfg      ManagerConfig
}

func NewManager(provider IProvider, cfg ManagerConfig) *Manager {
	if cfg.CaptionMaxLength <= 0 {
		cfg.CaptionMaxLength = 100
	}
	if cfg.CaptionNumBeams <= 0 {
		cfg.CaptionNumBeams = 5
	}
	return &Manager{provider: provider, cfg: cfg}
}

func (m *Manager) EncodeText(ctx context.Context, texts []string) ([][]float32, error) {
	if m.provider == nil {
		return nil, fmt.Errorf("encoder not configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	vecs, err := m.provider.EncodeText(ctx, m.cfg.EmbedModel, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("encoder returned %d vectors for %d inputs", len(vecs), len(texts))
	}
	return vecs, nil
}

// EncodeQuery embeds a single free-text query.
func (m *Manager) EncodeQuery(ctx context.Context, query string) ([]float32, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}
	vecs, err := m.EncodeText(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *Manager) CaptionImages(ctx context.Context, images [][]byte) ([]string, error) {
	if m.provider == nil {
		return nil, fmt.Errorf("captioner not configured")
	}
	if len(images) == 0 {
		return nil, nil
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	opts := CaptionOptions{MaxLength: m.cfg.CaptionMaxLength, NumBeams: m.cfg.CaptionNumBeams}
	captions, err := m.provider.CaptionImages(ctx, m.cfg.CaptionModel, images, opts)
	if err != nil {
		return nil, err
	}
	if len(captions) != len(images) {
		return nil, fmt.Errorf("captioner returned %d captions for %d images", len(captions), len(images))
	}
	return captions, nil
}

func (m *Manager) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if m.provider == nil {
		return "", fmt.Errorf("transcriber not configured")
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	return m.provider.Transcribe(ctx, m.cfg.TranscribeModel, audioPath, m.cfg.Language)
}

func (m *Manager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
	}
	return ctx, func() {}
}
