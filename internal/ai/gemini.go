package ai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey string `json:"api_key"`
}

type geminiProvider struct {
	apiKey string
}

func init() {
	Register("gemini", createGeminiFactory)
}

func createGeminiFactory(args interface{}) (IProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &geminiProvider{apiKey: strings.TrimSpace(cfg.APIKey)}, nil
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) client(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func (p *geminiProvider) EncodeText(ctx context.Context, model string, texts []string) ([][]float32, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	resp, err := client.Models.EmbedContent(ctx, model, contents, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	vecs := make([][]float32, 0, len(resp.Embeddings))
	for _, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding values returned")
		}
		vecs = append(vecs, emb.Values)
	}
	return vecs, nil
}

func (p *geminiProvider) CaptionImages(ctx context.Context, model string, images [][]byte, opts CaptionOptions) ([]string, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	prompt := "Describe this image in one short sentence. Respond with the caption only."
	var config *genai.GenerateContentConfig
	if opts.MaxLength > 0 {
		config = &genai.GenerateContentConfig{MaxOutputTokens: int32(opts.MaxLength)}
	}
	captions := make([]string, 0, len(images))
	for _, img := range images {
		resp, err := client.Models.GenerateContent(
			ctx,
			model,
			[]*genai.Content{{Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: img}},
				{Text: prompt},
			}}},
			config,
		)
		if err != nil {
			return nil, err
		}
		captions = append(captions, strings.TrimSpace(resp.Text()))
	}
	return captions, nil
}

func (p *geminiProvider) Transcribe(ctx context.Context, model string, audioPath string, language string) (string, error) {
	client, err := p.client(ctx)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	prompt := "Transcribe the speech in this audio. Respond with the transcript only, or with nothing if there is no speech."
	if language != "" {
		prompt += " The speech language is " + language + "."
	}
	resp, err := client.Models.GenerateContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: audioMIMEType(audioPath), Data: data}},
			{Text: prompt},
		}}},
		nil,
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

func audioMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
