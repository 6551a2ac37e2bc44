package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("does-not-exist", nil)
	require.Error(t, err)
}

func TestNewProviderEmptyName(t *testing.T) {
	_, err := NewProvider("  ", nil)
	require.Error(t, err)
}

func TestNewProviderRegistered(t *testing.T) {
	p, err := NewProvider("OpenAI", map[string]interface{}{"api_key": "k"})
	require.NoError(t, err)
	require.Equal(t, "openai", p.Name())
}

func TestProviderRequiresConfig(t *testing.T) {
	_, err := NewProvider("gemini", nil)
	require.Error(t, err)
}

type fakeProvider struct {
	encoded [][]string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) EncodeText(ctx context.Context, model string, texts []string) ([][]float32, error) {
	f.encoded = append(f.encoded, texts)
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{1, 0}
	}
	return vecs, nil
}

func (f *fakeProvider) CaptionImages(ctx context.Context, model string, images [][]byte, opts CaptionOptions) ([]string, error) {
	captions := make([]string, len(images))
	for i := range captions {
		captions[i] = "caption"
	}
	return captions, nil
}

func (f *fakeProvider) Transcribe(ctx context.Context, model string, audioPath string, language string) (string, error) {
	return "", nil
}

func TestManagerEncodeQueryRejectsEmpty(t *testing.T) {
	m := NewManager(&fakeProvider{}, ManagerConfig{})
	_, err := m.EncodeQuery(context.Background(), "   ")
	require.Error(t, err)
}

func TestManagerEncodeTextBatch(t *testing.T) {
	fake := &fakeProvider{}
	m := NewManager(fake, ManagerConfig{})
	vecs, err := m.EncodeText(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Len(t, fake.encoded, 1)
}

func TestManagerEncodeTextEmptyInput(t *testing.T) {
	m := NewManager(&fakeProvider{}, ManagerConfig{})
	vecs, err := m.EncodeText(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, vecs)
}
