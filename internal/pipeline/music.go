package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dhowden/tag"

	"github.com/semdex/semdex/internal/model"
	appErr "github.com/semdex/semdex/internal/pkg/errors"
	"github.com/semdex/semdex/internal/store"
)

const lyricsPreviewLen = 400

// MusicPipeline indexes audio files by their tag metadata plus a transcribed
// lyrics preview. The full transcript rides along in the entry extra so
// search results can show it without re-transcribing.
type MusicPipeline struct {
	encoder     Encoder
	transcriber Transcriber
	store       store.Store
	extensions  []string
}

func NewMusicPipeline(encoder Encoder, transcriber Transcriber, s store.Store, extensions []string) *MusicPipeline {
	if len(extensions) == 0 {
		extensions = []string{".mp3", ".flac", ".m4a", ".ogg", ".wav"}
	}
	return &MusicPipeline{
		encoder:     encoder,
		transcriber: transcriber,
		store:       s,
		extensions:  extensions,
	}
}

func (p *MusicPipeline) Name() string {
	return "music"
}

func (p *MusicPipeline) DefaultExtensions() []string {
	return p.extensions
}

func (p *MusicPipeline) ProcessFile(ctx context.Context, path string) error {
	meta := readTrackMetadata(path)
	transcript, err := p.transcriber.Transcribe(ctx, path)
	if err != nil {
		return fmt.Errorf("transcribe %s: %w", path, err)
	}
	description := trackDescription(meta, transcript)
	embeddings, err := p.encoder.EncodeText(ctx, []string{description})
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return p.store.Upsert(ctx, &model.Entry{
		Identifier:  path,
		Description: description,
		Embedding:   embeddings[0],
		Extra:       transcript,
		Mtime:       time.Now().Unix(),
	})
}

func (p *MusicPipeline) Search(ctx context.Context, query string, topK int) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", appErr.ErrInvalid)
	}
	emb, err := p.encoder.EncodeQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return p.store.Search(ctx, emb, topK)
}

type trackMetadata struct {
	Title  string
	Artist string
	Album  string
	Genre  string
}

// readTrackMetadata never fails; unreadable or absent tags degrade to
// "Unknown" placeholders so every track still gets indexed.
func readTrackMetadata(path string) trackMetadata {
	meta := trackMetadata{
		Title:  "Unknown Title",
		Artist: "Unknown Artist",
		Album:  "Unknown Album",
		Genre:  "Unknown Genre",
	}
	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()
	tags, err := tag.ReadFrom(f)
	if err != nil {
		return meta
	}
	if v := strings.TrimSpace(tags.Title()); v != "" {
		meta.Title = v
	}
	if v := strings.TrimSpace(tags.Artist()); v != "" {
		meta.Artist = v
	}
	if v := strings.TrimSpace(tags.Album()); v != "" {
		meta.Album = v
	}
	if v := strings.TrimSpace(tags.Genre()); v != "" {
		meta.Genre = v
	}
	return meta
}

func trackDescription(meta trackMetadata, transcript string) string {
	desc := fmt.Sprintf("%s by %s from the album %s in the genre %s",
		meta.Title, meta.Artist, meta.Album, meta.Genre)
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return desc
	}
	preview := transcript
	if runes := []rune(preview); len(runes) > lyricsPreviewLen {
		preview = string(runes[:lyricsPreviewLen])
	}
	return fmt.Sprintf("%s. Lyrics: %s...", desc, preview)
}
