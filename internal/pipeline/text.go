package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/semdex/semdex/internal/model"
	appErr "github.com/semdex/semdex/internal/pkg/errors"
	"github.com/semdex/semdex/internal/store"
)

// TextPipeline indexes plain-text files line by line: every non-empty line
// becomes its own entry so search can land on the matching sentence, not
// just the file.
type TextPipeline struct {
	encoder        Encoder
	store          store.Store
	extensions     []string
	snippetHalfLen int
}

func NewTextPipeline(encoder Encoder, s store.Store, extensions []string, snippetHalfLen int) *TextPipeline {
	if len(extensions) == 0 {
		extensions = []string{".txt", ".md", ".csv", ".log"}
	}
	if snippetHalfLen <= 0 {
		snippetHalfLen = 100
	}
	return &TextPipeline{
		encoder:        encoder,
		store:          s,
		extensions:     extensions,
		snippetHalfLen: snippetHalfLen,
	}
}

func (p *TextPipeline) Name() string {
	return "text"
}

func (p *TextPipeline) DefaultExtensions() []string {
	return p.extensions
}

func (p *TextPipeline) ProcessFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var units []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			units = append(units, line)
		}
	}
	if len(units) == 0 {
		return nil
	}
	embeddings, err := p.encoder.EncodeText(ctx, units)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	now := time.Now().Unix()
	entries := make([]*model.Entry, 0, len(units))
	for i, unit := range units {
		entries = append(entries, &model.Entry{
			Identifier:  model.CompositeIdentifier(path, unitHash(unit)),
			Description: unit,
			Embedding:   embeddings[i],
			Mtime:       now,
		})
	}
	// All sentences of a file commit together or not at all.
	return p.store.UpsertBatch(ctx, entries)
}

func (p *TextPipeline) Search(ctx context.Context, query string, topK int) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", appErr.ErrInvalid)
	}
	emb, err := p.encoder.EncodeQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := p.store.Search(ctx, emb, topK)
	if err != nil {
		return nil, err
	}
	// Callers see the owning file; the matched line stays in Description
	// for snippet lookup.
	for i := range results {
		results[i].Identifier = model.OwnerOf(results[i].Identifier)
	}
	return results, nil
}

// Snippet re-reads the file and returns a window of halfLen characters on
// each side of the matched unit, with "..." marking a truncated boundary.
// When the unit cannot be located the unit itself is the snippet.
func (p *TextPipeline) Snippet(path, matched string) string {
	return extractSnippet(path, matched, p.snippetHalfLen)
}

func extractSnippet(path, matched string, halfLen int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return matched
	}
	full := string(data)
	pos := strings.Index(strings.ToLower(full), strings.ToLower(matched))
	if pos < 0 {
		return matched
	}
	start := pos - halfLen
	if start < 0 {
		start = 0
	}
	end := pos + len(matched) + halfLen
	if end > len(full) {
		end = len(full)
	}
	snippet := full[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(full) {
		snippet += "..."
	}
	return snippet
}

func unitHash(unit string) string {
	sum := sha256.Sum256([]byte(unit))
	return hex.EncodeToString(sum[:])
}
