package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"github.com/semdex/semdex/internal/cache"
	"github.com/semdex/semdex/internal/filestore"
	"github.com/semdex/semdex/internal/model"
	appErr "github.com/semdex/semdex/internal/pkg/errors"
	"github.com/semdex/semdex/internal/store"
)

// ImagePipeline captions images quadrant by quadrant and indexes the joined
// caption. PDFs are rasterized into one image entry per page. Captions are
// cached by content hash so unchanged files never hit the captioner twice.
type ImagePipeline struct {
	encoder    Encoder
	captioner  Captioner
	store      store.Store
	cache      cache.DescriptionCache
	files      filestore.Store
	extensions []string
	maxSize    int
	pdfWorkers int
}

func NewImagePipeline(encoder Encoder, captioner Captioner, s store.Store, c cache.DescriptionCache, files filestore.Store, extensions []string, maxSize, pdfWorkers int) *ImagePipeline {
	if len(extensions) == 0 {
		extensions = []string{".png", ".jpg", ".jpeg", ".pdf"}
	}
	if maxSize <= 0 {
		maxSize = 512
	}
	if pdfWorkers <= 0 {
		pdfWorkers = 4
	}
	return &ImagePipeline{
		encoder:    encoder,
		captioner:  captioner,
		store:      s,
		cache:      c,
		files:      files,
		extensions: extensions,
		maxSize:    maxSize,
		pdfWorkers: pdfWorkers,
	}
}

func (p *ImagePipeline) Name() string {
	return "image"
}

func (p *ImagePipeline) DefaultExtensions() []string {
	return p.extensions
}

func (p *ImagePipeline) ProcessFile(ctx context.Context, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return p.processPDF(ctx, path)
	}
	description, err := p.Describe(ctx, path)
	if err != nil {
		return err
	}
	embeddings, err := p.encoder.EncodeText(ctx, []string{description})
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return p.store.Upsert(ctx, &model.Entry{
		Identifier:  path,
		Description: description,
		Embedding:   embeddings[0],
		Mtime:       time.Now().Unix(),
	})
}

// Describe returns the cached description of an image file, captioning it
// on a miss.
func (p *ImagePipeline) Describe(ctx context.Context, path string) (string, error) {
	key, err := p.cache.KeyFor(path)
	if err != nil {
		return "", err
	}
	if desc, ok, err := p.cache.Get(ctx, key); err != nil {
		return "", err
	} else if ok {
		return desc, nil
	}
	img, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return p.caption(ctx, key, img)
}

func (p *ImagePipeline) describeBytes(ctx context.Context, data []byte) (string, error) {
	key := p.cache.KeyForBytes(data)
	if desc, ok, err := p.cache.Get(ctx, key); err != nil {
		return "", err
	} else if ok {
		return desc, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode page image: %w", err)
	}
	return p.caption(ctx, key, img)
}

func (p *ImagePipeline) caption(ctx context.Context, cacheKey string, img image.Image) (string, error) {
	resized := shrinkToFit(img, p.maxSize)
	quads := splitQuadrants(resized)
	payloads := make([][]byte, 0, len(quads))
	for _, quad := range quads {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, quad, imaging.JPEG); err != nil {
			return "", fmt.Errorf("encode quadrant: %w", err)
		}
		payloads = append(payloads, buf.Bytes())
	}
	captions, err := p.captioner.CaptionImages(ctx, payloads)
	if err != nil {
		return "", err
	}
	description := strings.Join(captions, " ")
	if err := p.cache.Put(ctx, cacheKey, description); err != nil {
		return "", err
	}
	return description, nil
}

func (p *ImagePipeline) processPDF(ctx context.Context, path string) error {
	pages, err := renderPDFPages(path, p.pdfWorkers)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	entries := make([]*model.Entry, 0, len(pages))
	for i, page := range pages {
		key := pageKey(path, i+1)
		if err := p.files.Save(ctx, key, bytes.NewReader(page)); err != nil {
			return fmt.Errorf("save page image: %w", err)
		}
		description, err := p.describeBytes(ctx, page)
		if err != nil {
			return err
		}
		embeddings, err := p.encoder.EncodeText(ctx, []string{description})
		if err != nil {
			return fmt.Errorf("encode %s page %d: %w", path, i+1, err)
		}
		entries = append(entries, &model.Entry{
			Identifier:  key,
			Description: description,
			Embedding:   embeddings[0],
			Extra:       path,
			Mtime:       now,
		})
	}
	// One PDF commits atomically, same as one text file.
	return p.store.UpsertBatch(ctx, entries)
}

func (p *ImagePipeline) Search(ctx context.Context, query string, topK int) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", appErr.ErrInvalid)
	}
	emb, err := p.encoder.EncodeQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return p.store.Search(ctx, emb, topK)
}

// shrinkToFit bounds both dimensions by maxSize, preserving aspect ratio.
// Smaller images pass through untouched, never upscaled.
func shrinkToFit(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxSize && b.Dy() <= maxSize {
		return img
	}
	return imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
}

// splitQuadrants cuts an image into a 2x2 grid on integer-division
// boundaries; with odd dimensions the extra pixel row/column belongs to the
// second half.
func splitQuadrants(img image.Image) []image.Image {
	b := img.Bounds()
	rects := quadrantRects(b.Dx(), b.Dy())
	quads := make([]image.Image, 0, len(rects))
	for _, r := range rects {
		quads = append(quads, imaging.Crop(img, r.Add(b.Min)))
	}
	return quads
}

func quadrantRects(width, height int) []image.Rectangle {
	return []image.Rectangle{
		image.Rect(0, 0, width/2, height/2),
		image.Rect(width/2, 0, width, height/2),
		image.Rect(0, height/2, width/2, height),
		image.Rect(width/2, height/2, width, height),
	}
}

// renderPDFPages rasterizes every page to JPEG bytes. Pages fan out across
// a bounded pool, each worker with its own document handle, and results come
// back in page order so downstream identifiers stay deterministic.
func renderPDFPages(path string, workers int) ([][]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	numPages := doc.NumPage()
	doc.Close()
	if numPages == 0 {
		return nil, nil
	}
	if workers > numPages {
		workers = numPages
	}

	pages := make([][]byte, numPages)
	// Buffered so the send loop below can never block on workers that bailed
	// out before draining the channel.
	jobs := make(chan int, numPages)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker, err := fitz.New(path)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			defer worker.Close()
			for i := range jobs {
				img, err := worker.Image(i)
				if err == nil {
					var buf bytes.Buffer
					err = imaging.Encode(&buf, img, imaging.JPEG)
					if err == nil {
						pages[i] = buf.Bytes()
						continue
					}
				}
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("render page %d of %s: %w", i+1, path, err)
				}
				mu.Unlock()
			}
		}()
	}
	for i := 0; i < numPages; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return pages, nil
}

func pageKey(pdfPath string, page int) string {
	sum := sha256.Sum256([]byte(pdfPath))
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return fmt.Sprintf("pages/%s_%s_page_%d.jpg", hex.EncodeToString(sum[:4]), base, page)
}
