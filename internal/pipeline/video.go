package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/semdex/semdex/internal/filestore"
	"github.com/semdex/semdex/internal/model"
	appErr "github.com/semdex/semdex/internal/pkg/errors"
	"github.com/semdex/semdex/internal/search"
	"github.com/semdex/semdex/internal/store"
)

// FrameDescriber captions a single image file. *ImagePipeline satisfies it,
// which lets video keyframes share the image description cache.
type FrameDescriber interface {
	Describe(ctx context.Context, path string) (string, error)
}

// VideoPipeline samples keyframes at a fixed interval, captions each frame
// and indexes one entry per frame under a {video}#{frameIndex} identifier.
type VideoPipeline struct {
	encoder       Encoder
	describer     FrameDescriber
	store         store.Store
	files         filestore.Store
	extensions    []string
	frameInterval int
}

func NewVideoPipeline(encoder Encoder, describer FrameDescriber, s store.Store, files filestore.Store, extensions []string, frameInterval int) *VideoPipeline {
	if len(extensions) == 0 {
		extensions = []string{".mp4", ".mkv", ".avi", ".mov", ".webm"}
	}
	if frameInterval <= 0 {
		frameInterval = 1
	}
	return &VideoPipeline{
		encoder:       encoder,
		describer:     describer,
		store:         s,
		files:         files,
		extensions:    extensions,
		frameInterval: frameInterval,
	}
}

func (p *VideoPipeline) Name() string {
	return "video"
}

func (p *VideoPipeline) DefaultExtensions() []string {
	return p.extensions
}

func (p *VideoPipeline) ProcessFile(ctx context.Context, path string) error {
	fps, err := probeFrameRate(path)
	if err != nil {
		return err
	}
	tmpDir, err := os.MkdirTemp("", "semdex-frames-*")
	if err != nil {
		return fmt.Errorf("create frame dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	frames, err := extractFrames(path, tmpDir, p.frameInterval)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no frames extracted from %s", path)
	}

	descriptions := make([]string, 0, len(frames))
	for _, frame := range frames {
		desc, err := p.describer.Describe(ctx, frame)
		if err != nil {
			return err
		}
		descriptions = append(descriptions, desc)
	}
	embeddings, err := p.encoder.EncodeText(ctx, descriptions)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	now := time.Now().Unix()
	entries := make([]*model.Entry, 0, len(frames))
	for i, frame := range frames {
		frameIdx := frameIndex(i, fps, p.frameInterval)
		key := keyframeKey(path, frameIdx)
		f, err := os.Open(frame)
		if err != nil {
			return fmt.Errorf("open frame: %w", err)
		}
		saveErr := p.files.Save(ctx, key, f)
		f.Close()
		if saveErr != nil {
			return fmt.Errorf("save keyframe: %w", saveErr)
		}
		entries = append(entries, &model.Entry{
			Identifier:  model.CompositeIdentifier(path, strconv.Itoa(frameIdx)),
			Description: descriptions[i],
			Embedding:   embeddings[i],
			Extra:       key,
			Mtime:       now,
		})
	}
	return p.store.UpsertBatch(ctx, entries)
}

// Search over-fetches so that one video dominating the top ranks still
// leaves room for distinct videos after dedupe.
func (p *VideoPipeline) Search(ctx context.Context, query string, topK int) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", appErr.ErrInvalid)
	}
	emb, err := p.encoder.EncodeQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := p.store.Search(ctx, emb, 2*topK)
	if err != nil {
		return nil, err
	}
	deduped := search.DedupeByOwner(results, topK)
	for i := range deduped {
		deduped[i].Identifier = model.OwnerOf(deduped[i].Identifier)
	}
	return deduped, nil
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
}

func probeFrameRate(path string) (float64, error) {
	raw, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	var res probeResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return 0, fmt.Errorf("parse probe output: %w", err)
	}
	for _, st := range res.Streams {
		if st.CodecType != "video" {
			continue
		}
		if fps, err := parseFrameRate(st.RFrameRate); err == nil {
			return fps, nil
		}
		if fps, err := parseFrameRate(st.AvgFrameRate); err == nil {
			return fps, nil
		}
	}
	return 0, fmt.Errorf("no video stream in %s", path)
}

// parseFrameRate parses ffprobe's fractional rate notation, e.g. "30000/1001".
func parseFrameRate(s string) (float64, error) {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return strconv.ParseFloat(s, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, err
	}
	if n == 0 || d == 0 {
		return 0, fmt.Errorf("zero frame rate %q", s)
	}
	return n / d, nil
}

func extractFrames(path, dir string, interval int) ([]string, error) {
	pattern := filepath.Join(dir, "frame_%d.jpg")
	err := ffmpeg.Input(path).
		Output(pattern, ffmpeg.KwArgs{
			"vf":       fmt.Sprintf("fps=1/%d", interval),
			"qscale:v": 2,
		}).
		OverWriteOutput().
		Silent(true).
		Run()
	if err != nil {
		return nil, fmt.Errorf("extract frames from %s: %w", path, err)
	}
	names, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Slice(names, func(i, j int) bool {
		return frameSeq(names[i]) < frameSeq(names[j])
	})
	return names, nil
}

// frameSeq extracts the numeric sequence from a frame_%d.jpg name so that
// frame_10 sorts after frame_2.
func frameSeq(name string) int {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	_, digits, _ := strings.Cut(base, "_")
	n, _ := strconv.Atoi(digits)
	return n
}

// frameIndex maps the i-th sampled frame back to its frame number within
// the source video. Sub-1fps sources would truncate the step to zero and
// merge every frame into one identifier, so the step is at least 1.
func frameIndex(i int, fps float64, interval int) int {
	step := int(fps * float64(interval))
	if step < 1 {
		step = 1
	}
	return i * step
}

func keyframeKey(videoPath string, frameIdx int) string {
	sum := sha256.Sum256([]byte(videoPath))
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	return fmt.Sprintf("keyframes/%s_%s_%d.jpg", hex.EncodeToString(sum[:4]), base, frameIdx)
}
