package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/semdex/semdex/internal/model"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{name: "integer fraction", input: "30/1", want: 30},
		{name: "ntsc fraction", input: "30000/1001", want: 29.97002997002997},
		{name: "plain number", input: "25", want: 25},
		{name: "zero numerator", input: "0/1", wantErr: true},
		{name: "zero denominator", input: "30/0", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFrameRate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFrameIndex(t *testing.T) {
	// 30 fps sampled every 10 seconds: frames 0, 300, 600.
	require.Equal(t, 0, frameIndex(0, 30, 10))
	require.Equal(t, 300, frameIndex(1, 30, 10))
	require.Equal(t, 600, frameIndex(2, 30, 10))

	// Sub-1fps sources still get distinct frame numbers per sample.
	require.Equal(t, 1, frameIndex(1, 0.5, 1))
	require.Equal(t, 2, frameIndex(2, 0.5, 1))
}

func TestFrameSeqOrdering(t *testing.T) {
	require.Less(t, frameSeq("/tmp/x/frame_2.jpg"), frameSeq("/tmp/x/frame_10.jpg"))
}

func TestKeyframeKey(t *testing.T) {
	a := keyframeKey("/videos/trip.mp4", 0)
	b := keyframeKey("/videos/trip.mp4", 300)
	c := keyframeKey("/other/trip.mp4", 0)

	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
	require.Contains(t, a, "keyframes/")
	require.Contains(t, a, "trip_0.jpg")
}

func TestVideoSearchDedupesByVideo(t *testing.T) {
	st := newMemStore()
	seed := []struct {
		id  string
		vec []float32
	}{
		{id: model.CompositeIdentifier("/v/one.mp4", "0"), vec: []float32{1, 0, 0}},
		{id: model.CompositeIdentifier("/v/one.mp4", "300"), vec: []float32{0.9, 0.1, 0}},
		{id: model.CompositeIdentifier("/v/two.mp4", "0"), vec: []float32{0.7, 0.3, 0}},
	}
	for _, s := range seed {
		require.NoError(t, st.Upsert(context.Background(), &model.Entry{
			Identifier: s.id,
			Embedding:  s.vec,
		}))
	}

	enc := &fakeEncoder{query: []float32{1, 0, 0}}
	pipe := NewVideoPipeline(enc, nil, st, newMemFileStore(), nil, 0)

	results, err := pipe.Search(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Best frame of each video, one result per video, frame suffix stripped.
	require.Equal(t, "/v/one.mp4", results[0].Identifier)
	require.Equal(t, "/v/two.mp4", results[1].Identifier)
}

func TestVideoSearchSingleVideoDominates(t *testing.T) {
	st := newMemStore()
	for i, vec := range [][]float32{{1, 0, 0}, {0.99, 0.01, 0}, {0.98, 0.02, 0}} {
		require.NoError(t, st.Upsert(context.Background(), &model.Entry{
			Identifier: model.CompositeIdentifier("/v/only.mp4", string(rune('0'+i))),
			Embedding:  vec,
		}))
	}

	enc := &fakeEncoder{query: []float32{1, 0, 0}}
	pipe := NewVideoPipeline(enc, nil, st, newMemFileStore(), nil, 0)

	results, err := pipe.Search(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "/v/only.mp4", results[0].Identifier)
}
