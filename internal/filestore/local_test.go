package filestore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalSaveOpenRoundTrip(t *testing.T) {
	s, err := New("local", map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "keyframes/v_frame_0.jpg", strings.NewReader("jpegdata")))
	f, err := s.Open(ctx, "keyframes/v_frame_0.jpg")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "jpegdata", string(data))
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key string
		ok  bool
	}{
		{key: "a.jpg", ok: true},
		{key: "pages/doc_page_1.jpg", ok: true},
		{key: "", ok: false},
		{key: "/etc/passwd", ok: false},
		{key: "../escape.jpg", ok: false},
		{key: "a/../../b", ok: false},
		{key: `a\b`, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
