package sharelink_test

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizshare/internal/sharelink"
)

func TestBuilder_URL(t *testing.T) {
	tests := map[string]struct {
		frontend string
		want     string
	}{
		"with frontend":      {frontend: "https://quiz.example.com", want: "https://quiz.example.com/quiz/ab12cd34"},
		"trailing slash":     {frontend: "https://quiz.example.com/", want: "https://quiz.example.com/quiz/ab12cd34"},
		"without a frontend": {frontend: "", want: "ab12cd34"},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, sharelink.New(tt.frontend, 0).URL("ab12cd34"))
		})
	}
}

func TestBuilder_DataURL(t *testing.T) {
	b := sharelink.New("https://quiz.example.com", 128)

	link, dataURL, err := b.DataURL("ab12cd34")
	require.NoError(t, err)
	assert.Equal(t, "https://quiz.example.com/quiz/ab12cd34", link)

	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(dataURL, prefix))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}
