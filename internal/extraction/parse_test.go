package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCutJSON(t *testing.T) {
	tests := map[string]struct {
		content string
		want    string
		wantErr error
	}{
		"bare":         {content: `{"questions":[]}`, want: `{"questions":[]}`},
		"code fence":   {content: "```json\n{\"a\":{\"b\":1}}\n```", want: `{"a":{"b":1}}`},
		"no braces":    {content: "nothing to see", wantErr: ErrNoJSON},
		"reversed":     {content: "} oops {", wantErr: ErrNoJSON},
		"broken inner": {content: `{"a": }`, wantErr: ErrNoJSON},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := cutJSON(tt.content)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
