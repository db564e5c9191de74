package extraction

import (
	"encoding/json"
	stderrors "errors"
	"strings"
)

var ErrNoJSON = stderrors.New("extraction: no JSON object in response")

// cutJSON returns the text between the first '{' and the last '}' of a model reply,
// which may wrap the document in prose or code fences.
func cutJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end < start {
		return nil, ErrNoJSON
	}

	raw := []byte(content[start : end+1])
	if !json.Valid(raw) {
		return nil, ErrNoJSON
	}

	return raw, nil
}
