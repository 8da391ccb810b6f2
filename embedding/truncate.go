package embedding

import (
	"github.com/tiktoken-go/tokenizer"
)

// Truncator trims text to a token budget before it is sent to an embedding
// backend. Truncation favors availability over completeness: an overlong
// message loses its tail instead of failing the request.
//
// The cl100k vocabulary is exact for OpenAI models and a close approximation
// for other backends, which is sufficient for a safety cap.
type Truncator struct {
	codec tokenizer.Codec
}

// NewTruncator creates a Truncator backed by the cl100k_base encoding.
func NewTruncator() (*Truncator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, err
	}
	return &Truncator{codec: codec}, nil
}

// Truncate returns text cut down to at most maxTokens tokens. A non-positive
// budget or an encoding failure returns the text unchanged; the backend will
// reject it itself if it is genuinely too long.
func (t *Truncator) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}

	ids, _, err := t.codec.Encode(text)
	if err != nil || len(ids) <= maxTokens {
		return text
	}

	truncated, err := t.codec.Decode(ids[:maxTokens])
	if err != nil {
		return text
	}
	return truncated
}

// CountTokens returns the token count of text under the cl100k encoding, or 0
// when encoding fails.
func (t *Truncator) CountTokens(text string) int {
	ids, _, err := t.codec.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}
