package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/draftwise/aicore/types"
)

// responseCacheKey derives a deterministic cache key from everything that
// influences the generated text. Two requests differing only in CacheTTL
// share a key.
func responseCacheKey(req types.GenerationRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%.4f\x00%d",
		req.Prompt, req.SystemPrompt, req.Model, req.Temperature, req.MaxTokens)
	return "gen:" + hex.EncodeToString(h.Sum(nil))
}
