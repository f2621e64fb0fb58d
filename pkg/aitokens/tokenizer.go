// Package aitokens provides the token-count oracle used by the HUD
// converter (to compute hud_tokens) and by the heartbeat scheduler (to
// count prompt and response tokens for its logs and telemetry).
package aitokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used for models with no specific mapping below.
const DefaultEncoding = "o200k_base"

// modelEncodings maps a handful of common model names to their tiktoken
// encoding, falling back to DefaultEncoding for anything unlisted
// (including both AI vendors' model families, which this runtime treats
// as equally estimable with a BPE encoding).
var modelEncodings = map[string]string{
	"gpt-4o":            "o200k_base",
	"gpt-4o-mini":       "o200k_base",
	"gpt-4-turbo":       "cl100k_base",
	"gpt-4":             "cl100k_base",
	"gpt-3.5-turbo":     "cl100k_base",
	"claude-3-opus":     "cl100k_base",
	"claude-3-sonnet":   "cl100k_base",
	"claude-3-haiku":    "cl100k_base",
	"claude-3-5-sonnet": "cl100k_base",
}

var (
	tokenizerCache   = make(map[string]*tiktoken.Tiktoken)
	tokenizerCacheMu sync.RWMutex
)

// GetEncoder returns a cached tiktoken encoder for model, using
// DefaultEncoding for an unrecognized model and falling back to
// cl100k_base if that encoding can't load.
func GetEncoder(model string) (*tiktoken.Tiktoken, error) {
	encName := modelEncodings[model]
	if encName == "" {
		encName = DefaultEncoding
	}

	tokenizerCacheMu.RLock()
	if tkm, ok := tokenizerCache[encName]; ok {
		tokenizerCacheMu.RUnlock()
		return tkm, nil
	}
	tokenizerCacheMu.RUnlock()

	tokenizerCacheMu.Lock()
	defer tokenizerCacheMu.Unlock()
	if tkm, ok := tokenizerCache[encName]; ok {
		return tkm, nil
	}

	tkm, err := tiktoken.GetEncoding(encName)
	if err != nil {
		tkm, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	tokenizerCache[encName] = tkm
	return tkm, nil
}

// Estimator counts tokens for arbitrary text under a given model's
// encoding. It is the single interface the HUD converter and scheduler
// depend on, so tests can substitute a fixed-cost stub.
type Estimator interface {
	CountTokens(model, text string) (int, error)
}

// TiktokenEstimator is the production Estimator backed by tiktoken-go.
type TiktokenEstimator struct{}

// CountTokens returns the number of tokens text encodes to under model's
// encoding.
func (TiktokenEstimator) CountTokens(model, text string) (int, error) {
	tkm, err := GetEncoder(model)
	if err != nil {
		return 0, err
	}
	return len(tkm.Encode(text, nil, nil)), nil
}
