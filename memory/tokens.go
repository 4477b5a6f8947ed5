package memory

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding works for the GPT-4 family and is a close enough proxy
// for other models; the estimate only feeds the buffer-flush threshold.
const defaultEncoding = "cl100k_base"

// TokenEstimator estimates token counts for conversation text.
// The tiktoken encoding is loaded lazily on first use; if loading fails
// (e.g. no network for the BPE download), estimation falls back to the
// bytes/4 heuristic.
type TokenEstimator struct {
	encoding string

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTokenEstimator creates an estimator using the default encoding.
func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{encoding: defaultEncoding}
}

func (e *TokenEstimator) init() {
	e.once.Do(func() {
		e.enc, e.initErr = tiktoken.GetEncoding(e.encoding)
	})
}

// Estimate returns the approximate token count of text.
func (e *TokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	e.init()
	if e.initErr != nil || e.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(e.enc.Encode(text, nil, nil))
}
