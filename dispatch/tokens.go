package dispatch

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// tokenCounter estimates prompt token counts for cost projection. It lazily
// initializes a tiktoken encoding (first use may download encoding data) and
// falls back to a bytes/4 estimate when that fails, so routing keeps working
// offline.
type tokenCounter struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
	logger   *zap.Logger
}

func newTokenCounter(logger *zap.Logger) *tokenCounter {
	return &tokenCounter{encoding: "cl100k_base", logger: logger}
}

func (t *tokenCounter) init() {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = err
			return
		}
		t.enc = enc
	})
}

// Count returns the token count for text.
func (t *tokenCounter) Count(text string) int {
	t.init()
	if t.initErr != nil {
		t.logger.Debug("tiktoken unavailable, using byte estimate", zap.Error(t.initErr))
		return len(text)/4 + 1
	}
	return len(t.enc.Encode(text, nil, nil))
}
