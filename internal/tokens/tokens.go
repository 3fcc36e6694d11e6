// Package tokens estimates how much of a model's context window a piece of
// text consumes.
package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	once sync.Once
	enc  tokenizer.Codec
)

// Count returns the token count of text under the o200k_base encoding. When
// the encoder cannot be constructed it falls back to the usual
// four-characters-per-token approximation rather than failing.
func Count(text string) int {
	once.Do(func() {
		codec, err := tokenizer.Get(tokenizer.O200kBase)
		if err == nil {
			enc = codec
		}
	})
	if enc == nil {
		return approx(text)
	}
	n, err := enc.Count(text)
	if err != nil {
		return approx(text)
	}
	return n
}

func approx(text string) int {
	return len(text) / 4
}
