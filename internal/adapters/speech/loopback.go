// Package speech holds development providers for the recognition,
// translation and synthesis ports. They let the server run end to end
// without any external service.
package speech

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dkeye/babel/internal/core"
)

// TextRecognizer reads the audio buffer as UTF-8 text. Buffers that are not
// valid text recognize as empty. The detected language is left to the caller.
type TextRecognizer struct{}

func (TextRecognizer) Recognize(ctx context.Context, audio []byte, _ string, _ bool) (core.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return core.Recognition{}, err
	}
	if !utf8.Valid(audio) {
		return core.Recognition{}, nil
	}
	return core.Recognition{Text: strings.TrimSpace(string(audio))}, nil
}

// TaggingTranslator prefixes the text with the target language.
type TaggingTranslator struct{}

func (TaggingTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if targetLang == "" {
		return "", fmt.Errorf("translate %q: empty target language", sourceLang)
	}
	return fmt.Sprintf("[%s] %s", targetLang, text), nil
}

// EchoSynthesizer returns the text bytes as the audio buffer.
type EchoSynthesizer struct{}

func (EchoSynthesizer) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(text), nil
}
