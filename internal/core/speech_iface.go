package core

import "context"

// Recognition is one recognizer answer for an audio buffer.
type Recognition struct {
	Text             string
	DetectedLanguage string
}

// Recognizer turns buffered audio into text. final is false for interim
// passes over a still-growing buffer.
//
//go:generate mockgen -destination=../mocks/speech.go -package=mocks github.com/dkeye/babel/internal/core Recognizer,Translator,Synthesizer
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, languageHint string, final bool) (Recognition, error)
}

type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, languageCode string) ([]byte, error)
}
