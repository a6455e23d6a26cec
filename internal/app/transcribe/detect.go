package transcribe

import (
	"github.com/abadojack/whatlanggo"
	"github.com/dkeye/babel/internal/core"
)

// detectLanguage prefers the recognizer's answer, then a reliable guess from
// the text itself, then the hint.
func detectLanguage(rec core.Recognition, hint string) string {
	if rec.DetectedLanguage != "" {
		return rec.DetectedLanguage
	}
	if rec.Text != "" {
		if info := whatlanggo.Detect(rec.Text); info.IsReliable() {
			if code := info.Lang.Iso6391(); code != "" {
				return code
			}
		}
	}
	return hint
}
