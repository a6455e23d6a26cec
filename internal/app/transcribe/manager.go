package transcribe

import (
	"sync"

	"github.com/dkeye/babel/internal/core"
	"github.com/dkeye/babel/internal/domain"
	"github.com/rs/zerolog/log"
)

// Manager owns one Segmenter per participant that is streaming audio.
type Manager struct {
	mu         sync.Mutex
	segmenters map[domain.ParticipantID]*Segmenter
	rec        core.Recognizer
	emit       Emitter
	opts       Options
}

func NewManager(rec core.Recognizer, emit Emitter, opts Options) *Manager {
	return &Manager{
		segmenters: make(map[domain.ParticipantID]*Segmenter),
		rec:        rec,
		emit:       emit,
		opts:       opts,
	}
}

// GetOrCreate returns the participant's segmenter, starting one on first use.
func (m *Manager) GetOrCreate(id domain.ParticipantID, languageHint string) *Segmenter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.segmenters[id]; ok {
		return s
	}
	s := NewSegmenter(id, languageHint, m.rec, m.emit, m.opts)
	m.segmenters[id] = s
	log.Info().Str("module", "transcribe").Str("sid", string(id)).Str("language", languageHint).Msg("created segmenter")
	return s
}

func (m *Manager) Get(id domain.ParticipantID) (*Segmenter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.segmenters[id]
	return s, ok
}

// SetLanguage updates the hint of a running segmenter, if any.
func (m *Manager) SetLanguage(id domain.ParticipantID, lang string) {
	if s, ok := m.Get(id); ok {
		s.SetLanguageHint(lang)
	}
}

// Remove stops and forgets the participant's segmenter.
func (m *Manager) Remove(id domain.ParticipantID) {
	if s := m.Detach(id); s != nil {
		s.Stop()
	}
}

// Detach forgets the participant's segmenter without stopping it, so the
// caller can stop it outside its own locks. The next GetOrCreate starts a
// fresh one. Returns nil when there is none.
func (m *Manager) Detach(id domain.ParticipantID) *Segmenter {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.segmenters[id]
	if !ok {
		return nil
	}
	delete(m.segmenters, id)
	log.Info().Str("module", "transcribe").Str("sid", string(id)).Msg("removed segmenter")
	return s
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.segmenters)
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.segmenters
	m.segmenters = make(map[domain.ParticipantID]*Segmenter)
	m.mu.Unlock()
	for _, s := range all {
		s.Stop()
	}
}
