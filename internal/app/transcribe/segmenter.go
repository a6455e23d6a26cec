// Package transcribe segments a participant's audio stream into utterances.
//
// Every Segmenter runs its own event loop. Chunks, silence-timer expiries and
// interim answers are serialized through that loop, so buffer and timer state
// is only ever touched by one goroutine and chunks keep arrival order. Finals
// are recognized and emitted by a second goroutine. Neither the loop nor Feed
// ever waits on the recognizer; when a queue is full the work is dropped.
package transcribe

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/dkeye/babel/internal/core"
	"github.com/dkeye/babel/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrSegmenterStopped = errors.New("segmenter stopped")
	ErrQueueFull        = errors.New("segmenter queue full")
)

type State int

const (
	Idle State = iota
	Accumulating
)

func (s State) String() string {
	if s == Accumulating {
		return "accumulating"
	}
	return "idle"
}

// Emitter receives utterances. It is called from the loop and from the final
// recognition goroutine, and must not block.
type Emitter func(domain.Utterance)

type Options struct {
	// SilenceTimeout finalizes the utterance when no chunk arrives for this long.
	SilenceTimeout time.Duration
	// InterimInterval is the minimum spacing of interim recognitions. Zero disables them.
	InterimInterval time.Duration
	// MaxBufferBytes forces finalization of very long utterances. Zero means unbounded.
	MaxBufferBytes int
	// RecognizeTimeout bounds each recognizer call.
	RecognizeTimeout time.Duration
	// QueueSize bounds both the chunk queue and the pending finals.
	QueueSize int
	AfterFunc core.AfterFunc
	Now       func() time.Time
	// OnRecognizeError is told about every failed recognition and every
	// final dropped with ErrQueueFull.
	OnRecognizeError func(err error, final bool)
}

func (o Options) withDefaults() Options {
	if o.SilenceTimeout <= 0 {
		o.SilenceTimeout = 500 * time.Millisecond
	}
	if o.RecognizeTimeout <= 0 {
		o.RecognizeTimeout = 10 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.AfterFunc == nil {
		o.AfterFunc = core.RealAfterFunc
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type (
	chunkEvent   struct{ data []byte }
	timerEvent   struct{ gen uint64 }
	interimEvent struct {
		segment uint64
		rec     core.Recognition
		err     error
	}
)

type finalJob struct {
	segment uint64
	audio   []byte
}

// Segmenter is one participant's TranscriptionSession.
type Segmenter struct {
	speaker domain.ParticipantID
	rec     core.Recognizer
	emit    Emitter
	opts    Options
	hint    atomic.Value
	logger  zerolog.Logger

	events chan any
	finals chan finalJob
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// owned by the loop goroutine
	state       State
	buf         []byte
	segment     uint64
	timer       core.Timer
	timerGen    uint64
	lastInterim time.Time
	interimBusy bool
}

func NewSegmenter(speaker domain.ParticipantID, languageHint string, rec core.Recognizer, emit Emitter, opts Options) *Segmenter {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Segmenter{
		speaker: speaker,
		rec:     rec,
		emit:    emit,
		opts:    opts,
		logger:  log.With().Str("module", "transcribe").Str("sid", string(speaker)).Logger(),
		events:  make(chan any, opts.QueueSize),
		finals:  make(chan finalJob, opts.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.hint.Store(languageHint)
	go s.recognizeFinals()
	go s.run()
	return s
}

// Feed queues one audio chunk without blocking. Chunks are processed in call
// order; a chunk arriving while the queue is full is dropped with ErrQueueFull.
func (s *Segmenter) Feed(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	select {
	case <-s.ctx.Done():
		return ErrSegmenterStopped
	default:
	}
	select {
	case s.events <- chunkEvent{data: chunk}:
		return nil
	default:
		return ErrQueueFull
	}
}

// SetLanguageHint changes the language passed to later recognitions.
func (s *Segmenter) SetLanguageHint(lang string) {
	s.hint.Store(lang)
}

func (s *Segmenter) LanguageHint() string {
	return s.hint.Load().(string)
}

// Stop cancels the silence timer and discards the partial buffer without a
// final utterance. Results still in flight are dropped. Stop blocks until the
// loop has exited, never on the recognizer, and is safe to call more than once.
func (s *Segmenter) Stop() {
	s.cancel()
	<-s.done
}

func (s *Segmenter) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Segmenter) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.stopTimer()
			if s.state == Accumulating {
				s.logger.Debug().Int("bytes", len(s.buf)).Msg("discarding partial utterance")
			}
			s.state = Idle
			s.buf = nil
			return
		case ev := <-s.events:
			switch e := ev.(type) {
			case chunkEvent:
				s.onChunk(e.data)
			case timerEvent:
				s.onTimer(e.gen)
			case interimEvent:
				s.onInterim(e)
			}
		}
	}
}

func (s *Segmenter) onChunk(data []byte) {
	if s.state == Idle {
		s.state = Accumulating
		s.segment++
		s.buf = s.buf[:0]
		s.logger.Debug().Uint64("segment", s.segment).Msg("utterance started")
	}
	s.buf = append(s.buf, data...)
	if s.opts.MaxBufferBytes > 0 && len(s.buf) >= s.opts.MaxBufferBytes {
		s.logger.Debug().Int("bytes", len(s.buf)).Msg("buffer limit reached, forcing final")
		s.finalize()
		return
	}
	s.resetTimer()
	s.maybeInterim()
}

func (s *Segmenter) onTimer(gen uint64) {
	if gen != s.timerGen || s.state != Accumulating {
		return
	}
	s.finalize()
}

func (s *Segmenter) finalize() {
	s.stopTimer()
	job := finalJob{segment: s.segment, audio: s.buf}
	s.buf = nil
	s.state = Idle
	select {
	case s.finals <- job:
	default:
		s.logger.Warn().Uint64("segment", job.segment).Int("bytes", len(job.audio)).Msg("final queue full, dropping utterance")
		s.reportError(ErrQueueFull, true)
	}
}

func (s *Segmenter) onInterim(e interimEvent) {
	s.interimBusy = false
	if e.err != nil {
		return
	}
	// a finalized segment never gets another interim
	if e.segment != s.segment || s.state != Accumulating || e.rec.Text == "" {
		return
	}
	s.emitUtterance(e.segment, e.rec, false)
}

func (s *Segmenter) emitUtterance(segment uint64, rec core.Recognition, final bool) {
	s.emit(domain.Utterance{
		SpeakerID:        s.speaker,
		Segment:          segment,
		RawText:          rec.Text,
		DetectedLanguage: detectLanguage(rec, s.LanguageHint()),
		IsFinal:          final,
	})
}

func (s *Segmenter) maybeInterim() {
	if s.opts.InterimInterval <= 0 || s.interimBusy {
		return
	}
	now := s.opts.Now()
	if !s.lastInterim.IsZero() && now.Sub(s.lastInterim) < s.opts.InterimInterval {
		return
	}
	s.interimBusy = true
	s.lastInterim = now
	audio := slices.Clone(s.buf)
	segment := s.segment
	hint := s.LanguageHint()
	go func() {
		rec, err := s.recognize(audio, hint, false)
		if err != nil && s.ctx.Err() == nil {
			s.logger.Debug().Err(err).Uint64("segment", segment).Msg("interim recognition failed")
			s.reportError(err, false)
		}
		s.post(interimEvent{segment: segment, rec: rec, err: err})
	}()
}

// recognizeFinals runs final recognitions one at a time so finals keep segment
// order, and emits them itself so a slow recognizer never holds up the loop.
func (s *Segmenter) recognizeFinals() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.finals:
			rec, err := s.recognize(job.audio, s.LanguageHint(), true)
			if s.ctx.Err() != nil {
				return
			}
			if err != nil {
				s.logger.Error().Err(err).Uint64("segment", job.segment).Msg("final recognition failed")
				s.reportError(err, true)
				rec = core.Recognition{}
			}
			s.emitUtterance(job.segment, rec, true)
		}
	}
}

func (s *Segmenter) recognize(audio []byte, hint string, final bool) (core.Recognition, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.RecognizeTimeout)
	defer cancel()
	return s.rec.Recognize(ctx, audio, hint, final)
}

func (s *Segmenter) reportError(err error, final bool) {
	if s.opts.OnRecognizeError != nil {
		s.opts.OnRecognizeError(err, final)
	}
}

func (s *Segmenter) resetTimer() {
	s.stopTimer()
	s.timerGen++
	gen := s.timerGen
	s.timer = s.opts.AfterFunc(s.opts.SilenceTimeout, func() { s.post(timerEvent{gen: gen}) })
}

func (s *Segmenter) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
