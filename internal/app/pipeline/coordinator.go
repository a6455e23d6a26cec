// Package pipeline turns final utterances into translated subtitles and
// synthesized audio for the other member of a two-person room.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/babel/internal/app"
	"github.com/dkeye/babel/internal/core"
	"github.com/dkeye/babel/internal/domain"
	"github.com/dkeye/babel/internal/protocol"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const DefaultTimeout = 10 * time.Second

// Directory is the membership view the coordinator routes against. View runs
// fn while membership cannot change.
type Directory interface {
	Get(id domain.ParticipantID) (app.Peer, bool)
	Members(roomID domain.RoomID, exclude domain.ParticipantID) []app.Peer
	View(id domain.ParticipantID, fn func(self app.Peer, others []app.Peer)) error
}

// Sender queues one event for one peer.
type Sender interface {
	Send(to app.Peer, msg any) bool
}

type job struct {
	id        uint64
	room      domain.RoomID
	speaker   domain.ParticipantID
	listener  domain.ParticipantID
	cancel    context.CancelFunc
	abandoned bool
}

type Coordinator struct {
	dir        Directory
	out        Sender
	translator core.Translator
	synth      core.Synthesizer
	stats      *app.Stats
	timeout    time.Duration

	mu     sync.Mutex
	nextID uint64
	jobs   map[uint64]*job
	closed bool
	wg     sync.WaitGroup
}

func NewCoordinator(dir Directory, out Sender, tr core.Translator, synth core.Synthesizer, stats *app.Stats, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if stats == nil {
		stats = &app.Stats{}
	}
	return &Coordinator{
		dir:        dir,
		out:        out,
		translator: tr,
		synth:      synth,
		stats:      stats,
		timeout:    timeout,
		jobs:       make(map[uint64]*job),
	}
}

// OnUtterance routes one segmenter emission. Interims only reach the speaker.
// A non-empty final is echoed to the speaker and, when exactly one other
// member shares the room, translated for that listener.
func (c *Coordinator) OnUtterance(u domain.Utterance) {
	speaker, ok := c.dir.Get(u.SpeakerID)
	if !ok || speaker.Room == "" {
		log.Debug().Str("module", "pipeline").Str("sid", string(u.SpeakerID)).Msg("utterance from participant outside any room")
		return
	}
	source := u.DetectedLanguage
	if source == "" {
		source = speaker.Languages.Spoken
	}

	if !u.IsFinal {
		if u.RawText == "" {
			return
		}
		c.out.Send(speaker, protocol.Subtitle{
			Type:           protocol.OutSubtitle,
			SpeakerID:      speaker.ID,
			OriginalText:   u.RawText,
			SpokenLanguage: source,
			TargetLanguage: speaker.Languages.Target,
		})
		return
	}

	if u.RawText == "" {
		return
	}
	c.stats.FinalUtterances.Add(1)
	c.out.Send(speaker, protocol.Subtitle{
		Type:           protocol.OutSubtitle,
		SpeakerID:      speaker.ID,
		OriginalText:   u.RawText,
		TranslatedText: u.RawText,
		SpokenLanguage: source,
		TargetLanguage: source,
		IsFinal:        true,
	})

	others := c.dir.Members(speaker.Room, speaker.ID)
	if len(others) != 1 {
		log.Debug().Str("module", "pipeline").Str("room", string(speaker.Room)).Int("listeners", len(others)).Msg("translation skipped")
		return
	}
	listener := others[0]
	target := listener.Languages.Target
	if target == "" {
		target = listener.Languages.Spoken
	}

	if target == "" || target == source {
		c.out.Send(listener, protocol.Subtitle{
			Type:           protocol.OutSubtitle,
			SpeakerID:      speaker.ID,
			OriginalText:   u.RawText,
			TranslatedText: u.RawText,
			SpokenLanguage: source,
			TargetLanguage: source,
			IsFinal:        true,
		})
		return
	}

	j, ctx, ok := c.register(speaker.Room, speaker.ID, listener.ID)
	if !ok {
		return
	}
	go c.run(ctx, j, u.RawText, source, target)
}

func (c *Coordinator) register(room domain.RoomID, speaker, listener domain.ParticipantID) (*job, context.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	c.nextID++
	j := &job{id: c.nextID, room: room, speaker: speaker, listener: listener, cancel: cancel}
	c.jobs[j.id] = j
	c.wg.Add(1)
	return j, ctx, true
}

// finish forgets the job and reports whether its result may still be delivered.
func (c *Coordinator) finish(j *job) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.jobs, j.id)
	j.cancel()
	return !j.abandoned
}

func (c *Coordinator) run(ctx context.Context, j *job, text, source, target string) {
	defer c.wg.Done()
	l := log.With().Str("module", "pipeline").Str("room", string(j.room)).Str("speaker", string(j.speaker)).Str("listener", string(j.listener)).Logger()

	var audio []byte
	translated, err := c.translator.Translate(ctx, text, source, target)
	if err != nil {
		c.stats.CollaboratorErrors.Add(1)
		l.Warn().Err(err).Msg("translation failed")
		translated = ""
	} else {
		audio, err = c.synth.Synthesize(ctx, translated, target)
		if err != nil {
			c.stats.CollaboratorErrors.Add(1)
			l.Warn().Err(err).Msg("synthesis failed")
			audio = nil
		}
	}

	if !c.finish(j) {
		c.stats.AbandonedPipelines.Add(1)
		l.Debug().Msg("abandoned")
		return
	}

	// both frames go out under one membership view so a leave either
	// precedes the check or follows the delivery
	delivered := false
	err = c.dir.View(j.listener, func(listener app.Peer, others []app.Peer) {
		if listener.Room != j.room || !lo.ContainsBy(others, func(p app.Peer) bool { return p.ID == j.speaker }) {
			return
		}
		delivered = true
		if !c.out.Send(listener, protocol.Subtitle{
			Type:           protocol.OutSubtitle,
			SpeakerID:      j.speaker,
			OriginalText:   text,
			TranslatedText: translated,
			SpokenLanguage: source,
			TargetLanguage: target,
			IsFinal:        true,
		}) {
			return
		}
		if translated != "" {
			c.stats.Translations.Add(1)
		}
		if len(audio) > 0 {
			c.out.Send(listener, protocol.TranslatedAudio{
				Type:      protocol.OutTranslatedAudio,
				SpeakerID: j.speaker,
				Language:  target,
				Audio:     audio,
			})
		}
	})
	if err != nil || !delivered {
		c.stats.AbandonedPipelines.Add(1)
		l.Debug().AnErr("view", err).Msg("membership changed before delivery")
	}
}

// Abandon cancels every in-flight job in which the participant is the
// speaker or the listener. Their results are never delivered.
func (c *Coordinator) Abandon(id domain.ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, j := range c.jobs {
		if j.speaker == id || j.listener == id {
			j.abandoned = true
			j.cancel()
		}
	}
}

// InFlight is the number of jobs that have not settled yet.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// Close abandons every job and waits for their goroutines to return.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	for _, j := range c.jobs {
		j.abandoned = true
		j.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
}
