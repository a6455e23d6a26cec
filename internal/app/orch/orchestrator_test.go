package orch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/babel/internal/app"
	"github.com/dkeye/babel/internal/app/chat"
	"github.com/dkeye/babel/internal/app/pipeline"
	"github.com/dkeye/babel/internal/app/transcribe"
	"github.com/dkeye/babel/internal/core"
	"github.com/dkeye/babel/internal/domain"
	"github.com/dkeye/babel/internal/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type staticRecognizer struct {
	text, lang string
}

func (r staticRecognizer) Recognize(_ context.Context, audio []byte, _ string, final bool) (core.Recognition, error) {
	if !final {
		return core.Recognition{}, nil
	}
	return core.Recognition{Text: r.text, DetectedLanguage: r.lang}, nil
}

type harness struct {
	o     *Orchestrator
	conns map[domain.ParticipantID]*mocks.RecordingConn
	tr    *mocks.MockTranslator
	synth *mocks.MockSynthesizer
}

var silent = staticRecognizer{}

func newHarness(t *testing.T, recs ...core.Recognizer) *harness {
	t.Helper()
	var rec core.Recognizer = staticRecognizer{text: "hola", lang: "es"}
	if len(recs) > 0 {
		rec = recs[0]
	}
	ctrl := gomock.NewController(t)
	reg := app.NewRegistry()
	stats := &app.Stats{}
	out := app.NewOutbox(app.SimplePolicy{}, stats)
	h := &harness{
		conns: make(map[domain.ParticipantID]*mocks.RecordingConn),
		tr:    mocks.NewMockTranslator(ctrl),
		synth: mocks.NewMockSynthesizer(ctrl),
	}
	coord := pipeline.NewCoordinator(reg, out, h.tr, h.synth, stats, time.Second)
	segs := transcribe.NewManager(rec, coord.OnUtterance, transcribe.Options{
		SilenceTimeout: 40 * time.Millisecond,
	})
	t.Cleanup(func() {
		segs.CloseAll()
		coord.Close()
	})
	h.o = &Orchestrator{
		Registry:    reg,
		Outbox:      out,
		Stats:       stats,
		Segmenters:  segs,
		Pipeline:    coord,
		DefaultName: "Guest",
		Now:         func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	return h
}

func (h *harness) connect(t *testing.T, id domain.ParticipantID, spoken, target string) *mocks.RecordingConn {
	t.Helper()
	conn := mocks.NewRecordingConn()
	h.conns[id] = conn
	require.NoError(t, h.o.Registry.Connect(id, "Guest", domain.Languages{Spoken: spoken, Target: target}, conn))
	return conn
}

func (h *harness) resetAll() {
	for _, c := range h.conns {
		c.Reset()
	}
}

func TestJoin_PresenceScenario(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.connect(t, "a", "en", "en")
	b := h.connect(t, "b", "en", "en")

	req.NoError(h.o.Join("a", "r1", "Alice"))
	req.Equal([]string{"existing-users"}, a.Types())
	req.Empty(a.Messages()[0]["users"])

	req.NoError(h.o.Join("b", "r1", "Bob"))
	existing := b.OfType("existing-users")
	req.Len(existing, 1)
	users := existing[0]["users"].([]any)
	req.Len(users, 1)
	req.Equal("a", users[0].(map[string]any)["id"])
	req.Equal("Alice", users[0].(map[string]any)["name"])

	connected := a.OfType("user-connected")
	req.Len(connected, 1)
	req.Equal("b", connected[0]["id"])
	req.Equal("Bob", connected[0]["name"])
}

func TestJoin_Validation(t *testing.T) {
	tests := []struct {
		name string
		room string
		user string
		err  error
	}{
		{name: "empty room", room: "  ", user: "Alice", err: domain.ErrRoomIDEmpty},
		{name: "invalid utf8 room", room: "\xff", user: "Alice", err: domain.ErrRoomIDInvalid},
		{name: "long name", room: "r1", user: fmt.Sprintf("%040d", 0), err: domain.ErrUsernameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			conn := h.connect(t, "a", "en", "en")
			require.ErrorIs(t, h.o.Join("a", tt.room, tt.user), tt.err)
			require.Empty(t, h.o.Registry.List())
			require.Empty(t, conn.Messages())
		})
	}
}

func TestJoin_NameReducedToPlainText(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.connect(t, "a", "en", "en")
	h.connect(t, "b", "en", "en")
	req.NoError(h.o.Join("a", "r1", "Alice"))
	a.Reset()

	req.NoError(h.o.Join("b", "r1", "<b>Bob</b>"))
	joined := a.OfType("user-connected")
	req.Len(joined, 1)
	req.Equal("Bob", joined[0]["name"])

	_, err := h.o.Chat("b", "hi")
	req.NoError(err)
	chats := a.OfType("chat-message")
	req.Len(chats, 1)
	req.Equal("Bob", chats[0]["userId"])
}

func TestJoin_DefaultNameAndSecondJoinRejected(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect(t, "a", "en", "en")

	req.NoError(h.o.Join("a", "r1", ""))
	self, _ := h.o.Registry.Get("a")
	req.Equal("Guest", self.Name)

	req.ErrorIs(h.o.Join("a", "r2", "Alice"), app.ErrAlreadyInRoom)
	room, ok := h.o.Registry.RoomOf("a")
	req.True(ok)
	req.Equal(domain.RoomID("r1"), room)
	req.True(h.o.Registry.IsEmpty("r2"))
}

func TestChat_StripsMarkupAndReachesEveryone(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.connect(t, "a", "en", "en")
	b := h.connect(t, "b", "en", "en")
	req.NoError(h.o.Join("a", "r1", "Alice"))
	req.NoError(h.o.Join("b", "r1", "Bob"))

	msg, err := h.o.Chat("a", "<b>hi</b>")
	req.NoError(err)
	req.Equal("hi", msg.Text)

	for _, conn := range []*mocks.RecordingConn{a, b} {
		got := conn.OfType("chat-message")
		req.Len(got, 1)
		req.Equal("hi", got[0]["message"])
		req.Equal("Alice", got[0]["userId"])
		req.Equal("a", got[0]["senderId"])
		req.Equal("2024-05-01T12:00:00Z", got[0]["timestamp"])
	}
}

func TestChat_EmptyInputRejectedButEmptyAfterSanitizeDelivered(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.connect(t, "a", "en", "en")
	req.NoError(h.o.Join("a", "r1", "Alice"))
	a.Reset()

	_, err := h.o.Chat("a", "")
	req.ErrorIs(err, chat.ErrEmptyMessage)
	req.Empty(a.Messages())

	_, err = h.o.Chat("a", "<script>alert(1)</script>")
	req.NoError(err)
	got := a.OfType("chat-message")
	req.Len(got, 1)
	req.Equal("", got[0]["message"])
}

func TestChat_Censored(t *testing.T) {
	h := newHarness(t)
	mod, err := chat.NewModerator([]string{"darn"}, '*')
	require.NoError(t, err)
	h.o.Moderator = mod
	a := h.connect(t, "a", "en", "en")
	require.NoError(t, h.o.Join("a", "r1", "Alice"))

	_, err = h.o.Chat("a", "oh darn it")
	require.NoError(t, err)
	require.Equal(t, "oh **** it", a.OfType("chat-message")[0]["message"])
}

func TestChat_OutsideRoom(t *testing.T) {
	h := newHarness(t)
	h.connect(t, "a", "en", "en")
	_, err := h.o.Chat("a", "hello")
	require.ErrorIs(t, err, app.ErrNotInRoom)
}

func TestRelay(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.connect(t, "a", "en", "en")
	b := h.connect(t, "b", "en", "en")
	c := h.connect(t, "c", "en", "en")
	req.NoError(h.o.Join("a", "r1", "Alice"))
	req.NoError(h.o.Join("b", "r1", "Bob"))
	req.NoError(h.o.Join("c", "r2", "Carol"))
	h.resetAll()

	h.o.Relay(domain.SignalMessage{SenderID: "a", TargetID: "b", Payload: []byte(`{"sdp":"offer"}`)})
	got := b.OfType("signal")
	req.Len(got, 1)
	req.Equal("a", got[0]["senderId"])
	req.Equal("Alice", got[0]["senderName"])
	req.Equal(map[string]any{"sdp": "offer"}, got[0]["signal"])

	h.o.Relay(domain.SignalMessage{SenderID: "a", TargetID: "c", Payload: []byte(`{}`)})
	h.o.Relay(domain.SignalMessage{SenderID: "a", TargetID: "ghost", Payload: []byte(`{}`)})
	req.Empty(c.Messages())
	req.Equal(int64(2), h.o.Stats.RoutingDrops.Load())
}

func TestUpdateStatus_BroadcastsToOthers(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.connect(t, "a", "en", "en")
	b := h.connect(t, "b", "en", "en")
	req.NoError(h.o.Join("a", "r1", "Alice"))
	req.NoError(h.o.Join("b", "r1", "Bob"))
	h.resetAll()

	req.NoError(h.o.UpdateStatus("a", domain.Status{Audio: true}))
	req.Empty(a.Messages())
	got := b.OfType("user-status-updated")
	req.Len(got, 1)
	req.Equal("a", got[0]["id"])
	req.Equal(map[string]any{"audio": true, "video": false}, got[0]["status"])
}

func TestLeave_AnnouncesAndDeletesEmptyRoom(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.connect(t, "a", "en", "en")
	b := h.connect(t, "b", "en", "en")
	req.NoError(h.o.Join("a", "r1", "Alice"))
	req.NoError(h.o.Join("b", "r1", "Bob"))
	h.resetAll()

	req.NoError(h.o.Leave("a"))
	req.Equal([]string{"left"}, a.Types())
	gone := b.OfType("user-disconnected")
	req.Len(gone, 1)
	req.Equal("a", gone[0]["id"])
	req.Equal("Alice", gone[0]["name"])

	req.ErrorIs(h.o.Leave("a"), app.ErrNotInRoom)

	req.NoError(h.o.Leave("b"))
	req.True(h.o.Registry.IsEmpty("r1"))
	req.Empty(h.o.Registry.List())
}

func TestDisconnect_AnnouncesOnce(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, silent)
	h.connect(t, "a", "en", "en")
	b := h.connect(t, "b", "en", "en")
	req.NoError(h.o.Join("a", "r1", "Alice"))
	req.NoError(h.o.Join("b", "r1", "Bob"))
	req.NoError(h.o.OnAudio("a", []byte{1, 2}))
	h.resetAll()

	h.o.Disconnect("a")
	h.o.Disconnect("a")

	req.Len(b.OfType("user-disconnected"), 1)
	_, ok := h.o.Segmenters.Get("a")
	req.False(ok)
	_, ok = h.o.Registry.Get("a")
	req.False(ok)
}

func TestEndCall(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, silent)
	a := h.connect(t, "a", "en", "en")
	b := h.connect(t, "b", "en", "en")
	h.connect(t, "c", "en", "en")
	req.NoError(h.o.Join("a", "r1", "Alice"))
	req.NoError(h.o.Join("b", "r1", "Bob"))
	req.NoError(h.o.OnAudio("b", []byte{1}))
	h.resetAll()

	req.ErrorIs(h.o.EndCall("c", "r1"), app.ErrNotInRoom)

	req.NoError(h.o.EndCall("a", "r1"))
	req.Equal([]string{"call-ended"}, a.Types())
	req.Equal([]string{"call-ended"}, b.Types())
	req.True(h.o.Registry.IsEmpty("r1"))
	req.Zero(h.o.Segmenters.Len())

	_, stillConnected := h.o.Registry.Get("a")
	req.True(stillConnected)
	req.NoError(h.o.Join("a", "r1", "Alice"))
}

func TestEndCall_MediaDetachedBeforeMembersAreReleased(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, silent)
	h.connect(t, "a", "en", "en")
	req.NoError(h.o.Join("a", "r1", "Alice"))

	ctrl := gomock.NewController(t)
	b := mocks.NewMockSignalConnection(ctrl)
	var ending, segmenterAtEnd atomic.Bool
	var endFrames atomic.Int32
	b.EXPECT().TrySend(gomock.Any()).DoAndReturn(func(core.Frame) error {
		if ending.Load() {
			endFrames.Add(1)
			_, ok := h.o.Segmenters.Get("b")
			segmenterAtEnd.Store(ok)
		}
		return nil
	}).AnyTimes()
	req.NoError(h.o.Registry.Connect("b", "Guest", domain.Languages{Spoken: "en", Target: "en"}, b))
	req.NoError(h.o.Join("b", "r1", "Bob"))
	req.NoError(h.o.OnAudio("b", []byte{1}))
	first, ok := h.o.Segmenters.Get("b")
	req.True(ok)

	// call-ended reaches b while the room is still locked; its segmenter is already gone
	ending.Store(true)
	req.NoError(h.o.EndCall("a", "r1"))
	ending.Store(false)
	req.Equal(int32(1), endFrames.Load())
	req.False(segmenterAtEnd.Load())
	req.ErrorIs(first.Feed([]byte{2}), transcribe.ErrSegmenterStopped)

	req.NoError(h.o.Join("b", "r1", "Bob"))
	req.NoError(h.o.OnAudio("b", []byte{3}))
	second, ok := h.o.Segmenters.Get("b")
	req.True(ok)
	req.NotSame(first, second)
}

func TestOnAudio_Violations(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, silent)
	h.connect(t, "a", "en", "en")

	req.NoError(h.o.OnAudio("a", []byte{1}))
	req.NoError(h.o.OnAudio("ghost", []byte{1}))
	req.Equal(int64(2), h.o.Stats.ProtocolViolations.Load())
	req.Zero(h.o.Segmenters.Len())

	h.o.MaxChunkBytes = 4
	req.NoError(h.o.Join("a", "r1", "Alice"))
	req.ErrorIs(h.o.OnAudio("a", make([]byte, 5)), ErrChunkTooLarge)
	req.Zero(h.o.Segmenters.Len())
}

type partialRecognizer struct{}

func (partialRecognizer) Recognize(context.Context, []byte, string, bool) (core.Recognition, error) {
	return core.Recognition{Text: "partial"}, nil
}

func TestOnAudio_BusySegmenterDropsChunk(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, silent)
	h.connect(t, "a", "en", "en")
	req.NoError(h.o.Join("a", "r1", "Alice"))

	stalled := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	// an emitter stuck on the first interim keeps the loop from draining chunks
	h.o.Segmenters = transcribe.NewManager(partialRecognizer{}, func(domain.Utterance) {
		once.Do(func() {
			close(stalled)
			<-release
		})
	}, transcribe.Options{SilenceTimeout: time.Minute, InterimInterval: time.Nanosecond, QueueSize: 2})
	t.Cleanup(h.o.Segmenters.CloseAll)
	t.Cleanup(func() { close(release) })

	req.NoError(h.o.OnAudio("a", []byte{1}))
	<-stalled

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_ = h.o.OnAudio("a", []byte{2})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnAudio blocked on a busy segmenter")
	}
	req.Equal(int64(3), h.o.Stats.AudioDrops.Load())
}

func TestOnAudio_TranslatedForListener(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	a := h.connect(t, "a", "es", "es")
	b := h.connect(t, "b", "en", "en")
	req.NoError(h.o.Join("a", "r1", "Alice"))
	req.NoError(h.o.Join("b", "r1", "Bob"))
	h.resetAll()

	h.tr.EXPECT().Translate(gomock.Any(), "hola", "es", "en").Return("hello", nil)
	h.synth.EXPECT().Synthesize(gomock.Any(), "hello", "en").Return([]byte("pcm"), nil)

	for i := 0; i < 3; i++ {
		req.NoError(h.o.OnAudio("a", []byte{byte(i)}))
		time.Sleep(10 * time.Millisecond)
	}

	req.Eventually(func() bool { return len(b.Messages()) == 2 }, 2*time.Second, 10*time.Millisecond)
	req.Equal([]string{"subtitle-data", "translated-audio-chunk"}, b.Types())
	sub := b.Messages()[0]
	req.Equal("hola", sub["originalText"])
	req.Equal("hello", sub["translatedText"])
	req.Equal(true, sub["isFinal"])

	own := a.OfType("subtitle-data")
	req.Len(own, 1)
	req.Equal(true, own[0]["isFinal"])
	req.Equal(int64(1), h.o.Stats.FinalUtterances.Load())
}

func TestRenameAndLanguages(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, silent)
	a := h.connect(t, "a", "en", "en")
	b := h.connect(t, "b", "en", "en")
	req.NoError(h.o.Join("a", "r1", "Alice"))
	req.NoError(h.o.Join("b", "r1", "Bob"))
	h.resetAll()

	req.NoError(h.o.Rename("a", "Alicia"))
	req.Equal([]string{"whoami"}, a.Types())
	req.Equal("Alicia", a.Messages()[0]["name"])
	updated := b.OfType("user-updated")
	req.Len(updated, 1)
	req.Equal("Alicia", updated[0]["name"])
	req.ErrorIs(h.o.Rename("a", "   "), domain.ErrUsernameInvalid)

	req.NoError(h.o.SetLanguages("a", "", "fr"))
	self, _ := h.o.Registry.Get("a")
	req.Equal(domain.Languages{Spoken: "en", Target: "fr"}, self.Languages)

	req.NoError(h.o.OnAudio("a", []byte{1}))
	req.NoError(h.o.SetLanguages("a", "de", ""))
	seg, ok := h.o.Segmenters.Get("a")
	req.True(ok)
	req.Equal("de", seg.LanguageHint())

	req.ErrorIs(h.o.SetLanguages("ghost", "en", ""), app.ErrUnknownParticipant)
}
