package domain

import "time"

// Utterance is one recognized speech segment. Interim utterances may repeat;
// exactly one final utterance closes a segment.
type Utterance struct {
	SpeakerID        ParticipantID
	Segment          uint64
	RawText          string
	DetectedLanguage string
	IsFinal          bool
}

// ChatMessage is a sanitized chat line. It is never stored past delivery.
type ChatMessage struct {
	ID         string
	RoomID     RoomID
	SenderID   ParticipantID
	SenderName string
	Text       string
	Timestamp  time.Time
}

// SignalMessage is an opaque negotiation payload addressed to one peer.
type SignalMessage struct {
	SenderID ParticipantID
	TargetID ParticipantID
	Payload  []byte
}
