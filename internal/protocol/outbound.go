package protocol

import (
	"encoding/json"
	"time"

	"github.com/dkeye/babel/internal/core"
	"github.com/dkeye/babel/internal/domain"
)

type UserInfo struct {
	ID     domain.ParticipantID `json:"id"`
	Name   string               `json:"name"`
	Status domain.Status        `json:"status"`
}

type ExistingUsers struct {
	Type  string     `json:"type"`
	Users []UserInfo `json:"users"`
}

type UserConnected struct {
	Type string               `json:"type"`
	ID   domain.ParticipantID `json:"id"`
	Name string               `json:"name"`
}

type UserDisconnected struct {
	Type string               `json:"type"`
	ID   domain.ParticipantID `json:"id"`
	Name string               `json:"name"`
}

type UserStatusUpdated struct {
	Type   string               `json:"type"`
	ID     domain.ParticipantID `json:"id"`
	Status domain.Status        `json:"status"`
}

type UserUpdated struct {
	Type string               `json:"type"`
	ID   domain.ParticipantID `json:"id"`
	Name string               `json:"name"`
}

// Chat keeps the historical field names: userId is the sender's display name.
type Chat struct {
	Type      string               `json:"type"`
	ID        string               `json:"id"`
	Message   string               `json:"message"`
	UserID    string               `json:"userId"`
	SenderID  domain.ParticipantID `json:"senderId"`
	Timestamp time.Time            `json:"timestamp"`
}

type SignalRelay struct {
	Type       string               `json:"type"`
	SenderID   domain.ParticipantID `json:"senderId"`
	SenderName string               `json:"senderName,omitempty"`
	Signal     json.RawMessage      `json:"signal"`
}

type Subtitle struct {
	Type           string               `json:"type"`
	SpeakerID      domain.ParticipantID `json:"speakerId"`
	OriginalText   string               `json:"originalText"`
	TranslatedText string               `json:"translatedText"`
	SpokenLanguage string               `json:"spokenLanguage"`
	TargetLanguage string               `json:"targetLanguage"`
	IsFinal        bool                 `json:"isFinal"`
}

type TranslatedAudio struct {
	Type      string               `json:"type"`
	SpeakerID domain.ParticipantID `json:"speakerId"`
	Language  string               `json:"language"`
	Audio     []byte               `json:"audio"`
}

type WhoAmI struct {
	Type      string               `json:"type"`
	ID        domain.ParticipantID `json:"id"`
	Name      string               `json:"name"`
	Room      domain.RoomID        `json:"room,omitempty"`
	Languages domain.Languages     `json:"languages"`
}

type Error struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Bare is a message that carries only its type: call-ended, left, pong.
type Bare struct {
	Type string `json:"type"`
}

const (
	OutExistingUsers     = "existing-users"
	OutUserConnected     = "user-connected"
	OutUserDisconnected  = "user-disconnected"
	OutUserStatusUpdated = "user-status-updated"
	OutUserUpdated       = "user-updated"
	OutChatMessage       = "chat-message"
	OutSignal            = "signal"
	OutSubtitle          = "subtitle-data"
	OutTranslatedAudio   = "translated-audio-chunk"
	OutCallEnded         = "call-ended"
	OutLeft              = "left"
	OutWhoAmI            = "whoami"
	OutPong              = "pong"
	OutError             = "error"
)

func NewError(reason string) Error { return Error{Type: OutError, Reason: reason} }

func Encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
