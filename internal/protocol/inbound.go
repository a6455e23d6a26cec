// Package protocol defines the JSON messages exchanged over the signaling
// websocket. Every message is an object with a "type" field.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type MessageType string

const (
	TypeJoinRoom             MessageType = "join-room"
	TypeSetLanguages         MessageType = "set-languages"
	TypeSetPreferredLanguage MessageType = "set-preferred-language"
	TypeAudioChunk           MessageType = "audio-chunk"
	TypeChatMessage          MessageType = "chat-message"
	TypeSignal               MessageType = "signal"
	TypeUpdateStatus         MessageType = "update-status"
	TypeDisconnectCall       MessageType = "disconnect-call"
	TypeEndCall              MessageType = "end-call"
	TypeLeave                MessageType = "leave"
	TypeRename               MessageType = "rename"
	TypeWhoAmI               MessageType = "whoami"
	TypePing                 MessageType = "ping"
)

var (
	ErrBadPayload  = errors.New("bad_payload")
	ErrUnknownType = errors.New("unknown_type")
)

var validate = validator.New()

type JoinRoom struct {
	RoomID      string     `json:"roomId" validate:"required,max=64"`
	DisplayName string     `json:"displayName" validate:"max=64"`
	Languages   *Languages `json:"languages,omitempty"`
}

type Languages struct {
	Spoken string `json:"spoken" validate:"omitempty,bcp47_language_tag"`
	Target string `json:"target" validate:"omitempty,bcp47_language_tag"`
}

type SetPreferredLanguage struct {
	Language string `json:"language" validate:"required,bcp47_language_tag"`
}

type AudioChunk struct {
	Audio []byte `json:"audio" validate:"required"`
}

type ChatMessage struct {
	Message string `json:"message"`
}

type Signal struct {
	TargetID string          `json:"targetId" validate:"required,max=64"`
	Signal   json.RawMessage `json:"signal" validate:"required"`
}

type UpdateStatus struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

type EndCall struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
}

type Rename struct {
	Name string `json:"name" validate:"required,max=64"`
}

// Empty is the payload of messages that carry nothing but their type.
type Empty struct{}

type envelope struct {
	Type MessageType `json:"type"`
}

// Decode parses one inbound text frame into its typed payload.
func Decode(data []byte) (MessageType, any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	var payload any
	switch env.Type {
	case TypeJoinRoom:
		payload = &JoinRoom{}
	case TypeSetLanguages:
		payload = &Languages{}
	case TypeSetPreferredLanguage:
		payload = &SetPreferredLanguage{}
	case TypeAudioChunk:
		payload = &AudioChunk{}
	case TypeChatMessage:
		payload = &ChatMessage{}
	case TypeSignal:
		payload = &Signal{}
	case TypeUpdateStatus:
		payload = &UpdateStatus{}
	case TypeEndCall:
		payload = &EndCall{}
	case TypeRename:
		payload = &Rename{}
	case TypeDisconnectCall, TypeLeave, TypeWhoAmI, TypePing:
		return env.Type, &Empty{}, nil
	default:
		return env.Type, nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return env.Type, nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if err := validate.Struct(payload); err != nil {
		return env.Type, nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return env.Type, payload, nil
}
