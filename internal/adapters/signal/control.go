package signal

import (
	"errors"

	"github.com/dkeye/babel/internal/app"
	"github.com/dkeye/babel/internal/app/chat"
	"github.com/dkeye/babel/internal/app/orch"
	"github.com/dkeye/babel/internal/domain"
	"github.com/dkeye/babel/internal/protocol"
)

var errRateLimited = errors.New("rate limited")

func (ctl *SignalWSController) handlePing(sid domain.ParticipantID) {
	ctl.Orch.Pong(sid)
}

func (ctl *SignalWSController) fail(sid domain.ParticipantID, err error) {
	ctl.Orch.Fail(sid, reasonOf(err))
}

// reasonOf maps an error to the short reason sent in the error event.
func reasonOf(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownType):
		return "unknown_type"
	case errors.Is(err, protocol.ErrBadPayload):
		return "bad_payload"
	case errors.Is(err, domain.ErrRoomIDEmpty),
		errors.Is(err, domain.ErrRoomIDTooLong),
		errors.Is(err, domain.ErrRoomIDInvalid):
		return "invalid_room"
	case errors.Is(err, domain.ErrUsernameTooLong),
		errors.Is(err, domain.ErrUsernameInvalid):
		return "invalid_name"
	case errors.Is(err, app.ErrAlreadyInRoom):
		return "already_in_room"
	case errors.Is(err, app.ErrNotInRoom), errors.Is(err, app.ErrRoomNotFound):
		return "not_in_room"
	case errors.Is(err, chat.ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, orch.ErrChunkTooLarge):
		return "chunk_too_large"
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	default:
		return "internal_error"
	}
}
