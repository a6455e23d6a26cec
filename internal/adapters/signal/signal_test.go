package signal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dkeye/babel/internal/app"
	"github.com/dkeye/babel/internal/app/chat"
	"github.com/dkeye/babel/internal/app/orch"
	"github.com/dkeye/babel/internal/domain"
	"github.com/dkeye/babel/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestReasonOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: fmt.Errorf("%w: x", protocol.ErrUnknownType), want: "unknown_type"},
		{err: fmt.Errorf("%w: x", protocol.ErrBadPayload), want: "bad_payload"},
		{err: domain.ErrRoomIDEmpty, want: "invalid_room"},
		{err: domain.ErrRoomIDTooLong, want: "invalid_room"},
		{err: domain.ErrUsernameTooLong, want: "invalid_name"},
		{err: app.ErrAlreadyInRoom, want: "already_in_room"},
		{err: app.ErrNotInRoom, want: "not_in_room"},
		{err: chat.ErrEmptyMessage, want: "empty_message"},
		{err: orch.ErrChunkTooLarge, want: "chunk_too_large"},
		{err: errRateLimited, want: "rate_limited"},
		{err: errors.New("boom"), want: "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, reasonOf(tt.err))
		})
	}
}

func TestRateLimiter(t *testing.T) {
	lim := newLimiter(1)
	require.True(t, lim.Allow())
	require.True(t, lim.Allow())
	require.False(t, lim.Allow())

	unlimited := newLimiter(0)
	for i := 0; i < 1000; i++ {
		require.True(t, unlimited.Allow())
	}
}
