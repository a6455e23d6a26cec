package app

import (
	"errors"
	"sort"
	"sync"

	"github.com/dkeye/babel/internal/core"
	"github.com/dkeye/babel/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var (
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrAlreadyConnected   = errors.New("participant already connected")
	ErrAlreadyInRoom      = errors.New("participant already in a room")
	ErrNotInRoom          = errors.New("participant not in a room")
	ErrRoomNotFound       = errors.New("room not found")
)

// Peer is a participant snapshot plus the connection used to reach it.
type Peer struct {
	domain.Participant
	Conn core.SignalConnection
}

type member struct {
	info domain.Participant
	conn core.SignalConnection
}

func (m *member) peer() Peer { return Peer{Participant: m.info, Conn: m.conn} }

// Registry owns every connected participant and every live room.
// A room exists only while it has members: it is created by the first Join and
// deleted in the same critical section that removes its last member.
// Callbacks passed to mutating methods run under the write lock so fan-out
// they trigger is ordered with respect to every other membership change.
// Callbacks must not block and must not call back into the Registry.
type Registry struct {
	mu      sync.RWMutex
	members map[domain.ParticipantID]*member
	rooms   map[domain.RoomID]map[domain.ParticipantID]*member
}

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[domain.ParticipantID]*member),
		rooms:   make(map[domain.RoomID]map[domain.ParticipantID]*member),
	}
}

// Connect binds a new connection. The participant is not in any room yet.
func (r *Registry) Connect(id domain.ParticipantID, name string, langs domain.Languages, conn core.SignalConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; ok {
		return ErrAlreadyConnected
	}
	r.members[id] = &member{
		info: domain.Participant{ID: id, Name: name, Languages: langs},
		conn: conn,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("bound connection")
	return nil
}

// Disconnect forgets the participant. If it was in a room, onLeave sees the
// departed participant and the remaining members.
func (r *Registry) Disconnect(id domain.ParticipantID, onLeave func(left Peer, remaining []Peer)) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return Peer{}, false
	}
	last := m.peer()
	if m.info.Room != "" {
		remaining := r.removeLocked(m)
		if onLeave != nil {
			onLeave(last, remaining)
		}
	}
	delete(r.members, id)
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("unbind connection")
	return last, true
}

// Join admits the participant to roomID, creating the room on first entry.
// onAdmit receives the joiner and the members that were already present.
func (r *Registry) Join(id domain.ParticipantID, roomID domain.RoomID, name string, onAdmit func(joiner Peer, others []Peer)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return ErrUnknownParticipant
	}
	if m.info.Room != "" {
		return ErrAlreadyInRoom
	}
	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[domain.ParticipantID]*member)
		r.rooms[roomID] = room
		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room created")
	}
	others := peersOf(room, "")
	m.info.Name = name
	m.info.Room = roomID
	room[id] = m
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("room", string(roomID)).Int("members", len(room)).Msg("member added")
	if onAdmit != nil {
		onAdmit(m.peer(), others)
	}
	return nil
}

// Leave removes the participant from its room without closing its connection.
func (r *Registry) Leave(id domain.ParticipantID, onLeave func(left Peer, remaining []Peer)) (domain.RoomID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return "", ErrUnknownParticipant
	}
	if m.info.Room == "" {
		return "", ErrNotInRoom
	}
	roomID := m.info.Room
	left := m.peer()
	remaining := r.removeLocked(m)
	if onLeave != nil {
		onLeave(left, remaining)
	}
	return roomID, nil
}

// EndRoom dissolves roomID. onEnd sees every member before the room is deleted.
func (r *Registry) EndRoom(roomID domain.RoomID, onEnd func(members []Peer)) ([]domain.ParticipantID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	all := peersOf(room, "")
	if onEnd != nil {
		onEnd(all)
	}
	for _, m := range room {
		m.info.Room = ""
	}
	delete(r.rooms, roomID)
	log.Info().Str("module", "app.registry").Str("room", string(roomID)).Int("members", len(all)).Msg("room ended")
	return lo.Map(all, func(p Peer, _ int) domain.ParticipantID { return p.ID }), nil
}

// UpdateStatus stores the new status; onUpdate sees the participant and its room mates.
func (r *Registry) UpdateStatus(id domain.ParticipantID, status domain.Status, onUpdate func(self Peer, others []Peer)) error {
	return r.mutate(id, func(m *member) { m.info.Status = status }, onUpdate)
}

// Rename stores a new display name; onUpdate sees the participant and its room mates.
func (r *Registry) Rename(id domain.ParticipantID, name string, onUpdate func(self Peer, others []Peer)) error {
	return r.mutate(id, func(m *member) { m.info.Name = name }, onUpdate)
}

func (r *Registry) SetLanguages(id domain.ParticipantID, langs domain.Languages) error {
	return r.mutate(id, func(m *member) { m.info.Languages = langs }, nil)
}

func (r *Registry) mutate(id domain.ParticipantID, apply func(m *member), onUpdate func(self Peer, others []Peer)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return ErrUnknownParticipant
	}
	apply(m)
	if onUpdate != nil {
		var others []Peer
		if room, ok := r.rooms[m.info.Room]; ok {
			others = peersOf(room, id)
		}
		onUpdate(m.peer(), others)
	}
	return nil
}

// View runs fn with a consistent read-only view of the participant's room.
func (r *Registry) View(id domain.ParticipantID, fn func(self Peer, others []Peer)) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	if !ok {
		return ErrUnknownParticipant
	}
	room, ok := r.rooms[m.info.Room]
	if !ok {
		return ErrNotInRoom
	}
	fn(m.peer(), peersOf(room, id))
	return nil
}

// Get returns the participant snapshot.
func (r *Registry) Get(id domain.ParticipantID) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	if !ok {
		return Peer{}, false
	}
	return m.peer(), true
}

func (r *Registry) RoomOf(id domain.ParticipantID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	if !ok || m.info.Room == "" {
		return "", false
	}
	return m.info.Room, true
}

// IsMember reports whether id is currently in roomID.
func (r *Registry) IsMember(roomID domain.RoomID, id domain.ParticipantID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][id]
	return ok
}

// Members lists roomID's members, leaving out exclude when it is set.
func (r *Registry) Members(roomID domain.RoomID, exclude domain.ParticipantID) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return peersOf(r.rooms[roomID], exclude)
}

// IsEmpty is true for rooms that do not exist, which is every room without members.
func (r *Registry) IsEmpty(roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID]) == 0
}

func (r *Registry) List() []domain.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := lo.MapToSlice(r.rooms, func(id domain.RoomID, room map[domain.ParticipantID]*member) domain.RoomInfo {
		return domain.RoomInfo{ID: id, MemberCount: len(room)}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// removeLocked detaches m from its room, deleting the room when it empties.
func (r *Registry) removeLocked(m *member) []Peer {
	roomID := m.info.Room
	room := r.rooms[roomID]
	delete(room, m.info.ID)
	m.info.Room = ""
	log.Info().Str("module", "app.registry").Str("sid", string(m.info.ID)).Str("room", string(roomID)).Msg("member removed")
	if len(room) == 0 {
		delete(r.rooms, roomID)
		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room empty, deleted")
		return nil
	}
	return peersOf(room, "")
}

func peersOf(room map[domain.ParticipantID]*member, exclude domain.ParticipantID) []Peer {
	out := make([]Peer, 0, len(room))
	for id, m := range room {
		if id == exclude {
			continue
		}
		out = append(out, m.peer())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
