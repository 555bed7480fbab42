// room/room.go
package room

import (
	"math"
	"sync"
	"time"

	"github.com/wfunc/worldserver/logger"
	"github.com/wfunc/worldserver/network"
	"github.com/wfunc/worldserver/session"
)

// DefaultInterestRadius is the area-of-interest cutoff: members farther than
// this from a mover's new position are skipped by that move broadcast.
const DefaultInterestRadius = 500.0

// Room 是一个世界的在线玩家集合（本地与远端会话都在内）
type Room struct {
	WorldID string
	Name    string

	interestRadius float64
	players        map[string]*session.Session // playerID -> session
	playerMutex    sync.RWMutex
	CreatedAt      time.Time
}

// NewRoom 创建一个新的世界房间
func NewRoom(worldID, name string, interestRadius float64) *Room {
	if interestRadius <= 0 {
		interestRadius = DefaultInterestRadius
	}
	return &Room{
		WorldID:        worldID,
		Name:           name,
		interestRadius: interestRadius,
		players:        make(map[string]*session.Session),
		CreatedAt:      time.Now(),
	}
}

// AddPlayer inserts a session and notifies every other member. No-op when the
// player is already present or belongs to a different world.
func (r *Room) AddPlayer(s *session.Session) bool {
	if s.WorldID != r.WorldID {
		return false
	}

	r.playerMutex.Lock()
	if _, exists := r.players[s.PlayerID]; exists {
		r.playerMutex.Unlock()
		return false
	}
	r.players[s.PlayerID] = s
	r.playerMutex.Unlock()

	env, err := network.NewEnvelope(network.EventEnterWorld, network.EnterWorldNotice{
		Player: s.Public(),
	})
	if err != nil {
		logger.Log.Errorf("Failed to encode enter_world notice for %s: %v", s.PlayerID, err)
		return true
	}
	r.Emit(env, s.PlayerID)
	return true
}

// RemovePlayer deletes a session and broadcasts leave_world to the remaining
// members. No-op if the player is absent.
func (r *Room) RemovePlayer(s *session.Session) bool {
	r.playerMutex.Lock()
	if _, exists := r.players[s.PlayerID]; !exists {
		r.playerMutex.Unlock()
		return false
	}
	delete(r.players, s.PlayerID)
	r.playerMutex.Unlock()

	env, err := network.NewEnvelope(network.EventLeaveWorld, network.LeaveWorldPayload{
		PlayerID: s.PlayerID,
	})
	if err != nil {
		logger.Log.Errorf("Failed to encode leave_world notice for %s: %v", s.PlayerID, err)
		return true
	}
	r.Broadcast(env)
	return true
}

// Move applies one movement sample and fans it out to nearby members.
// Non-members and stale timestamps are dropped silently; the mover never
// receives its own echo.
func (r *Room) Move(s *session.Session, x, y float64, animation *string, ts int64) bool {
	r.playerMutex.RLock()
	_, exists := r.players[s.PlayerID]
	r.playerMutex.RUnlock()
	if !exists {
		return false
	}

	if !s.ApplyMove(x, y, ts) {
		return false
	}

	env, err := network.NewEnvelope(network.EventMove, network.MovePayload{
		PlayerID: s.PlayerID,
		Data: network.MoveData{
			X:         x,
			Y:         y,
			Animation: animation,
			Timestamp: ts,
		},
	})
	if err != nil {
		logger.Log.Errorf("Failed to encode move for %s: %v", s.PlayerID, err)
		return true
	}

	// Interest set recomputed per move rather than kept as a standing
	// subscription: a little redundant arithmetic, zero stale-subscription
	// state.
	for _, p := range r.Members() {
		if p.PlayerID == s.PlayerID {
			continue
		}
		px, py := p.Position()
		if math.Hypot(px-x, py-y) > r.interestRadius {
			continue
		}
		p.Send(env)
	}
	return true
}

// Emit sends to every member except the named player.
func (r *Room) Emit(env *network.Envelope, exceptPlayerID string) {
	for _, p := range r.Members() {
		if p.PlayerID == exceptPlayerID {
			continue
		}
		p.Send(env)
	}
}

// Broadcast sends to every member.
func (r *Room) Broadcast(env *network.Envelope) {
	for _, p := range r.Members() {
		p.Send(env)
	}
}

// Members returns a snapshot slice of the room's sessions. Sends happen on
// the copy, never under the lock.
func (r *Room) Members() []*session.Session {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	members := make([]*session.Session, 0, len(r.players))
	for _, s := range r.players {
		members = append(members, s)
	}
	return members
}

// Has reports membership by player id.
func (r *Room) Has(playerID string) bool {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	_, exists := r.players[playerID]
	return exists
}

func (r *Room) Count() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.players)
}

// --- 房间管理器 ---

// Manager 管理本实例的全部世界房间
type Manager struct {
	interestRadius float64
	rooms          map[string]*Room
	mutex          sync.RWMutex
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager(interestRadius float64) *Manager {
	return &Manager{
		interestRadius: interestRadius,
		rooms:          make(map[string]*Room),
	}
}

// GetOrCreate returns the room for a world, creating it lazily on first
// entry. Rooms are never destroyed; the set is small and keyed by stable ids.
func (m *Manager) GetOrCreate(worldID, name string) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[worldID]; exists {
		return room
	}
	room := NewRoom(worldID, name, m.interestRadius)
	m.rooms[worldID] = room
	return room
}

// GetRoom 获取一个房间
func (m *Manager) GetRoom(worldID string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	room, exists := m.rooms[worldID]
	return room, exists
}

// Rooms returns a snapshot slice of all rooms.
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}
