// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/worldserver/models"
	"github.com/wfunc/worldserver/network"
)

// Locality says whether this instance owns the player's live socket or only
// mirrors presence held elsewhere.
type Locality int

const (
	Local Locality = iota
	Remote
)

// Session is this instance's record of one online player.
type Session struct {
	PlayerID    string
	UserID      string
	WorldID     string
	Name        string
	Wealth      int64
	Spritesheet string
	Checkpoint  models.Point

	Locality  Locality
	Conn      network.Connection // nil for Remote sessions
	CreatedAt time.Time

	x        float64
	y        float64
	lastMove int64
	mutex    sync.RWMutex
}

// NewSession builds a session from a player record. A nil conn marks the
// session Remote: it receives nothing and exists so routing and proximity
// math stay locally available.
func NewSession(rec *models.PlayerRecord, conn network.Connection) *Session {
	locality := Local
	if conn == nil {
		locality = Remote
	}
	return &Session{
		PlayerID:    rec.ID,
		UserID:      rec.UserID,
		WorldID:     rec.WorldID,
		Name:        rec.Name,
		Wealth:      rec.Wealth,
		Spritesheet: rec.Spritesheet,
		Checkpoint:  rec.Checkpoint,
		Locality:    locality,
		Conn:        conn,
		CreatedAt:   time.Now(),
		x:           rec.Checkpoint.X,
		y:           rec.Checkpoint.Y,
	}
}

// Send delivers an envelope to the player's socket. Remote sessions drop the
// send silently.
func (s *Session) Send(env *network.Envelope) error {
	if s.Conn == nil {
		return nil
	}
	return s.Conn.Send(env)
}

// Alive reports whether the session still has an open socket. Remote sessions
// are never considered alive; they are owned elsewhere.
func (s *Session) Alive() bool {
	return s.Conn != nil && s.Conn.Open()
}

// ApplyMove updates the last known position if ts is not older than the last
// applied movement timestamp. Returns false for stale, out-of-order samples.
func (s *Session) ApplyMove(x, y float64, ts int64) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if ts < s.lastMove {
		return false
	}
	s.x = x
	s.y = y
	s.lastMove = ts
	return true
}

// Position returns the last known coordinates.
func (s *Session) Position() (float64, float64) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.x, s.y
}

// LastMove returns the last applied movement timestamp.
func (s *Session) LastMove() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastMove
}

// Public returns the player fields other clients may see.
func (s *Session) Public() models.PublicPlayer {
	return models.PublicPlayer{
		ID:          s.PlayerID,
		Name:        s.Name,
		Wealth:      s.Wealth,
		Spritesheet: s.Spritesheet,
		Checkpoint:  s.Checkpoint,
	}
}

// Record rebuilds a player record from the session, with the checkpoint moved
// to the last known position. Used for snapshot export and checkpoint
// write-back.
func (s *Session) Record() models.PlayerRecord {
	x, y := s.Position()
	return models.PlayerRecord{
		ID:          s.PlayerID,
		UserID:      s.UserID,
		WorldID:     s.WorldID,
		Name:        s.Name,
		Wealth:      s.Wealth,
		Spritesheet: s.Spritesheet,
		Checkpoint:  models.Point{X: x, Y: y},
	}
}

// Manager is the per-instance session registry.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// Admit registers a session for the player, or returns the existing one
// untouched. Entry is idempotent so a duplicated bus event or a racing
// bootstrap never double-creates state.
func (m *Manager) Admit(rec *models.PlayerRecord, conn network.Connection) (*Session, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if existing, ok := m.sessions[rec.ID]; ok {
		return existing, false
	}

	sess := NewSession(rec, conn)
	m.sessions[rec.ID] = sess
	return sess, true
}

func (m *Manager) Get(playerID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	sess, exists := m.sessions[playerID]
	return sess, exists
}

// ByConn resolves a connection back to its session. Used to map a closed
// socket to the player that owned it.
func (m *Manager) ByConn(conn network.Connection) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, sess := range m.sessions {
		if sess.Conn == conn {
			return sess, true
		}
	}
	return nil, false
}

func (m *Manager) Remove(playerID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, playerID)
}

// Locals returns every session this instance owns a live socket for.
func (m *Manager) Locals() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, sess := range m.sessions {
		if sess.Locality == Local {
			result = append(result, sess)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CountByLocality returns (local, remote) session counts.
func (m *Manager) CountByLocality() (int, int) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	local, remote := 0, 0
	for _, sess := range m.sessions {
		if sess.Locality == Local {
			local++
		} else {
			remote++
		}
	}
	return local, remote
}
