package session

import (
	"net"
	"sync"
	"testing"

	"github.com/wfunc/worldserver/models"
	"github.com/wfunc/worldserver/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	mutex  sync.Mutex
	sent   []*network.Envelope
	closed bool
}

func (m *MockConnection) Send(env *network.Envelope) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sent = append(m.sent, env)
	return nil
}

func (m *MockConnection) ReadEnvelope() (*network.Envelope, error) { return nil, nil }
func (m *MockConnection) Open() bool                               { return !m.closed }
func (m *MockConnection) Close() error                             { m.closed = true; return nil }
func (m *MockConnection) RemoteAddr() net.Addr                     { return &net.TCPAddr{} }

func testRecord(id, worldID string) *models.PlayerRecord {
	return &models.PlayerRecord{
		ID:          id,
		UserID:      "user_" + id,
		WorldID:     worldID,
		Name:        "Tester",
		Wealth:      100,
		Spritesheet: "GENERIC",
		Checkpoint:  models.Point{X: 100, Y: 100},
	}
}

func TestNewManager(t *testing.T) {
	manager := NewManager()
	if manager == nil {
		t.Fatal("NewManager should not return nil")
	}
	if manager.sessions == nil {
		t.Fatal("NewManager should initialize the sessions map")
	}
}

func TestManager_AdmitIsIdempotent(t *testing.T) {
	manager := NewManager()
	rec := testRecord("player_0", "world_0")
	conn := &MockConnection{}

	first, created := manager.Admit(rec, conn)
	if !created {
		t.Fatal("First Admit should create the session")
	}

	// A duplicated bus event or racing bootstrap replays the same entry.
	second, created := manager.Admit(rec, nil)
	if created {
		t.Fatal("Second Admit should be a no-op")
	}
	if second != first {
		t.Fatal("Second Admit should return the existing session instance")
	}
	if manager.Count() != 1 {
		t.Fatalf("Expected exactly one session, got %d", manager.Count())
	}
	if second.Locality != Local {
		t.Error("Duplicate Admit must not downgrade the existing session to remote")
	}
}

func TestManager_Get_Remove(t *testing.T) {
	manager := NewManager()
	sess, _ := manager.Admit(testRecord("player_0", "world_0"), &MockConnection{})

	retrieved, exists := manager.Get("player_0")
	if !exists {
		t.Fatal("Get should find the admitted session")
	}
	if retrieved != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove("player_0")
	if _, exists := manager.Get("player_0"); exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_ByConn(t *testing.T) {
	manager := NewManager()
	conn1 := &MockConnection{}
	conn2 := &MockConnection{}

	sess1, _ := manager.Admit(testRecord("player_0", "world_0"), conn1)
	manager.Admit(testRecord("player_1", "world_0"), conn2)
	manager.Admit(testRecord("player_2", "world_1"), nil)

	found, exists := manager.ByConn(conn1)
	if !exists {
		t.Fatal("ByConn should resolve a live connection")
	}
	if found != sess1 {
		t.Errorf("ByConn resolved to %s, want %s", found.PlayerID, sess1.PlayerID)
	}

	if _, exists := manager.ByConn(&MockConnection{}); exists {
		t.Error("ByConn should not resolve an unknown connection")
	}
}

func TestManager_LocalsAndCounts(t *testing.T) {
	manager := NewManager()
	manager.Admit(testRecord("player_0", "world_0"), &MockConnection{})
	manager.Admit(testRecord("player_1", "world_0"), &MockConnection{})
	manager.Admit(testRecord("player_2", "world_1"), nil)

	locals := manager.Locals()
	if len(locals) != 2 {
		t.Fatalf("Expected 2 local sessions, got %d", len(locals))
	}

	local, remote := manager.CountByLocality()
	if local != 2 || remote != 1 {
		t.Errorf("Expected counts (2, 1), got (%d, %d)", local, remote)
	}
}

func TestSession_Locality(t *testing.T) {
	local := NewSession(testRecord("player_0", "world_0"), &MockConnection{})
	if local.Locality != Local {
		t.Error("Session with a connection should be Local")
	}

	remote := NewSession(testRecord("player_1", "world_0"), nil)
	if remote.Locality != Remote {
		t.Error("Session without a connection should be Remote")
	}
	if remote.Alive() {
		t.Error("Remote session should never report alive")
	}
	if err := remote.Send(&network.Envelope{Type: network.EventMove}); err != nil {
		t.Errorf("Send on a remote session should drop silently, got %v", err)
	}
}

func TestSession_ApplyMoveMonotonicGuard(t *testing.T) {
	sess := NewSession(testRecord("player_0", "world_0"), &MockConnection{})

	if !sess.ApplyMove(0, 0, 100) {
		t.Fatal("Fresh move should apply")
	}

	// Out-of-order delivery: the older sample arrives second.
	if sess.ApplyMove(5, 5, 50) {
		t.Fatal("Stale move should be rejected")
	}

	x, y := sess.Position()
	if x != 0 || y != 0 {
		t.Errorf("Position should remain (0,0) after stale move, got (%v,%v)", x, y)
	}
	if sess.LastMove() != 100 {
		t.Errorf("LastMove should remain 100, got %d", sess.LastMove())
	}

	// Equal timestamps are not stale.
	if !sess.ApplyMove(7, 7, 100) {
		t.Error("Move with an equal timestamp should apply")
	}
}

func TestSession_RecordCarriesLastPosition(t *testing.T) {
	sess := NewSession(testRecord("player_0", "world_0"), &MockConnection{})
	sess.ApplyMove(42, 24, 1)

	rec := sess.Record()
	if rec.Checkpoint.X != 42 || rec.Checkpoint.Y != 24 {
		t.Errorf("Record checkpoint should follow last position, got %+v", rec.Checkpoint)
	}
	if rec.ID != "player_0" || rec.WorldID != "world_0" {
		t.Errorf("Record identity mismatch: %+v", rec)
	}
}
