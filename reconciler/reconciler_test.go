package reconciler

import (
	"context"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/worldserver/broadcast"
	"github.com/wfunc/worldserver/bus"
	"github.com/wfunc/worldserver/logger"
	"github.com/wfunc/worldserver/network"
	"github.com/wfunc/worldserver/persistence"
	"github.com/wfunc/worldserver/room"
	"github.com/wfunc/worldserver/router"
	"github.com/wfunc/worldserver/services"
	"github.com/wfunc/worldserver/session"
	"github.com/wfunc/worldserver/timer"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	mutex sync.Mutex
	open  bool
}

func NewMockConnection() *MockConnection {
	return &MockConnection{open: true}
}

func (m *MockConnection) Send(env *network.Envelope) error         { return nil }
func (m *MockConnection) ReadEnvelope() (*network.Envelope, error) { return nil, nil }
func (m *MockConnection) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.open = false
	return nil
}
func (m *MockConnection) Open() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.open
}
func (m *MockConnection) RemoteAddr() net.Addr { return &net.TCPAddr{} }

type instance struct {
	id         string
	sessions   *session.Manager
	rooms      *room.Manager
	router     *router.Router
	reconciler *Reconciler
	timers     *timer.Manager
}

func newInstance(id string, hub *bus.Hub, interval time.Duration) *instance {
	store := persistence.NewSeededMemory()
	sessions := session.NewManager()
	rooms := room.NewRoomManager(room.DefaultInterestRadius)
	players := services.NewPlayerService(store)
	chat := broadcast.NewDirectBroadcaster(sessions)
	b := hub.Bus(id)
	rt := router.New(id, sessions, rooms, players, chat, b)
	timers := timer.NewManager()

	return &instance{
		id:         id,
		sessions:   sessions,
		rooms:      rooms,
		router:     rt,
		reconciler: New(id, sessions, rooms, rt, b, timers, interval),
		timers:     timers,
	}
}

func (i *instance) enter(t *testing.T, playerID string, conn network.Connection) {
	t.Helper()
	env, err := network.NewEnvelope(network.EventEnterWorld, network.EnterWorldPayload{PlayerID: playerID})
	if err != nil {
		t.Fatalf("Failed to build enter envelope: %v", err)
	}
	i.router.HandleSocket(context.Background(), env, conn)
}

func TestReconciler_SweepRemovesDeadSessions(t *testing.T) {
	inst := newInstance("instance-a", bus.NewHub(), time.Hour)
	defer inst.timers.Stop()

	alive := NewMockConnection()
	dead := NewMockConnection()
	inst.enter(t, "player_0", alive)
	inst.enter(t, "player_1", dead)
	dead.Close()

	inst.reconciler.Sweep(context.Background())

	if _, exists := inst.sessions.Get("player_1"); exists {
		t.Error("Session with a closed socket should be swept")
	}
	if _, exists := inst.sessions.Get("player_0"); !exists {
		t.Error("Session with an open socket must survive the sweep")
	}
}

func TestReconciler_SweepIgnoresRemoteSessions(t *testing.T) {
	inst := newInstance("instance-a", bus.NewHub(), time.Hour)
	defer inst.timers.Stop()

	env, _ := network.NewEnvelope(network.EventEnterWorld, network.EnterWorldPayload{PlayerID: "player_0"})
	env.Origin = "peer"
	inst.router.HandleBus(context.Background(), env)

	inst.reconciler.Sweep(context.Background())

	if _, exists := inst.sessions.Get("player_0"); !exists {
		t.Error("Remote sessions are owned elsewhere and must not be swept")
	}
}

func TestReconciler_SnapshotRoundTrip(t *testing.T) {
	hub := bus.NewHub()
	a := newInstance("instance-a", hub, time.Hour)
	defer a.timers.Stop()

	a.enter(t, "player_0", NewMockConnection()) // world_0
	a.enter(t, "player_2", NewMockConnection()) // world_1

	// A remote session on A must not leak into A's snapshot.
	env, _ := network.NewEnvelope(network.EventEnterWorld, network.EnterWorldPayload{PlayerID: "player_5"})
	env.Origin = "peer"
	a.router.HandleBus(context.Background(), env)

	a.reconciler.Export(context.Background())

	b := newInstance("instance-b", hub, time.Hour)
	defer b.timers.Stop()
	b.reconciler.Restore(context.Background())

	for _, id := range []string{"player_0", "player_2"} {
		sess, exists := b.sessions.Get(id)
		if !exists {
			t.Fatalf("Restore should recreate %s", id)
		}
		if sess.Locality != session.Remote {
			t.Errorf("Restored session %s should be remote", id)
		}
	}
	if _, exists := b.sessions.Get("player_5"); exists {
		t.Error("Remote sessions must not travel through the snapshot")
	}

	for _, worldID := range []string{"world_0", "world_1"} {
		rm, exists := b.rooms.GetRoom(worldID)
		if !exists || rm.Count() != 1 {
			t.Errorf("Restore should rebuild membership for %s", worldID)
		}
	}
}

func TestReconciler_RestoreWithoutSnapshotIsNoop(t *testing.T) {
	inst := newInstance("instance-a", bus.NewHub(), time.Hour)
	defer inst.timers.Stop()

	inst.reconciler.Restore(context.Background())

	if inst.sessions.Count() != 0 {
		t.Error("Restore with no snapshot should admit nothing")
	}
}

func TestReconciler_ScheduledSweepWithinOneInterval(t *testing.T) {
	hub := bus.NewHub()
	inst := newInstance("instance-a", hub, 150*time.Millisecond)
	defer inst.timers.Stop()

	conn := NewMockConnection()
	inst.enter(t, "player_0", conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inst.reconciler.Start(ctx)
	defer inst.reconciler.Stop()

	// Socket dies without a close event; only the sweep can catch it.
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, exists := inst.sessions.Get("player_0"); !exists {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("Dead session was not swept within the reconcile interval")
}
