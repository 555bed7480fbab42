// reconciler/reconciler.go
package reconciler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wfunc/worldserver/bus"
	"github.com/wfunc/worldserver/logger"
	"github.com/wfunc/worldserver/models"
	"github.com/wfunc/worldserver/monitor"
	"github.com/wfunc/worldserver/network"
	"github.com/wfunc/worldserver/room"
	"github.com/wfunc/worldserver/router"
	"github.com/wfunc/worldserver/session"
	"github.com/wfunc/worldserver/timer"
)

// Reconciler is the periodic safety net: it sweeps sessions whose socket
// died without a close event, exports the presence snapshot, and runs the
// startup recovery exchange.
//
// Two recovery paths run on purpose. The snapshot gives fast bulk recovery
// after a full outage; the bootstrap exchange corrects for snapshot staleness
// between writes.
type Reconciler struct {
	instanceID string
	sessions   *session.Manager
	rooms      *room.Manager
	router     *router.Router
	bus        bus.Bus
	timers     *timer.Manager
	interval   time.Duration
	monitor    *monitor.Monitor
	taskID     int64
}

func New(instanceID string, sessions *session.Manager, rooms *room.Manager,
	rt *router.Router, b bus.Bus, timers *timer.Manager, interval time.Duration) *Reconciler {
	return &Reconciler{
		instanceID: instanceID,
		sessions:   sessions,
		rooms:      rooms,
		router:     rt,
		bus:        b,
		timers:     timers,
		interval:   interval,
	}
}

func (r *Reconciler) SetMonitor(m *monitor.Monitor) {
	r.monitor = m
}

// Start runs both recovery paths, then schedules the periodic sweep.
func (r *Reconciler) Start(ctx context.Context) {
	r.Restore(ctx)
	r.RequestBootstrap(ctx)
	r.taskID = r.timers.AddTimer(r.interval, r.interval, func() {
		r.RunOnce(ctx)
	})
}

func (r *Reconciler) Stop() {
	if r.taskID != 0 {
		r.timers.RemoveTimer(r.taskID)
	}
}

// RunOnce is one reconciliation pass: liveness sweep, then snapshot export.
func (r *Reconciler) RunOnce(ctx context.Context) {
	r.Sweep(ctx)
	r.Export(ctx)

	if r.monitor != nil {
		local, remote := r.sessions.CountByLocality()
		r.monitor.SetLocalPlayers(local)
		r.monitor.SetRemotePlayers(remote)
		r.monitor.SetActiveWorlds(r.rooms.Count())
	}
}

// Sweep removes locally-owned sessions whose socket is no longer open,
// publishing the synthesized leave_world exactly as a client disconnect
// would. The immediate close handler remains the primary path; this catches
// missed close events.
func (r *Reconciler) Sweep(ctx context.Context) {
	for _, sess := range r.sessions.Locals() {
		if sess.Alive() {
			continue
		}
		logger.Log.Infof("Sweeping dead session for player %s", sess.PlayerID)
		r.router.LeaveLocally(ctx, sess.PlayerID)
	}
}

// Export overwrites the shared snapshot slot with this instance's local
// presence, grouped by world. Last writer wins; the snapshot is a recovery
// aid, not a ledger.
func (r *Reconciler) Export(ctx context.Context) {
	snap := models.PresenceSnapshot{InstanceID: r.instanceID}

	for _, rm := range r.rooms.Rooms() {
		wp := models.WorldPresence{WorldID: rm.WorldID, Name: rm.Name}
		for _, member := range rm.Members() {
			if member.Locality != session.Local {
				continue
			}
			wp.Players = append(wp.Players, member.Record())
		}
		if len(wp.Players) > 0 {
			snap.Worlds = append(snap.Worlds, wp)
		}
	}

	blob, err := json.Marshal(&snap)
	if err != nil {
		logger.Log.Errorf("Failed to encode presence snapshot: %v", err)
		return
	}
	if err := r.bus.SetSnapshot(ctx, blob); err != nil {
		logger.Log.Errorf("Failed to write presence snapshot: %v", err)
	}
}

// Restore seeds remote sessions from the shared snapshot, if present. The
// owning instances still hold the real connections; this only rebuilds a
// locally-useful view of the rooms.
func (r *Reconciler) Restore(ctx context.Context) {
	blob, ok, err := r.bus.GetSnapshot(ctx)
	if err != nil {
		logger.Log.Errorf("Failed to read presence snapshot: %v", err)
		return
	}
	if !ok {
		return
	}

	var snap models.PresenceSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		logger.Log.Errorf("Corrupt presence snapshot, ignoring: %v", err)
		return
	}

	restored := 0
	for _, wp := range snap.Worlds {
		for i := range wp.Players {
			rec := wp.Players[i]
			r.router.AdmitRemote(&rec, wp.Name)
			restored++
		}
	}
	logger.Log.Infof("Restored %d players across %d worlds from snapshot", restored, len(snap.Worlds))
}

// RequestBootstrap asks every peer for its locally-owned players. Replies
// arrive on this instance's private topic as bootstrap_response envelopes.
func (r *Reconciler) RequestBootstrap(ctx context.Context) {
	env, err := network.NewEnvelope(network.EventBootstrapRequest, network.BootstrapRequestPayload{
		InstanceID: r.instanceID,
	})
	if err != nil {
		logger.Log.Errorf("Failed to encode bootstrap request: %v", err)
		return
	}
	env.Origin = r.instanceID

	if err := r.bus.Publish(ctx, env); err != nil {
		logger.Log.Errorf("Failed to publish bootstrap request: %v", err)
	}
}
