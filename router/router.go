// router/router.go
package router

import (
	"context"
	"encoding/json"

	"github.com/wfunc/worldserver/broadcast"
	"github.com/wfunc/worldserver/bus"
	"github.com/wfunc/worldserver/logger"
	"github.com/wfunc/worldserver/models"
	"github.com/wfunc/worldserver/monitor"
	"github.com/wfunc/worldserver/network"
	"github.com/wfunc/worldserver/room"
	"github.com/wfunc/worldserver/services"
	"github.com/wfunc/worldserver/session"
)

// Origin says where an envelope came from. Socket-origin events are applied
// locally and re-published to the bus; bus-origin events are applied locally
// only.
type Origin int

const (
	OriginSocket Origin = iota
	OriginBus
)

// Router validates inbound envelopes and drives the session registry and
// world rooms. One dispatch table serves both origins, so adding an event
// type means adding exactly one case here.
type Router struct {
	instanceID string
	sessions   *session.Manager
	rooms      *room.Manager
	players    *services.PlayerService
	chat       broadcast.Broadcaster
	bus        bus.Bus
	monitor    *monitor.Monitor
}

func New(instanceID string, sessions *session.Manager, rooms *room.Manager,
	players *services.PlayerService, chat broadcast.Broadcaster, b bus.Bus) *Router {
	return &Router{
		instanceID: instanceID,
		sessions:   sessions,
		rooms:      rooms,
		players:    players,
		chat:       chat,
		bus:        b,
	}
}

// SetMonitor attaches metrics. Optional; the router is fully functional
// without it.
func (r *Router) SetMonitor(m *monitor.Monitor) {
	r.monitor = m
}

// HandleSocket dispatches an envelope read from a live client connection.
func (r *Router) HandleSocket(ctx context.Context, env *network.Envelope, conn network.Connection) {
	r.dispatch(ctx, env, conn, OriginSocket)
}

// HandleBus dispatches an envelope delivered by the bus subscription.
func (r *Router) HandleBus(ctx context.Context, env *network.Envelope) {
	r.dispatch(ctx, env, nil, OriginBus)
}

func (r *Router) dispatch(ctx context.Context, env *network.Envelope, conn network.Connection, origin Origin) {
	if origin == OriginBus && env.Origin == r.instanceID {
		// Self-echo: never re-apply an event this instance published.
		return
	}

	if r.monitor != nil {
		r.monitor.IncEventsReceived()
	}

	switch env.Type {
	case network.EventEnterWorld:
		var p network.EnterWorldPayload
		if !r.decode(env, &p) {
			return
		}
		r.handleEnterWorld(p.PlayerID, conn)
		r.republish(ctx, env, origin)

	case network.EventLeaveWorld:
		var p network.LeaveWorldPayload
		if !r.decode(env, &p) {
			return
		}
		r.handleLeaveWorld(p.PlayerID)
		r.republish(ctx, env, origin)

	case network.EventMove:
		var p network.MovePayload
		if !r.decode(env, &p) {
			return
		}
		r.handleMove(p)
		r.republish(ctx, env, origin)

	case network.EventTalk:
		var p network.TalkPayload
		if !r.decode(env, &p) {
			return
		}
		r.handleTalk(p)
		r.republish(ctx, env, origin)

	case network.EventBootstrapRequest:
		var p network.BootstrapRequestPayload
		if !r.decode(env, &p) {
			return
		}
		r.handleBootstrapRequest(ctx, p)

	case network.EventBootstrapResponse:
		var p network.BootstrapResponsePayload
		if !r.decode(env, &p) {
			return
		}
		r.handleBootstrapResponse(p)

	default:
		logger.Log.Warnf("Unknown event type %q, dropping", env.Type)
	}
}

func (r *Router) decode(env *network.Envelope, out interface{}) bool {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		logger.Log.Warnf("Malformed %s payload: %v", env.Type, err)
		return false
	}
	return true
}

// republish forwards a locally-originated event to peer instances, stamped
// with this instance's id. Publish failures are logged and dropped.
func (r *Router) republish(ctx context.Context, env *network.Envelope, origin Origin) {
	if origin != OriginSocket {
		return
	}
	out := &network.Envelope{Type: env.Type, Payload: env.Payload, Origin: r.instanceID}
	if err := r.bus.Publish(ctx, out); err != nil {
		logger.Log.Errorf("Failed to publish %s to bus: %v", env.Type, err)
		if r.monitor != nil {
			r.monitor.IncBusPublishFailures()
		}
	}
}

// handleEnterWorld admits a player and joins their world room. conn is nil
// for bus and bootstrap origins; only a live socket gets the roster reply.
func (r *Router) handleEnterWorld(playerID string, conn network.Connection) {
	if _, exists := r.sessions.Get(playerID); exists {
		return
	}

	rec, err := r.players.GetPlayer(playerID)
	if err != nil {
		logger.Log.Errorf("Failed to load player %s: %v", playerID, err)
		return
	}
	if rec == nil {
		logger.Log.Debugf("enter_world for unknown player %s, dropping", playerID)
		return
	}

	world, err := r.players.GetWorld(rec.WorldID)
	if err != nil {
		logger.Log.Errorf("Failed to load world %s: %v", rec.WorldID, err)
		return
	}
	if world == nil {
		logger.Log.Debugf("Player %s references unknown world %s, dropping", playerID, rec.WorldID)
		return
	}

	sess, created := r.sessions.Admit(rec, conn)
	if !created {
		// Lost the race against a duplicate event; the winner did the work.
		return
	}

	rm := r.rooms.GetOrCreate(world.ID, world.Name)
	rm.AddPlayer(sess)

	logger.Log.Infof("Player %s entered world %s (%s)", playerID, world.ID, localityName(sess))

	if conn == nil {
		return
	}

	// Roster reply: one enter_world per existing member, straight to the new
	// player's socket.
	for _, member := range rm.Members() {
		if member.PlayerID == playerID {
			continue
		}
		notice, err := network.NewEnvelope(network.EventEnterWorld, network.EnterWorldNotice{
			Player: member.Public(),
		})
		if err != nil {
			continue
		}
		if err := conn.Send(notice); err != nil {
			return
		}
	}
}

func (r *Router) handleLeaveWorld(playerID string) {
	sess, exists := r.sessions.Get(playerID)
	if !exists {
		return
	}

	if rm, ok := r.rooms.GetRoom(sess.WorldID); ok {
		rm.RemovePlayer(sess)
	}
	r.sessions.Remove(playerID)

	if sess.Locality == session.Local {
		x, y := sess.Position()
		if err := r.players.SaveCheckpoint(playerID, x, y); err != nil {
			logger.Log.Errorf("Failed to save checkpoint for %s: %v", playerID, err)
		}
	}

	logger.Log.Infof("Player %s left world %s", playerID, sess.WorldID)
}

func (r *Router) handleMove(p network.MovePayload) {
	sess, exists := r.sessions.Get(p.PlayerID)
	if !exists {
		return
	}
	rm, ok := r.rooms.GetRoom(sess.WorldID)
	if !ok {
		return
	}
	rm.Move(sess, p.Data.X, p.Data.Y, p.Data.Animation, p.Data.Timestamp)
}

// handleTalk relays chat to the client-supplied recipient list. The sender's
// client computed "nearby" from its own view; only recipients with a local
// open socket are written, everyone else's instance serves them.
func (r *Router) handleTalk(p network.TalkPayload) {
	notice, err := network.NewEnvelope(network.EventTalk, network.TalkNotice{
		From:    p.From,
		Message: p.Message,
	})
	if err != nil {
		logger.Log.Errorf("Failed to encode talk from %s: %v", p.From, err)
		return
	}
	r.chat.SendToPlayers(p.Players, notice)
}

// handleBootstrapRequest answers a newly-started peer with the players this
// instance owns, over the peer's private topic.
func (r *Router) handleBootstrapRequest(ctx context.Context, p network.BootstrapRequestPayload) {
	if p.InstanceID == r.instanceID {
		return
	}

	locals := r.sessions.Locals()
	ids := make([]string, 0, len(locals))
	for _, sess := range locals {
		ids = append(ids, sess.PlayerID)
	}

	env, err := network.NewEnvelope(network.EventBootstrapResponse, network.BootstrapResponsePayload{
		InstanceID: r.instanceID,
		Players:    ids,
	})
	if err != nil {
		logger.Log.Errorf("Failed to encode bootstrap response: %v", err)
		return
	}
	env.Origin = r.instanceID

	if err := r.bus.SendDirect(ctx, p.InstanceID, env); err != nil {
		logger.Log.Errorf("Failed to answer bootstrap request from %s: %v", p.InstanceID, err)
	}
}

// handleBootstrapResponse replays each reported player as a remote entry.
// Already-known players are no-ops by admission idempotence.
func (r *Router) handleBootstrapResponse(p network.BootstrapResponsePayload) {
	for _, playerID := range p.Players {
		r.handleEnterWorld(playerID, nil)
	}
}

// Disconnect resolves a closed connection to its player and runs the same
// leave path a client-sent leave_world would.
func (r *Router) Disconnect(ctx context.Context, conn network.Connection) {
	sess, exists := r.sessions.ByConn(conn)
	if !exists {
		return
	}
	r.LeaveLocally(ctx, sess.PlayerID)
}

// LeaveLocally applies a leave_world for a locally-owned session and
// publishes it, exactly as if the client had sent it. Also the liveness
// sweep's removal path.
func (r *Router) LeaveLocally(ctx context.Context, playerID string) {
	env, err := network.NewEnvelope(network.EventLeaveWorld, network.LeaveWorldPayload{
		PlayerID: playerID,
	})
	if err != nil {
		logger.Log.Errorf("Failed to encode leave_world for %s: %v", playerID, err)
		return
	}
	r.handleLeaveWorld(playerID)
	r.republish(ctx, env, OriginSocket)
}

// AdmitRemote seeds a remote session straight from a record, bypassing the
// store. Used by snapshot restore, where the snapshot carries full records.
func (r *Router) AdmitRemote(rec *models.PlayerRecord, worldName string) {
	sess, created := r.sessions.Admit(rec, nil)
	if !created {
		return
	}
	rm := r.rooms.GetOrCreate(rec.WorldID, worldName)
	rm.AddPlayer(sess)
}

// InstanceID returns the id this router stamps on published events.
func (r *Router) InstanceID() string {
	return r.instanceID
}

func localityName(s *session.Session) string {
	if s.Locality == session.Local {
		return "local"
	}
	return "remote"
}
