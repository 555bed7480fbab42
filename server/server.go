package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/worldserver/broadcast"
	"github.com/wfunc/worldserver/bus"
	"github.com/wfunc/worldserver/config"
	"github.com/wfunc/worldserver/logger"
	"github.com/wfunc/worldserver/monitor"
	"github.com/wfunc/worldserver/network"
	"github.com/wfunc/worldserver/persistence"
	"github.com/wfunc/worldserver/reconciler"
	"github.com/wfunc/worldserver/room"
	"github.com/wfunc/worldserver/router"
	worldserver_rpc "github.com/wfunc/worldserver/rpc"
	"github.com/wfunc/worldserver/services"
	"github.com/wfunc/worldserver/session"
	"github.com/wfunc/worldserver/timer"
)

// GameServer owns one instance's presence state and its front ends: the
// websocket endpoint for clients, the bus subscription for peers, the
// reconciler, and the admin/metrics listeners.
type GameServer struct {
	instanceID     string
	cfg            *config.Config
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	roomManager    *room.Manager
	playerService  *services.PlayerService
	router         *router.Router
	reconciler     *reconciler.Reconciler
	timers         *timer.Manager
	bus            bus.Bus
	monitor        *monitor.Monitor
	rpcServer      *worldserver_rpc.Server
	mux            *http.ServeMux
	cancel         context.CancelFunc
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, instanceID string, db persistence.Database, b bus.Bus) *GameServer {
	s := &GameServer{
		instanceID:     instanceID,
		cfg:            cfg,
		sessionManager: session.NewManager(),
		roomManager:    room.NewRoomManager(cfg.World.InterestRadius),
		playerService:  services.NewPlayerService(db),
		timers:         timer.NewManager(),
		bus:            b,
		monitor:        monitor.NewMonitor("worldserver"),
		mux:            http.NewServeMux(),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	chat := broadcast.NewDirectBroadcaster(s.sessionManager)
	s.router = router.New(instanceID, s.sessionManager, s.roomManager, s.playerService, chat, b)
	s.router.SetMonitor(s.monitor)

	s.reconciler = reconciler.New(instanceID, s.sessionManager, s.roomManager,
		s.router, b, s.timers, cfg.World.ReconcileInterval)
	s.reconciler.SetMonitor(s.monitor)

	if cfg.Server.RPCAddress != "" {
		rpcServer, err := worldserver_rpc.NewServer(cfg.Server.RPCAddress)
		if err != nil {
			logger.Log.Fatalf("Failed to create RPC server: %v", err)
		}
		if err := rpcServer.Register(worldserver_rpc.NewPresenceService(instanceID, s.sessionManager, s.roomManager)); err != nil {
			logger.Log.Fatalf("Failed to register RPC service: %v", err)
		}
		s.rpcServer = rpcServer
	}

	s.mux.HandleFunc("/ws", s.handleWebSocket)

	return s
}

// Handler exposes the websocket mux. Integration tests mount it on httptest
// servers instead of binding the configured address.
func (s *GameServer) Handler() http.Handler {
	return s.mux
}

// Router exposes the event router for the bus subscription and tests.
func (s *GameServer) Router() *router.Router {
	return s.router
}

// Sessions exposes the session registry for admin surfaces and tests.
func (s *GameServer) Sessions() *session.Manager {
	return s.sessionManager
}

// StartCore wires everything except the client listener: bus subscription,
// recovery + reconciler schedule, RPC and metrics endpoints.
func (s *GameServer) StartCore(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	if err := s.bus.Subscribe(ctx, func(env *network.Envelope) {
		s.router.HandleBus(ctx, env)
	}); err != nil {
		return err
	}

	s.reconciler.Start(ctx)

	if s.rpcServer != nil {
		go s.rpcServer.Start()
	}
	if s.cfg.Server.MetricsAddress != "" {
		s.monitor.StartServer(s.cfg.Server.MetricsAddress)
	}
	return nil
}

func (s *GameServer) Start() error {
	if err := s.StartCore(context.Background()); err != nil {
		return err
	}

	logger.Log.Infof("Instance %s listening on %s", s.instanceID, s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, s.mux)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	if s.cancel != nil {
		s.cancel()
	}
	s.reconciler.Stop()
	s.timers.Stop()
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(r.Context(), conn)
}

func (s *GameServer) handleConnection(ctx context.Context, conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	logger.Log.Infof("New connection from %s", wsConn.RemoteAddr())

	defer func() {
		logger.Log.Infof("Connection closed from %s", wsConn.RemoteAddr())
		wsConn.Close()
		// Same path as a client-sent leave_world; the reconciler sweep is
		// only the safety net for close events this misses.
		s.router.Disconnect(context.Background(), wsConn)
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			env, err := wsConn.ReadEnvelope()
			if errors.Is(err, network.ErrMalformed) {
				logger.Log.Warnf("Malformed frame from %s, dropping", wsConn.RemoteAddr())
				continue
			}
			if err != nil {
				return
			}

			start := time.Now()
			s.router.HandleSocket(ctx, env, wsConn)
			s.monitor.ObserveDispatchLatency(time.Since(start))
		}
	}
}
