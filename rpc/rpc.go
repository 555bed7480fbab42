package rpc

import (
	"net"
	netrpc "net/rpc"

	"github.com/wfunc/worldserver/logger"
	"github.com/wfunc/worldserver/room"
	"github.com/wfunc/worldserver/session"
)

// Server manages the RPC listener for the admin introspection surface.
type Server struct {
	listener net.Listener
	address  string
	rpc      *netrpc.Server
}

// NewServer creates an RPC server with its own service registry, so two
// instances in one process never collide on registration.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
		rpc:      netrpc.NewServer(),
	}, nil
}

// Register exposes a service on this listener.
func (s *Server) Register(service interface{}) error {
	return s.rpc.Register(service)
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// PresenceService exposes this instance's presence view to operators.
type PresenceService struct {
	instanceID string
	sessions   *session.Manager
	rooms      *room.Manager
}

func NewPresenceService(instanceID string, sessions *session.Manager, rooms *room.Manager) *PresenceService {
	return &PresenceService{
		instanceID: instanceID,
		sessions:   sessions,
		rooms:      rooms,
	}
}

type InstanceStatsArgs struct{}

type InstanceStatsReply struct {
	InstanceID    string
	LocalPlayers  int
	RemotePlayers int
	Worlds        int
}

// InstanceStats reports session and room counts for this instance.
func (ps *PresenceService) InstanceStats(args *InstanceStatsArgs, reply *InstanceStatsReply) error {
	local, remote := ps.sessions.CountByLocality()
	reply.InstanceID = ps.instanceID
	reply.LocalPlayers = local
	reply.RemotePlayers = remote
	reply.Worlds = ps.rooms.Count()
	return nil
}

type WorldRosterArgs struct {
	WorldID string
}

type WorldRosterReply struct {
	WorldID string
	Players []string
}

// WorldRoster lists the player ids present in one world, local and remote.
func (ps *PresenceService) WorldRoster(args *WorldRosterArgs, reply *WorldRosterReply) error {
	reply.WorldID = args.WorldID

	rm, exists := ps.rooms.GetRoom(args.WorldID)
	if !exists {
		return nil
	}
	for _, member := range rm.Members() {
		reply.Players = append(reply.Players, member.PlayerID)
	}
	return nil
}
