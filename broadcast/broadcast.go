// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/worldserver/network"
	"github.com/wfunc/worldserver/session"
)

// 定向投递接口
type Broadcaster interface {
	SendToPlayers(playerIDs []string, env *network.Envelope) int
}

// DirectBroadcaster delivers envelopes straight to named players' sockets.
// Used by chat fan-out: recipients without a local open socket are skipped
// silently, their own instance delivers to them.
type DirectBroadcaster struct {
	sessionManager *session.Manager
}

func NewDirectBroadcaster(sessionManager *session.Manager) *DirectBroadcaster {
	return &DirectBroadcaster{sessionManager: sessionManager}
}

// SendToPlayers returns the number of sockets actually written.
func (b *DirectBroadcaster) SendToPlayers(playerIDs []string, env *network.Envelope) int {
	delivered := 0
	for _, playerID := range playerIDs {
		sess, exists := b.sessionManager.Get(playerID)
		if !exists || sess.Locality != session.Local || !sess.Alive() {
			continue
		}
		if err := sess.Send(env); err != nil {
			continue
		}
		delivered++
	}
	return delivered
}
