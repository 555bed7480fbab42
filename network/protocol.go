// network/protocol.go
package network

import (
	"encoding/json"

	"github.com/wfunc/worldserver/models"
)

// EventType tags every envelope exchanged over client sockets and the bus.
type EventType string

const (
	EventEnterWorld        EventType = "enter_world"
	EventLeaveWorld        EventType = "leave_world"
	EventMove              EventType = "move"
	EventTalk              EventType = "talk"
	EventBootstrapRequest  EventType = "bootstrap_request"
	EventBootstrapResponse EventType = "bootstrap_response"
)

// Envelope is the wire message shared by the client socket protocol and the
// inter-instance bus. Origin carries the publishing instance's id on bus
// messages and is used for self-echo suppression.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Origin  string          `json:"origin_instance_id,omitempty"`
}

// NewEnvelope marshals payload into a typed envelope.
func NewEnvelope(t EventType, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: t, Payload: data}, nil
}

// EnterWorldPayload 进入世界请求
type EnterWorldPayload struct {
	PlayerID string `json:"player_id"`
}

// EnterWorldNotice is the server-originated enter_world sent to room members
// and as the roster reply to a newly-entered player.
type EnterWorldNotice struct {
	Player models.PublicPlayer `json:"player"`
}

// LeaveWorldPayload 离开世界
type LeaveWorldPayload struct {
	PlayerID string `json:"player_id"`
}

// MoveData carries one movement sample. Timestamp is a client-side monotonic
// integer (ms since epoch); stale samples are dropped by comparison.
type MoveData struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Animation *string `json:"animation"`
	Timestamp int64   `json:"timestamp"`
}

// MovePayload 移动事件
type MovePayload struct {
	PlayerID string   `json:"player_id"`
	Data     MoveData `json:"data"`
}

// TalkPayload 聊天事件；Players 是客户端自行计算的附近玩家列表
type TalkPayload struct {
	From    string   `json:"from"`
	Players []string `json:"players"`
	Message string   `json:"message"`
}

// TalkNotice is the chat payload delivered to each recipient.
type TalkNotice struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// BootstrapRequestPayload announces a freshly-started instance asking peers
// for their locally-owned presence.
type BootstrapRequestPayload struct {
	InstanceID string `json:"instance_id"`
}

// BootstrapResponsePayload lists the player ids one peer holds locally.
type BootstrapResponsePayload struct {
	InstanceID string   `json:"instance_id"`
	Players    []string `json:"players"`
}
