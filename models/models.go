// models/models.go
package models

// Point is a 2D world coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlayerRecord 玩家档案（持久层数据）
type PlayerRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	WorldID     string `json:"world_id"`
	Name        string `json:"name"`
	Wealth      int64  `json:"wealth"`
	Spritesheet string `json:"spritesheet"`
	Checkpoint  Point  `json:"checkpoint"`
}

// PublicPlayer is the subset of a player record sent to other clients.
type PublicPlayer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Wealth      int64  `json:"wealth"`
	Spritesheet string `json:"spritesheet"`
	Checkpoint  Point  `json:"checkpoint"`
}

// Public strips the fields other clients must not see.
func (r *PlayerRecord) Public() PublicPlayer {
	return PublicPlayer{
		ID:          r.ID,
		Name:        r.Name,
		Wealth:      r.Wealth,
		Spritesheet: r.Spritesheet,
		Checkpoint:  r.Checkpoint,
	}
}

// WorldRecord 世界档案
type WorldRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserRecord 用户档案（账号层数据，本服务只读）
type UserRecord struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// WorldPresence is one world's worth of locally-owned sessions inside a
// presence snapshot.
type WorldPresence struct {
	WorldID string         `json:"world_id"`
	Name    string         `json:"name"`
	Players []PlayerRecord `json:"players"`
}

// PresenceSnapshot is the recovery artifact written to the bus's shared slot.
// It is a projection, never the source of truth for runtime routing.
type PresenceSnapshot struct {
	InstanceID string          `json:"instance_id"`
	Worlds     []WorldPresence `json:"worlds"`
}
