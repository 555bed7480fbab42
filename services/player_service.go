// services/player_service.go
package services

import (
	"errors"

	"github.com/wfunc/worldserver/models"
	"github.com/wfunc/worldserver/persistence"
)

// PlayerService mediates between the presence core and the record store.
type PlayerService struct {
	db persistence.Database
}

func NewPlayerService(db persistence.Database) *PlayerService {
	return &PlayerService{db: db}
}

// GetPlayer 获取玩家档案；档案不存在时返回 (nil, nil)
//
// An unknown player id is a stale-state condition for the router, not an
// error: the event is dropped silently.
func (s *PlayerService) GetPlayer(playerID string) (*models.PlayerRecord, error) {
	rec, err := s.db.GetPlayer(playerID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetWorld 获取世界档案；档案不存在时返回 (nil, nil)
func (s *PlayerService) GetWorld(worldID string) (*models.WorldRecord, error) {
	rec, err := s.db.GetWorld(worldID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveCheckpoint writes a player's last known position back as the record
// checkpoint. Called when a locally-owned session leaves the world.
func (s *PlayerService) SaveCheckpoint(playerID string, x, y float64) error {
	return s.db.UpdatePlayer(playerID, map[string]interface{}{
		"checkpoint": models.Point{X: x, Y: y},
	})
}
