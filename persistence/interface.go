// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/worldserver/models"
)

// Database 档案存储接口
//
// The presence core consumes records through this contract only; account
// creation and login live in a separate service.
type Database interface {
	GetPlayer(playerID string) (*models.PlayerRecord, error)
	GetWorld(worldID string) (*models.WorldRecord, error)
	CreatePlayer(rec *models.PlayerRecord) error
	// UpdatePlayer applies a partial patch to a player record. Supported
	// keys: "checkpoint" (models.Point), "wealth" (int64), "name" (string).
	UpdatePlayer(playerID string, patch map[string]interface{}) error
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
