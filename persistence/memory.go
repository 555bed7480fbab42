// persistence/memory.go
package persistence

import (
	"sync"

	"github.com/wfunc/worldserver/models"
)

// Memory 内存档案存储（开发与测试用，带演示数据）
type Memory struct {
	mutex   sync.RWMutex
	players map[string]*models.PlayerRecord
	worlds  map[string]*models.WorldRecord
}

// NewMemory 创建空的内存存储
func NewMemory() *Memory {
	return &Memory{
		players: make(map[string]*models.PlayerRecord),
		worlds:  make(map[string]*models.WorldRecord),
	}
}

// NewSeededMemory returns a memory store preloaded with the demo worlds and
// players, so a bare `driver: memory` server is immediately playable.
func NewSeededMemory() *Memory {
	m := NewMemory()

	m.worlds["world_0"] = &models.WorldRecord{ID: "world_0", Name: "Kadaroad"}
	m.worlds["world_1"] = &models.WorldRecord{ID: "world_1", Name: "Sand-Land"}

	seed := []models.PlayerRecord{
		{ID: "player_0", UserID: "user_0", WorldID: "world_0", Name: "Sandip", Wealth: 100, Spritesheet: "GENERIC", Checkpoint: models.Point{X: 100, Y: 100}},
		{ID: "player_1", UserID: "user_1", WorldID: "world_0", Name: "Raj", Wealth: 100, Spritesheet: "BARD", Checkpoint: models.Point{X: 100, Y: 100}},
		{ID: "player_2", UserID: "user_2", WorldID: "world_1", Name: "Ritik", Wealth: 100, Spritesheet: "SOLDIER", Checkpoint: models.Point{X: 100, Y: 100}},
		{ID: "player_3", UserID: "user_0", WorldID: "world_1", Name: "Sandip", Wealth: 100, Spritesheet: "SCOUT", Checkpoint: models.Point{X: 100, Y: 100}},
		{ID: "player_4", UserID: "user_1", WorldID: "world_1", Name: "Raj", Wealth: 100, Spritesheet: "DEVOUT", Checkpoint: models.Point{X: 100, Y: 100}},
		{ID: "player_5", UserID: "user_2", WorldID: "world_0", Name: "Ritik", Wealth: 100, Spritesheet: "CONJURER", Checkpoint: models.Point{X: 100, Y: 100}},
	}
	for i := range seed {
		rec := seed[i]
		m.players[rec.ID] = &rec
	}
	return m
}

func (m *Memory) GetPlayer(playerID string) (*models.PlayerRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rec, ok := m.players[playerID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *Memory) GetWorld(worldID string) (*models.WorldRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rec, ok := m.worlds[worldID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *Memory) CreatePlayer(rec *models.PlayerRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	clone := *rec
	m.players[rec.ID] = &clone
	return nil
}

// CreateWorld 注册一个世界（测试与演示数据用）
func (m *Memory) CreateWorld(rec *models.WorldRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	clone := *rec
	m.worlds[rec.ID] = &clone
	return nil
}

func (m *Memory) UpdatePlayer(playerID string, patch map[string]interface{}) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	rec, ok := m.players[playerID]
	if !ok {
		return ErrRecordNotFound
	}

	for key, value := range patch {
		switch key {
		case "checkpoint":
			if point, ok := value.(models.Point); ok {
				rec.Checkpoint = point
			}
		case "wealth":
			if wealth, ok := value.(int64); ok {
				rec.Wealth = wealth
			}
		case "name":
			if name, ok := value.(string); ok {
				rec.Name = name
			}
		}
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
