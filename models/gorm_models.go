// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormPlayer 玩家模型
type GormPlayer struct {
	gorm.Model
	PlayerID    string `gorm:"uniqueIndex;not null"`
	UserID      string `gorm:"index;not null"`
	WorldID     string `gorm:"index;not null"`
	Name        string `gorm:"not null"`
	Wealth      int64  `gorm:"default:100"`
	Spritesheet string `gorm:"default:GENERIC"`
	Checkpoint  Point  `gorm:"type:jsonb;serializer:json"`
}

// GormWorld 世界模型
type GormWorld struct {
	gorm.Model
	WorldID string `gorm:"uniqueIndex;not null"`
	Name    string `gorm:"not null"`
}

// GormUser 用户模型
type GormUser struct {
	gorm.Model
	UserID string `gorm:"uniqueIndex;not null"`
	Name   string `gorm:"not null"`
	Email  string `gorm:"uniqueIndex;not null"`
}

// Record 转换为持久层档案
func (p *GormPlayer) Record() *PlayerRecord {
	return &PlayerRecord{
		ID:          p.PlayerID,
		UserID:      p.UserID,
		WorldID:     p.WorldID,
		Name:        p.Name,
		Wealth:      p.Wealth,
		Spritesheet: p.Spritesheet,
		Checkpoint:  p.Checkpoint,
	}
}
