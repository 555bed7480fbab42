// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/worldserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormPlayer{},
		&models.GormWorld{},
		&models.GormUser{},
	)
}

// GetPlayer 加载玩家档案
func (p *GormPostgreSQL) GetPlayer(playerID string) (*models.PlayerRecord, error) {
	var player models.GormPlayer
	if err := p.db.Where("player_id = ?", playerID).First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return player.Record(), nil
}

// GetWorld 加载世界档案
func (p *GormPostgreSQL) GetWorld(worldID string) (*models.WorldRecord, error) {
	var world models.GormWorld
	if err := p.db.Where("world_id = ?", worldID).First(&world).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &models.WorldRecord{ID: world.WorldID, Name: world.Name}, nil
}

// CreatePlayer 创建玩家档案
func (p *GormPostgreSQL) CreatePlayer(rec *models.PlayerRecord) error {
	player := models.GormPlayer{
		PlayerID:    rec.ID,
		UserID:      rec.UserID,
		WorldID:     rec.WorldID,
		Name:        rec.Name,
		Wealth:      rec.Wealth,
		Spritesheet: rec.Spritesheet,
		Checkpoint:  rec.Checkpoint,
	}
	return p.db.Create(&player).Error
}

// UpdatePlayer 部分更新玩家档案（事务内执行）
func (p *GormPostgreSQL) UpdatePlayer(playerID string, patch map[string]interface{}) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		var player models.GormPlayer
		if err := tx.Where("player_id = ?", playerID).First(&player).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}

		updates := make(map[string]interface{}, len(patch))
		for key, value := range patch {
			switch key {
			case "checkpoint", "wealth", "name":
				updates[key] = value
			default:
				return fmt.Errorf("unsupported patch field %q", key)
			}
		}
		return tx.Model(&player).Updates(updates).Error
	})
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
