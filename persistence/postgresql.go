// persistence/postgresql.go
package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/worldserver/models"
)

// PostgreSQL 原生SQL实现（不经过GORM）
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建PostgreSQL数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func createTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS players (
			player_id   TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			world_id    TEXT NOT NULL,
			name        TEXT NOT NULL,
			wealth      BIGINT NOT NULL DEFAULT 100,
			spritesheet TEXT NOT NULL DEFAULT 'GENERIC',
			checkpoint  JSONB NOT NULL DEFAULT '{"x":0,"y":0}',
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_world ON players (world_id)`,
		`CREATE TABLE IF NOT EXISTS worlds (
			world_id TEXT PRIMARY KEY,
			name     TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetPlayer 加载玩家档案
func (p *PostgreSQL) GetPlayer(playerID string) (*models.PlayerRecord, error) {
	var rec models.PlayerRecord
	var checkpoint []byte

	err := p.db.QueryRow(
		`SELECT player_id, user_id, world_id, name, wealth, spritesheet, checkpoint
		 FROM players WHERE player_id = $1`, playerID,
	).Scan(&rec.ID, &rec.UserID, &rec.WorldID, &rec.Name, &rec.Wealth, &rec.Spritesheet, &checkpoint)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(checkpoint, &rec.Checkpoint); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetWorld 加载世界档案
func (p *PostgreSQL) GetWorld(worldID string) (*models.WorldRecord, error) {
	var rec models.WorldRecord
	err := p.db.QueryRow(
		`SELECT world_id, name FROM worlds WHERE world_id = $1`, worldID,
	).Scan(&rec.ID, &rec.Name)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreatePlayer 创建玩家档案
func (p *PostgreSQL) CreatePlayer(rec *models.PlayerRecord) error {
	checkpoint, err := json.Marshal(rec.Checkpoint)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(
		`INSERT INTO players (player_id, user_id, world_id, name, wealth, spritesheet, checkpoint)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.UserID, rec.WorldID, rec.Name, rec.Wealth, rec.Spritesheet, checkpoint,
	)
	return err
}

// UpdatePlayer 部分更新玩家档案
func (p *PostgreSQL) UpdatePlayer(playerID string, patch map[string]interface{}) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, value := range patch {
		switch key {
		case "checkpoint":
			blob, err := json.Marshal(value)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(
				`UPDATE players SET checkpoint = $1, updated_at = now() WHERE player_id = $2`,
				blob, playerID,
			); err != nil {
				return err
			}
		case "wealth":
			if _, err := tx.Exec(
				`UPDATE players SET wealth = $1, updated_at = now() WHERE player_id = $2`,
				value, playerID,
			); err != nil {
				return err
			}
		case "name":
			if _, err := tx.Exec(
				`UPDATE players SET name = $1, updated_at = now() WHERE player_id = $2`,
				value, playerID,
			); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported patch field %q", key)
		}
	}

	return tx.Commit()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
