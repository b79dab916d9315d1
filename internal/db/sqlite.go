// Package db wraps the local sqlite database: the request log and the
// generated server API key.
package db

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/pysugar/codex-nexus/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens (creating if needed) the sqlite database and runs
// migrations.
func InitDB(dbPath string) (*gorm.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}

	database, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := database.AutoMigrate(&models.Config{}, &models.RequestLog{}); err != nil {
		return nil, err
	}

	ensureAPIKey(database)
	return database, nil
}

// ensureAPIKey generates the server API key on first run.
func ensureAPIKey(database *gorm.DB) {
	var config models.Config
	if err := database.Where("key = ?", "api_key").First(&config).Error; err != nil {
		keyBytes := make([]byte, 16)
		rand.Read(keyBytes)
		apiKey := "sk-" + hex.EncodeToString(keyBytes)

		database.Create(&models.Config{Key: "api_key", Value: apiKey})
		log.Printf("🔑 Generated new API key: %s", apiKey)
	}
}

// GetAPIKey retrieves the server API key, empty if none exists.
func GetAPIKey(database *gorm.DB) string {
	var config models.Config
	database.Where("key = ?", "api_key").First(&config)
	return config.Value
}

// RegenerateAPIKey replaces the server API key and returns the new one.
func RegenerateAPIKey(database *gorm.DB) string {
	keyBytes := make([]byte, 16)
	rand.Read(keyBytes)
	apiKey := "sk-" + hex.EncodeToString(keyBytes)
	database.Save(&models.Config{Key: "api_key", Value: apiKey})
	return apiKey
}

// RecordRequest inserts a request-log row. Best-effort: failures are
// logged and swallowed.
func RecordRequest(database *gorm.DB, entry models.RequestLog) {
	if database == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}
	if err := database.Create(&entry).Error; err != nil {
		log.Printf("⚠️ Failed to record request log: %v", err)
	}
}

// GetRequestStats aggregates success/error counts over the log.
func GetRequestStats(database *gorm.DB) models.RequestStats {
	var stats models.RequestStats
	database.Model(&models.RequestLog{}).Count(&stats.TotalRequests)
	database.Model(&models.RequestLog{}).Where("status < ?", 400).Count(&stats.SuccessCount)
	stats.ErrorCount = stats.TotalRequests - stats.SuccessCount
	return stats
}

// RecentRequests returns the newest request-log rows, most recent
// first.
func RecentRequests(database *gorm.DB, limit int) []models.RequestLog {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.RequestLog
	database.Order("timestamp desc").Limit(limit).Find(&rows)
	return rows
}
