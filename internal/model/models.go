package model

import (
	"time"

	"gorm.io/datatypes"
)

// Alert is one recorded pattern match. The row is written once at
// dispatch time and never updated; retries live in AlertDelivery.
type Alert struct {
	ID          string         `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	Pattern     string         `gorm:"type:varchar(200);not null;index;column:pattern" json:"pattern"`
	Severity    string         `gorm:"type:varchar(16);not null;index;column:severity" json:"severity"`
	File        string         `gorm:"type:text;not null;column:file" json:"file"`
	Line        string         `gorm:"type:text;not null;column:line" json:"line"`
	MatchedText string         `gorm:"type:text;not null;default:'';column:matched_text" json:"matched_text"`
	Origin      string         `gorm:"type:varchar(200);not null;default:'';column:origin" json:"origin"`
	Context     datatypes.JSON `gorm:"column:context" json:"context,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime;index;column:created_at" json:"created_at"`
}

func (Alert) TableName() string { return "alerts" }

// AlertDelivery tracks one channel attempt for one alert. Status moves
// pending -> sent, or pending -> failed once the attempt budget is
// spent or the error is permanent.
type AlertDelivery struct {
	ID            int       `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	AlertID       string    `gorm:"type:varchar(36);not null;index;column:alert_id" json:"alert_id"`
	Channel       string    `gorm:"type:varchar(16);not null;index;column:channel" json:"channel"`
	Status        string    `gorm:"type:varchar(16);not null;index;column:status" json:"status"`
	Attempts      int       `gorm:"not null;default:0;column:attempts" json:"attempts"`
	NextAttemptAt time.Time `gorm:"not null;index;column:next_attempt_at" json:"next_attempt_at"`
	LastError     string    `gorm:"type:text;not null;default:'';column:last_error" json:"last_error"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime;column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime;column:updated_at" json:"updated_at"`
}

func (AlertDelivery) TableName() string { return "alert_deliveries" }
