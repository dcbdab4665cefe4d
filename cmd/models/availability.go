package models

import (
	"time"

	"gorm.io/gorm"
)

// AvailabilityRule is the recurring weekly template: one active rule per
// weekday, last write wins. A settings-level per-day override, when
// present, takes precedence over this table.
type AvailabilityRule struct {
	gorm.Model
	DayOfWeek           int    `gorm:"uniqueIndex;not null" json:"day_of_week"`
	StartTime           string `gorm:"size:5;not null" json:"start_time"`
	EndTime             string `gorm:"size:5;not null" json:"end_time"`
	SlotDurationMinutes int    `gorm:"not null;default:60" json:"slot_duration_minutes"`
	IsAvailable         bool   `gorm:"not null;default:true" json:"is_available"`
}

func (AvailabilityRule) TableName() string {
	return "availability_rules"
}

// BlockedDate closes a whole calendar date (holiday, vacation) regardless
// of the weekly rules.
type BlockedDate struct {
	gorm.Model
	Date   time.Time `gorm:"type:date;uniqueIndex;not null" json:"date"`
	Reason string    `gorm:"size:255" json:"reason,omitempty"`
}
