package models

import "gorm.io/gorm"

// Setting is a key/value row for practice configuration that admins edit
// at runtime (availability overrides, slot interval, daily limit, calendar
// credentials). Reads go through the settings store cache.
type Setting struct {
	gorm.Model
	Key   string `gorm:"size:100;uniqueIndex;not null" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}
