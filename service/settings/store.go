package settings

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/nmoreira/consultorio-server/cmd/models"
	"gorm.io/gorm"
)

// Setting keys written by the admin endpoints and read by the core.
const (
	KeyAvailabilityOverrides = "availability_overrides"
	KeySlotInterval          = "slot_interval"
	KeyDailyLimit            = "daily_limit"
	KeyCalendarClientID      = "calendar_client_id"
	KeyCalendarClientSecret  = "calendar_client_secret"
	KeyCalendarRefreshToken  = "calendar_refresh_token"
	KeyCalendarID            = "calendar_id"
)

const cacheTTL = 5 * time.Minute

// DayOverride is the settings-level per-day availability structure. When
// present for a weekday it beats the availability_rules row for that day.
type DayOverride struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// CalendarConfig carries the external calendar credentials. Empty fields
// mean "not configured"; the sync adapter degrades to a no-op.
type CalendarConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	CalendarID   string
}

// Store reads practice settings from the settings table behind a short
// TTL cache, so hot paths (slot computation, booking) do not hit the
// database for every request. Invalidate is called whenever an admin
// rewrites settings.
type Store struct {
	db *gorm.DB

	mu      sync.Mutex
	cached  map[string]string
	expires time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// snapshot returns the cached key/value map, reloading it when the TTL
// has elapsed. A failed reload falls back to the stale copy if one exists.
func (s *Store) snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Now().Before(s.expires) {
		return s.cached
	}

	var rows []models.Setting
	if err := s.db.Find(&rows).Error; err != nil {
		log.Printf("settings: error loading settings: %v", err)
		if s.cached != nil {
			return s.cached
		}
		return map[string]string{}
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}

	s.cached = values
	s.expires = time.Now().Add(cacheTTL)
	return values
}

func (s *Store) Get(key string) string {
	return s.snapshot()[key]
}

// Set upserts a single setting row and drops the cache.
func (s *Store) Set(key, value string) error {
	var setting models.Setting
	err := s.db.Where("key = ?", key).First(&setting).Error
	if err == gorm.ErrRecordNotFound {
		err = s.db.Create(&models.Setting{Key: key, Value: value}).Error
	} else if err == nil {
		setting.Value = value
		err = s.db.Save(&setting).Error
	}
	if err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// AvailabilityOverrides returns the per-weekday override map (0=Sunday).
// Missing or malformed settings yield an empty map, which means "no
// override, use the weekly rules".
func (s *Store) AvailabilityOverrides() map[int]DayOverride {
	raw := s.Get(KeyAvailabilityOverrides)
	if raw == "" {
		return map[int]DayOverride{}
	}
	overrides, err := parseOverrides(raw)
	if err != nil {
		log.Printf("settings: invalid availability overrides: %v", err)
		return map[int]DayOverride{}
	}
	return overrides
}

// SlotInterval returns the configured slot duration in minutes, or 0 when
// unset so callers fall back to the rule's own duration.
func (s *Store) SlotInterval() int {
	return parsePositiveInt(s.Get(KeySlotInterval))
}

// DailyLimit returns the daily appointment cap, or 0 when no limit is
// configured.
func (s *Store) DailyLimit() int {
	return parsePositiveInt(s.Get(KeyDailyLimit))
}

func (s *Store) CalendarConfig() CalendarConfig {
	values := s.snapshot()
	return CalendarConfig{
		ClientID:     values[KeyCalendarClientID],
		ClientSecret: values[KeyCalendarClientSecret],
		RefreshToken: values[KeyCalendarRefreshToken],
		CalendarID:   values[KeyCalendarID],
	}
}

func (c CalendarConfig) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "" && c.CalendarID != ""
}

func parseOverrides(raw string) (map[int]DayOverride, error) {
	var keyed map[string]DayOverride
	if err := json.Unmarshal([]byte(raw), &keyed); err != nil {
		return nil, err
	}

	overrides := make(map[int]DayOverride, len(keyed))
	for key, override := range keyed {
		day, err := strconv.Atoi(key)
		if err != nil || day < 0 || day > 6 {
			continue
		}
		if override.Enabled {
			if err := validateWindow(override.Start, override.End); err != nil {
				return nil, fmt.Errorf("day %s: %w", key, err)
			}
		}
		overrides[day] = override
	}
	return overrides, nil
}

// validateWindow rejects malformed or reversed override windows before
// they reach slot computation.
func validateWindow(start, end string) error {
	s, err := parseClock(start)
	if err != nil {
		return err
	}
	e, err := parseClock(end)
	if err != nil {
		return err
	}
	if e <= s {
		return fmt.Errorf("end %q is not after start %q", end, start)
	}
	return nil
}

func parseClock(s string) (int, error) {
	var hours, minutes int
	if _, err := fmt.Sscanf(s, "%d:%d", &hours, &minutes); err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return hours*60 + minutes, nil
}

func parsePositiveInt(raw string) int {
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

var (
	locationOnce sync.Once
	location     *time.Location
)

// PracticeLocation is the single fixed practice timezone. All wall-clock
// math (lead time, reminder instants, calendar events) happens here.
func PracticeLocation() *time.Location {
	locationOnce.Do(func() {
		name := os.Getenv("PRACTICE_TIMEZONE")
		if name == "" {
			name = "America/Sao_Paulo"
		}
		loc, err := time.LoadLocation(name)
		if err != nil {
			log.Printf("settings: invalid PRACTICE_TIMEZONE %q, using UTC: %v", name, err)
			loc = time.UTC
		}
		location = loc
	})
	return location
}
