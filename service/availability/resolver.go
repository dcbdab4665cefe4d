package availability

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/nmoreira/consultorio-server/cmd/models"
	"github.com/nmoreira/consultorio-server/service/settings"
	"gorm.io/gorm"
)

const defaultSlotMinutes = 60

// Precedence for resolving a day's bookable window. The settings-level
// override always beats the availability_rules row for the same weekday.
const (
	SourceNone = iota
	SourceRule
	SourceOverride
)

// DayRule is the resolved bookable window for one calendar date.
type DayRule struct {
	Enabled     bool
	Start       string
	End         string
	SlotMinutes int
	Source      int
}

// Interval is a half-open busy window reported by the external calendar.
type Interval struct {
	Start time.Time
	End   time.Time
}

// DayInput feeds the pure slot computation. The resolver gathers it from
// storage and the calendar adapter; tests construct it directly.
type DayInput struct {
	Rule        DayRule
	Blocked     bool
	BookedTimes []string
	BookedCount int
	DailyLimit  int
	Busy        []Interval
	Date        time.Time
	Location    *time.Location
}

// ResolveDayRule picks the effective window for a weekday: the settings
// override when one exists, otherwise the weekly rule. slotInterval, when
// configured, beats the rule's own duration.
func ResolveDayRule(override *settings.DayOverride, rule *models.AvailabilityRule, slotInterval int) DayRule {
	resolved := DayRule{Source: SourceNone, SlotMinutes: defaultSlotMinutes}

	if rule != nil {
		resolved = DayRule{
			Enabled:     rule.IsAvailable,
			Start:       rule.StartTime,
			End:         rule.EndTime,
			SlotMinutes: rule.SlotDurationMinutes,
			Source:      SourceRule,
		}
	}

	if override != nil {
		resolved = DayRule{
			Enabled:     override.Enabled,
			Start:       override.Start,
			End:         override.End,
			SlotMinutes: resolved.SlotMinutes,
			Source:      SourceOverride,
		}
	}

	if slotInterval > 0 {
		resolved.SlotMinutes = slotInterval
	}
	if resolved.SlotMinutes <= 0 {
		resolved.SlotMinutes = defaultSlotMinutes
	}

	return resolved
}

// ComputeDaySlots turns a resolved day into the ordered bookable times.
// It is side-effect free and safe under concurrent use.
func ComputeDaySlots(in DayInput) []string {
	if !in.Rule.Enabled || in.Blocked {
		return []string{}
	}

	// A reached daily cap closes the whole day, not individual slots.
	if in.DailyLimit > 0 && in.BookedCount >= in.DailyLimit {
		return []string{}
	}

	candidates := buildSlots(in.Rule)
	candidates = filterBooked(candidates, in.BookedTimes)
	candidates = filterBusy(candidates, in.Date, in.Rule.SlotMinutes, in.Busy, in.Location)

	sort.Strings(candidates)
	return candidates
}

// buildSlots walks [start, end) in slot-duration steps, keeping candidates
// that still fit before the window closes.
func buildSlots(rule DayRule) []string {
	start, err := parseHM(rule.Start)
	if err != nil {
		return []string{}
	}
	end, err := parseHM(rule.End)
	if err != nil {
		return []string{}
	}

	// A reversed or empty window has no slots. Admin input is rejected
	// upstream, but stored rules predating that check still pass through
	// here.
	if end <= start {
		return []string{}
	}

	slots := make([]string, 0, (end-start)/rule.SlotMinutes+1)
	for step := start; step+rule.SlotMinutes <= end; step += rule.SlotMinutes {
		slots = append(slots, formatHM(step))
	}
	return slots
}

func filterBooked(slots []string, booked []string) []string {
	if len(booked) == 0 {
		return slots
	}

	taken := make(map[string]struct{}, len(booked))
	for _, t := range booked {
		taken[t] = struct{}{}
	}

	remaining := make([]string, 0, len(slots))
	for _, slot := range slots {
		if _, ok := taken[slot]; !ok {
			remaining = append(remaining, slot)
		}
	}
	return remaining
}

func filterBusy(slots []string, date time.Time, slotMinutes int, busy []Interval, loc *time.Location) []string {
	if len(busy) == 0 {
		return slots
	}
	if loc == nil {
		loc = settings.PracticeLocation()
	}

	remaining := make([]string, 0, len(slots))
	for _, slot := range slots {
		minutes, err := parseHM(slot)
		if err != nil {
			continue
		}
		slotStart := time.Date(date.Year(), date.Month(), date.Day(), 0, minutes, 0, 0, loc)
		slotEnd := slotStart.Add(time.Duration(slotMinutes) * time.Minute)

		overlaps := false
		for _, interval := range busy {
			if slotStart.Before(interval.End) && slotEnd.After(interval.Start) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			remaining = append(remaining, slot)
		}
	}
	return remaining
}

func parseHM(s string) (int, error) {
	var hours, minutes int
	if _, err := fmt.Sscanf(s, "%d:%d", &hours, &minutes); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return hours*60 + minutes, nil
}

func formatHM(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// BusySource is the calendar adapter surface the resolver consumes. It is
// fail-open: implementations return an empty list on any failure.
type BusySource interface {
	ListBusyIntervals(from, to time.Time) []Interval
}

// Resolver computes the bookable slots for a date from the weekly rules,
// settings overrides, blocked dates, booked appointments and the external
// calendar's busy windows.
type Resolver struct {
	db       *gorm.DB
	settings *settings.Store
	calendar BusySource
}

func NewResolver(db *gorm.DB, store *settings.Store, calendar BusySource) *Resolver {
	return &Resolver{db: db, settings: store, calendar: calendar}
}

// SlotsForDate returns the ordered bookable times for a calendar date.
// Storage failures on the filtering steps fail open (the slot stays
// visible; booking re-validates); only a failure to resolve the day's
// window itself is returned as an error.
func (r *Resolver) SlotsForDate(date time.Time) ([]string, error) {
	weekday := int(date.Weekday())

	overrides := r.settings.AvailabilityOverrides()
	var override *settings.DayOverride
	if o, ok := overrides[weekday]; ok {
		override = &o
	}

	var rule *models.AvailabilityRule
	var row models.AvailabilityRule
	err := r.db.Where("day_of_week = ?", weekday).First(&row).Error
	if err == nil {
		rule = &row
	} else if err != gorm.ErrRecordNotFound {
		if override == nil {
			return nil, err
		}
		log.Printf("availability: error loading rule for weekday %d: %v", weekday, err)
	}

	resolved := ResolveDayRule(override, rule, r.settings.SlotInterval())
	if !resolved.Enabled {
		return []string{}, nil
	}

	input := DayInput{
		Rule:       resolved,
		Date:       date,
		Location:   settings.PracticeLocation(),
		DailyLimit: r.settings.DailyLimit(),
	}

	var blocked int64
	if err := r.db.Model(&models.BlockedDate{}).Where("date = ?", date.Format("2006-01-02")).Count(&blocked).Error; err != nil {
		log.Printf("availability: error checking blocked dates: %v", err)
	}
	input.Blocked = blocked > 0

	var appointments []models.Appointment
	if err := r.db.Where("date = ? AND status IN ?", date.Format("2006-01-02"), models.BookedStatuses).
		Find(&appointments).Error; err != nil {
		log.Printf("availability: error loading appointments: %v", err)
	}
	for _, appt := range appointments {
		input.BookedTimes = append(input.BookedTimes, appt.Time)
	}
	input.BookedCount = len(appointments)

	if r.calendar != nil {
		loc := settings.PracticeLocation()
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
		input.Busy = r.calendar.ListBusyIntervals(dayStart, dayStart.AddDate(0, 0, 1))
	}

	return ComputeDaySlots(input), nil
}
