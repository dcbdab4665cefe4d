package scheduler

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/nmoreira/consultorio-server/cmd/models"
	"github.com/nmoreira/consultorio-server/service/settings"
	"gorm.io/gorm"
)

const (
	reminderLead = 24 * time.Hour

	// Daily re-scan hour, practice time. Low traffic, and late enough
	// that the previous day's bookings are all in.
	rescanHour = 3
)

// AppointmentStore is the persistence surface the scheduler needs. The
// in-memory timer registry is rebuilt from it at startup and daily, which
// is what makes reminders survive process restarts.
type AppointmentStore interface {
	Find(id uint) (*models.Appointment, error)
	FutureBooked() ([]models.Appointment, error)
}

// Notifier delivers the reminder. Template rendering lives upstream.
type Notifier interface {
	SendReminder(appt *models.Appointment) error
}

// ReminderScheduler guarantees one reminder email per booked appointment,
// fired 24 hours before its start. Timers are process-local; durability
// comes from Initialize's full re-scan, not from the timers themselves.
type ReminderScheduler struct {
	store    AppointmentStore
	notifier Notifier
	loc      *time.Location
	now      func() time.Time

	mu     sync.Mutex
	timers map[uint]*time.Timer

	stop     chan struct{}
	stopOnce sync.Once
}

func NewReminderScheduler(store AppointmentStore, notifier Notifier, loc *time.Location) *ReminderScheduler {
	if loc == nil {
		loc = settings.PracticeLocation()
	}
	return &ReminderScheduler{
		store:    store,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
		timers:   make(map[uint]*time.Timer),
		stop:     make(chan struct{}),
	}
}

// ScheduleReminder registers a one-shot timer for the appointment,
// replacing any prior timer for the same id. A reminder whose window has
// already passed is skipped, not sent late: missing the window (late
// booking, downtime) is an accepted tradeoff.
func (s *ReminderScheduler) ScheduleReminder(id uint) error {
	appt, err := s.store.Find(id)
	if err != nil {
		return fmt.Errorf("loading appointment %d: %w", id, err)
	}

	if appt.Status == models.StatusCancelado {
		s.CancelReminder(id)
		return nil
	}

	firesAt := appt.StartsAt(s.loc).Add(-reminderLead)
	delay := firesAt.Sub(s.now())
	if delay <= 0 {
		log.Printf("scheduler: reminder window for appointment %d already passed, skipping", id)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id) })
	return nil
}

// CancelReminder stops and removes the timer if present. Idempotent.
func (s *ReminderScheduler) CancelReminder(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// fire re-reads the appointment before sending: the stored status, not
// the timer's existence, is the authoritative gate. A cancel racing the
// timer therefore still wins.
func (s *ReminderScheduler) fire(id uint) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	appt, err := s.store.Find(id)
	if err != nil {
		log.Printf("scheduler: error reloading appointment %d at fire time: %v", id, err)
		return
	}
	if appt.Status == models.StatusCancelado {
		log.Printf("scheduler: appointment %d cancelled, reminder suppressed", id)
		return
	}

	if err := s.notifier.SendReminder(appt); err != nil {
		log.Printf("scheduler: error sending reminder for appointment %d: %v", id, err)
		return
	}
	log.Printf("scheduler: reminder sent for appointment %d", id)
}

// Initialize re-scans every future booked appointment and schedules its
// reminder. Run once at process start and once daily; one bad row never
// aborts the scan for the others.
func (s *ReminderScheduler) Initialize() {
	appointments, err := s.store.FutureBooked()
	if err != nil {
		log.Printf("scheduler: error scanning appointments: %v", err)
		return
	}

	scheduled := 0
	for _, appt := range appointments {
		if err := s.ScheduleReminder(appt.ID); err != nil {
			log.Printf("scheduler: error scheduling reminder for appointment %d: %v", appt.ID, err)
			continue
		}
		scheduled++
	}
	log.Printf("scheduler: re-scan complete, %d of %d appointments considered", scheduled, len(appointments))
}

// StartDailyRescan re-runs Initialize every day at the re-scan hour. This
// also picks up appointments booked while the process was running whose
// windows the startup scan had not yet seen.
func (s *ReminderScheduler) StartDailyRescan() {
	go func() {
		for {
			timer := time.NewTimer(s.untilNextRescan())
			select {
			case <-timer.C:
				s.Initialize()
			case <-s.stop:
				timer.Stop()
				return
			}
		}
	}()
}

func (s *ReminderScheduler) untilNextRescan() time.Duration {
	now := s.now().In(s.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), rescanHour, 0, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// Pending returns the appointment ids with a registered timer, ascending.
func (s *ReminderScheduler) Pending() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stop halts the rescan loop and stops all timers. Advisory cleanup only:
// durability comes from the next Initialize, not from a clean shutdown.
func (s *ReminderScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// GormStore is the production AppointmentStore.
type GormStore struct {
	db  *gorm.DB
	loc *time.Location
}

func NewGormStore(db *gorm.DB, loc *time.Location) *GormStore {
	if loc == nil {
		loc = settings.PracticeLocation()
	}
	return &GormStore{db: db, loc: loc}
}

func (g *GormStore) Find(id uint) (*models.Appointment, error) {
	var appt models.Appointment
	if err := g.db.First(&appt, id).Error; err != nil {
		return nil, err
	}
	return &appt, nil
}

func (g *GormStore) FutureBooked() ([]models.Appointment, error) {
	// Coarse date filter in SQL, exact wall-clock filter in Go: date and
	// time live in separate columns.
	var rows []models.Appointment
	today := time.Now().In(g.loc).Format("2006-01-02")
	if err := g.db.Where("date >= ? AND status IN ?", today, models.BookedStatuses).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	future := rows[:0]
	for _, appt := range rows {
		if appt.StartsAt(g.loc).After(now) {
			future = append(future, appt)
		}
	}
	return future, nil
}
