package appointment

import (
	"errors"
	"time"

	"github.com/nmoreira/consultorio-server/cmd/models"
	"github.com/nmoreira/consultorio-server/service/settings"
	"gorm.io/gorm"
)

const (
	minLeadTime = 24 * time.Hour

	// Business hours: a booking may start between 08:00 and 19:00,
	// both inclusive.
	businessOpenMinutes  = 8 * 60
	businessCloseMinutes = 19 * 60
)

// BookingInput is the public booking form payload after upstream
// sanitization.
type BookingInput struct {
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	ClientPhone string `json:"client_phone"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Modality    string `json:"modality"`
	Subject     string `json:"subject"`
	Notes       string `json:"notes"`
}

// bookingTx is the storage surface Create consumes inside its
// transaction.
type bookingTx interface {
	CountBookedOnDay(date string) (int64, error)
	CountBookedSlot(date, slot string) (int64, error)
	Insert(appt *models.Appointment) error
}

type ledgerStore interface {
	InTransaction(fn func(tx bookingTx) error) error
	Update(appt *models.Appointment) error
}

type schedulingSettings interface {
	SlotInterval() int
	DailyLimit() int
}

type gormLedgerStore struct {
	db *gorm.DB
}

func (s gormLedgerStore) InTransaction(fn func(tx bookingTx) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(gormBookingTx{tx: tx})
	})
}

func (s gormLedgerStore) Update(appt *models.Appointment) error {
	return s.db.Save(appt).Error
}

type gormBookingTx struct {
	tx *gorm.DB
}

func (t gormBookingTx) CountBookedOnDay(date string) (int64, error) {
	var count int64
	err := t.tx.Model(&models.Appointment{}).
		Where("date = ? AND status IN ?", date, models.BookedStatuses).
		Count(&count).Error
	return count, err
}

func (t gormBookingTx) CountBookedSlot(date, slot string) (int64, error) {
	var count int64
	err := t.tx.Model(&models.Appointment{}).
		Where("date = ? AND time = ? AND status IN ?", date, slot, models.BookedStatuses).
		Count(&count).Error
	return count, err
}

func (t gormBookingTx) Insert(appt *models.Appointment) error {
	return t.tx.Create(appt).Error
}

// Ledger validates and persists new appointments. It is the single
// authority for "is this slot still free": the availability resolver only
// advises, the ledger re-validates inside a transaction backed by the
// partial unique index on (date, time).
type Ledger struct {
	store    ledgerStore
	settings schedulingSettings
	now      func() time.Time
}

func NewLedger(db *gorm.DB, store *settings.Store) *Ledger {
	return &Ledger{store: gormLedgerStore{db: db}, settings: store, now: time.Now}
}

// validateSchedule runs the synchronous, storage-free checks in order:
// date format, time format, lead time, business hours. It returns the
// parsed calendar date on success.
func validateSchedule(dateStr, timeStr string, now time.Time, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, &ValidationError{Reason: "invalid date, expected YYYY-MM-DD"}
	}

	clock, err := time.Parse("15:04", timeStr)
	if err != nil {
		return time.Time{}, &ValidationError{Reason: "invalid time, expected HH:mm"}
	}

	startsAt := time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	if startsAt.Before(now.Add(minLeadTime)) {
		return time.Time{}, &ValidationError{Reason: "insufficient lead time"}
	}

	minutes := clock.Hour()*60 + clock.Minute()
	if minutes < businessOpenMinutes || minutes > businessCloseMinutes {
		return time.Time{}, &ValidationError{Reason: "outside business hours"}
	}

	return date, nil
}

// Create validates the booking and inserts it with status pendente.
// Returns ValidationError or ConflictError; side effects (email, calendar
// sync, reminder) are the caller's responsibility and never gate success.
func (l *Ledger) Create(input BookingInput) (*models.Appointment, error) {
	loc := settings.PracticeLocation()

	date, err := validateSchedule(input.Date, input.Time, l.now(), loc)
	if err != nil {
		return nil, err
	}

	modality := input.Modality
	if modality == "" {
		modality = models.ModalityPresencial
	}
	if !models.ValidModality(modality) {
		return nil, &ValidationError{Reason: "invalid modality"}
	}

	appt := &models.Appointment{
		ClientName:      input.ClientName,
		ClientEmail:     input.ClientEmail,
		ClientPhone:     input.ClientPhone,
		Date:            date,
		Time:            input.Time,
		DurationMinutes: 60,
		Modality:        modality,
		Status:          models.StatusPendente,
		Subject:         input.Subject,
		Notes:           input.Notes,
	}
	if interval := l.settings.SlotInterval(); interval > 0 {
		appt.DurationMinutes = interval
	}
	dailyLimit := l.settings.DailyLimit()

	// Count-then-insert runs inside one transaction so two bookings on
	// the same day cannot both slip past the daily cap. The per-slot
	// conflict has the partial unique index as its durability backstop.
	err = l.store.InTransaction(func(tx bookingTx) error {
		dateOnly := date.Format("2006-01-02")

		if dailyLimit > 0 {
			count, err := tx.CountBookedOnDay(dateOnly)
			if err != nil {
				return err
			}
			if count >= int64(dailyLimit) {
				return &ValidationError{Reason: "daily limit reached"}
			}
		}

		existing, err := tx.CountBookedSlot(dateOnly, input.Time)
		if err != nil {
			return err
		}
		if existing > 0 {
			return &ConflictError{Reason: "slot unavailable"}
		}

		return tx.Insert(appt)
	})

	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ConflictError{Reason: "slot unavailable"}
		}
		return nil, err
	}

	return appt, nil
}

// Cancel moves the appointment to cancelado. Cancelling an already
// cancelled appointment reports no change and no error; the returned
// flag tells the caller whether side effects are due.
func (l *Ledger) Cancel(appt *models.Appointment) (bool, error) {
	if appt.Status == models.StatusCancelado {
		return false, nil
	}

	if err := Transition(appt.Status, models.StatusCancelado); err != nil {
		return false, err
	}

	appt.Status = models.StatusCancelado
	if err := l.store.Update(appt); err != nil {
		return false, err
	}
	return true, nil
}
