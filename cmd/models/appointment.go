package models

import (
    "time"

    "gorm.io/gorm"
)

const (
    StatusPendente   = "pendente"
    StatusConfirmado = "confirmado"
    StatusCancelado  = "cancelado"
    StatusConcluido  = "concluido"

    ModalityPresencial = "presencial"
    ModalityOnline     = "online"
)

// BookedStatuses are the statuses that occupy a slot. Cancelled
// appointments are kept for history but release their slot.
var BookedStatuses = []string{StatusPendente, StatusConfirmado, StatusConcluido}

type Appointment struct {
    gorm.Model
    ClientName      string    `gorm:"size:255;not null" json:"client_name"`
    ClientEmail     string    `gorm:"size:255;not null" json:"client_email"`
    ClientPhone     string    `gorm:"size:50" json:"client_phone"`
    Date            time.Time `gorm:"type:date;not null;index" json:"date"`
    Time            string    `gorm:"size:5;not null" json:"time"`
    DurationMinutes int       `gorm:"not null;default:60" json:"duration_minutes"`
    Modality        string    `gorm:"size:20;not null;default:presencial" json:"modality"`
    Status          string    `gorm:"size:20;not null;default:pendente;index" json:"status"`
    ExternalEventID string    `gorm:"size:255" json:"external_event_id,omitempty"`
    Subject         string    `gorm:"size:255" json:"subject,omitempty"`
    Notes           string    `gorm:"type:text" json:"notes,omitempty"`
}

// StartsAt combines the date column and the HH:mm time column into a
// wall-clock instant in the practice timezone.
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
    t, err := time.Parse("15:04", a.Time)
    if err != nil {
        t = time.Time{}
    }
    return time.Date(a.Date.Year(), a.Date.Month(), a.Date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// EndsAt is StartsAt plus the appointment duration.
func (a *Appointment) EndsAt(loc *time.Location) time.Time {
    return a.StartsAt(loc).Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func ValidStatus(s string) bool {
    switch s {
    case StatusPendente, StatusConfirmado, StatusCancelado, StatusConcluido:
        return true
    }
    return false
}

func ValidModality(m string) bool {
    return m == ModalityPresencial || m == ModalityOnline
}
