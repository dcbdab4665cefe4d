package appointment

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/nmoreira/consultorio-server/cmd/models"
	"github.com/nmoreira/consultorio-server/cmd/utils"
	"gorm.io/gorm"
)

// EventSync is consumed best-effort: every method degrades to a no-op on
// failure and the booking flow never waits on it.
type EventSync interface {
	CreateEvent(appt *models.Appointment) string
	UpdateEvent(eventID string, appt *models.Appointment) bool
	CancelEvent(eventID string) bool
}

type ReminderRegistry interface {
	ScheduleReminder(id uint) error
	CancelReminder(id uint)
}

type Notifier interface {
	SendConfirmation(appt *models.Appointment) error
}

type Dispatcher interface {
	Enqueue(name string, fn func() error)
}

type AppointmentHandler struct {
	db        *gorm.DB
	ledger    *Ledger
	dispatch  Dispatcher
	calendar  EventSync
	reminders ReminderRegistry
	notifier  Notifier
}

func NewAppointmentHandler(db *gorm.DB, ledger *Ledger, dispatch Dispatcher, calendar EventSync, reminders ReminderRegistry, notifier Notifier) *AppointmentHandler {
	return &AppointmentHandler{
		db:        db,
		ledger:    ledger,
		dispatch:  dispatch,
		calendar:  calendar,
		reminders: reminders,
		notifier:  notifier,
	}
}

func (h *AppointmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/appointments", h.CreateAppointment).Methods("POST")

	router.HandleFunc("/appointments", utils.AuthMiddleware(h.ListAppointments)).Methods("GET")
	router.HandleFunc("/appointments/{id:[0-9]+}", utils.AuthMiddleware(h.GetAppointment)).Methods("GET")
	router.HandleFunc("/appointments/{id:[0-9]+}/status", utils.AuthMiddleware(h.UpdateStatus)).Methods("PATCH")
	router.HandleFunc("/appointments/{id:[0-9]+}/cancel", utils.AuthMiddleware(h.CancelAppointment)).Methods("POST")
}

// CreateAppointment is the public booking endpoint. The request succeeds
// as soon as the ledger's write is durable; email, calendar sync and
// reminder registration run as dispatched tasks afterwards.
func (h *AppointmentHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var input BookingInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := h.ledger.Create(input)
	if err != nil {
		var validation *ValidationError
		var conflict *ConflictError
		switch {
		case errors.As(err, &validation):
			http.Error(w, validation.Reason, http.StatusBadRequest)
		case errors.As(err, &conflict):
			http.Error(w, conflict.Reason, http.StatusConflict)
		default:
			log.Printf("appointment: error creating appointment: %v", err)
			http.Error(w, "Error creating appointment", http.StatusInternalServerError)
		}
		return
	}

	h.dispatchBookingEffects(appt)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(appt)
}

func (h *AppointmentHandler) dispatchBookingEffects(appt *models.Appointment) {
	created := *appt

	h.dispatch.Enqueue("confirmation-email", func() error {
		return h.notifier.SendConfirmation(&created)
	})

	h.dispatch.Enqueue("calendar-create", func() error {
		eventID := h.calendar.CreateEvent(&created)
		if eventID == "" {
			return nil
		}
		return h.db.Model(&models.Appointment{}).Where("id = ?", created.ID).
			Update("external_event_id", eventID).Error
	})

	h.dispatch.Enqueue("schedule-reminder", func() error {
		return h.reminders.ScheduleReminder(created.ID)
	})
}

func (h *AppointmentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize := 100

	query := h.db.Model(&models.Appointment{})

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if start := r.URL.Query().Get("start_date"); start != "" {
		query = query.Where("date >= ?", start)
	}
	if end := r.URL.Query().Get("end_date"); end != "" {
		query = query.Where("date <= ?", end)
	}

	var total int64
	query.Count(&total)

	var appointments []models.Appointment
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("date DESC, time DESC").Find(&appointments).Error; err != nil {
		http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"appointments": appointments,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
		"total_pages":  (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var appt models.Appointment
	if err := h.db.First(&appt, id).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appt)
}

// UpdateStatus drives the state machine from admin actions, triggering
// the side effects of each transition.
func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var input struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !models.ValidStatus(input.Status) {
		http.Error(w, "Unknown status", http.StatusBadRequest)
		return
	}

	var appt models.Appointment
	if err := h.db.First(&appt, id).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	if err := Transition(appt.Status, input.Status); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	appt.Status = input.Status
	if err := h.db.Save(&appt).Error; err != nil {
		http.Error(w, "Error updating appointment", http.StatusInternalServerError)
		return
	}

	h.dispatchTransitionEffects(&appt)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appt)
}

func (h *AppointmentHandler) dispatchTransitionEffects(appt *models.Appointment) {
	updated := *appt

	switch updated.Status {
	case models.StatusConfirmado:
		h.dispatch.Enqueue("confirmation-email", func() error {
			return h.notifier.SendConfirmation(&updated)
		})
		h.dispatch.Enqueue("calendar-sync", func() error {
			if updated.ExternalEventID != "" {
				h.calendar.UpdateEvent(updated.ExternalEventID, &updated)
				return nil
			}
			eventID := h.calendar.CreateEvent(&updated)
			if eventID == "" {
				return nil
			}
			return h.db.Model(&models.Appointment{}).Where("id = ?", updated.ID).
				Update("external_event_id", eventID).Error
		})

	case models.StatusCancelado:
		h.reminders.CancelReminder(updated.ID)
		if updated.ExternalEventID != "" {
			h.dispatch.Enqueue("calendar-cancel", func() error {
				h.calendar.CancelEvent(updated.ExternalEventID)
				return nil
			})
		}
	}
}

// CancelAppointment is the idempotent cancel: cancelling an already
// cancelled appointment is a no-op success.
func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
		return
	}

	var appt models.Appointment
	if err := h.db.First(&appt, id).Error; err != nil {
		http.Error(w, "Appointment not found", http.StatusNotFound)
		return
	}

	changed, err := h.ledger.Cancel(&appt)
	if err != nil {
		var invalid *InvalidTransitionError
		if errors.As(err, &invalid) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "Error cancelling appointment", http.StatusInternalServerError)
		return
	}

	if !changed {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"message": "Appointment already cancelled",
		})
		return
	}

	h.dispatchTransitionEffects(&appt)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Appointment cancelled successfully",
	})
}
