package api

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/nmoreira/consultorio-server/service/appointment"
	"github.com/nmoreira/consultorio-server/service/availability"
	"github.com/nmoreira/consultorio-server/service/calendar"
	"github.com/nmoreira/consultorio-server/service/notification"
	"github.com/nmoreira/consultorio-server/service/scheduler"
	"github.com/nmoreira/consultorio-server/service/settings"
	"gorm.io/gorm"
)

type APIServer struct {
	address   string
	db        *gorm.DB
	settings  *settings.Store
	calendar  *calendar.Service
	dispatch  *notification.Dispatcher
	reminders *scheduler.ReminderScheduler
	mailer    *notification.Mailer
}

func NewApiServer(address string, db *gorm.DB, store *settings.Store, cal *calendar.Service, dispatch *notification.Dispatcher, reminders *scheduler.ReminderScheduler, mailer *notification.Mailer) *APIServer {
	return &APIServer{
		address:   address,
		db:        db,
		settings:  store,
		calendar:  cal,
		dispatch:  dispatch,
		reminders: reminders,
		mailer:    mailer,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	resolver := availability.NewResolver(s.db, s.settings, s.calendar)
	availabilityHandler := availability.NewAvailabilityHandler(s.db, resolver)
	availabilityHandler.RegisterRoutes(subrouter)

	ledger := appointment.NewLedger(s.db, s.settings)
	appointmentHandler := appointment.NewAppointmentHandler(s.db, ledger, s.dispatch, s.calendar, s.reminders, s.mailer)
	appointmentHandler.RegisterRoutes(subrouter)

	settingsHandler := settings.NewSettingsHandler(s.settings, s.calendar)
	settingsHandler.RegisterRoutes(subrouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, handlers.CombinedLoggingHandler(os.Stdout, cors(router)))
}
