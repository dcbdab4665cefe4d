package settings

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/nmoreira/consultorio-server/cmd/utils"
)

// Invalidator lets dependents (the calendar adapter) drop their cached
// view when settings change.
type Invalidator interface {
	Invalidate()
}

type SettingsHandler struct {
	store      *Store
	dependents []Invalidator
}

func NewSettingsHandler(store *Store, dependents ...Invalidator) *SettingsHandler {
	return &SettingsHandler{store: store, dependents: dependents}
}

func (h *SettingsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/settings", utils.AuthMiddleware(h.GetSettings)).Methods("GET")
	router.HandleFunc("/settings/availability", utils.AuthMiddleware(h.UpdateAvailability)).Methods("PUT")
	router.HandleFunc("/settings/calendar", utils.AuthMiddleware(h.UpdateCalendar)).Methods("PUT")
}

func (h *SettingsHandler) invalidateDependents() {
	for _, dep := range h.dependents {
		dep.Invalidate()
	}
}

// GetSettings returns the scheduling settings. Calendar credentials are
// reported as configured/not configured, never echoed back.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"availability_overrides": h.store.AvailabilityOverrides(),
		"slot_interval":          h.store.SlotInterval(),
		"daily_limit":            h.store.DailyLimit(),
		"calendar_configured":    h.store.CalendarConfig().Complete(),
	})
}

func (h *SettingsHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Overrides    map[string]DayOverride `json:"overrides"`
		SlotInterval *int                   `json:"slot_interval"`
		DailyLimit   *int                   `json:"daily_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if input.Overrides != nil {
		raw, err := json.Marshal(input.Overrides)
		if err != nil {
			http.Error(w, "Invalid overrides", http.StatusBadRequest)
			return
		}
		if _, err := parseOverrides(string(raw)); err != nil {
			http.Error(w, "Invalid overrides", http.StatusBadRequest)
			return
		}
		if err := h.store.Set(KeyAvailabilityOverrides, string(raw)); err != nil {
			http.Error(w, "Error saving settings", http.StatusInternalServerError)
			return
		}
	}
	if input.SlotInterval != nil {
		if err := h.store.Set(KeySlotInterval, strconv.Itoa(*input.SlotInterval)); err != nil {
			http.Error(w, "Error saving settings", http.StatusInternalServerError)
			return
		}
	}
	if input.DailyLimit != nil {
		if err := h.store.Set(KeyDailyLimit, strconv.Itoa(*input.DailyLimit)); err != nil {
			http.Error(w, "Error saving settings", http.StatusInternalServerError)
			return
		}
	}

	h.invalidateDependents()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Availability settings updated successfully",
	})
}

func (h *SettingsHandler) UpdateCalendar(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		RefreshToken string `json:"refresh_token"`
		CalendarID   string `json:"calendar_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	values := map[string]string{
		KeyCalendarClientID:     input.ClientID,
		KeyCalendarClientSecret: input.ClientSecret,
		KeyCalendarRefreshToken: input.RefreshToken,
		KeyCalendarID:           input.CalendarID,
	}
	for key, value := range values {
		if value == "" {
			continue
		}
		if err := h.store.Set(key, value); err != nil {
			http.Error(w, "Error saving settings", http.StatusInternalServerError)
			return
		}
	}

	h.invalidateDependents()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Calendar settings updated successfully",
	})
}
