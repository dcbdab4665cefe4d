package availability

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nmoreira/consultorio-server/cmd/models"
	"github.com/nmoreira/consultorio-server/cmd/utils"
	"gorm.io/gorm"
)

// fallbackSlots is served when slot computation is impossible (storage
// unreachable): the public form keeps working with a conservative list
// and the booking ledger still re-validates everything.
var fallbackSlots = []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}

type AvailabilityHandler struct {
	db       *gorm.DB
	resolver *Resolver
}

func NewAvailabilityHandler(db *gorm.DB, resolver *Resolver) *AvailabilityHandler {
	return &AvailabilityHandler{db: db, resolver: resolver}
}

func (h *AvailabilityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/availability/slots", h.GetAvailableSlots).Methods("GET")

	router.HandleFunc("/availability/rules", utils.AuthMiddleware(h.UpsertRule)).Methods("POST")
	router.HandleFunc("/availability/rules", utils.AuthMiddleware(h.GetRules)).Methods("GET")
	router.HandleFunc("/availability/blocked-dates", utils.AuthMiddleware(h.CreateBlockedDate)).Methods("POST")
	router.HandleFunc("/availability/blocked-dates", utils.AuthMiddleware(h.GetBlockedDates)).Methods("GET")
	router.HandleFunc("/availability/blocked-dates/{date}", utils.AuthMiddleware(h.DeleteBlockedDate)).Methods("DELETE")
}

type slotEntry struct {
	Time string `json:"time"`
}

// GetAvailableSlots is the public slot listing for the booking form.
func (h *AvailabilityHandler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	times, err := h.resolver.SlotsForDate(date)
	if err != nil {
		log.Printf("availability: error computing slots for %s, serving fallback: %v", dateStr, err)
		times = fallbackSlots
	}

	slots := make([]slotEntry, 0, len(times))
	for _, t := range times {
		slots = append(slots, slotEntry{Time: t})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"date":  dateStr,
		"slots": slots,
	})
}

// UpsertRule writes the weekly rule for one weekday, last write wins.
func (h *AvailabilityHandler) UpsertRule(w http.ResponseWriter, r *http.Request) {
	var input models.AvailabilityRule
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if input.DayOfWeek < 0 || input.DayOfWeek > 6 {
		http.Error(w, "day_of_week must be between 0 and 6", http.StatusBadRequest)
		return
	}
	start, err := parseHM(input.StartTime)
	if err != nil {
		http.Error(w, "Invalid start_time. Use HH:mm", http.StatusBadRequest)
		return
	}
	end, err := parseHM(input.EndTime)
	if err != nil {
		http.Error(w, "Invalid end_time. Use HH:mm", http.StatusBadRequest)
		return
	}
	if end <= start {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}
	if input.SlotDurationMinutes <= 0 {
		input.SlotDurationMinutes = defaultSlotMinutes
	}

	var rule models.AvailabilityRule
	err = h.db.Where("day_of_week = ?", input.DayOfWeek).First(&rule).Error
	if err == gorm.ErrRecordNotFound {
		rule = input
		err = h.db.Create(&rule).Error
	} else if err == nil {
		rule.StartTime = input.StartTime
		rule.EndTime = input.EndTime
		rule.SlotDurationMinutes = input.SlotDurationMinutes
		rule.IsAvailable = input.IsAvailable
		err = h.db.Save(&rule).Error
	}

	if err != nil {
		http.Error(w, "Error saving availability rule", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rule)
}

func (h *AvailabilityHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	var rules []models.AvailabilityRule
	if err := h.db.Order("day_of_week").Find(&rules).Error; err != nil {
		http.Error(w, "Error retrieving availability rules", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rules)
}

func (h *AvailabilityHandler) CreateBlockedDate(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Date   string `json:"date"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	blocked := models.BlockedDate{Date: date, Reason: input.Reason}
	if err := h.db.Create(&blocked).Error; err != nil {
		http.Error(w, "Error creating blocked date", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(blocked)
}

func (h *AvailabilityHandler) GetBlockedDates(w http.ResponseWriter, r *http.Request) {
	query := h.db.Model(&models.BlockedDate{})
	if from := r.URL.Query().Get("start_date"); from != "" {
		query = query.Where("date >= ?", from)
	}
	if to := r.URL.Query().Get("end_date"); to != "" {
		query = query.Where("date <= ?", to)
	}

	var blocked []models.BlockedDate
	if err := query.Order("date").Find(&blocked).Error; err != nil {
		http.Error(w, "Error retrieving blocked dates", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(blocked)
}

func (h *AvailabilityHandler) DeleteBlockedDate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	date, err := time.Parse("2006-01-02", vars["date"])
	if err != nil {
		http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	// Hard delete: a soft-deleted row would still hold the unique index
	// and block re-adding the same date later.
	result := h.db.Unscoped().Where("date = ?", date.Format("2006-01-02")).Delete(&models.BlockedDate{})
	if result.Error != nil {
		http.Error(w, "Error deleting blocked date", http.StatusInternalServerError)
		return
	}
	if result.RowsAffected == 0 {
		http.Error(w, "Blocked date not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Blocked date removed successfully",
	})
}
