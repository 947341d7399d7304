package rest

import (
	"net/http"
	"strconv"

	"github.com/CarLinkRent/CarLinkRent/internal/availability"
	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
	"github.com/CarLinkRent/CarLinkRent/internal/vehicle"
)

type vehicleView struct {
	ID            uint    `json:"id"`
	Brand         string  `json:"brand"`
	Model         string  `json:"model"`
	Year          int     `json:"year,omitempty"`
	UnitPriceHT   float64 `json:"unit_price_ht"`
	Discount      float64 `json:"discount"`
	WithInsurance bool    `json:"with_insurance"`
	Seats         int     `json:"seats"`
	Fuel          string  `json:"fuel,omitempty"`
	Transmission  string  `json:"transmission,omitempty"`
	AgencyID      uint    `json:"agency_id"`
	Status        string  `json:"status"`
}

func toVehicleView(v *vehicle.Vehicle) vehicleView {
	return vehicleView{
		ID:            v.ID,
		Brand:         v.Brand,
		Model:         v.Model,
		Year:          v.Year,
		UnitPriceHT:   v.UnitPriceHT,
		Discount:      v.Discount,
		WithInsurance: v.WithInsurance,
		Seats:         v.Seats,
		Fuel:          v.Fuel,
		Transmission:  v.Transmission,
		AgencyID:      v.AgencyID,
		Status:        string(v.Status),
	}
}

// searchVehicles 搜索给定日期段内可租的车辆，按日租金升序。
func (h *Handler) searchVehicles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rng, err := availability.ParseDateRange(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	f := vehicle.SearchFilter{
		Brand:        q.Get("brand"),
		Transmission: q.Get("transmission"),
	}
	if v, ok := queryUint(q.Get("category_id")); ok {
		f.CategoryID = &v
	}
	if v, ok := queryUint(q.Get("provider_id")); ok {
		f.ProviderID = &v
	}
	if v, ok := queryInt(q.Get("seats")); ok {
		f.Seats = &v
	}
	if raw := q.Get("with_insurance"); raw != "" {
		b := raw == "true" || raw == "1"
		f.WithInsurance = &b
	}
	if v, ok := queryFloat(q.Get("price_min")); ok {
		f.PriceMin = &v
	}
	if v, ok := queryFloat(q.Get("price_max")); ok {
		f.PriceMax = &v
	}
	if v, ok := queryInt(q.Get("driver_age_min")); ok {
		f.DriverAgeMin = &v
	}
	if v, ok := queryInt(q.Get("driver_age_max")); ok {
		f.DriverAgeMax = &v
	}

	vehicles, err := h.vehicles.SearchBookable(r.Context(), rng, f)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	views := make([]vehicleView, 0, len(vehicles))
	for i := range vehicles {
		views = append(views, toVehicleView(&vehicles[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) validateVehicle(w http.ResponseWriter, r *http.Request) {
	h.reviewVehicle(w, r, true)
}

func (h *Handler) rejectVehicle(w http.ResponseWriter, r *http.Request) {
	h.reviewVehicle(w, r, false)
}

func (h *Handler) reviewVehicle(w http.ResponseWriter, r *http.Request, accepted bool) {
	vehicleID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var adminID uint
	if p, ok := principalFrom(r); ok && p.IsAdmin() {
		adminID = p.ID
	}

	var v *vehicle.Vehicle
	if accepted {
		v, err = h.vehicles.Validate(r.Context(), adminID, vehicleID)
	} else {
		v, err = h.vehicles.Reject(r.Context(), adminID, vehicleID)
	}
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleView(v))
}

func (h *Handler) runReminderJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, h.log, apperr.NotFoundf("reminder jobs not configured"))
		return
	}
	now := h.now()
	created, err := h.jobs.GenerateDueReminders(r.Context(), now)
	if err != nil {
		writeError(w, h.log, apperr.Internal(err))
		return
	}
	purged, err := h.jobs.PurgeStaleData(r.Context(), now)
	if err != nil {
		writeError(w, h.log, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"reminders_created": int64(created),
		"read_expired":      purged.ReadExpired,
		"orphaned_notifs":   purged.Orphaned,
	})
}

func queryUint(raw string) (uint, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}

func queryInt(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func queryFloat(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
