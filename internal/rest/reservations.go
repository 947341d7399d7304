package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/CarLinkRent/CarLinkRent/internal/availability"
	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
	"github.com/CarLinkRent/CarLinkRent/internal/common/auth"
	"github.com/CarLinkRent/CarLinkRent/internal/common/server"
	"github.com/CarLinkRent/CarLinkRent/internal/reservation"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type reservationView struct {
	Reference      string  `json:"reference"`
	VehicleID      uint    `json:"vehicle_id"`
	ClientID       uint    `json:"client_id"`
	ProviderID     uint    `json:"provider_id"`
	PickupAgencyID uint    `json:"pickup_agency_id"`
	ReturnAgencyID uint    `json:"return_agency_id"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	StartTime      string  `json:"start_time,omitempty"`
	EndTime        string  `json:"end_time,omitempty"`
	TotalHT        float64 `json:"total_ht"`
	VAT            float64 `json:"vat"`
	TotalTTC       float64 `json:"total_ttc"`
	Status         string  `json:"status"`
}

func toReservationView(res *reservation.Reservation) reservationView {
	start, end := availability.DateRange{Start: res.StartDate, End: res.EndDate}.Format()
	return reservationView{
		Reference:      res.Reference,
		VehicleID:      res.VehicleID,
		ClientID:       res.ClientID,
		ProviderID:     res.ProviderID,
		PickupAgencyID: res.PickupAgencyID,
		ReturnAgencyID: res.ReturnAgencyID,
		StartDate:      start,
		EndDate:        end,
		StartTime:      res.StartTime,
		EndTime:        res.EndTime,
		TotalHT:        res.TotalHT,
		VAT:            res.VAT,
		TotalTTC:       res.TotalTTC,
		Status:         string(res.Status),
	}
}

type createReservationRequest struct {
	VehicleID      uint     `json:"vehicle_id"`
	ClientID       uint     `json:"client_id,omitempty"` // 仅在鉴权关闭时生效
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	StartTime      string   `json:"start_time,omitempty"`
	EndTime        string   `json:"end_time,omitempty"`
	Discount       *float64 `json:"discount,omitempty"`
	ReturnAgencyID *uint    `json:"return_agency_id,omitempty"`
}

func (h *Handler) createReservation(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, apperr.InvalidInputf("invalid json body"))
		return
	}

	clientID := req.ClientID
	if p, ok := principalFrom(r); ok && p.IsClient() {
		clientID = p.ID
	}
	if clientID == 0 {
		writeError(w, h.log, apperr.InvalidInputf("client_id is required"))
		return
	}

	rng, err := availability.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	res, err := h.reservations.Create(r.Context(), clientID, reservation.CreateInput{
		VehicleID:      req.VehicleID,
		Range:          rng,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Discount:       req.Discount,
		ReturnAgencyID: req.ReturnAgencyID,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationView(res))
}

func (h *Handler) getReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.GetByReference(r.Context(), mux.Vars(r)["reference"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationView(res))
}

type modifyReservationRequest struct {
	Email     string `json:"email,omitempty"` // 仅在鉴权关闭时生效
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (h *Handler) modifyReservation(w http.ResponseWriter, r *http.Request) {
	var req modifyReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, apperr.InvalidInputf("invalid json body"))
		return
	}

	rng, err := availability.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	res, err := h.reservations.Modify(r.Context(), mux.Vars(r)["reference"], h.callerEmail(r, req.Email), rng)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationView(res))
}

func (h *Handler) cancelReservation(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	res, err := h.reservations.Cancel(r.Context(), mux.Vars(r)["reference"], h.callerEmail(r, email))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationView(res))
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.GetByReference(r.Context(), mux.Vars(r)["reference"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	inv, err := h.invoices.FindByReservation(r.Context(), res.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, h.log, apperr.NotFoundf("invoice not found for reservation %s", res.Reference))
		return
	}
	if err != nil {
		writeError(w, h.log, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reference":    inv.Reference,
		"invoice_date": inv.InvoiceDate.Format("2006-01-02"),
		"total_ht":     inv.TotalHT,
		"vat":          inv.VAT,
		"total_ttc":    inv.TotalTTC,
		"reservation":  res.Reference,
	})
}

func (h *Handler) providerReservations(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var out []reservation.Reservation
	switch r.URL.Query().Get("scope") {
	case "current":
		out, err = h.resRepo.ListCurrentByProvider(r.Context(), providerID, h.now())
	case "future":
		out, err = h.resRepo.ListFutureByProvider(r.Context(), providerID, h.now())
	default:
		out, err = h.resRepo.ListByProvider(r.Context(), providerID)
	}
	if err != nil {
		writeError(w, h.log, apperr.Internal(err))
		return
	}

	views := make([]reservationView, 0, len(out))
	for i := range out {
		views = append(views, toReservationView(&out[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) providerStats(w http.ResponseWriter, r *http.Request) {
	providerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	stats, err := h.resRepo.StatsByProvider(r.Context(), providerID)
	if err != nil {
		writeError(w, h.log, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"total":     stats.Total,
		"pending":   stats.Pending,
		"confirmed": stats.Confirmed,
		"cancelled": stats.Cancelled,
	})
}

// principalFrom 从中间件放入 ctx 的鉴权信息构造调用方身份。
func principalFrom(r *http.Request) (auth.Principal, bool) {
	ai, ok := server.AuthFromContext(r.Context())
	if !ok {
		return auth.Principal{}, false
	}
	p, err := auth.NewPrincipal(ai.Subject, ai.Email, ai.Roles)
	if err != nil {
		return auth.Principal{}, false
	}
	return p, true
}

// callerEmail 归属检查用的邮箱：优先取 token 里的，鉴权关闭时退回请求里的。
func (h *Handler) callerEmail(r *http.Request, fallback string) string {
	if p, ok := principalFrom(r); ok && p.Email != "" {
		return p.Email
	}
	return fallback
}

func pathID(r *http.Request, key string) (uint, error) {
	raw := mux.Vars(r)[key]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.InvalidInputf("invalid %s: %q", key, raw)
	}
	return uint(id), nil
}
