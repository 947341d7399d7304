package rest

import (
	"encoding/json"
	"net/http"

	"github.com/CarLinkRent/CarLinkRent/internal/availability"
	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
	"github.com/CarLinkRent/CarLinkRent/internal/notification"
)

type blockView struct {
	ID            uint   `json:"id"`
	VehicleID     uint   `json:"vehicle_id"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	Origin        string `json:"origin"`
	ReservationID *uint  `json:"reservation_id,omitempty"`
}

func toBlockView(e *availability.Entry) blockView {
	start, end := e.Range().Format()
	return blockView{
		ID:            e.ID,
		VehicleID:     e.VehicleID,
		StartDate:     start,
		EndDate:       end,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		Origin:        string(e.Origin),
		ReservationID: e.ReservationID,
	}
}

type blockRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

func (h *Handler) listBlocks(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	entries, err := h.ledger.ListBlocksForVehicle(r.Context(), vehicleID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	views := make([]blockView, 0, len(entries))
	for i := range entries {
		views = append(views, toBlockView(&entries[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) addBlock(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, apperr.InvalidInputf("invalid json body"))
		return
	}
	rng, err := availability.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	e, err := h.ledger.AddManualBlock(r.Context(), vehicleID, rng, availability.BlockOptions{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlockView(e))
}

func (h *Handler) updateBlock(w http.ResponseWriter, r *http.Request) {
	blockID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, apperr.InvalidInputf("invalid json body"))
		return
	}
	rng, err := availability.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	e, err := h.ledger.UpdateManualBlock(r.Context(), blockID, rng, availability.BlockOptions{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toBlockView(e))
}

func (h *Handler) deleteBlock(w http.ResponseWriter, r *http.Request) {
	blockID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.ledger.DeleteManualBlock(r.Context(), blockID); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rt := notification.Recipient(q.Get("recipient_type"))
	if rt != notification.RecipientAdmin && rt != notification.RecipientProvider && rt != notification.RecipientClient {
		writeError(w, h.log, apperr.InvalidInputf("invalid recipient_type: %q", q.Get("recipient_type")))
		return
	}
	recipientID, ok := queryUint(q.Get("recipient_id"))
	if !ok {
		writeError(w, h.log, apperr.InvalidInputf("invalid recipient_id"))
		return
	}
	offset, _ := queryInt(q.Get("offset"))
	limit, _ := queryInt(q.Get("limit"))

	notes, total, err := h.notes.ListForRecipient(r.Context(), rt, recipientID, offset, limit)
	if err != nil {
		writeError(w, h.log, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total": total,
		"items": notes,
	})
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.notes.MarkRead(r.Context(), id); err != nil {
		writeError(w, h.log, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
