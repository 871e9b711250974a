package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"reservo/internal/reservations/service"
	apperrors "reservo/pkg/errors"
	httputil "reservo/pkg/http"
	"reservo/pkg/logger"
	"reservo/pkg/middleware"
	"reservo/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, "Create", apperrors.Unauthorized("Authentication required"))
		return
	}

	var req model.ReservationCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	reservation, err := h.service.Create(r.Context(), identity.UserID, &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	reservation, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	query := r.URL.Query()

	var reservations []*model.Reservation
	var total int64

	switch {
	case query.Get("facility_id") != "":
		reservations, total, err = h.service.GetByFacility(r.Context(), query.Get("facility_id"), limit, offset)
	case query.Get("user_id") != "":
		reservations, total, err = h.service.GetByUser(r.Context(), query.Get("user_id"), limit, offset)
	case query.Get("status") != "":
		reservations, total, err = h.service.GetByStatus(r.Context(), query.Get("status"), limit, offset)
	default:
		reservations, total, err = h.service.GetAll(r.Context(), limit, offset)
	}
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) CheckAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	facilityID := query.Get("facility_id")
	startStr := query.Get("start_time")
	endStr := query.Get("end_time")
	excludeID := query.Get("exclude_id")

	if facilityID == "" || startStr == "" || endStr == "" {
		h.writeError(w, "CheckAvailability",
			apperrors.InvalidInput("'facility_id', 'start_time' and 'end_time' query parameters are required"))
		return
	}

	startTime, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		h.writeError(w, "CheckAvailability", apperrors.InvalidInput("invalid start_time format, must be RFC3339"))
		return
	}

	endTime, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		h.writeError(w, "CheckAvailability", apperrors.InvalidInput("invalid end_time format, must be RFC3339"))
		return
	}

	available, err := h.service.CheckAvailability(r.Context(), facilityID, startTime, endTime, excludeID)
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, map[string]any{
		"facility_id": facilityID,
		"start_time":  startTime,
		"end_time":    endTime,
		"available":   available,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, "UpdateStatus", apperrors.Unauthorized("Authentication required"))
		return
	}
	if identity.Role != model.RoleAdmin {
		h.writeError(w, "UpdateStatus", apperrors.Forbidden("Only administrators can change reservation status"))
		return
	}

	id := ps.ByName("id")

	var update model.ReservationStatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "UpdateStatus", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	reservation, err := h.service.UpdateStatus(r.Context(), id, &update)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, "Delete", apperrors.Unauthorized("Authentication required"))
		return
	}

	id := ps.ByName("id")

	// Non-admins may only remove their own reservations.
	if identity.Role != model.RoleAdmin {
		reservation, err := h.service.GetByID(r.Context(), id)
		if err != nil {
			h.writeError(w, "Delete", err)
			return
		}
		if reservation.UserID != identity.UserID {
			h.writeError(w, "Delete", apperrors.Forbidden("You can only delete your own reservations"))
			return
		}
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations", h.GetAll)
	router.GET("/api/v1/reservations/availability", h.CheckAvailability)
	router.GET("/api/v1/reservations/id/:id", h.GetByID)
	router.PATCH("/api/v1/reservations/id/:id/status", h.UpdateStatus)
	router.DELETE("/api/v1/reservations/id/:id", h.Delete)
}
