package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"reservo/internal/facilities/service"
	apperrors "reservo/pkg/errors"
	httputil "reservo/pkg/http"
	"reservo/pkg/logger"
	"reservo/pkg/middleware"
	"reservo/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type FacilityHandler struct {
	service service.FacilityService
	log     *logger.Logger
}

func NewFacilityHandler(service service.FacilityService, log *logger.Logger) *FacilityHandler {
	return &FacilityHandler{
		service: service,
		log:     log,
	}
}

func (h *FacilityHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !h.requireAdmin(w, "Create", r) {
		return
	}

	var facility model.Facility
	if err := json.NewDecoder(r.Body).Decode(&facility); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), &facility); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, facility); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *FacilityHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	facility, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, facility); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *FacilityHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	facilities, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, facilities, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *FacilityHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	query := r.URL.Query()
	name := query.Get("name")
	location := query.Get("location")

	minCapacity := 0
	if capStr := query.Get("min_capacity"); capStr != "" {
		minCapacity, err = strconv.Atoi(capStr)
		if err != nil || minCapacity < 0 {
			h.writeError(w, "Search", apperrors.InvalidInput("invalid min_capacity parameter: "+capStr))
			return
		}
	}

	facilities, total, err := h.service.Search(r.Context(), name, location, minCapacity, limit, offset)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	if err := httputil.WritePaginated(w, facilities, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Search", "operation", "WritePaginated", "error", err)
	}
}

func (h *FacilityHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.requireAdmin(w, "Update", r) {
		return
	}

	id := ps.ByName("id")

	var updates model.FacilityUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	facility, err := h.service.Update(r.Context(), id, &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, facility); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *FacilityHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.requireAdmin(w, "Delete", r) {
		return
	}

	id := ps.ByName("id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *FacilityHandler) requireAdmin(w http.ResponseWriter, handlerName string, r *http.Request) bool {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, handlerName, apperrors.Unauthorized("Authentication required"))
		return false
	}
	if identity.Role != model.RoleAdmin {
		h.writeError(w, handlerName, apperrors.Forbidden("Only administrators can manage facilities"))
		return false
	}
	return true
}

func (h *FacilityHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "operation", "WriteError", "error", writeErr)
	}
}

func (h *FacilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/facilities", h.Create)
	router.GET("/api/v1/facilities", h.GetAll)
	router.GET("/api/v1/facilities/search", h.Search)
	router.GET("/api/v1/facilities/id/:id", h.GetByID)
	router.PATCH("/api/v1/facilities/id/:id", h.Update)
	router.DELETE("/api/v1/facilities/id/:id", h.Delete)
}
