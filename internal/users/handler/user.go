package handler

import (
	"encoding/json"
	"net/http"

	"reservo/internal/users/service"
	httputil "reservo/pkg/http"
	"reservo/pkg/logger"
	"reservo/pkg/middleware"
	"reservo/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type UserHandler struct {
	service service.UserService
	log     *logger.Logger
}

func NewUserHandler(service service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		log:     log,
	}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var reg model.UserRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Register", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	user, err := h.service.Register(r.Context(), &reg)
	if err != nil {
		h.writeError(w, "Register", err)
		return
	}

	if err := httputil.WriteCreated(w, user); err != nil {
		h.log.Error("failed to write created response", "handler", "Register", "operation", "WriteCreated", "error", err)
	}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := h.requireIdentity(w, "GetProfile", r)
	if !ok {
		return
	}

	user, err := h.service.GetByID(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, "GetProfile", err)
		return
	}

	if err := httputil.WriteSuccess(w, user); err != nil {
		h.log.Error("failed to write success response", "handler", "GetProfile", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := h.requireIdentity(w, "UpdateProfile", r)
	if !ok {
		return
	}

	var update model.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "UpdateProfile", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), identity.UserID, &update)
	if err != nil {
		h.writeError(w, "UpdateProfile", err)
		return
	}

	if err := httputil.WriteSuccess(w, user); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateProfile", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := h.requireIdentity(w, "ChangePassword", r)
	if !ok {
		return
	}

	var change model.PasswordChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "ChangePassword", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.ChangePassword(r.Context(), identity.UserID, &change); err != nil {
		h.writeError(w, "ChangePassword", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !h.requireAdmin(w, "GetByID", r) {
		return
	}

	id := ps.ByName("id")

	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, user); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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

func (h *UserHandler) requireAdmin(w http.ResponseWriter, handlerName string, r *http.Request) bool {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		if err := httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
			Error: "Authentication required",
		}); err != nil {
			h.log.Error("failed to write JSON response", "handler", handlerName, "operation", "WriteJSON", "error", err)
		}
		return false
	}
	if identity.Role != model.RoleAdmin {
		if err := httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{
			Error: "Only administrators can manage other users",
		}); err != nil {
			h.log.Error("failed to write JSON response", "handler", handlerName, "operation", "WriteJSON", "error", err)
		}
		return false
	}
	return true
}

func (h *UserHandler) requireIdentity(w http.ResponseWriter, handlerName string, r *http.Request) (*middleware.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		if err := httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
			Error: "Authentication required",
		}); err != nil {
			h.log.Error("failed to write JSON response", "handler", handlerName, "operation", "WriteJSON", "error", err)
		}
		return nil, false
	}
	return identity, true
}

func (h *UserHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "operation", "WriteError", "error", writeErr)
	}
}

func (h *UserHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/users/register", h.Register)
	router.GET("/api/v1/users/me", h.GetProfile)
	router.PATCH("/api/v1/users/me", h.UpdateProfile)
	router.PUT("/api/v1/users/me/password", h.ChangePassword)
	router.GET("/api/v1/users/id/:id", h.GetByID)
	router.DELETE("/api/v1/users/id/:id", h.Delete)
}
