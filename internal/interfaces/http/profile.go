package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"gastos/internal/domain/profile"
	"gastos/internal/shared/middleware"
)

type ProfileHandler struct {
	service *profile.Service
	log     logrus.FieldLogger
}

func NewProfileHandler(service *profile.Service, log logrus.FieldLogger) *ProfileHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ProfileHandler{
		service: service,
		log:     log.WithField("component", "profile_handler"),
	}
}

// ProfileResponse is the signed-in user together with their profile, which
// is null until one has been saved.
type ProfileResponse struct {
	UserID  string           `json:"userId"`
	Email   string           `json:"email"`
	Profile *profile.Profile `json:"profile"`
}

// HandleGet returns the caller's profile. A first visit creates it from the
// sign-up metadata in the token.
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	p, err := h.service.EnsureFromMetadata(ctx, userID, middleware.UserMetadata(ctx))
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("Load profile failed")
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{
		UserID:  userID,
		Email:   middleware.Email(ctx),
		Profile: p,
	})
}

// HandlePut replaces the caller's profile.
func (h *ProfileHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := h.service.Save(ctx, userID, req)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("Save profile failed")
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{
		UserID:  userID,
		Email:   middleware.Email(ctx),
		Profile: &saved,
	})
}

func (h *ProfileHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, profile.ErrUserIDRequired) {
		status = http.StatusUnauthorized
	}
	http.Error(w, err.Error(), status)
}
