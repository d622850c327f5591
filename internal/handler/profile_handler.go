package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wastewatch-api/internal/dto"
	"github.com/noah-isme/wastewatch-api/internal/middleware"
	"github.com/noah-isme/wastewatch-api/pkg/response"
)

type profileService interface {
	GetCurrent(ctx context.Context) (*dto.ProfileSnapshot, error)
	Update(ctx context.Context, req dto.UpdateProfileRequest) error
	UpdateWithImage(ctx context.Context, req dto.UpdateProfileRequest, upload dto.ImageUpload) error
	Leaderboard(ctx context.Context) ([]dto.LeaderboardEntry, bool, error)
}

// ProfileHandler exposes profile and leaderboard endpoints.
type ProfileHandler struct {
	profiles profileService
}

// NewProfileHandler builds a new handler.
func NewProfileHandler(profiles profileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Me godoc
// @Summary Current caller's profile
// @Description Anonymous callers get null data. Callers without a stored profile get an unsaved default.
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /profiles/me [get]
func (h *ProfileHandler) Me(c *gin.Context) {
	snapshot, err := h.profiles.GetCurrent(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if snapshot == nil {
		response.OK(c, nil)
		return
	}
	response.OK(c, snapshot)
}

// Update godoc
// @Summary Update the caller's display name and image
// @Tags Profiles
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param payload body dto.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /profiles/me [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if !isMultipart(c) {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, invalidPayload(err))
			return
		}
		if err := h.profiles.Update(c.Request.Context(), req); err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, nil)
		return
	}

	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	upload, file, err := imageFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if upload == nil {
		err = h.profiles.Update(c.Request.Context(), req)
	} else {
		defer file.Close() //nolint:errcheck
		err = h.profiles.UpdateWithImage(c.Request.Context(), req, *upload)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil)
}

// Leaderboard godoc
// @Summary Top contributors ranked by number of reports
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /leaderboard [get]
func (h *ProfileHandler) Leaderboard(c *gin.Context) {
	entries, hit, err := h.profiles.Leaderboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, entries, middleware.ExtractMeta(c))
}
