package server

import (
	"strconv"

	"github.com/Digital-Creators-Team/prize-wheel-module/auth"
	"github.com/Digital-Creators-Team/prize-wheel-module/errors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WheelHandler handles HTTP requests for the prize wheel
//
// Flow: HTTP Request -> wheelRoutes -> WheelHandler -> SpinService -> wheel engine
//
// Responsibilities:
// - Extract user info from JWT token
// - Validate request parameters
// - Call SpinService for business logic
// - Format and return HTTP responses
//
// Selection and commit logic lives in the wheel package, not here.
type WheelHandler struct {
	app    *App
	logger zerolog.Logger
}

// NewWheelHandler creates a new wheel handler
func NewWheelHandler(app *App) *WheelHandler {
	return &WheelHandler{
		app:    app,
		logger: app.logger.With().Str("handler", "wheel").Logger(),
	}
}

// extractUserID extracts user ID from gin context
func (h *WheelHandler) extractUserID(c *gin.Context) (string, error) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return "", errors.New(errors.ErrUnauthorized, "user_id not found in context")
	}
	return userID, nil
}

// Spin godoc
// @Summary      Spin the prize wheel
// @Description  Runs one spin against the live campaign: checks eligibility, selects a segment under budget pacing, commits the outcome atomically, and credits the prize
// @Tags         wheel
// @Accept       json
// @Produce      json
// @Success      200  {object}  BaseResponse{data=wheel.SpinResult}
// @Failure      401  {object}  BaseResponse
// @Failure      409  {object}  BaseResponse
// @Failure      429  {object}  BaseResponse
// @Failure      503  {object}  BaseResponse
// @Security     BearerAuth
// @Router       /wheel/spin [post]
func (h *WheelHandler) Spin(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := h.extractUserID(c)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to extract user ID")
		Unauthorized(c, errors.New(errors.ErrUnauthorized, "Invalid or missing authentication token"))
		return
	}

	result, err := h.app.spinService.Spin(ctx, userID)
	if err != nil {
		h.logger.Warn().Err(err).
			Str("user_id", userID).
			Msg("Spin rejected")
		HandleAppError(c, err)
		return
	}

	OK(c, result)
}

// GetState godoc
// @Summary      Get wheel state
// @Description  Returns the segment layout plus the caller's spin entitlement, banked bonus spins, and the cap reset time
// @Tags         wheel
// @Accept       json
// @Produce      json
// @Success      200  {object}  BaseResponse{data=wheel.WheelState}
// @Failure      401  {object}  BaseResponse
// @Failure      503  {object}  BaseResponse
// @Security     BearerAuth
// @Router       /wheel/state [get]
func (h *WheelHandler) GetState(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := h.extractUserID(c)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to extract user ID")
		Unauthorized(c, errors.New(errors.ErrUnauthorized, "Invalid or missing authentication token"))
		return
	}

	state, err := h.app.spinService.State(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).
			Str("user_id", userID).
			Msg("Failed to get wheel state")
		HandleAppError(c, err)
		return
	}

	OK(c, state)
}

// GetHistory godoc
// @Summary      Get spin history
// @Description  Returns the caller's most recent spins against the live campaign, newest first
// @Tags         wheel
// @Accept       json
// @Produce      json
// @Param        limit   query     int  false  "Max records to return (default 20, max 100)"
// @Success      200  {object}  BaseResponse{data=[]wheel.SpinRecord}
// @Failure      401  {object}  BaseResponse
// @Failure      503  {object}  BaseResponse
// @Security     BearerAuth
// @Router       /wheel/history [get]
func (h *WheelHandler) GetHistory(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := h.extractUserID(c)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to extract user ID")
		Unauthorized(c, errors.New(errors.ErrUnauthorized, "Invalid or missing authentication token"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			BadRequest(c, errors.New(errors.ErrInvalidRequest, "limit must be a non-negative integer"))
			return
		}
	}

	records, err := h.app.spinService.History(ctx, userID, limit)
	if err != nil {
		h.logger.Error().Err(err).
			Str("user_id", userID).
			Msg("Failed to get spin history")
		HandleAppError(c, err)
		return
	}

	OK(c, records)
}
