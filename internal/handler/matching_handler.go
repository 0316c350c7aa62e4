package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"nightlife-matching-service/internal/matching"
	"nightlife-matching-service/internal/models"
)

// Matcher is the service surface the HTTP layer depends on.
type Matcher interface {
	GetMatches(ctx context.Context, userID string, rc models.RequestContext, pool models.CandidatePool) (*models.MatchResponse, error)
	GetEntityMatches(ctx context.Context, entityID string, rc models.RequestContext, pool models.CandidatePool) (*models.MatchResponse, error)
	UpdatePreferences(ctx context.Context, userID string, update models.PreferenceUpdate) (*models.UserPreferences, error)
	GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)
	RecordInteraction(ctx context.Context, userID string, req models.CreateInteractionRequest) (*models.UserInteraction, error)
	AddConnection(ctx context.Context, userID string, req models.CreateConnectionRequest) (*models.Connection, error)
	MatchHistory(ctx context.Context, userID string, limit int) ([]models.MatchSnapshot, error)
	ListEntities(ctx context.Context, kind models.EntityKind, limit int) ([]models.Entity, error)
	UpsertEntity(ctx context.Context, rec models.EntityRecord) (models.Entity, error)
}

type MatchingHandler struct {
	svc Matcher
}

func NewMatchingHandler(svc Matcher) *MatchingHandler {
	return &MatchingHandler{svc: svc}
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// MatchRequest is the body of both match endpoints.
type MatchRequest struct {
	Context models.RequestContext `json:"context"`
	models.CandidatePool
}

// Health godoc
// GET /health
func (h *MatchingHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "nightlife-matching-service",
	})
}

// GetMatches godoc
// POST /api/v1/users/:id/matches
func (h *MatchingHandler) GetMatches(c fiber.Ctx) error {
	userID := c.Params("id")
	req, err := bindMatchRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := h.svc.GetMatches(c.Context(), userID, req.Context, req.CandidatePool)
	if err != nil {
		return respondError(c, err, "failed to compute matches", "user_id", userID)
	}
	return c.JSON(resp)
}

// GetEntityMatches godoc
// POST /api/v1/entities/:id/matches
func (h *MatchingHandler) GetEntityMatches(c fiber.Ctx) error {
	entityID := c.Params("id")
	req, err := bindMatchRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := h.svc.GetEntityMatches(c.Context(), entityID, req.Context, req.CandidatePool)
	if err != nil {
		return respondError(c, err, "failed to compute entity matches", "entity_id", entityID)
	}
	return c.JSON(resp)
}

// UpdatePreferences godoc
// PATCH /api/v1/users/:id/preferences
func (h *MatchingHandler) UpdatePreferences(c fiber.Ctx) error {
	userID := c.Params("id")
	var update models.PreferenceUpdate
	if err := c.Bind().JSON(&update); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validateStruct(&update); err != nil {
		return badRequest(c, err.Error())
	}

	pref, err := h.svc.UpdatePreferences(c.Context(), userID, update)
	if err != nil {
		return respondError(c, err, "failed to update preferences", "user_id", userID)
	}
	return c.JSON(pref)
}

// GetPreferences godoc
// GET /api/v1/users/:id/preferences
func (h *MatchingHandler) GetPreferences(c fiber.Ctx) error {
	userID := c.Params("id")
	pref, err := h.svc.GetPreferences(c.Context(), userID)
	if err != nil {
		return respondError(c, err, "failed to get preferences", "user_id", userID)
	}
	return c.JSON(pref)
}

// RecordInteraction godoc
// POST /api/v1/users/:id/interactions
func (h *MatchingHandler) RecordInteraction(c fiber.Ctx) error {
	userID := c.Params("id")
	var req models.CreateInteractionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validateStruct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	inter, err := h.svc.RecordInteraction(c.Context(), userID, req)
	if err != nil {
		return respondError(c, err, "failed to record interaction", "user_id", userID)
	}
	return c.Status(fiber.StatusCreated).JSON(inter)
}

// AddConnection godoc
// POST /api/v1/users/:id/connections
func (h *MatchingHandler) AddConnection(c fiber.Ctx) error {
	userID := c.Params("id")
	var req models.CreateConnectionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validateStruct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	conn, err := h.svc.AddConnection(c.Context(), userID, req)
	if err != nil {
		return respondError(c, err, "failed to add connection", "user_id", userID)
	}
	return c.Status(fiber.StatusCreated).JSON(conn)
}

// MatchHistory godoc
// GET /api/v1/users/:id/matches/history
func (h *MatchingHandler) MatchHistory(c fiber.Ctx) error {
	userID := c.Params("id")
	limit := fiber.Query(c, "limit", 20)

	history, err := h.svc.MatchHistory(c.Context(), userID, limit)
	if err != nil {
		return respondError(c, err, "failed to get match history", "user_id", userID)
	}
	if history == nil {
		history = []models.MatchSnapshot{}
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"matches": history,
	})
}

// ListEntities godoc
// GET /api/v1/entities
func (h *MatchingHandler) ListEntities(c fiber.Ctx) error {
	kind := models.EntityKind(c.Query("kind"))
	limit := fiber.Query(c, "limit", 0)

	entities, err := h.svc.ListEntities(c.Context(), kind, limit)
	if err != nil {
		return respondError(c, err, "failed to list entities")
	}

	records := make([]models.EntityRecord, 0, len(entities))
	for _, e := range entities {
		rec, err := models.NewEntityRecord(e)
		if err != nil {
			slog.Error("failed to encode entity", "entity_id", e.EntityID(), "error", err)
			continue
		}
		records = append(records, rec)
	}
	return c.JSON(fiber.Map{
		"entities": records,
	})
}

// UpsertEntity godoc
// PUT /api/v1/entities
func (h *MatchingHandler) UpsertEntity(c fiber.Ctx) error {
	var rec models.EntityRecord
	if err := c.Bind().JSON(&rec); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validateStruct(&rec); err != nil {
		return badRequest(c, err.Error())
	}

	e, err := h.svc.UpsertEntity(c.Context(), rec)
	if err != nil {
		return respondError(c, err, "failed to store entity")
	}
	return c.JSON(fiber.Map{
		"id":   e.EntityID(),
		"kind": e.EntityKind(),
	})
}

func bindMatchRequest(c fiber.Ctx) (MatchRequest, error) {
	var req MatchRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return req, errors.New("invalid request body")
		}
	}
	if err := validateStruct(&req); err != nil {
		return req, err
	}
	return req, nil
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}

// respondError maps service errors to HTTP statuses.
func respondError(c fiber.Ctx, err error, msg string, attrs ...any) error {
	switch {
	case errors.Is(err, matching.ErrInvalidInput):
		return badRequest(c, err.Error())
	case errors.Is(err, matching.ErrMissingData):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, matching.ErrUpstreamFetch):
		// Fetch timeouts land here too; only the caller's own deadline is a 504.
		slog.Error(msg, append(attrs, "error", err)...)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: msg, Retryable: true})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.Warn(msg, append(attrs, "error", err)...)
		return c.Status(fiber.StatusGatewayTimeout).JSON(ErrorResponse{Error: "request cancelled or timed out"})
	}
	slog.Error(msg, append(attrs, "error", err)...)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msg})
}
