package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nightloom/internal/domain"
	"nightloom/internal/repository"
	"nightloom/internal/service"
)

// SessionHandler expone el flujo de diagnóstico sobre HTTP.
type SessionHandler struct {
	logger       *zap.Logger
	orchestrator *service.SessionOrchestrator
}

func NewSessionHandler(logger *zap.Logger, orchestrator *service.SessionOrchestrator) *SessionHandler {
	return &SessionHandler{
		logger:       logger,
		orchestrator: orchestrator,
	}
}

// CreateSession maneja POST /sessions.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req struct {
		InitialCharacter string `json:"initial_character" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create session request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.orchestrator.CreateSession(c.Request.Context(), req.InitialCharacter)
	if err != nil {
		h.writeError(c, "create session failed", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// ConfirmKeyword maneja POST /sessions/:id/keyword.
func (h *SessionHandler) ConfirmKeyword(c *gin.Context) {
	var req struct {
		Keyword string `json:"keyword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid keyword request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.orchestrator.ConfirmKeyword(c.Request.Context(), c.Param("id"), req.Keyword)
	if err != nil {
		h.writeError(c, "confirm keyword failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"state":      session.State,
		"scenes":     session.Scenes,
	})
}

// GetScene maneja GET /sessions/:id/scenes/:index.
func (h *SessionHandler) GetScene(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scene index"})
		return
	}

	scene, err := h.orchestrator.GetScene(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		h.writeError(c, "get scene failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"scene": scene})
}

// RecordChoice maneja POST /sessions/:id/choices.
func (h *SessionHandler) RecordChoice(c *gin.Context) {
	var req struct {
		SceneIndex int    `json:"scene_index" binding:"required,min=1,max=4"`
		ChoiceID   string `json:"choice_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid choice request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.orchestrator.RecordChoice(c.Request.Context(), c.Param("id"), req.SceneIndex, req.ChoiceID)
	if err != nil {
		h.writeError(c, "record choice failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"recorded":   len(session.Choices),
	})
}

// GenerateResult maneja POST /sessions/:id/result. El caller queda suspendido
// hasta que el resultado materializado está disponible.
func (h *SessionHandler) GenerateResult(c *gin.Context) {
	result, err := h.orchestrator.GenerateResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "generate result failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// writeError mapea la taxonomía de errores del core a códigos HTTP:
// no encontrado -> 404, integridad -> 409, resto -> 500.
func (h *SessionHandler) writeError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, repository.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, service.ErrSceneNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "scene not found"})
	case domain.IsIntegrityError(err):
		h.logger.Warn(msg, zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
