package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/backline-ai/agentflow"
)

// QueryRequest starts or continues a conversation.
type QueryRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

// ResumeRequest supplies human feedback for a suspended conversation.
type ResumeRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

// ErrorResponse is the error envelope for boundary failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// handleQuery runs the main flow for one user request. A missing session id
// starts a fresh conversation.
func (s *Server) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	state := agentflow.NewRunState(req.Message, req.SessionID)
	result, err := s.runner.Run(c.Request.Context(), state)
	if err != nil {
		s.logger.Error("run failed", "session_id", req.SessionID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	s.writeRunResult(c, req.SessionID, result)
}

// handleResume continues a suspended conversation with the supplied
// feedback.
func (s *Server) handleResume(c *gin.Context) {
	var req ResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := s.runner.Resume(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, agentflow.ErrCheckpointNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "no suspended run for session"})
		case errors.Is(err, agentflow.ErrRunCompleted):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "run already completed"})
		default:
			s.logger.Error("resume failed", "session_id", req.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}
	s.writeRunResult(c, req.SessionID, result)
}

// writeRunResult renders the two run outcomes: completion and suspension.
func (s *Server) writeRunResult(c *gin.Context, sessionID string, result *agentflow.RunResult) {
	if result.Interrupted() {
		c.JSON(http.StatusOK, gin.H{
			"status":            "interrupt",
			"session_id":        sessionID,
			"result":            result.Interrupt.Payload,
			"requires_feedback": true,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"session_id": sessionID,
		"result":     result.State.FinalResult,
	})
}
