package http

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ochronus/gozenodo/internal/config"
	"github.com/ochronus/gozenodo/internal/services/zenodo"
	"github.com/sirupsen/logrus"
)

// SessionFactory returns an initialized session for the requested environment.
type SessionFactory func(production bool) (zenodo.SessionAPI, error)

// Handler contains the HTTP handlers exposing the Zenodo operations.
type Handler struct {
	config   *config.Config
	logger   *logrus.Logger
	sessions SessionFactory
}

// UploadRequest is the body of the upload endpoint.
type UploadRequest struct {
	FileID string `json:"file_id"`
}

// NewHandler creates a new HTTP handler.
func NewHandler(cfg *config.Config, logger *logrus.Logger, sessions SessionFactory) *Handler {
	return &Handler{
		config:   cfg,
		logger:   logger,
		sessions: sessions,
	}
}

// Status reports which environments have a token configured.
func (h *Handler) Status(c *gin.Context) {
	status := gin.H{}
	for name, production := range map[string]bool{"sandbox": false, "production": true} {
		session, err := h.sessions(production)
		status[name] = err == nil && session.Configured()
	}
	c.JSON(http.StatusOK, status)
}

// ListDepositions returns the depositions of the configured account.
func (h *Handler) ListDepositions(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	depositions, err := session.ListDepositions(c.Request.Context())
	if err != nil {
		h.writeError(c, "list depositions", err)
		return
	}
	if depositions == nil {
		depositions = []json.RawMessage{}
	}

	c.JSON(http.StatusOK, depositions)
}

// CreateDeposition forwards the request body as deposition metadata.
func (h *Handler) CreateDeposition(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON document"})
		return
	}

	session, ok := h.session(c)
	if !ok {
		return
	}

	deposition, err := session.CreateDeposition(c.Request.Context(), json.RawMessage(body))
	if err != nil {
		h.writeError(c, "create deposition", err)
		return
	}

	h.logger.Infof("deposition %d created", deposition.ID)
	c.JSON(http.StatusCreated, deposition.Fields)
}

// UploadFile uploads every part of a local file to a deposition.
func (h *Handler) UploadFile(c *gin.Context) {
	depositionID := c.Param("id")

	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.FileID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_id is required"})
		return
	}

	session, ok := h.session(c)
	if !ok {
		return
	}

	result, err := session.UploadFile(c.Request.Context(), depositionID, req.FileID)
	if err != nil {
		h.writeError(c, "upload file", err)
		return
	}

	h.logger.Infof("[%s: %s]: %d part(s) uploaded", depositionID, req.FileID, len(result.Uploaded))
	c.JSON(http.StatusOK, gin.H{
		"deposition_id": result.DepositionID,
		"file_id":       result.FileID,
		"uploaded":      result.Uploaded,
	})
}

// session builds a session for the environment picked by the "production"
// query parameter, falling back to the configured default.
func (h *Handler) session(c *gin.Context) (zenodo.SessionAPI, bool) {
	production := h.config.Production
	if raw := c.Query("production"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "production must be a boolean"})
			return nil, false
		}
		production = parsed
	}

	session, err := h.sessions(production)
	if err != nil {
		h.writeError(c, "init session", err)
		return nil, false
	}
	return session, true
}

// writeError maps session errors to HTTP responses.
func (h *Handler) writeError(c *gin.Context, op string, err error) {
	var (
		cfgErr       *zenodo.ConfigError
		apiErr       *zenodo.APIError
		uploadErr    *zenodo.UploadError
		transportErr *zenodo.TransportError
	)

	switch {
	case errors.As(err, &cfgErr):
		h.logger.Warnf("%s: %v", op, err)
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": cfgErr.Message})
	case errors.Is(err, zenodo.ErrNoSuchFile):
		h.logger.Warnf("%s: %v", op, err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &uploadErr):
		h.logger.Errorf("%s: %v", op, err)
		c.JSON(statusOr(uploadErr.Status, http.StatusBadRequest), gin.H{"error": uploadErr.Message, "file": uploadErr.File})
	case errors.As(err, &apiErr):
		h.logger.Errorf("%s: %v", op, err)
		body := gin.H{"error": "zenodo rejected the request", "messages": apiErr.Messages}
		if apiErr.Message != "" {
			body["error"] = apiErr.Message
		}
		c.JSON(statusOr(apiErr.Status, http.StatusBadRequest), body)
	case errors.As(err, &transportErr):
		h.logger.Errorf("%s: %v", op, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.logger.Errorf("%s: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func statusOr(status, fallback int) int {
	if status < 400 || status > 599 {
		return fallback
	}
	return status
}

// validateUser validates the Basic Auth credentials.
func (h *Handler) validateUser(c *gin.Context) bool {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return false
	}

	if !strings.HasPrefix(authHeader, "Basic ") {
		return false
	}

	encoded := strings.TrimPrefix(authHeader, "Basic ")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return false
	}

	if h.config.Username == "" || h.config.Password == "" {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(parts[0]), []byte(h.config.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(parts[1]), []byte(h.config.Password)) == 1
	return userOK && passOK
}

// RequireAuth rejects requests without valid credentials.
func (h *Handler) RequireAuth(c *gin.Context) {
	if !h.validateUser(c) {
		c.Header("WWW-Authenticate", `Basic realm="gozenodo"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}
