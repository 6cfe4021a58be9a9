// Package storeapi exposes a store.Store over JSON/HTTP. The routes mirror
// what internal/store/httpstore consumes.
package storeapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/domain"
	"github.com/spigell/listing-scout/internal/store"
	"github.com/spigell/listing-scout/internal/store/httpstore"
)

const userKey = "user_id"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Server struct {
	store  store.Store
	logger *zap.Logger
}

// NewRouter builds the gin engine serving the store API.
func NewRouter(s store.Store, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{store: s, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), srv.accessLog())

	api := r.Group(httpstore.APIPrefix)
	api.GET("/embeddings", srv.findEmbedding)
	api.PUT("/embeddings", srv.saveEmbedding)

	scoped := api.Group("", requireUser())
	scoped.GET("/companies", srv.findCompanies)
	scoped.POST("/companies", srv.createCompany)
	scoped.GET("/applications", srv.listApplications)
	scoped.POST("/applications", srv.createApplication)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	return r
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(httpstore.UserHeader))
		if userID == "" {
			fail(c, http.StatusUnauthorized, "unauthorized", "missing "+httpstore.UserHeader+" header")
			return
		}
		c.Set(userKey, userID)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("store api request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}

func (s *Server) findCompanies(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		fail(c, http.StatusBadRequest, "bad_request", "url query parameter is required")
		return
	}

	company, err := s.store.FindCompany(c.Request.Context(), c.GetString(userKey), url)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.storeError(c, err)
		return
	}

	items := []domain.Company{}
	if company != nil {
		items = append(items, *company)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) createCompany(c *gin.Context) {
	var company domain.Company
	if err := c.ShouldBindJSON(&company); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := company.Validate(); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	created, err := s.store.CreateCompany(c.Request.Context(), c.GetString(userKey), &company)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) listApplications(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(userKey)

	if jobURL := strings.TrimSpace(c.Query("job_url")); jobURL != "" {
		app, err := s.store.FindApplication(ctx, userID, jobURL)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.storeError(c, err)
			return
		}
		items := []domain.Application{}
		if app != nil {
			items = append(items, *app)
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
		return
	}

	apps, err := s.store.ListApplications(ctx, userID)
	if err != nil {
		s.storeError(c, err)
		return
	}
	if apps == nil {
		apps = []domain.Application{}
	}
	c.JSON(http.StatusOK, gin.H{"items": apps})
}

func (s *Server) createApplication(c *gin.Context) {
	var app domain.Application
	if err := c.ShouldBindJSON(&app); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := app.Validate(); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	created, err := s.store.CreateApplication(c.Request.Context(), c.GetString(userKey), &app)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) findEmbedding(c *gin.Context) {
	model, hash := c.Query("model"), c.Query("hash")
	if model == "" || hash == "" {
		fail(c, http.StatusBadRequest, "bad_request", "model and hash query parameters are required")
		return
	}

	entry, err := s.store.FindEmbedding(c.Request.Context(), model, hash)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) saveEmbedding(c *gin.Context) {
	var entry domain.Embedding
	if err := c.ShouldBindJSON(&entry); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if entry.ModelID == "" || entry.ContentHash == "" {
		fail(c, http.StatusBadRequest, "bad_request", "model_id and content_hash are required")
		return
	}

	if err := s.store.SaveEmbedding(c.Request.Context(), &entry); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, store.ErrConflict):
		fail(c, http.StatusConflict, "conflict", "record already exists")
	case errors.Is(err, store.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		s.logger.Error("store api error", zap.String("path", c.FullPath()), zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal", "internal error")
	}
}

func fail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: msg})
}
