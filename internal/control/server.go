// Package control serves the operator API of a running traversal: state,
// pause and stop requests, recorded applications and metrics.
package control

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/domain"
	"github.com/spigell/listing-scout/internal/filtering"
	"github.com/spigell/listing-scout/internal/traversal"
)

type Config struct {
	Listen         string   `mapstructure:"listen"`
	AllowedOrigins []string `mapstructure:"allowed-origins"`
}

// Applications lists the records of one user, newest first.
type Applications interface {
	ListApplications(ctx context.Context, userID string) ([]domain.Application, error)
}

type Deps struct {
	Control      *traversal.Control
	Applications Applications
	// UserID returns the identity the run resolved; empty until known.
	UserID  func() string
	Filters *filtering.Filtering
	Logger  *zap.Logger
}

type StatusResponse struct {
	State   traversal.State `json:"state"`
	Pending int             `json:"pending"`
	UserID  string          `json:"user_id,omitempty"`
	Filters []FilterStatus  `json:"filters,omitempty"`
}

type FilterStatus struct {
	Name    string `json:"name"`
	Phase   string `json:"phase"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
	Seen    int    `json:"seen"`
	Dropped int    `json:"dropped"`
}

type SignalResponse struct {
	Requested traversal.Signal `json:"requested"`
	State     traversal.State  `json:"state"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type server struct {
	deps Deps
}

// NewRouter builds the control API. Signal routes only enqueue; the loop
// applies them at its next checkpoint, so the returned state may still be the
// previous one.
func NewRouter(cfg Config, deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.UserID == nil {
		deps.UserID = func() string { return "" }
	}
	s := &server{deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/status", s.status)
	r.POST("/pause", s.signal(traversal.SignalPause))
	r.POST("/resume", s.signal(traversal.SignalResume))
	r.POST("/toggle", s.signal(traversal.SignalToggle))
	r.POST("/stop", s.signal(traversal.SignalStop))
	r.GET("/applications", s.applications)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func (s *server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.deps.Logger.Debug("control request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
		)
	}
}

func (s *server) status(c *gin.Context) {
	resp := StatusResponse{
		State:   s.deps.Control.State(),
		Pending: s.deps.Control.Pending(),
		UserID:  s.deps.UserID(),
	}

	if s.deps.Filters != nil {
		for _, st := range s.deps.Filters.Describe() {
			stats := s.deps.Filters.Stats(st.Name)
			resp.Filters = append(resp.Filters, FilterStatus{
				Name:    st.Name,
				Phase:   string(st.Phase),
				Enabled: st.Enabled,
				Reason:  st.Reason,
				Seen:    stats.Initial,
				Dropped: stats.Dropped,
			})
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *server) signal(sig traversal.Signal) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.deps.Control.Send(sig)
		s.deps.Logger.Info("control signal queued", zap.String("signal", string(sig)))
		c.JSON(http.StatusAccepted, SignalResponse{Requested: sig, State: s.deps.Control.State()})
	}
}

func (s *server) applications(c *gin.Context) {
	if s.deps.Applications == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Code: "unavailable", Message: "no store configured"})
		return
	}

	userID := s.deps.UserID()
	if userID == "" {
		c.JSON(http.StatusConflict, ErrorResponse{Code: "no_user", Message: "user id is not known yet"})
		return
	}

	apps, err := s.deps.Applications.ListApplications(c.Request.Context(), userID)
	if err != nil {
		s.deps.Logger.Warn("listing applications", zap.Error(err))
		c.JSON(http.StatusBadGateway, ErrorResponse{Code: "store_error", Message: err.Error()})
		return
	}
	if apps == nil {
		apps = []domain.Application{}
	}
	c.JSON(http.StatusOK, gin.H{"items": apps})
}
