package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openlancer/escrowd/internal/core/application"
	"github.com/sirupsen/logrus"
)

// Server exposes the orchestration commands and queries over REST.
type Server struct {
	svc  *application.Service
	http *http.Server
}

func NewServer(svc *application.Service, port uint32) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	h := &handlers{svc: svc}

	v1 := router.Group("/v1")
	{
		v1.POST("/escrows", h.createEscrow)
		v1.GET("/escrows", h.listEscrows)
		v1.GET("/escrows/:id", h.getEscrow)
		v1.POST("/escrows/:id/fund", h.fundEscrow)
		v1.POST("/escrows/:id/withdraw", h.withdrawReleased)
		v1.POST("/escrows/:id/disputes", h.openDispute)
		v1.POST("/escrows/:id/disputes/resolve", h.resolveDispute)
		v1.POST("/escrows/:id/milestones/:mid/start", h.startMilestone)
		v1.POST("/escrows/:id/milestones/:mid/release", h.releaseMilestone)
		v1.POST("/escrows/:id/time-releases", h.addTimeRelease)
		v1.POST("/escrows/:id/time-releases/:index/release", h.releaseTimeBased)
		v1.GET("/escrows/:id/bids", h.getBids)
		v1.POST("/escrows/:id/bids/:key/accept", h.acceptBid)
		v1.POST("/bids", h.submitBid)
		v1.POST("/ramps/on", h.startOnRamp)
		v1.POST("/ramps/off", h.startOffRamp)
		v1.GET("/ramps", h.listSessions)
		v1.GET("/ramps/:id", h.getSession)
		v1.DELETE("/ramps/:id", h.stopSession)
		v1.POST("/trustlines", h.establishTrustline)
	}

	return &Server{
		svc: svc,
		http: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		},
	}
}

func (s *Server) Start() error {
	logrus.Infof("http server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// nolint:all
	s.http.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("http request")
	}
}
