package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openg2/g2ctl/internal/protocol/notify"
	"github.com/openg2/g2ctl/internal/protocol/session"
	"github.com/openg2/g2ctl/internal/textpage"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": "g2ctl",
			"version": "0.1.0",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/api/events", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			s.log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		s.hub.add(conn)
	})

	api := s.router.Group("/api", s.requireToken())

	api.POST("/auth", func(c *gin.Context) {
		var req struct {
			Endpoint string `json:"endpoint"`
		}
		if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ep, err := parseEndpoint(req.Endpoint)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.ctrl.Authenticate(c.Request.Context(), ep); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "endpoint": string(ep)})
	})

	api.POST("/ai/qa", func(c *gin.Context) {
		var req struct {
			Endpoint string `json:"endpoint"`
			Question string `json:"question"`
			Answer   string `json:"answer"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Question == "" || req.Answer == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question and answer are required"})
			return
		}
		ep, err := parseEndpoint(req.Endpoint)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.ctrl.ShowQA(c.Request.Context(), ep, req.Question, req.Answer); err != nil {
			respondDeviceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.POST("/teleprompter", func(c *gin.Context) {
		var req struct {
			Endpoint string `json:"endpoint"`
			Text     string `json:"text"`
			Profile  string `json:"profile"`
			Manual   *bool  `json:"manual"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}
		ep, err := parseEndpoint(req.Endpoint)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profile, err := s.resolveProfile(req.Profile)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		manual := true
		if req.Manual != nil {
			manual = *req.Manual
		}
		if err := s.ctrl.RunTeleprompter(c.Request.Context(), ep, req.Text, profile, manual); err != nil {
			respondDeviceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.POST("/notify", func(c *gin.Context) {
		var req struct {
			Title    string `json:"title"`
			Subtitle string `json:"subtitle"`
			Message  string `json:"message"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Title == "" && req.Message == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title or message is required"})
			return
		}
		n := notify.Notification{
			Title:         req.Title,
			Subtitle:      req.Subtitle,
			Message:       req.Message,
			AppIdentifier: s.cfg.Notify.AppIdentifier,
			DisplayName:   s.cfg.Notify.DisplayName,
		}
		if err := s.ctrl.PushNotification(c.Request.Context(), n, time.Now()); err != nil {
			respondDeviceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// parseEndpoint resolves a request endpoint name; empty selects the right
// eye, which carries channel traffic by convention.
func parseEndpoint(name string) (session.Endpoint, error) {
	switch name {
	case "", "right":
		return session.EndpointRight, nil
	case "left":
		return session.EndpointLeft, nil
	default:
		return "", errors.New("endpoint must be \"left\" or \"right\"")
	}
}

func (s *Server) resolveProfile(name string) (textpage.Profile, error) {
	switch name {
	case "":
		return s.cfg.TextProfile(), nil
	case "latin":
		return textpage.Latin, nil
	case "cjk":
		return textpage.CJK, nil
	default:
		return textpage.Profile{}, errors.New("profile must be \"latin\" or \"cjk\"")
	}
}

func respondDeviceError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, session.ErrNotAuthenticated) {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
