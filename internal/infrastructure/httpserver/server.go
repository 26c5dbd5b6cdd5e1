// Package httpserver exposes the insight API over HTTP: one POST endpoint
// for requests and one server-sent-events stream per repository for
// lifecycle notifications.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/ports"
)

// Processor handles one parsed insight request.
type Processor interface {
	Process(ctx context.Context, req domain.InsightRequest) (domain.InsightResponse, error)
}

// Server wires the gin engine. It owns no request state; everything flows
// through the processor and the broadcaster.
type Server struct {
	engine      *gin.Engine
	processor   Processor
	broadcaster ports.Broadcaster
	log         ports.Logger
	heartbeat   time.Duration
}

// New builds the HTTP server.
func New(processor Processor, broadcaster ports.Broadcaster, log ports.Logger, heartbeat time.Duration) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), corsMiddleware())
	engine.HandleMethodNotAllowed = true
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	s := &Server{
		engine:      engine,
		processor:   processor,
		broadcaster: broadcaster,
		log:         log,
		heartbeat:   heartbeat,
	}
	engine.POST("/api/gitscope", s.handleInsight)
	engine.GET("/api/gitscope/events/:owner/:repo", s.handleEvents)
	return s
}

// Run blocks serving on addr.
func (s *Server) Run(addr string) error {
	s.log.Info("http server listening", map[string]interface{}{"addr": addr})
	return s.engine.Run(addr)
}

// Handler exposes the engine for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Cache-Control")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) handleInsight(c *gin.Context) {
	var req domain.InsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	resp, err := s.processor.Process(c.Request.Context(), req)
	if err != nil {
		s.log.Error("request processing failed", err, map[string]interface{}{
			"repo": req.Owner + "/" + req.Repo,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleEvents streams lifecycle events for one repository. The stream
// starts with a hello event, forwards everything published on the topic,
// and heartbeats to keep intermediaries from closing the connection.
func (s *Server) handleEvents(c *gin.Context) {
	key := domain.RepoKey{Owner: c.Param("owner"), Name: c.Param("repo")}
	if err := key.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	writeSSE(c, map[string]interface{}{
		"type":      "connected",
		"owner":     key.Owner,
		"repo":      key.Name,
		"timestamp": time.Now().UnixMilli(),
	})
	c.Writer.Flush()

	// Subscriber callbacks must not block the publisher; events buffer in a
	// channel and overflow is dropped.
	events := make(chan domain.Event, 32)
	unsubscribe := s.broadcaster.Subscribe(key, func(ev domain.Event) {
		select {
		case events <- ev:
		default:
			s.log.Warn("slow event stream, dropping event", map[string]interface{}{
				"repo": key.String(), "type": string(ev.Type),
			})
		}
	})
	defer unsubscribe()
	s.log.Info("event stream opened", map[string]interface{}{"repo": key.String()})

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			s.log.Info("event stream closed", map[string]interface{}{"repo": key.String()})
			return
		case ev := <-events:
			writeSSE(c, ev)
			c.Writer.Flush()
		case <-heartbeat.C:
			writeSSE(c, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().UnixMilli(),
			})
			c.Writer.Flush()
		}
	}
}

func writeSSE(c *gin.Context, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", raw)
}
