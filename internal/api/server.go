// Package api exposes the daemon's read and send surface over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guepardlover77/sms-app/internal/conv"
	"github.com/guepardlover77/sms-app/internal/send"
	"github.com/guepardlover77/sms-app/internal/status"
	"github.com/guepardlover77/sms-app/internal/store"
)

// ConversationLister serves the aggregated conversation list.
type ConversationLister interface {
	ListConversations() ([]conv.Conversation, error)
}

// ThreadLoader serves one thread's messages and read-state changes.
type ThreadLoader interface {
	LoadThread(threadID int64) ([]store.Message, error)
	MarkThreadRead(threadID int64) error
}

// Sender dispatches one logical outbound send.
type Sender interface {
	Send(ctx context.Context, address, body string) (*send.Result, error)
}

// ContactDirectory serves directory search and bulk population.
type ContactDirectory interface {
	Search(query string) ([]store.Contact, error)
	Import(entries []store.Contact) error
}

// Health reports the daemon state.
type Health interface {
	Current() (status.State, string)
}

// Server is the HTTP API server.
type Server struct {
	conversations ConversationLister
	threads       ThreadLoader
	sender        Sender
	contacts      ContactDirectory
	health        Health
	logger        *zap.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates the API server listening on addr.
func NewServer(
	conversations ConversationLister,
	threads ThreadLoader,
	sender Sender,
	contacts ContactDirectory,
	health Health,
	addr string,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		conversations: conversations,
		threads:       threads,
		sender:        sender,
		contacts:      contacts,
		health:        health,
		logger:        logger.Named("api"),
		router:        router,
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
	}
	s.registerRoutes(router)
	return s
}

// Response is the generic API response envelope.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// SendRequest is the request body for POST /api/send.
type SendRequest struct {
	Address string `json:"address"`
	Body    string `json:"body"`
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	{
		api.GET("/conversations", s.handleConversations)
		api.GET("/threads/:id", s.handleThread)
		api.POST("/threads/:id/read", s.handleMarkRead)
		api.POST("/send", s.handleSend)
		api.GET("/contacts", s.handleContacts)
		api.POST("/contacts", s.handleImportContacts)
	}
}

// Start runs the server until Stop is called. ErrServerClosed after a
// clean shutdown is not an error.
func (s *Server) Start() error {
	s.logger.Info("http api listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
