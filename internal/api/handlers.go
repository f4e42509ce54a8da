package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guepardlover77/sms-app/internal/conv"
	"github.com/guepardlover77/sms-app/internal/send"
	"github.com/guepardlover77/sms-app/internal/sms"
	"github.com/guepardlover77/sms-app/internal/status"
	"github.com/guepardlover77/sms-app/internal/store"
)

// conversationDTO is the wire shape of one conversation-list entry.
type conversationDTO struct {
	ThreadID      int64  `json:"thread_id"`
	Address       string `json:"address"`
	DisplayName   string `json:"display_name"`
	Snippet       string `json:"snippet"`
	LastTimestamp int64  `json:"last_timestamp"`
	MessageCount  int    `json:"message_count"`
	UnreadCount   int    `json:"unread_count"`
	PhotoRef      string `json:"photo_ref,omitempty"`
}

// messageDTO is the wire shape of one thread message, with the grouping
// flag precomputed so clients never re-derive it.
type messageDTO struct {
	ID             int64  `json:"id"`
	ThreadID       int64  `json:"thread_id"`
	Address        string `json:"address"`
	Body           string `json:"body"`
	Timestamp      int64  `json:"timestamp"`
	Direction      string `json:"direction"`
	Read           bool   `json:"read"`
	DeliveryStatus string `json:"delivery_status"`
	LastInGroup    bool   `json:"last_in_group"`
}

// sendResultDTO is the wire shape of a resolved send, success or not.
type sendResultDTO struct {
	State     string   `json:"state"`
	MessageID int64    `json:"message_id"`
	ThreadID  int64    `json:"thread_id"`
	Parts     []string `json:"parts,omitempty"`
}

type contactDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	PhotoRef string `json:"photo_ref,omitempty"`
}

// contactImportDTO is one directory entry in a POST /api/contacts batch.
type contactImportDTO struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	PhotoRef string `json:"photo_ref,omitempty"`
}

func (s *Server) handleConversations(c *gin.Context) {
	conversations, err := s.conversations.ListConversations()
	if err != nil {
		s.fail(c, err, "Failed to list conversations")
		return
	}

	out := make([]conversationDTO, len(conversations))
	for i, cv := range conversations {
		out[i] = conversationDTO{
			ThreadID:      cv.ThreadID,
			Address:       cv.Address,
			DisplayName:   cv.DisplayName,
			Snippet:       cv.Snippet,
			LastTimestamp: cv.LastTimestamp,
			MessageCount:  cv.MessageCount,
			UnreadCount:   cv.UnreadCount,
			PhotoRef:      cv.PhotoRef,
		}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

func (s *Server) handleThread(c *gin.Context) {
	threadID, ok := threadParam(c)
	if !ok {
		return
	}

	msgs, err := s.threads.LoadThread(threadID)
	if err != nil {
		s.fail(c, err, "Failed to load thread")
		return
	}

	last := conv.LastInGroup(msgs)
	out := make([]messageDTO, len(msgs))
	for i, m := range msgs {
		out[i] = messageDTO{
			ID:             m.ID,
			ThreadID:       m.ThreadID,
			Address:        m.Address,
			Body:           m.Body,
			Timestamp:      m.Timestamp,
			Direction:      string(m.Direction),
			Read:           m.Read,
			DeliveryStatus: string(m.DeliveryStatus),
			LastInGroup:    last[i],
		}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	threadID, ok := threadParam(c)
	if !ok {
		return
	}

	if err := s.threads.MarkThreadRead(threadID); err != nil {
		s.fail(c, err, "Failed to mark thread read")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Message: "Thread marked read"})
}

func (s *Server) handleSend(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	result, err := s.sender.Send(c.Request.Context(), req.Address, req.Body)
	if err != nil {
		s.sendError(c, result, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "Message sent",
		Data:    sendResultData(result),
	})
}

// sendError maps the send taxonomy onto status codes. Validation failures
// are the caller's fault; transport failures surface the resolved result
// so the caller can see which parts made it out.
func (s *Server) sendError(c *gin.Context, result *send.Result, err error) {
	switch {
	case errors.Is(err, sms.ErrEmptyMessage) || errors.Is(err, send.ErrNoRecipient):
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: err.Error(),
		})
	case errors.Is(err, send.ErrPartialDelivery) || errors.Is(err, send.ErrTransportRejected):
		resp := Response{
			Success: false,
			Message: fmt.Sprintf("Failed to send message: %v", err),
		}
		if result != nil {
			resp.Data = sendResultData(result)
		}
		c.JSON(http.StatusBadGateway, resp)
	case errors.Is(err, store.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Message: "Message store unavailable",
		})
	default:
		s.logger.Error("send failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Message: fmt.Sprintf("Failed to send message: %v", err),
		})
	}
}

func sendResultData(r *send.Result) sendResultDTO {
	dto := sendResultDTO{
		State:     string(r.State),
		MessageID: r.MessageID,
		ThreadID:  r.ThreadID,
	}
	if len(r.Parts) > 0 {
		dto.Parts = make([]string, len(r.Parts))
		for i, p := range r.Parts {
			dto.Parts[i] = string(p)
		}
	}
	return dto
}

func (s *Server) handleContacts(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Missing q parameter",
		})
		return
	}

	found, err := s.contacts.Search(query)
	if err != nil {
		s.fail(c, err, "Failed to search contacts")
		return
	}

	out := make([]contactDTO, len(found))
	for i, ct := range found {
		out[i] = contactDTO{ID: ct.ID, Name: ct.Name, Phone: ct.Phone, PhotoRef: ct.PhotoRef}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

func (s *Server) handleImportContacts(c *gin.Context) {
	var req []contactImportDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}
	if len(req) == 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "No contacts in request",
		})
		return
	}

	entries := make([]store.Contact, len(req))
	for i, e := range req {
		if e.Phone == "" {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Message: "Contact entries require a phone number",
			})
			return
		}
		entries[i] = store.Contact{Name: e.Name, Phone: e.Phone, PhotoRef: e.PhotoRef}
	}

	if err := s.contacts.Import(entries); err != nil {
		s.fail(c, err, "Failed to import contacts")
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: fmt.Sprintf("Imported %d contact(s)", len(entries)),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	state, reason := s.health.Current()
	data := map[string]string{"state": string(state)}
	if reason != "" {
		data["reason"] = reason
	}

	code := http.StatusOK
	if state == status.StateError || state == status.StateBooting {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, Response{Success: code == http.StatusOK, Data: data})
}

// fail maps a read-path error onto a status code. Store outages are
// retryable and distinguished from everything else.
func (s *Server) fail(c *gin.Context, err error, msg string) {
	if errors.Is(err, store.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Message: "Message store unavailable",
		})
		return
	}
	s.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Message: fmt.Sprintf("%s: %v", msg, err),
	})
}

func threadParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Message: "Invalid thread id",
		})
		return 0, false
	}
	return id, true
}
