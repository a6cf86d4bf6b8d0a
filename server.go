package main

import (
	"database/sql"
	"log"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

var recipientRe = regexp.MustCompile(`<(.+?)>`)

// Server wires the dashboard API to the store, the mailbox, and the
// classifier. notify is optional; when set it receives the urgent messages
// ingested by a poll.
type Server struct {
	db     *sql.DB
	source MessageSource
	ai     Classifier
	notify func(urgent []Email)
}

func NewServer(db *sql.DB, source MessageSource, ai Classifier) *Server {
	return &Server{db: db, source: source, ai: ai}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/emails", s.handleGetEmails)
	api.POST("/emails/:id/update", s.handleUpdateStatus)
	api.POST("/emails/:id/response", s.handleUpdateResponse)
	api.POST("/emails/:id/send", s.handleSendResponse)
	api.GET("/stats", s.handleGetStats)
	api.GET("/stats/history", s.handleStatsHistory)
	return r
}

// handleGetEmails runs a full poll cycle. A failed cycle never surfaces as an
// HTTP error: the response falls back to the last persisted emails and stats
// plus an inline error string.
func (s *Server) handleGetEmails(c *gin.Context) {
	result, err := RunPollCycle(s.db, s.source, s.ai)
	if err != nil {
		log.Printf("poll cycle error: %v", err)
		emails, loadErr := LoadAllEmails(s.db)
		if loadErr != nil {
			log.Printf("stale email load error: %v", loadErr)
		}
		SortEmails(emails)
		stats, loadErr := LoadLatestStats(s.db)
		if loadErr != nil {
			log.Printf("stale stats load error: %v", loadErr)
		}
		c.JSON(http.StatusOK, gin.H{
			"emails": emptyIfNil(emails),
			"stats":  stats,
			"error":  err.Error(),
		})
		return
	}

	if s.notify != nil && len(result.NewUrgent) > 0 {
		s.notify(result.NewUrgent)
	}

	c.JSON(http.StatusOK, gin.H{
		"emails": emptyIfNil(result.Emails),
		"stats":  result.Stats,
	})
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	id := c.Param("id")

	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if req.Status != StatusPending && req.Status != StatusResolved {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "status must be Pending or Resolved"})
		return
	}

	email, err := GetEmailByID(s.db, id)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Email not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := UpdateEmailFields(s.db, id, map[string]string{"status": req.Status}); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err := RecordStatusChange(s.db, email.Status, req.Status); err != nil {
		log.Printf("stats update error id=%s: %v", id, err)
	}

	// Mirror the transition to the mail server. Best-effort: a failed flag
	// store does not undo the dashboard change.
	if !s.source.MarkProcessed(id) {
		log.Printf("mark processed failed id=%s", id)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type responseUpdateRequest struct {
	Response string `json:"response"`
}

func (s *Server) handleUpdateResponse(c *gin.Context) {
	id := c.Param("id")

	var req responseUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	if err := UpdateEmailFields(s.db, id, map[string]string{"ai_response": req.Response}); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleSendResponse(c *gin.Context) {
	id := c.Param("id")

	var req responseUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	email, err := GetEmailByID(s.db, id)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Email not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}

	body := req.Response
	if body == "" {
		body = email.AIResponse
	}

	if !s.source.SendReply(extractRecipient(email.Sender), "Re: "+email.Subject, body, email.ID) {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Failed to send email"})
		return
	}

	if err := UpdateEmailFields(s.db, id, map[string]string{"status": StatusResolved}); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err := RecordStatusChange(s.db, email.Status, StatusResolved); err != nil {
		log.Printf("stats update error id=%s: %v", id, err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleGetStats(c *gin.Context) {
	stats, err := LoadLatestStats(s.db)
	if err != nil {
		log.Printf("stats load error: %v", err)
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleStatsHistory(c *gin.Context) {
	history, err := LoadStatsHistory(s.db, 24)
	if err != nil {
		log.Printf("stats history error: %v", err)
	}
	if history == nil {
		history = []StatsHistoryEntry{}
	}
	c.JSON(http.StatusOK, history)
}

// extractRecipient pulls the address out of a "Name <addr>" sender header;
// a bare address passes through unchanged.
func extractRecipient(sender string) string {
	if match := recipientRe.FindStringSubmatch(sender); match != nil {
		return match[1]
	}
	return sender
}

func emptyIfNil(emails []Email) []Email {
	if emails == nil {
		return []Email{}
	}
	return emails
}
