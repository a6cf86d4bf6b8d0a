package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// MessageSource is the mailbox surface the orchestrator and handlers need.
type MessageSource interface {
	SearchCandidates() []InboundEmail
	MarkProcessed(id string) bool
	SendReply(to, subject, body, inReplyTo string) bool
}

// Classifier runs the four language-model operations.
type Classifier interface {
	ClassifySentiment(text string) string
	ClassifyUrgency(text string) string
	ExtractRequirements(text string) string
	DraftResponse(e Email) string
}

// PollResult is the outcome of one ingestion cycle.
type PollResult struct {
	Emails    []Email
	Stats     EmailStats
	NewCount  int
	NewUrgent []Email
}

// RunPollCycle drives one end-to-end ingestion pass: load persisted state,
// fetch candidates, classify and persist the unseen ones, bump counters,
// append a stats snapshot, and return the sorted message set. All cross-cycle
// state lives in the store; the cycle itself is stateless.
//
// Classification runs per message in fixed order (sentiment, urgency,
// requirements, draft) because the draft prompt embeds the first three.
func RunPollCycle(db *sql.DB, source MessageSource, ai Classifier) (PollResult, error) {
	var result PollResult

	emails, err := LoadAllEmails(db)
	if err != nil {
		return result, fmt.Errorf("load emails: %w", err)
	}
	stats, err := LoadLatestStats(db)
	if err != nil {
		return result, fmt.Errorf("load stats: %w", err)
	}

	known := make(map[string]bool, len(emails))
	for _, e := range emails {
		known[e.ID] = true
	}

	for _, candidate := range source.SearchCandidates() {
		if known[candidate.ID] {
			continue
		}

		e := Email{
			ID:      candidate.ID,
			Sender:  candidate.Sender,
			Subject: candidate.Subject,
			Body:    candidate.Body,
			Date:    candidate.Date,
			Status:  StatusPending,
		}
		e.Sentiment = ai.ClassifySentiment(e.Body)
		e.Urgency = ai.ClassifyUrgency(e.Body)
		e.Requirements = ai.ExtractRequirements(e.Body)
		e.AIResponse = ai.DraftResponse(e)
		e.ProcessedAt = time.Now().Format(time.RFC3339)

		if err := UpsertEmail(db, e); err != nil {
			return result, fmt.Errorf("persist email %s: %w", e.ID, err)
		}
		emails = append(emails, e)
		known[e.ID] = true

		stats.TotalReceived++
		stats.Pending++
		stats.BySentiment[e.Sentiment]++
		stats.ByUrgency[e.Urgency]++
		result.NewCount++
		if e.Urgency == UrgencyUrgent {
			result.NewUrgent = append(result.NewUrgent, e)
		}
		log.Printf("ingest new id=%s sentiment=%s urgency=%s", e.ID, e.Sentiment, e.Urgency)
	}

	stats.LastUpdated = time.Now().Format(time.RFC3339)
	if err := AppendStats(db, stats); err != nil {
		return result, fmt.Errorf("append stats: %w", err)
	}

	SortEmails(emails)
	result.Emails = emails
	result.Stats = stats
	return result, nil
}

// ApplyStatusTransition moves the pending/resolved counters for a manual
// status change. Only the Pending<->Resolved transitions shift counts; a
// no-op transition leaves them unchanged.
func ApplyStatusTransition(stats *EmailStats, oldStatus, newStatus string) {
	switch {
	case oldStatus == StatusPending && newStatus == StatusResolved:
		stats.Pending--
		stats.Resolved++
	case oldStatus == StatusResolved && newStatus == StatusPending:
		stats.Resolved--
		stats.Pending++
	}
}

// RecordStatusChange persists a transition's counter movement as a fresh
// snapshot.
func RecordStatusChange(db *sql.DB, oldStatus, newStatus string) error {
	stats, err := LoadLatestStats(db)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	ApplyStatusTransition(&stats, oldStatus, newStatus)
	stats.LastUpdated = time.Now().Format(time.RFC3339)
	if err := AppendStats(db, stats); err != nil {
		return fmt.Errorf("append stats: %w", err)
	}
	return nil
}
