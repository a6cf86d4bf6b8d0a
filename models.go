package main

import "sort"

// Sentiment labels produced by the classifier.
const (
	SentimentPositive = "Positive"
	SentimentNegative = "Negative"
	SentimentNeutral  = "Neutral"
)

// Urgency labels produced by the classifier.
const (
	UrgencyUrgent    = "Urgent"
	UrgencyNotUrgent = "Not urgent"
)

// Workflow statuses.
const (
	StatusPending  = "Pending"
	StatusResolved = "Resolved"
)

type Email struct {
	ID           string `json:"id"` // IMAP UID, decimal string
	Sender       string `json:"sender"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	Date         string `json:"date"` // raw Date header, free text
	Sentiment    string `json:"sentiment"`
	Urgency      string `json:"urgency"`
	Requirements string `json:"requirements"`
	AIResponse   string `json:"ai_response"`
	Status       string `json:"status"`
	ProcessedAt  string `json:"processed_at"`
}

// InboundEmail is a parsed mailbox message that has not been persisted yet.
// Contacts are best-effort extracted metadata and are not stored.
type InboundEmail struct {
	ID      string
	Sender  string
	Subject string
	Body    string
	Date    string
	Phones  []string
	Emails  []string
}

type EmailStats struct {
	TotalReceived int            `json:"total_received"`
	Resolved      int            `json:"resolved"`
	Pending       int            `json:"pending"`
	BySentiment   map[string]int `json:"by_sentiment"`
	ByUrgency     map[string]int `json:"by_urgency"`
	LastUpdated   string         `json:"last_updated"`
}

func NewEmailStats() EmailStats {
	return EmailStats{
		BySentiment: make(map[string]int),
		ByUrgency:   make(map[string]int),
	}
}

type StatsHistoryEntry struct {
	Time        string         `json:"time"`
	Total       int            `json:"total"`
	Resolved    int            `json:"resolved"`
	Pending     int            `json:"pending"`
	BySentiment map[string]int `json:"by_sentiment"`
	ByUrgency   map[string]int `json:"by_urgency"`
}

// SortEmails orders the dashboard listing: Urgent before Not urgent, and
// within each urgency group by descending date string. The date comparison is
// plain lexical on the raw Date header, so mixed header formats do not sort
// chronologically.
func SortEmails(emails []Email) {
	sort.SliceStable(emails, func(i, j int) bool {
		ui, uj := urgencyRank(emails[i].Urgency), urgencyRank(emails[j].Urgency)
		if ui != uj {
			return ui < uj
		}
		return emails[i].Date > emails[j].Date
	})
}

func urgencyRank(urgency string) int {
	if urgency == UrgencyUrgent {
		return 0
	}
	return 1
}
