package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"
)

// NewUrgentNotifier returns a function that posts a Slack summary of newly
// ingested urgent messages, or nil when Slack is not configured. Post
// failures are logged and swallowed; notification is never on the critical
// path of a poll.
func NewUrgentNotifier(cfg Config) func(urgent []Email) {
	if !cfg.SlackConfigured() {
		log.Println("Urgent notifications disabled (slack_bot_token/slack_channel_id not set)")
		return nil
	}

	api := slack.New(cfg.SlackBotToken)
	channel := cfg.SlackChannelID
	log.Printf("Urgent notifications enabled channel=%s", channel)

	return func(urgent []Email) {
		if len(urgent) == 0 {
			return
		}
		_, _, err := api.PostMessage(channel, slack.MsgOptionText(FormatUrgentSummary(urgent), false))
		if err != nil {
			log.Printf("slack notify error: %v", err)
		}
	}
}

// FormatUrgentSummary renders one notification message for a batch of urgent
// emails.
func FormatUrgentSummary(urgent []Email) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(":rotating_light: %d urgent support email(s) received:\n", len(urgent)))
	for _, e := range urgent {
		subject := strings.TrimSpace(e.Subject)
		if len(subject) > 80 {
			subject = subject[:80] + "..."
		}
		b.WriteString(fmt.Sprintf("- %s: %s\n", e.Sender, subject))
	}
	return strings.TrimRight(b.String(), "\n")
}
