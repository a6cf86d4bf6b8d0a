package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FormatPollSummary returns a one-line human-readable summary of a cycle.
func FormatPollSummary(result PollResult) string {
	if result.NewCount == 0 {
		return fmt.Sprintf("no new messages (%d tracked)", len(result.Emails))
	}
	summary := fmt.Sprintf("%d new messages (%d tracked, %d pending)",
		result.NewCount, len(result.Emails), result.Stats.Pending)
	if len(result.NewUrgent) > 0 {
		summary += fmt.Sprintf(", %d urgent", len(result.NewUrgent))
	}
	return summary
}

// StartPollScheduler starts a cron-based background ingestion loop when
// poll_schedule is configured. The schedule is a standard 5-field cron
// expression (minute hour day-of-month month day-of-week). Examples:
// "*/15 * * * *" (every 15 minutes), "0 9 * * 1-5" (weekdays 9am).
// The dashboard stays fully functional without it; polls then happen only
// when the operator loads the email list.
func StartPollScheduler(cfg Config, db *sql.DB, source MessageSource, ai Classifier, notify func(urgent []Email)) {
	schedule := strings.TrimSpace(cfg.PollSchedule)
	if schedule == "" {
		log.Println("Background poll disabled (poll_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid poll_schedule '%s': %v, background poll disabled", schedule, err)
		return
	}

	log.Printf("Background poll scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next poll at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			result, pollErr := RunPollCycle(db, source, ai)
			if pollErr != nil {
				log.Printf("Background poll error: %v", pollErr)
				continue
			}
			log.Printf("Background poll complete: %s", FormatPollSummary(result))

			if notify != nil && len(result.NewUrgent) > 0 {
				notify(result.NewUrgent)
			}
		}
	}()
}
