package main

import (
	"log"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()
	log.Printf("Database initialized at %s", cfg.DBPath)

	knowledge := BuildKnowledgeIndex(cfg.KnowledgeBase)
	log.Printf("Knowledge base indexed entries=%d", len(cfg.KnowledgeBase))

	ai := NewAIProcessor(cfg, knowledge)
	mailbox := NewMailbox(cfg)
	notify := NewUrgentNotifier(cfg)

	StartPollScheduler(cfg, db, mailbox, ai, notify)

	server := NewServer(db, mailbox, ai)
	server.notify = notify

	log.Printf("Starting support mail dashboard on %s", cfg.ListenAddr)
	if err := server.Router().Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
