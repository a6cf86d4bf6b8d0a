package main

import (
	"bytes"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/jhillyerd/enmime"
	gomail "github.com/wneessen/go-mail"
)

// candidateWindow is how far back the mailbox search looks.
const candidateWindow = 24 * time.Hour

const unparsableBody = "Could not parse email body"

var phoneRe = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
var emailAddrRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// Mailbox talks to the IMAP and SMTP servers. Every operation opens a fresh
// session and tears it down before returning; connection failures surface as
// empty results or false, never as errors the caller has to handle.
type Mailbox struct {
	cfg Config
}

func NewMailbox(cfg Config) *Mailbox {
	return &Mailbox{cfg: cfg}
}

func (m *Mailbox) dial() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", m.cfg.IMAPServer, m.cfg.IMAPPort)
	c, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := c.Login(m.cfg.MailUsername, m.cfg.MailPassword).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

func closeSession(c *imapclient.Client) {
	if err := c.Logout().Wait(); err != nil {
		log.Printf("imap logout error: %v", err)
	}
	_ = c.Close()
}

// SearchCandidates scans the inbox for messages received within the trailing
// window whose subject matches a configured search term. Fetches use peek so
// candidates are not marked read. Any connection or search failure yields an
// empty result.
func (m *Mailbox) SearchCandidates() []InboundEmail {
	c, err := m.dial()
	if err != nil {
		log.Printf("mailbox search connect error: %v", err)
		return nil
	}
	defer closeSession(c)

	if _, err := c.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		log.Printf("mailbox select error: %v", err)
		return nil
	}

	criteria := &imap.SearchCriteria{Since: time.Now().Add(-candidateWindow)}
	data, err := c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		log.Printf("mailbox search error: %v", err)
		return nil
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetchOptions := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}

	var candidates []InboundEmail
	for _, uid := range data.AllUIDs() {
		msgs, err := c.Fetch(imap.UIDSetNum(uid), fetchOptions).Collect()
		if err != nil {
			log.Printf("mailbox fetch error uid=%d: %v", uid, err)
			continue
		}
		if len(msgs) == 0 {
			continue
		}
		raw := msgs[0].FindBodySection(section)
		if len(raw) == 0 {
			continue
		}
		parsed := parseMessage(uid, raw)
		if !m.cfg.SubjectMatches(parsed.Subject) {
			continue
		}
		candidates = append(candidates, parsed)
	}

	log.Printf("mailbox search window=%s matched=%d of %d", candidateWindow, len(candidates), len(data.AllUIDs()))
	return candidates
}

// parseMessage decodes one raw RFC 822 message. Header decoding and body
// extraction degrade to placeholders rather than failing: a message that
// cannot be parsed still becomes a candidate with whatever survived.
func parseMessage(uid imap.UID, raw []byte) InboundEmail {
	msg := InboundEmail{
		ID:      strconv.FormatUint(uint64(uid), 10),
		Subject: "No Subject",
		Body:    unparsableBody,
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		log.Printf("mailbox parse error uid=%d: %v", uid, err)
		return msg
	}

	if subject := strings.TrimSpace(env.GetHeader("Subject")); subject != "" {
		msg.Subject = subject
	}
	msg.Sender = env.GetHeader("From")
	msg.Date = env.GetHeader("Date")

	// enmime exposes the first non-attachment text part directly; falls back
	// to down-converted HTML when there is no text/plain part.
	if body := strings.TrimSpace(env.Text); body != "" {
		msg.Body = body
	}

	msg.Phones = uniqueMatches(phoneRe, msg.Body)
	msg.Emails = uniqueMatches(emailAddrRe, msg.Body)
	return msg
}

func uniqueMatches(re *regexp.Regexp, text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, match := range re.FindAllString(text, -1) {
		if !seen[match] {
			seen[match] = true
			out = append(out, match)
		}
	}
	return out
}

// MarkProcessed sets the \Seen flag on a message. Best-effort: false on any
// failure, including an unparsable id.
func (m *Mailbox) MarkProcessed(id string) bool {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		log.Printf("mailbox mark error: bad uid %q: %v", id, err)
		return false
	}

	c, err := m.dial()
	if err != nil {
		log.Printf("mailbox mark connect error: %v", err)
		return false
	}
	defer closeSession(c)

	if _, err := c.Select("INBOX", nil).Wait(); err != nil {
		log.Printf("mailbox mark select error: %v", err)
		return false
	}

	store := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	if err := c.Store(imap.UIDSetNum(imap.UID(uid)), store, nil).Close(); err != nil {
		log.Printf("mailbox mark store error uid=%d: %v", uid, err)
		return false
	}
	return true
}

// SendReply submits a plain-text reply over SMTP with STARTTLS. When
// inReplyTo is set the reply is threaded onto the original message.
func (m *Mailbox) SendReply(to, subject, body, inReplyTo string) bool {
	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.MailUsername); err != nil {
		log.Printf("mailbox send from error: %v", err)
		return false
	}
	if err := msg.To(to); err != nil {
		log.Printf("mailbox send to error addr=%q: %v", to, err)
		return false
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	if inReplyTo != "" {
		msg.SetGenHeader(gomail.HeaderInReplyTo, inReplyTo)
		msg.SetGenHeader(gomail.HeaderReferences, inReplyTo)
	}

	client, err := gomail.NewClient(m.cfg.SMTPServer,
		gomail.WithPort(m.cfg.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.MailUsername),
		gomail.WithPassword(m.cfg.MailPassword),
	)
	if err != nil {
		log.Printf("mailbox smtp client error: %v", err)
		return false
	}
	if err := client.DialAndSend(msg); err != nil {
		log.Printf("mailbox send error to=%s: %v", to, err)
		return false
	}
	log.Printf("mailbox sent reply to=%s subject=%q", to, subject)
	return true
}
