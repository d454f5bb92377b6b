// Package email sends moderation notifications over SMTP. Delivery is
// fire-and-forget: a notification failure never fails the transaction that
// triggered it.
package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	log    *zap.Logger
}

func NewService(config Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   smtp.PlainAuth("", config.Username, config.Password, config.Host),
		log:    log,
	}
}

// IsConfigured reports whether SMTP settings are present.
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) send(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))
	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// notify delivers in the background and logs failures.
func (s *Service) notify(to []string, subject, body string) {
	if !s.IsConfigured() || len(to) == 0 {
		return
	}
	go func() {
		if err := s.send(to, subject, body); err != nil {
			s.log.Warn("notification delivery failed",
				zap.String("subject", subject),
				zap.Error(err))
		}
	}()
}

// NotifyRequestCreated tells the routed moderators a new request awaits
// review.
func (s *Service) NotifyRequestCreated(moderatorEmails []string, requestID, documentID, requester string) {
	subject := fmt.Sprintf("[Covenant] New moderation request for %s", documentID)
	body := fmt.Sprintf(
		"A change to document %s proposed by %s is waiting for review.\n\nRequest id: %s\n",
		documentID, requester, requestID)
	s.notify(moderatorEmails, subject, body)
}

// NotifyRequestDecided tells the requester the outcome of their proposal.
func (s *Service) NotifyRequestDecided(requesterEmail, requestID, documentID, state, comment string) {
	if requesterEmail == "" {
		return
	}
	subject := fmt.Sprintf("[Covenant] Moderation request %s: %s", requestID, strings.ToLower(state))
	body := fmt.Sprintf(
		"Your proposed change to document %s was %s.\n\nReviewer comment: %s\n",
		documentID, strings.ToLower(state), comment)
	s.notify([]string{requesterEmail}, subject, body)
}
