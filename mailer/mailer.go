// Package mailer delivers listing digests and operator alerts over SMTP.
// The sender and recipient are the same address: the notifier mails you at
// the account it sends from.
package mailer

import (
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"

	mail "gopkg.in/mail.v2"

	"ksl-notify/utils"
)

// ErrAuth means the SMTP server rejected the email+password pair. It is
// fatal at startup and never accounted by the poll loop.
var ErrAuth = errors.New("mailer: smtp server rejected email+password")

// ErrUnknownServer means no SMTP server could be derived from the email
// domain and none was configured.
var ErrUnknownServer = errors.New(
	"mailer: unknown email server, provide --smtpserver or set the KSL_SMTP environment variable")

// wellKnownServers maps common mail domains to their submission endpoint.
var wellKnownServers = map[string]string{
	"gmail.com":   "smtp.gmail.com:587",
	"yahoo.com":   "smtp.mail.yahoo.com:587",
	"outlook.com": "smtp-mail.outlook.com:587",
	"hotmail.com": "smtp-mail.outlook.com:587",
	"comcast.net": "smtp.comcast.net:587",
}

// GuessServer derives the SMTP host:port from the email address domain.
func GuessServer(email string) (string, error) {
	domain := email[strings.LastIndex(email, "@")+1:]
	if server, ok := wellKnownServers[strings.ToLower(domain)]; ok {
		return server, nil
	}
	return "", ErrUnknownServer
}

// Mailer sends digests and alerts from (and to) a single address.
type Mailer struct {
	email    string
	password string
	host     string
	port     int
	logger   *utils.Logger
}

// New creates a Mailer for the given account. server is "host:port".
func New(email, password, server string, logger *utils.Logger) (*Mailer, error) {
	host, portStr, err := net.SplitHostPort(server)
	if err != nil {
		return nil, fmt.Errorf("mailer: invalid smtp server %q: %w", server, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("mailer: invalid smtp port %q: %w", portStr, err)
	}
	return &Mailer{
		email:    email,
		password: password,
		host:     host,
		port:     port,
		logger:   logger,
	}, nil
}

func (m *Mailer) dialer() *mail.Dialer {
	d := mail.NewDialer(m.host, m.port, m.email, m.password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	return d
}

// VerifyLogin dials the server and authenticates once, then disconnects.
// It must be called before the poll loop starts; an ErrAuth result is
// unrecoverable.
func (m *Mailer) VerifyLogin() error {
	sc, err := m.dialer().Dial()
	if err != nil {
		if isAuthErr(err) {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return fmt.Errorf("mailer: verify login: %w", err)
	}
	return sc.Close()
}

// Send delivers a digest of newCount new listings for query.
func (m *Mailer) Send(report, query string, newCount int) error {
	subject := fmt.Sprintf("%s search match on KSL Classifieds", query)
	if err := m.send(subject, composeBody(query, report, newCount)); err != nil {
		return fmt.Errorf("mailer: send digest for %q: %w", query, err)
	}
	m.logger.Debug("[mailer] sent digest for %q (%d new)", query, newCount)
	return nil
}

// SendAlert delivers an operator alert describing an accumulated failure.
// Callers on the alert path are expected to swallow any error returned here.
func (m *Mailer) SendAlert(queries []string, cause error, count int) error {
	subject := "ksl-notify error alert"
	body := fmt.Sprintf(
		"Repeated errors detected while polling for %s.\n"+
			"Accumulated error count: %d\n"+
			"The notifier will terminate once the count exceeds 100.\n\n%v",
		strings.Join(queries, ", "), count, cause)
	if err := m.send(subject, body); err != nil {
		return fmt.Errorf("mailer: send alert: %w", err)
	}
	m.logger.Debug("[mailer] sent operator alert (count %d)", count)
	return nil
}

func (m *Mailer) send(subject, body string) error {
	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.email, "KSL Notify")
	msg.SetHeader("To", m.email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return m.dialer().DialAndSend(msg)
}

func composeBody(query, report string, newCount int) string {
	plural := ""
	if newCount > 1 {
		plural = "es"
	}
	return fmt.Sprintf("New match%s found for query %s\n\n%s", plural, query, report)
}

// isAuthErr reports whether the SMTP failure was an authentication
// rejection (reply codes 530/534/535) rather than a transport problem.
func isAuthErr(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch tpErr.Code {
		case 530, 534, 535:
			return true
		}
	}
	return false
}
