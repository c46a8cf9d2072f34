package mailer

import (
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"testing"

	"ksl-notify/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLogger() }

func TestGuessServer(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"someone@gmail.com", "smtp.gmail.com:587"},
		{"someone@GMAIL.com", "smtp.gmail.com:587"},
		{"someone@yahoo.com", "smtp.mail.yahoo.com:587"},
		{"someone@outlook.com", "smtp-mail.outlook.com:587"},
		{"someone@hotmail.com", "smtp-mail.outlook.com:587"},
		{"someone@comcast.net", "smtp.comcast.net:587"},
	}

	for _, tt := range tests {
		got, err := GuessServer(tt.email)
		if err != nil {
			t.Errorf("GuessServer(%q) returned error: %v", tt.email, err)
			continue
		}
		if got != tt.want {
			t.Errorf("GuessServer(%q) = %q; want %q", tt.email, got, tt.want)
		}
	}
}

func TestGuessServerUnknownDomain(t *testing.T) {
	_, err := GuessServer("someone@example.org")
	if !errors.Is(err, ErrUnknownServer) {
		t.Errorf("GuessServer = %v; want ErrUnknownServer", err)
	}
}

func TestNewRejectsBadServer(t *testing.T) {
	for _, server := range []string{"smtp.gmail.com", "smtp.gmail.com:port", ""} {
		if _, err := New("a@gmail.com", "pw", server, newTestLogger()); err == nil {
			t.Errorf("New accepted invalid server %q", server)
		}
	}
}

func TestComposeBodyPluralization(t *testing.T) {
	tests := []struct {
		count int
		want  string
	}{
		{1, "New match found for query lawn mower"},
		{2, "New matches found for query lawn mower"},
		{5, "New matches found for query lawn mower"},
	}

	for _, tt := range tests {
		body := composeBody("lawn mower", "REPORT", tt.count)
		if !strings.HasPrefix(body, tt.want) {
			t.Errorf("composeBody(count=%d) = %q; want prefix %q", tt.count, body, tt.want)
		}
		if !strings.HasSuffix(body, "\n\nREPORT") {
			t.Errorf("composeBody(count=%d) should end with a blank line and the report, got %q", tt.count, body)
		}
	}
}

func TestIsAuthErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"535", &textproto.Error{Code: 535, Msg: "authentication failed"}, true},
		{"530", &textproto.Error{Code: 530, Msg: "auth required"}, true},
		{"wrapped 535", fmt.Errorf("dial: %w", &textproto.Error{Code: 535, Msg: "no"}), true},
		{"transport 421", &textproto.Error{Code: 421, Msg: "try later"}, false},
		{"generic", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		if got := isAuthErr(tt.err); got != tt.want {
			t.Errorf("isAuthErr(%s) = %v; want %v", tt.name, got, tt.want)
		}
	}
}
