package email

import (
	"testing"

	"go.uber.org/zap"
)

func TestIsConfigured(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"empty", Config{}, false},
		{"missing from", Config{Host: "smtp.local", Port: "587"}, false},
		{"missing host", Config{Port: "587", From: "noreply@covenant.dev"}, false},
		{"complete", Config{Host: "smtp.local", Port: "587", From: "noreply@covenant.dev"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewService(tc.cfg, zap.NewNop())
			if got := s.IsConfigured(); got != tc.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSendFailsWhenUnconfigured(t *testing.T) {
	s := NewService(Config{}, zap.NewNop())
	if err := s.send([]string{"a@b.c"}, "subject", "body"); err == nil {
		t.Error("expected error when unconfigured")
	}
}

func TestNotifyUnconfiguredIsNoOp(t *testing.T) {
	s := NewService(Config{}, zap.NewNop())
	// Must not panic or block.
	s.NotifyRequestCreated([]string{"a@b.c"}, "mr_1", "lic-1", "Avery")
	s.NotifyRequestDecided("a@b.c", "mr_1", "lic-1", "ACCEPTED", "ok")
}
