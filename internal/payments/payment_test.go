package payments

import "testing"

func TestPaymentCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusAuthorized},
		{StatusPending, StatusFailed},
		{StatusAuthorized, StatusCaptured},
		{StatusAuthorized, StatusFailed},
		{StatusAuthorized, StatusVoided},
		{StatusFailed, StatusVoided},
		{StatusCaptured, StatusRefunded},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusCaptured},
		{StatusCaptured, StatusAuthorized},
		{StatusCaptured, StatusVoided},
		{StatusVoided, StatusAuthorized},
		{StatusRefunded, StatusCaptured},
		{StatusFailed, StatusAuthorized},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestPaymentTerminal(t *testing.T) {
	for _, s := range []Status{StatusVoided, StatusRefunded} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusAuthorized, StatusCaptured, StatusFailed} {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
