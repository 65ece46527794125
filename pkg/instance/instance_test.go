package instance

import "testing"

func TestGetIDPrefersExplicitID(t *testing.T) {
	t.Setenv("DINEIN_INSTANCE_ID", "relay-2")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "relay-2" {
		t.Fatalf("expected relay-2 got %s", got)
	}
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv("DINEIN_INSTANCE_ID", "")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "web.1" {
		t.Fatalf("expected web.1 got %s", got)
	}
}
