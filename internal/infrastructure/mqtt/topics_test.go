package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Config", topics.Config(), "fieldline/config"},
		{"SystemStatus", topics.SystemStatus(), "fieldline/system/status"},
		{"SystemHeartbeat", topics.SystemHeartbeat(), "fieldline/system/heartbeat"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("Topics.%s() = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestUniqueClientID(t *testing.T) {
	a := uniqueClientID("fieldline-core")
	b := uniqueClientID("fieldline-core")

	if a == b {
		t.Errorf("uniqueClientID produced identical IDs: %q", a)
	}
	wantLen := len("fieldline-core") + 1 + clientIDSuffixLength
	if len(a) != wantLen {
		t.Errorf("uniqueClientID length = %d, want %d (%q)", len(a), wantLen, a)
	}
}
