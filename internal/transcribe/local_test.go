package transcribe

import "testing"

func TestStripWhisperMarkers(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hello world", "hello world"},
		{"[_BEG_]hello[_TT_123] world", "hello world"},
		{"[silence]", ""},
	}
	for _, c := range cases {
		if got := stripWhisperMarkers(c.in); got != c.want {
			t.Errorf("stripWhisperMarkers(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLocalCancelRoundTrip(t *testing.T) {
	l := NewLocal("unused.bin", 2)
	if l.cancelled.Load() {
		t.Fatal("new Local should not start cancelled")
	}
	l.Cancel()
	if !l.cancelled.Load() {
		t.Fatal("expected cancelled flag set after Cancel")
	}
	l.ResetCancel()
	if l.cancelled.Load() {
		t.Fatal("expected cancelled flag cleared after ResetCancel")
	}
}

func TestLocalNameAndThreadsDefault(t *testing.T) {
	l := NewLocal("model.bin", 0)
	if l.Threads != 4 {
		t.Errorf("expected default threads 4, got %d", l.Threads)
	}
	if l.Name() != "local" {
		t.Errorf("expected name 'local', got %q", l.Name())
	}
}
