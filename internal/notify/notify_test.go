package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/spdl/spdl/internal/models"
)

type sent struct {
	kind, title, message string
}

func testNotifier(enabled bool, alertErr error) (*Notifier, *[]sent) {
	var log []sent
	n := NewNotifier(enabled, nil)
	n.send = func(title, message string) error {
		log = append(log, sent{"notify", title, message})
		return nil
	}
	n.alert = func(title, message string) error {
		log = append(log, sent{"alert", title, message})
		return alertErr
	}
	return n, &log
}

func TestBatchFinished(t *testing.T) {
	tests := []struct {
		name      string
		summary   models.Summary
		alertErr  error
		wantKinds []string
		wantTitle string
		wantText  string
	}{
		{
			name:      "all succeeded",
			summary:   models.Summary{Total: 3, Succeeded: 2, Skipped: 1, OutputRoot: "/music/Spotify Downloads"},
			wantKinds: []string{"notify"},
			wantTitle: "Downloads finished",
			wantText:  "2 downloaded, 1 already present",
		},
		{
			name:      "failures use alert",
			summary:   models.Summary{Total: 3, Succeeded: 2, Failed: 1},
			wantKinds: []string{"alert"},
			wantTitle: "Downloads finished with errors",
			wantText:  "1 failed",
		},
		{
			name:      "alert falls back to notify",
			summary:   models.Summary{Total: 1, Failed: 1},
			alertErr:  errors.New("no dbus"),
			wantKinds: []string{"alert", "notify"},
			wantTitle: "Downloads finished with errors",
		},
		{
			name:      "stopped",
			summary:   models.Summary{Total: 10, Succeeded: 4, Failed: 1, Cancelled: 5, Stopped: true},
			wantKinds: []string{"notify"},
			wantTitle: "Downloads stopped",
			wantText:  "5 of 10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, log := testNotifier(true, tt.alertErr)
			n.BatchFinished(tt.summary)

			if len(*log) != len(tt.wantKinds) {
				t.Fatalf("sent %v, want kinds %v", *log, tt.wantKinds)
			}
			for i, kind := range tt.wantKinds {
				if (*log)[i].kind != kind {
					t.Errorf("send %d kind = %s, want %s", i, (*log)[i].kind, kind)
				}
			}
			last := (*log)[len(*log)-1]
			if last.title != tt.wantTitle {
				t.Errorf("title = %q, want %q", last.title, tt.wantTitle)
			}
			if !strings.Contains(last.message, tt.wantText) {
				t.Errorf("message %q does not contain %q", last.message, tt.wantText)
			}
		})
	}
}

func TestDisabledNotifier(t *testing.T) {
	n, log := testNotifier(false, nil)
	n.BatchFinished(models.Summary{Total: 1, Succeeded: 1})
	n.BatchFailed(errors.New("boom"))
	if len(*log) != 0 {
		t.Errorf("disabled notifier sent %v", *log)
	}

	n.SetEnabled(true)
	if !n.IsEnabled() {
		t.Fatal("SetEnabled(true) had no effect")
	}
	n.BatchFailed(errors.New("boom"))
	if len(*log) != 1 || !strings.Contains((*log)[0].message, "boom") {
		t.Errorf("sent %v", *log)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a long string", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 3, "..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.input, tt.maxLen); got != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
		}
	}
}

func TestShortenPath(t *testing.T) {
	long := "/home/user/Music/a/very/long/path/that/exceeds/the/limit/Spotify Downloads"
	if got := shortenPath(long); len(got) >= len(long) || !strings.HasSuffix(got, "Spotify Downloads") {
		t.Errorf("shortenPath(%q) = %q", long, got)
	}
	if got := shortenPath("/music/out"); got != "/music/out" {
		t.Errorf("short path changed: %q", got)
	}
}
