package localfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestIsHiddenName(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{".hidden", true},
		{".spdl-state.csv", true},
		{"visible.mp3", false},
		{"..", false},
		{".", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHiddenName(tt.name); got != tt.expected {
				t.Errorf("IsHiddenName(%q) = %v, want %v", tt.name, got, tt.expected)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a/Band - Song.mp3", "audio/mpeg"},
		{"Song.FLAC", "audio/flac"},
		{"Song.m4a", "audio/mp4"},
		{"cover.jpg", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentType(tt.path); got != tt.want {
			t.Errorf("ContentType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func mkfile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "Mix", "A - 1.mp3"))
	mkfile(t, filepath.Join(root, "Mix", "notes.txt"))
	mkfile(t, filepath.Join(root, "Other", "B - 2.flac"))
	mkfile(t, filepath.Join(root, ".spdl-state.csv"))
	mkfile(t, filepath.Join(root, ".cache", "C - 3.mp3"))

	collect := func(opts WalkOptions) []string {
		var got []string
		err := Walk(root, opts, func(path string, info fs.FileInfo) error {
			rel, _ := filepath.Rel(root, path)
			got = append(got, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		sort.Strings(got)
		return got
	}

	audio := collect(WalkOptions{AudioOnly: true})
	want := []string{"Mix/A - 1.mp3", "Other/B - 2.flac"}
	if len(audio) != len(want) {
		t.Fatalf("audio walk = %v, want %v", audio, want)
	}
	for i := range want {
		if audio[i] != want[i] {
			t.Errorf("audio[%d] = %q, want %q", i, audio[i], want[i])
		}
	}

	all := collect(WalkOptions{IncludeHidden: true})
	if len(all) != 5 {
		t.Errorf("hidden walk = %v, want 5 files", all)
	}
}

func TestRemoveEmptyDirs(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "Full", "A - 1.mp3"))
	if err := os.MkdirAll(filepath.Join(root, "Empty"), 0755); err != nil {
		t.Fatal(err)
	}
	// Only immediate children are considered.
	if err := os.MkdirAll(filepath.Join(root, "Nested", "Inner"), 0755); err != nil {
		t.Fatal(err)
	}

	removed, err := RemoveEmptyDirs(root)
	if err != nil {
		t.Fatalf("RemoveEmptyDirs() error = %v", err)
	}
	if len(removed) != 1 || removed[0] != "Empty" {
		t.Errorf("removed = %v, want [Empty]", removed)
	}

	for _, dir := range []string{"Full", "Nested", filepath.Join("Nested", "Inner")} {
		if _, err := os.Stat(filepath.Join(root, dir)); err != nil {
			t.Errorf("%s should still exist: %v", dir, err)
		}
	}
}

func TestRemoveEmptyDirs_MissingRoot(t *testing.T) {
	removed, err := RemoveEmptyDirs(filepath.Join(t.TempDir(), "missing"))
	if err != nil || removed != nil {
		t.Errorf("RemoveEmptyDirs(missing) = %v, %v", removed, err)
	}
}
