package config

import (
	"path/filepath"
	"testing"

	"github.com/spdl/spdl/internal/models"
)

func TestLoadTracksCSV(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    []models.Track
		wantErr bool
	}{
		{
			name: "standard export",
			content: "Track name,Artist name,Playlist name,Spotify - id\n" +
				"Song A,Band,Road Trip,4uLU6hMCjMI75M1A2tKUQC\n" +
				"Song B,Other,,\n",
			want: []models.Track{
				{Index: 1, Title: "Song A", Artist: "Band", Playlist: "Road Trip", SpotifyID: "4uLU6hMCjMI75M1A2tKUQC"},
				{Index: 2, Title: "Song B", Artist: "Other", Playlist: "Default"},
			},
		},
		{
			name:    "lower-case headers with BOM",
			content: "\xEF\xBB\xBFtrack name,artist name,playlist name\nSong,Band,Mix\n",
			want: []models.Track{
				{Index: 1, Title: "Song", Artist: "Band", Playlist: "Mix"},
			},
		},
		{
			name: "blank and ragged rows",
			content: "Track name,Artist name\n" +
				",\n" +
				"Only Title\n" +
				"\n",
			want: []models.Track{
				{Index: 1, Title: "Only Title", Playlist: "Default"},
			},
		},
		{
			name:    "id only row",
			content: "Spotify - id\nabc123\n",
			want: []models.Track{
				{Index: 1, SpotifyID: "abc123", Playlist: "Default"},
			},
		},
		{
			name:    "invalid utf-8 is replaced",
			content: "Track name,Artist name\nCaf\xe9,Band\n",
			want: []models.Track{
				{Index: 1, Title: "Caf\uFFFD", Artist: "Band", Playlist: "Default"},
			},
		},
		{
			name:    "missing columns",
			content: "Name,Artist\nSong,Band\n",
			wantErr: true,
		},
		{
			name:    "empty file",
			content: "",
			wantErr: true,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "tracks"+string(rune('a'+i))+".csv", tt.content)
			got, err := LoadTracksCSV(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadTracksCSV() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d tracks, want %d: %+v", len(got), len(tt.want), got)
			}
			for j := range got {
				if got[j] != tt.want[j] {
					t.Errorf("track %d = %+v, want %+v", j, got[j], tt.want[j])
				}
			}
		})
	}
}

func TestLoadTracksCSV_MissingFile(t *testing.T) {
	if _, err := LoadTracksCSV(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestTracksFromPlaylistLink(t *testing.T) {
	got, err := TracksFromPlaylistLink("  https://open.spotify.com/playlist/xyz \n")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d tracks, want 1", len(got))
	}
	if got[0].Title != "https://open.spotify.com/playlist/xyz" || got[0].Playlist != "Playlist" {
		t.Errorf("unexpected track %+v", got[0])
	}
	if got[0].Query() != got[0].Title {
		t.Errorf("Query() = %q, want the link itself", got[0].Query())
	}

	if _, err := TracksFromPlaylistLink("   "); err == nil {
		t.Error("expected error for empty link")
	}
}

func TestSaveTracksCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.csv")
	in := []models.Track{
		{Title: "Song, with comma", Artist: "Band", Playlist: "Mix", SpotifyID: "id1"},
		{Title: "Other", Artist: "Band", Playlist: "Default"},
	}

	if err := SaveTracksCSV(path, in); err != nil {
		t.Fatalf("SaveTracksCSV() error = %v", err)
	}

	out, err := LoadTracksCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d tracks", len(out))
	}
	if out[0].Title != "Song, with comma" || out[0].SpotifyID != "id1" {
		t.Errorf("first track = %+v", out[0])
	}
	if out[1].Index != 2 {
		t.Errorf("Index = %d, want 2", out[1].Index)
	}
}
