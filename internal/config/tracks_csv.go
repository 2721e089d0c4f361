package config

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/spdl/spdl/internal/constants"
	"github.com/spdl/spdl/internal/models"
	"github.com/spdl/spdl/internal/util/sanitize"
)

// Track CSV columns. Headers are matched case-insensitively, which covers the
// capitalized export headers and their lower-case variants.
const (
	ColTrackName    = "Track name"
	ColArtistName   = "Artist name"
	ColPlaylistName = "Playlist name"
	ColSpotifyID    = "Spotify - id"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadTracksCSV loads track requests from a CSV or TXT export.
// Invalid UTF-8 is replaced rather than rejected. Rows with neither a track
// name nor a Spotify ID are skipped.
func LoadTracksCSV(path string) ([]models.Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracks CSV: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	text := strings.ToValidUTF8(string(data), "\uFFFD")

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1 // ragged rows are common in hand-edited exports
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read tracks CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("tracks CSV is empty")
	}

	// Parse header
	headerMap := make(map[string]int)
	for i, col := range records[0] {
		key := strings.ToLower(sanitize.SanitizeField(col))
		if _, dup := headerMap[key]; !dup {
			headerMap[key] = i
		}
	}

	_, hasTitle := headerMap[strings.ToLower(ColTrackName)]
	_, hasID := headerMap[strings.ToLower(ColSpotifyID)]
	if !hasTitle && !hasID {
		return nil, fmt.Errorf("missing required column: %q or %q", ColTrackName, ColSpotifyID)
	}

	var tracks []models.Track
	for i := 1; i < len(records); i++ {
		record := records[i]

		getCol := func(name string) string {
			if idx, ok := headerMap[strings.ToLower(name)]; ok && idx < len(record) {
				return sanitize.SanitizeField(record[idx])
			}
			return ""
		}

		track := models.Track{
			Title:     getCol(ColTrackName),
			Artist:    getCol(ColArtistName),
			Playlist:  getCol(ColPlaylistName),
			SpotifyID: getCol(ColSpotifyID),
		}
		if track.Title == "" && track.SpotifyID == "" {
			continue
		}
		if track.Playlist == "" {
			track.Playlist = constants.DefaultPlaylistName
		}
		track.Index = len(tracks) + 1
		tracks = append(tracks, track)
	}

	return tracks, nil
}

// TracksFromPlaylistLink turns a playlist link into a single request.
// spotdl expands the playlist itself; every track lands in the "Playlist" folder.
func TracksFromPlaylistLink(link string) ([]models.Track, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, fmt.Errorf("playlist link is empty")
	}
	return []models.Track{{
		Index:    1,
		Title:    link,
		Playlist: constants.LinkPlaylistName,
	}}, nil
}

// SaveTracksCSV writes tracks in the format LoadTracksCSV reads.
func SaveTracksCSV(path string, tracks []models.Track) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create tracks CSV: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	// Write header
	if err := writer.Write([]string{ColTrackName, ColArtistName, ColPlaylistName, ColSpotifyID}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, t := range tracks {
		if err := writer.Write([]string{t.Title, t.Artist, t.Playlist, t.SpotifyID}); err != nil {
			return fmt.Errorf("failed to write track row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
