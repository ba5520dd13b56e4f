// package formatter handles song list serialization: parsing uploaded
// CSV files into songs and exporting session results to CSV and plain
// text.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/moodlist/internal/models"
	"github.com/desertthunder/moodlist/internal/shared"
)

// ParseSongsCSV reads title/artist pairs from CSV. The first row may be
// a header (detected by a "title" in the first column); empty rows are
// skipped and values are trimmed. Rows need at least two columns.
func ParseSongsCSV(r io.Reader) ([]models.Song, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed CSV: %v", shared.ErrInvalidInput, err)
	}

	songs := make([]models.Song, 0, len(records))
	for i, record := range records {
		if len(record) == 0 {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(record[0]), "title") {
			continue
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("%w: row %d needs title and artist columns", shared.ErrInvalidInput, i+1)
		}

		title := strings.TrimSpace(record[0])
		artist := strings.TrimSpace(record[1])
		if title == "" && artist == "" {
			continue
		}
		if title == "" || artist == "" {
			return nil, fmt.Errorf("%w: row %d has an empty title or artist", shared.ErrInvalidInput, i+1)
		}

		songs = append(songs, models.Song{Title: title, Artist: artist})
	}

	if len(songs) == 0 {
		return nil, fmt.Errorf("%w: CSV contains no songs", shared.ErrInvalidInput)
	}

	return songs, nil
}

// SongsToCSV serializes songs with a Title,Artist header.
func SongsToCSV(songs []models.Song) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Title", "Artist"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, song := range songs {
		if err := writer.Write([]string{song.Title, song.Artist}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// MatchesToText renders match results as a numbered plain text list,
// marking each song as resolved or not.
func MatchesToText(songs []models.Song, matches []models.MatchedSong) []byte {
	resolved := make(map[models.Song]models.CatalogTrack, len(matches))
	for _, match := range matches {
		resolved[match.Original] = match.Track
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Matched %d of %d songs\n\n", len(matches), len(songs))
	for i, song := range songs {
		if track, ok := resolved[song]; ok {
			fmt.Fprintf(&buf, "%d. ✓ %s - %s (%s)\n", i+1, song.Artist, song.Title, track.ID)
		} else {
			fmt.Fprintf(&buf, "%d. ✗ %s - %s (no match)\n", i+1, song.Artist, song.Title)
		}
	}
	return buf.Bytes()
}

// PlaylistToText renders a created playlist summary.
func PlaylistToText(playlist *models.Playlist) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Playlist: %s\n", playlist.Name)
	fmt.Fprintf(&buf, "Tracks: %d\n", playlist.TrackCount)
	if playlist.URL != "" {
		fmt.Fprintf(&buf, "URL: %s\n", playlist.URL)
	}
	return buf.Bytes()
}
