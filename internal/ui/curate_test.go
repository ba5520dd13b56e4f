package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodlist/internal/models"
)

func matchedSongs(titles ...string) []models.MatchedSong {
	out := make([]models.MatchedSong, len(titles))
	for i, title := range titles {
		out[i] = models.MatchedSong{
			Original: models.Song{Title: title, Artist: "Artist"},
			Track:    models.CatalogTrack{Name: title, Artists: []string{"Artist"}},
		}
	}
	return out
}

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "space":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func TestCurationModel(t *testing.T) {
	t.Run("starts with everything selected", func(t *testing.T) {
		m := NewModel(matchedSongs("A", "B", "C"))
		m = press(m, "enter")

		result := m.Result()
		if result.Cancelled {
			t.Fatal("unexpected cancellation")
		}
		if len(result.Indices) != 3 {
			t.Errorf("expected all 3 kept, got %v", result.Indices)
		}
	})

	t.Run("toggle drops the song under the cursor", func(t *testing.T) {
		m := NewModel(matchedSongs("A", "B", "C"))
		m = press(m, "j")
		m = press(m, "space")
		m = press(m, "enter")

		result := m.Result()
		if len(result.Indices) != 2 || result.Indices[0] != 0 || result.Indices[1] != 2 {
			t.Errorf("expected indices [0 2], got %v", result.Indices)
		}
	})

	t.Run("none then toggle keeps one", func(t *testing.T) {
		m := NewModel(matchedSongs("A", "B"))
		m = press(m, "n")
		m = press(m, "space")
		m = press(m, "enter")

		result := m.Result()
		if len(result.Indices) != 1 || result.Indices[0] != 0 {
			t.Errorf("expected indices [0], got %v", result.Indices)
		}
	})

	t.Run("quit cancels", func(t *testing.T) {
		m := NewModel(matchedSongs("A"))
		m = press(m, "esc")

		if !m.Result().Cancelled {
			t.Error("expected cancellation")
		}
	})

	t.Run("view lists songs with markers", func(t *testing.T) {
		m := NewModel(matchedSongs("Alpha", "Beta"))
		m = press(m, "j")
		m = press(m, "space")

		view := m.View()
		if !strings.Contains(view, "Alpha") || !strings.Contains(view, "Beta") {
			t.Errorf("expected song titles in view: %q", view)
		}
		if !strings.Contains(view, "[ ]") || !strings.Contains(view, "[x]") {
			t.Errorf("expected selection markers in view: %q", view)
		}
	})
}
