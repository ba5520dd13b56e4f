package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodlist/internal/models"
)

// CurationResult carries the outcome of an interactive curation run.
type CurationResult struct {
	Indices   []int
	Cancelled bool
}

// Model is the curation view state: a multi-select list over the
// matched songs.
type Model struct {
	matched  []models.MatchedSong
	selected []bool
	cursor   int
	done     bool
	result   CurationResult
	keys     keyMap
	help     help.Model
	width    int
}

// NewModel creates a curation model with every match pre-selected.
func NewModel(matched []models.MatchedSong) Model {
	selected := make([]bool, len(matched))
	for i := range selected {
		selected[i] = true
	}
	return Model{
		matched:  matched,
		selected: selected,
		keys:     newKeyMap(),
		help:     help.New(),
	}
}

// Result returns the final selection after the program exits.
func (m Model) Result() CurationResult {
	return m.result
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.down):
			if m.cursor < len(m.matched)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.toggle):
			if len(m.selected) > 0 {
				m.selected[m.cursor] = !m.selected[m.cursor]
			}
		case key.Matches(msg, m.keys.all):
			for i := range m.selected {
				m.selected[i] = true
			}
		case key.Matches(msg, m.keys.none):
			for i := range m.selected {
				m.selected[i] = false
			}
		case key.Matches(msg, m.keys.confirm):
			m.result = CurationResult{Indices: m.indices()}
			m.done = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.quit):
			m.result = CurationResult{Cancelled: true}
			m.done = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m Model) indices() []int {
	indices := make([]int, 0, len(m.selected))
	for i, keep := range m.selected {
		if keep {
			indices = append(indices, i)
		}
	}
	return indices
}

func (m Model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Curate playlist (%d/%d kept)", len(m.indices()), len(m.matched))))
	b.WriteString("\n")

	for i, match := range m.matched {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}

		check := "[ ]"
		line := fmt.Sprintf("%s %s - %s", check, match.Original.Artist, match.Original.Title)
		if m.selected[i] {
			check = "[x]"
			line = styles.ok.Render(fmt.Sprintf("%s %s - %s", check, match.Original.Artist, match.Original.Title))
		}

		b.WriteString(cursor + line + "\n")
		if i == m.cursor {
			b.WriteString(styles.help.Render(fmt.Sprintf("      matched: %s (%s)", match.Track.Name, strings.Join(match.Track.Artists, ", "))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// RunCuration runs the interactive selection and returns the kept
// indices. Cancelled is set when the user quit without confirming.
func RunCuration(matched []models.MatchedSong) (CurationResult, error) {
	program := tea.NewProgram(NewModel(matched))
	final, err := program.Run()
	if err != nil {
		return CurationResult{}, fmt.Errorf("curation UI failed: %w", err)
	}

	model, ok := final.(Model)
	if !ok {
		return CurationResult{Cancelled: true}, nil
	}
	return model.Result(), nil
}
