// Package ui implements the interactive curation step using bubbletea's
// Elm architecture.
//
// After matching, the user reviews the resolved tracks in a
// multi-select list: toggle individual songs, keep all, or drop all,
// then confirm the selection that goes into the created playlist.
// Keyboard navigation uses vim-style bindings (j/k, space, enter, q)
// with contextual help via charmbracelet/bubbles/help.
package ui
