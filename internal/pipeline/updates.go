package pipeline

import "fmt"

// ProgressUpdate represents a progress event during a long-running
// operation. Sent to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	GenerateSongs Phase = iota
	ReadPreferences
	MatchTracks
	CreatePlaylist
	AddTracks
)

func (p Phase) String() string {
	switch p {
	case GenerateSongs:
		return "generate_songs"
	case ReadPreferences:
		return "read_preferences"
	case MatchTracks:
		return "match_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	default:
		return ""
	}
}

func readingPreferencesUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadPreferences,
		Step:    1,
		Total:   1,
		Message: "Reading listening history...",
	}
}

func generatingUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   GenerateSongs,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Asking the model for %d songs...", count),
	}
}

func matchingUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Matching %q against the catalog...", title),
	}
}

func creatingPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q...", name),
	}
}

func addingTracksUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Adding %d tracks...", count),
	}
}

// sendProgress sends a progress update through the channel without
// blocking. A full or nil channel skips the update.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
