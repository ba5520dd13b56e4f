// OpenAI chat-completions implementation of [Generator]
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodlist/internal/models"
	"github.com/desertthunder/moodlist/internal/shared"
)

var openaiBaseURL = "https://api.openai.com/v1"

const (
	defaultModel     = "gpt-4o"
	defaultSongCount = 25
	maxSongCount     = 100

	// Playlist names served with the built-in fallback list.
	fallbackPlaylistName       = "Popular Hits Playlist"
	fallbackPlaylistNameHebrew = "רשימת השמעה פופולרית"
)

// OpenAIService implements [Generator] over the chat completions API.
type OpenAIService struct {
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *log.Logger
}

// NewOpenAIService creates a song generator. An empty model selects
// gpt-4o.
func NewOpenAIService(apiKey, model string, logger *log.Logger) (*OpenAIService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key is required", shared.ErrMissingCredentials)
	}
	if model == "" {
		model = defaultModel
	}

	return &OpenAIService{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// songList is the JSON object the model is instructed to return. Name
// is the model's creative playlist title.
type songList struct {
	Name  string        `json:"name"`
	Songs []models.Song `json:"songs"`
}

// GenerateSongs asks the model for count songs matching the mood. The
// model's output is sanitized and validated; an unusable response or a
// failed call serves the built-in fallback list instead of an error, so
// the pipeline always has songs to work with.
func (s *OpenAIService) GenerateSongs(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	// The prompt itself is sanitized before detection and embedding:
	// pasted moods can carry directional formatting characters.
	mood := strings.TrimSpace(stripBidiMarks(req.Mood))
	if mood == "" {
		return nil, fmt.Errorf("%w: mood description is required", shared.ErrInvalidInput)
	}

	count := req.Count
	if count <= 0 {
		count = defaultSongCount
	}
	if count > maxSongCount {
		count = maxSongCount
	}

	hebrew := containsHebrew(mood)

	list, err := s.requestSongs(ctx, mood, count, hebrew, req.Languages, req.Preferences)
	if err != nil {
		s.logger.Warn("song generation failed, serving fallback list", "error", err)
		return s.fallbackResult(count, hebrew), nil
	}

	valid := sanitizeSongs(list.Songs)
	if len(valid) == 0 {
		s.logger.Warn("model returned no usable songs, serving fallback list", "mood", mood)
		return s.fallbackResult(count, hebrew), nil
	}
	if len(valid) > count {
		valid = valid[:count]
	}

	// Prefer the model's creative title, deriving one only when the
	// model omits it.
	name := strings.TrimSpace(stripBidiMarks(list.Name))
	if name == "" {
		name = playlistName(mood, hebrew)
	}

	return &GenerationResult{
		Songs:        valid,
		PlaylistName: name,
		Hebrew:       hebrew,
	}, nil
}

func (s *OpenAIService) requestSongs(ctx context.Context, mood string, count int, hebrew bool, languages []string, prefs MusicPreferences) (*songList, error) {
	payload := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(hebrew)},
			{Role: "user", Content: userPrompt(mood, count, languages, prefs)},
		},
		Temperature: 0.8,
		MaxTokens:   maxTokensFor(count),
	}
	payload.ResponseFormat.Type = "json_object"

	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, openaiBaseURL+"/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrGeneration, err)
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", shared.ErrGeneration, err)
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrGeneration, chatResp.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", shared.ErrGeneration, resp.StatusCode)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", shared.ErrGeneration)
	}

	var list songList
	if err := json.Unmarshal([]byte(chatResp.Choices[0].Message.Content), &list); err != nil {
		return nil, fmt.Errorf("%w: model returned malformed JSON: %v", shared.ErrGeneration, err)
	}

	return &list, nil
}

func (s *OpenAIService) fallbackResult(count int, hebrew bool) *GenerationResult {
	songs := fallbackSongs(count, hebrew)

	name := fallbackPlaylistName
	if hebrew {
		name = fallbackPlaylistNameHebrew
	}

	return &GenerationResult{
		Songs:        songs,
		PlaylistName: name,
		Hebrew:       hebrew,
		UsedFallback: true,
	}
}

func systemPrompt(hebrew bool) string {
	prompt := "You are a music curator. Respond only with a JSON object of the form " +
		`{"name": "...", "songs": [{"title": "...", "artist": "..."}]}, ` +
		"where name is a short creative playlist title. " +
		"Every song must be a real, released track with its correct primary artist."
	if hebrew {
		prompt += " The user wrote in Hebrew, so prefer popular Israeli and Hebrew-language songs."
	}
	return prompt
}

func userPrompt(mood string, count int, languages []string, prefs MusicPreferences) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest exactly %d songs that fit this mood: %s.", count, mood)

	if langs := cleanLanguages(languages); len(langs) > 0 {
		fmt.Fprintf(&b, " The songs should be in %s.", strings.Join(langs, " or "))
	}

	if !prefs.Empty() {
		b.WriteString("\n\nThe listener's taste, for reference:")
		if len(prefs.TopArtists) > 0 {
			fmt.Fprintf(&b, "\nFavorite artists: %s.", strings.Join(prefs.TopArtists, ", "))
		}
		if len(prefs.Genres) > 0 {
			fmt.Fprintf(&b, "\nFavorite genres: %s.", strings.Join(prefs.Genres, ", "))
		}
		if len(prefs.TopTracks) > 0 {
			titles := make([]string, 0, len(prefs.TopTracks))
			for _, song := range prefs.TopTracks {
				titles = append(titles, fmt.Sprintf("%s by %s", song.Title, song.Artist))
			}
			fmt.Fprintf(&b, "\nRecently played: %s.", strings.Join(titles, "; "))
		}
		b.WriteString("\nLean toward the mood over the listener's taste when they conflict.")
	}

	return b.String()
}

// cleanLanguages trims entries and drops empty ones.
func cleanLanguages(languages []string) []string {
	out := make([]string, 0, len(languages))
	for _, lang := range languages {
		if lang = strings.TrimSpace(lang); lang != "" {
			out = append(out, lang)
		}
	}
	return out
}

// maxTokensFor scales the completion budget with the requested count so
// large playlists do not truncate mid-object.
func maxTokensFor(count int) int {
	if count > 40 {
		return 4000
	}
	return 2000
}

// containsHebrew reports whether text has any character in the Hebrew
// Unicode block.
func containsHebrew(text string) bool {
	for _, r := range text {
		if r >= 0x0590 && r <= 0x05FF {
			return true
		}
	}
	return false
}

// stripBidiMarks removes directional formatting characters the model
// sometimes embeds around right-to-left text.
func stripBidiMarks(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\u200e' || r == '\u200f':
			return -1
		case r >= '\u202a' && r <= '\u202e':
			return -1
		}
		return r
	}, text)
}

// sanitizeSongs strips formatting marks and drops entries missing a
// title or artist.
func sanitizeSongs(songs []models.Song) []models.Song {
	valid := make([]models.Song, 0, len(songs))
	for _, song := range songs {
		title := strings.TrimSpace(stripBidiMarks(song.Title))
		artist := strings.TrimSpace(stripBidiMarks(song.Artist))
		if title == "" || artist == "" {
			continue
		}
		valid = append(valid, models.Song{Title: title, Artist: artist})
	}
	return valid
}

// playlistName derives a playlist name from the mood description.
func playlistName(mood string, hebrew bool) string {
	if hebrew {
		return "פלייליסט " + mood
	}
	return mood + " Playlist"
}
