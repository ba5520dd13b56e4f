package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/moodlist/internal/models"
	"github.com/desertthunder/moodlist/internal/shared"
)

func withOpenAIServer(t *testing.T, handler http.HandlerFunc) *OpenAIService {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	original := openaiBaseURL
	openaiBaseURL = server.URL
	t.Cleanup(func() { openaiBaseURL = original })

	service, err := NewOpenAIService("test-key", "", shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

// completion wraps a JSON content payload in the chat completions
// response envelope.
func completion(content any) map[string]any {
	raw, _ := json.Marshal(content)
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": string(raw)}},
		},
	}
}

func TestNewOpenAIService(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	if _, err := NewOpenAIService("", "", logger); !errors.Is(err, shared.ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}

	service, err := NewOpenAIService("key", "", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if service.model != "gpt-4o" {
		t.Errorf("expected default model gpt-4o, got %q", service.model)
	}
}

func TestGenerateSongs(t *testing.T) {
	t.Run("returns model songs", func(t *testing.T) {
		var gotReq chatRequest
		service := withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
				t.Errorf("unexpected auth header %q", got)
			}
			json.NewDecoder(r.Body).Decode(&gotReq)
			json.NewEncoder(w).Encode(completion(map[string]any{
				"songs": []map[string]string{
					{"title": "Eye of the Tiger", "artist": "Survivor"},
					{"title": "Stronger", "artist": "Kanye West"},
				},
			}))
		})

		result, err := service.GenerateSongs(context.Background(), GenerationRequest{Mood: "Upbeat workout songs", Count: 5})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.UsedFallback {
			t.Error("fallback should not be used")
		}
		if len(result.Songs) != 2 {
			t.Fatalf("expected 2 songs, got %d", len(result.Songs))
		}
		if result.Songs[0] != (models.Song{Title: "Eye of the Tiger", Artist: "Survivor"}) {
			t.Errorf("unexpected first song %+v", result.Songs[0])
		}
		if result.PlaylistName != "Upbeat workout songs Playlist" {
			t.Errorf("unexpected playlist name %q", result.PlaylistName)
		}

		if gotReq.Model != "gpt-4o" {
			t.Errorf("unexpected model %q", gotReq.Model)
		}
		if gotReq.Temperature != 0.8 {
			t.Errorf("unexpected temperature %v", gotReq.Temperature)
		}
		if gotReq.ResponseFormat.Type != "json_object" {
			t.Errorf("unexpected response format %q", gotReq.ResponseFormat.Type)
		}
		if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
			t.Errorf("unexpected messages %+v", gotReq.Messages)
		}
		if !strings.Contains(gotReq.Messages[1].Content, "exactly 5 songs") {
			t.Errorf("expected count in prompt, got %q", gotReq.Messages[1].Content)
		}
	})

	t.Run("truncates to requested count", func(t *testing.T) {
		songs := make([]map[string]string, 30)
		for i := range songs {
			songs[i] = map[string]string{"title": "Song", "artist": "Artist"}
		}
		service := withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(completion(map[string]any{"songs": songs}))
		})

		result, err := service.GenerateSongs(context.Background(), GenerationRequest{Mood: "calm", Count: 10})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Songs) != 10 {
			t.Errorf("expected 10 songs, got %d", len(result.Songs))
		}
	})

	t.Run("sanitizes and filters model output", func(t *testing.T) {
		service := withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(completion(map[string]any{
				"songs": []map[string]string{
					{"title": "‎Good Song‏", "artist": " The Band "},
					{"title": "", "artist": "No Title"},
					{"title": "No Artist", "artist": "   "},
				},
			}))
		})

		result, err := service.GenerateSongs(context.Background(), GenerationRequest{Mood: "calm", Count: 10})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Songs) != 1 {
			t.Fatalf("expected 1 valid song, got %d", len(result.Songs))
		}
		if result.Songs[0] != (models.Song{Title: "Good Song", Artist: "The Band"}) {
			t.Errorf("unexpected song %+v", result.Songs[0])
		}
	})

	t.Run("strips directional marks from the mood", func(t *testing.T) {
		var gotReq chatRequest
		service := withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotReq)
			json.NewEncoder(w).Encode(completion(map[string]any{
				"songs": []map[string]string{{"title": "T", "artist": "A"}},
			}))
		})

		mood := "‫" + "שירים שמחים" + "‬"
		result, err := service.GenerateSongs(context.Background(), GenerationRequest{Mood: mood, Count: 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !result.Hebrew {
			t.Error("expected hebrew detection on the sanitized mood")
		}
		prompt := gotReq.Messages[1].Content
		if !strings.Contains(prompt, "שירים שמחים") {
			t.Errorf("expected clean mood in prompt, got %q", prompt)
		}
		if strings.ContainsRune(prompt, '‫') || strings.ContainsRune(prompt, '‬') {
			t.Errorf("directional marks leaked into prompt %q", prompt)
		}
		if result.PlaylistName != "פלייליסט שירים שמחים" {
			t.Errorf("expected name derived from the clean mood, got %q", result.PlaylistName)
		}
	})

	t.Run("uses the model's playlist name", func(t *testing.T) {
		service := withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(completion(map[string]any{
				"name": " ‎Morning Fuel‏ ",
				"songs": []map[string]string{
					{"title": "Eye of the Tiger", "artist": "Survivor"},
				},
			}))
		})

		result, err := service.GenerateSongs(context.Background(), GenerationRequest{Mood: "Upbeat workout songs", Count: 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.PlaylistName != "Morning Fuel" {
			t.Errorf("expected sanitized model name, got %q", result.PlaylistName)
		}
	})

	t.Run("includes languages in the prompt", func(t *testing.T) {
		var gotReq chatRequest
		service := withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotReq)
			json.NewEncoder(w).Encode(completion(map[string]any{
				"songs": []map[string]string{{"title": "T", "artist": "A"}},
			}))
		})

		req := GenerationRequest{Mood: "calm", Count: 3, Languages: []string{" Hebrew ", "", "English"}}
		if _, err := service.GenerateSongs(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		prompt := gotReq.Messages[1].Content
		if !strings.Contains(prompt, "The songs should be in Hebrew or English.") {
			t.Errorf("expected language constraint in prompt, got %q", prompt)
		}
	})

	t.Run("unusable output serves the fallback", func(t *testing.T) {
		service := withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": "not json at all"}},
				},
			})
		})

		result, err := service.GenerateSongs(context.Background(), GenerationRequest{Mood: "calm", Count: 10})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.UsedFallback {
			t.Fatal("expected fallback")
		}
		if len(result.Songs) != 10 {
			t.Errorf("expected 10 fallback songs, got %d", len(result.Songs))
		}
		if result.PlaylistName != "Popular Hits Playlist" {
			t.Errorf("unexpected fallback name %q", result.PlaylistName)
		}
	})

	t.Run("api error serves the fallback", func(t *testing.T) {
		service := withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "Rate limit reached", "type": "rate_limit_error"},
			})
		})

		result, err := service.GenerateSongs(context.Background(), GenerationRequest{Mood: "calm"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.UsedFallback {
			t.Error("expected fallback")
		}
		if len(result.Songs) != 25 {
			t.Errorf("expected default count of fallback songs, got %d", len(result.Songs))
		}
	})

	t.Run("hebrew mood", func(t *testing.T) {
		var gotReq chatRequest
		service := withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotReq)
			json.NewEncoder(w).Encode(completion(map[string]any{"songs": []any{}}))
		})

		result, err := service.GenerateSongs(context.Background(), GenerationRequest{Mood: "שירים שמחים", Count: 8})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !result.Hebrew {
			t.Error("expected hebrew detection")
		}
		if !strings.Contains(gotReq.Messages[0].Content, "Hebrew") {
			t.Error("expected hebrew hint in system prompt")
		}
		if !result.UsedFallback {
			t.Fatal("expected fallback for empty song list")
		}
		if result.PlaylistName != "רשימת השמעה פופולרית" {
			t.Errorf("unexpected fallback name %q", result.PlaylistName)
		}
		if result.Songs[0].Artist != "עידן רייכל" {
			t.Errorf("expected hebrew songs first, got %+v", result.Songs[0])
		}
	})

	t.Run("empty mood is rejected", func(t *testing.T) {
		service, _ := NewOpenAIService("key", "", shared.NewLogger(io.Discard))
		if _, err := service.GenerateSongs(context.Background(), GenerationRequest{Mood: "   "}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("includes preferences in the prompt", func(t *testing.T) {
		var gotReq chatRequest
		service := withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotReq)
			json.NewEncoder(w).Encode(completion(map[string]any{
				"songs": []map[string]string{{"title": "T", "artist": "A"}},
			}))
		})

		prefs := MusicPreferences{
			TopArtists: []string{"Radiohead"},
			Genres:     []string{"art rock"},
			TopTracks:  []models.Song{{Title: "Karma Police", Artist: "Radiohead"}},
		}
		if _, err := service.GenerateSongs(context.Background(), GenerationRequest{Mood: "rainy day", Count: 3, Preferences: prefs}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		prompt := gotReq.Messages[1].Content
		for _, want := range []string{"Radiohead", "art rock", "Karma Police"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("expected %q in prompt", want)
			}
		}
	})
}

func TestContainsHebrew(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"upbeat workout songs", false},
		{"שירים שמחים", true},
		{"mixed שיר text", true},
		{"", false},
	}
	for _, tc := range cases {
		if got := containsHebrew(tc.text); got != tc.want {
			t.Errorf("containsHebrew(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestFallbackSongs(t *testing.T) {
	t.Run("caps at pool size", func(t *testing.T) {
		songs := fallbackSongs(100, false)
		if len(songs) != len(englishFallback) {
			t.Errorf("expected %d songs, got %d", len(englishFallback), len(songs))
		}
	})

	t.Run("hebrew pool leads", func(t *testing.T) {
		songs := fallbackSongs(7, true)
		if len(songs) != 7 {
			t.Fatalf("expected 7 songs, got %d", len(songs))
		}
		if songs[4].Artist != "עברי לידר" {
			t.Errorf("expected hebrew songs first, got %+v", songs[4])
		}
		if songs[5] != englishFallback[0] {
			t.Errorf("expected english top-up, got %+v", songs[5])
		}
	})
}
