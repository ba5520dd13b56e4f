package services

import "github.com/desertthunder/moodlist/internal/models"

// englishFallback is served when the model produces nothing usable.
// Broadly popular tracks that resolve reliably against the catalog.
var englishFallback = []models.Song{
	{Title: "Blinding Lights", Artist: "The Weeknd"},
	{Title: "Shape of You", Artist: "Ed Sheeran"},
	{Title: "Uptown Funk", Artist: "Mark Ronson"},
	{Title: "Rolling in the Deep", Artist: "Adele"},
	{Title: "Can't Stop the Feeling!", Artist: "Justin Timberlake"},
	{Title: "Happy", Artist: "Pharrell Williams"},
	{Title: "Shake It Off", Artist: "Taylor Swift"},
	{Title: "Counting Stars", Artist: "OneRepublic"},
	{Title: "Get Lucky", Artist: "Daft Punk"},
	{Title: "Levitating", Artist: "Dua Lipa"},
	{Title: "Watermelon Sugar", Artist: "Harry Styles"},
	{Title: "Bad Guy", Artist: "Billie Eilish"},
	{Title: "Señorita", Artist: "Shawn Mendes"},
	{Title: "Sunflower", Artist: "Post Malone"},
	{Title: "Thinking Out Loud", Artist: "Ed Sheeran"},
	{Title: "All of Me", Artist: "John Legend"},
	{Title: "Stay", Artist: "The Kid LAROI"},
	{Title: "As It Was", Artist: "Harry Styles"},
	{Title: "Dance Monkey", Artist: "Tones and I"},
	{Title: "Someone You Loved", Artist: "Lewis Capaldi"},
	{Title: "Believer", Artist: "Imagine Dragons"},
	{Title: "Don't Start Now", Artist: "Dua Lipa"},
	{Title: "Circles", Artist: "Post Malone"},
	{Title: "Firework", Artist: "Katy Perry"},
	{Title: "Viva la Vida", Artist: "Coldplay"},
}

// hebrewFallback leads the fallback list for Hebrew mood descriptions.
var hebrewFallback = []models.Song{
	{Title: "בוא", Artist: "עידן רייכל"},
	{Title: "שיר אהבה", Artist: "אהוד בנאי"},
	{Title: "צמח", Artist: "ברי סחרוף"},
	{Title: "אני אוהב אותך חיים", Artist: "שלמה ארצי"},
	{Title: "בלי גבול", Artist: "עברי לידר"},
}

// fallbackSongs returns up to count songs from the built-in lists. A
// Hebrew mood gets the Hebrew songs first, topped up from the English
// list.
func fallbackSongs(count int, hebrew bool) []models.Song {
	var pool []models.Song
	if hebrew {
		pool = append(pool, hebrewFallback...)
	}
	pool = append(pool, englishFallback...)

	if count > len(pool) {
		count = len(pool)
	}

	songs := make([]models.Song, count)
	copy(songs, pool[:count])
	return songs
}
