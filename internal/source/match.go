package source

import (
	"strings"

	"bounty-watch/leadscout/internal/models"
)

// MatchKeyword reports the first watch phrase found in the post's title or
// body. Matching is a case-insensitive substring check over the combined
// text, the same trigger rule the alert payload quotes back to the human.
func MatchKeyword(phrases []string, post models.RawPost) (string, bool) {
	text := strings.ToLower(post.Title + " " + post.Body)
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(phrase)) {
			return phrase, true
		}
	}
	return "", false
}
