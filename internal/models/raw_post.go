package models

import "time"

// RawPost is a post as fetched from the content source, before it becomes a
// tracked lead. MatchedKeyword is filled in by the source adapter when a
// watch phrase triggered on the post.
type RawPost struct {
	ExternalID     string
	Title          string
	Body           string
	SourceURL      string
	Subreddit      string
	MatchedKeyword string
	CreatedAt      time.Time
}
