package domain

import "time"

// WatchProgress is the last reported playback position for one episode.
type WatchProgress struct {
	BookID       string    `json:"bookId"`
	EpisodeIndex int       `json:"episodeIndex"`
	Position     float64   `json:"position"`
	Duration     float64   `json:"duration"`
	BookName     string    `json:"bookName"`
	EpisodeName  string    `json:"episodeName"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
