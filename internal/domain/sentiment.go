package domain

import "time"

// Post is one reddit submission with its heuristic sentiment.
type Post struct {
	ID          string    `json:"id"`
	Subreddit   string    `json:"subreddit"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	URL         string    `json:"url"`
	Score       float64   `json:"score"`
	NumComments float64   `json:"num_comments"`
	CreatedAt   time.Time `json:"created_at"`
	Sentiment   float64   `json:"sentiment"`
	Label       string    `json:"label"`
}

// NewsItem is one entry of an RSS or Atom feed.
type NewsItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Summary     string     `json:"summary,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at"`
	Sentiment   float64    `json:"sentiment"`
	Label       string     `json:"label"`
}

// SentimentSummary aggregates labeled items.
type SentimentSummary struct {
	Count   int     `json:"count"`
	Bullish int     `json:"bullish"`
	Bearish int     `json:"bearish"`
	Neutral int     `json:"neutral"`
	Average float64 `json:"average"`
	Label   string  `json:"label"`
}

type RedditSentiment struct {
	Subreddit string           `json:"subreddit"`
	Hours     int              `json:"hours"`
	Posts     []Post           `json:"posts"`
	Summary   SentimentSummary `json:"summary"`
	Timestamp time.Time        `json:"timestamp"`
}

type NewsFeed struct {
	Title     string           `json:"title"`
	FeedURL   string           `json:"feed_url"`
	Items     []NewsItem       `json:"items"`
	Summary   SentimentSummary `json:"summary"`
	Timestamp time.Time        `json:"timestamp"`
}

// FearGreedReading is a third-party index value, e.g. the crypto fear &
// greed index.
type FearGreedReading struct {
	Value            int       `json:"value"`
	Classification   string    `json:"classification"`
	Timestamp        time.Time `json:"timestamp"`
	TimeUntilUpdateS *int      `json:"time_until_update_s"`
}
