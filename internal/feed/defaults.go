package feed

import "time"

const (
	Quotes          = "quotes"
	Crypto          = "crypto"
	Reddit          = "reddit"
	News            = "news"
	FearGreed       = "fear-greed"
	CryptoFearGreed = "crypto-fear-greed"
)

// Defaults describes the dashboard feeds. Quotes refresh on a 30-60s
// cadence, sentiment every 3-15 minutes and the composite indices hourly or
// slower. apiBase is the URL of this service's own API.
func Defaults(apiBase string, symbols, subreddit, newsFeed string) []Descriptor {
	return []Descriptor{
		{
			Name:            Quotes,
			URLTemplate:     "{api}/api/quotes?symbols={symbols}",
			DefaultInterval: 60 * time.Second,
			Params:          map[string]string{"api": apiBase, "symbols": symbols},
		},
		{
			Name:            Crypto,
			URLTemplate:     "{api}/api/quotes?symbols={symbols}",
			DefaultInterval: 30 * time.Second,
			Params:          map[string]string{"api": apiBase, "symbols": "BTC-USD,ETH-USD,SOL-USD"},
		},
		{
			Name:            Reddit,
			URLTemplate:     "{api}/api/sentiment/reddit?subreddit={subreddit}&hours={hours}",
			DefaultInterval: 5 * time.Minute,
			Params:          map[string]string{"api": apiBase, "subreddit": subreddit, "hours": "24"},
		},
		{
			Name:            News,
			URLTemplate:     "{api}/api/news?feed={feed}",
			DefaultInterval: 15 * time.Minute,
			Params:          map[string]string{"api": apiBase, "feed": newsFeed},
		},
		{
			Name:            FearGreed,
			URLTemplate:     "{api}/api/fear-greed",
			DefaultInterval: time.Hour,
			Schedule:        "@hourly",
			Params:          map[string]string{"api": apiBase},
		},
		{
			Name:            CryptoFearGreed,
			URLTemplate:     "{api}/api/crypto/fear-greed",
			DefaultInterval: 4 * time.Hour,
			Params:          map[string]string{"api": apiBase},
		},
	}
}
