package chat

import (
	"context"

	"golang.org/x/text/language"

	"github.com/kailas-cloud/tablefinder/internal/domain/criteria"
	"github.com/kailas-cloud/tablefinder/internal/domain/geo"
	"github.com/kailas-cloud/tablefinder/internal/domain/restaurant"
	"github.com/kailas-cloud/tablefinder/internal/domain/session"
	"github.com/kailas-cloud/tablefinder/internal/usecase/extraction"
	"github.com/kailas-cloud/tablefinder/internal/usecase/search"
)

// SessionStore loads and commits conversation state.
type SessionStore interface {
	GetOrCreate(ctx context.Context, userID string) *session.State
	Commit(ctx context.Context, userID string, mutated *session.State, expected int64) (*session.State, error)
}

// Extractor turns an utterance into criteria or a clarifying question.
type Extractor interface {
	Extract(ctx context.Context, in extraction.Input) (extraction.Result, error)
	DetectLanguage(utterance string) language.Tag
}

// KeywordExtractor is the model-free fallback.
type KeywordExtractor interface {
	Extract(text string) criteria.Criteria
}

// Searcher ranks restaurants.
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]restaurant.Result, int, error)
}

// Geocoder resolves an address to a point.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Point, error)
}
