package health

import "context"

// DatasetChecker checks that restaurant data is loaded.
type DatasetChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks geocode cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// LLMChecker checks language model provider availability.
type LLMChecker interface {
	HealthCheck(ctx context.Context) error
}
