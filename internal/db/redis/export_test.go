package redis

import "github.com/redis/rueidis"

// newTestStore wraps a mocked rueidis client.
func newTestStore(c rueidis.Client) *Store {
	return &Store{client: c}
}
