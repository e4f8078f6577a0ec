package queue

import "github.com/cockroachdb/errors"

var (
	// ErrAlreadyExists is returned by Create for a name already in the catalog.
	ErrAlreadyExists = errors.New("queue: already exists")
	// ErrNotFound is returned whenever an operation names a queue absent from the catalog.
	ErrNotFound = errors.New("queue: not found")
	// ErrAlreadySubscribed is returned by Subscribe when the id is already a subscriber.
	ErrAlreadySubscribed = errors.New("queue: already subscribed")
	// ErrNotSubscribed is returned by Unsubscribe when the id is not a subscriber.
	ErrNotSubscribed = errors.New("queue: not subscribed")
)
