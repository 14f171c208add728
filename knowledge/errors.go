package knowledge

import "errors"

var (
	// ErrRepositoryRequired is returned when a document repository is not provided.
	ErrRepositoryRequired = errors.New("document repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrClustererRequired is returned when WithClusterer receives nil.
	ErrClustererRequired = errors.New("clusterer required")

	// ErrInvalidParams is returned for out-of-range query or cluster parameters.
	ErrInvalidParams = errors.New("invalid knowledge parameters")
)
