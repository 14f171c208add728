package supervisor

import "errors"

var (
	// ErrStoreRequired is returned when Components has no knowledge store.
	ErrStoreRequired = errors.New("knowledge store required")

	// ErrIngestionRequired is returned when Components has no ingestion pipeline.
	ErrIngestionRequired = errors.New("ingestion pipeline required")

	// ErrRouterRequired is returned when Components has no router.
	ErrRouterRequired = errors.New("router required")

	// ErrEngineRequired is returned when a sub-pipeline engine is missing.
	ErrEngineRequired = errors.New("sub-pipeline engine required")

	// ErrSettingsRequired is returned when Components has no settings.
	ErrSettingsRequired = errors.New("settings required")

	// ErrChannelRequired is returned when Components has no channel.
	ErrChannelRequired = errors.New("channel required")
)
