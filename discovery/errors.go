package discovery

import "errors"

var (
	// ErrGeneratorRequired is returned when New receives a nil generator.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrStoreRequired is returned when New receives a nil knowledge store.
	ErrStoreRequired = errors.New("knowledge store required")

	// ErrSettingsRequired is returned when New receives nil settings.
	ErrSettingsRequired = errors.New("settings required")

	// ErrChannelRequired is returned when New receives a nil channel.
	ErrChannelRequired = errors.New("channel required")
)
