package pairreader

import "errors"

// ErrChannelRequired is returned when NewAgent receives a nil channel.
var ErrChannelRequired = errors.New("channel required")
