package application

import (
	"streamer-live-bot/internal/usecase"
)

// Translator is the part of i18n.Translator the facade renders with.
type Translator interface {
	T(key string, args ...interface{}) string
}

// The facade depends on the use-case interfaces, so tests can pass the real
// use cases over in-memory stores or light-weight fakes.
type (
	SessionUseCaseIface = usecase.SessionUseCase
	WatchUseCaseIface   = usecase.WatchUseCase
)
