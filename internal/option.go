package internal

import "github.com/nordlys/metawatch/internal/watch"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config        *Config
	eventCallback watch.EventCallback
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithEventCallback registers a hook invoked after every successfully
// handled watcher event.
func WithEventCallback(cb watch.EventCallback) Option {
	return func(a *application) {
		a.eventCallback = cb
	}
}
