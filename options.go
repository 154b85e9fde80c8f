package libemit

type (
	options struct {
		logger Logger
	}

	// Option configures an Emitter.
	Option func(*options)
)

func defaultOptions() options {
	return options{logger: NoopLogger()}
}

// WithLogger sets the logger used to trace subscription changes. Nil keeps the default.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
