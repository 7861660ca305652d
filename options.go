package ragprep

import "github.com/sirupsen/logrus"

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger used by the converter and every processor
// (default: logrus at Info on stderr).
func WithLogger(l *logrus.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConfig replaces the default conversion options.
func WithConfig(cfg *Config) Option {
	return func(c *Converter) {
		if cfg != nil {
			c.config = cfg
		}
	}
}

// WithStatus registers a callback for status messages.
func WithStatus(fn StatusFunc) Option {
	return func(c *Converter) {
		c.status = fn
	}
}

// WithProgress registers a callback for batch progress.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Converter) {
		c.progress = fn
	}
}

// WithRegistry replaces the built-in processors.
func WithRegistry(r *Registry) Option {
	return func(c *Converter) {
		if r != nil {
			c.registry = r
		}
	}
}
