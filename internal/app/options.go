package service

import (
	"github.com/okian/pitwall/internal/adapters/sink"
	"github.com/okian/pitwall/internal/domain/weather"
	"github.com/okian/pitwall/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWriter replaces the output writer.
func WithWriter(w *sink.Writer) Option {
	return func(s *Service) {
		if w != nil {
			s.writer = w
		}
	}
}

// WithWeatherSource bypasses the configured weather source.
func WithWeatherSource(src weather.Source) Option {
	return func(s *Service) {
		s.weather = src
	}
}
