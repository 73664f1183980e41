package sink

import "github.com/okian/pitwall/pkg/logger"

// Option applies a configuration option to the Writer.
type Option func(*Writer)

// WithObjectPutter uses client for s3:// destinations instead of building one.
func WithObjectPutter(client ObjectPutter) Option {
	return func(w *Writer) {
		w.s3 = client
	}
}

// WithS3Endpoint targets an S3-compatible service with path-style addressing.
func WithS3Endpoint(endpoint string) Option {
	return func(w *Writer) {
		w.endpoint = endpoint
	}
}

// WithLogger sets a custom logger for the writer.
func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}
