package corpus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docsift/storage"
)

const (
	DefaultBatchSize    = 32
	DefaultPoolSize     = 4
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = time.Second
	DefaultEmbedTimeout = 60 * time.Second
)

// Option configures a Store.
type Option func(*Store) error

// WithBatchSize sets how many texts are sent to the embedder per call.
func WithBatchSize(size int) Option {
	return func(s *Store) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size %d", ErrInvalidOption, size)
		}
		s.batchSize = size
		return nil
	}
}

// WithPoolSize sets the number of concurrent embedding batches.
// Values below 1 are raised to 1.
func WithPoolSize(size int) Option {
	return func(s *Store) error {
		if size < 1 {
			size = 1
		}
		s.poolSize = size
		return nil
	}
}

// WithMaxRetries sets the number of attempts made for each batch.
func WithMaxRetries(attempts int) Option {
	return func(s *Store) error {
		if attempts < 1 {
			return fmt.Errorf("%w: max retries %d", ErrInvalidOption, attempts)
		}
		s.maxRetries = attempts
		return nil
	}
}

// WithRetryDelay sets the base delay between attempts. The delay doubles
// after each failed attempt.
func WithRetryDelay(delay time.Duration) Option {
	return func(s *Store) error {
		if delay < 0 {
			return fmt.Errorf("%w: retry delay %s", ErrInvalidOption, delay)
		}
		s.retryDelay = delay
		return nil
	}
}

// WithEmbedTimeout bounds the wall-clock time of a whole rebuild.
// Zero disables the timeout.
func WithEmbedTimeout(timeout time.Duration) Option {
	return func(s *Store) error {
		if timeout < 0 {
			return fmt.Errorf("%w: embed timeout %s", ErrInvalidOption, timeout)
		}
		s.embedTimeout = timeout
		return nil
	}
}

// WithCache enables the embedding cache. model must name the embedding
// model so vectors from different models are never mixed.
func WithCache(cache storage.EmbeddingCache, model string) Option {
	return func(s *Store) error {
		if cache != nil && model == "" {
			return fmt.Errorf("%w: cache requires a model name", ErrInvalidOption)
		}
		s.cache = cache
		s.model = model
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithObserver registers an observer notified after every rebuild.
func WithObserver(observer Observer) Option {
	return func(s *Store) error {
		s.observer = observer
		return nil
	}
}

// WithProgress reports rebuild progress.
func WithProgress(progress Progress) Option {
	return func(s *Store) error {
		s.progress = progress
		return nil
	}
}
