package materialize

import "log/slog"

// BestEffort runs an optimization-only operation. A failure is logged at
// warn level and dropped; callers never see it.
func BestEffort(logger *slog.Logger, op string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("best-effort operation failed", slog.String("op", op), slog.Any("error", err))
	}
}
