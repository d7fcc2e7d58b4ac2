package notifications

import (
	"context"
	"log/slog"
	"time"

	"citelink/internal/logging"
	"citelink/internal/records"
	"citelink/internal/state"
)

const hookTimeout = 10 * time.Second

// TransitionHook publishes a suggestion marker whenever a record enters a
// state that needs human attention. Publishing runs on its own goroutine so
// transitions never block on the notification transport.
func TransitionHook(svc Service, logger *slog.Logger) state.Hook {
	logger = logging.NewComponentLogger(logger, "notify-hook")
	return func(_ context.Context, rec *records.Record, from, to records.Status) {
		if rec == nil || from == to {
			return
		}
		var publish func(ctx context.Context) error
		switch to {
		case records.StatusAwaitingSelection:
			publish = func(ctx context.Context) error {
				return svc.NotifySelectionNeeded(ctx, rec.URL)
			}
		case records.StatusAwaitingMetadata:
			publish = func(ctx context.Context) error {
				return svc.NotifyMetadataReview(ctx, rec.URL, rec.Title)
			}
		case records.StatusExhausted:
			publish = func(ctx context.Context) error {
				return svc.NotifyExhausted(ctx, rec.URL, rec.ErrorCategory)
			}
		default:
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
			defer cancel()
			if err := publish(ctx); err != nil {
				logger.Warn("suggestion notification failed",
					logging.Int64(logging.FieldURLID, rec.ID),
					logging.String("to", string(to)),
					logging.Error(err),
				)
			}
		}()
	}
}
