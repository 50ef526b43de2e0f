package notify

import (
	"context"
	"errors"

	"pkg.jsn.cam/logmate/pkg/logmate"
)

// Multi publishes every event to each sink in order. All sinks are tried;
// their errors are joined.
type Multi []logmate.Notifier

func (m Multi) Publish(ctx context.Context, group string, ev logmate.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Publish(ctx, group, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
