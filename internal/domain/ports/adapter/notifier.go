package adapter

import "context"

// AdminNotifier delivers operational alerts (exhausted code pools, new
// control-number requests, stale payments) to the administrators.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, text string) error
}
