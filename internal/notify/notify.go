package notify

import (
	"context"
	"log/slog"
)

// Outage describes a threshold crossing for one endpoint.
type Outage struct {
	UserID              string
	EndpointID          string
	EndpointName        string
	FailureThreshold    int
	ConsecutiveFailures int
}

// Notifier is the external notification collaborator. The engine invokes it
// exactly once per outage episode, at the threshold crossing; rendering and
// delivery live behind this boundary.
type Notifier interface {
	NotifyOutage(ctx context.Context, outage Outage) error
}

// LogNotifier writes outage notifications to the log. It is the default
// collaborator when no delivery integration is wired in.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyOutage(_ context.Context, outage Outage) error {
	n.logger.Warn("endpoint outage detected",
		slog.String("user_id", outage.UserID),
		slog.String("endpoint_id", outage.EndpointID),
		slog.String("endpoint_name", outage.EndpointName),
		slog.Int("failure_threshold", outage.FailureThreshold),
		slog.Int("consecutive_failures", outage.ConsecutiveFailures))
	return nil
}
