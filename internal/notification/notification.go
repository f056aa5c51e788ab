package notification

import (
    "context"
    "log/slog"
)

// Wallet event kinds.
const (
    KindDeposited        = "wallet.deposited"
    KindWithdrawn        = "wallet.withdrawn"
    KindTwoFactorRequest = "wallet.two_factor_requested"
    KindTwoFactorSettled = "wallet.two_factor_settled"
    KindPendingReset     = "wallet.pending_reset"
    KindCommitRecorded   = "wallet.commit_recorded"
    KindWalletDestroyed  = "wallet.destroyed"
    KindWalletCreated    = "wallet.created"
)

// Message describes an emitted event. Destination is the wallet address the
// event belongs to.
type Message struct {
    Kind        string
    Destination string
    Body        string
}

// Notifier delivers events to downstream systems.
type Notifier interface {
    Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
    logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
    return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
    if n == nil || n.logger == nil {
        return nil
    }
    n.logger.Info("event", "kind", message.Kind, "wallet", message.Destination, "body", message.Body)
    return nil
}
