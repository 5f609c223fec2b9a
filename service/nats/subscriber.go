package nats

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// SubscribeTransfers delivers decoded events for account to fn. An empty
// account subscribes to every account. Messages that fail to decode are
// logged and dropped.
func SubscribeTransfers(nc *nats.Conn, account string, logger *slog.Logger, fn func(*TransferEvent)) (*nats.Subscription, error) {
	subject := SubjectPrefix + ".*"
	if account != "" {
		subject = Subject(account)
	}

	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		var event TransferEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Warn("dropping malformed transfer event", "subject", msg.Subject, "error", err)
			return
		}
		fn(&event)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}
