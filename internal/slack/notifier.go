// Package slack posts newly created CRM alerts to a Slack channel.
package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/database"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/logger"
	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/utils"
)

// maxListedAlerts bounds the lines of one announcement
const maxListedAlerts = 10

// poster is the part of the Slack API used to send messages
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier announces new alert instances in one channel
type Notifier struct {
	client   poster
	channels *ChannelResolver
	channel  string
}

// NewNotifier creates a notifier for channel, given by name or ID.
// Extra options are passed to the Slack client, e.g. slack.OptionAPIURL.
func NewNotifier(botToken, channel string, options ...slack.Option) *Notifier {
	client := slack.New(botToken, options...)
	return &Notifier{
		client:   client,
		channels: NewChannelResolver(client),
		channel:  channel,
	}
}

// NotifyNew posts one message listing instances, highest priority first
func (n *Notifier) NotifyNew(ctx context.Context, instances []database.AlertInstance) error {
	if len(instances) == 0 {
		return nil
	}

	channelID, err := n.channels.ResolveChannel(ctx, n.channel)
	if err != nil {
		return fmt.Errorf("resolve slack channel: %w", err)
	}

	text := formatAnnouncement(instances)
	_, ts, err := n.client.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}

	logger.Info("announced new alerts on slack",
		zap.String("channel", channelID),
		zap.String("ts", ts),
		zap.Int("count", len(instances)))
	return nil
}

// formatAnnouncement renders the message body
func formatAnnouncement(instances []database.AlertInstance) string {
	ordered := make([]database.AlertInstance, 0, len(instances))
	for _, p := range []database.Priority{database.PriorityHigh, database.PriorityMedium, database.PriorityLow} {
		for _, inst := range instances {
			if inst.Priority == p {
				ordered = append(ordered, inst)
			}
		}
	}
	for _, inst := range instances {
		if !inst.Priority.Valid() {
			ordered = append(ordered, inst)
		}
	}

	var b strings.Builder
	if len(ordered) == 1 {
		b.WriteString("*1 alerta nueva*\n")
	} else {
		fmt.Fprintf(&b, "*%d alertas nuevas*\n", len(ordered))
	}
	for i, inst := range ordered {
		if i == maxListedAlerts {
			fmt.Fprintf(&b, "… y %d más\n", len(ordered)-maxListedAlerts)
			break
		}
		fmt.Fprintf(&b, "%s %s\n", priorityMarker(inst.Priority), utils.TruncateText(inst.Title, 120))
	}
	return strings.TrimRight(b.String(), "\n")
}

func priorityMarker(p database.Priority) string {
	switch p {
	case database.PriorityHigh:
		return ":red_circle:"
	case database.PriorityMedium:
		return ":large_orange_circle:"
	default:
		return ":white_circle:"
	}
}
