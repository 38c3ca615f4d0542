package discord

import (
	"context"
	"fmt"

	"github.com/minelurk/minelurk/internal/config"
	"github.com/minelurk/minelurk/internal/event"
)

func (b *Bot) Handle(ctx context.Context, e event.Event) error {
	if !b.shouldPublish(e) {
		return nil
	}

	switch evt := e.(type) {
	case event.ConnectedEvent:
		message := fmt.Sprintf("**[%s]** connected to `%s` as **%s**", evt.Supervisor(), evt.Address, evt.Identity)
		return b.sendEventMessage(ctx, message)
	case event.DisconnectedEvent:
		message := fmt.Sprintf("**[%s]** disconnected (%s): %s", evt.Supervisor(), evt.Kind, evt.Reason)
		return b.sendEventMessage(ctx, message)
	case event.IdentityRotatedEvent:
		verb := "rotated"
		if evt.Banned {
			verb = "banned, rotated"
		}
		message := fmt.Sprintf("**[%s]** identity %s: %s → %s", evt.Supervisor(), verb, evt.Previous, evt.Current)
		return b.sendEventMessage(ctx, message)
	case event.EvasionStartedEvent:
		message := fmt.Sprintf("**[%s]** hiding: real player **%s** joined", evt.Supervisor(), evt.Trigger)
		return b.sendEventMessage(ctx, message)
	case event.EvasionEndedEvent:
		suffix := ""
		if evt.Forced {
			suffix = " (forced by attempt limit)"
		}
		message := fmt.Sprintf("**[%s]** returning to server%s", evt.Supervisor(), suffix)
		return b.sendEventMessage(ctx, message)
	case event.ThrottleCooldownEvent:
		message := fmt.Sprintf("**[%s]** throttle streak, cooling down until %s", evt.Supervisor(), evt.Until.Format("15:04:05"))
		return b.sendEventMessage(ctx, message)
	case event.NgrokTunnelEvent:
		return b.sendEventMessage(ctx, evt.Message())
	}

	return nil
}

func (b *Bot) shouldPublish(e event.Event) bool {
	cfg := config.Minelurk.Discord

	switch e.(type) {
	case event.ConnectedEvent:
		return cfg.EnableConnectMessages
	case event.EvasionStartedEvent, event.EvasionEndedEvent:
		return cfg.EnableEvasionMessages
	case event.IdentityRotatedEvent:
		return cfg.EnableIdentityMessages
	case event.DisconnectedEvent, event.ThrottleCooldownEvent:
		return cfg.EnableErrorMessages
	case event.NgrokTunnelEvent:
		return true
	}
	return false
}

func (b *Bot) sendEventMessage(ctx context.Context, message string) error {
	if b.useWebhook {
		return b.webhookClient.Send(ctx, message)
	}
	_, err := b.discordSession.ChannelMessageSend(b.channelID, message)
	return err
}
