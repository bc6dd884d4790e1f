package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/kohanai/kohana/internal/channel"
)

// Action id layout: imagegen:<verb>:<request id>.
const (
	actionPrefix  = "imagegen"
	actionConfirm = "yes"
	actionCancel  = "no"
)

var imagePromptPattern = regexp.MustCompile(
	`(?i)^(?:draw|sketch|paint)\s+(.+)$|^(?:make|create|generate)\s+(?:an?\s+)?(?:image|picture|pic|drawing)\s+(?:of\s+)?(.+)$`)

// imagePrompt extracts the subject of an image request from the message, or
// reports that the message is not one.
func imagePrompt(text string) (string, bool) {
	m := imagePromptPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	for _, group := range m[1:] {
		if group != "" {
			return strings.TrimSpace(group), true
		}
	}
	return "", false
}

// requestImage stores a pending confirmation and asks the user to confirm
// before spending an image-generation call.
func (s *Service) requestImage(ctx context.Context, msg channel.InboundMessage, prompt string) error {
	sender, ok := s.senders.Sender(msg.Channel)
	if !ok {
		return fmt.Errorf("no sender for channel %s", msg.Channel)
	}

	id := uuid.NewString()
	s.images.Put(id, ImageRequest{
		Channel: msg.Channel,
		UserID:  msg.Sender.ID,
		Target:  msg.Target(),
		Prompt:  prompt,
	})

	return sender.Send(ctx, channel.OutboundMessage{
		Target: msg.Target(),
		Message: channel.Message{
			Text:    fmt.Sprintf("Want me to draw %q?", prompt),
			ReplyTo: msg.Message.ID,
			Actions: []channel.Action{
				{ID: actionID(actionConfirm, id), Label: "Draw it", Style: channel.ActionStyleConfirm},
				{ID: actionID(actionCancel, id), Label: "Never mind", Style: channel.ActionStyleCancel},
			},
		},
	})
}

// HandleAction resolves a button click. Expired or unknown requests get a
// soft "that expired" message; they never generate an image.
func (s *Service) HandleAction(ctx context.Context, ev channel.ActionEvent) error {
	verb, id, ok := parseActionID(ev.ActionID)
	if !ok {
		return nil
	}
	sender, senderOK := s.senders.Sender(ev.Channel)
	if !senderOK {
		return fmt.Errorf("no sender for channel %s", ev.Channel)
	}

	req, live := s.images.Take(id)
	if !live {
		return sender.Update(ctx, ev.Target, ev.MessageID, "That request expired, ask me again!")
	}
	if verb == actionCancel {
		return sender.Update(ctx, ev.Target, ev.MessageID, "Okay, maybe another time.")
	}

	if err := sender.Update(ctx, ev.Target, ev.MessageID, "On it, give me a second..."); err != nil {
		s.logger.Debug("confirmation update failed", slog.Any("error", err))
	}

	data, err := s.backend.GenerateImage(ctx, req.Prompt)
	if err != nil {
		s.logger.Error("image generation failed", slog.Any("error", err))
		return sender.Send(ctx, channel.OutboundMessage{
			Target:  req.Target,
			Message: channel.Message{Text: "Sorry, I couldn't draw that one. Try again later?"},
		})
	}

	return sender.Send(ctx, channel.OutboundMessage{
		Target: req.Target,
		Message: channel.Message{
			Attachments: []channel.Attachment{{
				Type: "image",
				Name: "kohana.png",
				Mime: "image/png",
				Data: data,
			}},
		},
	})
}

func actionID(verb, id string) string {
	return strings.Join([]string{actionPrefix, verb, id}, ":")
}

func parseActionID(raw string) (verb, id string, ok bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 || parts[0] != actionPrefix {
		return "", "", false
	}
	return parts[1], parts[2], true
}
