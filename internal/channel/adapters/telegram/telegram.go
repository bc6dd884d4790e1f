// Package telegram binds the Telegram Bot API to the normalized channel model.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kohanai/kohana/internal/channel"
)

// Adapter is the Telegram channel adapter. Telegram cannot render the button
// confirmation flow the pipeline uses elsewhere, so Update falls back to a
// plain message.
type Adapter struct {
	logger *slog.Logger
	token  string
	bot    *tgbotapi.BotAPI
}

// New creates a Telegram adapter with the given bot token.
func New(log *slog.Logger, token string) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger: log.With(slog.String("adapter", "telegram")),
		token:  token,
	}
}

func (a *Adapter) Type() channel.Type {
	return channel.TypeTelegram
}

// Connect starts long polling and feeds normalized messages to events.
func (a *Adapter) Connect(ctx context.Context, events channel.Events) (channel.Connection, error) {
	if strings.TrimSpace(a.token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	bot, err := tgbotapi.NewBotAPI(a.token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	a.bot = bot

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := bot.GetUpdatesChan(updateConfig)
	connCtx, cancel := context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-connCtx.Done():
				a.logger.Info("stop")
				bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					a.logger.Info("updates channel closed")
					return
				}
				if update.Message == nil {
					continue
				}
				msg, ok := a.normalize(update.Message)
				if !ok {
					continue
				}
				a.logger.Debug("inbound received",
					slog.String("chat_id", msg.Conversation.ID),
					slog.String("user_id", msg.Sender.ID))
				events.OnMessage(connCtx, msg)
			}
		}
	}()

	stop := func(context.Context) error {
		cancel()
		bot.StopReceivingUpdates()
		return nil
	}
	return channel.NewConnection(channel.TypeTelegram, stop), nil
}

func (a *Adapter) normalize(m *tgbotapi.Message) (channel.InboundMessage, bool) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		text = strings.TrimSpace(m.Caption)
	}

	var attachments []channel.Attachment
	if len(m.Photo) > 0 {
		// Largest size is last; resolve to a download URL lazily at fetch time.
		photo := m.Photo[len(m.Photo)-1]
		if url, err := a.bot.GetFileDirectURL(photo.FileID); err == nil {
			attachments = append(attachments, channel.Attachment{
				Type: "image",
				URL:  url,
				Mime: "image/jpeg",
			})
		} else {
			a.logger.Warn("resolve photo url failed", slog.Any("error", err))
		}
	}
	if text == "" && len(attachments) == 0 {
		return channel.InboundMessage{}, false
	}

	sender := channel.Identity{}
	if m.From != nil {
		sender.ID = strconv.FormatInt(m.From.ID, 10)
		sender.Username = strings.TrimSpace(m.From.UserName)
		if sender.Username == "" {
			sender.Username = strings.TrimSpace(m.From.FirstName)
		}
	}

	chatID := ""
	direct := false
	chatName := ""
	if m.Chat != nil {
		chatID = strconv.FormatInt(m.Chat.ID, 10)
		direct = m.Chat.Type == "private"
		chatName = strings.TrimSpace(m.Chat.Title)
	}

	mentioned := false
	if a.bot != nil && a.bot.Self.UserName != "" {
		mentioned = strings.Contains(text, "@"+a.bot.Self.UserName)
	}
	replyToBot := m.ReplyToMessage != nil &&
		m.ReplyToMessage.From != nil &&
		a.bot != nil &&
		m.ReplyToMessage.From.ID == a.bot.Self.ID

	return channel.InboundMessage{
		Channel: channel.TypeTelegram,
		Message: channel.Message{
			ID:          strconv.Itoa(m.MessageID),
			Text:        text,
			Attachments: attachments,
		},
		Sender: sender,
		Conversation: channel.Conversation{
			ID:      chatID,
			GuildID: chatID,
			Name:    chatName,
			Direct:  direct,
		},
		Mentioned:  mentioned,
		ReplyToBot: replyToBot,
		ReceivedAt: time.Unix(int64(m.Date), 0).UTC(),
	}, true
}

// Send delivers text and generated attachments to a chat.
func (a *Adapter) Send(_ context.Context, msg channel.OutboundMessage) error {
	if a.bot == nil {
		return fmt.Errorf("telegram bot not connected")
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(msg.Target), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram target: %w", err)
	}

	text := msg.Message.Text
	usedCaption := false
	for _, att := range msg.Message.Attachments {
		if len(att.Data) == 0 {
			continue
		}
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: att.Name, Bytes: att.Data})
		if !usedCaption && text != "" {
			photo.Caption = text
			usedCaption = true
		}
		if _, err := a.bot.Send(photo); err != nil {
			return fmt.Errorf("send telegram photo: %w", err)
		}
	}
	if text == "" || usedCaption {
		return nil
	}

	out := tgbotapi.NewMessage(chatID, text)
	if msg.Message.ReplyTo != "" {
		if replyID, err := strconv.Atoi(msg.Message.ReplyTo); err == nil {
			out.ReplyToMessageID = replyID
		}
	}
	// Buttons degrade to a textual hint; the confirm flow is Discord-only.
	if len(msg.Message.Actions) > 0 {
		labels := make([]string, 0, len(msg.Message.Actions))
		for _, act := range msg.Message.Actions {
			labels = append(labels, act.Label)
		}
		out.Text += "\n(" + strings.Join(labels, " / ") + ")"
	}
	_, err = a.bot.Send(out)
	return err
}

// Typing shows the typing chat action.
func (a *Adapter) Typing(_ context.Context, target string) error {
	if a.bot == nil {
		return fmt.Errorf("telegram bot not connected")
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram target: %w", err)
	}
	_, err = a.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

// Update cannot edit arbitrary history here, so it sends a fresh message.
func (a *Adapter) Update(ctx context.Context, target, _ string, text string) error {
	return a.Send(ctx, channel.OutboundMessage{
		Target:  target,
		Message: channel.Message{Text: text},
	})
}
