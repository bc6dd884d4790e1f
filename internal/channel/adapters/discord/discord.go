// Package discord binds the Discord gateway (discordgo) to the normalized
// channel model.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/kohanai/kohana/internal/channel"
)

// Adapter is the Discord channel adapter. It opens one gateway session and
// translates message and component events.
type Adapter struct {
	logger  *slog.Logger
	token   string
	session *discordgo.Session
}

// New creates a Discord adapter with the given bot token.
func New(log *slog.Logger, token string) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger: log.With(slog.String("adapter", "discord")),
		token:  token,
	}
}

func (a *Adapter) Type() channel.Type {
	return channel.TypeDiscord
}

// Connect opens the gateway session and registers message and interaction
// handlers that feed the events sink.
func (a *Adapter) Connect(ctx context.Context, events channel.Events) (channel.Connection, error) {
	if strings.TrimSpace(a.token) == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	connCtx, cancel := context.WithCancel(ctx)

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		msg := a.normalize(s, m)
		if msg.Message.Text == "" && len(msg.Message.Attachments) == 0 {
			return
		}
		a.logger.Debug("inbound received",
			slog.String("guild_id", m.GuildID),
			slog.String("channel_id", m.ChannelID),
			slog.String("user_id", m.Author.ID))
		events.OnMessage(connCtx, msg)
	})

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionMessageComponent {
			return
		}
		// Ack immediately so the click never times out; the processor edits
		// the prompt message afterwards via Update.
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		}); err != nil {
			a.logger.Error("interaction ack failed", slog.Any("error", err))
		}
		user := i.User
		if user == nil && i.Member != nil {
			user = i.Member.User
		}
		if user == nil {
			return
		}
		messageID := ""
		if i.Message != nil {
			messageID = i.Message.ID
		}
		events.OnAction(connCtx, channel.ActionEvent{
			Channel:   channel.TypeDiscord,
			ActionID:  i.MessageComponentData().CustomID,
			Sender:    channel.Identity{ID: user.ID, Username: user.Username},
			Target:    i.ChannelID,
			MessageID: messageID,
		})
	})

	if err := session.Open(); err != nil {
		cancel()
		return nil, fmt.Errorf("open discord gateway: %w", err)
	}
	a.session = session
	a.logger.Info("gateway connected")

	stop := func(context.Context) error {
		a.logger.Info("stop")
		cancel()
		return session.Close()
	}
	return channel.NewConnection(channel.TypeDiscord, stop), nil
}

func (a *Adapter) normalize(s *discordgo.Session, m *discordgo.MessageCreate) channel.InboundMessage {
	botID := ""
	if s.State != nil && s.State.User != nil {
		botID = s.State.User.ID
	}

	mentioned := false
	for _, u := range m.Mentions {
		if u != nil && u.ID == botID {
			mentioned = true
			break
		}
	}

	replyToBot := false
	if m.MessageReference != nil {
		ref := m.ReferencedMessage
		if ref == nil {
			ref, _ = s.ChannelMessage(m.MessageReference.ChannelID, m.MessageReference.MessageID)
		}
		replyToBot = ref != nil && ref.Author != nil && ref.Author.ID == botID
	}

	attachments := make([]channel.Attachment, 0, len(m.Attachments))
	for _, att := range m.Attachments {
		if att == nil {
			continue
		}
		kind := "file"
		if strings.HasPrefix(att.ContentType, "image/") {
			kind = "image"
		}
		attachments = append(attachments, channel.Attachment{
			Type: kind,
			URL:  att.URL,
			Name: att.Filename,
			Mime: att.ContentType,
		})
	}

	receivedAt := time.Now().UTC()
	if ts := m.Timestamp; !ts.IsZero() {
		receivedAt = ts.UTC()
	}

	return channel.InboundMessage{
		Channel: channel.TypeDiscord,
		Message: channel.Message{
			ID:          m.ID,
			Text:        strings.TrimSpace(m.Content),
			Attachments: attachments,
		},
		Sender: channel.Identity{ID: m.Author.ID, Username: m.Author.Username},
		Conversation: channel.Conversation{
			ID:      m.ChannelID,
			GuildID: m.GuildID,
			Direct:  m.GuildID == "",
		},
		Mentioned:  mentioned,
		ReplyToBot: replyToBot,
		ReceivedAt: receivedAt,
	}
}

// Send delivers an outbound message, including generated file attachments,
// action buttons, and reply references. Discord caps content at 2000 runes.
func (a *Adapter) Send(ctx context.Context, msg channel.OutboundMessage) error {
	if a.session == nil {
		return fmt.Errorf("discord session not connected")
	}
	target := strings.TrimSpace(msg.Target)
	if target == "" {
		return fmt.Errorf("discord target is required")
	}

	send := &discordgo.MessageSend{
		Content: truncate(msg.Message.Text, 2000),
	}
	if msg.Message.ReplyTo != "" {
		send.Reference = &discordgo.MessageReference{
			MessageID: msg.Message.ReplyTo,
			ChannelID: target,
		}
	}
	for _, att := range msg.Message.Attachments {
		if len(att.Data) == 0 {
			continue
		}
		send.Files = append(send.Files, &discordgo.File{
			Name:        att.Name,
			ContentType: att.Mime,
			Reader:      bytes.NewReader(att.Data),
		})
	}
	if len(msg.Message.Actions) > 0 {
		send.Components = []discordgo.MessageComponent{buttonsRow(msg.Message.Actions)}
	}

	_, err := a.session.ChannelMessageSendComplex(target, send, discordgo.WithContext(ctx))
	return err
}

// Typing shows the typing indicator in the target channel.
func (a *Adapter) Typing(ctx context.Context, target string) error {
	if a.session == nil {
		return fmt.Errorf("discord session not connected")
	}
	return a.session.ChannelTyping(target, discordgo.WithContext(ctx))
}

// Update edits a previously sent message, dropping its buttons.
func (a *Adapter) Update(ctx context.Context, target, messageID, text string) error {
	if a.session == nil {
		return fmt.Errorf("discord session not connected")
	}
	content := truncate(text, 2000)
	edit := &discordgo.MessageEdit{
		Channel:    target,
		ID:         messageID,
		Content:    &content,
		Components: &[]discordgo.MessageComponent{},
	}
	_, err := a.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}

func buttonsRow(actions []channel.Action) discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, len(actions))
	for _, act := range actions {
		style := discordgo.PrimaryButton
		switch act.Style {
		case channel.ActionStyleConfirm:
			style = discordgo.SuccessButton
		case channel.ActionStyleCancel:
			style = discordgo.DangerButton
		}
		buttons = append(buttons, discordgo.Button{
			Label:    act.Label,
			Style:    style,
			CustomID: act.ID,
		})
	}
	return discordgo.ActionsRow{Components: buttons}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
