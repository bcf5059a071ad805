// Package discord connects the command service to Discord guild channels.
//
// The bot reads every guild message it can see (this needs the privileged
// message content intent enabled for the application), ignores other bots,
// and answers commands with a reply to the triggering message.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/nerrad567/lightrelay/internal/chat"
	"github.com/nerrad567/lightrelay/internal/command"
)

// Intents requested by the bot.
const Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

// ErrMissingToken is returned by New for an empty bot token.
var ErrMissingToken = errors.New("discord: bot token is empty")

// Session is the part of *discordgo.Session the bot uses.
type Session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ Session = (*discordgo.Session)(nil)

// Bot relays Discord messages to a chat.Handler.
//
// Thread Safety:
//   - discordgo calls handlers on their own goroutines; messages are
//     handled concurrently and the device registry serialises fleet access.
//   - Stop waits for in-flight messages.
type Bot struct {
	session Session
	handler chat.Handler
	prefix  string
	logger  chat.Logger

	ctx           context.Context //nolint:containedctx // cancelled by Stop to abort in-flight commands
	ctxCancel     context.CancelFunc
	removeHandler func()
	wg            sync.WaitGroup
	stopOnce      sync.Once

	// mu orders wg.Add against Stop's wg.Wait; messages arriving after
	// stopped is set are dropped.
	mu      sync.Mutex
	stopped bool
}

// New creates a bot with a discordgo session for token. The "Bot " prefix
// is added here.
func New(token string, handler chat.Handler, prefix string, logger chat.Logger) (*Bot, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = Intents
	return NewWithSession(session, handler, prefix, logger), nil
}

// NewWithSession creates a bot over an existing session. logger may be nil.
func NewWithSession(session Session, handler chat.Handler, prefix string, logger chat.Logger) *Bot {
	return &Bot{
		session: session,
		handler: handler,
		prefix:  prefix,
		logger:  chat.OrNoop(logger),
	}
}

// Start registers the message handler and opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.ctxCancel = context.WithCancel(ctx)
	b.removeHandler = b.session.AddHandler(b.onMessageCreate)

	if err := b.session.Open(); err != nil {
		b.removeHandler()
		b.ctxCancel()
		b.ctxCancel = nil
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	b.logger.Info("discord bot connected", "prefix", b.prefix)
	return nil
}

// Stop closes the gateway, cancels in-flight commands and waits for them.
// It is safe to call more than once.
func (b *Bot) Stop() error {
	var err error
	b.stopOnce.Do(func() {
		if b.ctxCancel == nil {
			return
		}
		b.removeHandler()
		if cerr := b.session.Close(); cerr != nil {
			err = fmt.Errorf("closing discord session: %w", cerr)
		}
		b.mu.Lock()
		b.stopped = true
		b.mu.Unlock()
		b.ctxCancel()
		b.wg.Wait()
		b.logger.Info("discord bot stopped")
	})
	return err
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil {
		return
	}
	if !b.track() {
		return
	}
	defer b.wg.Done()
	b.handleMessage(m.Message)
}

// track registers an in-flight message with wg, or reports false once
// Stop has begun.
func (b *Bot) track() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return false
	}
	b.wg.Add(1)
	return true
}

func (b *Bot) handleMessage(msg *discordgo.Message) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}

	inv, ok := command.ParseMessage(b.prefix, msg.Content)
	if !ok {
		return
	}
	inv.ID = msg.ID
	inv.Source = command.SourceDiscord
	inv.User = msg.Author.Username
	inv.Reply = b.replier(msg)

	b.logger.Debug("discord command received",
		"command", inv.Name,
		"user", inv.User,
		"channel", msg.ChannelID,
	)
	chat.Dispatch(b.ctx, b.handler, inv, b.logger)
}

func (b *Bot) replier(msg *discordgo.Message) command.ReplyFunc {
	ref := msg.Reference()
	return func(ctx context.Context, text string) error {
		_, err := b.session.ChannelMessageSendReply(msg.ChannelID, text, ref, discordgo.WithContext(ctx))
		return err
	}
}
