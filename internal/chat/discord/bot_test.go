package discord

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/nerrad567/lightrelay/internal/command"
)

type sentReply struct {
	channelID string
	content   string
	ref       *discordgo.MessageReference
}

// fakeSession records what the bot does with the gateway.
type fakeSession struct {
	mu       sync.Mutex
	handler  interface{}
	removed  bool
	opened   bool
	closed   int
	openErr  error
	replies  []sentReply
	replyErr error
}

func (s *fakeSession) AddHandler(h interface{}) func() {
	s.handler = h
	return func() { s.removed = true }
}

func (s *fakeSession) Open() error {
	if s.openErr != nil {
		return s.openErr
	}
	s.opened = true
	return nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func (s *fakeSession) ChannelMessageSendReply(channelID, content string, ref *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replyErr != nil {
		return nil, s.replyErr
	}
	s.replies = append(s.replies, sentReply{channelID, content, ref})
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

// deliver invokes the registered MessageCreate handler the way discordgo would.
func (s *fakeSession) deliver(t *testing.T, m *discordgo.Message) {
	t.Helper()
	h, ok := s.handler.(func(*discordgo.Session, *discordgo.MessageCreate))
	if !ok {
		t.Fatalf("handler type = %T, want MessageCreate handler", s.handler)
	}
	h(nil, &discordgo.MessageCreate{Message: m})
}

type recordingHandler struct {
	mu    sync.Mutex
	seen  []command.Invocation
	reply string
	err   error
}

func (h *recordingHandler) Handle(ctx context.Context, inv command.Invocation) error {
	h.mu.Lock()
	h.seen = append(h.seen, inv)
	h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	if h.reply != "" {
		return inv.Reply(ctx, h.reply)
	}
	return nil
}

func message(content string, bot bool) *discordgo.Message {
	return &discordgo.Message{
		ID:        "m-1",
		ChannelID: "c-1",
		GuildID:   "g-1",
		Content:   content,
		Author:    &discordgo.User{ID: "u-1", Username: "alice", Bot: bot},
	}
}

func startBot(t *testing.T, h *recordingHandler) (*Bot, *fakeSession) {
	t.Helper()
	sess := &fakeSession{}
	bot := NewWithSession(sess, h, command.DefaultPrefix, nil)
	if err := bot.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { bot.Stop() }) //nolint:errcheck // Test cleanup
	return bot, sess
}

func TestNew_MissingToken(t *testing.T) {
	if _, err := New("", &recordingHandler{}, "&", nil); !errors.Is(err, ErrMissingToken) {
		t.Errorf("New(\"\") error = %v, want ErrMissingToken", err)
	}
}

func TestNew_SetsIntents(t *testing.T) {
	bot, err := New("token", &recordingHandler{}, "&", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sess, ok := bot.session.(*discordgo.Session)
	if !ok {
		t.Fatalf("session = %T", bot.session)
	}
	if sess.Identify.Intents != Intents {
		t.Errorf("Intents = %v, want %v", sess.Identify.Intents, Intents)
	}
	if sess.Token != "Bot token" {
		t.Errorf("Token = %q, want \"Bot token\"", sess.Token)
	}
}

func TestBot_RepliesToCommand(t *testing.T) {
	h := &recordingHandler{reply: "\n1. white\n"}
	_, sess := startBot(t, h)

	sess.deliver(t, message("&colors", false))

	if len(h.seen) != 1 {
		t.Fatalf("handled %d, want 1", len(h.seen))
	}
	inv := h.seen[0]
	if inv.Name != "colors" || inv.ID != "m-1" || inv.User != "alice" || inv.Source != command.SourceDiscord {
		t.Errorf("invocation = %+v", inv)
	}

	if len(sess.replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(sess.replies))
	}
	r := sess.replies[0]
	if r.channelID != "c-1" || r.content != "\n1. white\n" {
		t.Errorf("reply = %+v", r)
	}
	if r.ref == nil || r.ref.MessageID != "m-1" || r.ref.ChannelID != "c-1" {
		t.Errorf("reply reference = %+v, want the triggering message", r.ref)
	}
}

func TestBot_IgnoredMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  *discordgo.Message
	}{
		{"bot author", message("&colors", true)},
		{"no author", &discordgo.Message{Content: "&colors"}},
		{"no prefix", message("colors", false)},
		{"space after prefix", message("& colors", false)},
		{"plain chat", message("hello there", false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{}
			_, sess := startBot(t, h)

			sess.deliver(t, tt.msg)

			if len(h.seen) != 0 {
				t.Errorf("handled %+v, want nothing", h.seen)
			}
		})
	}
}

func TestBot_HandlerErrorDoesNotReply(t *testing.T) {
	h := &recordingHandler{err: errors.New("device unreachable")}
	_, sess := startBot(t, h)

	sess.deliver(t, message("&color red", false))

	if len(sess.replies) != 0 {
		t.Errorf("replies = %+v, want none", sess.replies)
	}
}

func TestBot_StartOpenError(t *testing.T) {
	sess := &fakeSession{openErr: errors.New("401 unauthorized")}
	bot := NewWithSession(sess, &recordingHandler{}, "&", nil)

	if err := bot.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want open failure")
	}
	if !sess.removed {
		t.Error("handler not removed after failed open")
	}
	if err := bot.Stop(); err != nil {
		t.Errorf("Stop() after failed start error = %v", err)
	}
}

func TestBot_StopIsIdempotent(t *testing.T) {
	sess := &fakeSession{}
	bot := NewWithSession(sess, &recordingHandler{}, "&", nil)
	if err := bot.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for range 2 {
		if err := bot.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	}
	if sess.closed != 1 || !sess.removed {
		t.Errorf("closed = %d removed = %v, want 1 and true", sess.closed, sess.removed)
	}
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func TestBot_MessageAfterStopIsDropped(t *testing.T) {
	h := &recordingHandler{reply: "ok"}
	bot, sess := startBot(t, h)

	if err := bot.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	// discordgo may still be running a handler goroutine for an event
	// read before Close.
	sess.deliver(t, message("&color red", false))

	if n := h.count(); n != 0 {
		t.Errorf("handler saw %d messages after Stop, want 0", n)
	}
	if len(sess.replies) != 0 {
		t.Errorf("replies = %d after Stop, want 0", len(sess.replies))
	}
}

func TestBot_StopRacesDelivery(t *testing.T) {
	h := &recordingHandler{}
	bot, sess := startBot(t, h)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				sess.deliver(t, message("&color red", false))
			}
		}()
	}
	if err := bot.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	wg.Wait()

	seen := h.count()
	sess.deliver(t, message("&color red", false))
	if n := h.count(); n != seen {
		t.Errorf("handler saw %d messages after Stop returned, want %d", n, seen)
	}
}
