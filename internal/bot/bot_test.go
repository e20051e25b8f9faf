package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/aviabot/core/telegram/middleware"
	"github.com/m3rciful/aviabot/internal/conversation"
	"github.com/m3rciful/aviabot/internal/i18n"

	tele "gopkg.in/telebot.v4"
)

type fakeMachine struct {
	started  []conversation.Peer
	texts    []string
	choices  []conversation.Choice
	peers    []conversation.Peer
	lang     string
	sessions int
	countErr error
}

func (f *fakeMachine) Start(_ context.Context, p conversation.Peer) error {
	f.started = append(f.started, p)
	return nil
}
func (f *fakeMachine) Cancel(context.Context, conversation.Peer) error   { return nil }
func (f *fakeMachine) Language(context.Context, conversation.Peer) error { return nil }
func (f *fakeMachine) HandleText(_ context.Context, p conversation.Peer, text string) error {
	f.peers = append(f.peers, p)
	f.texts = append(f.texts, text)
	return nil
}
func (f *fakeMachine) HandleChoice(_ context.Context, p conversation.Peer, c conversation.Choice) error {
	f.peers = append(f.peers, p)
	f.choices = append(f.choices, c)
	return nil
}
func (f *fakeMachine) PreferredLanguage(context.Context, int64) string { return f.lang }
func (f *fakeMachine) SessionCount(context.Context) (int, error)       { return f.sessions, f.countErr }

type fakeContext struct {
	tele.Context
	upd       tele.Update
	store     map[string]any
	sent      []any
	responses []*tele.CallbackResponse
}

func textContext(userID, chatID int64, text string) *fakeContext {
	return &fakeContext{
		upd: tele.Update{ID: 7, Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
		}},
		store: map[string]any{},
	}
}

func callbackContext(userID, chatID int64, data string) *fakeContext {
	return &fakeContext{
		upd: tele.Update{ID: 8, Callback: &tele.Callback{
			Data:    data,
			Sender:  &tele.User{ID: userID},
			Message: &tele.Message{Chat: &tele.Chat{ID: chatID, Type: tele.ChatPrivate}},
		}},
		store: map[string]any{},
	}
}

func (f *fakeContext) Update() tele.Update       { return f.upd }
func (f *fakeContext) Callback() *tele.Callback  { return f.upd.Callback }
func (f *fakeContext) Get(key string) any        { return f.store[key] }
func (f *fakeContext) Set(key string, value any) { f.store[key] = value }

func (f *fakeContext) Sender() *tele.User {
	if f.upd.Callback != nil {
		return f.upd.Callback.Sender
	}
	return f.upd.Message.Sender
}

func (f *fakeContext) Chat() *tele.Chat {
	if f.upd.Callback != nil {
		return f.upd.Callback.Message.Chat
	}
	return f.upd.Message.Chat
}

func (f *fakeContext) Text() string {
	if f.upd.Message == nil {
		return ""
	}
	return f.upd.Message.Text
}

func (f *fakeContext) Send(what any, _ ...any) error {
	f.sent = append(f.sent, what)
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	f.responses = append(f.responses, resp...)
	return nil
}

func newHandlers(m *fakeMachine) *Handlers {
	return New(Options{Machine: m, Texts: i18n.MustDefault(), Stats: &middleware.Stats{}, AdminID: 1})
}

func TestRegistry(t *testing.T) {
	h := newHandlers(&fakeMachine{})
	reg, err := h.Registry()
	require.NoError(t, err)

	var visible []string
	for _, c := range reg.ListCommands(true) {
		visible = append(visible, c.Text)
	}
	assert.ElementsMatch(t, []string{"/start", "/cancel", "/language", "/help"}, visible)
	assert.Equal(t, []string{"act", "cand", "date", "lang", "nav"}, reg.ListCallbacks())
	assert.NotEmpty(t, h.Routes(reg))
}

func TestChoiceCallbackRouting(t *testing.T) {
	m := &fakeMachine{lang: "en"}
	h := newHandlers(m)
	reg, err := h.Registry()
	require.NoError(t, err)

	handler, ok := reg.GetCallback("cand")
	require.True(t, ok)
	c := callbackContext(10, 20, "\fcand|SVO")
	require.NoError(t, handler(c))

	require.Equal(t, []conversation.Choice{{Kind: conversation.KindCandidate, Value: "SVO"}}, m.choices)
	assert.Equal(t, conversation.Peer{UserID: 10, ChatID: 20}, m.peers[0])
	assert.Len(t, c.responses, 1, "callback spinner must be answered")
}

func TestFSMReceivesText(t *testing.T) {
	m := &fakeMachine{}
	f := fsm{newHandlers(m)}
	assert.True(t, f.InProgress(99))

	require.NoError(t, f.ManagerHandler(textContext(5, 5, "Tashkent")))
	assert.Equal(t, []string{"Tashkent"}, m.texts)
	assert.Equal(t, conversation.Peer{UserID: 5, ChatID: 5}, m.peers[0])
}

func TestFallbacksAreLocalized(t *testing.T) {
	cat := i18n.MustDefault()
	h := newHandlers(&fakeMachine{lang: "ru"})

	c := textContext(5, 5, "")
	require.NoError(t, h.UnknownDocument()(c))
	assert.Equal(t, []any{cat.Text("ru", "unsupported_input")}, c.sent)

	cb := callbackContext(5, 5, "\fzzz")
	require.NoError(t, h.UnknownCallback()(cb))
	require.Len(t, cb.responses, 1)
	assert.Equal(t, cat.Text("ru", "invalid_choice"), cb.responses[0].Text)
	assert.Empty(t, cb.sent)
}

func TestMarkup(t *testing.T) {
	assert.Nil(t, Markup(nil))
	assert.Nil(t, Markup([][]conversation.Button{{}}))

	m := Markup([][]conversation.Button{
		{{Text: "Moscow (MOW)", Choice: conversation.Choice{Kind: conversation.KindCandidate, Value: "MOW"}}},
		{},
		{
			{Text: "Back", Choice: conversation.Choice{Kind: conversation.KindNav, Value: conversation.NavBack}},
			{Text: "Menu", Choice: conversation.Choice{Kind: conversation.KindNav, Value: conversation.NavMenu}},
		},
	})
	require.NotNil(t, m)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Equal(t, "cand", m.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "MOW", m.InlineKeyboard[0][0].Data)
	assert.Len(t, m.InlineKeyboard[1], 2)
}

type fakeAPI struct {
	tele.API
	to   []tele.Recipient
	what []any
	opts []any
}

func (f *fakeAPI) Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error) {
	f.to = append(f.to, to)
	f.what = append(f.what, what)
	f.opts = append(f.opts, opts...)
	return &tele.Message{}, nil
}

func TestOutboxSend(t *testing.T) {
	o := NewOutbox()
	err := o.Send(context.Background(), 1, conversation.Reply{Text: "x"})
	require.ErrorIs(t, err, errNotAttached)

	api := &fakeAPI{}
	o.Attach(api)
	require.NoError(t, o.Send(context.Background(), 42, conversation.Reply{
		Text:    "pick",
		Buttons: [][]conversation.Button{{{Text: "Back", Choice: conversation.Choice{Kind: conversation.KindNav, Value: "back"}}}},
	}))
	require.Len(t, api.to, 1)
	assert.Equal(t, "42", api.to[0].Recipient())
	assert.Equal(t, "pick", api.what[0])
	opts, ok := api.opts[0].(*tele.SendOptions)
	require.True(t, ok)
	require.NotNil(t, opts.ReplyMarkup)
	assert.True(t, opts.DisableWebPagePreview)
}

func TestReport(t *testing.T) {
	h := newHandlers(&fakeMachine{sessions: 3})
	out, err := h.Report(context.Background())
	require.NoError(t, err)
	r, ok := out.(Report)
	require.True(t, ok)
	assert.Equal(t, 3, r.Sessions)
	assert.NotEmpty(t, r.Version)

	h = newHandlers(&fakeMachine{countErr: errors.New("redis down")})
	_, err = h.Report(context.Background())
	assert.Error(t, err)
}
