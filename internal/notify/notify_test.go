package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct{ mock.Mock }

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, ev Event) error {
	return m.Called(ev).Error(0)
}

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, `profit 1\.5 \(sold 10\)\!`, escapeMarkdownV2("profit 1.5 (sold 10)!"))
	assert.Equal(t, "plain", escapeMarkdownV2("plain"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "⚠️ rolling cycle failed (3 in a row): no digits",
		Format(Event{Kind: KindError, Mode: "rolling", Text: "no digits", Failure: 3}))
	assert.Equal(t, "✅ hoarding recovered after 2 failed cycle(s)",
		Format(Event{Kind: KindRecovery, Mode: "hoarding", Failure: 2}))
	assert.Contains(t, Format(Event{Kind: KindStopped, Mode: "rolling", Text: "inventory full", Profit: 500, Count: 7}),
		"profit 500, sold 7")
}

func TestTelegramSendsEscapedMarkdown(t *testing.T) {
	s := &mockSender{}
	s.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 42 && msg.ParseMode == tgbotapi.ModeMarkdownV2 &&
			msg.Text == escapeMarkdownV2(Format(Event{Kind: KindStatus, Mode: "rolling", Text: "price 2500"}))
	})).Return(nil).Once()

	tg := newTelegram(s, 42)
	require.NoError(t, tg.Notify(context.Background(), Event{Kind: KindStatus, Mode: "rolling", Text: "price 2500"}))
	s.AssertExpectations(t)
}

func TestTelegramRetries(t *testing.T) {
	s := &mockSender{}
	s.On("Send", mock.Anything).Return(errors.New("timeout")).Twice()
	s.On("Send", mock.Anything).Return(nil).Once()

	var waits []time.Duration
	tg := newTelegram(s, 1)
	tg.sleep = func(d time.Duration) { waits = append(waits, d) }

	require.NoError(t, tg.Notify(context.Background(), Event{Kind: KindStatus}))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestTelegramGivesUp(t *testing.T) {
	s := &mockSender{}
	s.On("Send", mock.Anything).Return(errors.New("forbidden"))

	tg := newTelegram(s, 1)
	tg.sleep = func(time.Duration) {}
	err := tg.Notify(context.Background(), Event{Kind: KindError})
	assert.ErrorContains(t, err, "failed after 3 retries: forbidden")
	s.AssertNumberOfCalls(t, "Send", 3)
}

func TestMulti(t *testing.T) {
	ev := Event{Kind: KindStopped, Text: "done"}
	a, b := &mockNotifier{}, &mockNotifier{}
	a.On("Notify", ev).Return(errors.New("a down"))
	b.On("Notify", ev).Return(nil)

	err := Multi{a, b, NewLog(), Nop{}}.Notify(context.Background(), ev)
	assert.ErrorContains(t, err, "a down")
	b.AssertCalled(t, "Notify", ev)
}
