package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/maubot-tools/mbdash/internal/client"
)

// HistoryMsg carries a history batch from the log stream.
type HistoryMsg struct{ Records []client.LogRecord }

// LogMsg carries one live log entry.
type LogMsg struct{ Record client.LogRecord }

// EventMsg carries a log stream lifecycle event.
type EventMsg struct{ Event client.Event }

// Inbox hands messages from log stream callbacks to the Bubble Tea loop.
// Callbacks run on the stream's goroutines; the model drains the inbox one
// message at a time through Next.
type Inbox struct {
	ch   chan tea.Msg
	done <-chan struct{}
}

// NewInbox creates an inbox that stops accepting messages when ctx ends.
func NewInbox(ctx context.Context, size int) *Inbox {
	return &Inbox{ch: make(chan tea.Msg, size), done: ctx.Done()}
}

// Post queues msg, waiting for room. It returns false once the inbox is
// closed.
func (in *Inbox) Post(msg tea.Msg) bool {
	select {
	case in.ch <- msg:
		return true
	case <-in.done:
		return false
	}
}

// Offer queues msg only if there is room.
func (in *Inbox) Offer(msg tea.Msg) bool {
	select {
	case in.ch <- msg:
		return true
	default:
		return false
	}
}

// Next returns a command that waits for the next message. The model must
// issue it again after handling each inbox message.
func (in *Inbox) Next() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-in.ch:
			return msg
		case <-in.done:
			return nil
		}
	}
}

// Subscriber forwards stream entries into the inbox.
func (in *Inbox) Subscriber() client.Subscriber {
	return client.Subscriber{
		OnHistory: func(records []client.LogRecord) { in.Post(HistoryMsg{Records: records}) },
		OnLog:     func(rec client.LogRecord) { in.Post(LogMsg{Record: rec}) },
	}
}

// Observer forwards lifecycle events into the inbox, dropping them when it
// is full so the stream never blocks.
func (in *Inbox) Observer() func(client.Event) {
	return func(e client.Event) { in.Offer(EventMsg{Event: e}) }
}
