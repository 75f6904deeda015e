package chathub

import (
	"context"
	"errors"
	"fmt"

	"strangerchat/backend/internal/models"
)

// Inbound command types.
const (
	CommandStart      = "start"
	CommandProfile    = "profile"
	CommandSend       = "send"
	CommandTyping     = "typing"
	CommandDisconnect = "disconnect"
	CommandFindNew    = "find_new"
	CommandReport     = "report"
)

// Outbound event types.
const (
	EventState = "state"
	EventError = "error"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is what a client sends over the wire.
type Command struct {
	Type     string          `json:"type"`
	Profile  *models.Profile `json:"profile,omitempty"`
	Content  string          `json:"content,omitempty"`
	IsTyping bool            `json:"is_typing,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// ServerEvent is what a client receives.
type ServerEvent struct {
	Type  string    `json:"type"`
	State *Snapshot `json:"state,omitempty"`
	Error string    `json:"error,omitempty"`
}

// Dispatch applies one client command to the session.
func Dispatch(ctx context.Context, s *Session, cmd Command) error {
	switch cmd.Type {
	case CommandStart:
		return s.Start()
	case CommandProfile:
		if cmd.Profile == nil {
			return fmt.Errorf("%w: profile is required", models.ErrInvalidProfile)
		}
		return s.SubmitProfile(ctx, *cmd.Profile)
	case CommandSend:
		return s.SendMessage(ctx, cmd.Content)
	case CommandTyping:
		if cmd.IsTyping {
			return s.Typing(ctx)
		}
		return s.SetTyping(ctx, false)
	case CommandDisconnect:
		return s.Disconnect(ctx)
	case CommandFindNew:
		return s.FindNew(ctx)
	case CommandReport:
		return s.Report(ctx, cmd.Reason)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}
