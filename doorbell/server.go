package doorbell

import (
	"context"
	"errors"
)

// State is the firmware side of the rendezvous.
type State uint8

const (
	StateWaitCommand State = iota
	StateProcessing
	StateWaitResponseConsumed
)

func (s State) String() string {
	switch s {
	case StateWaitCommand:
		return "wait-command"
	case StateProcessing:
		return "processing"
	case StateWaitResponseConsumed:
		return "wait-response-consumed"
	}
	return "unknown"
}

var ErrState = errors.New("doorbell: call out of order")

// Server owns the firmware half of a Doorbell. One command is outstanding
// at a time: WaitForCommand and SendResponse must alternate.
//
// The polls never time out by themselves. ctx is checked between polls so
// host callers can stop a server; on the device it is context.Background.
type Server struct {
	db    *Doorbell
	state State

	// Idle runs between polls. Nil on the device.
	Idle func()
}

// NewServer clears both kinds and starts waiting for a command.
func NewServer(db *Doorbell) *Server {
	db.Rsp.Kind.Set(uint32(RspNone))
	db.Cmd.Kind.Set(uint32(CmdNone))
	return &Server{db: db, Idle: defaultIdle}
}

func (s *Server) State() State { return s.state }

// WaitForCommand blocks until the controller posts a recognised command.
// The command kind is cleared as soon as the fields are copied out, which
// is the consumption acknowledgment. Unknown kinds are dropped.
//
// If a previous SendResponse was interrupted while waiting for the
// controller, that wait is finished first.
func (s *Server) WaitForCommand(ctx context.Context) (Command, error) {
	switch s.state {
	case StateProcessing:
		return Command{}, ErrState
	case StateWaitResponseConsumed:
		if err := s.waitResponseConsumed(ctx); err != nil {
			return Command{}, err
		}
	}
	for {
		k := CommandKind(s.db.Cmd.Kind.Get())
		if k == CmdNone {
			if err := s.idle(ctx); err != nil {
				return Command{}, err
			}
			continue
		}
		c := Command{
			Kind: k,
			Arg0: s.db.Cmd.Arg0.Get(),
			Arg1: s.db.Cmd.Arg1.Get(),
			Arg2: s.db.Cmd.Arg2.Get(),
		}
		s.db.Cmd.Kind.Set(uint32(CmdNone))
		if !k.Known() {
			continue
		}
		s.state = StateProcessing
		return c, nil
	}
}

// SendResponse publishes r (arguments first, kind last) and blocks until
// the controller clears the response kind.
func (s *Server) SendResponse(ctx context.Context, r Response) error {
	if s.state != StateProcessing {
		return ErrState
	}
	s.db.Rsp.Arg0.Set(r.Arg0)
	s.db.Rsp.Arg1.Set(r.Arg1)
	s.db.Rsp.Arg2.Set(r.Arg2)
	s.db.Rsp.Kind.Set(uint32(r.Kind))
	s.state = StateWaitResponseConsumed
	return s.waitResponseConsumed(ctx)
}

func (s *Server) waitResponseConsumed(ctx context.Context) error {
	for ResponseKind(s.db.Rsp.Kind.Get()) != RspNone {
		if err := s.idle(ctx); err != nil {
			return err
		}
	}
	s.state = StateWaitCommand
	return nil
}

func (s *Server) idle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Idle != nil {
		s.Idle()
	}
	return nil
}
