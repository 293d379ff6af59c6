package tcp

import (
	"errors"
	"fmt"

	"battleships/internal/game"
	"battleships/internal/protocol"
)

// ProtocolViolation is a request the server refuses to serve. It is always fatal to the
// sender's session: the peer gets an error response and is disconnected.
type ProtocolViolation struct {
	Reason string // one of the protocol.ErrReason* values
	Detail string
}

func (v *ProtocolViolation) Error() string {
	if v.Detail == "" {
		return "protocol violation: " + v.Reason
	}
	return fmt.Sprintf("protocol violation: %s: %s", v.Reason, v.Detail)
}

func violation(reason, format string, args ...any) *ProtocolViolation {
	return &ProtocolViolation{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// violationFromGame maps match rule errors onto wire reasons.
func violationFromGame(cmd protocol.Command, err error) *ProtocolViolation {
	var v *ProtocolViolation
	if errors.As(err, &v) {
		return v
	}
	reason := protocol.ErrReasonInvalidPayload
	switch {
	case errors.Is(err, game.ErrNotOnTurn), errors.Is(err, game.ErrShotPending):
		reason = protocol.ErrReasonNotOnTurn
	case errors.Is(err, game.ErrWrongStage):
		reason = protocol.ErrReasonWrongStage
	case errors.Is(err, game.ErrOutsideBoard):
		reason = protocol.ErrReasonOutsideBoard
	case errors.Is(err, game.ErrNotInMatch):
		reason = protocol.ErrReasonNotInMatch
	case errors.Is(err, protocol.ErrMalformedFrame):
		reason = protocol.ErrReasonInvalidPayload
	}
	return &ProtocolViolation{Reason: reason, Detail: fmt.Sprintf("%s: %v", cmd, err)}
}
