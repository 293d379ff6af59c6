package protocol

// Command is the tag routing a frame to its handler.
type Command string

const (
	CmdConnect         Command = "connect"
	CmdConnectionCheck Command = "connection_check"
	CmdPair            Command = "pair"
	CmdOpponentReady   Command = "opponent_ready"
	CmdGameReadiness   Command = "game_readiness"
	CmdGameWait        Command = "game_wait"
	CmdShoot           Command = "shoot"
	CmdOpponentShot    Command = "opponent_shot"
	CmdAwaitRematch    Command = "await_rematch"
	CmdUpdateRematch   Command = "update_rematch"
	CmdDisconnect      Command = "disconnect"
	CmdError           Command = "error"
)

// Commands lists every request tag a client may send.
var Commands = []Command{
	CmdConnect,
	CmdConnectionCheck,
	CmdPair,
	CmdOpponentReady,
	CmdGameReadiness,
	CmdGameWait,
	CmdShoot,
	CmdOpponentShot,
	CmdAwaitRematch,
	CmdUpdateRematch,
	CmdDisconnect,
}

// Known reports whether c is a request tag the server understands.
func (c Command) Known() bool {
	for _, k := range Commands {
		if c == k {
			return true
		}
	}
	return false
}

// StageIndependent reports whether c can be handled without an owning match.
func (c Command) StageIndependent() bool {
	switch c {
	case CmdConnect, CmdConnectionCheck, CmdPair, CmdDisconnect:
		return true
	}
	return false
}

func (c Command) String() string {
	return string(c)
}
