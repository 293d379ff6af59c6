package protocol

import "battleships/internal/game"

// Game end banners carried in Status.GameEndMsg.
const (
	MsgYouWon               = "You won!"
	MsgYouLost              = "You lost!"
	MsgOpponentDisconnected = "Opponent disconnected"
	MsgDisconnected         = "Disconnected"
	MsgServerShutdown       = "Server is shutting down"
	MsgConnectionLost       = "Connection to server lost"
	MsgProtocolError        = "Protocol error"
)

// Error reasons carried in ErrorResponse.Error.
const (
	ErrReasonUnknownID         = "unknown_id"
	ErrReasonUnrecognizedCmd   = "unrecognized_command"
	ErrReasonNotInMatch        = "not_in_match"
	ErrReasonWrongStage        = "wrong_stage"
	ErrReasonNotOnTurn         = "not_on_turn"
	ErrReasonInvalidPayload    = "invalid_payload"
	ErrReasonOutsideBoard      = "outside_board"
	ErrReasonDuplicateMustSend = "duplicate_request"
	ErrReasonRateLimited       = "rate_limited"
)

// Status is embedded in every non-error response.
type Status struct {
	StayConnected bool   `json:"stay_connected"`
	GameEndMsg    string `json:"game_end_msg,omitempty"`
}

// Response is implemented by every response payload through the embedded Status, so
// the sender can stamp stay_connected after the handler built the payload.
type Response interface {
	StatusRef() *Status
}

func (s *Status) StatusRef() *Status { return s }

// Disconnecting builds a terminating status.
func Disconnecting(msg string) Status {
	return Status{StayConnected: false, GameEndMsg: msg}
}

// --- connect ---

type ConnectRequest struct{}

type ConnectResponse struct {
	Status
	ID int `json:"id"`
}

// --- connection_check ---

type ConnectionCheckRequest struct{}

type ConnectionCheckResponse struct {
	Status
	OpponentDisconnected bool `json:"opponent_disconnected,omitempty"`
}

// --- pair ---

type PairRequest struct{}

type PairResponse struct {
	Status
	Paired    bool `json:"paired"`
	Opponent  int  `json:"opponent,omitempty"`
	Rematched bool `json:"rematched,omitempty"`
}

// --- opponent_ready ---

// OpponentReadyRequest carries what the client currently believes; the server answers
// once the opponent's readiness differs from it.
type OpponentReadyRequest struct {
	Known bool `json:"known"`
}

type OpponentReadyResponse struct {
	Status
	OpponentReady        bool `json:"opponent_ready"`
	OpponentDisconnected bool `json:"opponent_disconnected,omitempty"`
}

// --- game_readiness ---

type GameReadinessRequest struct {
	Ready bool        `json:"ready"`
	Ships []game.Ship `json:"ships"`
}

type GameReadinessResponse struct {
	Status
	Approved      bool   `json:"approved"`
	OpponentReady bool   `json:"opponent_ready"`
	Reason        string `json:"reason,omitempty"`
}

// --- game_wait ---

type GameWaitRequest struct{}

type GameWaitResponse struct {
	Status
	Started              bool `json:"started"`
	OnTurn               int  `json:"on_turn,omitempty"`
	OpponentDisconnected bool `json:"opponent_disconnected,omitempty"`
}

// --- shoot ---

type ShootRequest struct {
	Pos game.Position `json:"pos"`
}

type ShootResponse struct {
	Status
	Hitted        bool        `json:"hitted"`
	SunkenShip    *game.Ship  `json:"sunken_ship"`
	GameWon       bool        `json:"game_won"`
	OpponentShips []game.Ship `json:"opponent_ships,omitempty"`
}

// --- opponent_shot ---

type OpponentShotRequest struct{}

type OpponentShotResponse struct {
	Status
	Shotted              bool          `json:"shotted"`
	Pos                  game.Position `json:"pos"`
	Lost                 bool          `json:"lost"`
	OpponentShips        []game.Ship   `json:"opponent_ships,omitempty"`
	OpponentDisconnected bool          `json:"opponent_disconnected,omitempty"`
}

// --- rematch ---

type AwaitRematchRequest struct {
	Known bool `json:"known"`
}

type AwaitRematchResponse struct {
	Status
	Changed              bool `json:"changed"`
	OpponentRematching   bool `json:"opponent_rematching"`
	Rematched            bool `json:"rematched,omitempty"`
	OpponentDisconnected bool `json:"opponent_disconnected,omitempty"`
}

type UpdateRematchRequest struct {
	Rematch bool `json:"rematch"`
}

type UpdateRematchResponse struct {
	Status
	Approved           bool `json:"approved"`
	OpponentRematching bool `json:"opponent_rematching"`
	Rematched          bool `json:"rematched"`
}

// --- disconnect ---

type DisconnectRequest struct{}

type DisconnectResponse struct {
	Status
	Acknowledged bool `json:"acknowledged"`
}

// --- error ---

type ErrorResponse struct {
	Status
	Error    string `json:"error"`
	ErrorObj string `json:"error_obj,omitempty"`
}
