package model

type Color string

const (
	Red    Color = "red"
	Green  Color = "green"
	Blue   Color = "blue"
	Yellow Color = "yellow"
	Black  Color = "black" // wild and draw4 before a colour is chosen
)

// Colors lists the four playable colours in deck-building order.
var Colors = []Color{Red, Green, Blue, Yellow}

// Valid reports whether c may be chosen for a wild card.
func (c Color) Valid() bool {
	switch c {
	case Red, Green, Blue, Yellow:
		return true
	}
	return false
}

type Value string

const (
	Draw2   Value = "draw2"
	Skip    Value = "skip"
	Reverse Value = "reverse"
	Wild    Value = "wild"
	Draw4   Value = "draw4"
)

// IsNumber reports whether v is one of "0".."9".
func (v Value) IsNumber() bool {
	return len(v) == 1 && v[0] >= '0' && v[0] <= '9'
}

type Card struct {
	Color Color `json:"color"`
	Value Value `json:"value"`
}

// IsWild reports whether the card needs a colour chosen when played.
func (c Card) IsWild() bool {
	return c.Value == Wild || c.Value == Draw4
}

func (c Card) String() string {
	return string(c.Color) + ":" + string(c.Value)
}

// PlayerView is the public part of a seated player.
type PlayerView struct {
	Name        string `json:"name"`
	CardCount   int    `json:"cardCount"`
	DeclaredLow bool   `json:"declaredLow"`
	Score       int    `json:"score"`
}

type RoomSummary struct {
	Key         string `json:"key"`
	PlayerCount int    `json:"playerCount"`
	Phase       string `json:"phase"`
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Inbound action types.
const (
	ActionJoin        = "join"
	ActionPlayCard    = "playCard"
	ActionDrawCard    = "drawCard"
	ActionDeclareLow  = "declareLow"
	ActionChat        = "chat"
	ActionRestart     = "restart"
	ActionLeaderboard = "leaderboard"
)

// Outbound message types.
const (
	MsgJoined      = "joined"
	MsgRejected    = "rejected"
	MsgPlayerList  = "playerList"
	MsgTopCard     = "topCard"
	MsgUpdateHand  = "updateHand"
	MsgUpdateTurn  = "updateTurn"
	MsgGameOver    = "gameOver"
	MsgAck         = "ack"
	MsgChat        = "chat"
	MsgLeaderboard = "leaderboard"
	MsgPenalty     = "penalty"
)

type Action struct {
	Type      string `json:"type"`
	Room      string `json:"room,omitempty"`
	Name      string `json:"name,omitempty"`
	Password  string `json:"password,omitempty"`
	// HandIndex is required for playCard; absent is not the same as 0.
	HandIndex *int   `json:"handIndex,omitempty"`
	Color     Color  `json:"color,omitempty"`
	Text      string `json:"text,omitempty"`
}

type JoinedPayload struct {
	Room        string       `json:"room"`
	Players     []PlayerView `json:"players"`
	CurrentTurn string       `json:"currentTurn"`
	YourHand    []Card       `json:"yourHand"`
	TopCard     *Card        `json:"topCard"`
}

type RejectedPayload struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

type TurnPayload struct {
	CurrentTurn string `json:"currentTurn"`
	Direction   int    `json:"direction"`
}

type GameOverPayload struct {
	Winner string         `json:"winner"`
	Scores map[string]int `json:"scores"`
}

type ChatPayload struct {
	Identity string `json:"identity"`
	Text     string `json:"text"`
}

type PenaltyPayload struct {
	Identity string `json:"identity"`
	Cards    int    `json:"cards"`
	Reason   string `json:"reason"`
}

// PlayerStats is one Stats Ledger entry.
type PlayerStats struct {
	Wins     int `json:"wins"`
	Losses   int `json:"losses"`
	UnoCalls int `json:"unoCalls"`
}

type Standing struct {
	Identity string `json:"identity"`
	Wins     int    `json:"wins"`
}
