package conversation

import "context"

// ChoiceKind groups button selections; it doubles as the callback key.
type ChoiceKind string

const (
	KindLanguage  ChoiceKind = "lang"
	KindAction    ChoiceKind = "act"
	KindCandidate ChoiceKind = "cand"
	KindDateMode  ChoiceKind = "date"
	KindNav       ChoiceKind = "nav"
)

// Choice values for KindAction, KindDateMode and KindNav.
const (
	ActionOneWay    = "one_way"
	ActionRoundTrip = "round_trip"
	ActionLanguage  = "language"

	DateExact   = "exact"
	DateNearest = "nearest"

	NavBack   = "back"
	NavMenu   = "menu"
	NavCancel = "cancel"
)

// Choice is a button press.
type Choice struct {
	Kind  ChoiceKind
	Value string
}

// Button is an inline button that yields Choice when pressed.
type Button struct {
	Text   string
	Choice Choice
}

// Reply is one outbound message with optional button rows.
type Reply struct {
	Text    string
	Buttons [][]Button
}

// Peer identifies who an event came from and where replies go.
type Peer struct {
	UserID int64
	ChatID int64
}

// Outbox delivers replies. Replies for one chat must arrive in send order.
type Outbox interface {
	Send(ctx context.Context, chatID int64, reply Reply) error
}
