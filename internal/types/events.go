package types

// EventType is the normalized taxonomy the transport adapter emits, regardless
// of which physical channel (push socket, broadcast bus, storage fallback)
// delivered the message.
type EventType string

const (
	EventItemLike    EventType = "item:like"
	EventVoteUpdate  EventType = "vote:update"
	EventItemRemoved EventType = "item:removed"

	// Self-originated optimistic mutations relayed to sibling sessions.
	EventSelfLike EventType = "self:like"
	EventSelfVote EventType = "self:vote"
)

// Event is one normalized feed event.
type Event struct {
	Type EventType `json:"type"`
	Data Snapshot  `json:"data"`
}

// IsSelf reports whether the event describes a local optimistic mutation
// relayed from a sibling session rather than an authoritative server update.
func (e Event) IsSelf() bool {
	return e.Type == EventSelfLike || e.Type == EventSelfVote
}

// Envelope is the broadcast bus message wrapper. Origin carries the sending
// session's instance id so a publisher can ignore its own messages.
type Envelope struct {
	Kind    string `json:"kind"`
	Origin  string `json:"origin,omitempty"`
	Payload Event  `json:"payload"`
}

// EnvelopeKind is the only Kind the adapter accepts off the bus.
const EnvelopeKind = "feed:event"
