package realtime

// WireOp names a websocket frame of the realtime protocol.
type WireOp string

const (
	OpSubscribe   WireOp = "subscribe"
	OpUnsubscribe WireOp = "unsubscribe"
	OpEvent       WireOp = "event"
	OpAck         WireOp = "ack"
	OpError       WireOp = "error"
)

// WireMessage is the JSON frame exchanged over the realtime websocket.
// Clients send subscribe/unsubscribe; the server answers ack/error and
// pushes event frames tagged with the subscription ref.
type WireMessage struct {
	Op      WireOp       `json:"op"`
	Ref     string       `json:"ref"`
	Table   string       `json:"table,omitempty"`
	Filter  *Filter      `json:"filter,omitempty"`
	Event   *ChangeEvent `json:"event,omitempty"`
	Message string       `json:"message,omitempty"`
}
