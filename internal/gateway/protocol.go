package gateway

// Inbound message types sent by a panel over /ws.
const (
	InboundAsk  = "ask"
	InboundPing = "ping"
)

// Outbound message types beyond the panel kinds.
const (
	OutboundPong  = "pong"
	OutboundHello = "hello"
)

// Inbound is a message from a panel. Ask fields are ignored for other types.
type Inbound struct {
	Type string `json:"type"`
	askParams
}

// Hello is sent once after a panel connects.
type Hello struct {
	ConnID  string   `json:"connId"`
	Version string   `json:"version"`
	Agents  []string `json:"agents"`
}
