package wire

import "encoding/json"

// Message is the envelope exchanged with the test harness: a source, a
// destination, and an opaque JSON body. The body is kept raw so that each
// workload can parse its own payload fields.
type Message struct {
	Src  string          `json:"src"`
	Dest string          `json:"dest"`
	Body json.RawMessage `json:"body"`
}

// Type returns the body's type field, or the empty string if the body cannot
// be parsed.
func (m Message) Type() string {
	var body Body
	if err := json.Unmarshal(m.Body, &body); err != nil {
		return ""
	}
	return body.Type
}

// RPCError returns the protocol error carried in the body, or nil if the
// message is not an error reply.
func (m Message) RPCError() error {
	var body Body
	if err := json.Unmarshal(m.Body, &body); err != nil {
		return nil
	}
	if body.Type != "error" {
		return nil
	}
	return &RPCError{Code: body.Code, Text: body.Text}
}

// Body holds the reserved fields common to every message body. Workload
// bodies embed it and add their own payload fields.
type Body struct {
	Type      string `json:"type,omitempty"`
	MsgID     int    `json:"msg_id,omitempty"`
	InReplyTo int    `json:"in_reply_to,omitempty"`

	// Code and Text are only set on bodies of type "error".
	Code int    `json:"code,omitempty"`
	Text string `json:"text,omitempty"`
}

// InitBody is the payload of the init message that assigns the node its
// identity and the cluster membership list.
type InitBody struct {
	Body
	NodeID  string   `json:"node_id"`
	NodeIDs []string `json:"node_ids"`
}

// TopologyBody is the payload of the topology message. The mapping gives
// every node its list of direct neighbors.
type TopologyBody struct {
	Body
	Topology map[string][]string `json:"topology"`
}
