package proto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MerchantPug/Pehkui/command"
	"github.com/MerchantPug/Pehkui/internal/sim"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	typeCommandAck    = "commandAck"
	typeCommandReject = "commandReject"
	typeHello         = "hello"
)

// Client message type identifiers.
const (
	TypeScale    = "scale"
	TypeDelay    = "delay"
	TypeReset    = "reset"
	TypeModifier = "modifier"
	TypeConsole  = "console"
)

// Reject reasons reported to clients.
const (
	RejectInvalidCommand   = "invalid_command"
	RejectInvalidOperation = "invalid_operation"
	RejectUnknownEntity    = "unknown_entity"
	RejectUnknownType      = "unknown_scale_type"
	RejectQueueFull        = "queue_full"
)

// ClientMessage is the JSON envelope for inbound console traffic.
type ClientMessage struct {
	Type      string  `json:"type"`
	ID        string  `json:"id,omitempty"`
	Entity    string  `json:"entity"`
	ScaleType string  `json:"scaleType,omitempty"`
	Op        string  `json:"op,omitempty"`
	Value     float32 `json:"value,omitempty"`
	Instant   bool    `json:"instant,omitempty"`
	Ticks     int32   `json:"ticks,omitempty"`
	Modifier  string  `json:"modifier,omitempty"`
	Remove    bool    `json:"remove,omitempty"`
	Cmd       string  `json:"cmd,omitempty"`
}

// DecodeClientMessage parses an inbound JSON message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("decode client message: %w", err)
	}
	return msg, nil
}

// ClientCommand converts msg into a simulation command. The reason is set
// when ok is false. Entity and scale type are copied through unvalidated.
func ClientCommand(msg ClientMessage) (cmd sim.Command, ok bool, reason string) {
	cmd = sim.Command{ID: msg.ID, EntityID: msg.Entity, ScaleType: msg.ScaleType}
	switch msg.Type {
	case TypeScale:
		if _, err := command.Parse(msg.Op); err != nil {
			return sim.Command{}, false, RejectInvalidOperation
		}
		cmd.Type = sim.CommandScale
		cmd.Scale = &sim.ScaleCommand{Operation: msg.Op, Operand: msg.Value, Instant: msg.Instant}
	case TypeConsole:
		op, operand, err := ParseConsole(msg.Cmd)
		if err != nil {
			return sim.Command{}, false, RejectInvalidOperation
		}
		cmd.Type = sim.CommandScale
		cmd.Scale = &sim.ScaleCommand{Operation: op, Operand: operand, Instant: msg.Instant}
	case TypeDelay:
		cmd.Type = sim.CommandDelay
		cmd.Delay = &sim.DelayCommand{Ticks: msg.Ticks}
	case TypeReset:
		cmd.Type = sim.CommandReset
	case TypeModifier:
		if msg.Modifier == "" {
			return sim.Command{}, false, RejectInvalidCommand
		}
		cmd.Type = sim.CommandModifier
		cmd.Modifier = &sim.ModifierCommand{ID: msg.Modifier, Remove: msg.Remove}
	default:
		return sim.Command{}, false, RejectInvalidCommand
	}
	return cmd, true, ""
}

// ParseConsole reads "<operation> <value>", for example "multiply 2".
func ParseConsole(input string) (op string, operand float32, err error) {
	input = strings.TrimSpace(input)
	_, rest, err := command.ParseLeading(input)
	if err != nil {
		return "", 0, err
	}
	op = input[:len(input)-len(rest)]
	value, err := strconv.ParseFloat(strings.TrimSpace(rest), 32)
	if err != nil {
		return "", 0, fmt.Errorf("%w: operand %q", command.ErrInvalidOperation, strings.TrimSpace(rest))
	}
	return op, float32(value), nil
}

// CommandAck confirms a command was queued for the given tick.
type CommandAck struct {
	Type string `json:"type"`
	Ver  int    `json:"ver"`
	ID   string `json:"id,omitempty"`
	Tick uint64 `json:"tick"`
}

// EncodeCommandAck renders an acknowledgement.
func EncodeCommandAck(msg CommandAck) ([]byte, error) {
	msg.Type = typeCommandAck
	msg.Ver = Version
	return json.Marshal(msg)
}

// CommandReject reports why a command was refused. Suggestions lists the
// valid operations when the operation was the problem.
type CommandReject struct {
	Type        string   `json:"type"`
	Ver         int      `json:"ver"`
	ID          string   `json:"id,omitempty"`
	Reason      string   `json:"reason"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// EncodeCommandReject renders a rejection.
func EncodeCommandReject(msg CommandReject) ([]byte, error) {
	msg.Type = typeCommandReject
	msg.Ver = Version
	if msg.Reason == RejectInvalidOperation && len(msg.Suggestions) == 0 {
		msg.Suggestions = command.Suggestions()
	}
	return json.Marshal(msg)
}

// Hello is sent once per connection before the snapshot frames.
type Hello struct {
	Type     string   `json:"type"`
	Ver      int      `json:"ver"`
	Session  string   `json:"session"`
	Tick     uint64   `json:"tick"`
	TickRate int      `json:"tickRate"`
	Frames   int      `json:"frames"`
	Easings  []string `json:"easings,omitempty"`
}

// EncodeHello renders the connection greeting.
func EncodeHello(msg Hello) ([]byte, error) {
	msg.Type = typeHello
	msg.Ver = Version
	return json.Marshal(msg)
}
