// Package txlog holds the typed event-log schema returned by the ledger for a
// delivered transaction and extracts deployment identifiers from it.
package txlog

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// ErrMalformedLog is returned when a successful transaction does not carry the
// event or attribute a deployment step expects.
var ErrMalformedLog = errors.New("malformed transaction log")

const (
	// EventStoreCode and AttrCodeID locate the code id of a store-code tx.
	EventStoreCode = "store_code"
	AttrCodeID     = "code_id"

	// EventInstantiateContract and AttrContractAddress locate the address of an
	// instantiate tx on Terra Classic style chains.
	EventInstantiateContract = "instantiate_contract"
	AttrContractAddress      = "contract_address"

	// EventInstantiate and AttrWasmContractAddress are the wasmd equivalents.
	EventInstantiate        = "instantiate"
	AttrWasmContractAddress = "_contract_address"

	// AttrMsgIndex tags flat ABCI events with the message that emitted them.
	AttrMsgIndex = "msg_index"
)

// Attribute is a single key/value pair on an event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is a typed ABCI event.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// Log groups the events emitted by one message of a transaction.
type Log struct {
	MsgIndex uint32  `json:"msg_index"`
	Log      string  `json:"log,omitempty"`
	Events   []Event `json:"events"`
}

// EventsByType indexes the events of the log by type and attribute key.
// Repeated events of the same type append their values in order.
func (l Log) EventsByType() map[string]map[string][]string {
	out := make(map[string]map[string][]string, len(l.Events))
	for _, ev := range l.Events {
		attrs, ok := out[ev.Type]
		if !ok {
			attrs = make(map[string][]string)
			out[ev.Type] = attrs
		}
		for _, a := range ev.Attributes {
			attrs[a.Key] = append(attrs[a.Key], a.Value)
		}
	}
	return out
}

// GroupByMessage rebuilds per-message logs from the flat event list newer
// Cosmos SDK versions return. Events without a msg_index attribute belong to
// the transaction itself (fees, signers) and are dropped. If no event carries
// a msg_index, all events are attributed to message 0.
func GroupByMessage(events []Event) []Log {
	if len(events) == 0 {
		return nil
	}
	var (
		byIndex = make(map[uint32]*Log)
		order   []uint32
		indexed bool
	)
	for _, ev := range events {
		idx, ok := msgIndex(ev)
		if !ok {
			continue
		}
		indexed = true
		l, exists := byIndex[idx]
		if !exists {
			l = &Log{MsgIndex: idx}
			byIndex[idx] = l
			order = append(order, idx)
		}
		l.Events = append(l.Events, stripMsgIndex(ev))
	}
	if !indexed {
		return []Log{{MsgIndex: 0, Events: events}}
	}
	slices.Sort(order)
	logs := make([]Log, 0, len(order))
	for _, idx := range order {
		logs = append(logs, *byIndex[idx])
	}
	return logs
}

func msgIndex(ev Event) (uint32, bool) {
	for _, a := range ev.Attributes {
		if a.Key != AttrMsgIndex {
			continue
		}
		n, err := strconv.ParseUint(a.Value, 10, 32)
		if err != nil {
			return 0, false
		}
		return uint32(n), true
	}
	return 0, false
}

func stripMsgIndex(ev Event) Event {
	attrs := make([]Attribute, 0, len(ev.Attributes))
	for _, a := range ev.Attributes {
		if a.Key == AttrMsgIndex {
			continue
		}
		attrs = append(attrs, a)
	}
	return Event{Type: ev.Type, Attributes: attrs}
}

// ExtractIdentifier reads attribute key of event type eventType from the first
// log. The first value is returned when the attribute repeats.
func ExtractIdentifier(logs []Log, eventType, key string) (string, error) {
	if len(logs) == 0 {
		return "", fmt.Errorf("%w: logs[0] is absent", ErrMalformedLog)
	}
	attrs, ok := logs[0].EventsByType()[eventType]
	if !ok {
		return "", fmt.Errorf("%w: logs[0].%s is absent", ErrMalformedLog, eventType)
	}
	values := attrs[key]
	if len(values) == 0 || values[0] == "" {
		return "", fmt.Errorf("%w: logs[0].%s.%s is absent or empty", ErrMalformedLog, eventType, key)
	}
	return values[0], nil
}

// ExtractCodeID returns the code id assigned by a store-code transaction.
func ExtractCodeID(logs []Log) (uint64, error) {
	raw, err := ExtractIdentifier(logs, EventStoreCode, AttrCodeID)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: logs[0].%s.%s is not a positive integer: %q", ErrMalformedLog, EventStoreCode, AttrCodeID, raw)
	}
	return id, nil
}

// ExtractContractAddress returns the address of a freshly instantiated
// contract, trying the Terra Classic event first and the wasmd one second.
func ExtractContractAddress(logs []Log) (string, error) {
	addr, err := ExtractIdentifier(logs, EventInstantiateContract, AttrContractAddress)
	if err == nil {
		return addr, nil
	}
	if addr, err2 := ExtractIdentifier(logs, EventInstantiate, AttrWasmContractAddress); err2 == nil {
		return addr, nil
	}
	return "", err
}
