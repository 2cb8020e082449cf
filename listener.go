// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package pvdb

// MessageType is the severity attached to a diagnostic message.
type MessageType int

// Message severities, ordered least to most severe.
const (
	InfoMessage MessageType = iota
	WarningMessage
	ErrorMessage
	FatalMessage
)

// String returns the severity name.
func (t MessageType) String() string {
	switch t {
	case InfoMessage:
		return "info"
	case WarningMessage:
		return "warning"
	case ErrorMessage:
		return "error"
	case FatalMessage:
		return "fatal"
	default:
		return "unknown"
	}
}

// Requester receives diagnostic messages from a record or database.
// Delivery (console, log file, network) is the requester's concern.
type Requester interface {
	// RequesterName identifies the requester in diagnostics.
	RequesterName() string

	// Message delivers one diagnostic message.
	Message(message string, messageType MessageType)
}

// Listener observes changes to the nodes it is registered on. All
// callbacks run synchronously on the mutating goroutine with the
// record's lock held: a listener must not try to re-lock the record and
// must not block, since it stalls the writer and every other would-be
// lock holder.
type Listener interface {
	// DataPut reports a put to a node the listener is registered on.
	DataPut(field *FieldNode)

	// SubFieldPut reports a put somewhere below a structure node the
	// listener is registered on. structure is the registered ancestor,
	// field the node that actually changed.
	SubFieldPut(structure *StructureNode, field *FieldNode)

	// BeginGroupPut brackets the start of a group of puts.
	BeginGroupPut(record *Record)

	// EndGroupPut brackets the end of a group of puts.
	EndGroupPut(record *Record)
}

// Client is attached to a record solely to be told when the record is
// destroyed. Detach is called exactly once, after which the record drops
// the reference.
type Client interface {
	Detach(record *Record)
}
