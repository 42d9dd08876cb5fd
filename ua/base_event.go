// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import (
	"time"
)

// BaseEvent holds the fields of the BaseEventType that a server reports to event monitored items.
type BaseEvent struct {
	EventID    ByteString
	EventType  NodeID
	SourceName string
	Time       time.Time
	Message    LocalizedText
	Severity   uint16
}

// baseEventFields are the browse names of the fields, in the order of BaseEventSelectClauses.
var baseEventFields = []string{"EventId", "EventType", "SourceName", "Time", "Message", "Severity"}

// BaseEventSelectClauses selects every field of a BaseEvent.
var BaseEventSelectClauses = func() []SimpleAttributeOperand {
	clauses := make([]SimpleAttributeOperand, len(baseEventFields))
	for i, name := range baseEventFields {
		clauses[i] = SimpleAttributeOperand{TypeDefinitionID: ObjectTypeIDBaseEventType, BrowsePath: ParseBrowsePath(name), AttributeID: AttributeIDValue}
	}
	return clauses
}()

// NewBaseEvent returns the event for fields that were selected with BaseEventSelectClauses.
// Missing fields and fields of the wrong type are left zero.
func NewBaseEvent(eventFields []Variant) *BaseEvent {
	e := &BaseEvent{}
	for i, v := range eventFields {
		if i == len(baseEventFields) {
			break
		}
		switch baseEventFields[i] {
		case "EventId":
			e.EventID, _ = v.(ByteString)
		case "EventType":
			e.EventType, _ = v.(NodeID)
		case "SourceName":
			e.SourceName, _ = v.(string)
		case "Time":
			e.Time, _ = v.(time.Time)
		case "Message":
			e.Message, _ = v.(LocalizedText)
		case "Severity":
			e.Severity, _ = v.(uint16)
		}
	}
	return e
}

// Field returns the value of the field named by the browse path of the clause, or nil if the clause
// names no field of the BaseEventType.
func (e *BaseEvent) Field(clause SimpleAttributeOperand) Variant {
	if clause.AttributeID != AttributeIDValue || len(clause.BrowsePath) != 1 || clause.BrowsePath[0].NamespaceIndex != 0 {
		return nil
	}
	switch clause.BrowsePath[0].Name {
	case "EventId":
		return e.EventID
	case "EventType":
		return e.EventType
	case "SourceName":
		return e.SourceName
	case "Time":
		return e.Time
	case "Message":
		return e.Message
	case "Severity":
		return e.Severity
	}
	return nil
}

// Select returns the fields chosen by the clauses, in order.
func (e *BaseEvent) Select(clauses []SimpleAttributeOperand) []Variant {
	fields := make([]Variant, len(clauses))
	for i, clause := range clauses {
		fields[i] = e.Field(clause)
	}
	return fields
}
