// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua_test

import (
	"testing"
	"time"

	"github.com/awcullen/uastack/ua"
	"gotest.tools/assert"
)

func TestNewBaseEvent(t *testing.T) {
	now := time.Now().UTC()
	f := []ua.Variant{
		ua.ByteString("foo"),
		ua.NewNodeIDNumeric(0, 2041),
		"source",
		now,
		ua.NewLocalizedText("Temperature is high.", "en"),
		uint16(255),
	}
	e := ua.NewBaseEvent(f)
	assert.Equal(t, e.EventID, ua.ByteString("foo"))
	assert.Equal(t, e.EventType, ua.NodeID(ua.NewNodeIDNumeric(0, 2041)))
	assert.Equal(t, e.SourceName, "source")
	assert.Equal(t, e.Time, now)
	assert.Equal(t, e.Message.Text, "Temperature is high.")
	assert.Equal(t, e.Severity, uint16(255))
}

func TestNewBaseEventShortFields(t *testing.T) {
	e := ua.NewBaseEvent([]ua.Variant{ua.ByteString("foo")})
	assert.Equal(t, e.SourceName, "")
	assert.Equal(t, len(ua.BaseEventSelectClauses), 6)
	assert.DeepEqual(t, ua.BaseEventSelectClauses[5].BrowsePath, []ua.QualifiedName{{NamespaceIndex: 0, Name: "Severity"}})
}

func TestBaseEventSelect(t *testing.T) {
	e := &ua.BaseEvent{SourceName: "Boiler", Severity: 700}
	clauses := []ua.SimpleAttributeOperand{
		ua.BaseEventSelectClauses[5],
		ua.BaseEventSelectClauses[2],
		{TypeDefinitionID: ua.ObjectTypeIDBaseEventType, BrowsePath: ua.ParseBrowsePath("Unknown"), AttributeID: ua.AttributeIDValue},
		{TypeDefinitionID: ua.ObjectTypeIDBaseEventType, BrowsePath: ua.ParseBrowsePath("SourceName"), AttributeID: ua.AttributeIDDisplayName},
	}
	assert.DeepEqual(t, e.Select(clauses), []ua.Variant{uint16(700), "Boiler", nil, nil})

	roundTrip := ua.NewBaseEvent(e.Select(ua.BaseEventSelectClauses))
	assert.Equal(t, roundTrip.SourceName, "Boiler")
	assert.Equal(t, roundTrip.Severity, uint16(700))
}
