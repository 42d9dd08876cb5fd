// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// ByteString is a sequence of octets.
type ByteString string

// XMLElement is a string containing XML.
type XMLElement string

// Variant holds any of the built-in types, or a slice of them.
type Variant = any

// ExtensionObject holds a structure that is registered in the TypeRegistry.
type ExtensionObject interface{}

// ExtensionObjectBody holds the body of an ExtensionObject whose type is not registered.
type ExtensionObjectBody struct {
	TypeID   ExpandedNodeID
	Encoding byte
	Body     []byte
}

// QualifiedName is a name qualified by a namespace index.
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

// NewQualifiedName constructs a QualifiedName.
func NewQualifiedName(ns uint16, name string) QualifiedName {
	return QualifiedName{ns, name}
}

// LocalizedText is a text with a locale.
type LocalizedText struct {
	Text   string
	Locale string
}

// NewLocalizedText constructs a LocalizedText.
func NewLocalizedText(text, locale string) LocalizedText {
	return LocalizedText{text, locale}
}

// DataValue holds the value, quality and timestamps of a variable.
type DataValue struct {
	Value             Variant
	StatusCode        StatusCode
	SourceTimestamp   time.Time
	SourcePicoseconds uint16
	ServerTimestamp   time.Time
	ServerPicoseconds uint16
}

// NewDataValue constructs a DataValue.
func NewDataValue(value Variant, status StatusCode, sourceTimestamp time.Time, sourcePicoseconds uint16, serverTimestamp time.Time, serverPicoseconds uint16) DataValue {
	return DataValue{value, status, sourceTimestamp, sourcePicoseconds, serverTimestamp, serverPicoseconds}
}

// DiagnosticInfo holds additional diagnostic information of an operation.
type DiagnosticInfo struct {
	SymbolicID          int32
	NamespaceURI        int32
	Locale              int32
	LocalizedText       int32
	AdditionalInfo      string
	InnerStatusCode     StatusCode
	InnerDiagnosticInfo *DiagnosticInfo
}

// NilDiagnosticInfo has no fields set.
var NilDiagnosticInfo = DiagnosticInfo{-1, -1, -1, -1, "", Good, nil}

// Variant type ids.
const (
	VariantTypeNull byte = iota
	VariantTypeBoolean
	VariantTypeSByte
	VariantTypeByte
	VariantTypeInt16
	VariantTypeUInt16
	VariantTypeInt32
	VariantTypeUInt32
	VariantTypeInt64
	VariantTypeUInt64
	VariantTypeFloat
	VariantTypeDouble
	VariantTypeString
	VariantTypeDateTime
	VariantTypeGUID
	VariantTypeByteString
	VariantTypeXMLElement
	VariantTypeNodeID
	VariantTypeExpandedNodeID
	VariantTypeStatusCode
	VariantTypeQualifiedName
	VariantTypeLocalizedText
	VariantTypeExtensionObject
	VariantTypeDataValue
	VariantTypeVariant
	VariantTypeDiagnosticInfo
)

// VariantTypeArray flags a variant that holds an array.
const VariantTypeArray byte = 0x80

var (
	typeBoolean        = reflect.TypeOf(false)
	typeSByte          = reflect.TypeOf(int8(0))
	typeByte           = reflect.TypeOf(byte(0))
	typeInt16          = reflect.TypeOf(int16(0))
	typeUInt16         = reflect.TypeOf(uint16(0))
	typeInt32          = reflect.TypeOf(int32(0))
	typeUInt32         = reflect.TypeOf(uint32(0))
	typeInt64          = reflect.TypeOf(int64(0))
	typeUInt64         = reflect.TypeOf(uint64(0))
	typeFloat          = reflect.TypeOf(float32(0))
	typeDouble         = reflect.TypeOf(float64(0))
	typeString         = reflect.TypeOf("")
	typeDateTime       = reflect.TypeOf(time.Time{})
	typeGUID           = reflect.TypeOf(uuid.UUID{})
	typeByteString     = reflect.TypeOf(ByteString(""))
	typeXMLElement     = reflect.TypeOf(XMLElement(""))
	typeNodeID         = reflect.TypeOf((*NodeID)(nil)).Elem()
	typeExpandedNodeID = reflect.TypeOf(ExpandedNodeID{})
	typeStatusCode     = reflect.TypeOf(StatusCode(0))
	typeQualifiedName  = reflect.TypeOf(QualifiedName{})
	typeLocalizedText  = reflect.TypeOf(LocalizedText{})
	typeExtensionObj   = reflect.TypeOf((*ExtensionObject)(nil)).Elem()
	typeDataValue      = reflect.TypeOf(DataValue{})
	typeDiagnosticInfo = reflect.TypeOf(DiagnosticInfo{})
	typeByteArray      = reflect.TypeOf([]byte{})
	typeVariantSlice   = reflect.TypeOf([]Variant{})
)
