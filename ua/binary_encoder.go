// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/djherbis/buffer"
	"github.com/google/uuid"
)

var (
	typeToEncoderMap sync.Map
)

// BinaryEncoder encodes the UA binary protocol.
type BinaryEncoder struct {
	w  io.Writer
	ec EncodingContext
	bs [8]byte
}

// NewBinaryEncoder returns a new encoder that writes to an io.Writer.
func NewBinaryEncoder(w io.Writer, ec EncodingContext) *BinaryEncoder {
	return &BinaryEncoder{w, ec, [8]byte{}}
}

type encoderFunc func(*BinaryEncoder, reflect.Value) error

// Encode encodes the value using the UA Binary protocol and writes the bytes to the io.writer.
func (enc *BinaryEncoder) Encode(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return BadEncodingError
		}
		rv = rv.Elem()
	}
	f, err := encoderFor(rv.Type())
	if err != nil {
		return err
	}
	return f(enc, rv)
}

// WriteMessage writes the binary encoding id of the message type, followed by the message.
func (enc *BinaryEncoder) WriteMessage(msg any) error {
	id, ok := enc.ec.TypeRegistry().FindEncodingID(reflect.TypeOf(msg))
	if !ok {
		return BadEncodingError
	}
	if err := enc.WriteNodeID(ToNodeID(id, enc.ec.NamespaceURIs())); err != nil {
		return err
	}
	return enc.Encode(msg)
}

func encoderFor(typ reflect.Type) (encoderFunc, error) {
	// try to retrieve encoder from cache.
	if f, ok := typeToEncoderMap.Load(typ); ok {
		return f.(encoderFunc), nil
	}
	f, err := getEncoder(typ)
	if err != nil {
		return nil, err
	}
	typeToEncoderMap.Store(typ, f)
	return f, nil
}

func getEncoder(typ reflect.Type) (encoderFunc, error) {
	switch typ {
	case typeDateTime:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteDateTime(v.Interface().(time.Time)) }, nil
	case typeGUID:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteGUID(v.Interface().(uuid.UUID)) }, nil
	case typeByteString:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteByteString(ByteString(v.String())) }, nil
	case typeXMLElement:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteXMLElement(XMLElement(v.String())) }, nil
	case typeExpandedNodeID:
		return func(enc *BinaryEncoder, v reflect.Value) error {
			return enc.WriteExpandedNodeID(v.Interface().(ExpandedNodeID))
		}, nil
	case typeQualifiedName:
		return func(enc *BinaryEncoder, v reflect.Value) error {
			return enc.WriteQualifiedName(v.Interface().(QualifiedName))
		}, nil
	case typeLocalizedText:
		return func(enc *BinaryEncoder, v reflect.Value) error {
			return enc.WriteLocalizedText(v.Interface().(LocalizedText))
		}, nil
	case typeDataValue:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteDataValue(v.Interface().(DataValue)) }, nil
	case typeDiagnosticInfo:
		return func(enc *BinaryEncoder, v reflect.Value) error {
			return enc.WriteDiagnosticInfo(v.Interface().(DiagnosticInfo))
		}, nil
	case typeByteArray:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteByteArray(v.Bytes()) }, nil
	case typeNodeID:
		return func(enc *BinaryEncoder, v reflect.Value) error {
			n, _ := v.Interface().(NodeID)
			return enc.WriteNodeID(n)
		}, nil
	case typeExtensionObj:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteExtensionObject(v.Interface()) }, nil
	}
	if typ.Implements(typeNodeID) && typ.Kind() == reflect.Struct {
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteNodeID(v.Interface().(NodeID)) }, nil
	}
	switch typ.Kind() {
	case reflect.Struct:
		return getStructEncoder(typ)
	case reflect.Ptr:
		return getStructPtrEncoder(typ.Elem())
	case reflect.Slice:
		return getSliceEncoder(typ)
	case reflect.Interface:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteVariant(v.Interface()) }, nil
	case reflect.Bool:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteBoolean(v.Bool()) }, nil
	case reflect.Int8:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteSByte(int8(v.Int())) }, nil
	case reflect.Uint8:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteByte(byte(v.Uint())) }, nil
	case reflect.Int16:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteInt16(int16(v.Int())) }, nil
	case reflect.Uint16:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteUInt16(uint16(v.Uint())) }, nil
	case reflect.Int32:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteInt32(int32(v.Int())) }, nil
	case reflect.Uint32:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteUInt32(uint32(v.Uint())) }, nil
	case reflect.Int64:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteInt64(v.Int()) }, nil
	case reflect.Uint64:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteUInt64(v.Uint()) }, nil
	case reflect.Float32:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteFloat(float32(v.Float())) }, nil
	case reflect.Float64:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteDouble(v.Float()) }, nil
	case reflect.String:
		return func(enc *BinaryEncoder, v reflect.Value) error { return enc.WriteString(v.String()) }, nil
	}
	return nil, fmt.Errorf("unsupported type: %s", typ)
}

func getStructEncoder(typ reflect.Type) (encoderFunc, error) {
	encoders := []encoderFunc{}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		f, err := getEncoder(field.Type)
		if err != nil {
			return nil, err
		}
		index := i
		encoders = append(encoders, func(enc *BinaryEncoder, v reflect.Value) error {
			return f(enc, v.Field(index))
		})
	}
	return func(enc *BinaryEncoder, v reflect.Value) error {
		for _, f := range encoders {
			if err := f(enc, v); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func getStructPtrEncoder(typ reflect.Type) (encoderFunc, error) {
	f, err := getEncoder(typ)
	if err != nil {
		return nil, err
	}
	return func(enc *BinaryEncoder, v reflect.Value) error {
		if v.IsNil() {
			return f(enc, reflect.Zero(typ))
		}
		return f(enc, v.Elem())
	}, nil
}

func getSliceEncoder(typ reflect.Type) (encoderFunc, error) {
	f, err := getEncoder(typ.Elem())
	if err != nil {
		return nil, err
	}
	return func(enc *BinaryEncoder, v reflect.Value) error {
		if v.IsNil() {
			return enc.WriteInt32(-1)
		}
		n := v.Len()
		if err := enc.WriteInt32(int32(n)); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := f(enc, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

// WriteBoolean writes a boolean.
func (enc *BinaryEncoder) WriteBoolean(value bool) error {
	if value {
		enc.bs[0] = 1
	} else {
		enc.bs[0] = 0
	}
	if _, err := enc.w.Write(enc.bs[:1]); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteSByte writes a sbyte.
func (enc *BinaryEncoder) WriteSByte(value int8) error {
	enc.bs[0] = byte(value)
	if _, err := enc.w.Write(enc.bs[:1]); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteByte writes a byte.
func (enc *BinaryEncoder) WriteByte(value byte) error {
	enc.bs[0] = value
	if _, err := enc.w.Write(enc.bs[:1]); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteInt16 writes an int16.
func (enc *BinaryEncoder) WriteInt16(value int16) error {
	binary.LittleEndian.PutUint16(enc.bs[:2], uint16(value))
	if _, err := enc.w.Write(enc.bs[:2]); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteUInt16 writes an uint16.
func (enc *BinaryEncoder) WriteUInt16(value uint16) error {
	binary.LittleEndian.PutUint16(enc.bs[:2], value)
	if _, err := enc.w.Write(enc.bs[:2]); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteInt32 writes an int32.
func (enc *BinaryEncoder) WriteInt32(value int32) error {
	binary.LittleEndian.PutUint32(enc.bs[:4], uint32(value))
	if _, err := enc.w.Write(enc.bs[:4]); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteUInt32 writes an uint32.
func (enc *BinaryEncoder) WriteUInt32(value uint32) error {
	binary.LittleEndian.PutUint32(enc.bs[:4], value)
	if _, err := enc.w.Write(enc.bs[:4]); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteInt64 writes an int64.
func (enc *BinaryEncoder) WriteInt64(value int64) error {
	binary.LittleEndian.PutUint64(enc.bs[:8], uint64(value))
	if _, err := enc.w.Write(enc.bs[:8]); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteUInt64 writes an uint64.
func (enc *BinaryEncoder) WriteUInt64(value uint64) error {
	binary.LittleEndian.PutUint64(enc.bs[:8], value)
	if _, err := enc.w.Write(enc.bs[:8]); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteFloat writes a float.
func (enc *BinaryEncoder) WriteFloat(value float32) error {
	return enc.WriteUInt32(math.Float32bits(value))
}

// WriteDouble writes a double.
func (enc *BinaryEncoder) WriteDouble(value float64) error {
	return enc.WriteUInt64(math.Float64bits(value))
}

// WriteString writes a string. An empty string is written as null.
func (enc *BinaryEncoder) WriteString(value string) error {
	if len(value) == 0 {
		return enc.WriteInt32(-1)
	}
	if err := enc.WriteInt32(int32(len(value))); err != nil {
		return BadEncodingError
	}
	if _, err := io.WriteString(enc.w, value); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteDateTime writes a date/time.
func (enc *BinaryEncoder) WriteDateTime(value time.Time) error {
	if value.IsZero() {
		return enc.WriteInt64(0)
	}
	// ticks are 100 nanosecond intervals since January 1, 1601
	ticks := (value.Unix()+11644473600)*10000000 + int64(value.Nanosecond())/100
	if ticks < 0 {
		ticks = 0
	}
	if ticks >= 2650467743990000000 {
		ticks = math.MaxInt64
	}
	return enc.WriteInt64(ticks)
}

// WriteGUID writes a UUID
func (enc *BinaryEncoder) WriteGUID(value uuid.UUID) error {
	enc.bs[0] = value[3]
	enc.bs[1] = value[2]
	enc.bs[2] = value[1]
	enc.bs[3] = value[0]
	enc.bs[4] = value[5]
	enc.bs[5] = value[4]
	enc.bs[6] = value[7]
	enc.bs[7] = value[6]
	if _, err := enc.w.Write(enc.bs[:8]); err != nil {
		return BadEncodingError
	}
	if _, err := enc.w.Write(value[8:]); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteByteString writes a ByteString. An empty ByteString is written as null.
func (enc *BinaryEncoder) WriteByteString(value ByteString) error {
	return enc.WriteString(string(value))
}

// WriteByteArray writes a byte slice as a ByteString.
func (enc *BinaryEncoder) WriteByteArray(value []byte) error {
	if value == nil {
		return enc.WriteInt32(-1)
	}
	if err := enc.WriteInt32(int32(len(value))); err != nil {
		return BadEncodingError
	}
	if _, err := enc.w.Write(value); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteXMLElement writes a XmlElement
func (enc *BinaryEncoder) WriteXMLElement(value XMLElement) error {
	return enc.WriteString(string(value))
}

// WriteNodeID writes a NodeID. A nil NodeID is written as the null node id.
func (enc *BinaryEncoder) WriteNodeID(value NodeID) error {
	return enc.writeNodeID(value, 0)
}

func (enc *BinaryEncoder) writeNodeID(value NodeID, flags byte) error {
	switch value := value.(type) {
	case nil:
		if err := enc.WriteByte(0x00 | flags); err != nil {
			return BadEncodingError
		}
		return enc.WriteByte(0)
	case NodeIDNumeric:
		switch {
		case value.ID <= 255 && value.NamespaceIndex == 0:
			if err := enc.WriteByte(0x00 | flags); err != nil {
				return BadEncodingError
			}
			return enc.WriteByte(byte(value.ID))
		case value.ID <= 65535 && value.NamespaceIndex <= 255:
			if err := enc.WriteByte(0x01 | flags); err != nil {
				return BadEncodingError
			}
			if err := enc.WriteByte(byte(value.NamespaceIndex)); err != nil {
				return BadEncodingError
			}
			return enc.WriteUInt16(uint16(value.ID))
		default:
			if err := enc.WriteByte(0x02 | flags); err != nil {
				return BadEncodingError
			}
			if err := enc.WriteUInt16(value.NamespaceIndex); err != nil {
				return BadEncodingError
			}
			return enc.WriteUInt32(value.ID)
		}
	case NodeIDString:
		if err := enc.WriteByte(0x03 | flags); err != nil {
			return BadEncodingError
		}
		if err := enc.WriteUInt16(value.NamespaceIndex); err != nil {
			return BadEncodingError
		}
		return enc.WriteString(value.ID)
	case NodeIDGUID:
		if err := enc.WriteByte(0x04 | flags); err != nil {
			return BadEncodingError
		}
		if err := enc.WriteUInt16(value.NamespaceIndex); err != nil {
			return BadEncodingError
		}
		return enc.WriteGUID(value.ID)
	case NodeIDOpaque:
		if err := enc.WriteByte(0x05 | flags); err != nil {
			return BadEncodingError
		}
		if err := enc.WriteUInt16(value.NamespaceIndex); err != nil {
			return BadEncodingError
		}
		return enc.WriteByteString(value.ID)
	default:
		return BadEncodingError
	}
}

// WriteExpandedNodeID writes an ExpandedNodeID
func (enc *BinaryEncoder) WriteExpandedNodeID(value ExpandedNodeID) error {
	var flags byte
	if value.NamespaceURI != "" {
		flags |= 0x80
	}
	if value.ServerIndex > 0 {
		flags |= 0x40
	}
	if err := enc.writeNodeID(value.NodeID, flags); err != nil {
		return err
	}
	if value.NamespaceURI != "" {
		if err := enc.WriteString(value.NamespaceURI); err != nil {
			return BadEncodingError
		}
	}
	if value.ServerIndex > 0 {
		if err := enc.WriteUInt32(value.ServerIndex); err != nil {
			return BadEncodingError
		}
	}
	return nil
}

// WriteStatusCode writes a StatusCode
func (enc *BinaryEncoder) WriteStatusCode(value StatusCode) error {
	return enc.WriteUInt32(uint32(value))
}

// WriteQualifiedName writes a QualifiedName
func (enc *BinaryEncoder) WriteQualifiedName(value QualifiedName) error {
	if err := enc.WriteUInt16(value.NamespaceIndex); err != nil {
		return BadEncodingError
	}
	return enc.WriteString(value.Name)
}

// WriteLocalizedText writes a LocalizedText
func (enc *BinaryEncoder) WriteLocalizedText(value LocalizedText) error {
	var b byte
	if value.Locale != "" {
		b |= 1
	}
	if value.Text != "" {
		b |= 2
	}
	if err := enc.WriteByte(b); err != nil {
		return BadEncodingError
	}
	if (b & 1) != 0 {
		if err := enc.WriteString(value.Locale); err != nil {
			return BadEncodingError
		}
	}
	if (b & 2) != 0 {
		if err := enc.WriteString(value.Text); err != nil {
			return BadEncodingError
		}
	}
	return nil
}

// WriteExtensionObject writes a structure as an ExtensionObject. The structure's type must be
// found in the TypeRegistry of the encoding context.
func (enc *BinaryEncoder) WriteExtensionObject(value any) error {
	switch value := value.(type) {
	case nil:
		if err := enc.WriteNodeID(nil); err != nil {
			return BadEncodingError
		}
		return enc.WriteByte(0x00)
	case ExtensionObjectBody:
		if err := enc.WriteNodeID(ToNodeID(value.TypeID, enc.ec.NamespaceURIs())); err != nil {
			return BadEncodingError
		}
		if err := enc.WriteByte(value.Encoding); err != nil {
			return BadEncodingError
		}
		return enc.WriteByteArray(value.Body)
	}
	// lookup encoding id
	id, ok := enc.ec.TypeRegistry().FindEncodingID(reflect.TypeOf(value))
	if !ok {
		return BadEncodingError
	}
	if err := enc.WriteNodeID(ToNodeID(id, enc.ec.NamespaceURIs())); err != nil {
		return BadEncodingError
	}
	if err := enc.WriteByte(0x01); err != nil {
		return BadEncodingError
	}
	// cast writer to BufferAt to access superpowers
	if buf, ok := enc.w.(buffer.BufferAt); ok {
		mark := buf.Len() // mark where length is written
		bs := make([]byte, 4)
		if _, err := buf.Write(bs); err != nil {
			return BadEncodingError
		}
		start := buf.Len() // mark where encoding starts
		if err := enc.Encode(value); err != nil {
			return BadEncodingError
		}
		end := buf.Len() // mark where encoding ends
		binary.LittleEndian.PutUint32(bs, uint32(end-start))
		// write actual length at mark
		if _, err := buf.WriteAt(bs, mark); err != nil {
			return BadEncodingError
		}
		return nil
	}
	// if BufferAt interface not available
	buf2 := buffer.NewPartitionAt(bufferPool)
	defer buf2.Reset()
	enc2 := NewBinaryEncoder(buf2, enc.ec)
	if err := enc2.Encode(value); err != nil {
		return BadEncodingError
	}
	if err := enc.WriteInt32(int32(buf2.Len())); err != nil {
		return BadEncodingError
	}
	buf3 := bytesPool.Get().(*[]byte)
	defer bytesPool.Put(buf3)
	if _, err := io.CopyBuffer(enc.w, buf2, *buf3); err != nil {
		return BadEncodingError
	}
	return nil
}

// WriteDataValue writes a DataValue
func (enc *BinaryEncoder) WriteDataValue(value DataValue) error {
	var b byte
	if value.Value != nil {
		b |= 1
	}
	if value.StatusCode != 0 {
		b |= 2
	}
	if !value.SourceTimestamp.IsZero() {
		b |= 4
	}
	if value.SourcePicoseconds != 0 {
		b |= 16
	}
	if !value.ServerTimestamp.IsZero() {
		b |= 8
	}
	if value.ServerPicoseconds != 0 {
		b |= 32
	}
	if err := enc.WriteByte(b); err != nil {
		return BadEncodingError
	}
	if (b & 1) != 0 {
		if err := enc.WriteVariant(value.Value); err != nil {
			return BadEncodingError
		}
	}
	if (b & 2) != 0 {
		if err := enc.WriteStatusCode(value.StatusCode); err != nil {
			return BadEncodingError
		}
	}
	if (b & 4) != 0 {
		if err := enc.WriteDateTime(value.SourceTimestamp); err != nil {
			return BadEncodingError
		}
	}
	if (b & 16) != 0 {
		if err := enc.WriteUInt16(value.SourcePicoseconds); err != nil {
			return BadEncodingError
		}
	}
	if (b & 8) != 0 {
		if err := enc.WriteDateTime(value.ServerTimestamp); err != nil {
			return BadEncodingError
		}
	}
	if (b & 32) != 0 {
		if err := enc.WriteUInt16(value.ServerPicoseconds); err != nil {
			return BadEncodingError
		}
	}
	return nil
}

// WriteVariant writes a Variant. The value may be nil, a built-in type, a registered structure,
// or a slice of these.
func (enc *BinaryEncoder) WriteVariant(value Variant) error {
	if value == nil {
		return enc.WriteByte(VariantTypeNull)
	}
	rv := reflect.ValueOf(value)
	typ := rv.Type()
	if typ.Kind() == reflect.Slice {
		elemTyp := typ.Elem()
		b, ok := enc.variantTypeOf(elemTyp)
		if !ok || b == VariantTypeNull {
			return BadEncodingError
		}
		if err := enc.WriteByte(b | VariantTypeArray); err != nil {
			return BadEncodingError
		}
		if rv.IsNil() {
			return enc.WriteInt32(-1)
		}
		n := rv.Len()
		if err := enc.WriteInt32(int32(n)); err != nil {
			return BadEncodingError
		}
		for i := 0; i < n; i++ {
			if err := enc.writeVariantElement(b, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	b, ok := enc.variantTypeOf(typ)
	if !ok || b == VariantTypeVariant {
		return BadEncodingError
	}
	if err := enc.WriteByte(b); err != nil {
		return BadEncodingError
	}
	return enc.writeVariantElement(b, rv)
}

func (enc *BinaryEncoder) writeVariantElement(b byte, v reflect.Value) error {
	switch b {
	case VariantTypeExtensionObject:
		return enc.WriteExtensionObject(v.Interface())
	case VariantTypeVariant:
		return enc.WriteVariant(v.Interface())
	case VariantTypeNodeID:
		n, _ := v.Interface().(NodeID)
		return enc.WriteNodeID(n)
	}
	f, err := encoderFor(v.Type())
	if err != nil {
		return BadEncodingError
	}
	return f(enc, v)
}

// variantTypeOf returns the variant type id for a go type.
func (enc *BinaryEncoder) variantTypeOf(typ reflect.Type) (byte, bool) {
	switch typ {
	case typeDateTime:
		return VariantTypeDateTime, true
	case typeGUID:
		return VariantTypeGUID, true
	case typeByteString:
		return VariantTypeByteString, true
	case typeXMLElement:
		return VariantTypeXMLElement, true
	case typeNodeID:
		return VariantTypeNodeID, true
	case typeExpandedNodeID:
		return VariantTypeExpandedNodeID, true
	case typeStatusCode:
		return VariantTypeStatusCode, true
	case typeQualifiedName:
		return VariantTypeQualifiedName, true
	case typeLocalizedText:
		return VariantTypeLocalizedText, true
	case typeExtensionObj:
		return VariantTypeExtensionObject, true
	case typeDataValue:
		return VariantTypeDataValue, true
	case typeDiagnosticInfo:
		return VariantTypeDiagnosticInfo, true
	}
	if typ.Implements(typeNodeID) && typ.Kind() == reflect.Struct {
		return VariantTypeNodeID, true
	}
	switch typ.Kind() {
	case reflect.Bool:
		return VariantTypeBoolean, true
	case reflect.Int8:
		return VariantTypeSByte, true
	case reflect.Uint8:
		return VariantTypeByte, true
	case reflect.Int16:
		return VariantTypeInt16, true
	case reflect.Uint16:
		return VariantTypeUInt16, true
	case reflect.Int32:
		return VariantTypeInt32, true
	case reflect.Uint32:
		return VariantTypeUInt32, true
	case reflect.Int64:
		return VariantTypeInt64, true
	case reflect.Uint64:
		return VariantTypeUInt64, true
	case reflect.Float32:
		return VariantTypeFloat, true
	case reflect.Float64:
		return VariantTypeDouble, true
	case reflect.String:
		return VariantTypeString, true
	case reflect.Interface:
		return VariantTypeVariant, true
	case reflect.Struct, reflect.Ptr:
		if _, ok := enc.ec.TypeRegistry().FindEncodingID(typ); ok {
			return VariantTypeExtensionObject, true
		}
	}
	return VariantTypeNull, false
}

// WriteDiagnosticInfo writes a DiagnosticInfo
func (enc *BinaryEncoder) WriteDiagnosticInfo(value DiagnosticInfo) error {
	var b byte
	if value.SymbolicID >= 0 {
		b |= 1
	}
	if value.NamespaceURI >= 0 {
		b |= 2
	}
	if value.Locale >= 0 {
		b |= 8
	}
	if value.LocalizedText >= 0 {
		b |= 4
	}
	if value.AdditionalInfo != "" {
		b |= 16
	}
	if value.InnerStatusCode != Good {
		b |= 32
	}
	if value.InnerDiagnosticInfo != nil {
		b |= 64
	}
	if err := enc.WriteByte(b); err != nil {
		return BadEncodingError
	}
	if (b & 1) != 0 {
		if err := enc.WriteInt32(value.SymbolicID); err != nil {
			return BadEncodingError
		}
	}
	if (b & 2) != 0 {
		if err := enc.WriteInt32(value.NamespaceURI); err != nil {
			return BadEncodingError
		}
	}
	if (b & 8) != 0 {
		if err := enc.WriteInt32(value.Locale); err != nil {
			return BadEncodingError
		}
	}
	if (b & 4) != 0 {
		if err := enc.WriteInt32(value.LocalizedText); err != nil {
			return BadEncodingError
		}
	}
	if (b & 16) != 0 {
		if err := enc.WriteString(value.AdditionalInfo); err != nil {
			return BadEncodingError
		}
	}
	if (b & 32) != 0 {
		if err := enc.WriteStatusCode(value.InnerStatusCode); err != nil {
			return BadEncodingError
		}
	}
	if (b & 64) != 0 {
		if err := enc.WriteDiagnosticInfo(*value.InnerDiagnosticInfo); err != nil {
			return BadEncodingError
		}
	}
	return nil
}
