// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	typeToDecoderMap sync.Map
)

// maxArrayLength limits the length of arrays, strings and byte strings read from a stream.
const maxArrayLength = 16 * 1024 * 1024

// BinaryDecoder decodes the UA binary protocol.
type BinaryDecoder struct {
	r  io.Reader
	ec EncodingContext
	bs [8]byte
}

// NewBinaryDecoder returns a new decoder that reads from an io.Reader.
func NewBinaryDecoder(r io.Reader, ec EncodingContext) *BinaryDecoder {
	return &BinaryDecoder{r, ec, [8]byte{}}
}

type decoderFunc func(*BinaryDecoder, reflect.Value) error

// Decode decodes the value using the UA Binary protocol. The value must be a pointer.
func (dec *BinaryDecoder) Decode(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return BadDecodingError
	}
	rv = rv.Elem()
	f, err := decoderFor(rv.Type())
	if err != nil {
		return err
	}
	return f(dec, rv)
}

// ReadMessage reads a binary encoding id followed by the message of the registered type.
// It returns a pointer to the message.
func (dec *BinaryDecoder) ReadMessage() (any, error) {
	var id NodeID
	if err := dec.ReadNodeID(&id); err != nil {
		return nil, err
	}
	typ, ok := dec.ec.TypeRegistry().FindType(ToExpandedNodeID(id, dec.ec.NamespaceURIs()))
	if !ok {
		return nil, BadDecodingError
	}
	msg := reflect.New(typ)
	if err := dec.Decode(msg.Interface()); err != nil {
		return nil, err
	}
	return msg.Interface(), nil
}

func decoderFor(typ reflect.Type) (decoderFunc, error) {
	// try to retrieve decoder from cache.
	if f, ok := typeToDecoderMap.Load(typ); ok {
		return f.(decoderFunc), nil
	}
	f, err := getDecoder(typ)
	if err != nil {
		return nil, err
	}
	typeToDecoderMap.Store(typ, f)
	return f, nil
}

func getDecoder(typ reflect.Type) (decoderFunc, error) {
	switch typ {
	case typeDateTime:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var t time.Time
			if err := dec.ReadDateTime(&t); err != nil {
				return err
			}
			v.Set(reflect.ValueOf(t))
			return nil
		}, nil
	case typeGUID:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var g uuid.UUID
			if err := dec.ReadGUID(&g); err != nil {
				return err
			}
			v.Set(reflect.ValueOf(g))
			return nil
		}, nil
	case typeExpandedNodeID:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var n ExpandedNodeID
			if err := dec.ReadExpandedNodeID(&n); err != nil {
				return err
			}
			v.Set(reflect.ValueOf(n))
			return nil
		}, nil
	case typeQualifiedName:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var q QualifiedName
			if err := dec.ReadQualifiedName(&q); err != nil {
				return err
			}
			v.Set(reflect.ValueOf(q))
			return nil
		}, nil
	case typeLocalizedText:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var t LocalizedText
			if err := dec.ReadLocalizedText(&t); err != nil {
				return err
			}
			v.Set(reflect.ValueOf(t))
			return nil
		}, nil
	case typeDataValue:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var d DataValue
			if err := dec.ReadDataValue(&d); err != nil {
				return err
			}
			v.Set(reflect.ValueOf(d))
			return nil
		}, nil
	case typeDiagnosticInfo:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var d DiagnosticInfo
			if err := dec.ReadDiagnosticInfo(&d); err != nil {
				return err
			}
			v.Set(reflect.ValueOf(d))
			return nil
		}, nil
	case typeByteArray:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var b []byte
			if err := dec.ReadByteArray(&b); err != nil {
				return err
			}
			v.SetBytes(b)
			return nil
		}, nil
	case typeNodeID:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var n NodeID
			if err := dec.ReadNodeID(&n); err != nil {
				return err
			}
			setInterface(v, n)
			return nil
		}, nil
	case typeExtensionObj:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var obj ExtensionObject
			if err := dec.ReadExtensionObject(&obj); err != nil {
				return err
			}
			setInterface(v, obj)
			return nil
		}, nil
	}
	if typ.Implements(typeNodeID) && typ.Kind() == reflect.Struct {
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var n NodeID
			if err := dec.ReadNodeID(&n); err != nil {
				return err
			}
			if n == nil {
				v.Set(reflect.Zero(typ))
				return nil
			}
			rn := reflect.ValueOf(n)
			if rn.Type() != typ {
				return BadDecodingError
			}
			v.Set(rn)
			return nil
		}, nil
	}
	switch typ.Kind() {
	case reflect.Struct:
		return getStructDecoder(typ)
	case reflect.Ptr:
		return getStructPtrDecoder(typ.Elem())
	case reflect.Slice:
		return getSliceDecoder(typ)
	case reflect.Interface:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var value Variant
			if err := dec.ReadVariant(&value); err != nil {
				return err
			}
			setInterface(v, value)
			return nil
		}, nil
	case reflect.Bool:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var b bool
			if err := dec.ReadBoolean(&b); err != nil {
				return err
			}
			v.SetBool(b)
			return nil
		}, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		size := typ.Size()
		return func(dec *BinaryDecoder, v reflect.Value) error {
			n, err := dec.readUint(int(size))
			if err != nil {
				return err
			}
			switch size {
			case 1:
				v.SetInt(int64(int8(n)))
			case 2:
				v.SetInt(int64(int16(n)))
			case 4:
				v.SetInt(int64(int32(n)))
			default:
				v.SetInt(int64(n))
			}
			return nil
		}, nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		size := typ.Size()
		return func(dec *BinaryDecoder, v reflect.Value) error {
			n, err := dec.readUint(int(size))
			if err != nil {
				return err
			}
			v.SetUint(n)
			return nil
		}, nil
	case reflect.Float32:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var f float32
			if err := dec.ReadFloat(&f); err != nil {
				return err
			}
			v.SetFloat(float64(f))
			return nil
		}, nil
	case reflect.Float64:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var f float64
			if err := dec.ReadDouble(&f); err != nil {
				return err
			}
			v.SetFloat(f)
			return nil
		}, nil
	case reflect.String:
		return func(dec *BinaryDecoder, v reflect.Value) error {
			var s string
			if err := dec.ReadString(&s); err != nil {
				return err
			}
			v.SetString(s)
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unsupported type: %s", typ)
}

// setInterface stores a possibly nil value into an interface-typed field.
func setInterface(v reflect.Value, value any) {
	if value == nil {
		v.Set(reflect.Zero(v.Type()))
		return
	}
	v.Set(reflect.ValueOf(value))
}

func getStructDecoder(typ reflect.Type) (decoderFunc, error) {
	decoders := []decoderFunc{}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		f, err := getDecoder(field.Type)
		if err != nil {
			return nil, err
		}
		index := i
		decoders = append(decoders, func(dec *BinaryDecoder, v reflect.Value) error {
			return f(dec, v.Field(index))
		})
	}
	return func(dec *BinaryDecoder, v reflect.Value) error {
		for _, f := range decoders {
			if err := f(dec, v); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func getStructPtrDecoder(typ reflect.Type) (decoderFunc, error) {
	f, err := getDecoder(typ)
	if err != nil {
		return nil, err
	}
	return func(dec *BinaryDecoder, v reflect.Value) error {
		if v.IsNil() {
			v.Set(reflect.New(typ))
		}
		return f(dec, v.Elem())
	}, nil
}

func getSliceDecoder(typ reflect.Type) (decoderFunc, error) {
	f, err := getDecoder(typ.Elem())
	if err != nil {
		return nil, err
	}
	return func(dec *BinaryDecoder, v reflect.Value) error {
		var n int32
		if err := dec.ReadInt32(&n); err != nil {
			return err
		}
		if n < 0 {
			v.Set(reflect.Zero(typ))
			return nil
		}
		if n > maxArrayLength {
			return BadEncodingLimitsExceeded
		}
		s := reflect.MakeSlice(typ, int(n), int(n))
		for i := 0; i < int(n); i++ {
			if err := f(dec, s.Index(i)); err != nil {
				return err
			}
		}
		v.Set(s)
		return nil
	}, nil
}

func (dec *BinaryDecoder) readUint(size int) (uint64, error) {
	if _, err := io.ReadFull(dec.r, dec.bs[:size]); err != nil {
		return 0, BadDecodingError
	}
	switch size {
	case 1:
		return uint64(dec.bs[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(dec.bs[:2])), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(dec.bs[:4])), nil
	default:
		return binary.LittleEndian.Uint64(dec.bs[:8]), nil
	}
}

// ReadBoolean reads a bool.
func (dec *BinaryDecoder) ReadBoolean(value *bool) error {
	n, err := dec.readUint(1)
	if err != nil {
		return err
	}
	*value = n != 0
	return nil
}

// ReadSByte reads a int8.
func (dec *BinaryDecoder) ReadSByte(value *int8) error {
	n, err := dec.readUint(1)
	if err != nil {
		return err
	}
	*value = int8(n)
	return nil
}

// ReadByte reads a byte.
func (dec *BinaryDecoder) ReadByte(value *byte) error {
	n, err := dec.readUint(1)
	if err != nil {
		return err
	}
	*value = byte(n)
	return nil
}

// ReadInt16 reads a int16.
func (dec *BinaryDecoder) ReadInt16(value *int16) error {
	n, err := dec.readUint(2)
	if err != nil {
		return err
	}
	*value = int16(n)
	return nil
}

// ReadUInt16 reads a uint16.
func (dec *BinaryDecoder) ReadUInt16(value *uint16) error {
	n, err := dec.readUint(2)
	if err != nil {
		return err
	}
	*value = uint16(n)
	return nil
}

// ReadInt32 reads a int32.
func (dec *BinaryDecoder) ReadInt32(value *int32) error {
	n, err := dec.readUint(4)
	if err != nil {
		return err
	}
	*value = int32(n)
	return nil
}

// ReadUInt32 reads a uint32.
func (dec *BinaryDecoder) ReadUInt32(value *uint32) error {
	n, err := dec.readUint(4)
	if err != nil {
		return err
	}
	*value = uint32(n)
	return nil
}

// ReadInt64 reads a int64.
func (dec *BinaryDecoder) ReadInt64(value *int64) error {
	n, err := dec.readUint(8)
	if err != nil {
		return err
	}
	*value = int64(n)
	return nil
}

// ReadUInt64 reads a uint64.
func (dec *BinaryDecoder) ReadUInt64(value *uint64) error {
	n, err := dec.readUint(8)
	if err != nil {
		return err
	}
	*value = n
	return nil
}

// ReadFloat reads a float32.
func (dec *BinaryDecoder) ReadFloat(value *float32) error {
	n, err := dec.readUint(4)
	if err != nil {
		return err
	}
	*value = math.Float32frombits(uint32(n))
	return nil
}

// ReadDouble reads a float64.
func (dec *BinaryDecoder) ReadDouble(value *float64) error {
	n, err := dec.readUint(8)
	if err != nil {
		return err
	}
	*value = math.Float64frombits(n)
	return nil
}

func (dec *BinaryDecoder) readBytes() ([]byte, error) {
	var n int32
	if err := dec.ReadInt32(&n); err != nil {
		return nil, BadDecodingError
	}
	if n < 0 {
		return nil, nil
	}
	if n > maxArrayLength {
		return nil, BadEncodingLimitsExceeded
	}
	bs := make([]byte, n)
	if _, err := io.ReadFull(dec.r, bs); err != nil {
		return nil, BadDecodingError
	}
	return bs, nil
}

// ReadString reads a string. A null string is read as "".
func (dec *BinaryDecoder) ReadString(value *string) error {
	bs, err := dec.readBytes()
	if err != nil {
		return err
	}
	*value = string(bs)
	return nil
}

// ReadDateTime reads a time.Time.
func (dec *BinaryDecoder) ReadDateTime(value *time.Time) error {
	// ticks are 100 nanosecond intervals since January 1, 1601
	var ticks int64
	if err := dec.ReadInt64(&ticks); err != nil {
		return BadDecodingError
	}
	if ticks <= 0 {
		*value = time.Time{}
		return nil
	}
	if ticks == math.MaxInt64 {
		ticks = 2650467743990000000
	}
	*value = time.Unix(ticks/10000000-11644473600, (ticks%10000000)*100).UTC()
	return nil
}

// ReadGUID reads a uuid.UUID.
func (dec *BinaryDecoder) ReadGUID(value *uuid.UUID) error {
	if _, err := io.ReadFull(dec.r, dec.bs[:8]); err != nil {
		return BadDecodingError
	}
	v := uuid.UUID{}
	v[0] = dec.bs[3]
	v[1] = dec.bs[2]
	v[2] = dec.bs[1]
	v[3] = dec.bs[0]
	v[4] = dec.bs[5]
	v[5] = dec.bs[4]
	v[6] = dec.bs[7]
	v[7] = dec.bs[6]
	if _, err := io.ReadFull(dec.r, v[8:]); err != nil {
		return BadDecodingError
	}
	*value = v
	return nil
}

// ReadByteString reads a ByteString. A null ByteString is read as "".
func (dec *BinaryDecoder) ReadByteString(value *ByteString) error {
	bs, err := dec.readBytes()
	if err != nil {
		return err
	}
	*value = ByteString(bs)
	return nil
}

// ReadByteArray reads a ByteString into a byte slice. A null ByteString is read as nil.
func (dec *BinaryDecoder) ReadByteArray(value *[]byte) error {
	bs, err := dec.readBytes()
	if err != nil {
		return err
	}
	*value = bs
	return nil
}

// ReadXMLElement reads a XMLElement.
func (dec *BinaryDecoder) ReadXMLElement(value *XMLElement) error {
	var s string
	if err := dec.ReadString(&s); err != nil {
		return BadDecodingError
	}
	*value = XMLElement(s)
	return nil
}

var nilGUID = uuid.UUID{}

// ReadNodeID reads a NodeID. The null node id is read as nil.
func (dec *BinaryDecoder) ReadNodeID(value *NodeID) error {
	var b byte
	if err := dec.ReadByte(&b); err != nil {
		return BadDecodingError
	}
	if b&0x3F != b {
		return BadDecodingError
	}
	n, err := dec.readNodeIDBody(b)
	if err != nil {
		return err
	}
	*value = n
	return nil
}

func (dec *BinaryDecoder) readNodeIDBody(b byte) (NodeID, error) {
	switch b & 0x0F {
	case 0x00:
		var id byte
		if err := dec.ReadByte(&id); err != nil {
			return nil, BadDecodingError
		}
		if id == 0 {
			return nil, nil
		}
		return NewNodeIDNumeric(0, uint32(id)), nil

	case 0x01:
		var ns byte
		var id uint16
		if err := dec.ReadByte(&ns); err != nil {
			return nil, BadDecodingError
		}
		if err := dec.ReadUInt16(&id); err != nil {
			return nil, BadDecodingError
		}
		return NewNodeIDNumeric(uint16(ns), uint32(id)), nil

	case 0x02:
		var ns uint16
		var id uint32
		if err := dec.ReadUInt16(&ns); err != nil {
			return nil, BadDecodingError
		}
		if err := dec.ReadUInt32(&id); err != nil {
			return nil, BadDecodingError
		}
		return NewNodeIDNumeric(ns, id), nil

	case 0x03:
		var ns uint16
		var id string
		if err := dec.ReadUInt16(&ns); err != nil {
			return nil, BadDecodingError
		}
		if err := dec.ReadString(&id); err != nil {
			return nil, BadDecodingError
		}
		if ns == 0 && id == "" {
			return nil, nil
		}
		return NewNodeIDString(ns, id), nil

	case 0x04:
		var ns uint16
		var id uuid.UUID
		if err := dec.ReadUInt16(&ns); err != nil {
			return nil, BadDecodingError
		}
		if err := dec.ReadGUID(&id); err != nil {
			return nil, BadDecodingError
		}
		if ns == 0 && id == nilGUID {
			return nil, nil
		}
		return NewNodeIDGUID(ns, id), nil

	case 0x05:
		var ns uint16
		var id ByteString
		if err := dec.ReadUInt16(&ns); err != nil {
			return nil, BadDecodingError
		}
		if err := dec.ReadByteString(&id); err != nil {
			return nil, BadDecodingError
		}
		if ns == 0 && id == "" {
			return nil, nil
		}
		return NewNodeIDOpaque(ns, id), nil

	default:
		return nil, BadDecodingError
	}
}

// ReadExpandedNodeID reads an ExpandedNodeID.
func (dec *BinaryDecoder) ReadExpandedNodeID(value *ExpandedNodeID) error {
	var (
		nsu string
		svr uint32
		b   byte
	)
	if err := dec.ReadByte(&b); err != nil {
		return BadDecodingError
	}
	n, err := dec.readNodeIDBody(b)
	if err != nil {
		return err
	}
	if (b & 0x80) != 0 {
		if err := dec.ReadString(&nsu); err != nil {
			return BadDecodingError
		}
	}
	if (b & 0x40) != 0 {
		if err := dec.ReadUInt32(&svr); err != nil {
			return BadDecodingError
		}
	}
	*value = ExpandedNodeID{svr, nsu, n}
	return nil
}

// ReadStatusCode reads a StatusCode.
func (dec *BinaryDecoder) ReadStatusCode(value *StatusCode) error {
	var u1 uint32
	if err := dec.ReadUInt32(&u1); err != nil {
		return BadDecodingError
	}
	*value = StatusCode(u1)
	return nil
}

// ReadQualifiedName reads a QualifiedName.
func (dec *BinaryDecoder) ReadQualifiedName(value *QualifiedName) error {
	var (
		ns   uint16
		name string
	)
	if err := dec.ReadUInt16(&ns); err != nil {
		return BadDecodingError
	}
	if err := dec.ReadString(&name); err != nil {
		return BadDecodingError
	}
	*value = QualifiedName{ns, name}
	return nil
}

// ReadLocalizedText reads a LocalizedText.
func (dec *BinaryDecoder) ReadLocalizedText(value *LocalizedText) error {
	var (
		text   string
		locale string
	)
	var b byte
	if err := dec.ReadByte(&b); err != nil {
		return BadDecodingError
	}
	if (b & 1) != 0 {
		if err := dec.ReadString(&locale); err != nil {
			return BadDecodingError
		}
	}
	if (b & 2) != 0 {
		if err := dec.ReadString(&text); err != nil {
			return BadDecodingError
		}
	}
	*value = LocalizedText{text, locale}
	return nil
}

// ReadExtensionObject reads an ExtensionObject. A body of a registered type is decoded into a structure,
// otherwise the body is kept as an ExtensionObjectBody.
func (dec *BinaryDecoder) ReadExtensionObject(value *ExtensionObject) error {
	var nodeID NodeID
	if err := dec.ReadNodeID(&nodeID); err != nil {
		return BadDecodingError
	}
	var b byte
	if err := dec.ReadByte(&b); err != nil {
		return BadDecodingError
	}
	switch b {
	case 0x00:
		*value = nil
		return nil
	case 0x01, 0x02:
		id := ToExpandedNodeID(nodeID, dec.ec.NamespaceURIs())
		var body []byte
		if err := dec.ReadByteArray(&body); err != nil {
			return BadDecodingError
		}
		if b == 0x01 {
			typ, ok := dec.ec.TypeRegistry().FindType(id)
			if !ok {
				typ, ok = dec.ec.TypeRegistry().FindType(NewExpandedNodeID(nodeID))
			}
			if ok {
				obj := reflect.New(typ)
				if err := NewBinaryDecoder(bytes.NewReader(body), dec.ec).Decode(obj.Interface()); err != nil {
					return BadDecodingError
				}
				*value = obj.Elem().Interface()
				return nil
			}
		}
		*value = ExtensionObjectBody{id, b, body}
		return nil
	default:
		return BadDecodingError
	}
}

// ReadDataValue reads a DataValue.
func (dec *BinaryDecoder) ReadDataValue(value *DataValue) error {
	var (
		v                 Variant
		statusCode        StatusCode
		sourceTimestamp   time.Time
		sourcePicoseconds uint16
		serverTimestamp   time.Time
		serverPicoseconds uint16
	)
	var b byte
	if err := dec.ReadByte(&b); err != nil {
		return BadDecodingError
	}
	if (b & 1) != 0 {
		if err := dec.ReadVariant(&v); err != nil {
			return BadDecodingError
		}
	}
	if (b & 2) != 0 {
		if err := dec.ReadStatusCode(&statusCode); err != nil {
			return BadDecodingError
		}
	}
	if (b & 4) != 0 {
		if err := dec.ReadDateTime(&sourceTimestamp); err != nil {
			return BadDecodingError
		}
	}
	if (b & 16) != 0 {
		if err := dec.ReadUInt16(&sourcePicoseconds); err != nil {
			return BadDecodingError
		}
	}
	if (b & 8) != 0 {
		if err := dec.ReadDateTime(&serverTimestamp); err != nil {
			return BadDecodingError
		}
	}
	if (b & 32) != 0 {
		if err := dec.ReadUInt16(&serverPicoseconds); err != nil {
			return BadDecodingError
		}
	}
	*value = DataValue{v, statusCode, sourceTimestamp, sourcePicoseconds, serverTimestamp, serverPicoseconds}
	return nil
}

// variantElementTypes maps the variant type id to the go type of a scalar.
var variantElementTypes = [...]reflect.Type{
	VariantTypeBoolean:         typeBoolean,
	VariantTypeSByte:           typeSByte,
	VariantTypeByte:            typeByte,
	VariantTypeInt16:           typeInt16,
	VariantTypeUInt16:          typeUInt16,
	VariantTypeInt32:           typeInt32,
	VariantTypeUInt32:          typeUInt32,
	VariantTypeInt64:           typeInt64,
	VariantTypeUInt64:          typeUInt64,
	VariantTypeFloat:           typeFloat,
	VariantTypeDouble:          typeDouble,
	VariantTypeString:          typeString,
	VariantTypeDateTime:        typeDateTime,
	VariantTypeGUID:            typeGUID,
	VariantTypeByteString:      typeByteString,
	VariantTypeXMLElement:      typeXMLElement,
	VariantTypeNodeID:          typeNodeID,
	VariantTypeExpandedNodeID:  typeExpandedNodeID,
	VariantTypeStatusCode:      typeStatusCode,
	VariantTypeQualifiedName:   typeQualifiedName,
	VariantTypeLocalizedText:   typeLocalizedText,
	VariantTypeExtensionObject: typeExtensionObj,
	VariantTypeDataValue:       typeDataValue,
	VariantTypeVariant:         typeVariantSlice.Elem(),
	VariantTypeDiagnosticInfo:  typeDiagnosticInfo,
}

// ReadVariant reads a Variant. Arrays are read as slices of the element type.
func (dec *BinaryDecoder) ReadVariant(value *Variant) error {
	var b byte
	if err := dec.ReadByte(&b); err != nil {
		return BadDecodingError
	}
	id := b & 0x3F
	if id == VariantTypeNull {
		*value = nil
		return nil
	}
	if int(id) >= len(variantElementTypes) {
		return BadDecodingError
	}
	elemTyp := variantElementTypes[id]

	// If scalar value
	if (b & VariantTypeArray) == 0 {
		if id == VariantTypeVariant {
			return BadDecodingError
		}
		f, err := decoderFor(elemTyp)
		if err != nil {
			return BadDecodingError
		}
		v := reflect.New(elemTyp).Elem()
		if err := f(dec, v); err != nil {
			return err
		}
		*value = v.Interface()
		return nil
	}

	f, err := decoderFor(reflect.SliceOf(elemTyp))
	if err != nil {
		return BadDecodingError
	}
	s := reflect.New(reflect.SliceOf(elemTyp)).Elem()
	if err := f(dec, s); err != nil {
		return err
	}
	// array dimensions of multi-dimensional arrays are read and discarded.
	if (b & 0x40) != 0 {
		var dims []int32
		if err := dec.Decode(&dims); err != nil {
			return BadDecodingError
		}
	}
	*value = s.Interface()
	return nil
}

// ReadDiagnosticInfo reads a DiagnosticInfo.
func (dec *BinaryDecoder) ReadDiagnosticInfo(value *DiagnosticInfo) error {
	var b byte
	if err := dec.ReadByte(&b); err != nil {
		return BadDecodingError
	}
	d := NilDiagnosticInfo
	if (b & 1) != 0 {
		if err := dec.ReadInt32(&d.SymbolicID); err != nil {
			return BadDecodingError
		}
	}
	if (b & 2) != 0 {
		if err := dec.ReadInt32(&d.NamespaceURI); err != nil {
			return BadDecodingError
		}
	}
	if (b & 8) != 0 {
		if err := dec.ReadInt32(&d.Locale); err != nil {
			return BadDecodingError
		}
	}
	if (b & 4) != 0 {
		if err := dec.ReadInt32(&d.LocalizedText); err != nil {
			return BadDecodingError
		}
	}
	if (b & 16) != 0 {
		if err := dec.ReadString(&d.AdditionalInfo); err != nil {
			return BadDecodingError
		}
	}
	if (b & 32) != 0 {
		if err := dec.ReadStatusCode(&d.InnerStatusCode); err != nil {
			return BadDecodingError
		}
	}
	if (b & 64) != 0 {
		inner := DiagnosticInfo{}
		if err := dec.ReadDiagnosticInfo(&inner); err != nil {
			return BadDecodingError
		}
		d.InnerDiagnosticInfo = &inner
	}
	*value = d
	return nil
}
