// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua_test

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/google/uuid"
	"gotest.tools/assert"
)

func TestPrimitives(t *testing.T) {
	cases := []struct {
		name  string
		write func(*ua.BinaryEncoder) error
		read  func(*ua.BinaryDecoder) (any, error)
		want  any
		bytes []byte
	}{
		{
			"boolean",
			func(enc *ua.BinaryEncoder) error { return enc.WriteBoolean(true) },
			func(dec *ua.BinaryDecoder) (any, error) { var v bool; err := dec.ReadBoolean(&v); return v, err },
			true,
			[]byte{0x01},
		},
		{
			"int32",
			func(enc *ua.BinaryEncoder) error { return enc.WriteInt32(1_000_000_000) },
			func(dec *ua.BinaryDecoder) (any, error) { var v int32; err := dec.ReadInt32(&v); return v, err },
			int32(1_000_000_000),
			[]byte{0x00, 0xCA, 0x9A, 0x3B},
		},
		{
			"uint16",
			func(enc *ua.BinaryEncoder) error { return enc.WriteUInt16(0xBEEF) },
			func(dec *ua.BinaryDecoder) (any, error) { var v uint16; err := dec.ReadUInt16(&v); return v, err },
			uint16(0xBEEF),
			[]byte{0xEF, 0xBE},
		},
		{
			"float",
			func(enc *ua.BinaryEncoder) error { return enc.WriteFloat(-6.5) },
			func(dec *ua.BinaryDecoder) (any, error) { var v float32; err := dec.ReadFloat(&v); return v, err },
			float32(-6.5),
			[]byte{0x00, 0x00, 0xD0, 0xC0},
		},
		{
			"string",
			func(enc *ua.BinaryEncoder) error { return enc.WriteString("foo") },
			func(dec *ua.BinaryDecoder) (any, error) { var v string; err := dec.ReadString(&v); return v, err },
			"foo",
			[]byte{0x03, 0x00, 0x00, 0x00, 0x66, 0x6f, 0x6f},
		},
		{
			"null string",
			func(enc *ua.BinaryEncoder) error { return enc.WriteString("") },
			func(dec *ua.BinaryDecoder) (any, error) { var v string; err := dec.ReadString(&v); return v, err },
			"",
			[]byte{0xff, 0xff, 0xff, 0xff},
		},
		{
			"datetime",
			func(enc *ua.BinaryEncoder) error {
				return enc.WriteDateTime(time.Date(2020, time.July, 04, 12, 0, 0, 0, time.UTC))
			},
			func(dec *ua.BinaryDecoder) (any, error) { var v time.Time; err := dec.ReadDateTime(&v); return v, err },
			time.Date(2020, time.July, 04, 12, 0, 0, 0, time.UTC),
			[]byte{0x00, 0xa0, 0xa5, 0xa4, 0xfa, 0x51, 0xd6, 0x01},
		},
		{
			"zero datetime",
			func(enc *ua.BinaryEncoder) error { return enc.WriteDateTime(time.Time{}) },
			func(dec *ua.BinaryDecoder) (any, error) { var v time.Time; err := dec.ReadDateTime(&v); return v, err },
			time.Time{},
			[]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			"guid",
			func(enc *ua.BinaryEncoder) error {
				return enc.WriteGUID(uuid.MustParse("72962B91-FA75-4AE6-8D28-B404DC7DAF63"))
			},
			func(dec *ua.BinaryDecoder) (any, error) { var v uuid.UUID; err := dec.ReadGUID(&v); return v, err },
			uuid.MustParse("72962B91-FA75-4AE6-8D28-B404DC7DAF63"),
			[]byte{
				// data1 (inverse order)
				0x91, 0x2b, 0x96, 0x72,
				// data2 (inverse order)
				0x75, 0xfa,
				// data3 (inverse order)
				0xe6, 0x4a,
				// data4 (same order)
				0x8d, 0x28, 0xb4, 0x04, 0xdc, 0x7d, 0xaf, 0x63,
			},
		},
		{
			"qualified name",
			func(enc *ua.BinaryEncoder) error { return enc.WriteQualifiedName(ua.NewQualifiedName(2, "bar")) },
			func(dec *ua.BinaryDecoder) (any, error) {
				var v ua.QualifiedName
				err := dec.ReadQualifiedName(&v)
				return v, err
			},
			ua.NewQualifiedName(2, "bar"),
			[]byte{0x02, 0x00, 0x03, 0x00, 0x00, 0x00, 0x62, 0x61, 0x72},
		},
		{
			"localized text",
			func(enc *ua.BinaryEncoder) error { return enc.WriteLocalizedText(ua.NewLocalizedText("bar", "en")) },
			func(dec *ua.BinaryDecoder) (any, error) {
				var v ua.LocalizedText
				err := dec.ReadLocalizedText(&v)
				return v, err
			},
			ua.NewLocalizedText("bar", "en"),
			[]byte{
				// mask
				0x03,
				0x02, 0x00, 0x00, 0x00, 0x65, 0x6e,
				0x03, 0x00, 0x00, 0x00, 0x62, 0x61, 0x72,
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			enc := ua.NewBinaryEncoder(buf, ua.NewEncodingContext())
			if err := c.write(enc); err != nil {
				t.Fatal(err)
			}
			assert.DeepEqual(t, buf.Bytes(), c.bytes)
			dec := ua.NewBinaryDecoder(buf, ua.NewEncodingContext())
			out, err := c.read(dec)
			if err != nil {
				t.Fatal(err)
			}
			assert.DeepEqual(t, out, c.want)
		})
	}
}

func TestDateTimeMax(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := ua.NewBinaryEncoder(buf, ua.NewEncodingContext())
	if err := enc.WriteDateTime(time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	var ticks int64
	dec := ua.NewBinaryDecoder(buf, ua.NewEncodingContext())
	if err := dec.ReadInt64(&ticks); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, ticks, int64(math.MaxInt64))
}

func TestNodeID(t *testing.T) {
	cases := []struct {
		in    ua.NodeID
		bytes []byte
	}{
		{
			ua.NewNodeIDNumeric(0, 255),
			[]byte{
				// mask
				0x00,
				// id
				0xff,
			},
		},
		{
			ua.NewNodeIDNumeric(2, 65535),
			[]byte{
				// mask
				0x01,
				// namespace
				0x02,
				// id
				0xff, 0xff,
			},
		},
		{
			ua.NewNodeIDNumeric(10, 4294967295),
			[]byte{
				// mask
				0x02,
				// namespace
				0x0a, 0x00,
				// id
				0xff, 0xff, 0xff, 0xff,
			},
		},
		{
			ua.NewNodeIDString(2, "bar"),
			[]byte{
				// mask
				0x03,
				// namespace
				0x02, 0x00,
				// value
				0x03, 0x00, 0x00, 0x00, // len
				0x62, 0x61, 0x72, // char
			},
		},
		{
			ua.NewNodeIDGUID(2, uuid.MustParse("AAAABBBB-CCDD-EEFF-0102-0123456789AB")),
			[]byte{
				// mask
				0x04,
				// namespace
				0x02, 0x00,
				// data1 (inverse order)
				0xbb, 0xbb, 0xaa, 0xaa,
				// data2 (inverse order)
				0xdd, 0xcc,
				// data3 (inverse order)
				0xff, 0xee,
				// data4 (same order)
				0x01, 0x02, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab,
			},
		},
		{
			ua.NewNodeIDOpaque(2, ua.ByteString("\x00\x10\x20\x30\x40\x50\x60\x70")),
			[]byte{
				// mask
				0x05,
				// namespace
				0x02, 0x00,
				// value
				0x08, 0x00, 0x00, 0x00, // len
				0x00, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70, // bytes
			},
		},
		{
			nil,
			[]byte{0x00, 0x00},
		},
	}
	for _, c := range cases {
		buf := &bytes.Buffer{}
		enc := ua.NewBinaryEncoder(buf, ua.NewEncodingContext())
		if err := enc.WriteNodeID(c.in); err != nil {
			t.Fatal(err)
		}
		assert.DeepEqual(t, buf.Bytes(), c.bytes)

		dec := ua.NewBinaryDecoder(buf, ua.NewEncodingContext())
		var out ua.NodeID
		if err := dec.ReadNodeID(&out); err != nil {
			t.Fatal(err)
		}
		assert.DeepEqual(t, out, c.in)
	}
}

func TestVariant(t *testing.T) {
	cases := []struct {
		in    ua.Variant
		bytes []byte
	}{
		{
			nil,
			[]byte{0x00},
		},
		{
			int32(-1),
			[]byte{0x06, 0xff, 0xff, 0xff, 0xff},
		},
		{
			[]int32{1, 2},
			[]byte{0x86, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00},
		},
		{
			ua.StatusCode(0x80070000),
			[]byte{0x13, 0x00, 0x00, 0x07, 0x80},
		},
		{
			[]ua.Variant{true, "a"},
			[]byte{0x98, 0x02, 0x00, 0x00, 0x00, 0x01, 0x01, 0x0c, 0x01, 0x00, 0x00, 0x00, 0x61},
		},
		{
			ua.NewNodeIDNumeric(0, 85),
			[]byte{0x11, 0x00, 0x55},
		},
	}
	for _, c := range cases {
		buf := &bytes.Buffer{}
		enc := ua.NewBinaryEncoder(buf, ua.NewEncodingContext())
		if err := enc.WriteVariant(c.in); err != nil {
			t.Fatal(err)
		}
		assert.DeepEqual(t, buf.Bytes(), c.bytes)

		dec := ua.NewBinaryDecoder(buf, ua.NewEncodingContext())
		var out ua.Variant
		if err := dec.ReadVariant(&out); err != nil {
			t.Fatal(err)
		}
		assert.DeepEqual(t, out, c.in)
	}
}

func TestDataValue(t *testing.T) {
	ts := time.Date(2020, time.July, 04, 12, 0, 0, 0, time.UTC)
	cases := []ua.DataValue{
		ua.NewDataValue(float64(42.5), 0, ts, 0, ts, 0),
		ua.NewDataValue(nil, ua.BadNodeIDUnknown, time.Time{}, 0, ts, 0),
		ua.NewDataValue("x", ua.Good.WithOverflow(), ts, 10, time.Time{}, 20),
	}
	for _, c := range cases {
		buf := &bytes.Buffer{}
		enc := ua.NewBinaryEncoder(buf, ua.NewEncodingContext())
		if err := enc.WriteDataValue(c); err != nil {
			t.Fatal(err)
		}
		dec := ua.NewBinaryDecoder(buf, ua.NewEncodingContext())
		var out ua.DataValue
		if err := dec.ReadDataValue(&out); err != nil {
			t.Fatal(err)
		}
		assert.DeepEqual(t, out, c)
	}
}

func TestExtensionObject(t *testing.T) {
	ec := ua.NewEncodingContext()
	in := ua.DataChangeFilter{Trigger: ua.DataChangeTriggerStatusValue, DeadbandType: uint32(ua.DeadbandTypeAbsolute), DeadbandValue: 0.5}
	buf := ua.NewPartitionBuffer()
	enc := ua.NewBinaryEncoder(buf, ec)
	if err := enc.WriteExtensionObject(in); err != nil {
		t.Fatal(err)
	}
	dec := ua.NewBinaryDecoder(buf, ec)
	var out ua.ExtensionObject
	if err := dec.ReadExtensionObject(&out); err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, out, ua.ExtensionObject(in))
}

func TestExtensionObjectUnknownType(t *testing.T) {
	in := ua.ExtensionObjectBody{
		TypeID:   ua.NewExpandedNodeID(ua.NewNodeIDNumeric(2, 5001)),
		Encoding: 0x01,
		Body:     []byte{0x01, 0x02, 0x03},
	}
	buf := &bytes.Buffer{}
	enc := ua.NewBinaryEncoder(buf, ua.NewEncodingContext())
	if err := enc.WriteExtensionObject(in); err != nil {
		t.Fatal(err)
	}
	dec := ua.NewBinaryDecoder(buf, ua.NewEncodingContext())
	var out ua.ExtensionObject
	if err := dec.ReadExtensionObject(&out); err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, out, ua.ExtensionObject(in))
}

type vendorPoint struct {
	X float64
	Y float64
}

func TestTypeRegistryPerCodec(t *testing.T) {
	id := ua.NewExpandedNodeID(ua.NewNodeIDNumeric(1, 7001))
	reg := ua.NewStandardTypeRegistry()
	reg.Register(id, vendorPoint{})
	ec := ua.NewEncodingContextWith([]string{"http://opcfoundation.org/UA/", "urn:vendor"}, nil, reg)

	buf := &bytes.Buffer{}
	enc := ua.NewBinaryEncoder(buf, ec)
	if err := enc.WriteVariant(vendorPoint{1, 2}); err != nil {
		t.Fatal(err)
	}
	raw := append([]byte(nil), buf.Bytes()...)

	// a codec with its own registry decodes the point.
	var out ua.Variant
	if err := ua.NewBinaryDecoder(bytes.NewReader(raw), ec).ReadVariant(&out); err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, out, ua.Variant(vendorPoint{1, 2}))

	// a codec with the standard registry keeps the body.
	if err := ua.NewBinaryDecoder(bytes.NewReader(raw), ua.NewEncodingContext()).ReadVariant(&out); err != nil {
		t.Fatal(err)
	}
	body, ok := out.(ua.ExtensionObjectBody)
	assert.Assert(t, ok)
	assert.Equal(t, len(body.Body), 16)
}

func TestMessage(t *testing.T) {
	in := &ua.ReadRequest{
		RequestHeader: ua.RequestHeader{
			AuthenticationToken: ua.NewNodeIDOpaque(0, "token"),
			Timestamp:           time.Date(2020, time.July, 04, 12, 0, 0, 0, time.UTC),
			RequestHandle:       1001,
			TimeoutHint:         15000,
		},
		MaxAge:             0,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		NodesToRead: []ua.ReadValueID{
			{NodeID: ua.VariableIDServerServerStatusCurrentTime, AttributeID: ua.AttributeIDValue},
			{NodeID: ua.NewNodeIDString(2, "Demo.Static.Scalar.Double"), AttributeID: ua.AttributeIDValue},
		},
	}
	ec := ua.NewEncodingContext()
	buf := ua.NewPartitionBuffer()
	enc := ua.NewBinaryEncoder(buf, ec)
	if err := enc.WriteMessage(in); err != nil {
		t.Fatal(err)
	}
	dec := ua.NewBinaryDecoder(buf, ec)
	out, err := dec.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, out, in)
}

func TestSliceNil(t *testing.T) {
	type holder struct {
		Values []string
		Empty  []string
	}
	in := holder{nil, []string{}}
	buf := &bytes.Buffer{}
	if err := ua.NewBinaryEncoder(buf, ua.NewEncodingContext()).Encode(&in); err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, buf.Bytes(), []byte{0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00})
	var out holder
	if err := ua.NewBinaryDecoder(buf, ua.NewEncodingContext()).Decode(&out); err != nil {
		t.Fatal(err)
	}
	assert.Assert(t, out.Values == nil)
	assert.Equal(t, len(out.Empty), 0)
}

func TestDecodeTruncated(t *testing.T) {
	dec := ua.NewBinaryDecoder(bytes.NewReader([]byte{0x03, 0x00, 0x00}), ua.NewEncodingContext())
	var v string
	err := dec.ReadString(&v)
	assert.Equal(t, err, ua.BadDecodingError)
}
