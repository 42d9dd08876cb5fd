// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NodeID identifies a Node. A nil NodeID is the null node id.
type NodeID interface {
	nodeID()
	String() string
}

// NodeIDNumeric is a node id with a numeric identifier.
type NodeIDNumeric struct {
	NamespaceIndex uint16
	ID             uint32
}

// NewNodeIDNumeric constructs a new NodeID of numeric type.
func NewNodeIDNumeric(ns uint16, id uint32) NodeIDNumeric {
	return NodeIDNumeric{ns, id}
}

func (n NodeIDNumeric) nodeID() {}

// String returns a string representation, e.g. "i=85"
func (n NodeIDNumeric) String() string {
	if n.NamespaceIndex > 0 {
		return fmt.Sprintf("ns=%d;i=%d", n.NamespaceIndex, n.ID)
	}
	return fmt.Sprintf("i=%d", n.ID)
}

// NodeIDString is a node id with a string identifier.
type NodeIDString struct {
	NamespaceIndex uint16
	ID             string
}

// NewNodeIDString constructs a new NodeID of string type.
func NewNodeIDString(ns uint16, id string) NodeIDString {
	return NodeIDString{ns, id}
}

func (n NodeIDString) nodeID() {}

// String returns a string representation, e.g. "ns=2;s=Demo"
func (n NodeIDString) String() string {
	if n.NamespaceIndex > 0 {
		return fmt.Sprintf("ns=%d;s=%s", n.NamespaceIndex, n.ID)
	}
	return fmt.Sprintf("s=%s", n.ID)
}

// NodeIDGUID is a node id with a guid identifier.
type NodeIDGUID struct {
	NamespaceIndex uint16
	ID             uuid.UUID
}

// NewNodeIDGUID constructs a new NodeID of GUID type.
func NewNodeIDGUID(ns uint16, id uuid.UUID) NodeIDGUID {
	return NodeIDGUID{ns, id}
}

func (n NodeIDGUID) nodeID() {}

// String returns a string representation, e.g. "ns=2;g=5ce9dbce-5d79-434c-9ac3-1cfba9a6e92c"
func (n NodeIDGUID) String() string {
	if n.NamespaceIndex > 0 {
		return fmt.Sprintf("ns=%d;g=%s", n.NamespaceIndex, n.ID)
	}
	return fmt.Sprintf("g=%s", n.ID)
}

// NodeIDOpaque is a node id with an opaque identifier.
type NodeIDOpaque struct {
	NamespaceIndex uint16
	ID             ByteString
}

// NewNodeIDOpaque constructs a new NodeID of opaque type.
func NewNodeIDOpaque(ns uint16, id ByteString) NodeIDOpaque {
	return NodeIDOpaque{ns, id}
}

func (n NodeIDOpaque) nodeID() {}

// String returns a string representation, e.g. "ns=2;b=YWJjZA=="
func (n NodeIDOpaque) String() string {
	if n.NamespaceIndex > 0 {
		return fmt.Sprintf("ns=%d;b=%s", n.NamespaceIndex, base64.StdEncoding.EncodeToString([]byte(n.ID)))
	}
	return fmt.Sprintf("b=%s", base64.StdEncoding.EncodeToString([]byte(n.ID)))
}

// ParseNodeID returns a NodeID from a string representation.
//   - ParseNodeID("i=85") // integer, assumes ns=0
//   - ParseNodeID("ns=2;s=Demo.Static.Scalar.Float") // string
//   - ParseNodeID("ns=2;g=5ce9dbce-5d79-434c-9ac3-1cfba9a6e92c") // guid
//   - ParseNodeID("ns=2;b=YWJjZA==") // opaque byte string
//
// Returns nil if the string is not a valid node id.
func ParseNodeID(s string) NodeID {
	var ns uint64
	var err error
	if strings.HasPrefix(s, "ns=") {
		var pos = strings.Index(s, ";")
		if pos == -1 {
			return nil
		}
		ns, err = strconv.ParseUint(s[3:pos], 10, 16)
		if err != nil {
			return nil
		}
		s = s[pos+1:]
	}
	switch {
	case strings.HasPrefix(s, "i="):
		var id, err = strconv.ParseUint(s[2:], 10, 32)
		if err != nil {
			return nil
		}
		return NewNodeIDNumeric(uint16(ns), uint32(id))
	case strings.HasPrefix(s, "s="):
		return NewNodeIDString(uint16(ns), s[2:])
	case strings.HasPrefix(s, "g="):
		var id, err = uuid.Parse(s[2:])
		if err != nil {
			return nil
		}
		return NewNodeIDGUID(uint16(ns), id)
	case strings.HasPrefix(s, "b="):
		var id, err = base64.StdEncoding.DecodeString(s[2:])
		if err != nil {
			return nil
		}
		return NewNodeIDOpaque(uint16(ns), ByteString(id))
	}
	return nil
}

// namespaceIndexOf returns the namespace index of a node id.
func namespaceIndexOf(n NodeID) uint16 {
	switch n := n.(type) {
	case NodeIDNumeric:
		return n.NamespaceIndex
	case NodeIDString:
		return n.NamespaceIndex
	case NodeIDGUID:
		return n.NamespaceIndex
	case NodeIDOpaque:
		return n.NamespaceIndex
	}
	return 0
}

// withNamespaceIndex returns a copy of the node id in another namespace.
func withNamespaceIndex(n NodeID, ns uint16) NodeID {
	switch n := n.(type) {
	case NodeIDNumeric:
		return NodeIDNumeric{ns, n.ID}
	case NodeIDString:
		return NodeIDString{ns, n.ID}
	case NodeIDGUID:
		return NodeIDGUID{ns, n.ID}
	case NodeIDOpaque:
		return NodeIDOpaque{ns, n.ID}
	}
	return n
}

// ExpandedNodeID identifies a remote Node.
type ExpandedNodeID struct {
	ServerIndex  uint32
	NamespaceURI string
	NodeID       NodeID
}

// NewExpandedNodeID casts an ExpandedNodeID from a NodeID.
func NewExpandedNodeID(nodeID NodeID) ExpandedNodeID {
	return ExpandedNodeID{0, "", nodeID}
}

// String returns a string representation, e.g. "nsu=http://www.unifiedautomation.com/DemoServer/;s=Demo"
func (n ExpandedNodeID) String() string {
	var b strings.Builder
	if n.ServerIndex > 0 {
		fmt.Fprintf(&b, "svr=%d;", n.ServerIndex)
	}
	if n.NamespaceURI != "" {
		fmt.Fprintf(&b, "nsu=%s;", n.NamespaceURI)
	}
	if n.NodeID != nil {
		b.WriteString(n.NodeID.String())
	}
	return b.String()
}

// ToNodeID converts ExpandedNodeID to NodeID by looking up the NamespaceURI and replacing it with the index.
func ToNodeID(n ExpandedNodeID, namespaceURIs []string) NodeID {
	if n.NamespaceURI == "" {
		return n.NodeID
	}
	for i, uri := range namespaceURIs {
		if uri == n.NamespaceURI {
			return withNamespaceIndex(n.NodeID, uint16(i))
		}
	}
	return nil
}

// ToExpandedNodeID converts the NodeID to an ExpandedNodeID.
func ToExpandedNodeID(n NodeID, namespaceURIs []string) ExpandedNodeID {
	ns := namespaceIndexOf(n)
	if ns > 0 && int(ns) < len(namespaceURIs) {
		return ExpandedNodeID{0, namespaceURIs[ns], withNamespaceIndex(n, 0)}
	}
	return ExpandedNodeID{0, "", n}
}
