// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import (
	"reflect"
	"sync"
)

// EncodingContext provides the tables and types needed to encode and decode messages.
type EncodingContext interface {
	// NamespaceURIs returns the namespace table of the server.
	NamespaceURIs() []string
	// ServerURIs returns the server table of the server.
	ServerURIs() []string
	// TypeRegistry returns the registry of structures that may appear in an ExtensionObject or message.
	TypeRegistry() *TypeRegistry
}

type encodingContext struct {
	namespaceURIs []string
	serverURIs    []string
	registry      *TypeRegistry
}

// NewEncodingContext returns an EncodingContext with the standard namespace table and a fresh registry of the standard types.
func NewEncodingContext() EncodingContext {
	return &encodingContext{
		namespaceURIs: []string{"http://opcfoundation.org/UA/"},
		serverURIs:    []string{},
		registry:      NewStandardTypeRegistry(),
	}
}

// NewEncodingContextWith returns an EncodingContext with the given tables and registry.
func NewEncodingContextWith(namespaceURIs, serverURIs []string, registry *TypeRegistry) EncodingContext {
	return &encodingContext{namespaceURIs, serverURIs, registry}
}

func (ec *encodingContext) NamespaceURIs() []string     { return ec.namespaceURIs }
func (ec *encodingContext) ServerURIs() []string        { return ec.serverURIs }
func (ec *encodingContext) TypeRegistry() *TypeRegistry { return ec.registry }

// TypeRegistry maps binary encoding ids to structure types. A registry is an explicit value;
// each codec owns one.
type TypeRegistry struct {
	sync.RWMutex
	types map[ExpandedNodeID]reflect.Type
	ids   map[reflect.Type]ExpandedNodeID
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types: make(map[ExpandedNodeID]reflect.Type),
		ids:   make(map[reflect.Type]ExpandedNodeID),
	}
}

// NewStandardTypeRegistry returns a registry holding the service messages and structures of namespace 0.
func NewStandardTypeRegistry() *TypeRegistry {
	r := NewTypeRegistry()
	for id, v := range standardTypes {
		r.Register(NewExpandedNodeID(NewNodeIDNumeric(0, id)), v)
	}
	return r
}

// Register adds a structure type with its binary encoding id. Pointers are registered by their element type.
func (r *TypeRegistry) Register(encodingID ExpandedNodeID, v any) {
	typ := reflect.TypeOf(v)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	r.Lock()
	r.types[encodingID] = typ
	r.ids[typ] = encodingID
	r.Unlock()
}

// FindType returns the structure type for a binary encoding id.
func (r *TypeRegistry) FindType(encodingID ExpandedNodeID) (reflect.Type, bool) {
	r.RLock()
	typ, ok := r.types[encodingID]
	r.RUnlock()
	return typ, ok
}

// FindEncodingID returns the binary encoding id for a structure type.
func (r *TypeRegistry) FindEncodingID(typ reflect.Type) (ExpandedNodeID, bool) {
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	r.RLock()
	id, ok := r.ids[typ]
	r.RUnlock()
	return id, ok
}
