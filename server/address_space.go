// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/awcullen/uastack/ua"
)

// AddressSpace provides the nodes served by the server.
type AddressSpace interface {
	// NamespaceURIs returns the namespace table. Index 0 is the OPC UA namespace.
	NamespaceURIs() []string
	// Read returns the value of an attribute of a node.
	Read(ctx context.Context, id ua.ReadValueID, timestampsToReturn ua.TimestampsToReturn) ua.DataValue
	// Write sets the value of an attribute of a node.
	Write(ctx context.Context, value ua.WriteValue) ua.StatusCode
	// Browse returns the references of a node that match the description.
	Browse(ctx context.Context, desc ua.BrowseDescription) ([]ua.ReferenceDescription, ua.StatusCode)
	// HistoryRead returns the stored values of a node.
	HistoryRead(ctx context.Context, details ua.ReadRawModifiedDetails, id ua.HistoryReadValueID, timestampsToReturn ua.TimestampsToReturn) ua.HistoryReadResult
	// Call invokes a method of an object.
	Call(ctx context.Context, req ua.CallMethodRequest) ua.CallMethodResult
}

// MethodFunc implements a method node.
type MethodFunc func(ctx context.Context, objectID ua.NodeID, inputArguments []ua.Variant) ([]ua.Variant, ua.StatusCode)

const (
	// the number of values kept for history read, per variable.
	defaultMaxHistory = 1000
	namespaceURIOpcUa = "http://opcfoundation.org/UA/"
)

type memoryReference struct {
	referenceTypeID ua.NodeID
	isForward       bool
	targetID        ua.NodeID
}

type memoryNode struct {
	nodeID         ua.NodeID
	nodeClass      ua.NodeClass
	browseName     ua.QualifiedName
	displayName    ua.LocalizedText
	description    ua.LocalizedText
	typeDefinition ua.NodeID
	references     []memoryReference
	eventNotifier  byte
	value          ua.DataValue
	valueFunc      func() ua.DataValue
	dataType       ua.NodeID
	valueRank      int32
	accessLevel    byte
	history        []ua.DataValue
	method         MethodFunc
}

// MemoryAddressSpace is an AddressSpace held in a map. It contains the Root, Objects and Server nodes,
// and the variables of the Server object that clients read at session start.
type MemoryAddressSpace struct {
	sync.RWMutex
	namespaceURIs []string
	nodes         map[ua.NodeID]*memoryNode
	maxHistory    int
	srv           *Server
}

// NewMemoryAddressSpace returns an address space with the standard nodes. Namespace 1 is the application uri.
func NewMemoryAddressSpace(applicationURI string) *MemoryAddressSpace {
	m := &MemoryAddressSpace{
		namespaceURIs: []string{namespaceURIOpcUa, applicationURI},
		nodes:         make(map[ua.NodeID]*memoryNode),
		maxHistory:    defaultMaxHistory,
	}
	m.addNode(&memoryNode{
		nodeID:         ua.ObjectIDRootFolder,
		nodeClass:      ua.NodeClassObject,
		browseName:     ua.NewQualifiedName(0, "Root"),
		displayName:    ua.NewLocalizedText("Root", ""),
		typeDefinition: ua.ObjectTypeIDFolderType,
	})
	m.addChild(ua.ObjectIDRootFolder, ua.ReferenceTypeIDOrganizes, &memoryNode{
		nodeID:         ua.ObjectIDObjectsFolder,
		nodeClass:      ua.NodeClassObject,
		browseName:     ua.NewQualifiedName(0, "Objects"),
		displayName:    ua.NewLocalizedText("Objects", ""),
		typeDefinition: ua.ObjectTypeIDFolderType,
	})
	m.addChild(ua.ObjectIDObjectsFolder, ua.ReferenceTypeIDOrganizes, &memoryNode{
		nodeID:         ua.ObjectIDServer,
		nodeClass:      ua.NodeClassObject,
		browseName:     ua.NewQualifiedName(0, "Server"),
		displayName:    ua.NewLocalizedText("Server", ""),
		typeDefinition: ua.ObjectTypeIDBaseObjectType,
		eventNotifier:  ua.EventNotifierSubscribeToEvents,
	})
	m.addChild(ua.ObjectIDServer, ua.ReferenceTypeIDHasProperty, &memoryNode{
		nodeID:         ua.VariableIDServerNamespaceArray,
		nodeClass:      ua.NodeClassVariable,
		browseName:     ua.NewQualifiedName(0, "NamespaceArray"),
		displayName:    ua.NewLocalizedText("NamespaceArray", ""),
		typeDefinition: ua.VariableTypeIDPropertyType,
		dataType:       ua.DataTypeIDString,
		valueRank:      1,
		accessLevel:    ua.AccessLevelsCurrentRead,
		valueFunc: func() ua.DataValue {
			return ua.NewDataValue(m.NamespaceURIs(), ua.Good, time.Time{}, 0, time.Now(), 0)
		},
	})
	m.addChild(ua.ObjectIDServer, ua.ReferenceTypeIDHasProperty, &memoryNode{
		nodeID:         ua.VariableIDServerServerArray,
		nodeClass:      ua.NodeClassVariable,
		browseName:     ua.NewQualifiedName(0, "ServerArray"),
		displayName:    ua.NewLocalizedText("ServerArray", ""),
		typeDefinition: ua.VariableTypeIDPropertyType,
		dataType:       ua.DataTypeIDString,
		valueRank:      1,
		accessLevel:    ua.AccessLevelsCurrentRead,
		valueFunc: func() ua.DataValue {
			return ua.NewDataValue(m.serverURIs(applicationURI), ua.Good, time.Time{}, 0, time.Now(), 0)
		},
	})
	m.addChild(ua.ObjectIDServer, ua.ReferenceTypeIDHasComponent, &memoryNode{
		nodeID:         ua.VariableIDServerServerStatusCurrentTime,
		nodeClass:      ua.NodeClassVariable,
		browseName:     ua.NewQualifiedName(0, "CurrentTime"),
		displayName:    ua.NewLocalizedText("CurrentTime", ""),
		typeDefinition: ua.VariableTypeIDBaseDataVariableType,
		dataType:       ua.DataTypeIDDateTime,
		valueRank:      -1,
		accessLevel:    ua.AccessLevelsCurrentRead,
		valueFunc: func() ua.DataValue {
			now := time.Now()
			return ua.NewDataValue(now, ua.Good, now, 0, now, 0)
		},
	})
	m.addChild(ua.ObjectIDServer, ua.ReferenceTypeIDHasComponent, &memoryNode{
		nodeID:         ua.VariableIDServerServerStatusState,
		nodeClass:      ua.NodeClassVariable,
		browseName:     ua.NewQualifiedName(0, "State"),
		displayName:    ua.NewLocalizedText("State", ""),
		typeDefinition: ua.VariableTypeIDBaseDataVariableType,
		dataType:       ua.DataTypeIDInt32,
		valueRank:      -1,
		accessLevel:    ua.AccessLevelsCurrentRead,
		valueFunc: func() ua.DataValue {
			return ua.NewDataValue(int32(m.serverState()), ua.Good, time.Time{}, 0, time.Now(), 0)
		},
	})
	return m
}

// bindServer links the Server variables to the running server.
func (m *MemoryAddressSpace) bindServer(srv *Server) {
	m.Lock()
	defer m.Unlock()
	m.srv = srv
}

func (m *MemoryAddressSpace) serverState() ua.ServerState {
	m.RLock()
	srv := m.srv
	m.RUnlock()
	if srv == nil {
		return ua.ServerStateRunning
	}
	return srv.State()
}

func (m *MemoryAddressSpace) serverURIs(applicationURI string) []string {
	m.RLock()
	srv := m.srv
	m.RUnlock()
	if srv == nil {
		return []string{applicationURI}
	}
	return srv.ServerURIs()
}

// NamespaceURIs returns the namespace table.
func (m *MemoryAddressSpace) NamespaceURIs() []string {
	m.RLock()
	defer m.RUnlock()
	return append([]string(nil), m.namespaceURIs...)
}

// AddNamespace adds a namespace uri, returning its index.
func (m *MemoryAddressSpace) AddNamespace(uri string) uint16 {
	m.Lock()
	defer m.Unlock()
	for i, u := range m.namespaceURIs {
		if u == uri {
			return uint16(i)
		}
	}
	m.namespaceURIs = append(m.namespaceURIs, uri)
	return uint16(len(m.namespaceURIs) - 1)
}

func (m *MemoryAddressSpace) addNode(n *memoryNode) {
	m.nodes[n.nodeID] = n
	if n.typeDefinition != nil {
		n.references = append(n.references, memoryReference{ua.ReferenceTypeIDHasTypeDefinition, true, n.typeDefinition})
	}
}

func (m *MemoryAddressSpace) addChild(parentID, referenceTypeID ua.NodeID, n *memoryNode) error {
	parent, ok := m.nodes[parentID]
	if !ok {
		return ua.BadNodeIDUnknown
	}
	if _, ok := m.nodes[n.nodeID]; ok {
		return ua.BadNodeIDInvalid
	}
	m.addNode(n)
	parent.references = append(parent.references, memoryReference{referenceTypeID, true, n.nodeID})
	n.references = append(n.references, memoryReference{referenceTypeID, false, parentID})
	return nil
}

// AddFolder adds a folder organized by the parent.
func (m *MemoryAddressSpace) AddFolder(parentID, nodeID ua.NodeID, browseName ua.QualifiedName) error {
	m.Lock()
	defer m.Unlock()
	return m.addChild(parentID, ua.ReferenceTypeIDOrganizes, &memoryNode{
		nodeID:         nodeID,
		nodeClass:      ua.NodeClassObject,
		browseName:     browseName,
		displayName:    ua.NewLocalizedText(browseName.Name, ""),
		typeDefinition: ua.ObjectTypeIDFolderType,
	})
}

// AddObject adds an object that is a component of the parent. Objects with SubscribeToEvents in the
// eventNotifier may be monitored for events.
func (m *MemoryAddressSpace) AddObject(parentID, nodeID ua.NodeID, browseName ua.QualifiedName, eventNotifier byte) error {
	m.Lock()
	defer m.Unlock()
	return m.addChild(parentID, hierarchicalReferenceFor(m.nodes[parentID]), &memoryNode{
		nodeID:         nodeID,
		nodeClass:      ua.NodeClassObject,
		browseName:     browseName,
		displayName:    ua.NewLocalizedText(browseName.Name, ""),
		typeDefinition: ua.ObjectTypeIDBaseObjectType,
		eventNotifier:  eventNotifier,
	})
}

// AddVariable adds a variable with an initial value. Variables with AccessLevelsHistoryRead keep
// their written values for history read.
func (m *MemoryAddressSpace) AddVariable(parentID, nodeID ua.NodeID, browseName ua.QualifiedName, value ua.Variant, dataType ua.NodeID, accessLevel byte) error {
	now := time.Now()
	n := &memoryNode{
		nodeID:         nodeID,
		nodeClass:      ua.NodeClassVariable,
		browseName:     browseName,
		displayName:    ua.NewLocalizedText(browseName.Name, ""),
		typeDefinition: ua.VariableTypeIDBaseDataVariableType,
		value:          ua.NewDataValue(value, ua.Good, now, 0, now, 0),
		dataType:       dataType,
		valueRank:      -1,
		accessLevel:    accessLevel,
	}
	if reflect.TypeOf(value) != nil && reflect.TypeOf(value).Kind() == reflect.Slice {
		n.valueRank = 1
	}
	if accessLevel&ua.AccessLevelsHistoryRead != 0 {
		n.history = append(n.history, n.value)
	}
	m.Lock()
	defer m.Unlock()
	return m.addChild(parentID, hierarchicalReferenceFor(m.nodes[parentID]), n)
}

// AddMethod adds a method that is a component of the parent object.
func (m *MemoryAddressSpace) AddMethod(parentID, nodeID ua.NodeID, browseName ua.QualifiedName, f MethodFunc) error {
	m.Lock()
	defer m.Unlock()
	return m.addChild(parentID, ua.ReferenceTypeIDHasComponent, &memoryNode{
		nodeID:      nodeID,
		nodeClass:   ua.NodeClassMethod,
		browseName:  browseName,
		displayName: ua.NewLocalizedText(browseName.Name, ""),
		method:      f,
	})
}

// hierarchicalReferenceFor returns Organizes for children of folders and HasComponent otherwise.
func hierarchicalReferenceFor(parent *memoryNode) ua.NodeID {
	if parent != nil && parent.typeDefinition == ua.ObjectTypeIDFolderType {
		return ua.ReferenceTypeIDOrganizes
	}
	return ua.ReferenceTypeIDHasComponent
}

// SetValue sets the value of a variable, as a device would.
func (m *MemoryAddressSpace) SetValue(nodeID ua.NodeID, value ua.DataValue) error {
	m.Lock()
	defer m.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok || n.nodeClass != ua.NodeClassVariable {
		return ua.BadNodeIDUnknown
	}
	m.setValue(n, value)
	return nil
}

func (m *MemoryAddressSpace) setValue(n *memoryNode, value ua.DataValue) {
	now := time.Now()
	if value.SourceTimestamp.IsZero() {
		value.SourceTimestamp = now
	}
	value.ServerTimestamp = now
	n.value = value
	if n.accessLevel&ua.AccessLevelsHistoryRead != 0 {
		n.history = insertHistory(n.history, value)
		if over := len(n.history) - m.maxHistory; over > 0 {
			n.history = append(n.history[:0], n.history[over:]...)
		}
	}
}

// insertHistory inserts the value after every stored value with the same or an earlier source timestamp.
func insertHistory(history []ua.DataValue, value ua.DataValue) []ua.DataValue {
	i := sort.Search(len(history), func(i int) bool {
		return history[i].SourceTimestamp.After(value.SourceTimestamp)
	})
	history = append(history, ua.DataValue{})
	copy(history[i+1:], history[i:])
	history[i] = value
	return history
}

// Read returns the value of an attribute of a node.
func (m *MemoryAddressSpace) Read(ctx context.Context, id ua.ReadValueID, timestampsToReturn ua.TimestampsToReturn) ua.DataValue {
	if id.IndexRange != "" {
		return ua.NewDataValue(nil, ua.BadIndexRangeInvalid, time.Time{}, 0, time.Now(), 0)
	}
	if id.DataEncoding.Name != "" {
		return ua.NewDataValue(nil, ua.BadDataEncodingUnsupported, time.Time{}, 0, time.Now(), 0)
	}
	m.RLock()
	node, ok := m.nodes[id.NodeID]
	var n memoryNode
	if ok {
		n = *node
	}
	m.RUnlock()
	if !ok {
		return ua.NewDataValue(nil, ua.BadNodeIDUnknown, time.Time{}, 0, time.Now(), 0)
	}
	now := time.Now()
	attr := func(v ua.Variant) ua.DataValue {
		return ua.NewDataValue(v, ua.Good, time.Time{}, 0, now, 0)
	}
	switch id.AttributeID {
	case ua.AttributeIDNodeID:
		return attr(n.nodeID)
	case ua.AttributeIDNodeClass:
		return attr(int32(n.nodeClass))
	case ua.AttributeIDBrowseName:
		return attr(n.browseName)
	case ua.AttributeIDDisplayName:
		return attr(n.displayName)
	case ua.AttributeIDDescription:
		return attr(n.description)
	case ua.AttributeIDEventNotifier:
		if n.nodeClass != ua.NodeClassObject {
			break
		}
		return attr(n.eventNotifier)
	case ua.AttributeIDDataType:
		if n.nodeClass != ua.NodeClassVariable {
			break
		}
		return attr(n.dataType)
	case ua.AttributeIDValueRank:
		if n.nodeClass != ua.NodeClassVariable {
			break
		}
		return attr(n.valueRank)
	case ua.AttributeIDAccessLevel:
		if n.nodeClass != ua.NodeClassVariable {
			break
		}
		return attr(n.accessLevel)
	case ua.AttributeIDValue:
		if n.nodeClass != ua.NodeClassVariable {
			break
		}
		if n.accessLevel&ua.AccessLevelsCurrentRead == 0 {
			return ua.NewDataValue(nil, ua.BadNotReadable, time.Time{}, 0, now, 0)
		}
		v := n.value
		if n.valueFunc != nil {
			v = n.valueFunc()
		}
		return filterTimestamps(v, timestampsToReturn)
	}
	return ua.NewDataValue(nil, ua.BadAttributeIDInvalid, time.Time{}, 0, now, 0)
}

// filterTimestamps clears the timestamps the client did not ask for.
func filterTimestamps(v ua.DataValue, timestampsToReturn ua.TimestampsToReturn) ua.DataValue {
	switch timestampsToReturn {
	case ua.TimestampsToReturnSource:
		v.ServerTimestamp = time.Time{}
		v.ServerPicoseconds = 0
	case ua.TimestampsToReturnServer:
		v.SourceTimestamp = time.Time{}
		v.SourcePicoseconds = 0
	case ua.TimestampsToReturnNeither:
		v.ServerTimestamp = time.Time{}
		v.ServerPicoseconds = 0
		v.SourceTimestamp = time.Time{}
		v.SourcePicoseconds = 0
	}
	return v
}

// Write sets the value attribute of a variable.
func (m *MemoryAddressSpace) Write(ctx context.Context, value ua.WriteValue) ua.StatusCode {
	m.Lock()
	defer m.Unlock()
	n, ok := m.nodes[value.NodeID]
	if !ok {
		return ua.BadNodeIDUnknown
	}
	if value.AttributeID != ua.AttributeIDValue {
		if value.AttributeID == 0 || value.AttributeID > ua.AttributeIDAccessLevel {
			return ua.BadAttributeIDInvalid
		}
		return ua.BadNotWritable
	}
	if n.nodeClass != ua.NodeClassVariable {
		return ua.BadAttributeIDInvalid
	}
	if value.IndexRange != "" {
		return ua.BadIndexRangeInvalid
	}
	if n.accessLevel&ua.AccessLevelsCurrentWrite == 0 || n.valueFunc != nil {
		return ua.BadNotWritable
	}
	if old := n.value.Value; old != nil && value.Value.Value != nil && reflect.TypeOf(old) != reflect.TypeOf(value.Value.Value) {
		return ua.BadTypeMismatch
	}
	m.setValue(n, value.Value)
	return ua.Good
}

// Browse returns the references of a node.
func (m *MemoryAddressSpace) Browse(ctx context.Context, desc ua.BrowseDescription) ([]ua.ReferenceDescription, ua.StatusCode) {
	if desc.BrowseDirection < ua.BrowseDirectionForward || desc.BrowseDirection > ua.BrowseDirectionBoth {
		return nil, ua.BadBrowseDirectionInvalid
	}
	m.RLock()
	defer m.RUnlock()
	n, ok := m.nodes[desc.NodeID]
	if !ok {
		return nil, ua.BadNodeIDUnknown
	}
	refs := []ua.ReferenceDescription{}
	for _, r := range n.references {
		if r.isForward && desc.BrowseDirection == ua.BrowseDirectionInverse {
			continue
		}
		if !r.isForward && desc.BrowseDirection == ua.BrowseDirectionForward {
			continue
		}
		if !referenceTypeMatches(desc.ReferenceTypeID, desc.IncludeSubtypes, r.referenceTypeID) {
			continue
		}
		target, ok := m.nodes[r.targetID]
		if !ok {
			continue
		}
		if desc.NodeClassMask != 0 && desc.NodeClassMask&uint32(target.nodeClass) == 0 {
			continue
		}
		refs = append(refs, referenceDescription(r, target, desc.ResultMask))
	}
	return refs, ua.Good
}

// referenceTypeMatches compares the reference type of a reference with the requested type.
// HierarchicalReferences has the subtypes Organizes, HasComponent and HasProperty.
func referenceTypeMatches(requested ua.NodeID, includeSubtypes bool, actual ua.NodeID) bool {
	if requested == nil || requested == ua.NodeID(ua.NewNodeIDNumeric(0, 0)) {
		return true
	}
	if requested == actual {
		return true
	}
	if includeSubtypes && requested == ua.ReferenceTypeIDHierarchicalReferences {
		return actual == ua.ReferenceTypeIDOrganizes || actual == ua.ReferenceTypeIDHasComponent || actual == ua.ReferenceTypeIDHasProperty
	}
	return false
}

func referenceDescription(r memoryReference, target *memoryNode, resultMask uint32) ua.ReferenceDescription {
	rd := ua.ReferenceDescription{NodeID: ua.NewExpandedNodeID(target.nodeID)}
	mask := ua.BrowseResultMask(resultMask)
	if mask&ua.BrowseResultMaskReferenceTypeID != 0 {
		rd.ReferenceTypeID = r.referenceTypeID
	}
	if mask&ua.BrowseResultMaskIsForward != 0 {
		rd.IsForward = r.isForward
	}
	if mask&ua.BrowseResultMaskNodeClass != 0 {
		rd.NodeClass = target.nodeClass
	}
	if mask&ua.BrowseResultMaskBrowseName != 0 {
		rd.BrowseName = target.browseName
	}
	if mask&ua.BrowseResultMaskDisplayName != 0 {
		rd.DisplayName = target.displayName
	}
	if mask&ua.BrowseResultMaskTypeDefinition != 0 && target.typeDefinition != nil {
		rd.TypeDefinition = ua.NewExpandedNodeID(target.typeDefinition)
	}
	return rd
}

// HistoryRead returns the stored values of a variable with source timestamps in [StartTime, EndTime).
// A zero EndTime reads to the latest value.
func (m *MemoryAddressSpace) HistoryRead(ctx context.Context, details ua.ReadRawModifiedDetails, id ua.HistoryReadValueID, timestampsToReturn ua.TimestampsToReturn) ua.HistoryReadResult {
	if details.IsReadModified {
		return ua.HistoryReadResult{StatusCode: ua.BadHistoryOperationUnsupported}
	}
	if id.ContinuationPoint != "" {
		return ua.HistoryReadResult{StatusCode: ua.BadContinuationPointInvalid}
	}
	m.RLock()
	defer m.RUnlock()
	n, ok := m.nodes[id.NodeID]
	if !ok {
		return ua.HistoryReadResult{StatusCode: ua.BadNodeIDUnknown}
	}
	if n.nodeClass != ua.NodeClassVariable || n.accessLevel&ua.AccessLevelsHistoryRead == 0 {
		return ua.HistoryReadResult{StatusCode: ua.BadNotReadable}
	}
	values := []ua.DataValue{}
	for _, v := range n.history {
		if v.SourceTimestamp.Before(details.StartTime) {
			continue
		}
		if !details.EndTime.IsZero() && !v.SourceTimestamp.Before(details.EndTime) {
			continue
		}
		values = append(values, filterTimestamps(v, timestampsToReturn))
		if details.NumValuesPerNode > 0 && len(values) == int(details.NumValuesPerNode) {
			break
		}
	}
	return ua.HistoryReadResult{StatusCode: ua.Good, HistoryData: ua.HistoryData{DataValues: values}}
}

// Call invokes a method.
func (m *MemoryAddressSpace) Call(ctx context.Context, req ua.CallMethodRequest) ua.CallMethodResult {
	m.RLock()
	obj, ok := m.nodes[req.ObjectID]
	if !ok || obj.nodeClass != ua.NodeClassObject {
		m.RUnlock()
		return ua.CallMethodResult{StatusCode: ua.BadNodeIDUnknown}
	}
	n, ok := m.nodes[req.MethodID]
	if !ok || n.method == nil {
		m.RUnlock()
		return ua.CallMethodResult{StatusCode: ua.BadMethodInvalid}
	}
	f := n.method
	m.RUnlock()
	outputs, status := f(ctx, req.ObjectID, req.InputArguments)
	return ua.CallMethodResult{StatusCode: status, OutputArguments: outputs}
}
