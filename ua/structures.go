// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import "time"

// ApplicationDescription structure.
type ApplicationDescription struct {
	ApplicationURI      string
	ProductURI          string
	ApplicationName     LocalizedText
	ApplicationType     ApplicationType
	GatewayServerURI    string
	DiscoveryProfileURI string
	DiscoveryURLs       []string
}

// UserTokenPolicy structure.
type UserTokenPolicy struct {
	PolicyID          string
	TokenType         UserTokenType
	IssuedTokenType   string
	IssuerEndpointURL string
	SecurityPolicyURI string
}

// EndpointDescription structure.
type EndpointDescription struct {
	EndpointURL         string
	Server              ApplicationDescription
	ServerCertificate   ByteString
	SecurityMode        MessageSecurityMode
	SecurityPolicyURI   string
	UserIdentityTokens  []UserTokenPolicy
	TransportProfileURI string
	SecurityLevel       byte
}

// ChannelSecurityToken structure.
type ChannelSecurityToken struct {
	ChannelID       uint32
	TokenID         uint32
	CreatedAt       time.Time
	RevisedLifetime uint32
}

// SignedSoftwareCertificate structure.
type SignedSoftwareCertificate struct {
	CertificateData ByteString
	Signature       ByteString
}

// SignatureData structure.
type SignatureData struct {
	Algorithm string
	Signature ByteString
}

// AnonymousIdentityToken structure.
type AnonymousIdentityToken struct {
	PolicyID string
}

// UserNameIdentityToken structure.
type UserNameIdentityToken struct {
	PolicyID            string
	UserName            string
	Password            ByteString
	EncryptionAlgorithm string
}

// ReadValueID structure.
type ReadValueID struct {
	NodeID       NodeID
	AttributeID  uint32
	IndexRange   string
	DataEncoding QualifiedName
}

// WriteValue structure.
type WriteValue struct {
	NodeID      NodeID
	AttributeID uint32
	IndexRange  string
	Value       DataValue
}

// ViewDescription structure.
type ViewDescription struct {
	ViewID      NodeID
	Timestamp   time.Time
	ViewVersion uint32
}

// BrowseDescription structure.
type BrowseDescription struct {
	NodeID          NodeID
	BrowseDirection BrowseDirection
	ReferenceTypeID NodeID
	IncludeSubtypes bool
	NodeClassMask   uint32
	ResultMask      uint32
}

// ReferenceDescription structure.
type ReferenceDescription struct {
	ReferenceTypeID NodeID
	IsForward       bool
	NodeID          ExpandedNodeID
	BrowseName      QualifiedName
	DisplayName     LocalizedText
	NodeClass       NodeClass
	TypeDefinition  ExpandedNodeID
}

// BrowseResult structure.
type BrowseResult struct {
	StatusCode        StatusCode
	ContinuationPoint ByteString
	References        []ReferenceDescription
}

// HistoryReadValueID structure.
type HistoryReadValueID struct {
	NodeID            NodeID
	IndexRange        string
	DataEncoding      QualifiedName
	ContinuationPoint ByteString
}

// HistoryReadResult structure.
type HistoryReadResult struct {
	StatusCode        StatusCode
	ContinuationPoint ByteString
	HistoryData       ExtensionObject
}

// ReadRawModifiedDetails structure.
type ReadRawModifiedDetails struct {
	IsReadModified   bool
	StartTime        time.Time
	EndTime          time.Time
	NumValuesPerNode uint32
	ReturnBounds     bool
}

// HistoryData structure.
type HistoryData struct {
	DataValues []DataValue
}

// CallMethodRequest structure.
type CallMethodRequest struct {
	ObjectID       NodeID
	MethodID       NodeID
	InputArguments []Variant
}

// CallMethodResult structure.
type CallMethodResult struct {
	StatusCode                   StatusCode
	InputArgumentResults         []StatusCode
	InputArgumentDiagnosticInfos []DiagnosticInfo
	OutputArguments              []Variant
}

// SubscriptionAcknowledgement structure.
type SubscriptionAcknowledgement struct {
	SubscriptionID uint32
	SequenceNumber uint32
}

// NotificationMessage structure.
type NotificationMessage struct {
	SequenceNumber   uint32
	PublishTime      time.Time
	NotificationData []ExtensionObject
}

// MonitoredItemNotification structure.
type MonitoredItemNotification struct {
	ClientHandle uint32
	Value        DataValue
}

// DataChangeNotification structure.
type DataChangeNotification struct {
	MonitoredItems  []MonitoredItemNotification
	DiagnosticInfos []DiagnosticInfo
}

// EventFieldList structure.
type EventFieldList struct {
	ClientHandle uint32
	EventFields  []Variant
}

// EventNotificationList structure.
type EventNotificationList struct {
	Events []EventFieldList
}

// StatusChangeNotification structure.
type StatusChangeNotification struct {
	Status         StatusCode
	DiagnosticInfo DiagnosticInfo
}

// MonitoringParameters structure.
type MonitoringParameters struct {
	ClientHandle     uint32
	SamplingInterval float64
	Filter           ExtensionObject
	QueueSize        uint32
	DiscardOldest    bool
}

// MonitoredItemCreateRequest structure.
type MonitoredItemCreateRequest struct {
	ItemToMonitor       ReadValueID
	MonitoringMode      MonitoringMode
	RequestedParameters MonitoringParameters
}

// MonitoredItemCreateResult structure.
type MonitoredItemCreateResult struct {
	StatusCode              StatusCode
	MonitoredItemID         uint32
	RevisedSamplingInterval float64
	RevisedQueueSize        uint32
	FilterResult            ExtensionObject
}

// MonitoredItemModifyRequest structure.
type MonitoredItemModifyRequest struct {
	MonitoredItemID     uint32
	RequestedParameters MonitoringParameters
}

// MonitoredItemModifyResult structure.
type MonitoredItemModifyResult struct {
	StatusCode              StatusCode
	RevisedSamplingInterval float64
	RevisedQueueSize        uint32
	FilterResult            ExtensionObject
}

// DataChangeFilter structure.
type DataChangeFilter struct {
	Trigger       DataChangeTrigger
	DeadbandType  uint32
	DeadbandValue float64
}

// SimpleAttributeOperand structure.
type SimpleAttributeOperand struct {
	TypeDefinitionID NodeID
	BrowsePath       []QualifiedName
	AttributeID      uint32
	IndexRange       string
}

// LiteralOperand structure.
type LiteralOperand struct {
	Value Variant
}

// ContentFilterElement structure.
type ContentFilterElement struct {
	FilterOperator FilterOperator
	FilterOperands []ExtensionObject
}

// ContentFilter structure.
type ContentFilter struct {
	Elements []ContentFilterElement
}

// EventFilter structure.
type EventFilter struct {
	SelectClauses []SimpleAttributeOperand
	WhereClause   ContentFilter
}

// ContentFilterElementResult structure.
type ContentFilterElementResult struct {
	StatusCode             StatusCode
	OperandStatusCodes     []StatusCode
	OperandDiagnosticInfos []DiagnosticInfo
}

// ContentFilterResult structure.
type ContentFilterResult struct {
	ElementResults         []ContentFilterElementResult
	ElementDiagnosticInfos []DiagnosticInfo
}

// EventFilterResult structure.
type EventFilterResult struct {
	SelectClauseResults         []StatusCode
	SelectClauseDiagnosticInfos []DiagnosticInfo
	WhereClauseResult           ContentFilterResult
}

// ParseBrowsePath returns a browse path of namespace 0 names from a string such as "EventId" or "ServerStatus/State".
func ParseBrowsePath(s string) []QualifiedName {
	if s == "" {
		return []QualifiedName{}
	}
	path := []QualifiedName{}
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '/' {
			path = append(path, QualifiedName{0, s[start:i]})
			start = i + 1
		}
	}
	return path
}
