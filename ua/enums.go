// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

// MessageSecurityMode enumeration.
type MessageSecurityMode int32

// MessageSecurityMode enumeration.
const (
	MessageSecurityModeInvalid        MessageSecurityMode = 0
	MessageSecurityModeNone           MessageSecurityMode = 1
	MessageSecurityModeSign           MessageSecurityMode = 2
	MessageSecurityModeSignAndEncrypt MessageSecurityMode = 3
)

// String returns enumeration value as string.
func (v MessageSecurityMode) String() string {
	switch v {
	case 0:
		return "Invalid"
	case 1:
		return "None"
	case 2:
		return "Sign"
	case 3:
		return "SignAndEncrypt"
	default:
		return ""
	}
}

// ParseMessageSecurityMode returns the mode for a name such as "SignAndEncrypt".
func ParseMessageSecurityMode(s string) MessageSecurityMode {
	switch s {
	case "None":
		return MessageSecurityModeNone
	case "Sign":
		return MessageSecurityModeSign
	case "SignAndEncrypt":
		return MessageSecurityModeSignAndEncrypt
	default:
		return MessageSecurityModeInvalid
	}
}

// SecurityTokenRequestType enumeration.
type SecurityTokenRequestType int32

// SecurityTokenRequestType enumeration.
const (
	SecurityTokenRequestTypeIssue SecurityTokenRequestType = 0
	SecurityTokenRequestTypeRenew SecurityTokenRequestType = 1
)

// ApplicationType enumeration.
type ApplicationType int32

// ApplicationType enumeration.
const (
	ApplicationTypeServer          ApplicationType = 0
	ApplicationTypeClient          ApplicationType = 1
	ApplicationTypeClientAndServer ApplicationType = 2
	ApplicationTypeDiscoveryServer ApplicationType = 3
)

// UserTokenType enumeration.
type UserTokenType int32

// UserTokenType enumeration.
const (
	UserTokenTypeAnonymous   UserTokenType = 0
	UserTokenTypeUserName    UserTokenType = 1
	UserTokenTypeCertificate UserTokenType = 2
	UserTokenTypeIssuedToken UserTokenType = 3
)

// TimestampsToReturn enumeration.
type TimestampsToReturn int32

// TimestampsToReturn enumeration.
const (
	TimestampsToReturnSource  TimestampsToReturn = 0
	TimestampsToReturnServer  TimestampsToReturn = 1
	TimestampsToReturnBoth    TimestampsToReturn = 2
	TimestampsToReturnNeither TimestampsToReturn = 3
)

// MonitoringMode enumeration.
type MonitoringMode int32

// MonitoringMode enumeration.
const (
	MonitoringModeDisabled  MonitoringMode = 0
	MonitoringModeSampling  MonitoringMode = 1
	MonitoringModeReporting MonitoringMode = 2
)

// DataChangeTrigger enumeration.
type DataChangeTrigger int32

// DataChangeTrigger enumeration.
const (
	DataChangeTriggerStatus               DataChangeTrigger = 0
	DataChangeTriggerStatusValue          DataChangeTrigger = 1
	DataChangeTriggerStatusValueTimestamp DataChangeTrigger = 2
)

// DeadbandType enumeration.
type DeadbandType int32

// DeadbandType enumeration.
const (
	DeadbandTypeNone     DeadbandType = 0
	DeadbandTypeAbsolute DeadbandType = 1
	DeadbandTypePercent  DeadbandType = 2
)

// BrowseDirection enumeration.
type BrowseDirection int32

// BrowseDirection enumeration.
const (
	BrowseDirectionForward BrowseDirection = 0
	BrowseDirectionInverse BrowseDirection = 1
	BrowseDirectionBoth    BrowseDirection = 2
)

// NodeClass enumeration.
type NodeClass int32

// NodeClass enumeration.
const (
	NodeClassUnspecified   NodeClass = 0
	NodeClassObject        NodeClass = 1
	NodeClassVariable      NodeClass = 2
	NodeClassMethod        NodeClass = 4
	NodeClassObjectType    NodeClass = 8
	NodeClassVariableType  NodeClass = 16
	NodeClassReferenceType NodeClass = 32
	NodeClassDataType      NodeClass = 64
	NodeClassView          NodeClass = 128
)

// BrowseResultMask enumeration.
type BrowseResultMask int32

// BrowseResultMask enumeration.
const (
	BrowseResultMaskNone            BrowseResultMask = 0
	BrowseResultMaskReferenceTypeID BrowseResultMask = 1
	BrowseResultMaskIsForward       BrowseResultMask = 2
	BrowseResultMaskNodeClass       BrowseResultMask = 4
	BrowseResultMaskBrowseName      BrowseResultMask = 8
	BrowseResultMaskDisplayName     BrowseResultMask = 16
	BrowseResultMaskTypeDefinition  BrowseResultMask = 32
	BrowseResultMaskAll             BrowseResultMask = 63
)

// ServerState enumeration.
type ServerState int32

// ServerState enumeration.
const (
	ServerStateRunning  ServerState = 0
	ServerStateFailed   ServerState = 1
	ServerStateShutdown ServerState = 4
)

// FilterOperator enumeration.
type FilterOperator int32

// FilterOperator enumeration.
const (
	FilterOperatorEquals FilterOperator = 1
	FilterOperatorOfType FilterOperator = 14
)

// AttributeIDs
const (
	AttributeIDNodeID        uint32 = 1
	AttributeIDNodeClass     uint32 = 2
	AttributeIDBrowseName    uint32 = 3
	AttributeIDDisplayName   uint32 = 4
	AttributeIDDescription   uint32 = 5
	AttributeIDEventNotifier uint32 = 12
	AttributeIDValue         uint32 = 13
	AttributeIDDataType      uint32 = 14
	AttributeIDValueRank     uint32 = 15
	AttributeIDAccessLevel   uint32 = 17
)

// AccessLevel flags.
const (
	AccessLevelsCurrentRead  byte = 1
	AccessLevelsCurrentWrite byte = 2
	AccessLevelsHistoryRead  byte = 4
)

// EventNotifier flags.
const (
	EventNotifierSubscribeToEvents byte = 1
)
