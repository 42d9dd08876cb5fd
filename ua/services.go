// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import "time"

// ServiceRequest is a request of a service.
type ServiceRequest interface {
	Header() *RequestHeader
}

// ServiceResponse is a response of a service.
type ServiceResponse interface {
	Header() *ResponseHeader
}

// RequestHeader structure.
type RequestHeader struct {
	AuthenticationToken NodeID
	Timestamp           time.Time
	RequestHandle       uint32
	ReturnDiagnostics   uint32
	AuditEntryID        string
	TimeoutHint         uint32
	AdditionalHeader    ExtensionObject
}

// ResponseHeader structure.
type ResponseHeader struct {
	Timestamp          time.Time
	RequestHandle      uint32
	ServiceResult      StatusCode
	ServiceDiagnostics DiagnosticInfo
	StringTable        []string
	AdditionalHeader   ExtensionObject
}

// NewResponseHeader returns a header answering the request with the given result.
func NewResponseHeader(timestamp time.Time, requestHandle uint32, result StatusCode) ResponseHeader {
	return ResponseHeader{timestamp, requestHandle, result, NilDiagnosticInfo, nil, nil}
}

// ServiceFault is the response to a request that failed.
type ServiceFault struct {
	ResponseHeader ResponseHeader
}

// Header returns the response header.
func (r *ServiceFault) Header() *ResponseHeader { return &r.ResponseHeader }

// OpenSecureChannelRequest structure.
type OpenSecureChannelRequest struct {
	RequestHeader         RequestHeader
	ClientProtocolVersion uint32
	RequestType           SecurityTokenRequestType
	SecurityMode          MessageSecurityMode
	ClientNonce           ByteString
	RequestedLifetime     uint32
}

// Header returns the request header.
func (r *OpenSecureChannelRequest) Header() *RequestHeader { return &r.RequestHeader }

// OpenSecureChannelResponse structure.
type OpenSecureChannelResponse struct {
	ResponseHeader        ResponseHeader
	ServerProtocolVersion uint32
	SecurityToken         ChannelSecurityToken
	ServerNonce           ByteString
}

// Header returns the response header.
func (r *OpenSecureChannelResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// CloseSecureChannelRequest structure.
type CloseSecureChannelRequest struct {
	RequestHeader RequestHeader
}

// Header returns the request header.
func (r *CloseSecureChannelRequest) Header() *RequestHeader { return &r.RequestHeader }

// CloseSecureChannelResponse structure.
type CloseSecureChannelResponse struct {
	ResponseHeader ResponseHeader
}

// Header returns the response header.
func (r *CloseSecureChannelResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// FindServersRequest structure.
type FindServersRequest struct {
	RequestHeader RequestHeader
	EndpointURL   string
	LocaleIDs     []string
	ServerURIs    []string
}

// Header returns the request header.
func (r *FindServersRequest) Header() *RequestHeader { return &r.RequestHeader }

// FindServersResponse structure.
type FindServersResponse struct {
	ResponseHeader ResponseHeader
	Servers        []ApplicationDescription
}

// Header returns the response header.
func (r *FindServersResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// GetEndpointsRequest structure.
type GetEndpointsRequest struct {
	RequestHeader RequestHeader
	EndpointURL   string
	LocaleIDs     []string
	ProfileURIs   []string
}

// Header returns the request header.
func (r *GetEndpointsRequest) Header() *RequestHeader { return &r.RequestHeader }

// GetEndpointsResponse structure.
type GetEndpointsResponse struct {
	ResponseHeader ResponseHeader
	Endpoints      []EndpointDescription
}

// Header returns the response header.
func (r *GetEndpointsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// CreateSessionRequest structure.
type CreateSessionRequest struct {
	RequestHeader           RequestHeader
	ClientDescription       ApplicationDescription
	ServerURI               string
	EndpointURL             string
	SessionName             string
	ClientNonce             ByteString
	ClientCertificate       ByteString
	RequestedSessionTimeout float64
	MaxResponseMessageSize  uint32
}

// Header returns the request header.
func (r *CreateSessionRequest) Header() *RequestHeader { return &r.RequestHeader }

// CreateSessionResponse structure.
type CreateSessionResponse struct {
	ResponseHeader             ResponseHeader
	SessionID                  NodeID
	AuthenticationToken        NodeID
	RevisedSessionTimeout      float64
	ServerNonce                ByteString
	ServerCertificate          ByteString
	ServerEndpoints            []EndpointDescription
	ServerSoftwareCertificates []SignedSoftwareCertificate
	ServerSignature            SignatureData
	MaxRequestMessageSize      uint32
}

// Header returns the response header.
func (r *CreateSessionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// ActivateSessionRequest structure.
type ActivateSessionRequest struct {
	RequestHeader              RequestHeader
	ClientSignature            SignatureData
	ClientSoftwareCertificates []SignedSoftwareCertificate
	LocaleIDs                  []string
	UserIdentityToken          ExtensionObject
	UserTokenSignature         SignatureData
}

// Header returns the request header.
func (r *ActivateSessionRequest) Header() *RequestHeader { return &r.RequestHeader }

// ActivateSessionResponse structure.
type ActivateSessionResponse struct {
	ResponseHeader  ResponseHeader
	ServerNonce     ByteString
	Results         []StatusCode
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *ActivateSessionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// CloseSessionRequest structure.
type CloseSessionRequest struct {
	RequestHeader       RequestHeader
	DeleteSubscriptions bool
}

// Header returns the request header.
func (r *CloseSessionRequest) Header() *RequestHeader { return &r.RequestHeader }

// CloseSessionResponse structure.
type CloseSessionResponse struct {
	ResponseHeader ResponseHeader
}

// Header returns the response header.
func (r *CloseSessionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// BrowseRequest structure.
type BrowseRequest struct {
	RequestHeader                 RequestHeader
	View                          ViewDescription
	RequestedMaxReferencesPerNode uint32
	NodesToBrowse                 []BrowseDescription
}

// Header returns the request header.
func (r *BrowseRequest) Header() *RequestHeader { return &r.RequestHeader }

// BrowseResponse structure.
type BrowseResponse struct {
	ResponseHeader  ResponseHeader
	Results         []BrowseResult
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *BrowseResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// BrowseNextRequest structure.
type BrowseNextRequest struct {
	RequestHeader             RequestHeader
	ReleaseContinuationPoints bool
	ContinuationPoints        []ByteString
}

// Header returns the request header.
func (r *BrowseNextRequest) Header() *RequestHeader { return &r.RequestHeader }

// BrowseNextResponse structure.
type BrowseNextResponse struct {
	ResponseHeader  ResponseHeader
	Results         []BrowseResult
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *BrowseNextResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// ReadRequest structure.
type ReadRequest struct {
	RequestHeader      RequestHeader
	MaxAge             float64
	TimestampsToReturn TimestampsToReturn
	NodesToRead        []ReadValueID
}

// Header returns the request header.
func (r *ReadRequest) Header() *RequestHeader { return &r.RequestHeader }

// ReadResponse structure.
type ReadResponse struct {
	ResponseHeader  ResponseHeader
	Results         []DataValue
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *ReadResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// HistoryReadRequest structure.
type HistoryReadRequest struct {
	RequestHeader             RequestHeader
	HistoryReadDetails        ExtensionObject
	TimestampsToReturn        TimestampsToReturn
	ReleaseContinuationPoints bool
	NodesToRead               []HistoryReadValueID
}

// Header returns the request header.
func (r *HistoryReadRequest) Header() *RequestHeader { return &r.RequestHeader }

// HistoryReadResponse structure.
type HistoryReadResponse struct {
	ResponseHeader  ResponseHeader
	Results         []HistoryReadResult
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *HistoryReadResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// WriteRequest structure.
type WriteRequest struct {
	RequestHeader RequestHeader
	NodesToWrite  []WriteValue
}

// Header returns the request header.
func (r *WriteRequest) Header() *RequestHeader { return &r.RequestHeader }

// WriteResponse structure.
type WriteResponse struct {
	ResponseHeader  ResponseHeader
	Results         []StatusCode
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *WriteResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// CallRequest structure.
type CallRequest struct {
	RequestHeader RequestHeader
	MethodsToCall []CallMethodRequest
}

// Header returns the request header.
func (r *CallRequest) Header() *RequestHeader { return &r.RequestHeader }

// CallResponse structure.
type CallResponse struct {
	ResponseHeader  ResponseHeader
	Results         []CallMethodResult
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *CallResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// CreateMonitoredItemsRequest structure.
type CreateMonitoredItemsRequest struct {
	RequestHeader      RequestHeader
	SubscriptionID     uint32
	TimestampsToReturn TimestampsToReturn
	ItemsToCreate      []MonitoredItemCreateRequest
}

// Header returns the request header.
func (r *CreateMonitoredItemsRequest) Header() *RequestHeader { return &r.RequestHeader }

// CreateMonitoredItemsResponse structure.
type CreateMonitoredItemsResponse struct {
	ResponseHeader  ResponseHeader
	Results         []MonitoredItemCreateResult
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *CreateMonitoredItemsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// ModifyMonitoredItemsRequest structure.
type ModifyMonitoredItemsRequest struct {
	RequestHeader      RequestHeader
	SubscriptionID     uint32
	TimestampsToReturn TimestampsToReturn
	ItemsToModify      []MonitoredItemModifyRequest
}

// Header returns the request header.
func (r *ModifyMonitoredItemsRequest) Header() *RequestHeader { return &r.RequestHeader }

// ModifyMonitoredItemsResponse structure.
type ModifyMonitoredItemsResponse struct {
	ResponseHeader  ResponseHeader
	Results         []MonitoredItemModifyResult
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *ModifyMonitoredItemsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// SetMonitoringModeRequest structure.
type SetMonitoringModeRequest struct {
	RequestHeader    RequestHeader
	SubscriptionID   uint32
	MonitoringMode   MonitoringMode
	MonitoredItemIDs []uint32
}

// Header returns the request header.
func (r *SetMonitoringModeRequest) Header() *RequestHeader { return &r.RequestHeader }

// SetMonitoringModeResponse structure.
type SetMonitoringModeResponse struct {
	ResponseHeader  ResponseHeader
	Results         []StatusCode
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *SetMonitoringModeResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// DeleteMonitoredItemsRequest structure.
type DeleteMonitoredItemsRequest struct {
	RequestHeader    RequestHeader
	SubscriptionID   uint32
	MonitoredItemIDs []uint32
}

// Header returns the request header.
func (r *DeleteMonitoredItemsRequest) Header() *RequestHeader { return &r.RequestHeader }

// DeleteMonitoredItemsResponse structure.
type DeleteMonitoredItemsResponse struct {
	ResponseHeader  ResponseHeader
	Results         []StatusCode
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *DeleteMonitoredItemsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// CreateSubscriptionRequest structure.
type CreateSubscriptionRequest struct {
	RequestHeader               RequestHeader
	RequestedPublishingInterval float64
	RequestedLifetimeCount      uint32
	RequestedMaxKeepAliveCount  uint32
	MaxNotificationsPerPublish  uint32
	PublishingEnabled           bool
	Priority                    byte
}

// Header returns the request header.
func (r *CreateSubscriptionRequest) Header() *RequestHeader { return &r.RequestHeader }

// CreateSubscriptionResponse structure.
type CreateSubscriptionResponse struct {
	ResponseHeader            ResponseHeader
	SubscriptionID            uint32
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

// Header returns the response header.
func (r *CreateSubscriptionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// ModifySubscriptionRequest structure.
type ModifySubscriptionRequest struct {
	RequestHeader               RequestHeader
	SubscriptionID              uint32
	RequestedPublishingInterval float64
	RequestedLifetimeCount      uint32
	RequestedMaxKeepAliveCount  uint32
	MaxNotificationsPerPublish  uint32
	Priority                    byte
}

// Header returns the request header.
func (r *ModifySubscriptionRequest) Header() *RequestHeader { return &r.RequestHeader }

// ModifySubscriptionResponse structure.
type ModifySubscriptionResponse struct {
	ResponseHeader            ResponseHeader
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

// Header returns the response header.
func (r *ModifySubscriptionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// SetPublishingModeRequest structure.
type SetPublishingModeRequest struct {
	RequestHeader     RequestHeader
	PublishingEnabled bool
	SubscriptionIDs   []uint32
}

// Header returns the request header.
func (r *SetPublishingModeRequest) Header() *RequestHeader { return &r.RequestHeader }

// SetPublishingModeResponse structure.
type SetPublishingModeResponse struct {
	ResponseHeader  ResponseHeader
	Results         []StatusCode
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *SetPublishingModeResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// PublishRequest structure.
type PublishRequest struct {
	RequestHeader                RequestHeader
	SubscriptionAcknowledgements []SubscriptionAcknowledgement
}

// Header returns the request header.
func (r *PublishRequest) Header() *RequestHeader { return &r.RequestHeader }

// PublishResponse structure.
type PublishResponse struct {
	ResponseHeader           ResponseHeader
	SubscriptionID           uint32
	AvailableSequenceNumbers []uint32
	MoreNotifications        bool
	NotificationMessage      NotificationMessage
	Results                  []StatusCode
	DiagnosticInfos          []DiagnosticInfo
}

// Header returns the response header.
func (r *PublishResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// RepublishRequest structure.
type RepublishRequest struct {
	RequestHeader            RequestHeader
	SubscriptionID           uint32
	RetransmitSequenceNumber uint32
}

// Header returns the request header.
func (r *RepublishRequest) Header() *RequestHeader { return &r.RequestHeader }

// RepublishResponse structure.
type RepublishResponse struct {
	ResponseHeader      ResponseHeader
	NotificationMessage NotificationMessage
}

// Header returns the response header.
func (r *RepublishResponse) Header() *ResponseHeader { return &r.ResponseHeader }

// DeleteSubscriptionsRequest structure.
type DeleteSubscriptionsRequest struct {
	RequestHeader   RequestHeader
	SubscriptionIDs []uint32
}

// Header returns the request header.
func (r *DeleteSubscriptionsRequest) Header() *RequestHeader { return &r.RequestHeader }

// DeleteSubscriptionsResponse structure.
type DeleteSubscriptionsResponse struct {
	ResponseHeader  ResponseHeader
	Results         []StatusCode
	DiagnosticInfos []DiagnosticInfo
}

// Header returns the response header.
func (r *DeleteSubscriptionsResponse) Header() *ResponseHeader { return &r.ResponseHeader }
