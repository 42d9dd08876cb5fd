// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

// Binary encoding ids of the structures in namespace 0.
const (
	EncodingIDAnonymousIdentityToken       uint32 = 321
	EncodingIDUserNameIdentityToken        uint32 = 324
	EncodingIDServiceFault                 uint32 = 397
	EncodingIDFindServersRequest           uint32 = 422
	EncodingIDFindServersResponse          uint32 = 425
	EncodingIDGetEndpointsRequest          uint32 = 428
	EncodingIDGetEndpointsResponse         uint32 = 431
	EncodingIDOpenSecureChannelRequest     uint32 = 446
	EncodingIDOpenSecureChannelResponse    uint32 = 449
	EncodingIDCloseSecureChannelRequest    uint32 = 452
	EncodingIDCloseSecureChannelResponse   uint32 = 455
	EncodingIDCreateSessionRequest         uint32 = 461
	EncodingIDCreateSessionResponse        uint32 = 464
	EncodingIDActivateSessionRequest       uint32 = 467
	EncodingIDActivateSessionResponse      uint32 = 470
	EncodingIDCloseSessionRequest          uint32 = 473
	EncodingIDCloseSessionResponse         uint32 = 476
	EncodingIDBrowseRequest                uint32 = 527
	EncodingIDBrowseResponse               uint32 = 530
	EncodingIDBrowseNextRequest            uint32 = 533
	EncodingIDBrowseNextResponse           uint32 = 536
	EncodingIDLiteralOperand               uint32 = 597
	EncodingIDSimpleAttributeOperand       uint32 = 603
	EncodingIDReadRequest                  uint32 = 631
	EncodingIDReadResponse                 uint32 = 634
	EncodingIDReadRawModifiedDetails       uint32 = 649
	EncodingIDHistoryData                  uint32 = 658
	EncodingIDHistoryReadRequest           uint32 = 664
	EncodingIDHistoryReadResponse          uint32 = 667
	EncodingIDWriteRequest                 uint32 = 673
	EncodingIDWriteResponse                uint32 = 676
	EncodingIDCallRequest                  uint32 = 712
	EncodingIDCallResponse                 uint32 = 715
	EncodingIDDataChangeFilter             uint32 = 724
	EncodingIDEventFilter                  uint32 = 727
	EncodingIDEventFilterResult            uint32 = 736
	EncodingIDCreateMonitoredItemsRequest  uint32 = 751
	EncodingIDCreateMonitoredItemsResponse uint32 = 754
	EncodingIDModifyMonitoredItemsRequest  uint32 = 763
	EncodingIDModifyMonitoredItemsResponse uint32 = 766
	EncodingIDSetMonitoringModeRequest     uint32 = 769
	EncodingIDSetMonitoringModeResponse    uint32 = 772
	EncodingIDDeleteMonitoredItemsRequest  uint32 = 781
	EncodingIDDeleteMonitoredItemsResponse uint32 = 784
	EncodingIDCreateSubscriptionRequest    uint32 = 787
	EncodingIDCreateSubscriptionResponse   uint32 = 790
	EncodingIDModifySubscriptionRequest    uint32 = 793
	EncodingIDModifySubscriptionResponse   uint32 = 796
	EncodingIDSetPublishingModeRequest     uint32 = 799
	EncodingIDSetPublishingModeResponse    uint32 = 802
	EncodingIDDataChangeNotification       uint32 = 811
	EncodingIDStatusChangeNotification     uint32 = 820
	EncodingIDPublishRequest               uint32 = 826
	EncodingIDPublishResponse              uint32 = 829
	EncodingIDRepublishRequest             uint32 = 832
	EncodingIDRepublishResponse            uint32 = 835
	EncodingIDDeleteSubscriptionsRequest   uint32 = 847
	EncodingIDDeleteSubscriptionsResponse  uint32 = 850
	EncodingIDEventNotificationList        uint32 = 916
)

var standardTypes = map[uint32]any{
	EncodingIDAnonymousIdentityToken:       AnonymousIdentityToken{},
	EncodingIDUserNameIdentityToken:        UserNameIdentityToken{},
	EncodingIDServiceFault:                 ServiceFault{},
	EncodingIDFindServersRequest:           FindServersRequest{},
	EncodingIDFindServersResponse:          FindServersResponse{},
	EncodingIDGetEndpointsRequest:          GetEndpointsRequest{},
	EncodingIDGetEndpointsResponse:         GetEndpointsResponse{},
	EncodingIDOpenSecureChannelRequest:     OpenSecureChannelRequest{},
	EncodingIDOpenSecureChannelResponse:    OpenSecureChannelResponse{},
	EncodingIDCloseSecureChannelRequest:    CloseSecureChannelRequest{},
	EncodingIDCloseSecureChannelResponse:   CloseSecureChannelResponse{},
	EncodingIDCreateSessionRequest:         CreateSessionRequest{},
	EncodingIDCreateSessionResponse:        CreateSessionResponse{},
	EncodingIDActivateSessionRequest:       ActivateSessionRequest{},
	EncodingIDActivateSessionResponse:      ActivateSessionResponse{},
	EncodingIDCloseSessionRequest:          CloseSessionRequest{},
	EncodingIDCloseSessionResponse:         CloseSessionResponse{},
	EncodingIDBrowseRequest:                BrowseRequest{},
	EncodingIDBrowseResponse:               BrowseResponse{},
	EncodingIDBrowseNextRequest:            BrowseNextRequest{},
	EncodingIDBrowseNextResponse:           BrowseNextResponse{},
	EncodingIDLiteralOperand:               LiteralOperand{},
	EncodingIDSimpleAttributeOperand:       SimpleAttributeOperand{},
	EncodingIDReadRequest:                  ReadRequest{},
	EncodingIDReadResponse:                 ReadResponse{},
	EncodingIDReadRawModifiedDetails:       ReadRawModifiedDetails{},
	EncodingIDHistoryData:                  HistoryData{},
	EncodingIDHistoryReadRequest:           HistoryReadRequest{},
	EncodingIDHistoryReadResponse:          HistoryReadResponse{},
	EncodingIDWriteRequest:                 WriteRequest{},
	EncodingIDWriteResponse:                WriteResponse{},
	EncodingIDCallRequest:                  CallRequest{},
	EncodingIDCallResponse:                 CallResponse{},
	EncodingIDDataChangeFilter:             DataChangeFilter{},
	EncodingIDEventFilter:                  EventFilter{},
	EncodingIDEventFilterResult:            EventFilterResult{},
	EncodingIDCreateMonitoredItemsRequest:  CreateMonitoredItemsRequest{},
	EncodingIDCreateMonitoredItemsResponse: CreateMonitoredItemsResponse{},
	EncodingIDModifyMonitoredItemsRequest:  ModifyMonitoredItemsRequest{},
	EncodingIDModifyMonitoredItemsResponse: ModifyMonitoredItemsResponse{},
	EncodingIDSetMonitoringModeRequest:     SetMonitoringModeRequest{},
	EncodingIDSetMonitoringModeResponse:    SetMonitoringModeResponse{},
	EncodingIDDeleteMonitoredItemsRequest:  DeleteMonitoredItemsRequest{},
	EncodingIDDeleteMonitoredItemsResponse: DeleteMonitoredItemsResponse{},
	EncodingIDCreateSubscriptionRequest:    CreateSubscriptionRequest{},
	EncodingIDCreateSubscriptionResponse:   CreateSubscriptionResponse{},
	EncodingIDModifySubscriptionRequest:    ModifySubscriptionRequest{},
	EncodingIDModifySubscriptionResponse:   ModifySubscriptionResponse{},
	EncodingIDSetPublishingModeRequest:     SetPublishingModeRequest{},
	EncodingIDSetPublishingModeResponse:    SetPublishingModeResponse{},
	EncodingIDDataChangeNotification:       DataChangeNotification{},
	EncodingIDStatusChangeNotification:     StatusChangeNotification{},
	EncodingIDPublishRequest:               PublishRequest{},
	EncodingIDPublishResponse:              PublishResponse{},
	EncodingIDRepublishRequest:             RepublishRequest{},
	EncodingIDRepublishResponse:            RepublishResponse{},
	EncodingIDDeleteSubscriptionsRequest:   DeleteSubscriptionsRequest{},
	EncodingIDDeleteSubscriptionsResponse:  DeleteSubscriptionsResponse{},
	EncodingIDEventNotificationList:        EventNotificationList{},
}

// Well-known node ids of namespace 0.
var (
	ObjectIDRootFolder                      = NewNodeIDNumeric(0, 84)
	ObjectIDObjectsFolder                   = NewNodeIDNumeric(0, 85)
	ObjectIDServer                          = NewNodeIDNumeric(0, 2253)
	VariableIDServerServerArray             = NewNodeIDNumeric(0, 2254)
	VariableIDServerNamespaceArray          = NewNodeIDNumeric(0, 2255)
	VariableIDServerServerStatus            = NewNodeIDNumeric(0, 2256)
	VariableIDServerServerStatusCurrentTime = NewNodeIDNumeric(0, 2258)
	VariableIDServerServerStatusState       = NewNodeIDNumeric(0, 2259)
	ObjectTypeIDBaseObjectType              = NewNodeIDNumeric(0, 58)
	ObjectTypeIDFolderType                  = NewNodeIDNumeric(0, 61)
	VariableTypeIDBaseDataVariableType      = NewNodeIDNumeric(0, 63)
	VariableTypeIDPropertyType              = NewNodeIDNumeric(0, 68)
	ObjectTypeIDBaseEventType               = NewNodeIDNumeric(0, 2041)
	ReferenceTypeIDHierarchicalReferences   = NewNodeIDNumeric(0, 33)
	ReferenceTypeIDOrganizes                = NewNodeIDNumeric(0, 35)
	ReferenceTypeIDHasProperty              = NewNodeIDNumeric(0, 46)
	ReferenceTypeIDHasComponent             = NewNodeIDNumeric(0, 47)
	ReferenceTypeIDHasTypeDefinition        = NewNodeIDNumeric(0, 40)
	DataTypeIDBoolean                       = NewNodeIDNumeric(0, 1)
	DataTypeIDInt32                         = NewNodeIDNumeric(0, 6)
	DataTypeIDDouble                        = NewNodeIDNumeric(0, 11)
	DataTypeIDString                        = NewNodeIDNumeric(0, 12)
	DataTypeIDDateTime                      = NewNodeIDNumeric(0, 13)
	DataTypeIDBaseDataType                  = NewNodeIDNumeric(0, 24)
	TransportProfileURIUaTcpTransport       = "http://opcfoundation.org/UA-Profile/Transport/uatcp-uasc-uabinary"
	ServerProfileURIStandardUAServerProfile = "http://opcfoundation.org/UA-Profile/Server/StandardUA2017"
)
