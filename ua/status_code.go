// Copyright 2021 Converter Systems LLC. All rights reserved.

package ua

import "fmt"

// StatusCode is the result of a service or operation. It implements the error interface.
type StatusCode uint32

// IsGood returns true if the StatusCode is good.
func (c StatusCode) IsGood() bool {
	return (uint32(c) & SeverityMask) == SeverityGood
}

// IsBad returns true if the StatusCode is bad.
func (c StatusCode) IsBad() bool {
	return (uint32(c) & SeverityBad) == SeverityBad
}

// IsUncertain returns true if the StatusCode is uncertain.
func (c StatusCode) IsUncertain() bool {
	return (uint32(c) & SeverityMask) == SeverityUncertain
}

// IsStructureChanged returns true if the structure is changed.
func (c StatusCode) IsStructureChanged() bool {
	return (uint32(c) & StructureChanged) == StructureChanged
}

// IsSemanticsChanged returns true if the semantics is changed.
func (c StatusCode) IsSemanticsChanged() bool {
	return (uint32(c) & SemanticsChanged) == SemanticsChanged
}

// IsOverflow returns true if the queue of a monitored item overflowed.
func (c StatusCode) IsOverflow() bool {
	return (uint32(c) & (InfoTypeDataValue | Overflow)) == (InfoTypeDataValue | Overflow)
}

// Code returns the StatusCode without the info bits.
func (c StatusCode) Code() StatusCode {
	return StatusCode(uint32(c) & 0xFFFF0000)
}

// WithOverflow returns the StatusCode with the DataValue overflow info bits set.
func (c StatusCode) WithOverflow() StatusCode {
	return StatusCode(uint32(c) | InfoTypeDataValue | Overflow)
}

// Severity and info bits.
const (
	SeverityMask      uint32 = 0xC0000000
	SeverityGood      uint32 = 0x00000000
	SeverityUncertain uint32 = 0x40000000
	SeverityBad       uint32 = 0x80000000
	StructureChanged  uint32 = 0x00008000
	SemanticsChanged  uint32 = 0x00004000
	InfoTypeDataValue uint32 = 0x00000400
	Overflow          uint32 = 0x00000080
)

const (
	// Good - The operation completed successfully.
	Good StatusCode = 0x00000000
	// BadUnexpectedError - An unexpected error occurred.
	BadUnexpectedError StatusCode = 0x80010000
	// BadInternalError - An internal error occurred as a result of a programming or configuration error.
	BadInternalError StatusCode = 0x80020000
	// BadOutOfMemory - Not enough memory to complete the operation.
	BadOutOfMemory StatusCode = 0x80030000
	// BadResourceUnavailable - An operating system resource is not available.
	BadResourceUnavailable StatusCode = 0x80040000
	// BadCommunicationError - A low level communication error occurred.
	BadCommunicationError StatusCode = 0x80050000
	// BadEncodingError - Encoding halted because of invalid data in the objects being serialized.
	BadEncodingError StatusCode = 0x80060000
	// BadDecodingError - Decoding halted because of invalid data in the stream.
	BadDecodingError StatusCode = 0x80070000
	// BadEncodingLimitsExceeded - The message encoding/decoding limits imposed by the stack have been exceeded.
	BadEncodingLimitsExceeded StatusCode = 0x80080000
	// BadUnknownResponse - An unrecognized response was received from the server.
	BadUnknownResponse StatusCode = 0x80090000
	// BadTimeout - The operation timed out.
	BadTimeout StatusCode = 0x800A0000
	// BadServiceUnsupported - The server does not support the requested service.
	BadServiceUnsupported StatusCode = 0x800B0000
	// BadShutdown - The operation was cancelled because the application is shutting down.
	BadShutdown StatusCode = 0x800C0000
	// BadServerNotConnected - The operation could not complete because the client is not connected to the server.
	BadServerNotConnected StatusCode = 0x800D0000
	// BadServerHalted - The server has stopped and cannot process any requests.
	BadServerHalted StatusCode = 0x800E0000
	// BadNothingToDo - There was nothing to do because the client passed a list of operations with no elements.
	BadNothingToDo StatusCode = 0x800F0000
	// BadTooManyOperations - The request could not be processed because it specified too many operations.
	BadTooManyOperations StatusCode = 0x80100000
	// BadDataTypeIDUnknown - The extension object cannot be (de)serialized because the data type id is not recognized.
	BadDataTypeIDUnknown StatusCode = 0x80110000
	// BadCertificateInvalid - The certificate provided as a parameter is not valid.
	BadCertificateInvalid StatusCode = 0x80120000
	// BadSecurityChecksFailed - An error occurred verifying security.
	BadSecurityChecksFailed StatusCode = 0x80130000
	// BadCertificateTimeInvalid - The certificate has expired or is not yet valid.
	BadCertificateTimeInvalid StatusCode = 0x80140000
	// BadCertificateHostNameInvalid - The HostName used to connect to a server does not match a HostName in the certificate.
	BadCertificateHostNameInvalid StatusCode = 0x80160000
	// BadCertificateURIInvalid - The URI specified in the ApplicationDescription does not match the URI in the certificate.
	BadCertificateURIInvalid StatusCode = 0x80170000
	// BadCertificateUseNotAllowed - The certificate may not be used for the requested operation.
	BadCertificateUseNotAllowed StatusCode = 0x80180000
	// BadCertificateUntrusted - The certificate is not trusted.
	BadCertificateUntrusted StatusCode = 0x801A0000
	// BadCertificateChainIncomplete - The certificate chain is incomplete.
	BadCertificateChainIncomplete StatusCode = 0x810D0000
	// BadUserAccessDenied - User does not have permission to perform the requested operation.
	BadUserAccessDenied StatusCode = 0x801F0000
	// BadIdentityTokenInvalid - The user identity token is not valid.
	BadIdentityTokenInvalid StatusCode = 0x80200000
	// BadIdentityTokenRejected - The user identity token is valid but the server has rejected it.
	BadIdentityTokenRejected StatusCode = 0x80210000
	// BadSecureChannelIDInvalid - The specified secure channel is no longer valid.
	BadSecureChannelIDInvalid StatusCode = 0x80220000
	// BadNonceInvalid - The nonce does appear to be not a random value or it is not the correct length.
	BadNonceInvalid StatusCode = 0x80240000
	// BadSessionIDInvalid - The session id is not valid.
	BadSessionIDInvalid StatusCode = 0x80250000
	// BadSessionClosed - The session was closed by the client.
	BadSessionClosed StatusCode = 0x80260000
	// BadSessionNotActivated - The session cannot be used because ActivateSession has not been called.
	BadSessionNotActivated StatusCode = 0x80270000
	// BadSubscriptionIDInvalid - The subscription id is not valid.
	BadSubscriptionIDInvalid StatusCode = 0x80280000
	// BadRequestHeaderInvalid - The header for the request is missing or invalid.
	BadRequestHeaderInvalid StatusCode = 0x802A0000
	// BadTimestampsToReturnInvalid - The timestamps to return parameter is invalid.
	BadTimestampsToReturnInvalid StatusCode = 0x802B0000
	// BadRequestCancelledByClient - The request was cancelled by the client.
	BadRequestCancelledByClient StatusCode = 0x802C0000
	// BadNodeIDInvalid - The syntax of the node id is not valid.
	BadNodeIDInvalid StatusCode = 0x80330000
	// BadNodeIDUnknown - The node id refers to a node that does not exist in the server address space.
	BadNodeIDUnknown StatusCode = 0x80340000
	// BadAttributeIDInvalid - The attribute is not supported for the specified Node.
	BadAttributeIDInvalid StatusCode = 0x80350000
	// BadIndexRangeInvalid - The syntax of the index range parameter is invalid.
	BadIndexRangeInvalid StatusCode = 0x80360000
	// BadDataEncodingUnsupported - The server does not support the requested data encoding for the node.
	BadDataEncodingUnsupported StatusCode = 0x80390000
	// BadNotReadable - The access level does not allow reading or subscribing to the Node.
	BadNotReadable StatusCode = 0x803A0000
	// BadNotWritable - The access level does not allow writing to the Node.
	BadNotWritable StatusCode = 0x803B0000
	// BadOutOfRange - The value was out of range.
	BadOutOfRange StatusCode = 0x803C0000
	// BadNotSupported - The requested operation is not supported.
	BadNotSupported StatusCode = 0x803D0000
	// BadNotFound - A requested item was not found or a search operation ended without success.
	BadNotFound StatusCode = 0x803E0000
	// BadNotImplemented - Requested operation is not implemented.
	BadNotImplemented StatusCode = 0x80400000
	// BadMonitoringModeInvalid - The monitoring mode is invalid.
	BadMonitoringModeInvalid StatusCode = 0x80410000
	// BadMonitoredItemIDInvalid - The monitoring item id does not refer to a valid monitored item.
	BadMonitoredItemIDInvalid StatusCode = 0x80420000
	// BadMonitoredItemFilterInvalid - The monitored item filter parameter is not valid.
	BadMonitoredItemFilterInvalid StatusCode = 0x80430000
	// BadMonitoredItemFilterUnsupported - The server does not support the requested monitored item filter.
	BadMonitoredItemFilterUnsupported StatusCode = 0x80440000
	// BadContinuationPointInvalid - The continuation point provide is longer valid.
	BadContinuationPointInvalid StatusCode = 0x804A0000
	// BadNoContinuationPoints - The operation could not be processed because all continuation points have been allocated.
	BadNoContinuationPoints StatusCode = 0x804B0000
	// BadBrowseDirectionInvalid - The browse direction is not valid.
	BadBrowseDirectionInvalid StatusCode = 0x804D0000
	// BadRequestTypeInvalid - The security token request type is not valid.
	BadRequestTypeInvalid StatusCode = 0x80530000
	// BadSecurityModeRejected - The security mode does not meet the requirements set by the server.
	BadSecurityModeRejected StatusCode = 0x80540000
	// BadSecurityPolicyRejected - The security policy does not meet the requirements set by the server.
	BadSecurityPolicyRejected StatusCode = 0x80550000
	// BadTooManySessions - The server has reached its maximum number of sessions.
	BadTooManySessions StatusCode = 0x80560000
	// BadUserSignatureInvalid - The user token signature is missing or invalid.
	BadUserSignatureInvalid StatusCode = 0x80570000
	// BadApplicationSignatureInvalid - The signature generated with the client certificate is missing or invalid.
	BadApplicationSignatureInvalid StatusCode = 0x80580000
	// BadHistoryOperationUnsupported - The server does not support the requested operation.
	BadHistoryOperationUnsupported StatusCode = 0x80720000
	// BadWriteNotSupported - The server does not support writing the combination of value, status and timestamps provided.
	BadWriteNotSupported StatusCode = 0x80730000
	// BadTypeMismatch - The value supplied for the attribute is not of the same type as the attribute's value.
	BadTypeMismatch StatusCode = 0x80740000
	// BadMethodInvalid - The method id does not refer to a method for the specified object.
	BadMethodInvalid StatusCode = 0x80750000
	// BadTooManySubscriptions - The server has reached its maximum number of subscriptions.
	BadTooManySubscriptions StatusCode = 0x80770000
	// BadTooManyPublishRequests - The server has reached the maximum number of queued publish requests.
	BadTooManyPublishRequests StatusCode = 0x80780000
	// BadNoSubscription - There is no subscription available for this session.
	BadNoSubscription StatusCode = 0x80790000
	// BadSequenceNumberUnknown - The sequence number is unknown to the server.
	BadSequenceNumberUnknown StatusCode = 0x807A0000
	// BadMessageNotAvailable - The requested notification message is no longer available.
	BadMessageNotAvailable StatusCode = 0x807B0000
	// BadTCPServerTooBusy - The server cannot process the request because it is too busy.
	BadTCPServerTooBusy StatusCode = 0x807D0000
	// BadTCPMessageTypeInvalid - The type of the message specified in the header invalid.
	BadTCPMessageTypeInvalid StatusCode = 0x807E0000
	// BadTCPSecureChannelUnknown - The SecureChannelId and/or TokenId are not currently in use.
	BadTCPSecureChannelUnknown StatusCode = 0x807F0000
	// BadTCPMessageTooLarge - The size of the message specified in the header is too large.
	BadTCPMessageTooLarge StatusCode = 0x80800000
	// BadTCPInternalError - An internal error occurred.
	BadTCPInternalError StatusCode = 0x80820000
	// BadTCPEndpointURLInvalid - The server does not recognize the QueryString specified.
	BadTCPEndpointURLInvalid StatusCode = 0x80830000
	// BadRequestInterrupted - The request could not be sent because of a network interruption.
	BadRequestInterrupted StatusCode = 0x80840000
	// BadRequestTimeout - Timeout occurred while processing the request.
	BadRequestTimeout StatusCode = 0x80850000
	// BadSecureChannelClosed - The secure channel has been closed.
	BadSecureChannelClosed StatusCode = 0x80860000
	// BadSecureChannelTokenUnknown - The token has expired or is not recognized.
	BadSecureChannelTokenUnknown StatusCode = 0x80870000
	// BadSequenceNumberInvalid - The sequence number is not valid.
	BadSequenceNumberInvalid StatusCode = 0x80880000
	// BadConfigurationError - There is a problem with the configuration that affects the usefulness of the value.
	BadConfigurationError StatusCode = 0x80890000
	// BadNotConnected - The variable should receive its value from another variable, but has never been configured to do so.
	BadNotConnected StatusCode = 0x808A0000
	// BadNoData - No data exists for the requested time range or event filter.
	BadNoData StatusCode = 0x809B0000
	// GoodNoData - No data exists for the requested time range or event filter.
	GoodNoData StatusCode = 0x00A50000
	// BadInvalidArgument - One or more arguments are invalid.
	BadInvalidArgument StatusCode = 0x80AB0000
	// BadConnectionRejected - Could not establish a network connection to remote server.
	BadConnectionRejected StatusCode = 0x80AC0000
	// BadDisconnect - The server has disconnected from the client.
	BadDisconnect StatusCode = 0x80AD0000
	// BadConnectionClosed - The network connection has been closed.
	BadConnectionClosed StatusCode = 0x80AE0000
	// BadInvalidState - The operation cannot be completed because the object is closed, uninitialized or in some other invalid state.
	BadInvalidState StatusCode = 0x80AF0000
	// BadRequestTooLarge - The request message size exceeds limits set by the server.
	BadRequestTooLarge StatusCode = 0x80B80000
	// BadResponseTooLarge - The response message size exceeds limits set by the client.
	BadResponseTooLarge StatusCode = 0x80B90000
	// GoodResultsMayBeIncomplete - The server should have followed a reference to a node in a remote server but did not. The result set may be incomplete.
	GoodResultsMayBeIncomplete StatusCode = 0x00BA0000
	// BadProtocolVersionUnsupported - The applications do not have compatible protocol versions.
	BadProtocolVersionUnsupported StatusCode = 0x80BE0000
	// BadTooManyArguments - Too many arguments were provided.
	BadTooManyArguments StatusCode = 0x80E50000
	// BadFilterNotAllowed - A monitoring filter cannot be used in combination with the attribute specified.
	BadFilterNotAllowed StatusCode = 0x80450000
	// BadEventFilterInvalid - The event filter is not valid.
	BadEventFilterInvalid StatusCode = 0x80470000
	// BadMaxAgeInvalid - The max age parameter is invalid.
	BadMaxAgeInvalid StatusCode = 0x80700000
	// BadViewIDUnknown - The view id does not refer to a valid view node.
	BadViewIDUnknown StatusCode = 0x806B0000
	// BadTooManyMonitoredItems - The request could not be processed because there are too many monitored items in the subscription.
	BadTooManyMonitoredItems StatusCode = 0x80DB0000
)

var statusCodeNames = map[StatusCode]string{
	Good:                              "Good",
	BadUnexpectedError:                "BadUnexpectedError",
	BadInternalError:                  "BadInternalError",
	BadOutOfMemory:                    "BadOutOfMemory",
	BadResourceUnavailable:            "BadResourceUnavailable",
	BadCommunicationError:             "BadCommunicationError",
	BadEncodingError:                  "BadEncodingError",
	BadDecodingError:                  "BadDecodingError",
	BadEncodingLimitsExceeded:         "BadEncodingLimitsExceeded",
	BadUnknownResponse:                "BadUnknownResponse",
	BadTimeout:                        "BadTimeout",
	BadServiceUnsupported:             "BadServiceUnsupported",
	BadShutdown:                       "BadShutdown",
	BadServerNotConnected:             "BadServerNotConnected",
	BadServerHalted:                   "BadServerHalted",
	BadNothingToDo:                    "BadNothingToDo",
	BadTooManyOperations:              "BadTooManyOperations",
	BadDataTypeIDUnknown:              "BadDataTypeIdUnknown",
	BadCertificateInvalid:             "BadCertificateInvalid",
	BadSecurityChecksFailed:           "BadSecurityChecksFailed",
	BadCertificateTimeInvalid:         "BadCertificateTimeInvalid",
	BadCertificateHostNameInvalid:     "BadCertificateHostNameInvalid",
	BadCertificateURIInvalid:          "BadCertificateUriInvalid",
	BadCertificateUseNotAllowed:       "BadCertificateUseNotAllowed",
	BadCertificateUntrusted:           "BadCertificateUntrusted",
	BadCertificateChainIncomplete:     "BadCertificateChainIncomplete",
	BadUserAccessDenied:               "BadUserAccessDenied",
	BadIdentityTokenInvalid:           "BadIdentityTokenInvalid",
	BadIdentityTokenRejected:          "BadIdentityTokenRejected",
	BadSecureChannelIDInvalid:         "BadSecureChannelIdInvalid",
	BadNonceInvalid:                   "BadNonceInvalid",
	BadSessionIDInvalid:               "BadSessionIdInvalid",
	BadSessionClosed:                  "BadSessionClosed",
	BadSessionNotActivated:            "BadSessionNotActivated",
	BadSubscriptionIDInvalid:          "BadSubscriptionIdInvalid",
	BadRequestHeaderInvalid:           "BadRequestHeaderInvalid",
	BadTimestampsToReturnInvalid:      "BadTimestampsToReturnInvalid",
	BadRequestCancelledByClient:       "BadRequestCancelledByClient",
	BadNodeIDInvalid:                  "BadNodeIdInvalid",
	BadNodeIDUnknown:                  "BadNodeIdUnknown",
	BadAttributeIDInvalid:             "BadAttributeIdInvalid",
	BadIndexRangeInvalid:              "BadIndexRangeInvalid",
	BadDataEncodingUnsupported:        "BadDataEncodingUnsupported",
	BadNotReadable:                    "BadNotReadable",
	BadNotWritable:                    "BadNotWritable",
	BadOutOfRange:                     "BadOutOfRange",
	BadNotSupported:                   "BadNotSupported",
	BadNotFound:                       "BadNotFound",
	BadNotImplemented:                 "BadNotImplemented",
	BadMonitoringModeInvalid:          "BadMonitoringModeInvalid",
	BadMonitoredItemIDInvalid:         "BadMonitoredItemIdInvalid",
	BadMonitoredItemFilterInvalid:     "BadMonitoredItemFilterInvalid",
	BadMonitoredItemFilterUnsupported: "BadMonitoredItemFilterUnsupported",
	BadContinuationPointInvalid:       "BadContinuationPointInvalid",
	BadNoContinuationPoints:           "BadNoContinuationPoints",
	BadBrowseDirectionInvalid:         "BadBrowseDirectionInvalid",
	BadRequestTypeInvalid:             "BadRequestTypeInvalid",
	BadSecurityModeRejected:           "BadSecurityModeRejected",
	BadSecurityPolicyRejected:         "BadSecurityPolicyRejected",
	BadTooManySessions:                "BadTooManySessions",
	BadUserSignatureInvalid:           "BadUserSignatureInvalid",
	BadApplicationSignatureInvalid:    "BadApplicationSignatureInvalid",
	BadHistoryOperationUnsupported:    "BadHistoryOperationUnsupported",
	BadWriteNotSupported:              "BadWriteNotSupported",
	BadTypeMismatch:                   "BadTypeMismatch",
	BadMethodInvalid:                  "BadMethodInvalid",
	BadTooManySubscriptions:           "BadTooManySubscriptions",
	BadTooManyPublishRequests:         "BadTooManyPublishRequests",
	BadNoSubscription:                 "BadNoSubscription",
	BadSequenceNumberUnknown:          "BadSequenceNumberUnknown",
	BadMessageNotAvailable:            "BadMessageNotAvailable",
	BadTCPServerTooBusy:               "BadTcpServerTooBusy",
	BadTCPMessageTypeInvalid:          "BadTcpMessageTypeInvalid",
	BadTCPSecureChannelUnknown:        "BadTcpSecureChannelUnknown",
	BadTCPMessageTooLarge:             "BadTcpMessageTooLarge",
	BadTCPInternalError:               "BadTcpInternalError",
	BadTCPEndpointURLInvalid:          "BadTcpEndpointUrlInvalid",
	BadRequestInterrupted:             "BadRequestInterrupted",
	BadRequestTimeout:                 "BadRequestTimeout",
	BadSecureChannelClosed:            "BadSecureChannelClosed",
	BadSecureChannelTokenUnknown:      "BadSecureChannelTokenUnknown",
	BadSequenceNumberInvalid:          "BadSequenceNumberInvalid",
	BadConfigurationError:             "BadConfigurationError",
	BadNotConnected:                   "BadNotConnected",
	BadNoData:                         "BadNoData",
	GoodNoData:                        "GoodNoData",
	BadInvalidArgument:                "BadInvalidArgument",
	BadConnectionRejected:             "BadConnectionRejected",
	BadDisconnect:                     "BadDisconnect",
	BadConnectionClosed:               "BadConnectionClosed",
	BadInvalidState:                   "BadInvalidState",
	BadRequestTooLarge:                "BadRequestTooLarge",
	BadResponseTooLarge:               "BadResponseTooLarge",
	GoodResultsMayBeIncomplete:        "GoodResultsMayBeIncomplete",
	BadProtocolVersionUnsupported:     "BadProtocolVersionUnsupported",
	BadTooManyArguments:               "BadTooManyArguments",
	BadFilterNotAllowed:               "BadFilterNotAllowed",
	BadEventFilterInvalid:             "BadEventFilterInvalid",
	BadMaxAgeInvalid:                  "BadMaxAgeInvalid",
	BadViewIDUnknown:                  "BadViewIDUnknown",
	BadTooManyMonitoredItems:          "BadTooManyMonitoredItems",
}

// Error returns the name of the StatusCode.
func (c StatusCode) Error() string {
	if name, ok := statusCodeNames[c.Code()]; ok {
		return name
	}
	return fmt.Sprintf("StatusCode(0x%08X)", uint32(c))
}

// String returns the name of the StatusCode.
func (c StatusCode) String() string {
	return c.Error()
}
