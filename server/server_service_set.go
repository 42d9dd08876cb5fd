// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"sort"
	"time"

	"github.com/awcullen/uastack/ua"
)

type contextKey int

// SessionKey is the context key of the *Session making a request.
const SessionKey contextKey = 0

// handleRequest dispatches a service request from the channel. Handlers answer errors
// with a ServiceFault and never return them.
func (srv *Server) handleRequest(ch *serverSecureChannel, requestID uint32, req ua.ServiceRequest) {
	if ch.DiscoveryOnly() {
		switch req.(type) {
		case *ua.FindServersRequest, *ua.GetEndpointsRequest:
		default:
			ch.Abort(ua.BadSecurityPolicyRejected, "")
			return
		}
	}
	switch req := req.(type) {
	case *ua.FindServersRequest:
		srv.handleFindServers(ch, requestID, req)
	case *ua.GetEndpointsRequest:
		srv.handleGetEndpoints(ch, requestID, req)
	case *ua.CreateSessionRequest:
		srv.handleCreateSession(ch, requestID, req)
	case *ua.ActivateSessionRequest:
		srv.handleActivateSession(ch, requestID, req)
	case *ua.CloseSessionRequest:
		srv.handleCloseSession(ch, requestID, req)
	case *ua.BrowseRequest:
		srv.handleBrowse(ch, requestID, req)
	case *ua.BrowseNextRequest:
		srv.handleBrowseNext(ch, requestID, req)
	case *ua.ReadRequest:
		srv.handleRead(ch, requestID, req)
	case *ua.WriteRequest:
		srv.handleWrite(ch, requestID, req)
	case *ua.HistoryReadRequest:
		srv.handleHistoryRead(ch, requestID, req)
	case *ua.CallRequest:
		srv.handleCall(ch, requestID, req)
	case *ua.CreateMonitoredItemsRequest:
		srv.handleCreateMonitoredItems(ch, requestID, req)
	case *ua.ModifyMonitoredItemsRequest:
		srv.handleModifyMonitoredItems(ch, requestID, req)
	case *ua.SetMonitoringModeRequest:
		srv.handleSetMonitoringMode(ch, requestID, req)
	case *ua.DeleteMonitoredItemsRequest:
		srv.handleDeleteMonitoredItems(ch, requestID, req)
	case *ua.CreateSubscriptionRequest:
		srv.handleCreateSubscription(ch, requestID, req)
	case *ua.ModifySubscriptionRequest:
		srv.handleModifySubscription(ch, requestID, req)
	case *ua.SetPublishingModeRequest:
		srv.handleSetPublishingMode(ch, requestID, req)
	case *ua.PublishRequest:
		srv.handlePublish(ch, requestID, req)
	case *ua.RepublishRequest:
		srv.handleRepublish(ch, requestID, req)
	case *ua.DeleteSubscriptionsRequest:
		srv.handleDeleteSubscriptions(ch, requestID, req)
	default:
		srv.writeFault(ch, requestID, req.Header(), ua.BadServiceUnsupported)
	}
}

// writeFault answers the request with a ServiceFault.
func (srv *Server) writeFault(ch *serverSecureChannel, requestID uint32, h *ua.RequestHeader, code ua.StatusCode) {
	ch.Write(&ua.ServiceFault{ResponseHeader: ua.NewResponseHeader(time.Now(), h.RequestHandle, code)}, requestID)
}

// activeSession returns the activated session of the request, which must be bound to the channel.
func (srv *Server) activeSession(ch *serverSecureChannel, h *ua.RequestHeader) (*Session, ua.StatusCode) {
	session, ok := srv.sessionManager.Get(h.AuthenticationToken)
	if !ok {
		return nil, ua.BadSessionIDInvalid
	}
	if !session.Activated() {
		return nil, ua.BadSessionNotActivated
	}
	if session.Channel() != ch {
		return nil, ua.BadSecureChannelIDInvalid
	}
	return session, ua.Good
}

// sessionContext returns a context carrying the session, canceled at the timeout hint.
func sessionContext(session *Session, h *ua.RequestHeader) (context.Context, context.CancelFunc) {
	ctx := context.WithValue(context.Background(), SessionKey, session)
	if h.TimeoutHint > 0 {
		return context.WithTimeout(ctx, time.Duration(h.TimeoutHint)*time.Millisecond)
	}
	return context.WithCancel(ctx)
}

// checkOperationCount returns BadNothingToDo for an empty request, and BadTooManyOperations above the limit.
func checkOperationCount(n int, limit uint32) ua.StatusCode {
	if n == 0 {
		return ua.BadNothingToDo
	}
	if limit > 0 && n > int(limit) {
		return ua.BadTooManyOperations
	}
	return ua.Good
}

// handleFindServers returns the Servers known to the server.
func (srv *Server) handleFindServers(ch *serverSecureChannel, requestID uint32, req *ua.FindServersRequest) {
	srvs := make([]ua.ApplicationDescription, 0, 1)
	for _, s := range []ua.ApplicationDescription{srv.LocalDescription()} {
		if len(req.ServerURIs) > 0 {
			for _, su := range req.ServerURIs {
				if s.ApplicationURI == su {
					srvs = append(srvs, s)
					break
				}
			}
		} else {
			srvs = append(srvs, s)
		}
	}
	ch.Write(
		&ua.FindServersResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Servers:        srvs,
		},
		requestID,
	)
}

// handleGetEndpoints returns the endpoint descriptions supported by the server.
func (srv *Server) handleGetEndpoints(ch *serverSecureChannel, requestID uint32, req *ua.GetEndpointsRequest) {
	eps := make([]ua.EndpointDescription, 0, len(srv.Endpoints()))
	for _, ep := range srv.Endpoints() {
		if len(req.ProfileURIs) > 0 {
			for _, pu := range req.ProfileURIs {
				if ep.TransportProfileURI == pu {
					eps = append(eps, ep)
					break
				}
			}
		} else {
			eps = append(eps, ep)
		}
	}
	ch.Write(
		&ua.GetEndpointsResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Endpoints:      eps,
		},
		requestID,
	)
}

// handleCreateSession creates a session that must be activated before use.
func (srv *Server) handleCreateSession(ch *serverSecureChannel, requestID uint32, req *ua.CreateSessionRequest) {
	policy := ch.state.SecurityPolicy()

	// create server signature
	var serverSignature ua.SignatureData
	if ua.IsSecure(policy) {
		if len(req.ClientNonce) < nonceLength {
			srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadNonceInvalid)
			return
		}
		if !bytes.Equal([]byte(req.ClientCertificate), ch.RemoteCertificate()) {
			srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadCertificateInvalid)
			return
		}
		signature, err := srv.certificateProvider.Sign(policy, concat([]byte(req.ClientCertificate), []byte(req.ClientNonce)))
		if err != nil {
			srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadSecurityChecksFailed)
			return
		}
		serverSignature = ua.SignatureData{
			Signature: ua.ByteString(signature),
			Algorithm: policy.RSASignatureURI(),
		}
	}

	sessionName := req.SessionName
	if len(sessionName) == 0 {
		sessionName = req.ClientDescription.ApplicationURI
	}
	timeout := req.RequestedSessionTimeout
	if timeout < minSessionTimeout {
		timeout = minSessionTimeout
	}
	if timeout > srv.maxSessionTimeout {
		timeout = srv.maxSessionTimeout
	}
	nonce, err := ua.RandomNonce(nonceLength)
	if err != nil {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadInternalError)
		return
	}
	sessionID, authenticationToken := newSessionIDs()
	session := NewSession(
		srv,
		sessionID,
		sessionName,
		authenticationToken,
		ua.ByteString(nonce),
		time.Duration(timeout)*time.Millisecond,
		req.ClientDescription,
		[]byte(req.ClientCertificate),
		req.EndpointURL,
		req.MaxResponseMessageSize,
	)
	if err := srv.sessionManager.Add(session); err != nil {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadTooManySessions)
		return
	}
	srv.logger.WithField("session_id", sessionID).WithField("session_name", sessionName).Debug("session created")

	ch.Write(
		&ua.CreateSessionResponse{
			ResponseHeader:        ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			SessionID:             sessionID,
			AuthenticationToken:   authenticationToken,
			RevisedSessionTimeout: timeout,
			ServerNonce:           ua.ByteString(nonce),
			ServerCertificate:     ua.ByteString(srv.LocalCertificate()),
			ServerEndpoints:       srv.Endpoints(),
			ServerSignature:       serverSignature,
			MaxRequestMessageSize: srv.limits.MaxMessageSize,
		},
		requestID,
	)
}

// handleActivateSession verifies the client signature and the user identity, then binds the session
// to the channel.
func (srv *Server) handleActivateSession(ch *serverSecureChannel, requestID uint32, req *ua.ActivateSessionRequest) {
	session, ok := srv.sessionManager.Get(req.RequestHeader.AuthenticationToken)
	if !ok {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadSessionIDInvalid)
		return
	}
	endpoint, ok := srv.findEndpoint(ch.SecurityPolicyURI(), ch.SecurityMode())
	if !ok {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadSecurityPolicyRejected)
		return
	}

	// verify the client's signature.
	policy := ch.state.SecurityPolicy()
	if ua.IsSecure(policy) {
		pub, err := ua.PublicKeyOf(ch.RemoteCertificate())
		if err != nil {
			srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadApplicationSignatureInvalid)
			return
		}
		if err := policy.RSAVerify(pub, concat(srv.LocalCertificate(), []byte(session.SessionNonce())), []byte(req.ClientSignature.Signature)); err != nil {
			srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadApplicationSignatureInvalid)
			return
		}
	}

	userIdentity, code := srv.authenticate(endpoint, session, req.UserIdentityToken)
	if code.IsBad() {
		srv.logger.WithField("session_id", session.SessionID()).WithError(code).Info("session activation rejected")
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}

	nonce, err := ua.RandomNonce(nonceLength)
	if err != nil {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadInternalError)
		return
	}
	session.activate(ch, userIdentity, ua.ByteString(nonce), req.LocaleIDs)
	srv.logger.WithField("session_id", session.SessionID()).Debug("session activated")

	ch.Write(
		&ua.ActivateSessionResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			ServerNonce:    ua.ByteString(nonce),
			Results:        []ua.StatusCode{},
		},
		requestID,
	)
}

// authenticate validates the identity token against the token policies of the endpoint.
func (srv *Server) authenticate(endpoint ua.EndpointDescription, session *Session, token ua.ExtensionObject) (any, ua.StatusCode) {
	findPolicy := func(tokenType ua.UserTokenType, policyID string) (ua.UserTokenPolicy, bool) {
		for _, t := range endpoint.UserIdentityTokens {
			if t.TokenType == tokenType && (policyID == "" || t.PolicyID == policyID) {
				return t, true
			}
		}
		return ua.UserTokenPolicy{}, false
	}
	switch token := token.(type) {
	case nil:
		if _, ok := findPolicy(ua.UserTokenTypeAnonymous, ""); !ok {
			return nil, ua.BadIdentityTokenInvalid
		}
		return AnonymousIdentity{}, ua.Good

	case ua.AnonymousIdentityToken:
		if _, ok := findPolicy(ua.UserTokenTypeAnonymous, token.PolicyID); !ok {
			return nil, ua.BadIdentityTokenInvalid
		}
		return AnonymousIdentity{}, ua.Good

	case ua.UserNameIdentityToken:
		tokenPolicy, ok := findPolicy(ua.UserTokenTypeUserName, token.PolicyID)
		if !ok || token.UserName == "" {
			return nil, ua.BadIdentityTokenInvalid
		}
		if srv.userNameIdentityAuthenticator == nil {
			return nil, ua.BadIdentityTokenRejected
		}
		secPolicyURI := tokenPolicy.SecurityPolicyURI
		if secPolicyURI == "" {
			secPolicyURI = endpoint.SecurityPolicyURI
		}
		secPolicy, err := ua.NewSecurityPolicy(secPolicyURI)
		if err != nil {
			return nil, ua.BadIdentityTokenInvalid
		}
		password := []byte(token.Password)
		if ua.IsSecure(secPolicy) {
			if token.EncryptionAlgorithm != secPolicy.RSAKeyWrapURI() {
				return nil, ua.BadIdentityTokenInvalid
			}
			password, err = srv.decryptSecret(secPolicy, password, []byte(session.SessionNonce()))
			if err != nil {
				return nil, ua.BadIdentityTokenRejected
			}
		}
		identity := UserNameIdentity{UserName: token.UserName, Password: string(password)}
		if err := srv.userNameIdentityAuthenticator.AuthenticateUserNameIdentity(identity, session.clientDescription.ApplicationURI, endpoint.EndpointURL); err != nil {
			return nil, ua.BadUserAccessDenied
		}
		return identity, ua.Good

	default:
		return nil, ua.BadIdentityTokenInvalid
	}
}

// decryptSecret decrypts the blocks with the server key, and returns the secret after checking the
// length prefix and the nonce suffix.
func (srv *Server) decryptSecret(policy ua.SecurityPolicy, cipherText, nonce []byte) ([]byte, error) {
	blockSize := srv.certificateProvider.PublicKeySize()
	if blockSize == 0 || len(cipherText)%blockSize != 0 {
		return nil, ua.BadIdentityTokenInvalid
	}
	plainBuf := ua.NewPartitionBuffer()
	defer plainBuf.Reset()
	for i := 0; i < len(cipherText); i += blockSize {
		plainText, err := srv.certificateProvider.Decrypt(policy, cipherText[i:i+blockSize])
		if err != nil {
			return nil, err
		}
		plainBuf.Write(plainText)
	}
	plain := make([]byte, plainBuf.Len())
	plainBuf.Read(plain)
	if len(plain) < 4 {
		return nil, ua.BadIdentityTokenInvalid
	}
	plainLength := int(binary.LittleEndian.Uint32(plain))
	if plainLength < len(nonce) || plainLength > len(plain)-4 {
		return nil, ua.BadIdentityTokenInvalid
	}
	secret := plain[4 : 4+plainLength-len(nonce)]
	if !bytes.Equal(plain[4+plainLength-len(nonce):4+plainLength], nonce) {
		return nil, ua.BadIdentityTokenInvalid
	}
	return secret, nil
}

// handleCloseSession closes the session and its subscriptions.
func (srv *Server) handleCloseSession(ch *serverSecureChannel, requestID uint32, req *ua.CloseSessionRequest) {
	session, ok := srv.sessionManager.Get(req.RequestHeader.AuthenticationToken)
	if !ok {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadSessionIDInvalid)
		return
	}
	srv.sessionManager.Delete(session)
	srv.logger.WithField("session_id", session.SessionID()).Debug("session closed")
	ch.Write(
		&ua.CloseSessionResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
		},
		requestID,
	)
}

// handleBrowse returns the references of each node. A result larger than RequestedMaxReferencesPerNode
// returns a continuation point.
func (srv *Server) handleBrowse(ch *serverSecureChannel, requestID uint32, req *ua.BrowseRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	if code := checkOperationCount(len(req.NodesToBrowse), srv.serverCapabilities.MaxNodesPerBrowse); code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	if req.View.ViewID != nil {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadViewIDUnknown)
		return
	}
	ctx, cancel := sessionContext(session, &req.RequestHeader)
	defer cancel()
	max := int(req.RequestedMaxReferencesPerNode)
	results := make([]ua.BrowseResult, len(req.NodesToBrowse))
	for i, desc := range req.NodesToBrowse {
		refs, status := srv.addressSpace.Browse(ctx, desc)
		if status.IsBad() {
			results[i] = ua.BrowseResult{StatusCode: status}
			continue
		}
		results[i] = pageReferences(session, refs, max)
	}
	ch.Write(
		&ua.BrowseResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Results:        results,
		},
		requestID,
	)
}

// pageReferences returns up to max references, storing the rest with a continuation point.
func pageReferences(session *Session, refs []ua.ReferenceDescription, max int) ua.BrowseResult {
	if max <= 0 || len(refs) <= max {
		return ua.BrowseResult{StatusCode: ua.Good, References: refs}
	}
	cp, err := session.addBrowseContinuationPoint(refs[max:], max)
	if err != nil {
		return ua.BrowseResult{StatusCode: ua.BadNoContinuationPoints}
	}
	return ua.BrowseResult{StatusCode: ua.Good, ContinuationPoint: ua.ByteString(cp), References: refs[:max]}
}

// handleBrowseNext continues or releases browse continuation points.
func (srv *Server) handleBrowseNext(ch *serverSecureChannel, requestID uint32, req *ua.BrowseNextRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	if code := checkOperationCount(len(req.ContinuationPoints), srv.serverCapabilities.MaxNodesPerBrowse); code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	results := make([]ua.BrowseResult, len(req.ContinuationPoints))
	for i, cp := range req.ContinuationPoints {
		refs, max, ok := session.removeBrowseContinuationPoint([]byte(cp))
		if !ok {
			results[i] = ua.BrowseResult{StatusCode: ua.BadContinuationPointInvalid}
			continue
		}
		if req.ReleaseContinuationPoints {
			results[i] = ua.BrowseResult{StatusCode: ua.Good}
			continue
		}
		results[i] = pageReferences(session, refs, max)
	}
	ch.Write(
		&ua.BrowseNextResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Results:        results,
		},
		requestID,
	)
}

// handleRead returns one value for each node to read.
func (srv *Server) handleRead(ch *serverSecureChannel, requestID uint32, req *ua.ReadRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	if code := checkOperationCount(len(req.NodesToRead), srv.serverCapabilities.MaxNodesPerRead); code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	if req.MaxAge < 0 {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadMaxAgeInvalid)
		return
	}
	if req.TimestampsToReturn < ua.TimestampsToReturnSource || req.TimestampsToReturn > ua.TimestampsToReturnNeither {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadTimestampsToReturnInvalid)
		return
	}
	ctx, cancel := sessionContext(session, &req.RequestHeader)
	defer cancel()
	results := make([]ua.DataValue, len(req.NodesToRead))
	for i, n := range req.NodesToRead {
		results[i] = srv.addressSpace.Read(ctx, n, req.TimestampsToReturn)
	}
	ch.Write(
		&ua.ReadResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Results:        results,
		},
		requestID,
	)
}

// handleWrite sets the value of each node to write.
func (srv *Server) handleWrite(ch *serverSecureChannel, requestID uint32, req *ua.WriteRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	if code := checkOperationCount(len(req.NodesToWrite), srv.serverCapabilities.MaxNodesPerWrite); code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	ctx, cancel := sessionContext(session, &req.RequestHeader)
	defer cancel()
	results := make([]ua.StatusCode, len(req.NodesToWrite))
	for i, n := range req.NodesToWrite {
		results[i] = srv.addressSpace.Write(ctx, n)
	}
	ch.Write(
		&ua.WriteResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Results:        results,
		},
		requestID,
	)
}

// handleHistoryRead returns the raw values stored for each node.
func (srv *Server) handleHistoryRead(ch *serverSecureChannel, requestID uint32, req *ua.HistoryReadRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	if code := checkOperationCount(len(req.NodesToRead), srv.serverCapabilities.MaxNodesPerHistoryReadData); code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	details, ok := req.HistoryReadDetails.(ua.ReadRawModifiedDetails)
	if !ok {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadHistoryOperationUnsupported)
		return
	}
	ctx, cancel := sessionContext(session, &req.RequestHeader)
	defer cancel()
	results := make([]ua.HistoryReadResult, len(req.NodesToRead))
	for i, n := range req.NodesToRead {
		if req.ReleaseContinuationPoints {
			results[i] = ua.HistoryReadResult{StatusCode: ua.Good}
			continue
		}
		results[i] = srv.addressSpace.HistoryRead(ctx, details, n, req.TimestampsToReturn)
	}
	ch.Write(
		&ua.HistoryReadResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Results:        results,
		},
		requestID,
	)
}

// handleCall invokes each method.
func (srv *Server) handleCall(ch *serverSecureChannel, requestID uint32, req *ua.CallRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	if code := checkOperationCount(len(req.MethodsToCall), srv.serverCapabilities.MaxNodesPerMethodCall); code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	ctx, cancel := sessionContext(session, &req.RequestHeader)
	defer cancel()
	results := make([]ua.CallMethodResult, len(req.MethodsToCall))
	for i, m := range req.MethodsToCall {
		results[i] = srv.addressSpace.Call(ctx, m)
	}
	ch.Write(
		&ua.CallResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Results:        results,
		},
		requestID,
	)
}

// sessionSubscription returns the subscription when it belongs to the session.
func (srv *Server) sessionSubscription(session *Session, id uint32) (*Subscription, bool) {
	sub, ok := srv.subscriptionManager.Get(id)
	if !ok || sub.session != session {
		return nil, false
	}
	return sub, true
}

// handleCreateMonitoredItems creates and starts monitored items in a subscription.
func (srv *Server) handleCreateMonitoredItems(ch *serverSecureChannel, requestID uint32, req *ua.CreateMonitoredItemsRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	sub, ok := srv.sessionSubscription(session, req.SubscriptionID)
	if !ok {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadSubscriptionIDInvalid)
		return
	}
	if code := checkOperationCount(len(req.ItemsToCreate), srv.serverCapabilities.MaxMonitoredItemsPerCall); code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	if req.TimestampsToReturn < ua.TimestampsToReturnSource || req.TimestampsToReturn > ua.TimestampsToReturnNeither {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadTimestampsToReturnInvalid)
		return
	}
	ctx, cancel := sessionContext(session, &req.RequestHeader)
	defer cancel()
	results := sub.createMonitoredItems(ctx, req.ItemsToCreate, req.TimestampsToReturn)
	ch.Write(
		&ua.CreateMonitoredItemsResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Results:        results,
		},
		requestID,
	)
}

// handleModifyMonitoredItems modifies the parameters of monitored items.
func (srv *Server) handleModifyMonitoredItems(ch *serverSecureChannel, requestID uint32, req *ua.ModifyMonitoredItemsRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	sub, ok := srv.sessionSubscription(session, req.SubscriptionID)
	if !ok {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadSubscriptionIDInvalid)
		return
	}
	if code := checkOperationCount(len(req.ItemsToModify), srv.serverCapabilities.MaxMonitoredItemsPerCall); code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	ctx, cancel := sessionContext(session, &req.RequestHeader)
	defer cancel()
	results := make([]ua.MonitoredItemModifyResult, len(req.ItemsToModify))
	for i, m := range req.ItemsToModify {
		item, ok := sub.FindItem(m.MonitoredItemID)
		if !ok {
			results[i] = ua.MonitoredItemModifyResult{StatusCode: ua.BadMonitoredItemIDInvalid}
			continue
		}
		results[i] = item.Modify(ctx, m)
	}
	ch.Write(
		&ua.ModifyMonitoredItemsResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Results:        results,
		},
		requestID,
	)
}

// handleSetMonitoringMode sets the monitoring mode of monitored items.
func (srv *Server) handleSetMonitoringMode(ch *serverSecureChannel, requestID uint32, req *ua.SetMonitoringModeRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	sub, ok := srv.sessionSubscription(session, req.SubscriptionID)
	if !ok {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadSubscriptionIDInvalid)
		return
	}
	if code := checkOperationCount(len(req.MonitoredItemIDs), srv.serverCapabilities.MaxMonitoredItemsPerCall); code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	ctx, cancel := sessionContext(session, &req.RequestHeader)
	defer cancel()
	results := make([]ua.StatusCode, len(req.MonitoredItemIDs))
	for i, id := range req.MonitoredItemIDs {
		item, ok := sub.FindItem(id)
		if !ok {
			results[i] = ua.BadMonitoredItemIDInvalid
			continue
		}
		results[i] = item.SetMonitoringMode(ctx, req.MonitoringMode)
	}
	ch.Write(
		&ua.SetMonitoringModeResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Results:        results,
		},
		requestID,
	)
}

// handleDeleteMonitoredItems stops and removes monitored items.
func (srv *Server) handleDeleteMonitoredItems(ch *serverSecureChannel, requestID uint32, req *ua.DeleteMonitoredItemsRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	sub, ok := srv.sessionSubscription(session, req.SubscriptionID)
	if !ok {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadSubscriptionIDInvalid)
		return
	}
	if code := checkOperationCount(len(req.MonitoredItemIDs), srv.serverCapabilities.MaxMonitoredItemsPerCall); code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	results := make([]ua.StatusCode, len(req.MonitoredItemIDs))
	for i, id := range req.MonitoredItemIDs {
		results[i] = sub.DeleteItem(id)
	}
	ch.Write(
		&ua.DeleteMonitoredItemsResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Results:        results,
		},
		requestID,
	)
}

// handleCreateSubscription creates a subscription and starts its publishing timer.
func (srv *Server) handleCreateSubscription(ch *serverSecureChannel, requestID uint32, req *ua.CreateSubscriptionRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	sub := NewSubscription(
		srv.subscriptionManager,
		session,
		req.RequestedPublishingInterval,
		req.RequestedLifetimeCount,
		req.RequestedMaxKeepAliveCount,
		req.MaxNotificationsPerPublish,
		req.PublishingEnabled,
		req.Priority,
	)
	if err := srv.subscriptionManager.Add(sub); err != nil {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadTooManySubscriptions)
		return
	}
	sub.startPublishing()
	sub.logger.Debug("subscription created")
	ch.Write(
		&ua.CreateSubscriptionResponse{
			ResponseHeader:            ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			SubscriptionID:            sub.id,
			RevisedPublishingInterval: sub.PublishingInterval(),
			RevisedLifetimeCount:      sub.LifetimeCount(),
			RevisedMaxKeepAliveCount:  sub.MaxKeepAliveCount(),
		},
		requestID,
	)
}

// handleModifySubscription revises the parameters of a subscription.
func (srv *Server) handleModifySubscription(ch *serverSecureChannel, requestID uint32, req *ua.ModifySubscriptionRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	sub, ok := srv.sessionSubscription(session, req.SubscriptionID)
	if !ok {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadSubscriptionIDInvalid)
		return
	}
	sub.Modify(req.RequestedPublishingInterval, req.RequestedLifetimeCount, req.RequestedMaxKeepAliveCount, req.MaxNotificationsPerPublish, req.Priority)
	ch.Write(
		&ua.ModifySubscriptionResponse{
			ResponseHeader:            ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			RevisedPublishingInterval: sub.PublishingInterval(),
			RevisedLifetimeCount:      sub.LifetimeCount(),
			RevisedMaxKeepAliveCount:  sub.MaxKeepAliveCount(),
		},
		requestID,
	)
}

// handleSetPublishingMode enables or disables publishing of subscriptions.
func (srv *Server) handleSetPublishingMode(ch *serverSecureChannel, requestID uint32, req *ua.SetPublishingModeRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	if len(req.SubscriptionIDs) == 0 {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadNothingToDo)
		return
	}
	results := make([]ua.StatusCode, len(req.SubscriptionIDs))
	for i, id := range req.SubscriptionIDs {
		sub, ok := srv.sessionSubscription(session, id)
		if !ok {
			results[i] = ua.BadSubscriptionIDInvalid
			continue
		}
		sub.SetPublishingMode(req.PublishingEnabled)
		results[i] = ua.Good
	}
	ch.Write(
		&ua.SetPublishingModeResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Results:        results,
		},
		requestID,
	)
}

// handlePublish acknowledges notification messages, then queues the request for the subscriptions
// of the session. A stored status change is answered at once.
func (srv *Server) handlePublish(ch *serverSecureChannel, requestID uint32, req *ua.PublishRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}

	// process sub ack's
	results := make([]ua.StatusCode, len(req.SubscriptionAcknowledgements))
	for i, sa := range req.SubscriptionAcknowledgements {
		if sub, ok := srv.sessionSubscription(session, sa.SubscriptionID); ok {
			results[i] = sub.Acknowledge(sa.SequenceNumber)
		} else {
			results[i] = ua.BadSubscriptionIDInvalid
		}
	}

	// process status changes
	if res, ok := session.removeStatusChange(); ok {
		res.ResponseHeader = ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good)
		res.AvailableSequenceNumbers = []uint32{}
		res.Results = results
		ch.Write(&res, requestID)
		return
	}

	subs := srv.subscriptionManager.bySession(session)
	if len(subs) == 0 {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadNoSubscription)
		return
	}
	session.addPublishRequest(&publishOp{ch: ch, requestID: requestID, req: req, results: results, received: time.Now()})

	// late subscriptions are served in order of priority.
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].priority > subs[j].priority
	})
	for _, sub := range subs {
		sub.triggerPublish()
	}
}

// handleRepublish returns a retained notification message.
func (srv *Server) handleRepublish(ch *serverSecureChannel, requestID uint32, req *ua.RepublishRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	sub, ok := srv.sessionSubscription(session, req.SubscriptionID)
	if !ok {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadSubscriptionIDInvalid)
		return
	}
	msg, code := sub.Republish(req.RetransmitSequenceNumber)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	ch.Write(
		&ua.RepublishResponse{
			ResponseHeader:      ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			NotificationMessage: msg,
		},
		requestID,
	)
}

// handleDeleteSubscriptions deletes subscriptions of the session.
func (srv *Server) handleDeleteSubscriptions(ch *serverSecureChannel, requestID uint32, req *ua.DeleteSubscriptionsRequest) {
	session, code := srv.activeSession(ch, &req.RequestHeader)
	if code.IsBad() {
		srv.writeFault(ch, requestID, &req.RequestHeader, code)
		return
	}
	if len(req.SubscriptionIDs) == 0 {
		srv.writeFault(ch, requestID, &req.RequestHeader, ua.BadNothingToDo)
		return
	}
	results := make([]ua.StatusCode, len(req.SubscriptionIDs))
	for i, id := range req.SubscriptionIDs {
		sub, ok := srv.sessionSubscription(session, id)
		if !ok {
			results[i] = ua.BadSubscriptionIDInvalid
			continue
		}
		srv.subscriptionManager.Delete(sub)
		results[i] = ua.Good
	}
	ch.Write(
		&ua.DeleteSubscriptionsResponse{
			ResponseHeader: ua.NewResponseHeader(time.Now(), req.RequestHeader.RequestHandle, ua.Good),
			Results:        results,
		},
		requestID,
	)
}

func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
