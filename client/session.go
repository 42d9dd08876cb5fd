// Copyright 2021 Converter Systems LLC. All rights reserved.

package client

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/binary"

	"github.com/awcullen/uastack/ua"
)

// AnonymousIdentity is a user identity without credentials.
type AnonymousIdentity struct{}

// UserNameIdentity is a user identity given by a user name and password.
type UserNameIdentity struct {
	UserName string
	Password string
}

// open creates and activates a session, then reads the namespace and server tables.
func (ch *Client) open(ctx context.Context) error {
	localNonce, err := ua.RandomNonce(nonceLength)
	if err != nil {
		return err
	}
	localCertificate := ch.channel.state.LocalCertificate()

	var createSessionRequest = &ua.CreateSessionRequest{
		ClientDescription:       ch.localDescription,
		EndpointURL:             ch.endpointURL,
		SessionName:             ch.sessionName,
		ClientNonce:             ua.ByteString(localNonce),
		ClientCertificate:       ua.ByteString(localCertificate),
		RequestedSessionTimeout: ch.sessionTimeout,
		MaxResponseMessageSize:  ch.limits.MaxMessageSize,
	}
	createSessionResponse, err := ch.createSession(ctx, createSessionRequest)
	if err != nil {
		return err
	}
	ch.sessionID = createSessionResponse.SessionID
	ch.channel.SetAuthenticationToken(createSessionResponse.AuthenticationToken)
	remoteNonce := []byte(createSessionResponse.ServerNonce)

	policy := ch.channel.state.SecurityPolicy()
	var clientSignature ua.SignatureData
	if ua.IsSecure(policy) {
		// verify the server's certificate is the same as the certificate from the selected endpoint.
		if !bytes.Equal(ch.serverCertificate, []byte(createSessionResponse.ServerCertificate)) {
			return ua.BadCertificateInvalid
		}
		// verify the server's signature.
		if err := policy.RSAVerify(ch.channel.state.RemotePublicKey(), concat(localCertificate, localNonce), []byte(createSessionResponse.ServerSignature.Signature)); err != nil {
			return ua.BadApplicationSignatureInvalid
		}
		// create client signature
		signature, err := ch.certificateProvider.Sign(policy, concat(ch.serverCertificate, remoteNonce))
		if err != nil {
			return err
		}
		clientSignature = ua.SignatureData{
			Signature: ua.ByteString(signature),
			Algorithm: policy.RSASignatureURI(),
		}
	}

	identityToken, err := ch.identityToken(remoteNonce)
	if err != nil {
		return err
	}
	var activateSessionRequest = &ua.ActivateSessionRequest{
		ClientSignature:   clientSignature,
		LocaleIDs:         []string{"en"},
		UserIdentityToken: identityToken,
	}
	if _, err := ch.activateSession(ctx, activateSessionRequest); err != nil {
		return err
	}
	ch.channel.startRenewalTimer()

	// read the namespace array and server array
	readResponse, err := ch.Read(ctx, &ua.ReadRequest{
		NodesToRead: []ua.ReadValueID{
			{NodeID: ua.VariableIDServerNamespaceArray, AttributeID: ua.AttributeIDValue},
			{NodeID: ua.VariableIDServerServerArray, AttributeID: ua.AttributeIDValue},
		},
	})
	if err != nil && err != ua.GoodResultsMayBeIncomplete {
		return err
	}
	if len(readResponse.Results) == 2 {
		if ns, ok := readResponse.Results[0].Value.([]string); ok {
			ch.namespaceURIs = ns
		}
		if svrs, ok := readResponse.Results[1].Value.([]string); ok {
			ch.serverURIs = svrs
		}
		ch.channel.SetNamespaceURIs(ch.namespaceURIs, ch.serverURIs)
	}
	ch.logger.WithField("session_id", ch.sessionID).Info("session activated")
	return nil
}

// identityToken returns the UserIdentityToken for the user identity of the client.
// Supported tokens are AnonymousIdentityToken and UserNameIdentityToken.
func (ch *Client) identityToken(serverNonce []byte) (ua.ExtensionObject, error) {
	switch ui := ch.userIdentity.(type) {

	case UserNameIdentity:
		tokenPolicy := ch.findTokenPolicy(ua.UserTokenTypeUserName)
		if tokenPolicy == nil {
			return nil, ua.BadIdentityTokenRejected
		}
		secPolicyURI := tokenPolicy.SecurityPolicyURI
		if secPolicyURI == "" {
			secPolicyURI = ch.securityPolicyURI
		}
		secPolicy, err := ua.NewSecurityPolicy(secPolicyURI)
		if err != nil {
			return nil, ua.BadIdentityTokenRejected
		}
		if !ua.IsSecure(secPolicy) {
			return ua.UserNameIdentityToken{
				UserName: ui.UserName,
				Password: ua.ByteString(ui.Password),
				PolicyID: tokenPolicy.PolicyID,
			}, nil
		}
		publickey, err := ua.PublicKeyOf(ch.serverCertificate)
		if err != nil {
			return nil, ua.BadIdentityTokenRejected
		}
		cipherText, err := encryptSecret(secPolicy, publickey, []byte(ui.Password), serverNonce)
		if err != nil {
			return nil, err
		}
		return ua.UserNameIdentityToken{
			UserName:            ui.UserName,
			Password:            cipherText,
			EncryptionAlgorithm: secPolicy.RSAKeyWrapURI(),
			PolicyID:            tokenPolicy.PolicyID,
		}, nil

	default:
		tokenPolicy := ch.findTokenPolicy(ua.UserTokenTypeAnonymous)
		if tokenPolicy == nil {
			return nil, ua.BadIdentityTokenRejected
		}
		return ua.AnonymousIdentityToken{PolicyID: tokenPolicy.PolicyID}, nil
	}
}

func (ch *Client) findTokenPolicy(tokenType ua.UserTokenType) *ua.UserTokenPolicy {
	for i := range ch.userTokenPolicies {
		if ch.userTokenPolicies[i].TokenType == tokenType {
			return &ch.userTokenPolicies[i]
		}
	}
	return nil
}

// encryptSecret encrypts the length-prefixed secret and nonce with the public key, one block at a time.
func encryptSecret(policy ua.SecurityPolicy, publickey *rsa.PublicKey, secret, nonce []byte) (ua.ByteString, error) {
	plainBuf := ua.NewPartitionBuffer()
	defer plainBuf.Reset()
	cipherBuf := ua.NewPartitionBuffer()
	defer cipherBuf.Reset()
	binary.Write(plainBuf, binary.LittleEndian, uint32(len(secret)+len(nonce)))
	plainBuf.Write(secret)
	plainBuf.Write(nonce)
	plainText := make([]byte, publickey.Size()-policy.RSAPaddingSize())
	for plainBuf.Len() > 0 {
		n, _ := plainBuf.Read(plainText)
		cipherText, err := policy.RSAEncrypt(publickey, plainText[:n])
		if err != nil {
			return "", err
		}
		cipherBuf.Write(cipherText)
	}
	cipherBytes := make([]byte, cipherBuf.Len())
	cipherBuf.Read(cipherBytes)
	return ua.ByteString(cipherBytes), nil
}

func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
