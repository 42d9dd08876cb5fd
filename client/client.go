// Copyright 2021 Converter Systems LLC. All rights reserved.

package client

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/awcullen/uastack/uasc"
	"github.com/sirupsen/logrus"
)

// Dial returns a secure channel to the OPC UA server with the given URL and options.
func Dial(ctx context.Context, endpointURL string, opts ...Option) (c *Client, err error) {

	cli := newClient()

	// apply each option to the default
	for _, opt := range opts {
		if err := opt(cli); err != nil {
			return nil, err
		}
	}

	// get endpoints from discovery url
	req := &ua.GetEndpointsRequest{
		EndpointURL: endpointURL,
		ProfileURIs: []string{ua.TransportProfileURIUaTcpTransport},
	}
	res, err := cli.discover(ctx, endpointURL, func(ch *clientSecureChannel) (ua.ServiceResponse, error) {
		return ch.Request(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	selected, err := cli.selectEndpoint(res.(*ua.GetEndpointsResponse).Endpoints)
	if err != nil {
		return nil, err
	}
	cli.endpointURL = selected.EndpointURL
	cli.securityPolicyURI = selected.SecurityPolicyURI
	cli.securityMode = selected.SecurityMode
	cli.serverCertificate = []byte(selected.ServerCertificate)
	cli.userTokenPolicies = selected.UserIdentityTokens

	cli.localDescription = ua.ApplicationDescription{
		ApplicationName: ua.LocalizedText{Text: cli.applicationName},
		ApplicationType: ua.ApplicationTypeClient,
	}
	if cli.certificateProvider != nil {
		// if cert has URI then update local description
		cli.localDescription.ApplicationURI = ua.ApplicationURIOf(cli.certificateProvider.Certificate())
	}

	cli.channel, err = newClientSecureChannel(
		cli.endpointURL,
		cli.securityPolicyURI,
		cli.securityMode,
		cli.certificateProvider,
		cli.serverCertificate,
		cli.limits,
		cli.validation,
		cli.timeout,
		cli.tokenLifetime,
		cli.logger,
	)
	if err != nil {
		return nil, err
	}
	if err := cli.channel.Open(ctx); err != nil {
		return nil, err
	}

	// open session and read the namespace table
	if err := cli.open(ctx); err != nil {
		cli.Abort(ctx)
		return nil, err
	}

	return cli, nil
}

// Client for exchanging binary encoded requests and responses with an OPC UA server.
// Uses TCP with the binary security protocol UA-SecureConversation 1.0 and the binary message encoding UA-Binary 1.0.
type Client struct {
	channel             *clientSecureChannel
	logger              logrus.FieldLogger
	localDescription    ua.ApplicationDescription
	endpointURL         string
	securityPolicyURI   string
	securityMode        ua.MessageSecurityMode
	serverCertificate   []byte
	userTokenPolicies   []ua.UserTokenPolicy
	userIdentity        interface{}
	sessionID           ua.NodeID
	sessionName         string
	applicationName     string
	sessionTimeout      float64
	certificateProvider ua.CertificateProvider
	validation          ua.CertificateValidationOptions
	timeout             time.Duration
	tokenLifetime       uint32
	limits              uasc.TransportLimits
	publishDepth        int
	namespaceURIs       []string
	serverURIs          []string

	subsLock      sync.Mutex
	subscriptions map[uint32]*Subscription
	publishing    bool
	stopPublish   chan struct{}
	closed        atomic.Bool
}

func newClient() *Client {
	return &Client{
		logger:            logrus.StandardLogger(),
		userIdentity:      AnonymousIdentity{},
		applicationName:   "uastack",
		sessionTimeout:    defaultSessionTimeout,
		securityPolicyURI: ua.SecurityPolicyURIBestAvailable,
		timeout:           defaultTimeout,
		tokenLifetime:     defaultTokenRequestedLifetime,
		limits:            uasc.DefaultTransportLimits(),
		publishDepth:      defaultPublishDepth,
		subscriptions:     make(map[uint32]*Subscription),
		stopPublish:       make(chan struct{}),
	}
}

// selectEndpoint returns the most secure endpoint matching the options of the client.
func (ch *Client) selectEndpoint(endpoints []ua.EndpointDescription) (*ua.EndpointDescription, error) {
	// order endpoints by decreasing security level.
	sort.SliceStable(endpoints, func(i, j int) bool {
		return endpoints[i].SecurityLevel > endpoints[j].SecurityLevel
	})

	// if client certificate is not set then limit secuity policy to none
	securityPolicyURI := ch.securityPolicyURI
	if securityPolicyURI == ua.SecurityPolicyURIBestAvailable && ch.certificateProvider == nil {
		securityPolicyURI = ua.SecurityPolicyURINone
	}

	for i := range endpoints {
		e := &endpoints[i]
		// filter out unsupported policy uri and transport
		if _, err := ua.NewSecurityPolicy(e.SecurityPolicyURI); err != nil {
			continue
		}
		if e.TransportProfileURI != "" && e.TransportProfileURI != ua.TransportProfileURIUaTcpTransport {
			continue
		}
		if securityPolicyURI != ua.SecurityPolicyURIBestAvailable && e.SecurityPolicyURI != securityPolicyURI {
			continue
		}
		if ch.securityMode != ua.MessageSecurityModeInvalid && e.SecurityMode != ch.securityMode {
			continue
		}
		if e.SecurityPolicyURI != ua.SecurityPolicyURINone && ch.certificateProvider == nil {
			continue
		}
		return e, nil
	}
	return nil, ua.BadSecurityPolicyRejected
}

// discover opens a channel without security, sends one discovery request, and closes the channel.
func (ch *Client) discover(ctx context.Context, endpointURL string, f func(*clientSecureChannel) (ua.ServiceResponse, error)) (ua.ServiceResponse, error) {
	channel, err := newClientSecureChannel(
		endpointURL,
		ua.SecurityPolicyURINone,
		ua.MessageSecurityModeNone,
		nil,
		nil,
		ch.limits,
		ch.validation,
		ch.timeout,
		ch.tokenLifetime,
		ch.logger,
	)
	if err != nil {
		return nil, err
	}
	if err := channel.Open(ctx); err != nil {
		return nil, err
	}
	res, err := f(channel)
	if err != nil {
		channel.Abort()
		return nil, err
	}
	channel.Close(ctx)
	return res, nil
}

// EndpointURL gets the EndpointURL of the server.
func (ch *Client) EndpointURL() string {
	return ch.endpointURL
}

// SecurityPolicyURI gets the SecurityPolicyURI of the secure channel.
func (ch *Client) SecurityPolicyURI() string {
	return ch.securityPolicyURI
}

// SecurityMode gets the MessageSecurityMode of the secure channel.
func (ch *Client) SecurityMode() ua.MessageSecurityMode {
	return ch.securityMode
}

// SessionID gets the id of the current session.
func (ch *Client) SessionID() ua.NodeID {
	return ch.sessionID
}

// NamespaceURIs gets the namespace table of the server.
func (ch *Client) NamespaceURIs() []string {
	return ch.namespaceURIs
}

// ServerURIs gets the server table of the server.
func (ch *Client) ServerURIs() []string {
	return ch.serverURIs
}

// Limits gets the transport limits negotiated with the server.
func (ch *Client) Limits() uasc.TransportLimits {
	return ch.channel.Limits()
}

// Request sends a service request to the server and returns the response.
func (ch *Client) request(ctx context.Context, req ua.ServiceRequest) (ua.ServiceResponse, error) {
	return ch.channel.Request(ctx, req)
}

// Close closes the session and secure channel.
func (ch *Client) Close(ctx context.Context) error {
	if !ch.closed.CompareAndSwap(false, true) {
		return nil
	}
	ch.stopPublishing()
	var request = &ua.CloseSessionRequest{
		DeleteSubscriptions: true,
	}
	_, err := ch.closeSession(ctx, request)
	if err != nil {
		ch.channel.Abort()
		return err
	}
	return ch.channel.Close(ctx)
}

// Abort closes the client abruptly.
func (ch *Client) Abort(ctx context.Context) error {
	if !ch.closed.CompareAndSwap(false, true) {
		return nil
	}
	ch.stopPublishing()
	ch.channel.Abort()
	return nil
}
