// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/awcullen/uastack/uasc"
	"github.com/gammazero/workerpool"
	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
)

const (
	// the smallest send or receive buffer accepted.
	minBufferSize uint32 = uasc.MinBufferSize
	// the default number of milliseconds that a session may be unused before being closed by the server. (2 min)
	defaultSessionTimeout float64 = 120 * 1000
	// the number of milliseconds a session may be unused, when the client requests less.
	minSessionTimeout float64 = 10 * 1000
	// the default number of sessions that may be active.
	defaultMaxSessionCount uint32 = 0
	// the default number of subscriptions that may be active.
	defaultMaxSubscriptionCount uint32 = 0
	// the default number of worker threads that may be created.
	defaultMaxWorkerThreads int = 4
	// the lifetime of a channel token, when the client requests less or more.
	minTokenLifetime uint32 = 10 * 1000
	maxTokenLifetime uint32 = 60 * 60 * 1000
	// the length of nonce in bytes.
	nonceLength int = 32
)

// ServerCapabilities holds the operation limits of the server.
type ServerCapabilities struct {
	MinSupportedSampleRate      float64
	MaxBrowseContinuationPoints uint16
	MaxNodesPerRead             uint32
	MaxNodesPerWrite            uint32
	MaxNodesPerBrowse           uint32
	MaxNodesPerMethodCall       uint32
	MaxNodesPerHistoryReadData  uint32
	MaxMonitoredItemsPerCall    uint32
	MaxNotificationsPerPublish  uint32
}

// NewServerCapabilities returns the default limits.
func NewServerCapabilities() ServerCapabilities {
	return ServerCapabilities{
		MinSupportedSampleRate:      100,
		MaxBrowseContinuationPoints: 50,
		MaxNodesPerRead:             1000,
		MaxNodesPerWrite:            1000,
		MaxNodesPerBrowse:           1000,
		MaxNodesPerMethodCall:       1000,
		MaxNodesPerHistoryReadData:  1000,
		MaxMonitoredItemsPerCall:    1000,
		MaxNotificationsPerPublish:  1000,
	}
}

// Server implements an OpcUa server for clients.
type Server struct {
	sync.RWMutex
	localDescription              ua.ApplicationDescription
	endpoints                     []ua.EndpointDescription
	certPath                      string
	keyPath                       string
	endpointURL                   string
	allowSecurityPolicyNone       bool
	allowAnonymousIdentity        bool
	validation                    ua.CertificateValidationOptions
	userNameIdentityAuthenticator UserNameIdentityAuthenticator
	maxChannelCount               uint32
	maxSessionCount               uint32
	maxSubscriptionCount          uint32
	maxWorkerThreads              int
	maxSessionTimeout             float64
	serverCapabilities            ServerCapabilities
	limits                        uasc.TransportLimits
	logger                        logrus.FieldLogger
	certificateProvider           ua.CertificateProvider
	addressSpace                  AddressSpace
	registry                      *ua.TypeRegistry
	listener                      net.Listener
	closed                        chan struct{}
	closing                       chan struct{}
	stateSemaphore                chan struct{}
	started                       bool
	state                         ua.ServerState
	workerpool                    *workerpool.WorkerPool
	poolLock                      sync.RWMutex
	poolStopped                   bool
	channelManager                *ChannelManager
	sessionManager                *SessionManager
	subscriptionManager           *SubscriptionManager
	scheduler                     *Scheduler
	serverURIs                    []string
	startTime                     time.Time
}

// New initializes a new instance of the Server. A certificate and key are read from certPath and keyPath,
// and are created if the files do not exist.
func New(localDescription ua.ApplicationDescription, certPath, keyPath, endpointURL string, options ...Option) (*Server, error) {
	srv := &Server{
		localDescription:     localDescription,
		certPath:             certPath,
		keyPath:              keyPath,
		endpointURL:          endpointURL,
		maxSessionCount:      defaultMaxSessionCount,
		maxSubscriptionCount: defaultMaxSubscriptionCount,
		maxWorkerThreads:     defaultMaxWorkerThreads,
		maxSessionTimeout:    defaultSessionTimeout,
		serverCapabilities:   NewServerCapabilities(),
		limits:               uasc.DefaultTransportLimits(),
		logger:               logrus.StandardLogger(),
		closed:               make(chan struct{}),
		closing:              make(chan struct{}),
		stateSemaphore:       make(chan struct{}, 1),
		serverURIs:           []string{localDescription.ApplicationURI},
		registry:             ua.NewStandardTypeRegistry(),
		state:                ua.ServerStateShutdown,
		startTime:            time.Now(),
	}

	// apply each option to the default
	for _, opt := range options {
		if err := opt(srv); err != nil {
			return nil, err
		}
	}

	provider, err := loadOrCreateCertificate(srv.localDescription, certPath, keyPath, srv.logger)
	if err != nil {
		return nil, err
	}
	srv.certificateProvider = provider
	if srv.addressSpace == nil {
		srv.addressSpace = NewMemoryAddressSpace(srv.localDescription.ApplicationURI)
	}
	if m, ok := srv.addressSpace.(*MemoryAddressSpace); ok {
		m.bindServer(srv)
	}

	srv.workerpool = workerpool.New(srv.maxWorkerThreads)
	srv.channelManager = NewChannelManager(srv)
	srv.sessionManager = NewSessionManager(srv)
	srv.subscriptionManager = NewSubscriptionManager(srv)
	srv.scheduler = NewScheduler(srv)
	srv.endpoints = srv.buildEndpointDescriptions()
	return srv, nil
}

// loadOrCreateCertificate reads the certificate provider from the files, creating a self-signed certificate
// when they are missing.
func loadOrCreateCertificate(desc ua.ApplicationDescription, certPath, keyPath string, logger logrus.FieldLogger) (ua.CertificateProvider, error) {
	provider, err := ua.LoadCertificateProvider(certPath, keyPath)
	if err == nil {
		return provider, nil
	}
	logger.WithField("cert_path", certPath).Info("creating self-signed certificate")
	cert, key, err := ua.CreateSelfSignedCertificate(desc.ApplicationName.Text)
	if err != nil {
		return nil, err
	}
	if err := ua.WriteCertificateFiles(cert, key, certPath, keyPath); err != nil {
		return nil, err
	}
	return ua.NewRSACertificateProvider(cert, key), nil
}

// LocalDescription gets the application description.
func (srv *Server) LocalDescription() ua.ApplicationDescription {
	srv.RLock()
	defer srv.RUnlock()
	return srv.localDescription
}

// LocalCertificate gets the certificate for the local application.
func (srv *Server) LocalCertificate() []byte {
	return srv.certificateProvider.Certificate()
}

// EndpointURL gets the endpoint url.
func (srv *Server) EndpointURL() string {
	srv.RLock()
	defer srv.RUnlock()
	return srv.endpointURL
}

// Endpoints gets the endpoint descriptions.
func (srv *Server) Endpoints() []ua.EndpointDescription {
	srv.RLock()
	defer srv.RUnlock()
	return srv.endpoints
}

// Closing gets a channel that broadcasts the closing of the server.
func (srv *Server) Closing() <-chan struct{} {
	return srv.closing
}

// State gets the ServerState.
func (srv *Server) State() ua.ServerState {
	srv.RLock()
	defer srv.RUnlock()
	return srv.state
}

func (srv *Server) setState(value ua.ServerState) {
	srv.Lock()
	srv.state = value
	srv.Unlock()
}

// StartTime gets the time the server was created.
func (srv *Server) StartTime() time.Time {
	return srv.startTime
}

// NamespaceURIs gets the namespace uris.
func (srv *Server) NamespaceURIs() []string {
	return srv.addressSpace.NamespaceURIs()
}

// ServerURIs gets the server uris.
func (srv *Server) ServerURIs() []string {
	srv.RLock()
	defer srv.RUnlock()
	return srv.serverURIs
}

// AddressSpace gets the nodes served.
func (srv *Server) AddressSpace() AddressSpace {
	return srv.addressSpace
}

// ChannelManager gets the secure channel manager.
func (srv *Server) ChannelManager() *ChannelManager {
	return srv.channelManager
}

// SessionManager gets the session manager.
func (srv *Server) SessionManager() *SessionManager {
	return srv.sessionManager
}

// SubscriptionManager gets the subscription manager.
func (srv *Server) SubscriptionManager() *SubscriptionManager {
	return srv.subscriptionManager
}

// Scheduler gets the poll group scheduler.
func (srv *Server) Scheduler() *Scheduler {
	return srv.scheduler
}

// ServerCapabilities gets the capabilities of the server.
func (srv *Server) ServerCapabilities() ServerCapabilities {
	return srv.serverCapabilities
}

// ListenAndServe listens on the EndpointURL for incoming connections and then
// handles service requests.
// ListenAndServe always returns a non-nil error. After server Close,
// the returned error is BadServerHalted.
func (srv *Server) ListenAndServe() error {
	srv.stateSemaphore <- struct{}{}
	if srv.started {
		<-srv.stateSemaphore
		return ua.BadInternalError
	}
	baseURL, err := url.Parse(srv.endpointURL)
	if err != nil {
		<-srv.stateSemaphore
		return ua.BadTCPEndpointURLInvalid
	}
	l, err := net.Listen("tcp", ":"+baseURL.Port())
	if err != nil {
		srv.logger.WithError(err).Error("error opening secure channel listener")
		<-srv.stateSemaphore
		return ua.BadResourceUnavailable
	}
	srv.listener = l
	srv.started = true
	srv.setState(ua.ServerStateRunning)
	<-srv.stateSemaphore
	srv.logger.WithField("endpoint_url", srv.endpointURL).Info("server listening")
	return srv.serve(l)
}

// Close server.
func (srv *Server) Close() error {
	return srv.shutdown(true)
}

// Abort the server.
func (srv *Server) Abort() error {
	return srv.shutdown(false)
}

func (srv *Server) shutdown(wait bool) error {
	srv.stateSemaphore <- struct{}{}
	defer func() { <-srv.stateSemaphore }()
	if !srv.started || srv.State() != ua.ServerStateRunning {
		return ua.BadInternalError
	}
	srv.setState(ua.ServerStateShutdown)

	// close subscriptions and poll groups
	close(srv.closing)

	// close listener
	if err := srv.listener.Close(); err != nil {
		srv.logger.WithError(err).Warn("error closing secure channel listener")
	}

	// close channels, then stop workers.
	for _, ch := range srv.channelManager.snapshot() {
		ch.Close()
	}
	srv.poolLock.Lock()
	srv.poolStopped = true
	srv.poolLock.Unlock()
	if wait {
		srv.workerpool.StopWait()
	} else {
		srv.workerpool.Stop()
	}

	close(srv.closed)
	srv.logger.Info("server closed")
	return nil
}

// submit queues the task on the worker pool. It returns false once the server is stopping.
func (srv *Server) submit(task func()) bool {
	srv.poolLock.RLock()
	defer srv.poolLock.RUnlock()
	if srv.poolStopped {
		return false
	}
	srv.workerpool.Submit(task)
	return true
}

func (srv *Server) serve(l net.Listener) error {
	b := &backoff.Backoff{Min: 5 * time.Millisecond, Max: time.Second, Factor: 2}
	for {
		conn, err := l.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				time.Sleep(b.Duration())
				continue
			}
			select {
			case <-srv.closing:
				return ua.BadServerHalted
			default:
				return ua.BadTCPInternalError
			}
		}
		b.Reset()
		ch := newServerSecureChannel(srv, conn)
		go func(ch *serverSecureChannel) {
			if err := ch.Open(); err != nil {
				ch.logger.WithError(err).Debug("error opening secure channel")
				return
			}
			if err := srv.channelManager.Add(ch); err != nil {
				ch.Abort(ua.BadTCPServerTooBusy, "too many secure channels")
				return
			}
			ch.run()
		}(ch)
	}
}

// buildEndpointDescriptions returns the endpoints of the server, one per supported security policy and mode.
func (srv *Server) buildEndpointDescriptions() []ua.EndpointDescription {
	cert := ua.ByteString(srv.certificateProvider.Certificate())
	endpoints := make([]ua.EndpointDescription, 0, 7)
	userTokenPolicies := func(policyURI string) []ua.UserTokenPolicy {
		policies := []ua.UserTokenPolicy{}
		if srv.allowAnonymousIdentity {
			policies = append(policies, ua.UserTokenPolicy{
				PolicyID:  "Anonymous",
				TokenType: ua.UserTokenTypeAnonymous,
			})
		}
		if srv.userNameIdentityAuthenticator != nil {
			tokenPolicyURI := ""
			if policyURI == ua.SecurityPolicyURINone {
				// secure the password even when the channel is not.
				tokenPolicyURI = ua.SecurityPolicyURIBasic256Sha256
			}
			policies = append(policies, ua.UserTokenPolicy{
				PolicyID:          "UserName",
				TokenType:         ua.UserTokenTypeUserName,
				SecurityPolicyURI: tokenPolicyURI,
			})
		}
		return policies
	}
	add := func(policyURI string, mode ua.MessageSecurityMode, level byte) {
		endpoints = append(endpoints, ua.EndpointDescription{
			EndpointURL:         srv.endpointURL,
			Server:              srv.localDescription,
			ServerCertificate:   cert,
			SecurityMode:        mode,
			SecurityPolicyURI:   policyURI,
			UserIdentityTokens:  userTokenPolicies(policyURI),
			TransportProfileURI: ua.TransportProfileURIUaTcpTransport,
			SecurityLevel:       level,
		})
	}
	if srv.allowSecurityPolicyNone {
		add(ua.SecurityPolicyURINone, ua.MessageSecurityModeNone, 0)
	}
	add(ua.SecurityPolicyURIBasic256Sha256, ua.MessageSecurityModeSign, 3)
	add(ua.SecurityPolicyURIBasic256Sha256, ua.MessageSecurityModeSignAndEncrypt, 8)
	add(ua.SecurityPolicyURIAes128Sha256RsaOaep, ua.MessageSecurityModeSign, 4)
	add(ua.SecurityPolicyURIAes128Sha256RsaOaep, ua.MessageSecurityModeSignAndEncrypt, 9)
	add(ua.SecurityPolicyURIAes256Sha256RsaPss, ua.MessageSecurityModeSign, 5)
	add(ua.SecurityPolicyURIAes256Sha256RsaPss, ua.MessageSecurityModeSignAndEncrypt, 10)
	return endpoints
}

// findEndpoint returns the endpoint matching the policy and mode of a channel.
func (srv *Server) findEndpoint(policyURI string, mode ua.MessageSecurityMode) (ua.EndpointDescription, bool) {
	for _, ep := range srv.Endpoints() {
		if ep.SecurityPolicyURI == policyURI && ep.SecurityMode == mode {
			return ep, true
		}
	}
	return ua.EndpointDescription{}, false
}
