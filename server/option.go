// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"github.com/awcullen/uastack/ua"
	"github.com/sirupsen/logrus"
)

// Option is a functional option to be applied to a server during initialization.
type Option func(*Server) error

// WithSecurityPolicyNone sets whether to offer an endpoint with security policy of None. (default: false)
func WithSecurityPolicyNone(allow bool) Option {
	return func(srv *Server) error {
		srv.allowSecurityPolicyNone = allow
		return nil
	}
}

// WithInsecureSkipVerify skips verification of client certificate. Skips checking HostName, Expiration, and Authority.
func WithInsecureSkipVerify() Option {
	return func(srv *Server) error {
		srv.validation.SuppressHostName = true
		srv.validation.SuppressTimeInvalid = true
		srv.validation.SuppressChainInvalid = true
		return nil
	}
}

// WithTrustedCertificatesPaths sets the paths of the trusted client certificates or certificate authorities.
func WithTrustedCertificatesPaths(paths ...string) Option {
	return func(srv *Server) error {
		srv.validation.TrustedPaths = append(srv.validation.TrustedPaths, paths...)
		return nil
	}
}

// WithAnonymousIdentity sets whether to allow anonymous identity. (default: false)
func WithAnonymousIdentity(allow bool) Option {
	return func(srv *Server) error {
		srv.allowAnonymousIdentity = allow
		return nil
	}
}

// WithAuthenticateUserNameIdentityFunc sets the authenticate UserNameIdentity function.
func WithAuthenticateUserNameIdentityFunc(f AuthenticateUserNameIdentityFunc) Option {
	return func(srv *Server) error {
		srv.userNameIdentityAuthenticator = f
		return nil
	}
}

// WithMaxChannelCount sets the number of secure channels that may be open. (default: no limit)
func WithMaxChannelCount(value uint32) Option {
	return func(srv *Server) error {
		srv.maxChannelCount = value
		return nil
	}
}

// WithMaxSessionCount sets the number of sessions that may be active. (default: no limit)
func WithMaxSessionCount(value uint32) Option {
	return func(srv *Server) error {
		srv.maxSessionCount = value
		return nil
	}
}

// WithMaxSubscriptionCount sets the number of subscriptions that may be active. (default: no limit)
func WithMaxSubscriptionCount(value uint32) Option {
	return func(srv *Server) error {
		srv.maxSubscriptionCount = value
		return nil
	}
}

// WithMaxWorkerThreads sets the number of workers that handle service requests. (default: 4)
func WithMaxWorkerThreads(value int) Option {
	return func(srv *Server) error {
		if value < 1 {
			return ua.BadInvalidArgument
		}
		srv.maxWorkerThreads = value
		return nil
	}
}

// WithServerCapabilities sets the limits of the server.
func WithServerCapabilities(value ServerCapabilities) Option {
	return func(srv *Server) error {
		srv.serverCapabilities = value
		return nil
	}
}

// WithAddressSpace sets the nodes served. (default: NewMemoryAddressSpace)
func WithAddressSpace(value AddressSpace) Option {
	return func(srv *Server) error {
		srv.addressSpace = value
		return nil
	}
}

// WithMaxSessionTimeout sets the largest number of milliseconds that a session may be unused before being closed. (default: 2 min)
func WithMaxSessionTimeout(value float64) Option {
	return func(srv *Server) error {
		srv.maxSessionTimeout = value
		return nil
	}
}

// WithBufferSizes sets the sizes of the receive and send buffers. (default: 64 KiB)
func WithBufferSizes(receiveBufferSize, sendBufferSize uint32) Option {
	return func(srv *Server) error {
		if receiveBufferSize < minBufferSize || sendBufferSize < minBufferSize {
			return ua.BadInvalidArgument
		}
		srv.limits.ReceiveBufferSize = receiveBufferSize
		srv.limits.SendBufferSize = sendBufferSize
		return nil
	}
}

// WithMaxMessageSize sets the largest message the server accepts. (default: 16 MiB)
func WithMaxMessageSize(value uint32) Option {
	return func(srv *Server) error {
		srv.limits.MaxMessageSize = value
		return nil
	}
}

// WithMaxChunkCount sets the largest number of chunks of a message the server accepts. (default: 4096)
func WithMaxChunkCount(value uint32) Option {
	return func(srv *Server) error {
		srv.limits.MaxChunkCount = value
		return nil
	}
}

// WithLogger sets the logger. (default: logrus standard logger)
func WithLogger(logger logrus.FieldLogger) Option {
	return func(srv *Server) error {
		srv.logger = logger
		return nil
	}
}
