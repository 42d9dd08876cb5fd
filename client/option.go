// Copyright 2021 Converter Systems LLC. All rights reserved.

package client

import (
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/sirupsen/logrus"
)

// Option is a functional option to be applied to a client during initialization.
type Option func(*Client) error

// WithSecurityPolicyURI selects the endpoint with the given security policy and mode. (default: select most secure endpoint)
func WithSecurityPolicyURI(uri string, mode ua.MessageSecurityMode) Option {
	return func(c *Client) error {
		if _, err := ua.NewSecurityPolicy(uri); err != nil && uri != ua.SecurityPolicyURIBestAvailable {
			return err
		}
		c.securityPolicyURI = uri
		c.securityMode = mode
		return nil
	}
}

// WithSecurityPolicyNone selects the endpoint with security policy of None.
func WithSecurityPolicyNone() Option {
	return WithSecurityPolicyURI(ua.SecurityPolicyURINone, ua.MessageSecurityModeNone)
}

// WithSecurityMode selects the endpoint with the given message security mode. (default: any)
func WithSecurityMode(mode ua.MessageSecurityMode) Option {
	return func(c *Client) error {
		c.securityMode = mode
		return nil
	}
}

// WithUserNameIdentity sets the user identity to a UserNameIdentity created from a username and password. (default: AnonymousIdentity)
func WithUserNameIdentity(userName, password string) Option {
	return func(c *Client) error {
		c.userIdentity = UserNameIdentity{UserName: userName, Password: password}
		return nil
	}
}

// WithAnonymousIdentity sets the user identity to AnonymousIdentity.
func WithAnonymousIdentity() Option {
	return func(c *Client) error {
		c.userIdentity = AnonymousIdentity{}
		return nil
	}
}

// WithApplicationName sets the name of the client application. (default: package name)
func WithApplicationName(value string) Option {
	return func(c *Client) error {
		c.applicationName = value
		return nil
	}
}

// WithSessionName sets the name of the session. (default: server assigned)
func WithSessionName(value string) Option {
	return func(c *Client) error {
		c.sessionName = value
		return nil
	}
}

// WithSessionTimeout sets the number of milliseconds that a session may be unused before being closed by the server. (default: 2 min)
func WithSessionTimeout(value float64) Option {
	return func(c *Client) error {
		c.sessionTimeout = value
		return nil
	}
}

// WithCertificate sets the application instance certificate of the client.
func WithCertificate(provider ua.CertificateProvider) Option {
	return func(c *Client) error {
		c.certificateProvider = provider
		return nil
	}
}

// WithClientCertificatePaths sets the file paths of the client certificate and private key.
func WithClientCertificatePaths(certPath, keyPath string) Option {
	return func(c *Client) error {
		provider, err := ua.LoadCertificateProvider(certPath, keyPath)
		if err != nil {
			return err
		}
		c.certificateProvider = provider
		return nil
	}
}

// WithTrustedCertificatesPaths sets the paths of the trusted server certificates or certificate authorities.
func WithTrustedCertificatesPaths(paths ...string) Option {
	return func(c *Client) error {
		c.validation.TrustedPaths = append(c.validation.TrustedPaths, paths...)
		return nil
	}
}

// WithInsecureSkipVerify skips verification of server certificate. Skips checking HostName, Expiration, and Authority.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.validation.SuppressHostName = true
		c.validation.SuppressTimeInvalid = true
		c.validation.SuppressChainInvalid = true
		return nil
	}
}

// WithTimeout sets the time to wait for the handshake, the channel open and each service response. (default: 15 sec)
func WithTimeout(value time.Duration) Option {
	return func(c *Client) error {
		if value <= 0 {
			return ua.BadInvalidArgument
		}
		c.timeout = value
		return nil
	}
}

// WithTokenLifetime sets the requested number of milliseconds before a security token is renewed. (default: 60 min)
func WithTokenLifetime(value uint32) Option {
	return func(c *Client) error {
		c.tokenLifetime = value
		return nil
	}
}

// WithMaxMessageSize sets the largest message the client accepts. (default: 16 MiB)
func WithMaxMessageSize(value uint32) Option {
	return func(c *Client) error {
		c.limits.MaxMessageSize = value
		return nil
	}
}

// WithMaxChunkCount sets the largest number of chunks of a message the client accepts. (default: 4096)
func WithMaxChunkCount(value uint32) Option {
	return func(c *Client) error {
		c.limits.MaxChunkCount = value
		return nil
	}
}

// WithBufferSizes sets the sizes of the receive and send buffers. (default: 64 KiB)
func WithBufferSizes(receiveBufferSize, sendBufferSize uint32) Option {
	return func(c *Client) error {
		if receiveBufferSize < minBufferSize || sendBufferSize < minBufferSize {
			return ua.BadInvalidArgument
		}
		c.limits.ReceiveBufferSize = receiveBufferSize
		c.limits.SendBufferSize = sendBufferSize
		return nil
	}
}

// WithPublishRequestQueueDepth sets the number of Publish requests kept outstanding. (default: 2)
func WithPublishRequestQueueDepth(value int) Option {
	return func(c *Client) error {
		if value < 1 {
			return ua.BadInvalidArgument
		}
		c.publishDepth = value
		return nil
	}
}

// WithLogger sets the logger. (default: logrus standard logger)
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}
