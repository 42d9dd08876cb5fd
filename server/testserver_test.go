// Copyright 2021 Converter Systems LLC. All rights reserved.

package server_test

import (
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/awcullen/uastack/server"
	"github.com/awcullen/uastack/ua"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gotest.tools/assert"
)

// testUsers are the accounts accepted by the test server.
var testUsers = map[string]string{
	"root":  "secret",
	"user1": "password",
	"user2": "password1",
}

// freePort returns a tcp port that is not in use.
func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "localhost:0")
	assert.NilError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// newTestServer starts a server with the demo address space on a free port and returns it with its endpoint url.
// The server is closed when the test completes.
func newTestServer(t *testing.T, opts ...server.Option) (*server.Server, *server.MemoryAddressSpace, string) {
	hashes := make(map[string][]byte, len(testUsers))
	for name, password := range testUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		assert.NilError(t, err)
		hashes[name] = hash
	}


	port := freePort(t)
	endpointURL := fmt.Sprintf("opc.tcp://localhost:%d", port)
	m := newDemoAddressSpace(t)
	dir := t.TempDir()
	options := append([]server.Option{
		server.WithAddressSpace(m),
		server.WithAnonymousIdentity(true),
		server.WithSecurityPolicyNone(true),
		server.WithInsecureSkipVerify(),
		server.WithLogger(newTestLogger()),
		server.WithAuthenticateUserNameIdentityFunc(func(userIdentity server.UserNameIdentity, applicationURI string, endpointURL string) error {
			hash, ok := hashes[userIdentity.UserName]
			if !ok {
				return ua.BadUserAccessDenied
			}
			if err := bcrypt.CompareHashAndPassword(hash, []byte(userIdentity.Password)); err != nil {
				return ua.BadUserAccessDenied
			}
			return nil
		}),
	}, opts...)
	srv, err := server.New(
		ua.ApplicationDescription{
			ApplicationURI:  "urn:test:server",
			ProductURI:      "http://github.com/awcullen/uastack",
			ApplicationName: ua.NewLocalizedText("testserver", "en"),
			ApplicationType: ua.ApplicationTypeServer,
			DiscoveryURLs:   []string{endpointURL},
		},
		filepath.Join(dir, "server.crt"),
		filepath.Join(dir, "server.key"),
		endpointURL,
		options...,
	)
	assert.NilError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()
	t.Cleanup(func() {
		srv.Close()
		<-done
	})

	// wait for the listener
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("tcp", fmt.Sprintf("localhost:%d", port))
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return srv, m, endpointURL
}

// newTestLogger returns a logger that reports warnings and errors only.
func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}
