// Copyright 2021 Converter Systems LLC. All rights reserved.

package client_test

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/awcullen/uastack/server"
	"github.com/awcullen/uastack/ua"
	"github.com/sirupsen/logrus"
	"gotest.tools/assert"
)

var (
	nodeCounter = ua.NewNodeIDString(2, "Counter")
	nodeSetting = ua.NewNodeIDString(2, "Setting")
	nodeMachine = ua.NewNodeIDString(2, "Machine")
)

// newTestServer starts a server on a free port with a counter, a writable setting and a machine object
// in namespace 2, and returns the server with its endpoint url.
func newTestServer(t *testing.T) (*server.Server, *server.MemoryAddressSpace, string) {
	l, err := net.Listen("tcp", "localhost:0")
	assert.NilError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	endpointURL := fmt.Sprintf("opc.tcp://localhost:%d", port)

	m := server.NewMemoryAddressSpace("urn:test:server")
	m.AddNamespace("urn:test:client")
	assert.NilError(t, m.AddVariable(ua.ObjectIDObjectsFolder, nodeCounter, ua.NewQualifiedName(2, "Counter"), int32(0), ua.DataTypeIDInt32, ua.AccessLevelsCurrentRead))
	assert.NilError(t, m.AddVariable(ua.ObjectIDObjectsFolder, nodeSetting, ua.NewQualifiedName(2, "Setting"), "off", ua.DataTypeIDString, ua.AccessLevelsCurrentRead|ua.AccessLevelsCurrentWrite))
	assert.NilError(t, m.AddObject(ua.ObjectIDObjectsFolder, nodeMachine, ua.NewQualifiedName(2, "Machine"), ua.EventNotifierSubscribeToEvents))

	dir := t.TempDir()
	srv, err := server.New(
		ua.ApplicationDescription{
			ApplicationURI:  "urn:test:server",
			ApplicationName: ua.NewLocalizedText("testserver", "en"),
			ApplicationType: ua.ApplicationTypeServer,
			DiscoveryURLs:   []string{endpointURL},
		},
		filepath.Join(dir, "server.crt"),
		filepath.Join(dir, "server.key"),
		endpointURL,
		server.WithAddressSpace(m),
		server.WithAnonymousIdentity(true),
		server.WithSecurityPolicyNone(true),
		server.WithInsecureSkipVerify(),
		server.WithLogger(newTestLogger()),
	)
	assert.NilError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()
	t.Cleanup(func() {
		srv.Close()
		<-done
	})
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

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// newTestLogger returns a logger that reports warnings and errors only.
func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}
