// Copyright 2021 Converter Systems LLC. All rights reserved.

package main

import (
	"context"
	"testing"

	"github.com/awcullen/uastack/ua"
	"golang.org/x/crypto/bcrypt"
	"gotest.tools/assert"
)

func TestRootCommand(t *testing.T) {
	assert.Equal(t, rootCmd.Use, "uaserver")
	assert.Assert(t, rootCmd.RunE != nil)
	endpoint, err := rootCmd.Flags().GetString("endpoint")
	assert.NilError(t, err)
	assert.Equal(t, endpoint, "opc.tcp://localhost:46010")
}

func TestHashUsers(t *testing.T) {
	users, err := hashUsers([]string{"root:secret"})
	assert.NilError(t, err)
	assert.NilError(t, bcrypt.CompareHashAndPassword(users["root"], []byte("secret")))

	_, err = hashUsers([]string{"nopassword"})
	assert.ErrorContains(t, err, "invalid user")
}

func TestDemoAddressSpace(t *testing.T) {
	m, device, err := newDemoAddressSpace("urn:test:uaserver")
	assert.NilError(t, err)
	assert.Equal(t, device, demoDevice)
	v := m.Read(context.Background(), ua.ReadValueID{NodeID: demoCounter, AttributeID: ua.AttributeIDValue}, ua.TimestampsToReturnBoth)
	assert.Equal(t, v.StatusCode, ua.Good)
	assert.Equal(t, v.Value, int32(0))

	outputs, status := add(context.Background(), device, []ua.Variant{int32(1), int32(2)})
	assert.Equal(t, status, ua.Good)
	assert.DeepEqual(t, outputs, []ua.Variant{int32(3)})
}
