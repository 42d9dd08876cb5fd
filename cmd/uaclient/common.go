// Copyright 2021 Converter Systems LLC. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/awcullen/uastack/client"
	"github.com/awcullen/uastack/ua"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const defaultTimeout = 10 * time.Second

// parseSecurityPolicy converts a policy name to its uri.
func parseSecurityPolicy(s string) (string, error) {
	switch strings.ToLower(s) {
	case "":
		return ua.SecurityPolicyURIBestAvailable, nil
	case "none":
		return ua.SecurityPolicyURINone, nil
	case "basic128rsa15":
		return ua.SecurityPolicyURIBasic128Rsa15, nil
	case "basic256":
		return ua.SecurityPolicyURIBasic256, nil
	case "basic256sha256":
		return ua.SecurityPolicyURIBasic256Sha256, nil
	case "aes128sha256rsaoaep", "aes128sha256":
		return ua.SecurityPolicyURIAes128Sha256RsaOaep, nil
	case "aes256sha256rsapss", "aes256sha256":
		return ua.SecurityPolicyURIAes256Sha256RsaPss, nil
	default:
		return "", errors.Errorf("unknown security policy: %s", s)
	}
}

// parseSecurityMode converts a mode name to a MessageSecurityMode. The empty name matches any mode.
func parseSecurityMode(s string) (ua.MessageSecurityMode, error) {
	switch strings.ToLower(s) {
	case "":
		return ua.MessageSecurityModeInvalid, nil
	case "none":
		return ua.MessageSecurityModeNone, nil
	case "sign":
		return ua.MessageSecurityModeSign, nil
	case "signandencrypt", "sign_and_encrypt":
		return ua.MessageSecurityModeSignAndEncrypt, nil
	default:
		return ua.MessageSecurityModeInvalid, errors.Errorf("unknown security mode: %s", s)
	}
}

// ensureCertificate creates a self-signed client certificate when the files are missing.
func ensureCertificate(certPath, keyPath string) error {
	if _, err := os.Stat(certPath); err == nil {
		return nil
	}
	for _, dir := range []string{filepath.Dir(certPath), filepath.Dir(keyPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "create pki directory")
		}
	}
	cert, key, err := ua.CreateSelfSignedCertificate("uaclient")
	if err != nil {
		return err
	}
	return ua.WriteCertificateFiles(cert, key, certPath, keyPath)
}

// buildClientOptions creates client options from the flags.
func buildClientOptions() ([]client.Option, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	policy, err := parseSecurityPolicy(viper.GetString("security-policy"))
	if err != nil {
		return nil, err
	}
	mode, err := parseSecurityMode(viper.GetString("security-mode"))
	if err != nil {
		return nil, err
	}
	opts := []client.Option{
		client.WithApplicationName("uaclient"),
		client.WithTimeout(viper.GetDuration("timeout")),
		client.WithSecurityPolicyURI(policy, mode),
		client.WithLogger(logger),
	}

	if policy != ua.SecurityPolicyURINone {
		certPath, keyPath := viper.GetString("cert"), viper.GetString("key")
		if err := ensureCertificate(certPath, keyPath); err != nil {
			return nil, err
		}
		opts = append(opts, client.WithClientCertificatePaths(certPath, keyPath))
	}
	if viper.GetBool("insecure") {
		opts = append(opts, client.WithInsecureSkipVerify())
	}
	if name := viper.GetString("username"); name != "" {
		opts = append(opts, client.WithUserNameIdentity(name, viper.GetString("password")))
	}
	return opts, nil
}

// connect dials the configured endpoint.
func connect(ctx context.Context) (*client.Client, error) {
	opts, err := buildClientOptions()
	if err != nil {
		return nil, err
	}
	url := viper.GetString("endpoint")
	c, err := client.Dial(ctx, url, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", url)
	}
	return c, nil
}

// parseNodeIDs parses each argument as a node id.
func parseNodeIDs(args []string) ([]ua.NodeID, error) {
	ids := make([]ua.NodeID, 0, len(args))
	for _, arg := range args {
		id := ua.ParseNodeID(arg)
		if id == nil {
			return nil, errors.Errorf("invalid node id: %s", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseValue converts the text to a variant of the named data type.
func parseValue(s, dataType string) (ua.Variant, error) {
	switch strings.ToLower(dataType) {
	case "bool", "boolean":
		return strconv.ParseBool(s)
	case "sbyte", "int8":
		v, err := strconv.ParseInt(s, 10, 8)
		return int8(v), err
	case "byte", "uint8":
		v, err := strconv.ParseUint(s, 10, 8)
		return uint8(v), err
	case "int16":
		v, err := strconv.ParseInt(s, 10, 16)
		return int16(v), err
	case "uint16":
		v, err := strconv.ParseUint(s, 10, 16)
		return uint16(v), err
	case "int32":
		v, err := strconv.ParseInt(s, 10, 32)
		return int32(v), err
	case "uint32":
		v, err := strconv.ParseUint(s, 10, 32)
		return uint32(v), err
	case "int64":
		return strconv.ParseInt(s, 10, 64)
	case "uint64":
		return strconv.ParseUint(s, 10, 64)
	case "float":
		v, err := strconv.ParseFloat(s, 32)
		return float32(v), err
	case "double":
		return strconv.ParseFloat(s, 64)
	case "string":
		return s, nil
	default:
		return nil, errors.Errorf("unsupported data type: %s", dataType)
	}
}

// formatDataValue renders a data value on one line.
func formatDataValue(v ua.DataValue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v", v.Value)
	if v.StatusCode != ua.Good {
		fmt.Fprintf(&b, " [%s]", v.StatusCode)
	}
	if !v.SourceTimestamp.IsZero() {
		fmt.Fprintf(&b, " %s", v.SourceTimestamp.Format(time.RFC3339Nano))
	}
	return b.String()
}
