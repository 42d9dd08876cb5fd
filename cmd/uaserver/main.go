// Copyright 2021 Converter Systems LLC. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/awcullen/uastack/server"
	"github.com/awcullen/uastack/ua"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const demoNamespaceURI = "http://github.com/awcullen/uastack/demo"

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "uaserver",
	Short: "A sample OPC UA server with a demo address space",
	Long: `uaserver listens on opc.tcp and serves a small demo address space:
a folder of read/write variables, a counter updated every second, and a
device object that raises an event every few seconds.

Users are given as name:password pairs with --user, with the UASTACK_USER
environment variable, or under "user" in a YAML config file.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	rootCmd.Flags().StringP("endpoint", "e", "opc.tcp://localhost:46010", "endpoint url of the server")
	rootCmd.Flags().String("pki", "./pki", "directory of the server certificate and key")
	rootCmd.Flags().Bool("allow-none", true, "offer the endpoint with security policy None")
	rootCmd.Flags().Bool("allow-anonymous", true, "accept the anonymous identity")
	rootCmd.Flags().Bool("insecure", false, "accept any client certificate")
	rootCmd.Flags().StringSlice("user", nil, "user accepted by the server as name:password (repeatable)")
	rootCmd.Flags().Uint32("max-sessions", 0, "maximum number of sessions (0 = default)")
	rootCmd.Flags().Duration("event-interval", 5*time.Second, "interval of the demo device events")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	for _, name := range []string{"endpoint", "pki", "allow-none", "allow-anonymous", "insecure", "user", "max-sessions", "event-interval", "log-level"} {
		viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
	viper.SetEnvPrefix("UASTACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// hashUsers parses the name:password pairs and hashes each password.
func hashUsers(pairs []string) (map[string][]byte, error) {
	users := make(map[string][]byte, len(pairs))
	for _, pair := range pairs {
		name, password, ok := strings.Cut(pair, ":")
		if !ok || name == "" {
			return nil, errors.Errorf("invalid user: %q", pair)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, errors.Wrapf(err, "hash password of %s", name)
		}
		users[name] = hash
	}
	return users, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	logger := logrus.New()
	logger.SetLevel(level)

	endpointURL := viper.GetString("endpoint")
	u, err := url.Parse(endpointURL)
	if err != nil || u.Scheme != "opc.tcp" {
		return errors.Errorf("invalid endpoint url: %s", endpointURL)
	}
	users, err := hashUsers(viper.GetStringSlice("user"))
	if err != nil {
		return err
	}
	pki := viper.GetString("pki")
	if err := os.MkdirAll(pki, 0755); err != nil {
		return errors.Wrap(err, "create pki directory")
	}

	host, _ := os.Hostname()
	applicationURI := fmt.Sprintf("urn:%s:uaserver", host)
	m, device, err := newDemoAddressSpace(applicationURI)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithAddressSpace(m),
		server.WithSecurityPolicyNone(viper.GetBool("allow-none")),
		server.WithAnonymousIdentity(viper.GetBool("allow-anonymous")),
		server.WithLogger(logger),
		server.WithAuthenticateUserNameIdentityFunc(func(userIdentity server.UserNameIdentity, applicationURI string, endpointURL string) error {
			hash, ok := users[userIdentity.UserName]
			if !ok {
				return ua.BadUserAccessDenied
			}
			if err := bcrypt.CompareHashAndPassword(hash, []byte(userIdentity.Password)); err != nil {
				return ua.BadUserAccessDenied
			}
			return nil
		}),
	}
	if viper.GetBool("insecure") {
		opts = append(opts, server.WithInsecureSkipVerify())
	}
	if n := viper.GetUint32("max-sessions"); n > 0 {
		opts = append(opts, server.WithMaxSessionCount(n))
	}

	srv, err := server.New(
		ua.ApplicationDescription{
			ApplicationURI:  applicationURI,
			ProductURI:      "http://github.com/awcullen/uastack",
			ApplicationName: ua.NewLocalizedText("uaserver", "en"),
			ApplicationType: ua.ApplicationTypeServer,
			DiscoveryURLs:   []string{endpointURL},
		},
		filepath.Join(pki, "server.crt"),
		filepath.Join(pki, "server.key"),
		endpointURL,
		opts...,
	)
	if err != nil {
		return errors.Wrap(err, "create server")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go simulate(ctx, srv, m, device, viper.GetDuration("event-interval"))
	go func() {
		<-ctx.Done()
		logger.Info("stopping server")
		srv.Close()
	}()

	logger.WithField("endpoint", srv.EndpointURL()).Info("starting server, press Ctrl-C to exit")
	if err := srv.ListenAndServe(); err != ua.BadServerHalted {
		return errors.Wrap(err, "serve")
	}
	return nil
}

var (
	demoFolder  = ua.NewNodeIDString(2, "Demo")
	demoCounter = ua.NewNodeIDString(2, "Demo.Counter")
	demoDevice  = ua.NewNodeIDString(2, "Demo.Device")
)

// newDemoAddressSpace builds the demo nodes in namespace 2.
func newDemoAddressSpace(applicationURI string) (*server.MemoryAddressSpace, ua.NodeID, error) {
	m := server.NewMemoryAddressSpace(applicationURI)
	ns := m.AddNamespace(demoNamespaceURI)
	rw := ua.AccessLevelsCurrentRead | ua.AccessLevelsCurrentWrite
	steps := []func() error{
		func() error {
			return m.AddFolder(ua.ObjectIDObjectsFolder, demoFolder, ua.NewQualifiedName(ns, "Demo"))
		},
		func() error {
			return m.AddVariable(demoFolder, demoCounter, ua.NewQualifiedName(ns, "Counter"), int32(0), ua.DataTypeIDInt32, ua.AccessLevelsCurrentRead|ua.AccessLevelsHistoryRead)
		},
		func() error {
			return m.AddVariable(demoFolder, ua.NewNodeIDString(ns, "Demo.Boolean"), ua.NewQualifiedName(ns, "Boolean"), false, ua.DataTypeIDBoolean, rw)
		},
		func() error {
			return m.AddVariable(demoFolder, ua.NewNodeIDString(ns, "Demo.Int32"), ua.NewQualifiedName(ns, "Int32"), int32(0), ua.DataTypeIDInt32, rw)
		},
		func() error {
			return m.AddVariable(demoFolder, ua.NewNodeIDString(ns, "Demo.Double"), ua.NewQualifiedName(ns, "Double"), 0.0, ua.DataTypeIDDouble, rw)
		},
		func() error {
			return m.AddVariable(demoFolder, ua.NewNodeIDString(ns, "Demo.String"), ua.NewQualifiedName(ns, "String"), "", ua.DataTypeIDString, rw)
		},
		func() error {
			return m.AddObject(demoFolder, demoDevice, ua.NewQualifiedName(ns, "Device"), ua.EventNotifierSubscribeToEvents)
		},
		func() error {
			return m.AddMethod(demoDevice, ua.NewNodeIDString(ns, "Demo.Device.Add"), ua.NewQualifiedName(ns, "Add"), add)
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, nil, err
		}
	}
	return m, demoDevice, nil
}

// add returns the sum of two Int32 arguments.
func add(ctx context.Context, objectID ua.NodeID, inputs []ua.Variant) ([]ua.Variant, ua.StatusCode) {
	if len(inputs) != 2 {
		return nil, ua.BadInvalidArgument
	}
	a, ok1 := inputs[0].(int32)
	b, ok2 := inputs[1].(int32)
	if !ok1 || !ok2 {
		return nil, ua.BadTypeMismatch
	}
	return []ua.Variant{a + b}, ua.Good
}

// simulate increments the counter every second and raises a device event at each interval.
func simulate(ctx context.Context, srv *server.Server, m *server.MemoryAddressSpace, device ua.NodeID, eventInterval time.Duration) {
	counter := time.NewTicker(time.Second)
	defer counter.Stop()
	events := time.NewTicker(eventInterval)
	defer events.Stop()
	var n int32
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-counter.C:
			n++
			m.SetValue(demoCounter, ua.NewDataValue(n, ua.Good, now, 0, now, 0))
		case now := <-events.C:
			id := uuid.New()
			srv.EmitEvent(device, &ua.BaseEvent{
				EventID:    ua.ByteString(id[:]),
				EventType:  ua.ObjectTypeIDBaseEventType,
				SourceName: "Device",
				Time:       now,
				Message:    ua.NewLocalizedText(fmt.Sprintf("counter is %d", n), "en"),
				Severity:   500,
			})
		}
	}
}
