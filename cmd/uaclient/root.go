// Copyright 2021 Converter Systems LLC. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile        string
	endpoint       string
	securityPolicy string
	securityMode   string
	userName       string
	password       string
	certFile       string
	keyFile        string
	insecure       bool
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "uaclient",
	Short: "A command line client for OPC UA servers",
	Long: `uaclient connects to an OPC UA server over opc.tcp and reads, writes,
browses or subscribes to nodes of its address space.

Flags may also be given as environment variables with the UASTACK_ prefix,
for example UASTACK_ENDPOINT=opc.tcp://localhost:46010, or in a YAML
config file passed with --config.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "opc.tcp://localhost:46010", "endpoint url of the server")
	rootCmd.PersistentFlags().DurationP("timeout", "t", defaultTimeout, "timeout of each request")
	rootCmd.PersistentFlags().StringVar(&securityPolicy, "security-policy", "", "security policy (None, Basic256Sha256, ...; default most secure)")
	rootCmd.PersistentFlags().StringVar(&securityMode, "security-mode", "", "message security mode (None, Sign, SignAndEncrypt)")
	rootCmd.PersistentFlags().StringVarP(&userName, "username", "u", "", "user name (default anonymous)")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "password of the user")
	rootCmd.PersistentFlags().StringVar(&certFile, "cert", "./pki/client.crt", "client certificate file, created if missing")
	rootCmd.PersistentFlags().StringVar(&keyFile, "key", "./pki/client.key", "client private key file, created if missing")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "skip verification of the server certificate")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	for _, name := range []string{"endpoint", "timeout", "security-policy", "security-mode", "username", "password", "cert", "key", "insecure", "log-level"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(subscribeCmd)
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

// newLogger returns a logger at the configured level.
func newLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	return logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
