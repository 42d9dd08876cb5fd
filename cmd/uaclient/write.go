// Copyright 2021 Converter Systems LLC. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/awcullen/uastack/ua"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var writeCmd = &cobra.Command{
	Use:   "write <node-id> <value>",
	Short: "Write the value of a node",
	Long: `Write the value attribute of a node. The value is converted to the
data type given with --type.

Examples:
  uaclient write "ns=2;s=Demo.Int32" 42 --type int32
  uaclient write "ns=2;s=Demo.Setting" hello`,
	Args: cobra.ExactArgs(2),
	RunE: runWrite,
}

var writeType string

func init() {
	writeCmd.Flags().StringVar(&writeType, "type", "string", "data type of the value (bool, int32, double, string, ...)")
}

func runWrite(cmd *cobra.Command, args []string) error {
	ids, err := parseNodeIDs(args[:1])
	if err != nil {
		return err
	}
	value, err := parseValue(args[1], writeType)
	if err != nil {
		return errors.Wrap(err, "parse value")
	}
	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("timeout")*2)
	defer cancel()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	res, err := c.Write(ctx, &ua.WriteRequest{
		NodesToWrite: []ua.WriteValue{
			{
				NodeID:      ids[0],
				AttributeID: ua.AttributeIDValue,
				Value:       ua.NewDataValue(value, ua.Good, time.Time{}, 0, time.Time{}, 0),
			},
		},
	})
	if err != nil {
		return err
	}
	if len(res.Results) != 1 {
		return ua.BadUnexpectedError
	}
	if res.Results[0] != ua.Good {
		return res.Results[0]
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], value)
	return nil
}
