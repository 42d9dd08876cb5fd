// Copyright 2021 Converter Systems LLC. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/awcullen/uastack/ua"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var readCmd = &cobra.Command{
	Use:   "read <node-id>...",
	Short: "Read the values of nodes",
	Long: `Read the value attribute of one or more nodes.

Examples:
  uaclient read i=2258
  uaclient read "ns=2;s=Demo.Int32" "ns=2;s=Demo.Double"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRead,
}

var readMaxAge float64

func init() {
	readCmd.Flags().Float64Var(&readMaxAge, "max-age", 0, "maximum age of the values in milliseconds")
}

func runRead(cmd *cobra.Command, args []string) error {
	ids, err := parseNodeIDs(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("timeout")*2)
	defer cancel()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	req := &ua.ReadRequest{
		MaxAge:             readMaxAge,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		NodesToRead:        make([]ua.ReadValueID, len(ids)),
	}
	for i, id := range ids {
		req.NodesToRead[i] = ua.ReadValueID{NodeID: id, AttributeID: ua.AttributeIDValue}
	}
	res, err := c.Read(ctx, req)
	if err != nil {
		return err
	}
	if res.ResponseHeader.ServiceResult != ua.Good {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", res.ResponseHeader.ServiceResult)
	}
	for i, v := range res.Results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[i], formatDataValue(v))
	}
	return nil
}
