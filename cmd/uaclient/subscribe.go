// Copyright 2021 Converter Systems LLC. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/awcullen/uastack/client"
	"github.com/awcullen/uastack/ua"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <node-id>...",
	Short: "Subscribe to data changes or events of nodes",
	Long: `Create a subscription and print each notification until interrupted.
With --events the nodes are monitored for events instead of value changes.

Examples:
  uaclient subscribe "ns=2;s=Demo.Int32" --interval 250
  uaclient subscribe i=2253 --events`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubscribe,
}

var (
	subscribeInterval  float64
	subscribeSampling  float64
	subscribeQueueSize uint32
	subscribeEvents    bool
)

func init() {
	subscribeCmd.Flags().Float64VarP(&subscribeInterval, "interval", "i", 1000, "publishing interval in milliseconds")
	subscribeCmd.Flags().Float64Var(&subscribeSampling, "sampling", -1, "sampling interval in milliseconds (-1 = publishing interval)")
	subscribeCmd.Flags().Uint32Var(&subscribeQueueSize, "queue-size", 1, "queue size of each monitored item")
	subscribeCmd.Flags().BoolVar(&subscribeEvents, "events", false, "monitor events instead of data changes")
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	ids, err := parseNodeIDs(args)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, viper.GetDuration("timeout")*2)
	defer dialCancel()
	c, err := connect(dialCtx)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	out := cmd.OutOrStdout()
	sub, err := client.NewSubscription(dialCtx, c,
		&ua.CreateSubscriptionRequest{
			RequestedPublishingInterval: subscribeInterval,
			RequestedMaxKeepAliveCount:  10,
			RequestedLifetimeCount:      30,
			PublishingEnabled:           true,
		},
		client.WithDataChangeHandler(func(sub *client.Subscription, handles []uint32, values []ua.DataValue) {
			for i, h := range handles {
				fmt.Fprintf(out, "%s = %s\n", args[h], formatDataValue(values[i]))
			}
		}),
		client.WithEventHandler(func(sub *client.Subscription, handles []uint32, events [][]ua.Variant) {
			for i, h := range handles {
				e := ua.NewBaseEvent(events[i])
				fmt.Fprintf(out, "%s: %s [%s] severity=%d %s\n", args[h], e.Time.Format("15:04:05.000"), e.SourceName, e.Severity, e.Message.Text)
			}
		}),
	)
	if err != nil {
		return err
	}

	items := make([]ua.MonitoredItemCreateRequest, len(ids))
	for i, id := range ids {
		item := ua.MonitoredItemCreateRequest{
			ItemToMonitor:  ua.ReadValueID{NodeID: id, AttributeID: ua.AttributeIDValue},
			MonitoringMode: ua.MonitoringModeReporting,
			RequestedParameters: ua.MonitoringParameters{
				ClientHandle:     uint32(i),
				SamplingInterval: subscribeSampling,
				QueueSize:        subscribeQueueSize,
				DiscardOldest:    true,
			},
		}
		if subscribeEvents {
			item.ItemToMonitor.AttributeID = ua.AttributeIDEventNotifier
			item.RequestedParameters.SamplingInterval = 0
			item.RequestedParameters.Filter = ua.EventFilter{SelectClauses: ua.BaseEventSelectClauses}
		}
		items[i] = item
	}
	res, err := sub.CreateMonitoredItems(dialCtx, ua.TimestampsToReturnBoth, items...)
	if err != nil {
		return err
	}
	for i, r := range res.Results {
		if r.StatusCode.IsBad() {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[i], r.StatusCode)
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "subscription %d at %.0fms, press Ctrl-C to exit...\n", sub.ID(), sub.RevisedPublishingInterval())

	<-ctx.Done()
	deleteCtx, deleteCancel := context.WithTimeout(context.Background(), viper.GetDuration("timeout"))
	defer deleteCancel()
	return sub.Delete(deleteCtx)
}
