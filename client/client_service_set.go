// Copyright 2021 Converter Systems LLC. All rights reserved.

package client

import (
	"context"

	"github.com/awcullen/uastack/ua"
)

// FindServers returns the Servers known to a Server or Discovery Server.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.4.2/
func (ch *Client) FindServers(ctx context.Context, request *ua.FindServersRequest) (*ua.FindServersResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.FindServersResponse), nil
}

// GetEndpoints returns the endpoint descriptions supported by the server.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.4.4/
func (ch *Client) GetEndpoints(ctx context.Context, request *ua.GetEndpointsRequest) (*ua.GetEndpointsResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.GetEndpointsResponse), nil
}

// FindServers returns the Servers known to a Server or Discovery Server, using a channel without security.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.4.2/
func FindServers(ctx context.Context, request *ua.FindServersRequest, opts ...Option) (*ua.FindServersResponse, error) {
	cli := newClient()
	cli.applicationName = "DiscoveryClient"
	for _, opt := range opts {
		if err := opt(cli); err != nil {
			return nil, err
		}
	}
	response, err := cli.discover(ctx, request.EndpointURL, func(ch *clientSecureChannel) (ua.ServiceResponse, error) {
		return ch.Request(ctx, request)
	})
	if err != nil {
		return nil, err
	}
	return response.(*ua.FindServersResponse), nil
}

// GetEndpoints returns the endpoint descriptions supported by the server, using a channel without security.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.4.4/
func GetEndpoints(ctx context.Context, request *ua.GetEndpointsRequest, opts ...Option) (*ua.GetEndpointsResponse, error) {
	cli := newClient()
	cli.applicationName = "DiscoveryClient"
	for _, opt := range opts {
		if err := opt(cli); err != nil {
			return nil, err
		}
	}
	response, err := cli.discover(ctx, request.EndpointURL, func(ch *clientSecureChannel) (ua.ServiceResponse, error) {
		return ch.Request(ctx, request)
	})
	if err != nil {
		return nil, err
	}
	return response.(*ua.GetEndpointsResponse), nil
}

// createSession creates a session.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.6.2/
func (ch *Client) createSession(ctx context.Context, request *ua.CreateSessionRequest) (*ua.CreateSessionResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.CreateSessionResponse), nil
}

// activateSession activates a session.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.6.3/
func (ch *Client) activateSession(ctx context.Context, request *ua.ActivateSessionRequest) (*ua.ActivateSessionResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.ActivateSessionResponse), nil
}

// closeSession closes a session.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.6.4/
func (ch *Client) closeSession(ctx context.Context, request *ua.CloseSessionRequest) (*ua.CloseSessionResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.CloseSessionResponse), nil
}

// Browse discovers the References of a specified Node.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.8.2/
func (ch *Client) Browse(ctx context.Context, request *ua.BrowseRequest) (*ua.BrowseResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.BrowseResponse), nil
}

// BrowseNext requests the next set of Browse responses, when the information is too large to be sent in a single response.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.8.3/
func (ch *Client) BrowseNext(ctx context.Context, request *ua.BrowseNextRequest) (*ua.BrowseNextResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.BrowseNextResponse), nil
}

// Read returns a list of Attribute values from one or more Nodes.
// If the server returns fewer results than nodes requested, the response is returned together
// with the status GoodResultsMayBeIncomplete.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.10.2/
func (ch *Client) Read(ctx context.Context, request *ua.ReadRequest) (*ua.ReadResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	res := response.(*ua.ReadResponse)
	if len(res.Results) < len(request.NodesToRead) {
		return res, ua.GoodResultsMayBeIncomplete
	}
	return res, nil
}

// Write sets a list of Attribute values of one or more Nodes.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.10.4/
func (ch *Client) Write(ctx context.Context, request *ua.WriteRequest) (*ua.WriteResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.WriteResponse), nil
}

// HistoryRead returns a list of historical values from one or more Nodes.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.10.3/
func (ch *Client) HistoryRead(ctx context.Context, request *ua.HistoryReadRequest) (*ua.HistoryReadResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.HistoryReadResponse), nil
}

// Call invokes a list of Methods.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.11.2/
func (ch *Client) Call(ctx context.Context, request *ua.CallRequest) (*ua.CallResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.CallResponse), nil
}

// CreateMonitoredItems creates and adds one or more MonitoredItems to a Subscription.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.12.2/
func (ch *Client) CreateMonitoredItems(ctx context.Context, request *ua.CreateMonitoredItemsRequest) (*ua.CreateMonitoredItemsResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.CreateMonitoredItemsResponse), nil
}

// ModifyMonitoredItems modifies MonitoredItems of a Subscription.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.12.3/
func (ch *Client) ModifyMonitoredItems(ctx context.Context, request *ua.ModifyMonitoredItemsRequest) (*ua.ModifyMonitoredItemsResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.ModifyMonitoredItemsResponse), nil
}

// SetMonitoringMode sets the monitoring mode for one or more MonitoredItems of a Subscription.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.12.4/
func (ch *Client) SetMonitoringMode(ctx context.Context, request *ua.SetMonitoringModeRequest) (*ua.SetMonitoringModeResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.SetMonitoringModeResponse), nil
}

// DeleteMonitoredItems removes one or more MonitoredItems of a Subscription.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.12.6/
func (ch *Client) DeleteMonitoredItems(ctx context.Context, request *ua.DeleteMonitoredItemsRequest) (*ua.DeleteMonitoredItemsResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.DeleteMonitoredItemsResponse), nil
}

// CreateSubscription creates a Subscription.
// Most callers use NewSubscription, which also delivers the notifications of the Subscription.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.13.2/
func (ch *Client) CreateSubscription(ctx context.Context, request *ua.CreateSubscriptionRequest) (*ua.CreateSubscriptionResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.CreateSubscriptionResponse), nil
}

// ModifySubscription modifies a Subscription.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.13.3/
func (ch *Client) ModifySubscription(ctx context.Context, request *ua.ModifySubscriptionRequest) (*ua.ModifySubscriptionResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.ModifySubscriptionResponse), nil
}

// SetPublishingMode enables sending of Notifications on one or more Subscriptions.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.13.4/
func (ch *Client) SetPublishingMode(ctx context.Context, request *ua.SetPublishingModeRequest) (*ua.SetPublishingModeResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.SetPublishingModeResponse), nil
}

// Republish requests the Subscription to republish a NotificationMessage from its retransmission queue.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.13.6/
func (ch *Client) Republish(ctx context.Context, request *ua.RepublishRequest) (*ua.RepublishResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	return response.(*ua.RepublishResponse), nil
}

// DeleteSubscriptions deletes one or more Subscriptions.
// See https://reference.opcfoundation.org/v104/Core/docs/Part4/5.13.8/
func (ch *Client) DeleteSubscriptions(ctx context.Context, request *ua.DeleteSubscriptionsRequest) (*ua.DeleteSubscriptionsResponse, error) {
	response, err := ch.request(ctx, request)
	if err != nil {
		return nil, err
	}
	for _, id := range request.SubscriptionIDs {
		ch.removeSubscription(id)
	}
	return response.(*ua.DeleteSubscriptionsResponse), nil
}
