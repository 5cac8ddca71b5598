// Package events sends proactive events to the provider's event gateway.
//
// The point store reports every value change through Publisher.Notify.
// Changes are coalesced per endpoint for the report delay, after which the
// endpoint's full state is read and sent as one Alexa.ChangeReport. A
// doorbell press skips the delay and is sent at once as a DoorbellPress.
//
// Every event is also broadcast to local WebSocket subscribers, whether or
// not the account is linked.
package events
