package netio

import (
	"context"

	"github.com/mhardt/gambit/pkg/wire"
)

type EventCallback func(ev *wire.Event)

type StateCallback func(state WebSocketState)

// Socket is the session's view of the realtime channel.
type Socket interface {
	Connect(ctx context.Context) error
	Emit(ctx context.Context, name wire.EventName, payload any) error
	OnEvent(cb EventCallback) int
	RemoveEventCallback(id int)
	OnStateChange(cb StateCallback) int
	RemoveStateCallback(id int)
	Close(ctx context.Context) error
}

type WebSocketState string

const (
	WSStateDisconnected WebSocketState = "disconnected"
	WSStateConnecting   WebSocketState = "connecting"
	WSStateConnected    WebSocketState = "connected"
	WSStateReconnecting WebSocketState = "reconnecting"
	WSStateFailed       WebSocketState = "failed"
)
