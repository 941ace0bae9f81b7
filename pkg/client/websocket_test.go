package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebSocketClient_NotConnectedByDefault(t *testing.T) {
	ws := newWebSocketClient("http://example.com", "")
	assert.False(t, ws.IsConnected())
}

func TestWebSocketClient_SubscribeRequiresConnection(t *testing.T) {
	ws := newWebSocketClient("http://example.com", "")
	err := ws.Subscribe(KindTaskCreated, KindTaskTerminated)
	assert.Error(t, err)
}

func TestWebSocketClient_UnsubscribeRequiresConnection(t *testing.T) {
	ws := newWebSocketClient("http://example.com", "")
	err := ws.Unsubscribe(KindContextSwitch)
	assert.Error(t, err)
}
