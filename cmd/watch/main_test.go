package main

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topup-store/internal/history"
	"topup-store/internal/logging"
	"topup-store/internal/realtime"
	"topup-store/internal/repo"
)

func TestWatcherPrintsApprovalOnce(t *testing.T) {
	pending := repo.Order{ID: "o1", UserID: "u1", CategoryType: "mobile_th", Amount: decimal.NewFromInt(150), Currency: "THB", Status: repo.StatusPending}
	var out bytes.Buffer
	w := &watcher{
		logger:   logging.Discard(),
		out:      &out,
		orders:   history.NewOrderFeed([]repo.Order{pending}),
		deposits: history.NewDepositFeed(nil),
	}

	approved := pending
	approved.Status = repo.StatusApproved
	change, err := realtime.NewChange(realtime.EventUpdate, approved, pending)
	require.NoError(t, err)

	w.handle(realtime.Message{Channel: realtime.OrdersChannel("u1"), Payload: change})
	w.handle(realtime.Message{Channel: realtime.OrdersChannel("u1"), Payload: change})

	assert.Equal(t, "order approved: mobile th 150.00 THB\n", out.String())
}

func TestStreamURL(t *testing.T) {
	c := &apiClient{base: "https://shop.example.com/api", token: "tok"}
	got, err := c.streamURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://shop.example.com/api/realtime?access_token=tok", got)
}
