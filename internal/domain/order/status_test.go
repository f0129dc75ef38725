package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusProcessing}:   true,
		{StatusPending, StatusCancelled}:    true,
		{StatusProcessing, StatusShipped}:   true,
		{StatusProcessing, StatusCancelled}: true,
		{StatusShipped, StatusDelivered}:    true,
		{StatusShipped, StatusCancelled}:    true,
	}
	all := []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition("bogus", StatusCancelled))
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusShipped.Terminal())
	assert.False(t, Status("bogus").Terminal())
	assert.False(t, Status("bogus").Valid())
}

func TestApplyStatus_DeliveryStamp(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	o := &Order{Status: StatusShipped}

	o.ApplyStatus(StatusDelivered, at)
	assert.True(t, o.IsDelivered)
	assert.Equal(t, &at, o.DeliveredAt)

	o.ApplyStatus(StatusCancelled, at.Add(time.Hour))
	assert.False(t, o.IsDelivered)
	assert.Nil(t, o.DeliveredAt)
}
