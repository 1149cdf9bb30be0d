package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusAdvancesForwardOnly(t *testing.T) {
	assert.True(t, StatusSending.CanAdvanceTo(StatusSent))
	assert.True(t, StatusSent.CanAdvanceTo(StatusDelivered))
	assert.True(t, StatusSent.CanAdvanceTo(StatusSeen))
	assert.True(t, StatusDelivered.CanAdvanceTo(StatusSeen))

	assert.False(t, StatusSeen.CanAdvanceTo(StatusDelivered))
	assert.False(t, StatusDelivered.CanAdvanceTo(StatusSent))
	assert.False(t, StatusSent.CanAdvanceTo(StatusSending))
	assert.False(t, StatusSent.CanAdvanceTo(StatusSent))
}

func TestStatusRankOrdering(t *testing.T) {
	assert.Less(t, StatusSending.Rank(), StatusSent.Rank())
	assert.Less(t, StatusSent.Rank(), StatusDelivered.Rank())
	assert.Less(t, StatusDelivered.Rank(), StatusSeen.Rank())
}

func TestMessageKindValid(t *testing.T) {
	for _, kind := range []MessageKind{KindText, KindImage, KindVideo, KindAudio, KindFile} {
		assert.True(t, kind.Valid(), string(kind))
	}
	assert.False(t, MessageKind("sticker").Valid())
	assert.False(t, MessageKind("").Valid())
}

func TestPresenceStatusValid(t *testing.T) {
	for _, status := range []PresenceStatus{PresenceOnline, PresenceAway, PresenceOffline} {
		assert.True(t, status.Valid(), string(status))
	}
	assert.False(t, PresenceStatus("busy").Valid())
}
