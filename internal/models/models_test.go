package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScreen(t *testing.T) {
	for _, sc := range Screens() {
		got, err := ParseScreen(string(sc))
		require.NoError(t, err)
		assert.Equal(t, sc, got)
	}

	_, err := ParseScreen("settings")
	assert.Error(t, err)
	_, err = ParseScreen("")
	assert.Error(t, err)
}

func TestIdentityRemote(t *testing.T) {
	assert.False(t, Identity{}.Authenticated())
	assert.False(t, Identity{Kind: IdentityDemo}.Remote())
	assert.False(t, Identity{Kind: IdentityGuest}.Remote())
	assert.True(t, Identity{Kind: IdentityGuest, AccessToken: "tok"}.Remote())
	assert.True(t, Identity{Kind: IdentityRegistered, AccessToken: "tok"}.Remote())
	assert.False(t, Identity{Kind: IdentityDemo, AccessToken: "tok"}.Remote())
}

func TestDharmaProgress(t *testing.T) {
	p := &Profile{DharmaScore: 340}
	assert.Equal(t, 40, p.DharmaProgress())
	p.DharmaScore = 0
	assert.Equal(t, 0, p.DharmaProgress())
	p.DharmaScore = 100
	assert.Equal(t, 0, p.DharmaProgress())
}

func TestTripCloneIsDeep(t *testing.T) {
	end := time.Now()
	trip := &Trip{
		ID:           "t1",
		Destinations: []string{"Shore Temple"},
		Memories:     []Memory{{ID: "m1"}},
		EndDate:      &end,
	}
	c := trip.Clone()
	c.Destinations[0] = "Five Rathas"
	c.Memories[0].ID = "m2"
	*c.EndDate = end.Add(time.Hour)

	assert.Equal(t, "Shore Temple", trip.Destinations[0])
	assert.Equal(t, "m1", trip.Memories[0].ID)
	assert.Equal(t, end, *trip.EndDate)
	assert.Nil(t, (*Trip)(nil).Clone())
}

func TestTripProgress(t *testing.T) {
	assert.Equal(t, 50, (&Trip{CurrentLevel: 3, TotalLevels: 6}).Progress())
	assert.Equal(t, 0, (&Trip{}).Progress())
}
