package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPresence_Count_Tracks_Distinct_Announced_Participants(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()

	// When five distinct participants announce
	for i := 0; i < 5; i++ {
		presence.Announce(Participant{ID: fmt.Sprintf("u%d", i), ConnID: fmt.Sprintf("c%d", i)})
	}

	// Then
	req.Equal(5, presence.Count())

	// When two of them leave
	req.True(presence.RemoveBinding("u1", "c1"))
	req.True(presence.Remove("u3"))

	// Then
	req.Equal(3, presence.Count())
	_, ok := presence.Lookup("u1")
	req.False(ok)
}

func TestPresence_Reannounce_Rebinds_Connection(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	joined := time.Now()

	// Given u1 announced from c1
	presence.Announce(Participant{ID: "u1", Nickname: "old", ConnID: "c1", JoinedAt: joined})

	// When u1 announces again from c2
	presence.Announce(Participant{ID: "u1", Nickname: "new", ConnID: "c2", JoinedAt: joined})

	// Then the count is unchanged and the record points at c2
	req.Equal(1, presence.Count())
	participant, ok := presence.Lookup("u1")
	req.True(ok)
	req.Equal("c2", participant.ConnID)
	req.Equal("new", participant.Nickname)

	// And the stale connection cannot remove it
	req.False(presence.RemoveBinding("u1", "c1"))
	req.Equal(1, presence.Count())
}

func TestPresence_Remove_Unknown_Is_NoOp(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()

	req.False(presence.Remove("ghost"))
	req.False(presence.RemoveBinding("ghost", "c1"))
	req.Zero(presence.Count())
}

func TestPresence_BoundTo(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	presence.Announce(Participant{ID: "u1", ConnID: "c1"})

	req.True(presence.BoundTo("u1", "c1"))
	req.False(presence.BoundTo("u1", "c2"))
	req.False(presence.BoundTo("", "c1"))
	req.False(presence.BoundTo("ghost", "c1"))

	// When u1 is taken over by c2
	presence.Announce(Participant{ID: "u1", ConnID: "c2"})

	// Then c1 is no longer bound
	req.False(presence.BoundTo("u1", "c1"))
	req.True(presence.BoundTo("u1", "c2"))
}
