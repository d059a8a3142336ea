package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDirectRouter_Send_Resolves_Target_Connection(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	presence.Announce(Participant{ID: "alice", Nickname: "Alice", ConnID: "c1"})
	presence.Announce(Participant{ID: "bob", Nickname: "Bob", ConnID: "c2"})
	router := NewDirectRouter(presence, true)

	delivery, ok := router.Send("alice", "bob", "hi bob", time.Now())

	req.True(ok)
	req.Equal("c2", delivery.TargetConn)
	req.Equal("alice", delivery.Message.From)
	req.Equal("bob", delivery.Message.To)
	req.Equal("Alice", delivery.Message.Nickname)
	req.Equal("hi bob", delivery.Message.Content)
}

func TestDirectRouter_Send_To_Offline_Target(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	presence.Announce(Participant{ID: "alice", ConnID: "c1"})
	router := NewDirectRouter(presence, true)

	delivery, ok := router.Send("alice", "bob", "are you there", time.Now())

	req.True(ok)
	req.Empty(delivery.TargetConn)

	// Nothing is waiting for bob when he shows up
	presence.Announce(Participant{ID: "bob", ConnID: "c2"})
	req.Len(router.Conversation("bob", "alice"), 1)
}

func TestDirectRouter_Send_From_Unannounced_Sender_Is_Dropped(t *testing.T) {
	req := require.New(t)
	router := NewDirectRouter(NewPresence(), true)

	_, ok := router.Send("ghost", "bob", "boo", time.Now())

	req.False(ok)
	req.Empty(router.Conversation("ghost", "bob"))
}

func TestDirectRouter_Conversation_Is_Keyed_By_Unordered_Pair(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	presence.Announce(Participant{ID: "alice", ConnID: "c1"})
	presence.Announce(Participant{ID: "bob", ConnID: "c2"})
	router := NewDirectRouter(presence, true)

	router.Send("alice", "bob", "1", time.Now())
	router.Send("bob", "alice", "2", time.Now())
	router.Send("alice", "bob", "3", time.Now())

	log := router.Conversation("bob", "alice")
	req.Len(log, 3)
	req.Equal([]string{"1", "2", "3"}, []string{log[0].Content, log[1].Content, log[2].Content})
	req.Equal(conversationKey("alice", "bob"), conversationKey("bob", "alice"))
}

func TestDirectRouter_Log_Disabled(t *testing.T) {
	req := require.New(t)
	presence := NewPresence()
	presence.Announce(Participant{ID: "alice", ConnID: "c1"})
	router := NewDirectRouter(presence, false)

	_, ok := router.Send("alice", "bob", "hi", time.Now())

	req.True(ok)
	req.Empty(router.Conversation("alice", "bob"))
}
