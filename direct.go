// direct.go
package main

import (
	"sort"
	"strings"
	"time"
)

// DirectMessage is a one-to-one message, routed by participant id.
type DirectMessage struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Nickname string `json:"nickname"`
	Content  string `json:"content"`
	Time     string `json:"time"`
}

// DirectRouter resolves targets through presence. Nothing is queued for an
// offline target; the conversation log only records what was sent.
type DirectRouter struct {
	presence      *Presence
	logEnabled    bool
	conversations map[string][]DirectMessage
}

func NewDirectRouter(presence *Presence, logEnabled bool) *DirectRouter {
	return &DirectRouter{
		presence:      presence,
		logEnabled:    logEnabled,
		conversations: make(map[string][]DirectMessage),
	}
}

// Delivery says where a routed message goes. TargetConn is empty when the
// target is offline.
type Delivery struct {
	Message    DirectMessage
	TargetConn string
}

// Send builds the message from senderID to targetID. It returns false when
// the sender is not announced.
func (r *DirectRouter) Send(senderID, targetID, content string, now time.Time) (Delivery, bool) {
	sender, ok := r.presence.Lookup(senderID)
	if !ok {
		return Delivery{}, false
	}

	msg := DirectMessage{
		From:     sender.ID,
		To:       targetID,
		Nickname: sender.Nickname,
		Content:  content,
		Time:     now.Format(messageTimeLayout),
	}
	if r.logEnabled {
		key := conversationKey(sender.ID, targetID)
		r.conversations[key] = append(r.conversations[key], msg)
	}

	delivery := Delivery{Message: msg}
	if target, ok := r.presence.Lookup(targetID); ok {
		delivery.TargetConn = target.ConnID
	}
	return delivery, true
}

// Conversation returns a copy of the log between a and b, in either order.
func (r *DirectRouter) Conversation(a, b string) []DirectMessage {
	log := r.conversations[conversationKey(a, b)]
	out := make([]DirectMessage, len(log))
	copy(out, log)
	return out
}

func conversationKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}
