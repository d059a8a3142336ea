// events.go
package main

// Inbound event kinds.
const (
	EventAnnounce       = "announce"
	EventPublishContent = "publishContent"
	EventJoinRoom       = "joinRoom"
	EventRoomMessage    = "roomMessage"
	EventLeaveRoom      = "leaveRoom"
	EventDirectMessage  = "directMessage"
)

// Outbound event kinds.
const (
	EventPresenceCount          = "presenceCount"
	EventContentSnapshot        = "contentSnapshot"
	EventContentPublished       = "contentPublished"
	EventContentExpired         = "contentExpired"
	EventRoomHistory            = "roomHistory"
	EventRoomMemberCount        = "roomMemberCount"
	EventRoomMessagePosted      = "roomMessagePosted"
	EventDirectMessageDelivered = "directMessageDelivered"
)

type announcePayload struct {
	ParticipantID string `json:"participantId" validate:"max=128"`
	Nickname      string `json:"nickname" validate:"max=64"`
	Avatar        string `json:"avatar" validate:"max=1024"`
	Status        string `json:"status" validate:"max=64"`
}

type publishPayload struct {
	Title     string   `json:"title" validate:"max=256"`
	Body      string   `json:"body" validate:"max=4096"`
	Location  Location `json:"location"`
	Author    string   `json:"author" validate:"max=128"`
	Duration  int64    `json:"duration" validate:"lte=31536000"`
	IsPrivate bool     `json:"isPrivate"`
}

type roomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type roomMessagePayload struct {
	RoomID  string `json:"roomId" validate:"required,max=128"`
	Content string `json:"content" validate:"required,max=4096"`
}

type directMessagePayload struct {
	TargetParticipantID string `json:"targetParticipantId" validate:"required,max=128"`
	Content             string `json:"content" validate:"required,max=4096"`
}
