package models

// Live protocol event names. Each name identifies one tagged payload
// variant; the gateway switches over client events exhaustively.
const (
	// Client -> server.
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventSendMessage       = "sendMessage"
	EventTyping            = "typing"
	EventMessageRead       = "messageRead"
	EventDeleteMessage     = "deleteMessage"
	EventCallUser          = "callUser"
	EventEndCall           = "endCall"

	// Both directions: the client acknowledges delivery with the same
	// event name the server uses for the receipt, and callResponse flows
	// callee -> server -> caller.
	EventMessageDelivered = "messageDelivered"
	EventCallResponse     = "callResponse"

	// Server -> client.
	EventNewMessage           = "newMessage"
	EventUserTyping           = "userTyping"
	EventMessagesRead         = "messagesRead"
	EventMessageDeleted       = "messageDeleted"
	EventIncomingCall         = "incomingCall"
	EventCallEnded            = "callEnded"
	EventUserOnline           = "userOnline"
	EventPendingNotifications = "pendingNotifications"
	EventUnreadCountUpdate    = "unreadCountUpdate"
	EventNewNotification      = "newNotification"
	EventError                = "error"
)

// TypingEvent reports typing activity within a conversation.
type TypingEvent struct {
	UserID         int64 `json:"user_id"`
	ConversationID int64 `json:"conversation_id"`
	IsTyping       bool  `json:"is_typing"`
}

// MessageDeliveredEvent is the delivery receipt sent to the sender.
type MessageDeliveredEvent struct {
	MessageID      int64 `json:"message_id"`
	ConversationID int64 `json:"conversation_id"`
}

// MessagesReadEvent is the batched read receipt sent to the room.
type MessagesReadEvent struct {
	MessageIDs     []int64 `json:"message_ids"`
	ReadBy         int64   `json:"read_by"`
	ConversationID int64   `json:"conversation_id"`
}

// MessageDeletedEvent notifies participants of a deletion.
type MessageDeletedEvent struct {
	MessageID      int64 `json:"message_id"`
	ConversationID int64 `json:"conversation_id"`
}

// CallEvent announces an incoming call.
type CallEvent struct {
	ConversationID int64  `json:"conversation_id"`
	CallerID       int64  `json:"caller_id"`
	ReceiverID     int64  `json:"receiver_id"`
	CallType       string `json:"call_type"`
}

// CallResponseEvent carries accept/decline back to the caller.
type CallResponseEvent struct {
	ConversationID int64 `json:"conversation_id"`
	CallerID       int64 `json:"caller_id"`
	ResponderID    int64 `json:"responder_id"`
	Accepted       bool  `json:"accepted"`
}

// CallEndedEvent tells the counterpart the call finished.
type CallEndedEvent struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
}

// UserOnlineEvent reports a presence change.
type UserOnlineEvent struct {
	UserID   int64 `json:"user_id"`
	IsOnline bool  `json:"is_online"`
}

// PendingNotificationsEvent is the connect-time snapshot of undelivered
// notifications.
type PendingNotificationsEvent struct {
	Notifications []Notification `json:"notifications"`
	Count         int            `json:"count"`
}

// UnreadCountEvent carries the recipient's current unread total.
type UnreadCountEvent struct {
	Count int `json:"count"`
}

// ErrorEvent is a scoped error delivered to one connection.
type ErrorEvent struct {
	Message string `json:"message"`
}
