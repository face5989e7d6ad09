package notify

// Event names pushed to live connections.
const (
	EventNew     = "notification:new"
	EventRead    = "notification:read"
	EventUnread  = "notification:unread"
	EventAllRead = "notification:all-read"
	EventDeleted = "notification:deleted"
)

// Event is one server-to-client message. Data is a [Notification] for
// EventNew, an [IDPayload] for read/unread/deleted and an [AllReadPayload] for
// EventAllRead.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// IDPayload carries the id of the affected notification.
type IDPayload struct {
	NotificationID string `json:"notificationId"`
}

// AllReadPayload summarizes one MarkAllAsRead call.
type AllReadPayload struct {
	OwnerUserID string `json:"ownerUserId"`
	Count       int    `json:"count"`
}

func newEvent(n Notification) Event {
	return Event{Name: EventNew, Data: n}
}

func idEvent(name, id string) Event {
	return Event{Name: name, Data: IDPayload{NotificationID: id}}
}
