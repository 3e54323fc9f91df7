package domain

type NotificationType string

const (
	NotificationProduct    NotificationType = "product_update"
	NotificationOrder      NotificationType = "order_update"
	NotificationPayment    NotificationType = "payment_update"
	NotificationCollection NotificationType = "collection_reminder"
)

// Notification is addressed to one user and returned from a
// transition rather than delivered directly; the caller hands it to
// whatever transport it likes.
type Notification struct {
	TargetUserID    string           `json:"target_user_id"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	Type            NotificationType `json:"type"`
	RelatedEntityID string           `json:"related_entity_id"`
}

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
)

// ChangeEvent tells change-feed subscribers that a record mutated so
// read-side projections can refresh.
type ChangeEvent struct {
	EntityType EntityType `json:"entity_type"`
	Kind       ChangeKind `json:"kind"`
	EntityID   string     `json:"entity_id"`
}
