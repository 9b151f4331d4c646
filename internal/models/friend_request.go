package models

import "time"

// FriendRequestStatus is the state of the per-pair friendship record.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest is the single friendship negotiation record of a user pair.
type FriendRequest struct {
	ID          int64               `db:"id" json:"id"`
	SenderID    int64               `db:"sender_id" json:"senderId"`
	RecipientID int64               `db:"recipient_id" json:"recipientId"`
	Status      FriendRequestStatus `db:"status" json:"status"`
	Message     *string             `db:"message" json:"message,omitempty"`
	CreatedAt   time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updatedAt"`

	Sender *UserSummary `db:"-" json:"sender,omitempty"`
}

// Involves reports whether userID is either side of the request.
func (r FriendRequest) Involves(userID int64) bool {
	return r.SenderID == userID || r.RecipientID == userID
}

// PairKey is the order-independent key of a user pair.
func PairKey(a, b int64) string {
	return DirectKey(a, b)
}
