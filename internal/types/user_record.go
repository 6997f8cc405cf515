package types

import (
	"time"
)

// UserType is the authentication/subscription tier reported by account linking.
type UserType string

const (
	UserTypeNoAuth     UserType = "NO_AUTH"
	UserTypeAuthFree   UserType = "AUTH_FREE"
	UserTypeSubscribed UserType = "ACCOUNT_SUBSCRIBED"
)

// ReplySummary is the persisted summary of the last transition, used to pick
// the conversation back up when the platform sends an unrecognized intent.
type ReplySummary struct {
	Say        []string `json:"say,omitempty"`
	Ask        []string `json:"ask,omitempty"`
	To         string   `json:"to,omitempty"`
	Flow       string   `json:"flow,omitempty"`
	Directives []string `json:"directives,omitempty"`
}

// UserRecord is the per-user state that survives across invocations.
// AccessToken is transient: it arrives on every request via account linking
// and must never be written to storage.
type UserRecord struct {
	UserID      string        `json:"userId"`
	UserType    UserType      `json:"userType"`
	LastVisit   time.Time     `json:"lastVisit"`
	CreatedDate time.Time     `json:"createdDate,omitempty"`
	Reply       *ReplySummary `json:"reply,omitempty"`
	AccessToken string        `json:"-"`
}

// NewUserRecord returns the default record used when storage has no entry
// for the user yet.
func NewUserRecord(userID string) *UserRecord {
	return &UserRecord{
		UserID:   userID,
		UserType: UserTypeNoAuth,
	}
}

// Clone returns a deep copy so turn-local mutation never aliases a record
// held by a store or another turn.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	out := *u
	if u.Reply != nil {
		r := *u.Reply
		r.Say = append([]string(nil), u.Reply.Say...)
		r.Ask = append([]string(nil), u.Reply.Ask...)
		r.Directives = append([]string(nil), u.Reply.Directives...)
		out.Reply = &r
	}
	return &out
}
