package entitlement

import "time"

// UserRecord is the durable entitlement record for one external account.
// AccountID and Key are each unique across the full record set. The JSON
// field names are the external wire names used by every client surface.
type UserRecord struct {
	AccountID  string `json:"discordId"`
	Username   string `json:"username"`
	Key        string `json:"key"`
	HWID       string `json:"hwid,omitempty"`
	CreateTime int64  `json:"createTime"`
	EndTime    int64  `json:"endTime"`
}

// ActiveAt reports whether the entitlement is active at t. Activity is a
// derived property: EndTime strictly greater than t.
func (r *UserRecord) ActiveAt(t time.Time) bool {
	return r.EndTime > t.Unix()
}

// Bound reports whether a device is bound to this record.
func (r *UserRecord) Bound() bool {
	return r.HWID != ""
}

// Clone returns a copy of the record. Store adapters hand out clones so
// callers can never mutate stored state outside a transaction.
func (r *UserRecord) Clone() *UserRecord {
	c := *r
	return &c
}
