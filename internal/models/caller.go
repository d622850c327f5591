package models

// Caller is the identity attached to a request by the identity provider.
type Caller struct {
	UserID string
	Name   string
}
