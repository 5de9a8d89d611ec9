// Package domain contains core business types and interfaces.
//
// This file defines the User domain type. Visitors are anonymous: a user is a
// stable identifier issued on first contact and nothing more. Issuing and
// remembering that identifier is the transport layer's job.
package domain

import "time"

// User represents an anonymous visitor of the chatbot.
type User struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
