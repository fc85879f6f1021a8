package entities

import "time"

// Subscriber is an end-user who has messaged a connected Page, identified
// by their page-scoped id (PSID). Created lazily on first inbound event.
type Subscriber struct {
	ID                string    `json:"id"`
	PageID            string    `json:"page_id"` // internal page id (pages.id)
	PSID              string    `json:"psid"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	ProfilePic        string    `json:"profile_pic"`
	Locale            string    `json:"locale"`
	Gender            string    `json:"gender"`
	Tags              []string  `json:"tags"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
}

// SubscriberProfile is the display data fetched from the Graph API on
// first contact. All fields are optional; fetch failures are non-fatal.
type SubscriberProfile struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ProfilePic string `json:"profile_pic"`
	Locale     string `json:"locale"`
	Gender     string `json:"gender"`
}
