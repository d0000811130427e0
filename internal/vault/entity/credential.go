package entity

import "time"

// Credential is one stored login. Secret is sealed for the owner and never
// leaves the usecase layer in plaintext except through a gated operation.
type Credential struct {
	ID        int64
	UserID    int64
	Name      string
	Username  string
	URL       string
	Secret    []byte
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExportItem is a decrypted credential as written to an export file.
type ExportItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username,omitempty"`
	URL       string    `json:"url,omitempty"`
	Password  string    `json:"password"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Export struct {
	UserID     string       `json:"user_id"`
	ExportedAt time.Time    `json:"exported_at"`
	Items      []ExportItem `json:"items"`
}
