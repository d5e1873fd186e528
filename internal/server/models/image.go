package models

import "time"

// Image is the relay payload and its hand-off state. NextUser is the only
// user allowed to edit; once HopsLeft reaches zero the image is terminal
// and read-only.
type Image struct {
	ID           string
	Owner        string
	Payload      []byte
	HopsLeft     int
	EditTime     int
	NextUser     string
	PreviousUser string
	// StorageKey is set once the terminal payload has been archived
	// to object storage.
	StorageKey string
	CreatedAt  time.Time
}

// Terminal reports whether the image has run out of hops.
func (i *Image) Terminal() bool {
	return i.HopsLeft == 0
}

// Classification of an actionable image for a given user.
const (
	StatusAwaitingEdit = "awaiting_edit"
	StatusCompleted    = "completed"
)

// ImageSummary is the list-view projection returned by actionable queries.
// Status says why the image concerns the user: an edit is awaited from them,
// or the finished result is pending their acknowledgement.
type ImageSummary struct {
	ID        string
	Owner     string
	HopsLeft  int
	EditTime  int
	Status    string
	CreatedAt time.Time
}
