package models

// ContributionRecord links an image to a user who has held it at some point
// (creator included). There is at most one record per (image, user) pair.
// Viewed flips to true once the user has acknowledged the finished image.
type ContributionRecord struct {
	ImageID  string
	UserName string
	Viewed   bool
}
