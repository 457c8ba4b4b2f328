package store

import "time"

// User is an account row. FeaturesMigrated is the one-shot gate for the
// embedded-feature extraction migration.
type User struct {
	ID               string
	Email            string
	DisplayName      string
	PasswordHash     string
	FeaturesMigrated bool
	CreatedAt        time.Time
}
