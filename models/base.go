package models

import "github.com/google/uuid"

// assignID sets a UUID v4 when the caller did not pick an id.
func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
