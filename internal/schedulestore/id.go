package schedulestore

import "github.com/google/uuid"

func newReloadID() string {
	return uuid.NewString()
}
