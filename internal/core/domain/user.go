package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account owner. Authentication lives outside this service; the
// user record exists so transfers can resolve and validate recipients.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
