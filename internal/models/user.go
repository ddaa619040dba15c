package models

import (
	"time"

	"github.com/google/uuid"
)

// User - учетная запись и профиль заявителя
type User struct {
	ID              uuid.UUID `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	NextOfKinPhone1 string    `json:"next_of_kin_phone_1,omitempty"`
	NextOfKinPhone2 string    `json:"next_of_kin_phone_2,omitempty"`
	PasswordHash    string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}
