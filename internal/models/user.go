// internal/models/user.go
package models

import "time"

// User is a registered farmer. Mobile numbers are unique; login is
// find-or-create by mobile.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	MobileNumber string    `json:"mobileNumber" db:"mobile_number"`
	Language     string    `json:"language" db:"language"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
