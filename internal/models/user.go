package models

import "strings"

// UserIdentity represents the logged-in citizen or official as returned by the
// portal backend. It is owned by the session manager; other packages read it
// and request mutation through the manager.
type UserIdentity struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	Email        string    `json:"email,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	Role         Role      `json:"role,omitempty"`
	Location     *Location `json:"location,omitempty"`
}

// DisplayName derives the presentable name from first/last name.
func (u *UserIdentity) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// Location is the administrative location attached to a user profile.
type Location struct {
	District  string  `json:"district,omitempty"`
	Sector    string  `json:"sector,omitempty"`
	Cell      string  `json:"cell,omitempty"`
	Village   string  `json:"village,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// TokenPair is the access/refresh credential pair issued by the backend.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is the shape returned by /auth/login, /auth/register and
// /auth/refresh (the latter omits the user).
type AuthResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	User         *UserIdentity `json:"user,omitempty"`
}
