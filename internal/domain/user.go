package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID              string         `json:"id"`
	Email           string         `json:"email"`
	Name            string         `json:"name,omitempty"`
	Role            string         `json:"role"`
	PasswordHash    string         `json:"-"`
	Profile         *PublicProfile `json:"profile,omitempty"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at,omitempty"`
	LoginCodeHash   string         `json:"-"`
	LoginCodeExpiry *time.Time     `json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
}

// IsAdmin indica si el usuario puede acceder a las vistas de administracion.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PublicProfile son los datos publicos traidos por el webhook de perfil al registrarse.
type PublicProfile struct {
	URL      string `json:"url"`
	FullName string `json:"full_name,omitempty"`
	Headline string `json:"headline,omitempty"`
	Location string `json:"location,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Empty es true cuando el webhook no devolvio ningun campo util.
func (p PublicProfile) Empty() bool {
	return p.FullName == "" && p.Headline == "" && p.Location == "" && p.PhotoURL == "" && p.Summary == ""
}
