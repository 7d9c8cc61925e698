package models

// Dashboard is an embeddable analytics report shown to authenticated users.
type Dashboard struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
}
