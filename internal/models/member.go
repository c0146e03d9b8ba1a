package models

// Member is the registry record a payment plan is raised for. Identity data
// lives in the membership subsystem; only the fields billing needs are read.
type Member struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	CustomerRef string `json:"customer_ref"`
}
