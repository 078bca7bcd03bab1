package models

// CreditsResponse is the body of GET /credits; the balance lives in the
// profile table's credit_count column.
type CreditsResponse struct {
	Credits int `json:"credits"`
}
