package domain

// ErrorResponse is the body written by the API for every failed request.
// @Description Standard error body.
type ErrorResponse struct {
	Code     int    `json:"code" example:"404"`
	Category string `json:"category" example:"NOT_FOUND"`
	Message  string `json:"message" example:"not found: product with code 'P1' does not exist"`
}
