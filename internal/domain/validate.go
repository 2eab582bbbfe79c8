package domain

// ValidationReport is the outcome of a structural check over analysis results.
type ValidationReport struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}
