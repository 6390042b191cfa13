package models

// DefaultResultCount is used when an ask request does not specify n_results.
const DefaultResultCount = 5

// AskRequest is a single question submitted for answering.
type AskRequest struct {
	Question    string `json:"question"`
	ResultCount int    `json:"n_results"`
}

// AskResponse is the backend's answer with the context snippets it was built from.
type AskResponse struct {
	Answer  string   `json:"answer"`
	Context []string `json:"context"`
	Query   string   `json:"query,omitempty"`
}
