package domain

// MessagesResponse lists the conversational history of a session.
type MessagesResponse struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}

// TaskResultsResponse lists the stored task results of a session.
type TaskResultsResponse struct {
	SessionID string       `json:"session_id"`
	Results   []TaskResult `json:"results"`
}

// RagSearchResponse lists RagDoc search hits.
type RagSearchResponse struct {
	Query    string   `json:"query"`
	Category string   `json:"category,omitempty"`
	Docs     []RagDoc `json:"docs"`
}
