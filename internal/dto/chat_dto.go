package dto

type SendMessageRequest struct {
	Query     string `json:"query" validate:"required,max=4000"`
	ProjectId *int64 `json:"projectId,omitempty" validate:"omitempty,gt=0"`
	SessionId string `json:"sessionId,omitempty" validate:"omitempty,max=128"`
}

type ChatLinkResponse struct {
	Type  string `json:"type"`
	Id    int64  `json:"id"`
	Title string `json:"title"`
	Url   string `json:"url"`
}

// SendMessageResponse is returned as-is, without the success envelope, so existing
// chat widgets keep working.
type SendMessageResponse struct {
	Answer         string             `json:"answer"`
	Links          []ChatLinkResponse `json:"links"`
	Confidence     float64            `json:"confidence"`
	FallbackKBLink *string            `json:"fallbackKBLink"`
}

type SyncRequestedResponse struct {
	Status string `json:"status"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	LLM         string `json:"llm"`
	VectorStore string `json:"vector_store"`
}
