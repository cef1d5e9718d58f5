package requests

// ClaimConversationRequest pulls a waiting conversation to the calling agent.
type ClaimConversationRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}

// TransferConversationRequest hands a conversation to another owner.
type TransferConversationRequest struct {
	DepartmentID string  `json:"department_id" binding:"required"`
	AgentID      *string `json:"agent_id"`
	ActorID      string  `json:"actor_id" binding:"required"`
	Notes        string  `json:"notes"`
}

// CloseConversationRequest resolves and releases a conversation.
type CloseConversationRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

// SendMessageRequest sends an outbound message on a conversation.
type SendMessageRequest struct {
	SessionName string `json:"session_name" binding:"required"`
	Body        string `json:"body"`
	MediaRef    string `json:"media_ref"`
}
