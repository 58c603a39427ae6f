package domain

// NoticeLevel mirrors the four message styles of the dashboard.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing message attached to a response or a workflow step.
type Notice struct {
	Level   NoticeLevel `json:"level" example:"success"`
	Message string      `json:"message" example:"Product P1 updated"`
}

// Messages shared by the HTTP layer and the update workflow.
const (
	MsgNoProducts     = "No products registered yet."
	MsgNoChanges      = "No changes to apply."
	MsgFieldsRequired = "Code and name are required."
)
