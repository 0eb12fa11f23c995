package errors

import "fmt"

var (
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrInvalidPayload      = fmt.Errorf("invalid event payload")
	ErrNotAMember          = fmt.Errorf("user is not a member of this conversation")
	ErrConversationMissing = fmt.Errorf("conversation does not exist")
	ErrMessageMissing      = fmt.Errorf("message does not exist")
	ErrEmptyContent        = fmt.Errorf("message content is empty")
	ErrUnknownEvent        = fmt.Errorf("unknown wire event")
)
