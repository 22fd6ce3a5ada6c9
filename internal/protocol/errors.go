package protocol

const (
	ErrCodeUnknown    = 1000
	ErrCodeInvalidMsg = 1001

	ErrCodeRoomNotFound = 2001
	ErrCodeRoomFull     = 2002
	ErrCodeNotDealer    = 2003

	ErrCodeWrongPhase  = 3001
	ErrCodeNotYourTurn = 3002
	ErrCodeInvalidBet  = 3003
	ErrCodeEmptyDeck   = 3004
)

// NewErrorMessage - builds the unicast error envelope sent back to the
// originator of a rejected action.
func NewErrorMessage(code int, text string) *Message {
	return MustNewMessage(ActionError, ErrorPayload{Code: code, Message: text})
}
