package common

// DeliverMessage is the message used to indicate the reason in the response to a deliver request
type DeliverMessage string

const (
	// DeliverOk represents an accepted message
	DeliverOk DeliverMessage = `ok`
	// DeliverBadCommand represents a payload that could not be decoded
	DeliverBadCommand DeliverMessage = `bad command`
	// DeliverUnknownCommand represents an unsupported command code
	DeliverUnknownCommand DeliverMessage = `unknown command`
)

func (d DeliverMessage) String() string {
	return string(d)
}
