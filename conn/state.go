// Package conn implements the per-connection request/response state
// machine: an accept-loop-owned socket plus per-connection scratch state,
// with request parsing delegated to httpmsg instead of doing its own
// byte-scanning.
package conn

// State enumerates every state a Connection can occupy. The
// request-parsing transitions (Init through HeadersReceived) occur in
// OnReadable, via drive; OnReadable and OnWritable also move a connection
// to Closed on an I/O or parse error. Every other transition occurs in
// OnIdle.
type State int

const (
	Init State = iota
	UrlReceived
	HeaderPartReceived
	HeadersReceived
	HeadersProcessed
	ContinueSending
	BodyReceiving
	FootersReceived
	BodyReceived
	HeadersSending
	NormalBodyReady
	NormalBodyUnready
	ChunkedBodyReady
	ChunkedBodyUnready
	FootersSending
	FootersSent
	Upgrading
	Upgraded
	UpgradeClosed
	Closed
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case UrlReceived:
		return "UrlReceived"
	case HeaderPartReceived:
		return "HeaderPartReceived"
	case HeadersReceived:
		return "HeadersReceived"
	case HeadersProcessed:
		return "HeadersProcessed"
	case ContinueSending:
		return "ContinueSending"
	case BodyReceiving:
		return "BodyReceiving"
	case FootersReceived:
		return "FootersReceived"
	case BodyReceived:
		return "BodyReceived"
	case HeadersSending:
		return "HeadersSending"
	case NormalBodyReady:
		return "NormalBodyReady"
	case NormalBodyUnready:
		return "NormalBodyUnready"
	case ChunkedBodyReady:
		return "ChunkedBodyReady"
	case ChunkedBodyUnready:
		return "ChunkedBodyUnready"
	case FootersSending:
		return "FootersSending"
	case FootersSent:
		return "FootersSent"
	case Upgrading:
		return "Upgrading"
	case Upgraded:
		return "Upgraded"
	case UpgradeClosed:
		return "UpgradeClosed"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Interest is what a driver should wait for on a connection's socket,
// derived fresh each idle cycle from State.
type Interest int

const (
	InterestRead Interest = iota
	InterestWrite
	InterestBlock
	InterestCleanup
)

// Membership records which of the daemon's three connection DLLs a
// Connection currently belongs to — an explicit enum checked on every move
// rather than trusting linked-list pointers alone.
type Membership int

const (
	MembershipActive Membership = iota
	MembershipSuspended
	MembershipCleanup
)

// CloseReason records why a Connection moved to Closed, surfaced to the
// application via the NotifyCompleted callback.
type CloseReason int

const (
	CloseNormal CloseReason = iota
	CloseTimeout
	CloseParseError
	CloseApplicationError
	CloseDaemonShutdown
	ClosePeerDisconnect
)
