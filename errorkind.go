// Package corehttpd is the module root: it names the error taxonomy
// shared across every subpackage and re-exports nothing else —
// applications import daemon, response, and conn directly.
package corehttpd

// Kind classifies why a connection's NotifyCompleted callback fired.
type Kind int

const (
	// CompletedOK: the response was sent and the connection closed (or
	// went keep-alive and later reached Closed) without any error.
	CompletedOK Kind = iota
	// ParseError: malformed request line, header line without colon,
	// chunked framing violation.
	ParseError
	// ResourceExhaustion: pool grow failed, malloc failed.
	ResourceExhaustion
	// ProtocolLimitExceeded: body larger than Content-Length, line longer
	// than permitted.
	ProtocolLimitExceeded
	// TimeoutReached: no activity within the connection's timeout.
	TimeoutReached
	// PeerDisconnect: recv returned 0 or ECONNRESET.
	PeerDisconnect
	// ApplicationError: handler callback rejected the connection.
	ApplicationError
	// DaemonShutdown: daemon Stop was invoked.
	DaemonShutdown
	// WithError: a TLS/IO error surfaced outside the above categories.
	WithError
)

func (k Kind) String() string {
	switch k {
	case CompletedOK:
		return "CompletedOK"
	case ParseError:
		return "ParseError"
	case ResourceExhaustion:
		return "ResourceExhaustion"
	case ProtocolLimitExceeded:
		return "ProtocolLimitExceeded"
	case TimeoutReached:
		return "TimeoutReached"
	case PeerDisconnect:
		return "PeerDisconnect"
	case ApplicationError:
		return "ApplicationError"
	case DaemonShutdown:
		return "DaemonShutdown"
	case WithError:
		return "WithError"
	default:
		return "Unknown"
	}
}
