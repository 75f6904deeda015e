package chathub

// Client is one transport attached to a Session (a WebSocket, a Telegram chat).
// The ManagerService keeps at most one client per session.
type Client interface {
	// GetSessionID returns the session the client drives.
	GetSessionID() string

	// Run starts the client's pumps.
	Run()
	// Close detaches the client from the transport. It must be safe to call
	// more than once.
	Close()
}
