package chathub_test

import "sync"

type MockClient struct {
	sessionID string

	mu     sync.Mutex
	closed int
}

func newMockClient(sessionID string) *MockClient {
	return &MockClient{sessionID: sessionID}
}

func (c *MockClient) GetSessionID() string {
	return c.sessionID
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
}

func (c *MockClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed > 0
}
