package transports

import (
	"io"
	"time"
)

// MockTransport implements the session Transport for testing. Each call
// to Write is recorded separately in Writes so tests can assert that a
// logical command goes out as a single batched write.
type MockTransport struct {
	ReadData    []byte
	ReadErr     error
	Writes      [][]byte
	WriteData   []byte
	WriteErr    error
	Closed      bool
	ReadTimeout time.Duration
	FlushCount  int

	// ReadFunc allows custom read behavior for complex tests
	ReadFunc func(p []byte) (int, error)
}

func (m *MockTransport) Read(p []byte) (int, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(p)
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (m *MockTransport) Write(p []byte) (int, error) {
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	written := make([]byte, len(p))
	copy(written, p)
	m.Writes = append(m.Writes, written)
	m.WriteData = append(m.WriteData, p...)
	return len(p), nil
}

func (m *MockTransport) Close() error {
	m.Closed = true
	return nil
}

func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.ReadTimeout = timeout
	return nil
}

func (m *MockTransport) Flush() error {
	m.FlushCount++
	// Don't clear ReadData - tests need to preserve mock response data
	return nil
}

// Reset clears recorded traffic so a test can assert on a single
// operation after session setup.
func (m *MockTransport) Reset() {
	m.Writes = nil
	m.WriteData = nil
	m.ReadData = nil
	m.FlushCount = 0
}
