package session

import (
	"context"
	"fmt"

	"github.com/alphadose/haxmap"
	"google.golang.org/adk/session"
)

// Manager maps AG-UI threads to agent sessions
type Manager struct {
	service session.Service
	appName string
	// thread id to session id
	threads *haxmap.Map[string, string]
}

// NewManager creates a session manager backed by an in-memory session service
func NewManager(appName string) *Manager {
	return NewManagerWithService(appName, session.InMemoryService())
}

// NewManagerWithService creates a session manager on top of service
func NewManagerWithService(appName string, service session.Service) *Manager {
	return &Manager{
		service: service,
		appName: appName,
		threads: haxmap.New[string, string](),
	}
}

// Create creates a new session
func (m *Manager) Create(ctx context.Context, userID string) (session.Session, error) {
	resp, err := m.service.Create(ctx, &session.CreateRequest{
		AppName: m.appName,
		UserID:  userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return resp.Session, nil
}

// ForThread returns the session of a thread, creating it on first use. Later runs of
// the same thread continue the same conversation.
func (m *Manager) ForThread(ctx context.Context, userID, threadID string) (session.Session, error) {
	if id, ok := m.threads.Get(threadID); ok {
		resp, err := m.service.Get(ctx, &session.GetRequest{
			AppName:   m.appName,
			UserID:    userID,
			SessionID: id,
		})
		if err == nil && resp != nil {
			return resp.Session, nil
		}
		// the service lost it; start over
		m.threads.Del(threadID)
	}

	sess, err := m.Create(ctx, userID)
	if err != nil {
		return nil, err
	}
	if threadID != "" {
		m.threads.Set(threadID, sess.ID())
	}
	return sess, nil
}

// Forget drops the session mapping of a thread
func (m *Manager) Forget(threadID string) {
	m.threads.Del(threadID)
}

// Threads returns the number of threads with a session
func (m *Manager) Threads() int {
	return int(m.threads.Len())
}

// AppName returns the application name sessions are created under
func (m *Manager) AppName() string { return m.appName }

// Service returns the underlying session service
func (m *Manager) Service() session.Service {
	return m.service
}
