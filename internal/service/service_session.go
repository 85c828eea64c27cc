package service

import (
	"context"
	"log"
	"sync"

	"github.com/printops/mps-console/internal/upstream"
)

// ServiceSession is the gateway's own upstream session, used for calls
// that carry no user context (catalog sync, readiness probes). It
// satisfies the scheduler's TokenSource and Refresher contracts; the
// scheduler keeps its access token fresh for the life of the process.
type ServiceSession struct {
	upstream *upstream.Client
	username string
	password string

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
}

func NewServiceSession(upstreamClient *upstream.Client, username, password string) *ServiceSession {
	return &ServiceSession{
		upstream: upstreamClient,
		username: username,
		password: password,
	}
}

// AccessToken returns the current access token, "" before first login.
func (s *ServiceSession) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// Login establishes the session with the service-account credentials.
func (s *ServiceSession) Login(ctx context.Context) error {
	resp, err := s.upstream.Login(ctx, upstream.LoginRequest{
		Username: s.username,
		Password: s.password,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.mu.Unlock()
	return nil
}

// Refresh rotates the session's token pair. Without a refresh token it
// falls back to a full login. A failed refresh drops both tokens so the
// scheduler's polling state sees a logged-out session.
func (s *ServiceSession) Refresh(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	if refreshToken == "" {
		return s.Login(ctx)
	}

	resp, err := s.upstream.Refresh(ctx, refreshToken)
	if err != nil {
		s.mu.Lock()
		s.accessToken = ""
		s.refreshToken = ""
		s.mu.Unlock()
		log.Printf("[SERVICE_SESSION] refresh failed, session dropped: %v", err)
		return err
	}

	s.mu.Lock()
	s.accessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		s.refreshToken = resp.RefreshToken
	}
	s.mu.Unlock()
	return nil
}
