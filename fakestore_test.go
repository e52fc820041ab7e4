package authcore

import (
	"context"
	"strings"
	"sync"
	"time"
)

// fakeCredentialStore is an in-memory CredentialStore with the same
// atomicity guarantees the contract demands from real implementations.
type fakeCredentialStore struct {
	mu    sync.Mutex
	creds map[string]*Credential

	failAll bool
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{creds: map[string]*Credential{}}
}

func (s *fakeCredentialStore) put(cred *Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.ID] = cloneCredential(cred)
}

func (s *fakeCredentialStore) get(id string) *Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCredential(s.creds[id])
}

func cloneCredential(c *Credential) *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.LockoutUntil != nil {
		t := *c.LockoutUntil
		out.LockoutUntil = &t
	}
	if c.LastLoginAt != nil {
		t := *c.LastLoginAt
		out.LastLoginAt = &t
	}
	if c.DeactivatedAt != nil {
		t := *c.DeactivatedAt
		out.DeactivatedAt = &t
	}
	return &out
}

func (s *fakeCredentialStore) FindByEmail(_ context.Context, email string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errBackendDown
	}
	for _, c := range s.creds {
		if strings.EqualFold(c.Email, email) {
			return cloneCredential(c), nil
		}
	}
	return nil, ErrCredentialNotFound
}

func (s *fakeCredentialStore) FindByID(_ context.Context, id string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errBackendDown
	}
	c, ok := s.creds[id]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return cloneCredential(c), nil
}

func (s *fakeCredentialStore) UpdatePasswordDigest(_ context.Context, id, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return ErrCredentialNotFound
	}
	c.PasswordDigest = digest
	return nil
}

func (s *fakeCredentialStore) SetLockoutState(_ context.Context, id string, failedLogins int, until *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return ErrCredentialNotFound
	}
	c.FailedLogins = failedLogins
	if until == nil {
		c.LockoutUntil = nil
	} else {
		t := *until
		c.LockoutUntil = &t
	}
	return nil
}

func (s *fakeCredentialStore) IncrementFailedLogins(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return 0, ErrCredentialNotFound
	}
	c.FailedLogins++
	return c.FailedLogins, nil
}

func (s *fakeCredentialStore) RecordLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return ErrCredentialNotFound
	}
	t := at
	c.LastLoginAt = &t
	return nil
}

func (s *fakeCredentialStore) MarkEmailVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return ErrCredentialNotFound
	}
	c.EmailVerified = true
	return nil
}

func (s *fakeCredentialStore) SetSingleUse(_ context.Context, id string, purpose Purpose, slot SingleUseSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return ErrCredentialNotFound
	}
	if purpose == PurposeEmailVerification {
		c.Verify = slot
	} else {
		c.Reset = slot
	}
	return nil
}

func (s *fakeCredentialStore) FindBySingleUseDigest(_ context.Context, purpose Purpose, digest string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.creds {
		if c.Slot(purpose).Digest == digest {
			return cloneCredential(c), nil
		}
	}
	return nil, ErrCredentialNotFound
}

func (s *fakeCredentialStore) ClearSingleUse(_ context.Context, id string, purpose Purpose, ifDigest string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return false, ErrCredentialNotFound
	}
	slot := c.Slot(purpose)
	if slot.Digest != ifDigest {
		return false, nil
	}
	if purpose == PurposeEmailVerification {
		c.Verify = SingleUseSlot{}
	} else {
		c.Reset = SingleUseSlot{}
	}
	return true, nil
}

func (s *fakeCredentialStore) SweepSingleUse(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := 0
	for _, c := range s.creds {
		if !c.Reset.Empty() && !c.Reset.Live(now) {
			c.Reset = SingleUseSlot{}
			cleared++
		}
		if !c.Verify.Empty() && !c.Verify.Live(now) {
			c.Verify = SingleUseSlot{}
			cleared++
		}
	}
	return cleared, nil
}
