package auth

import (
	"errors"
	"sync"
)

// ErrUserExists is returned when registering a username that is already taken.
var ErrUserExists = errors.New("user already exists")

// Store is an in-memory account registry mapping usernames to password
// hashes. It is safe for concurrent use. Accounts live for the lifetime of
// the process.
type Store struct {
	mu    sync.RWMutex
	users map[string]string
}

// NewStore creates an empty account Store.
func NewStore() *Store {
	return &Store{users: make(map[string]string)}
}

// Register creates an account for username. The password is hashed before
// the store is touched; on conflict no state is mutated.
func (s *Store) Register(username, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return ErrUserExists
	}
	s.users[username] = hash
	return nil
}

// Authenticate reports whether username exists and password matches its
// stored hash. Unknown users and verification errors both read as a failed
// login; callers get a plain yes/no.
func (s *Store) Authenticate(username, password string) bool {
	s.mu.RLock()
	hash, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	match, err := verifyPassword(password, hash)
	return err == nil && match
}
