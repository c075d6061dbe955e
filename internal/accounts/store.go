// Package accounts implements the site's local account store: a users
// collection and a single active session, both kept as JSON values in a
// storage.Storage medium.
//
// Passwords are stored and compared in plaintext and sessions carry no token
// or signature. Anyone able to write to the medium can forge a login.
package accounts

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wellnesscoach/site-accounts/internal/storage"
)

const (
	DefaultUsersKey   = "users"
	DefaultSessionKey = "currentUser"
)

const (
	ActionRegister      = "account.register"
	ActionLogin         = "account.login"
	ActionLogout        = "account.logout"
	ActionResetPassword = "account.reset_password"

	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Auditor receives one event per mutating operation.
type Auditor interface {
	Log(actor, action, outcome, detail string) error
}

type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithAuditor(a Auditor) Option {
	return func(s *Store) { s.auditor = a }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFunc = now
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func WithKeys(usersKey, sessionKey string) Option {
	return func(s *Store) {
		if usersKey != "" {
			s.usersKey = usersKey
		}
		if sessionKey != "" {
			s.sessionKey = sessionKey
		}
	}
}

// Store owns every read and write of the users collection and the session.
// Each method is one full read-modify-write; the mutex serializes callers
// sharing an instance. Writers in other processes are last-write-wins.
type Store struct {
	storage    storage.Storage
	usersKey   string
	sessionKey string
	nowFunc    func() time.Time
	newID      func() string
	log        zerolog.Logger
	auditor    Auditor

	mu sync.Mutex
}

func New(st storage.Storage, opts ...Option) (*Store, error) {
	if st == nil {
		return nil, fmt.Errorf("storage is required")
	}
	s := &Store{
		storage:    st,
		usersKey:   DefaultUsersKey,
		sessionKey: DefaultSessionKey,
		nowFunc:    time.Now,
		newID:      uuid.NewString,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.usersKey == s.sessionKey {
		return nil, fmt.Errorf("users key and session key must differ")
	}
	return s, nil
}

// ListUsers never fails: unreadable or malformed data yields an empty slice.
func (s *Store) ListUsers() []UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listUsersLocked()
}

// SaveUsers replaces the whole collection and returns records unchanged.
func (s *Store) SaveUsers(records []UserRecord) ([]UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveUsersLocked(records)
}

func (s *Store) Register(firstName, lastName, email, password string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = NormalizeEmail(email)
	users := s.listUsersLocked()
	for _, u := range users {
		if NormalizeEmail(u.Email) == email {
			s.audit(email, ActionRegister, OutcomeFailed, ErrEmailTaken.Error())
			return UserRecord{}, ErrEmailTaken
		}
	}

	rec := UserRecord{
		ID:        s.newID(),
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  password,
	}
	if _, err := s.saveUsersLocked(append(users, rec)); err != nil {
		s.audit(email, ActionRegister, OutcomeFailed, err.Error())
		return UserRecord{}, err
	}

	s.log.Debug().Str("user_id", rec.ID).Msg("user registered")
	s.audit(email, ActionRegister, OutcomeSuccess, "id="+rec.ID)
	return rec, nil
}

func (s *Store) Login(email, password string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = NormalizeEmail(email)
	users := s.listUsersLocked()

	var (
		match UserRecord
		found bool
	)
	for _, u := range users {
		if NormalizeEmail(u.Email) == email && u.Password == password {
			match = u
			found = true
			break
		}
	}
	if !found {
		s.audit(email, ActionLogin, OutcomeFailed, ErrInvalidCredentials.Error())
		return Session{}, ErrInvalidCredentials
	}

	session := Session{UserRecord: match}
	session.LoginTime = formatTimestamp(s.nowFunc())

	raw, err := encodeSession(session)
	if err != nil {
		return Session{}, err
	}
	if err := s.storage.SetItem(s.sessionKey, raw); err != nil {
		s.audit(email, ActionLogin, OutcomeFailed, err.Error())
		return Session{}, fmt.Errorf("write session: %w", err)
	}
	// The collection is written back as read; nothing in it changes on login.
	if _, err := s.saveUsersLocked(users); err != nil {
		return Session{}, err
	}

	s.log.Debug().Str("user_id", session.ID).Msg("session started")
	s.audit(email, ActionLogin, OutcomeSuccess, "id="+session.ID)
	return session, nil
}

// Logout ends the active session. Sessions whose role is "admin" do not get
// logoutTime recorded; the isAdmin flag alone does not exempt a user. The
// session is removed even when recording logoutTime fails.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.currentUserLocked()

	var saveErr error
	if ok && session.Role != RoleAdmin {
		users := s.listUsersLocked()
		for i := range users {
			if users[i].ID != session.ID {
				continue
			}
			users[i].LogoutTime = formatTimestamp(s.nowFunc())
			_, saveErr = s.saveUsersLocked(users)
			break
		}
	}

	var removeErr error
	if err := s.storage.RemoveItem(s.sessionKey); err != nil {
		removeErr = fmt.Errorf("remove session: %w", err)
	}

	if err := errors.Join(saveErr, removeErr); err != nil {
		if ok {
			s.audit(session.Email, ActionLogout, OutcomeFailed, err.Error())
		}
		return err
	}
	if ok {
		s.log.Debug().Str("user_id", session.ID).Msg("session ended")
		s.audit(session.Email, ActionLogout, OutcomeSuccess, "id="+session.ID)
	}
	return nil
}

// CurrentUser returns the active session, or false when there is none or it
// cannot be read.
func (s *Store) CurrentUser() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUserLocked()
}

func (s *Store) IsAuthenticated() bool {
	_, ok := s.CurrentUser()
	return ok
}

func (s *Store) IsAdmin() bool {
	session, ok := s.CurrentUser()
	return ok && session.HasAdminRights()
}

// ResetPassword changes the stored password. An active session for the same
// user keeps its old snapshot until the next login.
func (s *Store) ResetPassword(email, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = NormalizeEmail(email)
	users := s.listUsersLocked()

	idx := -1
	for i, u := range users {
		if NormalizeEmail(u.Email) == email {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.audit(email, ActionResetPassword, OutcomeFailed, ErrUserNotFound.Error())
		return ErrUserNotFound
	}

	users[idx].Password = newPassword
	users[idx].PasswordResetTime = formatTimestamp(s.nowFunc())
	if _, err := s.saveUsersLocked(users); err != nil {
		s.audit(email, ActionResetPassword, OutcomeFailed, err.Error())
		return err
	}

	s.log.Debug().Str("user_id", users[idx].ID).Msg("password reset")
	s.audit(email, ActionResetPassword, OutcomeSuccess, "id="+users[idx].ID)
	return nil
}

func (s *Store) listUsersLocked() []UserRecord {
	raw, ok, err := s.storage.GetItem(s.usersKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.usersKey).Msg("read users failed; treating as empty")
		return []UserRecord{}
	}
	if !ok {
		return []UserRecord{}
	}
	users, err := decodeUsers(raw)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.usersKey).Int("kept", len(users)).Msg("malformed users value")
	}
	return users
}

func (s *Store) saveUsersLocked(records []UserRecord) ([]UserRecord, error) {
	raw, err := encodeUsers(records)
	if err != nil {
		return records, err
	}
	if err := s.storage.SetItem(s.usersKey, raw); err != nil {
		return records, fmt.Errorf("write users: %w", err)
	}
	return records, nil
}

func (s *Store) currentUserLocked() (Session, bool) {
	raw, ok, err := s.storage.GetItem(s.sessionKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.sessionKey).Msg("read session failed; treating as logged out")
		return Session{}, false
	}
	if !ok {
		return Session{}, false
	}
	session, ok, err := decodeSession(raw)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.sessionKey).Msg("malformed session value")
		return Session{}, false
	}
	return session, ok
}

func (s *Store) audit(actor, action, outcome, detail string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Log(actor, action, outcome, detail); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}
