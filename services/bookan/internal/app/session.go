package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"bookan/internal/util"
	"bookan/pkg/auth"
	"bookan/pkg/domain"
	"bookan/pkg/identity"
	"bookan/pkg/kv"
)

// SessionKey is the durable key holding the persisted principal.
const SessionKey = "bookan_user"

const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// loginNamespace derives stable principal ids for emails without an account.
var loginNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://bookan.app/principals"))

// Session owns the active principal and its persisted copy.
type Session struct {
	deps
	kv         kv.Store
	codec      identity.Codec
	identities *identity.Store
	directory  *identity.Directory
	verify     bool

	// mu serializes login, register, logout and restore so the store and the
	// persisted value change together.
	mu      sync.Mutex
	loading atomic.Bool
}

type loginInput struct {
	Email string `validate:"required,email"`
}

// RegisterInput carries the fields merged into a new principal.
type RegisterInput struct {
	Name     string      `json:"name" validate:"max=120"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required"`
	Role     domain.Role `json:"role" validate:"omitempty,oneof=Reader Library Bookshop"`
}

// Login makes the principal for email active and persists it.
// Credentials are only checked when verification is enabled.
func (s *Session) Login(ctx context.Context, email, password string) (domain.Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := s.checkInput(loginInput{Email: email}); err != nil {
		return domain.Principal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, registered := s.directory.ByEmail(email)
	if s.verify && (!registered || !auth.CheckPassword(password, account.PasswordHash)) {
		s.log(ctx).Info("login rejected", "reason", "credentials")
		return domain.Principal{}, ErrInvalidCredentials
	}

	var p domain.Principal
	if registered {
		p = account.Principal
	} else {
		p = domain.Principal{
			ID:        uuid.NewSHA1(loginNamespace, []byte(email)).String(),
			Name:      localPart(email),
			Email:     email,
			Role:      domain.RoleReader,
			Avatar:    avatarFor(email),
			CreatedAt: s.now().UTC(),
		}
	}
	if err := s.persist(ctx, p); err != nil {
		return domain.Principal{}, err
	}
	s.identities.Set(p)
	s.log(ctx).Info("principal logged in", "principal_id", p.ID)
	return p, nil
}

// Register creates an account, makes it active and persists it.
func (s *Session) Register(ctx context.Context, in RegisterInput) (domain.Principal, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := s.checkInput(in); err != nil {
		return domain.Principal{}, err
	}
	if in.Name == "" {
		in.Name = localPart(in.Email)
	}
	if in.Role == "" {
		in.Role = domain.RoleReader
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := domain.Principal{
		ID:        util.NewID(),
		Name:      in.Name,
		Email:     in.Email,
		Role:      in.Role,
		Avatar:    avatarFor(in.Email),
		CreatedAt: s.now().UTC(),
	}
	if err := s.directory.Add(identity.Account{Principal: p, PasswordHash: hash}); err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return domain.Principal{}, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return domain.Principal{}, fmt.Errorf("register account: %w", err)
	}
	if err := s.persist(ctx, p); err != nil {
		s.directory.Remove(p.ID)
		return domain.Principal{}, err
	}
	s.identities.Set(p)
	s.log(ctx).Info("principal registered", "principal_id", p.ID, "role", p.Role)
	return p, nil
}

// Logout removes the persisted principal, then clears the active one.
// Calling it without an active principal is not an error.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Remove(ctx, SessionKey); err != nil {
		return fmt.Errorf("%w: remove session: %v", ErrPersistence, err)
	}
	s.identities.Clear()
	return nil
}

// Restore reloads the persisted principal. A malformed value is discarded
// and reported as absent. Loading is finished when Restore returns.
func (s *Session) Restore(ctx context.Context) (domain.Principal, bool, error) {
	defer s.loading.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(ctx, SessionKey)
	if err != nil {
		return domain.Principal{}, false, fmt.Errorf("%w: read session: %v", ErrPersistence, err)
	}
	if !ok {
		return domain.Principal{}, false, nil
	}
	p, err := s.codec.Decode(raw)
	if err != nil {
		s.log(ctx).Warn("discarding persisted principal", "err", err)
		if rmErr := s.kv.Remove(ctx, SessionKey); rmErr != nil {
			s.log(ctx).Warn("remove persisted principal failed", "err", rmErr)
		}
		return domain.Principal{}, false, nil
	}
	s.identities.Set(p)
	return p, true, nil
}

// Current returns the active principal.
func (s *Session) Current() (domain.Principal, bool) {
	return s.identities.Current()
}

// Loading reports whether the initial restore has not finished yet.
func (s *Session) Loading() bool {
	return s.loading.Load()
}

// Require returns the active principal or ErrUnauthenticated.
func (s *Session) Require() (domain.Principal, error) {
	p, ok := s.identities.Current()
	if !ok {
		return domain.Principal{}, ErrUnauthenticated
	}
	return p, nil
}

func (s *Session) persist(ctx context.Context, p domain.Principal) error {
	raw, err := s.codec.Encode(p)
	if err != nil {
		return fmt.Errorf("encode principal: %w", err)
	}
	if err := s.kv.Set(ctx, SessionKey, raw); err != nil {
		return fmt.Errorf("%w: write session: %v", ErrPersistence, err)
	}
	return nil
}

func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

func avatarFor(seed string) string {
	return avatarBaseURL + seed
}
