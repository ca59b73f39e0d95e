package identity

import (
	"errors"
	"strings"
	"sync"

	"bookan/pkg/domain"
)

// ErrEmailTaken is returned when registering an email that already has an account.
var ErrEmailTaken = errors.New("email already registered")

// Account is a registered principal with its password hash.
type Account struct {
	Principal    domain.Principal
	PasswordHash string
}

// Directory keeps registered accounts in-process, indexed by id and email.
type Directory struct {
	mu    sync.RWMutex
	byID  map[string]Account
	email map[string]string // normalized email -> id
}

func NewDirectory() *Directory {
	return &Directory{
		byID:  make(map[string]Account),
		email: make(map[string]string),
	}
}

// Add registers a new account. Emails are compared case-insensitively.
func (d *Directory) Add(a Account) error {
	key := normalizeEmail(a.Principal.Email)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.email[key]; exists {
		return ErrEmailTaken
	}
	d.byID[a.Principal.ID] = a
	d.email[key] = a.Principal.ID
	return nil
}

// Remove deletes the account with id. Unknown ids are ignored.
func (d *Directory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.byID[id]
	if !ok {
		return
	}
	delete(d.byID, id)
	delete(d.email, normalizeEmail(a.Principal.Email))
}

// ByEmail looks up an account by email.
func (d *Directory) ByEmail(email string) (Account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.email[normalizeEmail(email)]
	if !ok {
		return Account{}, false
	}
	a, ok := d.byID[id]
	return a, ok
}

// ByID looks up an account by principal id.
func (d *Directory) ByID(id string) (Account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.byID[id]
	return a, ok
}

// Count returns the number of registered accounts.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
