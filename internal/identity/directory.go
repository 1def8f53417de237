// ABOUTME: Shared account directory backing the local identity provider
// ABOUTME: Stores bcrypt-hashed credentials and profile display fields

package identity

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the provider-side minimum password length.
const MinPasswordLength = 6

// emailRegex accepts the usual local@domain.tld shape. Deliberately loose;
// the provider is the final authority on deliverability.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// account is the directory's internal record. The password hash never leaves
// this package.
type account struct {
	id           string
	email        string
	passwordHash []byte
	displayName  string
	avatarURL    string
	external     bool // created via an interactive provider, no password
}

// Directory is the account database shared by every LocalProvider instance.
// It plays the server side of the identity provider: one directory, many
// per-session provider views.
type Directory struct {
	mu         sync.RWMutex
	byEmail    map[string]*account
	bcryptCost int
	logger     *slog.Logger
}

// NewDirectory creates an empty account directory. A bcryptCost of 0 selects
// the library default.
func NewDirectory(bcryptCost int) *Directory {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Directory{
		byEmail:    make(map[string]*account),
		bcryptCost: bcryptCost,
		logger:     slog.Default().With("component", "identity-directory"),
	}
}

// CreateAccount validates and registers a new password account.
func (d *Directory) CreateAccount(email, password string) (*Identity, error) {
	email = normalizeEmail(email)
	if !emailRegex.MatchString(email) {
		return nil, fmt.Errorf("%w: email", ErrMalformedCredentials)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password shorter than %d characters", ErrMalformedCredentials, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byEmail[email]; ok {
		return nil, ErrAccountExists
	}

	acct := &account{
		id:           uuid.New().String(),
		email:        email,
		passwordHash: hash,
	}
	d.byEmail[email] = acct

	d.logger.Info("account created", "account_id", acct.id)
	return acct.identity(), nil
}

// Authenticate verifies an email/password pair and returns the identity.
func (d *Directory) Authenticate(email, password string) (*Identity, error) {
	email = normalizeEmail(email)

	d.mu.RLock()
	acct, ok := d.byEmail[email]
	d.mu.RUnlock()

	if !ok {
		return nil, ErrAccountNotFound
	}
	if acct.external && len(acct.passwordHash) == 0 {
		return nil, ErrInvalidPassword
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return acct.identity(), nil
}

// EnsureExternal upserts an account for an identity asserted by an external
// consent flow. Matching is by email; an existing password account is reused
// so local and interactive sign-ins converge on one record.
func (d *Directory) EnsureExternal(id *Identity) (*Identity, error) {
	email := normalizeEmail(id.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: external identity has no email", ErrProviderUnavailable)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	acct, ok := d.byEmail[email]
	if !ok {
		acct = &account{
			id:          uuid.New().String(),
			email:       email,
			displayName: id.DisplayName,
			avatarURL:   id.AvatarURL,
			external:    true,
		}
		d.byEmail[email] = acct
		d.logger.Info("external account created", "account_id", acct.id)
	}
	return acct.identity(), nil
}

// UpdateProfile sets the display fields of an existing account.
func (d *Directory) UpdateProfile(accountID, name, avatarURL string) (*Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, acct := range d.byEmail {
		if acct.id == accountID {
			acct.displayName = name
			acct.avatarURL = avatarURL
			return acct.identity(), nil
		}
	}
	return nil, ErrAccountNotFound
}

// Lookup returns the identity for an email, or ErrAccountNotFound.
func (d *Directory) Lookup(email string) (*Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	acct, ok := d.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acct.identity(), nil
}

func (a *account) identity() *Identity {
	return &Identity{
		AccountID:   a.id,
		Email:       a.email,
		DisplayName: a.displayName,
		AvatarURL:   a.avatarURL,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
