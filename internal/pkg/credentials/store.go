package credentials

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/formloft/formloft/app/models"
	"github.com/formloft/formloft/app/repository"
)

// ErrNoCredential signals that the operator is not authenticated: either no
// grant was ever stored or the refresh grant is dead. Callers must prompt
// re-authorization instead of retrying data operations.
var ErrNoCredential = errors.New("no valid credential")

// TokenRefresher exchanges a refresh token for a fresh access token.
// goth's Google provider satisfies this.
type TokenRefresher interface {
	RefreshToken(refreshToken string) (*oauth2.Token, error)
}

// Store manages the OAuth token lifecycle for operator identities.
type Store struct {
	repo      repository.CredentialRepository
	refresher TokenRefresher
	now       func() time.Time

	// one mutex per identity so two concurrent callers cannot race the
	// same refresh grant
	mu           sync.Mutex
	refreshLocks map[string]*sync.Mutex
}

// NewStore creates a credential store on top of the given repository.
func NewStore(repo repository.CredentialRepository, refresher TokenRefresher) *Store {
	return &Store{
		repo:         repo,
		refresher:    refresher,
		now:          time.Now,
		refreshLocks: make(map[string]*sync.Mutex),
	}
}

// Get loads the credential for an identity. Returns ErrNoCredential when the
// operator never completed the OAuth consent.
func (s *Store) Get(tenantID, identityKey string) (*models.OAuthCredential, error) {
	cred, err := s.repo.GetByIdentityKey(tenantID, identityKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCredential
		}
		return nil, err
	}
	return cred, nil
}

// Save persists a credential after OAuth consent or refresh.
func (s *Store) Save(tenantID string, cred *models.OAuthCredential) error {
	return s.repo.Upsert(tenantID, cred)
}

// GetValidAccessToken returns an access token that is safe to use right now.
// Tokens without a recorded expiry are assumed long-lived. Expired tokens are
// refreshed transactionally and persisted before being returned; a failed
// refresh yields ErrNoCredential and is never retried here, so a revoked
// refresh token does not hammer the provider.
func (s *Store) GetValidAccessToken(tenantID, identityKey string) (string, error) {
	cred, err := s.Get(tenantID, identityKey)
	if err != nil {
		return "", err
	}

	if !cred.Expired(s.now()) {
		return cred.AccessToken, nil
	}

	lock := s.lockFor(identityKey)
	lock.Lock()
	defer lock.Unlock()

	// re-read under the lock; a concurrent caller may have refreshed already
	cred, err = s.Get(tenantID, identityKey)
	if err != nil {
		return "", err
	}
	if !cred.Expired(s.now()) {
		return cred.AccessToken, nil
	}

	return s.refresh(tenantID, cred)
}

func (s *Store) refresh(tenantID string, cred *models.OAuthCredential) (string, error) {
	if cred.RefreshToken == "" {
		log.Warnf("[Credentials] Token for %s expired and no refresh token stored", cred.IdentityKey)
		return "", ErrNoCredential
	}

	token, err := s.refresher.RefreshToken(cred.RefreshToken)
	if err != nil {
		log.Errorf("[Credentials] Refresh failed for %s: %v", cred.IdentityKey, err)
		return "", ErrNoCredential
	}

	cred.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		cred.RefreshToken = token.RefreshToken
	}
	if token.Expiry.IsZero() {
		cred.ExpiresAt = nil
	} else {
		expiry := token.Expiry
		cred.ExpiresAt = &expiry
	}

	if err := s.repo.Upsert(tenantID, cred); err != nil {
		return "", err
	}

	log.Infof("[Credentials] Refreshed access token for %s", cred.IdentityKey)
	return cred.AccessToken, nil
}

func (s *Store) lockFor(identityKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.refreshLocks[identityKey]
	if !ok {
		lock = &sync.Mutex{}
		s.refreshLocks[identityKey] = lock
	}
	return lock
}
