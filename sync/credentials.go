// ABOUTME: Credential store that hands out valid OAuth credentials per user
// ABOUTME: Refreshes expired access tokens and persists them with a conditional update
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harperreed/studypilot/models"
	"golang.org/x/oauth2"
)

// refreshSkew treats tokens expiring within this window as already expired.
const refreshSkew = time.Minute

// CredentialRepository persists credentials. db.UsersRepository implements it.
type CredentialRepository interface {
	GetCredential(ctx context.Context, userID string) (*models.Credential, error)
	SaveCredential(ctx context.Context, cred *models.Credential) error
	ReplaceRefreshedCredential(ctx context.Context, previousRefreshToken string, cred *models.Credential) (bool, error)
	ClearCredential(ctx context.Context, userID string) error
}

// TokenRefresher exchanges a refresh token for a new token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// OAuthRefresher refreshes tokens against the provider token endpoint.
type OAuthRefresher struct {
	config *oauth2.Config
}

// NewOAuthRefresher creates a refresher for oauthConfig.
func NewOAuthRefresher(oauthConfig *oauth2.Config) *OAuthRefresher {
	return &OAuthRefresher{config: oauthConfig}
}

// Refresh implements TokenRefresher.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	// An empty access token is never valid, so the source always hits the endpoint.
	return r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

// CredentialStore returns valid credentials, refreshing them when needed.
type CredentialStore struct {
	repo      CredentialRepository
	refresher TokenRefresher
	logger    *slog.Logger
	now       func() time.Time
}

// NewCredentialStore creates a credential store.
func NewCredentialStore(repo CredentialRepository, refresher TokenRefresher, logger *slog.Logger) *CredentialStore {
	return &CredentialStore{
		repo:      repo,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// GetValidCredential returns a credential whose access token is usable now.
func (s *CredentialStore) GetValidCredential(ctx context.Context, userID string) (*models.Credential, error) {
	cred, err := s.repo.GetCredential(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		return nil, ErrNotConnected
	}

	if cred.AccessToken != "" && !cred.Expired(s.now(), refreshSkew) {
		return cred, nil
	}
	if cred.RefreshToken == "" {
		return nil, ErrNotConnected
	}

	return s.refresh(ctx, cred)
}

func (s *CredentialStore) refresh(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	token, err := s.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		credentialRefreshTotal.WithLabelValues("failed").Inc()
		s.logger.WarnContext(ctx, "credential refresh failed",
			slog.String("user_id", cred.UserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	refreshed := &models.Credential{
		UserID:       cred.UserID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}

	updated, err := s.repo.ReplaceRefreshedCredential(ctx, cred.RefreshToken, refreshed)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Another writer replaced or cleared the credential first.
		credentialRefreshTotal.WithLabelValues("superseded").Inc()
		stored, err := s.repo.GetCredential(ctx, cred.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload credential: %w", err)
		}
		if stored == nil || stored.AccessToken == "" {
			return nil, ErrNotConnected
		}
		return stored, nil
	}

	credentialRefreshTotal.WithLabelValues("ok").Inc()
	s.logger.DebugContext(ctx, "credential refreshed", slog.String("user_id", cred.UserID))
	return refreshed, nil
}

// Connect stores the token issued by an OAuth exchange.
func (s *CredentialStore) Connect(ctx context.Context, userID string, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return errors.New("token cannot be empty")
	}

	return s.repo.SaveCredential(ctx, &models.Credential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	})
}

// Disconnect removes the user's credential.
func (s *CredentialStore) Disconnect(ctx context.Context, userID string) error {
	if err := s.repo.ClearCredential(ctx, userID); err != nil {
		return fmt.Errorf("failed to disconnect calendar: %w", err)
	}
	return nil
}

// TokenSource adapts the store to oauth2.TokenSource for userID.
func (s *CredentialStore) TokenSource(ctx context.Context, userID string) oauth2.TokenSource {
	return &credentialTokenSource{ctx: ctx, store: s, userID: userID}
}

type credentialTokenSource struct {
	ctx    context.Context
	store  *CredentialStore
	userID string
}

func (ts *credentialTokenSource) Token() (*oauth2.Token, error) {
	cred, err := ts.store.GetValidCredential(ts.ctx, ts.userID)
	if err != nil {
		return nil, err
	}
	return ToToken(cred), nil
}

// ToToken converts a stored credential into an oauth2 bearer token.
func ToToken(cred *models.Credential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
	}
}
