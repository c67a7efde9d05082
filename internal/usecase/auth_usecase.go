package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/sync/singleflight"

	"jobmarket/internal/domain/entity"
	"jobmarket/internal/domain/repository"
	"jobmarket/internal/infrastructure/backend"
	apperrors "jobmarket/pkg/errors"
	"jobmarket/pkg/logger"
)

// AuthUseCase owns the one credential of the process. Every component reads
// tokens through it, so a renewal or logout is observed everywhere at once.
type AuthUseCase struct {
	client         BackendClient
	credentialRepo repository.CredentialRepository

	mu         sync.RWMutex
	credential *entity.Credential
	// generation changes whenever the credential is replaced or dropped,
	// but not when a renewal swaps its access token.
	generation uint64

	// storeMu orders credential store writes with the state they reflect.
	// Lock it before mu.
	storeMu sync.Mutex

	renewals singleflight.Group
}

func NewAuthUseCase(client BackendClient, credentialRepo repository.CredentialRepository) *AuthUseCase {
	return &AuthUseCase{
		client:         client,
		credentialRepo: credentialRepo,
	}
}

type SessionStatus struct {
	Authenticated   bool                `json:"authenticated"`
	User            *entity.UserProfile `json:"user,omitempty"`
	UserID          int64               `json:"user_id,omitempty"`
	AccessExpiresAt *time.Time          `json:"access_expires_at,omitempty"`
}

// Restore loads a persisted credential. It reports whether one was found.
func (uc *AuthUseCase) Restore(ctx context.Context) (bool, error) {
	credential, err := uc.credentialRepo.Load(ctx)
	if err != nil {
		return false, apperrors.Internal("Failed to read stored credential", err)
	}
	if !credential.Authenticated() {
		return false, nil
	}

	uc.mu.Lock()
	uc.credential = credential
	uc.generation++
	uc.mu.Unlock()

	logger.Info("Restored stored session")
	return true, nil
}

func (uc *AuthUseCase) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return apperrors.BadRequest("Email and password are required", nil)
	}

	var pair backend.TokenPair
	if err := uc.client.Do(ctx, backend.LoginCall(email, password), "", &pair); err != nil {
		if status := backend.StatusCode(err); status == 400 || status == 401 {
			var apiErr *backend.APIError
			errors.As(err, &apiErr)
			return apperrors.Unauthorized(apiErr.Message, err)
		}
		return translate(err)
	}
	if pair.Access == "" {
		return apperrors.Internal("Login response carried no access token", nil)
	}

	credential := &entity.Credential{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
	}

	if err := uc.replace(ctx, credential); err != nil {
		logger.Error("Failed to persist credential: %v", err)
	}
	logger.Info("Logged in as %s", email)
	return nil
}

// Logout clears the credential from memory and from disk.
func (uc *AuthUseCase) Logout(ctx context.Context) error {
	if err := uc.replace(ctx, nil); err != nil {
		return apperrors.Internal("Failed to remove stored credential", err)
	}
	return nil
}

// replace installs credential, or drops the session when it is nil, and
// writes the same state to the store before any other write can start.
func (uc *AuthUseCase) replace(ctx context.Context, credential *entity.Credential) error {
	uc.storeMu.Lock()
	defer uc.storeMu.Unlock()

	uc.mu.Lock()
	uc.credential = credential
	uc.generation++
	uc.mu.Unlock()

	if credential == nil {
		return uc.credentialRepo.Clear(ctx)
	}
	return uc.credentialRepo.Save(ctx, credential.Clone())
}

// Generation identifies the current credential. It survives renewals and
// changes on login, logout, restore and expiry.
func (uc *AuthUseCase) Generation() uint64 {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.generation
}

func (uc *AuthUseCase) Authenticated() bool {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.credential.Authenticated()
}

func (uc *AuthUseCase) AccessToken() string {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	if uc.credential == nil {
		return ""
	}
	return uc.credential.AccessToken
}

// Profile returns the cached profile, or nil when it has not been loaded
// for the current credential.
func (uc *AuthUseCase) Profile() *entity.UserProfile {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	if uc.credential == nil || uc.credential.User == nil {
		return nil
	}
	user := *uc.credential.User
	return &user
}

// setProfile caches the profile as long as the credential of generation is
// still current.
func (uc *AuthUseCase) setProfile(generation uint64, profile *entity.UserProfile) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.credential == nil || profile == nil || uc.generation != generation {
		return
	}
	user := *profile
	uc.credential.User = &user
}

func (uc *AuthUseCase) Status() SessionStatus {
	uc.mu.RLock()
	credential := uc.credential.Clone()
	uc.mu.RUnlock()

	if !credential.Authenticated() {
		return SessionStatus{}
	}

	status := SessionStatus{Authenticated: true, User: credential.User}
	if claims, ok := accessClaims(credential.AccessToken); ok {
		if exp, ok := claims["exp"].(float64); ok {
			t := time.Unix(int64(exp), 0).UTC()
			status.AccessExpiresAt = &t
		}
		if id, ok := claims["user_id"].(float64); ok {
			status.UserID = int64(id)
		}
	}
	return status
}

// Renew exchanges the refresh token for a new access token. staleToken is the
// access token the caller saw rejected: if the credential has moved on since,
// the current token is returned without another refresh. Concurrent callers
// share a single refresh request.
func (uc *AuthUseCase) Renew(ctx context.Context, staleToken string) (string, error) {
	uc.mu.RLock()
	var current, refresh string
	if uc.credential != nil {
		current, refresh = uc.credential.AccessToken, uc.credential.RefreshToken
	}
	uc.mu.RUnlock()

	if current == "" {
		return "", apperrors.SessionExpired(nil)
	}
	if current != staleToken {
		return current, nil
	}
	if refresh == "" {
		uc.expire(ctx, current)
		return "", apperrors.SessionExpired(nil)
	}

	// The shared refresh must not die with whichever caller happened to start it.
	result, err, shared := uc.renewals.Do(refresh, func() (interface{}, error) {
		return uc.refresh(context.WithoutCancel(ctx), refresh)
	})
	if shared {
		logger.Debug("Joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (uc *AuthUseCase) refresh(ctx context.Context, refreshToken string) (string, error) {
	var pair backend.TokenPair
	err := uc.client.Do(ctx, backend.RefreshCall(refreshToken), "", &pair)
	switch {
	case err == nil && pair.Access != "":
	case err != nil && backend.IsTransport(err):
		// Unreachable is not the same as rejected: keep the credential.
		return "", apperrors.Network("Could not reach marketplace to renew session", err)
	default:
		logger.Warn("Token refresh rejected: %v", err)
		uc.clearIfRefresh(ctx, refreshToken)
		return "", apperrors.SessionExpired(err)
	}

	uc.storeMu.Lock()
	defer uc.storeMu.Unlock()

	uc.mu.Lock()
	if uc.credential == nil || uc.credential.RefreshToken != refreshToken {
		uc.mu.Unlock()
		return "", apperrors.SessionExpired(nil)
	}
	uc.credential.AccessToken = pair.Access
	if pair.Refresh != "" {
		uc.credential.RefreshToken = pair.Refresh
	}
	snapshot := uc.credential.Clone()
	uc.mu.Unlock()

	if err := uc.credentialRepo.Save(ctx, snapshot); err != nil {
		logger.Error("Failed to persist credential: %v", err)
	}
	logger.Info("Access token renewed")
	return pair.Access, nil
}

// expire drops the credential if accessToken is still the current one.
func (uc *AuthUseCase) expire(ctx context.Context, accessToken string) {
	if uc.dropIf(ctx, func(c *entity.Credential) bool { return c.AccessToken == accessToken }) {
		logger.Warn("Session expired, credential cleared")
	}
}

func (uc *AuthUseCase) clearIfRefresh(ctx context.Context, refreshToken string) {
	uc.dropIf(ctx, func(c *entity.Credential) bool { return c.RefreshToken == refreshToken })
}

// dropIf clears the session when match accepts the current credential and
// reports whether it did.
func (uc *AuthUseCase) dropIf(ctx context.Context, match func(*entity.Credential) bool) bool {
	uc.storeMu.Lock()
	defer uc.storeMu.Unlock()

	uc.mu.Lock()
	if uc.credential == nil || !match(uc.credential) {
		uc.mu.Unlock()
		return false
	}
	uc.credential = nil
	uc.generation++
	uc.mu.Unlock()

	if err := uc.credentialRepo.Clear(ctx); err != nil {
		logger.Error("Failed to remove stored credential: %v", err)
	}
	return true
}

// accessClaims decodes the token payload without checking its signature. The
// backend is the only party that verifies tokens.
func accessClaims(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
