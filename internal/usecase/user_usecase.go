package usecase

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"jobmarket/internal/domain/entity"
	"jobmarket/internal/infrastructure/backend"
)

// UserUseCase resolves the authenticated user's profile. The profile is
// fetched once per credential and cached on it.
type UserUseCase struct {
	guard *SessionGuard
	auth  *AuthUseCase
	loads singleflight.Group
}

func NewUserUseCase(guard *SessionGuard, auth *AuthUseCase) *UserUseCase {
	return &UserUseCase{
		guard: guard,
		auth:  auth,
	}
}

// CurrentUser returns the cached profile, loading it on first use.
func (uc *UserUseCase) CurrentUser(ctx context.Context) (*entity.UserProfile, error) {
	if profile := uc.auth.Profile(); profile != nil {
		return profile, nil
	}
	return uc.LoadProfile(ctx)
}

// LoadProfile always asks the backend and refreshes the cache. Concurrent
// loads for the same credential share one request, which outlives any single
// caller and is bounded by the client timeout.
func (uc *UserUseCase) LoadProfile(ctx context.Context) (*entity.UserProfile, error) {
	generation := uc.auth.Generation()
	key := strconv.FormatUint(generation, 10)
	result, err, _ := uc.loads.Do(key, func() (interface{}, error) {
		var payload backend.ProfilePayload
		if err := uc.guard.Do(context.WithoutCancel(ctx), backend.ProfileCall(), &payload); err != nil {
			return nil, err
		}
		profile := payload.ToEntity()
		// A login or logout during the fetch makes this profile someone
		// else's; it is returned but not cached.
		uc.auth.setProfile(generation, profile)
		return profile, nil
	})
	if err != nil {
		return nil, err
	}
	profile := *result.(*entity.UserProfile)
	return &profile, nil
}
