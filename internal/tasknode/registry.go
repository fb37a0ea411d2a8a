package tasknode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/postfiatorg/tasknode/internal/tasknode/store"
)

const (
	FlagYellow = "YELLOW"
	FlagRed    = "RED"

	authCacheCleanupInterval = 10 * time.Minute
)

var (
	ErrInvalidAddress  = errors.New("address does not match the ledger address grammar")
	ErrInvalidFlagType = errors.New("flag type must be YELLOW or RED")

	// Classic r-address: base58 alphabet without 0, O, I and l.
	addressRegex = regexp.MustCompile(`^r[1-9A-HJ-NP-Za-km-z]{25,34}$`)
)

// Registry is the allow-list of external accounts. Revocation is a soft
// state transition so authorization history stays auditable; rows are never
// deleted.
type Registry struct {
	store  store.TasknodeStore
	logger *slog.Logger
	cache  *gocache.Cache
	now    func() time.Time
}

func WithRegistryNow(nowFunc func() time.Time) func(*Registry) {
	return func(r *Registry) {
		r.now = nowFunc
	}
}

func NewRegistry(s store.TasknodeStore, logger *slog.Logger, cacheExpiry time.Duration, opts ...func(*Registry)) *Registry {
	r := &Registry{
		store:  s,
		logger: logger.With(slog.String("service", "registry")),
		cache:  gocache.New(cacheExpiry, authCacheCleanupInterval),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Authorize creates or re-activates an allow-list entry with its source
// attribution. Re-authorizing a revoked address clears its deauthorization
// timestamp.
func (r *Registry) Authorize(ctx context.Context, address, source, sourceUserID string) error {
	if err := validateAddress(address); err != nil {
		return err
	}

	now := r.now().UTC()

	auth, err := r.store.GetAuthorization(ctx, address)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		auth = &store.AuthorizedAddress{Address: address}
	}

	auth.IsAuthorized = true
	auth.AuthorizedAt = now
	auth.DeauthorizedAt = nil
	auth.AuthSource = source
	auth.AuthSourceUserID = sourceUserID

	if err := r.store.UpsertAuthorization(ctx, auth); err != nil {
		return err
	}
	r.cache.Delete(address)

	r.logger.Info("address authorized", slog.String("address", address), slog.String("source", source))
	return nil
}

// Deauthorize soft-revokes an address. The row remains queryable.
func (r *Registry) Deauthorize(ctx context.Context, address string) error {
	if err := validateAddress(address); err != nil {
		return err
	}

	auth, err := r.store.GetAuthorization(ctx, address)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	auth.IsAuthorized = false
	auth.DeauthorizedAt = &now

	if err := r.store.UpsertAuthorization(ctx, auth); err != nil {
		return err
	}
	r.cache.Delete(address)

	r.logger.Info("address deauthorized", slog.String("address", address))
	return nil
}

// IsAuthorized reports whether an address is currently on the allow-list.
// Unknown addresses are simply unauthorized, not an error. Results are
// cached with the registry's TTL; mutations invalidate the cache entry.
func (r *Registry) IsAuthorized(ctx context.Context, address string) (bool, error) {
	if err := validateAddress(address); err != nil {
		return false, err
	}

	if cached, found := r.cache.Get(address); found {
		authorized, ok := cached.(bool)
		if ok {
			return authorized, nil
		}
	}

	auth, err := r.store.GetAuthorization(ctx, address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.cache.SetDefault(address, false)
			return false, nil
		}
		return false, err
	}

	r.cache.SetDefault(address, auth.IsAuthorized)
	return auth.IsAuthorized, nil
}

// Flag attaches an operator risk flag to an existing entry. flagType must be
// YELLOW or RED; expiresAt bounds how long the flag stands.
func (r *Registry) Flag(ctx context.Context, address, flagType string, expiresAt time.Time) error {
	if err := validateAddress(address); err != nil {
		return err
	}
	if flagType != FlagYellow && flagType != FlagRed {
		return errors.Join(ErrInvalidFlagType, fmt.Errorf("flag type: %q", flagType))
	}

	auth, err := r.store.GetAuthorization(ctx, address)
	if err != nil {
		return err
	}

	auth.FlagType = flagType
	auth.FlagExpiresAt = &expiresAt

	if err := r.store.UpsertAuthorization(ctx, auth); err != nil {
		return err
	}

	r.logger.Info("address flagged", slog.String("address", address), slog.String("flag", flagType))
	return nil
}

// GetAuthorization returns the full registry entry, expired flags masked.
func (r *Registry) GetAuthorization(ctx context.Context, address string) (*store.AuthorizedAddress, error) {
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	auth, err := r.store.GetAuthorization(ctx, address)
	if err != nil {
		return nil, err
	}

	if auth.FlagExpiresAt != nil && !auth.FlagExpiresAt.After(r.now().UTC()) {
		auth.FlagType = ""
		auth.FlagExpiresAt = nil
	}

	return auth, nil
}

func validateAddress(address string) error {
	if !addressRegex.MatchString(address) {
		return errors.Join(ErrInvalidAddress, fmt.Errorf("address: %q", address))
	}
	return nil
}
