package hooks

import (
	"sync"
	"time"
)

// recorderAPI implements every capability interface and records the effects a
// handler requested, so tests can assert on outcomes instead of internals.
type recorderAPI struct {
	mu sync.Mutex

	denyReason      string
	denyDescription string
	denied          bool

	redirectURL string

	cache    map[string]string
	cacheTTL map[string]time.Duration
	cacheErr error

	claims map[string]any

	addedScopes   []string
	removedScopes []string

	appMetadata map[string]any

	revoked       bool
	revokeReason  string
	revokeOptions RevokeOptions

	challenged        bool
	challengeFactor   Factor
	challengeOptions  ChallengeOptions
	challengedAny     bool
	challengeAnyList  []Factor
	primaryUserID     string
	transactionMeta   map[string]string
	setUserID         string
	setUserConnection string
	setUserProfile    ConnectionUser
	setUserOptions    SetUserOptions
}

func newRecorderAPI() *recorderAPI {
	return &recorderAPI{
		cache:           map[string]string{},
		cacheTTL:        map[string]time.Duration{},
		claims:          map[string]any{},
		appMetadata:     map[string]any{},
		transactionMeta: map[string]string{},
	}
}

func (r *recorderAPI) Deny(reason, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denied = true
	r.denyReason = reason
	r.denyDescription = description
}

func (r *recorderAPI) SendUserTo(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirectURL = url
}

func (r *recorderAPI) Get(key string) (CacheEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.cache[key]
	return CacheEntry{Value: v}, ok
}

func (r *recorderAPI) Set(key, value string, opts CacheSetOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cacheErr != nil {
		return r.cacheErr
	}
	r.cache[key] = value
	r.cacheTTL[key] = opts.TTL
	return nil
}

func (r *recorderAPI) SetCustomClaim(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims[name] = value
}

func (r *recorderAPI) AddScope(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addedScopes = append(r.addedScopes, scope)
}

func (r *recorderAPI) RemoveScope(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removedScopes = append(r.removedScopes, scope)
}

func (r *recorderAPI) SetAppMetadata(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appMetadata[name] = value
}

func (r *recorderAPI) Revoke(reason string, opts RevokeOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = true
	r.revokeReason = reason
	r.revokeOptions = opts
}

func (r *recorderAPI) ChallengeWith(factor Factor, opts ChallengeOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenged = true
	r.challengeFactor = factor
	r.challengeOptions = opts
}

func (r *recorderAPI) ChallengeWithAny(factors []Factor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challengedAny = true
	r.challengeAnyList = factors
}

func (r *recorderAPI) SetPrimaryUser(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primaryUserID = userID
}

func (r *recorderAPI) SetMetadata(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactionMeta[name] = value
}

func (r *recorderAPI) SetUserByID(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setUserID = userID
}

func (r *recorderAPI) SetUserByConnection(connection string, user ConnectionUser, opts SetUserOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setUserConnection = connection
	r.setUserProfile = user
	r.setUserOptions = opts
}

var (
	_ LoginAPI               = (*recorderAPI)(nil)
	_ CredentialsExchangeAPI = (*recorderAPI)(nil)
	_ PreRegistrationAPI     = (*recorderAPI)(nil)
	_ TokenExchangeAPI       = (*recorderAPI)(nil)
	_ PostChallengeAPI       = (*recorderAPI)(nil)
)
