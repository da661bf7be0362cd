package aws

import (
	"sync"
)

var (
	providerCache *AWSProvider
	providerMu    sync.RWMutex
)

// GetCachedProvider returns a cached AWS provider instance. A provider
// carries an STS-resolved account ID; reusing it avoids repeating that
// call when the CLI touches the provider more than once per process.
func GetCachedProvider(profile, region string) (*AWSProvider, error) {
	providerMu.RLock()
	if providerCache != nil && providerCache.profile == profile && providerCache.region == region {
		defer providerMu.RUnlock()
		return providerCache, nil
	}
	providerMu.RUnlock()

	providerMu.Lock()
	defer providerMu.Unlock()

	// Double-check after acquiring write lock
	if providerCache != nil && providerCache.profile == profile && providerCache.region == region {
		return providerCache, nil
	}

	provider, err := NewProvider(profile, region)
	if err != nil {
		return nil, err
	}

	providerCache = provider
	return provider, nil
}

// ResetProviderCache clears the cached provider (used by tests)
func ResetProviderCache() {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerCache = nil
}
