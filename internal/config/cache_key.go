package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// DraftKey returns the storage key for a user's in-progress draft of a test
func (r *CacheKeyStruct) DraftKey(userID, testID string) string {
	return fmt.Sprintf("user:%s:test:%s:draft", userID, testID)
}

// ResultKey returns the storage key for a user's final result of a test
func (r *CacheKeyStruct) ResultKey(userID, testID string) string {
	return fmt.Sprintf("user:%s:test:%s:result", userID, testID)
}

// TestPayloadKey returns the cache key for a remote test's normalized payload
func (r *CacheKeyStruct) TestPayloadKey(testID string) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

// RemoteCatalogKey returns the cache key for the remote company listing
func (r *CacheKeyStruct) RemoteCatalogKey() string {
	return "catalog:remote"
}

var CacheKey = NewCacheKeyStruct()
