package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptKey returns the cache key for an exam attempt
func (r *CacheKeyStruct) AttemptKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s", attemptID)
}

// AttemptSavesKey returns the cache key for an attempt's autosave counter
func (r *CacheKeyStruct) AttemptSavesKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:saves", attemptID)
}

var CacheKey = NewCacheKeyStruct()
