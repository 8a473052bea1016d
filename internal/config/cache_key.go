package config

import (
	"fmt"
	"regexp"
	"strconv"
)

// CacheKeyStruct builds the Redis keys shared by every service instance.
// Keys are deterministic functions of their inputs so any node addressing
// the same (org, paper) pair converges on the same entry.
type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitize keeps key segments to [a-zA-Z0-9_] so caller-supplied IDs cannot
// smuggle separators into the key space.
func sanitize(part string) string {
	if part == "" {
		return "_empty_"
	}
	return unsafeKeyChars.ReplaceAllString(part, "_")
}

// ExamSessionKey returns the session store key for a drawn paper.
func (r *CacheKeyStruct) ExamSessionKey(orgID, paperID string) string {
	return fmt.Sprintf("exam_session:%s:%s", sanitize(orgID), sanitize(paperID))
}

// SubmitLockKey returns the grading lock key for a (paper, user) pair.
func (r *CacheKeyStruct) SubmitLockKey(paperID string, userID int64) string {
	return fmt.Sprintf("exam_lock:%s:%s", sanitize(paperID), sanitize(strconv.FormatInt(userID, 10)))
}

// UserSessionKey returns the login session registry key for a user.
func (r *CacheKeyStruct) UserSessionKey(userID int64) string {
	return fmt.Sprintf("login:%d", userID)
}

var CacheKey = NewCacheKeyStruct()
