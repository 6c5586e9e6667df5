package constants

// Platform-wide constants
const (
	// AdminPageSize is the page size for admin list endpoints
	AdminPageSize = 50

	// Cache key patterns surfaced in the admin queue monitor
	CachePatternEntitlements = "entitlements:*"
	CachePatternSessions     = "session:*"
	CachePatternOAuth        = "oauth:*"
	CachePatternStatistics   = "statistics:*"
	CachePatternCounters     = "*:counters:*"
)

// LessonLanguages lists the subtitle/UI languages lessons are produced in
var LessonLanguages = []string{"en", "de", "vi"}

// IsSupportedLessonLanguage reports whether lang is a produced lesson language
func IsSupportedLessonLanguage(lang string) bool {
	for _, l := range LessonLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
