package entitlements

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/LeVietHung/CNCademy/app/models"
	"github.com/LeVietHung/CNCademy/internal/pkg/cache"
)

// cacheTTL bounds how stale a cached entitlement answer may be; reconcile
// writes invalidate eagerly, the TTL only covers missed invalidations.
const cacheTTL = 60 * time.Second

// epochCutoff treats anything within a second of the unix epoch as "no real
// period data".
var epochCutoff = time.Unix(1, 0)

// EffectivePeriodEnd returns the instant a subscription's paid period runs
// out. A valid current_period_end is used as-is; zero/epoch values get the
// one-month synthetic window from created_at. This is the only place period
// expiry math happens.
func EffectivePeriodEnd(sub *models.Subscription) time.Time {
	if sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(epochCutoff) {
		return *sub.CurrentPeriodEnd
	}
	return sub.CreatedAt.AddDate(0, 1, 0)
}

// IsEntitled reports whether a single subscription record grants paid access
// at the given instant.
func IsEntitled(sub *models.Subscription, now time.Time) bool {
	if sub == nil || !sub.Status.IsEntitling() {
		return false
	}
	return EffectivePeriodEnd(sub).After(now)
}

// HasActiveSubscription answers "does this user currently have paid access".
// Fails closed: missing user, missing subscription, or query errors all mean
// no access.
func HasActiveSubscription(db *gorm.DB, userID uint) bool {
	if db == nil || userID == 0 {
		return false
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Entitlements] user lookup failed for user %d: %v", userID, err)
		}
		return false
	}

	var sub models.Subscription
	err := db.Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Order("updated_at DESC").
		First(&sub).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Entitlements] subscription lookup failed for user %d: %v", userID, err)
		}
		return false
	}

	return IsEntitled(&sub, time.Now())
}

// HasActiveSubscriptionCached wraps HasActiveSubscription with a short-lived
// cache entry. The cache is best-effort; any cache failure falls through to
// the database.
func HasActiveSubscriptionCached(db *gorm.DB, userID uint) bool {
	key := cacheKey(userID)
	if cache.HasClient() {
		if entitled, err := cache.GetBool(key); err == nil {
			return entitled
		}
	}

	entitled := HasActiveSubscription(db, userID)
	if cache.HasClient() {
		if err := cache.Set(key, entitled, cacheTTL); err != nil {
			log.Warnf("[Entitlements] failed to cache entitlement for user %d: %v", userID, err)
		}
	}
	return entitled
}

// InvalidateCache drops the cached entitlement answer for a user. Called
// after every reconcile write so gating picks up changes immediately.
func InvalidateCache(userID uint) {
	if !cache.HasClient() {
		return
	}
	if err := cache.Delete(cacheKey(userID)); err != nil {
		log.Warnf("[Entitlements] failed to invalidate entitlement cache for user %d: %v", userID, err)
	}
}

func cacheKey(userID uint) string {
	return fmt.Sprintf("entitlement:user:%d", userID)
}
