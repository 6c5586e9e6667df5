package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/LeVietHung/CNCademy/app/models"
	"github.com/LeVietHung/CNCademy/internal/pkg/cache"
	"github.com/LeVietHung/CNCademy/internal/pkg/database"
)

const (
	CacheKeyUsersTotal       = "statistics:users:total"
	CacheKeySignupsDaily     = "statistics:users:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyCompletionsTotal = "statistics:completions:total"
	CacheExpiration          = 30 * time.Minute
)

// StatisticsData holds the headline numbers for the admin dashboard
type StatisticsData struct {
	TodaySignups     int
	TotalUsers       int
	TotalCompletions int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached numbers are stale
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cache when it is stale
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	var todaySignups int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.User{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todaySignups).Error; err != nil {
		log.Printf("Error counting today's signups: %v", err)
		return err
	}

	var totalCompletions int64
	if err := db.Model(&models.LessonProgress{}).Where("completed_at IS NOT NULL").Count(&totalCompletions).Error; err != nil {
		log.Printf("Error counting lesson completions: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsersTotal, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeySignupsDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todaySignups, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's signups: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyCompletionsTotal, strconv.FormatInt(totalCompletions, 10), CacheExpiration); err != nil {
		log.Printf("Error caching lesson completions: %v", err)
		return err
	}

	log.Printf("Statistics updated in cache: Total Users: %d, Today's Signups: %d, Completions: %d",
		totalUsers, todaySignups, totalCompletions)

	return nil
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsersTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyUsersTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodaySignups returns the number of accounts created today from cache or database
func GetTodaySignups() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeySignupsDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		var count int64
		db := database.GetDB()
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := db.Model(&models.User{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error; err != nil {
			log.Printf("Error counting today's signups: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's signups: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalCompletions returns the number of completed lessons from cache or database
func GetTotalCompletions() int {
	val, err := cache.Get(CacheKeyCompletionsTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.LessonProgress{}).Where("completed_at IS NOT NULL").Count(&count).Error; err != nil {
			log.Printf("Error counting lesson completions: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyCompletionsTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching lesson completions: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns all statistics data as StatisticsData structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TodaySignups:     GetTodaySignups(),
		TotalUsers:       GetTotalUsers(),
		TotalCompletions: GetTotalCompletions(),
	}
}
