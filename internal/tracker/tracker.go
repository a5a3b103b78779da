// ABOUTME: Client-side nutrition store over the write-coalescing cache.
// ABOUTME: Uses type-prefixed keys; every day mutation recomputes totals and marks sync pending.
package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harperreed/nutrition/internal/aggregate"
	"github.com/harperreed/nutrition/internal/kvcache"
	"github.com/harperreed/nutrition/internal/merge"
	"github.com/harperreed/nutrition/internal/models"
	"github.com/rs/zerolog"
)

const (
	LogPrefix  = "log:"
	GoalsKey   = "goals"
	WeightsKey = "weights"
	MetaKey    = "sync:meta"
	TokenKey   = "auth:token"
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidMealType = errors.New("invalid meal type")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidMood     = errors.New("mood must be between 1 and 5")
	ErrInvalidGoals    = errors.New("goals must not be negative")
	ErrInvalidWeight   = errors.New("weight must be positive")
	ErrMealNotFound    = errors.New("meal not found")
	ErrAmbiguousID     = errors.New("ambiguous id prefix")
)

// SyncMeta is the client half of the sync state.
type SyncMeta struct {
	// LastSync is the server updatedAt seen at the end of the last successful cycle.
	LastSync models.Stamp `json:"lastSync"`
	// ClientUpdatedAt is when local nutrition data last changed.
	ClientUpdatedAt models.Stamp `json:"clientUpdatedAt"`
	// Pending is set by local mutations and cleared by a successful push.
	Pending bool `json:"pending"`
	// SyncedThrough is the local clock reading at the end of the last clean
	// sync. Day logs last modified before it are on the server.
	SyncedThrough models.Stamp `json:"syncedThrough"`
}

// Tracker holds the user's nutrition data in a kvcache.Cache.
type Tracker struct {
	cache *kvcache.Cache
	log   zerolog.Logger
	now   func() time.Time

	mu      sync.Mutex
	version uint64

	// syncedThrough mirrors SyncMeta.SyncedThrough in unix nanos. Read by the
	// eviction filter under the cache lock, so it must not take mu.
	syncedThrough atomic.Int64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New wraps an opened cache. The auth token key is locked so other processes
// can rotate it, and the cache is told which keys are safe to evict.
func New(cache *kvcache.Cache, opts ...Option) *Tracker {
	t := &Tracker{
		cache: cache,
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	cache.LockKey(TokenKey)
	cache.SetEvictFilter(t.evictable)

	meta := t.SyncMeta()
	if meta.SyncedThrough.IsSet() {
		t.syncedThrough.Store(meta.SyncedThrough.Time().UnixNano())
	}
	return t
}

// evictable allows dropping day logs the server already has. Both sides of
// the comparison come from the local clock; the server's updatedAt is never
// used here since the two clocks may disagree.
func (t *Tracker) evictable(key string, raw json.RawMessage) bool {
	if !strings.HasPrefix(key, LogPrefix) {
		return false
	}
	through := t.syncedThrough.Load()
	if through == 0 {
		return false
	}
	var head struct {
		LastModified models.Stamp `json:"lastModified"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return false
	}
	return head.LastModified.IsSet() && head.LastModified.Time().Before(time.Unix(0, through))
}

func logKey(date string) string {
	return LogPrefix + date
}

func (t *Tracker) stamp() time.Time {
	return t.now().UTC()
}

// AddMeal logs quantity servings of food on date.
func (t *Tracker) AddMeal(date string, mealType models.MealType, food models.FoodItem, quantity float64) (*models.MealEntry, error) {
	if !models.IsValidMealType(string(mealType)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMealType, mealType)
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if strings.TrimSpace(food.Name) == "" {
		return nil, errors.New("food name is required")
	}

	meal := models.NewMealEntry(date, mealType, food, quantity)
	_, err := t.updateDay(date, func(day *models.DailyLog) error {
		day.Meals = append(day.Meals, *meal)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meal, nil
}

// RemoveMeal deletes the meal with the given id or unique id prefix from
// whichever day holds it and returns that day.
func (t *Tracker) RemoveMeal(idOrPrefix string) (models.DailyLog, error) {
	if idOrPrefix == "" {
		return models.DailyLog{}, ErrMealNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		matchDate string
		matchID   string
		matches   int
	)
	for _, day := range t.daysLocked() {
		for _, m := range day.Meals {
			if m.ID == idOrPrefix {
				return t.updateDayLocked(day.Date, removeMeal(m.ID))
			}
			if strings.HasPrefix(m.ID, idOrPrefix) {
				matchDate, matchID = day.Date, m.ID
				matches++
			}
		}
	}

	switch matches {
	case 0:
		return models.DailyLog{}, fmt.Errorf("%w: %s", ErrMealNotFound, idOrPrefix)
	case 1:
		return t.updateDayLocked(matchDate, removeMeal(matchID))
	default:
		return models.DailyLog{}, fmt.Errorf("%w: %s matches %d meals", ErrAmbiguousID, idOrPrefix, matches)
	}
}

func removeMeal(id string) func(*models.DailyLog) error {
	return func(day *models.DailyLog) error {
		kept := day.Meals[:0]
		for _, m := range day.Meals {
			if m.ID != id {
				kept = append(kept, m)
			}
		}
		day.Meals = kept
		return nil
	}
}

// AddWater adds ml to the day's water intake. Negative values subtract, never below zero.
func (t *Tracker) AddWater(date string, ml int) (models.DailyLog, error) {
	return t.updateDay(date, func(day *models.DailyLog) error {
		day.WaterIntake += ml
		if day.WaterIntake < 0 {
			day.WaterIntake = 0
		}
		return nil
	})
}

// SetMood records a 1-5 mood rating for the day.
func (t *Tracker) SetMood(date string, rating int) (models.DailyLog, error) {
	if rating < 1 || rating > 5 {
		return models.DailyLog{}, fmt.Errorf("%w: got %d", ErrInvalidMood, rating)
	}
	return t.updateDay(date, func(day *models.DailyLog) error {
		day.MoodRating = &rating
		return nil
	})
}

// SetNotes replaces the day's notes. Empty text clears them.
func (t *Tracker) SetNotes(date, notes string) (models.DailyLog, error) {
	return t.updateDay(date, func(day *models.DailyLog) error {
		if strings.TrimSpace(notes) == "" {
			day.Notes = nil
			return nil
		}
		day.Notes = &notes
		return nil
	})
}

// Day returns the log for date with freshly computed totals. A day with no
// activity yields an empty log that is not stored.
func (t *Tracker) Day(date string) (models.DailyLog, error) {
	if !models.IsValidDate(date) {
		return models.DailyLog{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return aggregate.Recompute(t.loadDayLocked(date)), nil
}

// Days returns every stored day in date order.
func (t *Tracker) Days() []models.DailyLog {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.daysLocked()
}

func (t *Tracker) daysLocked() []models.DailyLog {
	keys := t.cache.Keys(LogPrefix)
	days := make([]models.DailyLog, 0, len(keys))
	for _, k := range keys {
		var day models.DailyLog
		ok, err := t.cache.GetInto(k, &day)
		if err != nil {
			t.log.Warn().Err(err).Str("key", k).Msg("skipping unreadable day")
			continue
		}
		if !ok {
			continue
		}
		days = append(days, aggregate.Recompute(day))
	}
	return days
}

// Goals returns the saved goals, or the defaults if none were saved.
func (t *Tracker) Goals() models.NutritionGoals {
	t.mu.Lock()
	defer t.mu.Unlock()
	if g := t.loadGoalsLocked(); g != nil {
		return *g
	}
	return models.DefaultGoals()
}

// SetGoals saves goals and stamps them.
func (t *Tracker) SetGoals(goals models.NutritionGoals) (models.NutritionGoals, error) {
	if goals.Calories < 0 || goals.Protein < 0 || goals.Carbs < 0 || goals.Fat < 0 || goals.Water < 0 {
		return models.NutritionGoals{}, ErrInvalidGoals
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.stamp()
	goals.LastModified = models.At(now)
	if err := t.cache.Set(GoalsKey, goals); err != nil {
		return models.NutritionGoals{}, fmt.Errorf("save goals: %w", err)
	}
	t.touchLocked(now)
	return goals, nil
}

func (t *Tracker) loadGoalsLocked() *models.NutritionGoals {
	var g models.NutritionGoals
	ok, err := t.cache.GetInto(GoalsKey, &g)
	if err != nil {
		t.log.Warn().Err(err).Msg("ignoring unreadable goals")
		return nil
	}
	if !ok {
		return nil
	}
	return &g
}

// LogWeight records a body weight measurement. Weights stay on this device.
func (t *Tracker) LogWeight(date string, kg float64) (models.WeightEntry, error) {
	if !models.IsValidDate(date) {
		return models.WeightEntry{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if kg <= 0 {
		return models.WeightEntry{}, ErrInvalidWeight
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := models.NewWeightEntry(date, kg)
	weights := append(t.weightsLocked(), entry)
	if err := t.cache.Set(WeightsKey, weights); err != nil {
		return models.WeightEntry{}, fmt.Errorf("save weight: %w", err)
	}
	return entry, nil
}

// Weights returns weight history ordered by date, then by recording time.
func (t *Tracker) Weights() []models.WeightEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.weightsLocked()
}

func (t *Tracker) weightsLocked() []models.WeightEntry {
	var weights []models.WeightEntry
	if _, err := t.cache.GetInto(WeightsKey, &weights); err != nil {
		t.log.Warn().Err(err).Msg("ignoring unreadable weight history")
		return nil
	}
	sort.SliceStable(weights, func(i, j int) bool {
		if weights[i].Date != weights[j].Date {
			return weights[i].Date < weights[j].Date
		}
		return weights[i].RecordedAt.Before(weights[j].RecordedAt)
	})
	return weights
}

// Reset deletes every day, goals, weights and sync state on this device.
// The auth token is kept.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, k := range t.cache.Keys(LogPrefix) {
		t.cache.Remove(k)
	}
	t.cache.Remove(GoalsKey)
	t.cache.Remove(WeightsKey)
	t.cache.Remove(MetaKey)
	t.version++
	t.syncedThrough.Store(0)
	t.log.Info().Msg("local data reset")
}

// Token returns the stored auth token. The key bypasses the cache, so a token
// written by another process is seen immediately.
func (t *Tracker) Token() string {
	var tok string
	if _, err := t.cache.GetInto(TokenKey, &tok); err != nil {
		return ""
	}
	return tok
}

// SetToken stores or, when empty, removes the auth token.
func (t *Tracker) SetToken(tok string) error {
	if tok == "" {
		t.cache.Remove(TokenKey)
		return nil
	}
	return t.cache.Set(TokenKey, tok)
}

// Flush writes buffered changes to the store now.
func (t *Tracker) Flush() {
	t.cache.Flush(true)
}

func (t *Tracker) updateDay(date string, fn func(*models.DailyLog) error) (models.DailyLog, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updateDayLocked(date, fn)
}

// updateDayLocked applies fn to the stored day, recomputes totals, stamps it
// and marks the data as changed.
func (t *Tracker) updateDayLocked(date string, fn func(*models.DailyLog) error) (models.DailyLog, error) {
	if !models.IsValidDate(date) {
		return models.DailyLog{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	day := t.loadDayLocked(date)
	if err := fn(&day); err != nil {
		return models.DailyLog{}, err
	}

	now := t.stamp()
	day = aggregate.Recompute(day)
	day.LastModified = models.At(now)
	if err := t.cache.Set(logKey(date), day); err != nil {
		return models.DailyLog{}, fmt.Errorf("save day %s: %w", date, err)
	}
	t.touchLocked(now)
	return day, nil
}

func (t *Tracker) loadDayLocked(date string) models.DailyLog {
	var day models.DailyLog
	ok, err := t.cache.GetInto(logKey(date), &day)
	if err != nil {
		t.log.Warn().Err(err).Str("date", date).Msg("replacing unreadable day")
		return models.NewDailyLog(date)
	}
	if !ok {
		return models.NewDailyLog(date)
	}
	if day.Meals == nil {
		day.Meals = []models.MealEntry{}
	}
	day.Date = date
	return day
}

// touchLocked records a local change for the next sync cycle.
func (t *Tracker) touchLocked(now time.Time) {
	t.version++
	meta := t.syncMetaLocked()
	meta.ClientUpdatedAt = models.At(now)
	meta.Pending = true
	t.saveMetaLocked(meta)
}

// SyncMeta returns the stored sync state.
func (t *Tracker) SyncMeta() SyncMeta {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.syncMetaLocked()
}

func (t *Tracker) syncMetaLocked() SyncMeta {
	var meta SyncMeta
	if _, err := t.cache.GetInto(MetaKey, &meta); err != nil {
		t.log.Warn().Err(err).Msg("ignoring unreadable sync state")
		return SyncMeta{}
	}
	return meta
}

func (t *Tracker) saveMetaLocked(meta SyncMeta) {
	if err := t.cache.Set(MetaKey, meta); err != nil {
		t.log.Error().Err(err).Msg("save sync state failed")
	}
}

// Snapshot returns the local data as a sync snapshot together with a version
// that changes whenever local data changes.
func (t *Tracker) Snapshot() (models.Snapshot, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(), t.version
}

func (t *Tracker) snapshotLocked() models.Snapshot {
	snap := models.NewSnapshot()
	for _, day := range t.daysLocked() {
		snap.DailyLogs[day.Date] = day
	}
	snap.Goals = t.loadGoalsLocked()
	snap.UpdatedAt = t.syncMetaLocked().ClientUpdatedAt
	return snap
}

// ApplySynced stores the result of a sync cycle. base is the version returned
// by the Snapshot the cycle started from; if local data changed since then,
// those changes are merged on top of synced and stay pending.
// It returns how many days were written.
func (t *Tracker) ApplySynced(synced models.Snapshot, base uint64, lastSync models.Stamp) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	changedDuringSync := t.version != base
	if changedDuringSync {
		local := t.snapshotLocked()
		var report merge.Report
		synced, report = merge.Snapshots(synced, local, t.stamp())
		t.log.Debug().
			Int("replaced", report.Count(merge.ActionReplaced)).
			Int("unioned", report.Count(merge.ActionUnioned)).
			Msg("re-merged changes made during sync")
	}

	written := 0
	for _, date := range synced.Dates() {
		if !models.IsValidDate(date) {
			continue
		}
		day := aggregate.Recompute(synced.DailyLogs[date])
		day.Date = date
		if err := t.cache.Set(logKey(date), day); err != nil {
			return written, fmt.Errorf("save day %s: %w", date, err)
		}
		written++
	}
	if synced.Goals != nil {
		if err := t.cache.Set(GoalsKey, *synced.Goals); err != nil {
			return written, fmt.Errorf("save goals: %w", err)
		}
	}

	t.markSyncedLocked(lastSync, changedDuringSync)
	t.cache.Flush(true)
	return written, nil
}

// MarkPushed records a successful push of the snapshot taken at version base
// without rewriting local data.
func (t *Tracker) MarkPushed(base uint64, lastSync models.Stamp) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markSyncedLocked(lastSync, t.version != base)
	t.cache.Flush(true)
}

func (t *Tracker) markSyncedLocked(lastSync models.Stamp, stillPending bool) {
	meta := t.syncMetaLocked()
	meta.LastSync = lastSync
	meta.Pending = stillPending
	if !stillPending && lastSync.After(meta.ClientUpdatedAt) {
		meta.ClientUpdatedAt = lastSync
	}
	// Days changed mid-cycle were not in the pushed snapshot, so the eviction
	// watermark only moves on a clean sync.
	if lastSync.IsSet() && !stillPending {
		meta.SyncedThrough = models.At(t.stamp())
	}
	t.saveMetaLocked(meta)
	if meta.SyncedThrough.IsSet() {
		t.syncedThrough.Store(meta.SyncedThrough.Time().UnixNano())
	}
}
