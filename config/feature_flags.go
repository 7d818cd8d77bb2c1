package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts for the
// courseware runtime. Supports percentage rollout, per-student overrides,
// and time-based activation.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // studentID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Students are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	StudentID string // student UUID
	IsStaff   bool   // staff users get every feature
}

// Predefined feature flag names.
const (
	// === Courseware Features ===
	FeatureStaffHistograms = "courseware.staff_histograms" // grade histograms under modules for staff
	FeatureEditLinks       = "courseware.edit_links"       // content edit links in the staff debug panel
	FeatureTOCCache        = "toc.cache"                   // Redis-backed table of contents cache
	FeatureTrackingEvents  = "tracking.enabled"            // publish tracking events to the bus

	// === Grading Features ===
	FeatureExternalGrading = "grading.external" // submit problems to the external queue

	// === Experimental Features ===
	FeatureExperimentalPrefetch = "experimental.deep_prefetch" // prefetch state below the default depth
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureStaffHistograms] = &Feature{
		Name:           FeatureStaffHistograms,
		Description:    "Show grade histograms under modules for staff",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEditLinks] = &Feature{
		Name:           FeatureEditLinks,
		Description:    "Show content edit links in the staff debug panel",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureTOCCache] = &Feature{
		Name:           FeatureTOCCache,
		Description:    "Cache course navigation in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureTrackingEvents] = &Feature{
		Name:           FeatureTrackingEvents,
		Description:    "Publish module tracking events to the event bus",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureExternalGrading] = &Feature{
		Name:           FeatureExternalGrading,
		Description:    "Submit externally graded problems to the queue",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalPrefetch] = &Feature{
		Name:           FeatureExperimentalPrefetch,
		Description:    "Prefetch student state below the default depth",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_COURSEWARE_STAFF_HISTOGRAMS=true
// Example: FEATURE_TOC_CACHE=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "courseware.staff_histograms" -> "FEATURE_COURSEWARE_STAFF_HISTOGRAMS"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.StudentID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.StudentID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Staff users get all features
	if ctx != nil && ctx.IsStaff {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.StudentID != "" {
		return ff.isInRollout(ctx.StudentID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a student is in the rollout percentage.
// Uses consistent hashing so students stay in their bucket.
func (ff *FeatureFlags) isInRollout(studentID, featureName string, percent int) bool {
	// Create a consistent hash for this student+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(studentID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetUserOverride sets a feature override for a specific student.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(studentID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[studentID]; !ok {
		ff.userOverrides[studentID] = make(map[string]bool)
	}
	ff.userOverrides[studentID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a student.
func (ff *FeatureFlags) ClearUserOverrides(studentID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, studentID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
