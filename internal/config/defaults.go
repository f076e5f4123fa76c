// Package config provides centralized configuration constants for PlanPerfect.
// All default values should be defined here to ensure a single source of truth.
package config

import "time"

// Backend defaults
const (
	// DefaultAPIBaseURL is the production backend.
	DefaultAPIBaseURL = "https://api.planperfect.app"

	// DefaultAPITimeout bounds a single backend call.
	DefaultAPITimeout = 120 * time.Second
)

// Upload limits
const (
	// MaxUploadBytes is the exclusive upper bound for an uploaded image.
	MaxUploadBytes = 15 * 1024 * 1024
)

// AllowedImageTypes is the upload allow-list.
var AllowedImageTypes = []string{"image/png", "image/jpeg", "image/jpg"}

// Selection caps
const (
	// MaxFurnitureSelection is how many furniture classes can be browsed at once.
	MaxFurnitureSelection = 4

	// MaxThemeSelection is how many style themes can be picked.
	MaxThemeSelection = 2
)

// Recommendations
const (
	// RecommendationsPerPage is the page size of a furniture search.
	RecommendationsPerPage = 6

	// ReplacementPages bounds the random page used for a "not relevant" replacement.
	ReplacementPages = 5
)

// Realtime drivers
const (
	RealtimeMemory   = "memory"
	RealtimeFirebase = "firebase"
	RealtimeNATS     = "nats"
)

// DefaultPreviewAddr binds the preview server to a free loopback port.
const DefaultPreviewAddr = "127.0.0.1:0"
