package db

import "context"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMemory  Implementation = "memory"
	ImplFile    Implementation = "file"
	ImplArchive Implementation = "archive"
	ImplBolt    Implementation = "bolt"
	ImplRemote  Implementation = "remote"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet    Feature = 1 << iota // Support for Set operations
	FeatureGet                        // Support for Get operations
	FeatureDelete                     // Support for Delete operations
	FeatureClear                      // Support for Clear operations
	FeatureHas                        // Support for Has operations
	FeatureKeys                       // Support for Keys operations
)

// FeaturesAll is the feature set of a fully writable engine.
const FeaturesAll = FeatureSet | FeatureGet | FeatureDelete | FeatureClear | FeatureHas | FeatureKeys

// FeaturesReadOnly is the feature set of a read-only engine.
const FeaturesReadOnly = FeatureGet | FeatureHas | FeatureKeys

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureClear:
		return "Clear"
	case FeatureHas:
		return "Has"
	case FeatureKeys:
		return "Keys"
	default:
		return "Unknown"
	}
}

// Features splits a combined feature set into its single flags.
func (f Feature) Features() []Feature {
	var out []Feature
	for bit := FeatureSet; bit <= FeatureKeys; bit <<= 1 {
		if f&bit != 0 {
			out = append(out, bit)
		}
	}
	return out
}

type DatabaseInfo struct {
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines the interface of the local storage engine behind a leaf store.
// An engine only knows its own keys, the fallback chain is handled by the lstore layer.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
//
// Values passed in and returned must not be retained or shared by the engine,
// implementations copy where needed.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry. It returns the previous value and whether there was one.
	Set(ctx context.Context, key string, value []byte) (old []byte, loaded bool, err error)

	// SetIfAbsent stores the value only if the key does not exist (check and write are atomic).
	// It returns whether the value was stored. Requires FeatureSet.
	SetIfAbsent(ctx context.Context, key string, value []byte) (stored bool, err error)

	// Delete removes an entry. It returns whether the key existed.
	Delete(ctx context.Context, key string) (deleted bool, err error)

	// Clear removes all entries.
	Clear(ctx context.Context) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Get(ctx context.Context, key string) (value []byte, loaded bool, err error)

	// Has checks whether a key exists in the database.
	Has(ctx context.Context, key string) (loaded bool, err error)

	// Keys returns all keys of the database (in no particular order).
	Keys(ctx context.Context) (keys []string, err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
