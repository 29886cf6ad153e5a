package store

import "path/filepath"

// StoreConfig describes a persistent store's location and how many levels
// above the base layer should survive compaction.
type StoreConfig struct {
	// Path is the directory holding the store's backing file(s).
	Path string
	// ID names this store within Path.
	ID string
	// Levels is the number of levels cached above the base layer.
	Levels uint8
}

// DataPath returns the canonical data-file path for a store with the given
// id inside path: "<path>/sc-<id>-data".
func DataPath(path, id string) string {
	return filepath.Join(path, "sc-"+id+"-data")
}

// ReplicaPath returns the canonical base-layer file path for a version-2
// LevelCacheStore with the given id inside path: "<path>/sc-<id>-data-replica".
func ReplicaPath(path, id string) string {
	return filepath.Join(path, "sc-"+id+"-data-replica")
}

// DataPath returns this config's canonical data-file path.
func (c StoreConfig) DataPath() string {
	return DataPath(c.Path, c.ID)
}

// ReplicaPath returns this config's canonical base-layer file path, used by
// version-2 LevelCacheStores whose base layer lives in a separate file.
func (c StoreConfig) ReplicaPath() string {
	return ReplicaPath(c.Path, c.ID)
}
