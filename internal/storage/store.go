// Package storage implements the opaque key-value collaborator used to
// persist server configs, custom detection rules, and scan history: a
// Store interface plus an in-memory reference implementation and a
// YAML-file-backed one modeled on muster's contexts.yaml storage.
package storage

import "errors"

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Well-known collections, namespacing keys within a Store.
const (
	CollectionServerConfigs = "server-configs"
	CollectionCustomRules   = "custom-rules"
	CollectionScanHistory   = "scan-history"
)

// Store is an opaque key-value collaborator. Values are caller-supplied
// byte blobs (typically YAML or JSON); Store itself has no knowledge of
// their shape.
type Store interface {
	Get(collection, key string) ([]byte, error)
	Put(collection, key string, value []byte) error
	Delete(collection, key string) error
	List(collection string) ([]string, error)
}
