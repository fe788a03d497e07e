// Package store persists the session snapshot across process restarts.
//
// Two backends implement domain.SnapshotStore: a local JSON file (default)
// and a single redis key (selected via REDIS_URL). Both encrypt the
// authorization token at rest; a missing or malformed payload always reads
// as absent, never as an error the auth manager must distinguish.
package store
