// Package state persists dotrun's per-project fingerprints.
//
// State lives in a single JSON object in the project root (.dotrun.json).
// Each dependency ecosystem stores its last installed fingerprint under its
// own key, and users may pin tool versions under keys ending in "_version".
// Pruning keeps only those version pins.
//
// Key concepts:
//   - Key: the typed set of keys dotrun reads and writes
//   - Store: Get/Set/Prune over the JSON object
//   - An absent state file reads as empty; an unparsable one is an error
package state
