package datastore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/hostd/pkg/types"
)

var (
	bucketCurrent = []byte("current")
	bucketHistory = []byte("history")
)

// currentKey is the single key holding the live host status inside
// bucketCurrent.
var currentKey = []byte("status")

// Store is a bbolt-backed content store for one host's status record plus
// its append-only history (§4.5).
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (creating if absent) the datastore file at path, ensuring its
// buckets exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating datastore directory %s: %w", dir, err)
		}
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening datastore %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketCurrent, bucketHistory} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("creating bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HostStatus returns the currently persisted host status, or nil if none
// has been written yet (fresh, not-provisioned host).
func (s *Store) HostStatus() (*types.HostStatus, error) {
	var hs *types.HostStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCurrent).Get(currentKey)
		if data == nil {
			return nil
		}
		hs = &types.HostStatus{}
		return json.Unmarshal(data, hs)
	})
	return hs, err
}

// WithHostStatus loads the current host status (or a fresh one seeded
// from spec if none exists), invokes mutate, and atomically persists the
// result plus a history record under its install-index, matching §4.5's
// "with_host_status(|hs| …)" mutate-and-persist contract.
func (s *Store) WithHostStatus(spec types.HostConfiguration, mutate func(*types.HostStatus) error) (*types.HostStatus, error) {
	var result *types.HostStatus
	err := s.db.Update(func(tx *bolt.Tx) error {
		cur := tx.Bucket(bucketCurrent)
		hist := tx.Bucket(bucketHistory)

		hs := &types.HostStatus{}
		if data := cur.Get(currentKey); data != nil {
			if err := json.Unmarshal(data, hs); err != nil {
				return fmt.Errorf("decoding current host status: %w", err)
			}
		} else {
			hs = types.NewHostStatus(spec)
		}

		if err := mutate(hs); err != nil {
			return err
		}

		data, err := json.Marshal(hs)
		if err != nil {
			return fmt.Errorf("encoding host status: %w", err)
		}
		if err := cur.Put(currentKey, data); err != nil {
			return err
		}
		if err := hist.Put(historyKey(hs.InstallIndex), data); err != nil {
			return err
		}
		result = hs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// History returns every persisted host status, ordered by install-index
// ascending. Ordering falls out of historyKey's fixed-width zero-padded
// encoding, which sorts lexicographically the same as numerically, and
// bbolt's ForEach iterating keys in byte order.
func (s *Store) History() ([]*types.HostStatus, error) {
	var out []*types.HostStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHistory)
		return b.ForEach(func(k, v []byte) error {
			hs := &types.HostStatus{}
			if err := json.Unmarshal(v, hs); err != nil {
				return err
			}
			out = append(out, hs)
			return nil
		})
	})
	return out, err
}

// RollbackChain returns the ordered list of prior host statuses still
// recoverable from history: every entry whose servicing state reached at
// least clean-install-finalized, most recent first, excluding the current
// install-index.
func (s *Store) RollbackChain(currentInstallIndex int) ([]*types.HostStatus, error) {
	history, err := s.History()
	if err != nil {
		return nil, err
	}
	var chain []*types.HostStatus
	for i := len(history) - 1; i >= 0; i-- {
		hs := history[i]
		if hs.InstallIndex == currentInstallIndex {
			continue
		}
		if !reachedFinalized(hs.ServicingState) {
			continue
		}
		chain = append(chain, hs)
	}
	return chain, nil
}

func reachedFinalized(state types.ServicingState) bool {
	switch state {
	case types.ServicingStateCleanInstallFinalized,
		types.ServicingStateProvisioned,
		types.ServicingStateABUpdateFinalized,
		types.ServicingStateManualRollbackABFinalized,
		types.ServicingStateManualRollbackRunFinalized:
		return true
	default:
		return false
	}
}

// Persist copies the datastore file verbatim into newrootPath, the path
// the caller has already validated against the storage graph (§3.2, §4.5),
// used at commit time to seed the new root's copy of the store.
func (s *Store) Persist(newrootPath string) error {
	if err := os.MkdirAll(filepath.Dir(newrootPath), 0o700); err != nil {
		return fmt.Errorf("creating newroot datastore directory: %w", err)
	}

	src, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("opening datastore for persist: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(newrootPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating newroot datastore file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copying datastore into newroot: %w", err)
	}
	return dst.Sync()
}

// historyKey renders an install-index as a fixed-width, lexicographically
// sortable bbolt key.
func historyKey(installIndex int) []byte {
	return []byte(fmt.Sprintf("%010d", installIndex))
}
