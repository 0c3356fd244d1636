// Package store persists analysis runs in a bbolt database so
// consecutive runs over the same repository can be compared.
//
// Layout:
//
//	runs/               root bucket
//	  <repo>/           one nested bucket per repository
//	    00000001        JSON-encoded RunRecord
//
// Sequence keys are zero-padded so bbolt's byte-ordered cursor walks
// runs oldest to newest.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/risklab/covrisk/internal/model"
)

var bucketRuns = []byte("runs")

// RunRecord is one archived analysis of a repository.
type RunRecord struct {
	// Sequence numbers runs per repository, starting at 1.
	Sequence uint64 `json:"sequence"`

	// Meta describes the run that produced the rows.
	Meta model.RunMeta `json:"meta"`

	// Rows holds the full attributed result set in input order.
	Rows []model.ResultRow `json:"rows"`

	// TopK is the hidden-risk shortlist as reported at run time.
	TopK []model.ResultRow `json:"top_k"`
}

// Store is a bbolt-backed archive of analysis runs.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the run archive at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt init: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun archives one analysis under the repository's bucket and
// returns its sequence number.
func (s *Store) SaveRun(repo string, meta model.RunMeta, rows, topK []model.ResultRow) (uint64, error) {
	var seq uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(bucketRuns)
		if err != nil {
			return err
		}
		b, err := root.CreateBucketIfNotExists([]byte(repo))
		if err != nil {
			return err
		}
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(RunRecord{Sequence: seq, Meta: meta, Rows: rows, TopK: topK})
		if err != nil {
			return err
		}
		return b.Put(runKey(seq), data)
	})
	if err != nil {
		return 0, fmt.Errorf("save run for %s: %w", repo, err)
	}
	return seq, nil
}

// LastRun returns the most recent archived run for repo, or nil when
// the repository has never been archived.
func (s *Store) LastRun(repo string) (*RunRecord, error) {
	var rec *RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := repoBucket(tx, repo)
		if b == nil {
			return nil
		}
		_, v := b.Cursor().Last()
		if v == nil {
			return nil
		}
		r, err := decodeRun(v)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("last run for %s: %w", repo, err)
	}
	return rec, nil
}

// ListRuns returns every archived run for repo, oldest first.
func (s *Store) ListRuns(repo string) ([]RunRecord, error) {
	var runs []RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := repoBucket(tx, repo)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			r, err := decodeRun(v)
			if err != nil {
				return err
			}
			runs = append(runs, *r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", repo, err)
	}
	return runs, nil
}

// Repos returns the names of repositories with at least one archived
// run, in byte order.
func (s *Store) Repos() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketRuns)
		if root == nil {
			return nil
		}
		return root.ForEachBucket(func(name []byte) error {
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	return names, nil
}

// DeleteRepo removes every archived run for repo. Deleting a
// repository that was never archived is not an error.
func (s *Store) DeleteRepo(repo string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketRuns)
		if root == nil {
			return nil
		}
		err := root.DeleteBucket([]byte(repo))
		if err == bolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("delete runs for %s: %w", repo, err)
	}
	return nil
}

func repoBucket(tx *bolt.Tx, repo string) *bolt.Bucket {
	root := tx.Bucket(bucketRuns)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(repo))
}

func runKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%08d", seq))
}

func decodeRun(v []byte) (*RunRecord, error) {
	var rec RunRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("decode run record: %w", err)
	}
	return &rec, nil
}
