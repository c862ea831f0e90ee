// Package history keeps a record of every repair-loop iteration in a bolt
// database so runs can be reviewed after the fact.
package history

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

var bucketName = []byte("runs")

// Iteration outcomes.
const (
	OutcomePass            = "pass"
	OutcomePatched         = "patched"
	OutcomeRegenerate      = "regenerate"
	OutcomeMismatch        = "mismatch"
	OutcomeExecError       = "exec-error"
	OutcomeGeneratorFailed = "generator-failed"
)

// Entry is one repair-loop iteration.
type Entry struct {
	RunID      string
	Target     string
	Iteration  int
	Outcome    string
	Categories []string
	Patches    []string
	Diff       string
	Error      string
	At         time.Time
}

func (e Entry) key() []byte {
	return []byte(fmt.Sprintf("%s/%04d", e.RunID, e.Iteration))
}

type Store struct {
	db *bolt.DB
}

// Open opens, or creates, the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create history dir")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create history bucket")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record stores one iteration, stamping it with the current time when At
// is unset.
func (s *Store) Record(e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	var val bytes.Buffer
	if err := gob.NewEncoder(&val).Encode(e); err != nil {
		return errors.Wrap(err, "encode history entry")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(e.key(), val.Bytes())
	})
}

// List returns the iterations recorded for target, oldest first. An empty
// target lists every run.
func (s *Store) List(target string) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e Entry
			if err := gob.NewDecoder(bytes.NewBuffer(v)).Decode(&e); err != nil {
				return errors.Wrapf(err, "decode history entry %s", k)
			}
			if target == "" || e.Target == target {
				entries = append(entries, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].At.Equal(entries[j].At) {
			return entries[i].At.Before(entries[j].At)
		}
		return entries[i].Iteration < entries[j].Iteration
	})
	return entries, nil
}

type csvEntry struct {
	RunID      string `csv:"run_id"`
	Target     string `csv:"target"`
	Iteration  int    `csv:"iteration"`
	Outcome    string `csv:"outcome"`
	Categories string `csv:"categories"`
	Patches    string `csv:"patches"`
	Error      string `csv:"error"`
	At         string `csv:"at"`
}

// ExportCSV writes entries as CSV, one line per iteration. Diffs are left
// out; they are multi-line and already kept in the database.
func ExportCSV(w io.Writer, entries []Entry) error {
	rows := make([]*csvEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, &csvEntry{
			RunID:      e.RunID,
			Target:     e.Target,
			Iteration:  e.Iteration,
			Outcome:    e.Outcome,
			Categories: strings.Join(e.Categories, ";"),
			Patches:    strings.Join(e.Patches, ";"),
			Error:      e.Error,
			At:         e.At.Format(time.RFC3339),
		})
	}
	return errors.Wrap(gocsv.Marshal(rows, w), "export history")
}
