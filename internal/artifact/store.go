package artifact

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Store keeps one artifact file per target under Dir.
type Store struct {
	Dir string
}

// Path returns the artifact file of a target.
func (s Store) Path(target string) string {
	return filepath.Join(s.Dir, target+"_parser.yaml")
}

func (s Store) Load(target string) (*Artifact, error) {
	data, err := os.ReadFile(s.Path(target))
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrNotFound, target)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read artifact")
	}
	a, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if a.Target == "" {
		a.Target = target
	}
	return a, nil
}

// Save writes the artifact and bumps its revision.
func (s Store) Save(a *Artifact) error {
	if a.Target == "" {
		return errors.New("artifact has no target")
	}
	a.Revision++
	data, err := a.Marshal()
	if err != nil {
		a.Revision--
		return errors.Wrap(err, "encode artifact")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		a.Revision--
		return errors.Wrap(err, "create parsers dir")
	}
	if err := s.writeAtomic(a.Target, data); err != nil {
		a.Revision--
		return err
	}
	return nil
}

// writeAtomic writes through a temp file in Dir and renames it over the
// artifact, so a crash never leaves a truncated file behind.
func (s Store) writeAtomic(target string, data []byte) (err error) {
	tmp, err := os.CreateTemp(s.Dir, target+"_parser-*.yaml.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp artifact")
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write artifact")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "write artifact")
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(err, "write artifact")
	}
	if err = os.Rename(tmp.Name(), s.Path(target)); err != nil {
		return errors.Wrap(err, "replace artifact")
	}
	return nil
}

// Delete removes the target's artifact. A missing file is not an error.
func (s Store) Delete(target string) error {
	err := os.Remove(s.Path(target))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "delete artifact")
	}
	return nil
}
