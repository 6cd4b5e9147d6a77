// Package artifact persists fitted preprocessors and models as gob files.
//
// Every write goes to a temporary file in the destination directory and is
// renamed into place, so a reader never observes a truncated artifact.
package artifact

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/pkg/log"
	"github.com/YuminosukeSato/mathscore/preprocessing"
)

// Store saves and loads artifacts by path. Single writer per path is assumed.
type Store struct {
	logger log.Logger
}

// NewStore creates a Store that logs through the global provider.
func NewStore() *Store {
	return &Store{logger: log.GetLoggerWithName("artifact.store")}
}

// Save encodes obj and atomically replaces the file at path, creating
// parent directories as needed. obj must be a type registered with model.Register.
func (s *Store) Save(path string, obj interface{}) error {
	p, err := s.Stage(path, obj)
	if err != nil {
		return err
	}
	return p.Commit()
}

// Pending is an encoded artifact that has not been moved into place yet.
type Pending struct {
	path   string
	tmp    string
	done   bool
	logger log.Logger
}

// Path returns the destination path.
func (p *Pending) Path() string { return p.path }

// Stage writes obj to a temporary file next to path without touching path itself.
// The caller must Commit or Discard the returned Pending.
func (s *Store) Stage(path string, obj interface{}) (*Pending, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewPersistenceError("save", path, err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, errors.NewPersistenceError("save", path, err)
	}
	tmp := f.Name()

	fail := func(err error) (*Pending, error) {
		_ = f.Close()
		_ = os.Remove(tmp)
		return nil, errors.NewPersistenceError("save", path, err)
	}

	w := bufio.NewWriter(f)
	if err := model.SaveModelToWriter(obj, w); err != nil {
		return fail(err)
	}
	if err := w.Flush(); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return nil, errors.NewPersistenceError("save", path, err)
	}
	return &Pending{path: path, tmp: tmp, logger: s.logger}, nil
}

// Commit renames the staged file onto the destination path.
func (p *Pending) Commit() error {
	if p.done {
		return errors.NewPersistenceError("commit", p.path, errors.New("artifact already committed or discarded"))
	}
	p.done = true
	if err := os.Rename(p.tmp, p.path); err != nil {
		_ = os.Remove(p.tmp)
		return errors.NewPersistenceError("commit", p.path, err)
	}
	p.logger.Debug("Artifact saved", log.PathKey, p.path)
	return nil
}

// Discard removes the staged file. Discarding twice or after Commit is a no-op.
func (p *Pending) Discard() error {
	if p.done {
		return nil
	}
	p.done = true
	if err := os.Remove(p.tmp); err != nil && !os.IsNotExist(err) {
		return errors.NewPersistenceError("discard", p.path, err)
	}
	return nil
}

// Load decodes the artifact at path.
func (s *Store) Load(path string) (interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewPersistenceError("load", path, err)
	}
	defer f.Close()

	obj, err := model.LoadModelFromReader(bufio.NewReader(f))
	if err != nil {
		return nil, errors.NewPersistenceError("load", path, err)
	}
	s.logger.Debug("Artifact loaded", log.PathKey, path)
	return obj, nil
}

// LoadPreprocessor loads a fitted preprocessing pipeline.
func (s *Store) LoadPreprocessor(path string) (*preprocessing.Preprocessor, error) {
	obj, err := s.Load(path)
	if err != nil {
		return nil, err
	}
	p, ok := obj.(*preprocessing.Preprocessor)
	if !ok || !p.IsFitted() {
		return nil, errors.NewPersistenceError("load", path,
			errors.Wrapf(errors.ErrUnknownArtifact, "expected a fitted preprocessor, got %T", obj))
	}
	return p, nil
}

// LoadRegressor loads a fitted regression model.
func (s *Store) LoadRegressor(path string) (model.Regressor, error) {
	obj, err := s.Load(path)
	if err != nil {
		return nil, err
	}
	r, ok := obj.(model.Regressor)
	if !ok {
		return nil, errors.NewPersistenceError("load", path,
			errors.Wrapf(errors.ErrUnknownArtifact, "expected a regression model, got %T", obj))
	}
	return r, nil
}
