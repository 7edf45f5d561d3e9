package ui

import (
	"os"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const MaxRecent = 20

type RecentFile struct {
	Path string `yaml:"path"`
	Time int64  `yaml:"time"`
}

// Recent remembers the files loaded and exported across sessions, newest
// last. The zero path keeps it in memory only.
type Recent struct {
	path string

	mu     sync.Mutex
	Loaded []RecentFile `yaml:"loaded"`
	Saved  []RecentFile `yaml:"exported"`
}

// LoadRecent reads path. A missing file is an empty list.
func LoadRecent(path string) (*Recent, error) {
	r := &Recent{path: path}
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return r, errors.Wrap(err, "reading recent files")
	}
	if err := yaml.Unmarshal(data, r); err != nil {
		return r, errors.Wrapf(err, "decoding %s", path)
	}
	return r, nil
}

func (r *Recent) Save() error {
	if r.path == "" {
		return nil
	}
	r.mu.Lock()
	data, err := yaml.Marshal(r)
	r.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "encoding recent files")
	}
	return errors.Wrapf(os.WriteFile(r.path, data, 0o644), "writing %s", r.path)
}

// push moves path to the end of list, dropping its older entry.
func push(list []RecentFile, path string) []RecentFile {
	list = slices.DeleteFunc(list, func(rf RecentFile) bool { return rf.Path == path })
	list = append(list, RecentFile{Path: path, Time: time.Now().Unix()})
	if len(list) > MaxRecent {
		list = slices.Delete(list, 0, len(list)-MaxRecent)
	}
	return list
}

func (r *Recent) Add(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Saved = push(r.Saved, path)
}

func (r *Recent) AddLoaded(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Loaded = push(r.Loaded, path)
}

// Last is the most recent export.
func (r *Recent) Last() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Saved) == 0 {
		return "", false
	}
	return r.Saved[len(r.Saved)-1].Path, true
}

// Exports lists the exports, newest first.
func (r *Recent) Exports() []RecentFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := slices.Clone(r.Saved)
	slices.Reverse(s)
	return s
}
