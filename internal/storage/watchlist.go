package storage

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrEmptyName   = errors.New("company name is empty")
	ErrInvalidName = errors.New("company name must not contain < or >")
)

// DuplicateError reports a name already on the watchlist, case-insensitively.
type DuplicateError struct {
	Existing string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("already tracking %q", e.Existing)
}

type Company struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type watchlistFile struct {
	Companies []Company `json:"companies"`
	Count     int       `json:"count"`
}

// Watchlist is the JSON-backed list of tracked companies. Companies are only
// ever appended.
type Watchlist struct {
	path string
	mu   sync.Mutex
	data watchlistFile
}

// OpenWatchlist loads the watchlist at path. A missing file is an empty list.
func OpenWatchlist(path string) (*Watchlist, error) {
	w := &Watchlist{path: path}
	if _, err := readJSON(path, &w.data); err != nil {
		return nil, err
	}
	return w, nil
}

// Names returns company names in watchlist order.
func (w *Watchlist) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make([]string, 0, len(w.data.Companies))
	for _, c := range w.data.Companies {
		names = append(names, c.Name)
	}
	return names
}

// Add validates name, appends it with the next id and saves the file.
func (w *Watchlist) Add(name string) (Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Company{}, ErrEmptyName
	}
	if strings.ContainsAny(name, "<>") {
		return Company{}, ErrInvalidName
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	key := strings.ToLower(name)
	nextID := 1
	for _, c := range w.data.Companies {
		if strings.ToLower(c.Name) == key {
			return Company{}, &DuplicateError{Existing: c.Name}
		}
		if c.ID >= nextID {
			nextID = c.ID + 1
		}
	}

	c := Company{ID: nextID, Name: name}
	next := watchlistFile{Companies: append(append([]Company(nil), w.data.Companies...), c)}
	next.Count = len(next.Companies)
	if err := writeJSON(w.path, next); err != nil {
		return Company{}, err
	}
	w.data = next
	return c, nil
}
