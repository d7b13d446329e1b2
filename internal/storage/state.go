package storage

// RunState is carried between runs by the command handler.
type RunState struct {
	LastUpdateID int64 `json:"last_update_id"`
	BroadMode    bool  `json:"broad_mode"`
}

type StateStore struct {
	path string
}

func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the state file. Fields missing from the file, or the whole file
// when it does not exist, take their values from defaults.
func (s *StateStore) Load(defaults RunState) (RunState, error) {
	st := defaults
	if _, err := readJSON(s.path, &st); err != nil {
		return RunState{}, err
	}
	return st, nil
}

func (s *StateStore) Save(st RunState) error {
	return writeJSON(s.path, st)
}
