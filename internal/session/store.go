package session

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/lojasmm/chatwidget/internal/store"
)

// StateKey is the single storage entry holding the serialized State.
const StateKey = "chat_widget_session_state"

// Store loads and saves the session State of one tab.
type Store struct {
	storage store.Storage
	welcome string
	log     zerolog.Logger
}

func NewStore(s store.Storage, welcome string, log zerolog.Logger) *Store {
	return &Store{
		storage: s,
		welcome: welcome,
		log:     log.With().Str("component", "session").Logger(),
	}
}

// Load returns the saved state, or a fresh one when nothing usable is stored.
// Corrupt state is discarded, never reported to the caller.
func (s *Store) Load(ctx context.Context) *State {
	raw, err := s.storage.Get(ctx, StateKey)
	if errors.Is(err, store.ErrNotFound) {
		return NewState(s.welcome)
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("reading saved state failed, starting fresh")
		return NewState(s.welcome)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		s.log.Warn().Err(err).Msg("discarding unparseable saved state")
		return NewState(s.welcome)
	}
	if err := st.validate(); err != nil {
		s.log.Warn().Err(err).Msg("discarding invalid saved state")
		return NewState(s.welcome)
	}
	return &st
}

// Save writes the complete state. There are no partial updates.
func (s *Store) Save(ctx context.Context, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encoding session state")
	}
	if err := s.storage.Set(ctx, StateKey, data); err != nil {
		return errors.Wrap(err, "writing session state")
	}
	return nil
}
