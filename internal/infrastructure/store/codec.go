package store

import (
	"encoding/json"
	"fmt"

	"github.com/pricealert/backend/internal/domain"
)

// encode renders the persisted document: indented JSON with empty maps
// instead of nulls and null for unset timestamps.
func encode(state *domain.TrackingState) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", domain.ErrInvalidRequest)
	}
	st := state.Clone()
	st.Normalize()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*domain.TrackingState, error) {
	var st domain.TrackingState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.Normalize()
	return &st, nil
}
