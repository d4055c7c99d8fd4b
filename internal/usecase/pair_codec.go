package usecase

import (
	"encoding/json"
	"fmt"

	"AriaPull/internal/domain/models"

	"github.com/go-playground/validator/v10"
)

var pairValidator = validator.New()

// DecodePair parses and validates a JSON track pair.
func DecodePair(b []byte) (*models.RadarPair, error) {
	var msg models.TrackPairMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		return nil, fmt.Errorf("decode pair: %w", err)
	}
	if err := pairValidator.Struct(msg); err != nil {
		return nil, fmt.Errorf("validate pair: %w", err)
	}
	pair, err := msg.ToPair()
	if err != nil {
		return nil, fmt.Errorf("convert pair: %w", err)
	}
	return pair, nil
}
