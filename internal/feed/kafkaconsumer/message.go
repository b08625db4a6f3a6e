package kafkaconsumer

import (
	"errors"
	"fmt"

	"github.com/mohammed-shakir/knownlayers/internal/core/model"
)

var ErrInvalidBatch = errors.New("invalid record batch")

// Batch is one harvester message.
type Batch struct {
	BatchID string            `json:"batch_id"`
	Records []model.CSWRecord `json:"records"`
}

func (b Batch) Validate() error {
	for i, rec := range b.Records {
		if rec.ID == "" {
			return fmt.Errorf("%w: record %d has no id", ErrInvalidBatch, i)
		}
	}
	return nil
}
