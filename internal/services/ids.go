package services

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/filedepot/backend/pkg/apperr"
	"github.com/filedepot/backend/pkg/logger"
	"gorm.io/gorm"
)

// Entity ids are random values in [1, 2^53] so they survive JSON number
// precision on any client.
const maxEntityID = int64(1) << 53

const idAllocationAttempts = 10

var idBound = big.NewInt(maxEntityID)

func randomEntityID() (int64, error) {
	n, err := rand.Int(rand.Reader, idBound)
	if err != nil {
		return 0, err
	}
	return n.Int64() + 1, nil
}

// insertWithRandomID picks candidate ids and attempts the insert atomically,
// retrying on a duplicate key instead of checking existence first. Each
// attempt runs under its own savepoint: on PostgreSQL a constraint violation
// aborts the surrounding transaction, and without the savepoint every retry
// after the first failure would die with "current transaction is aborted".
//
// A duplicate key does not always mean an id collision: a racing writer may
// have tripped another unique index (the sibling-name ones). Callers that
// insert under such an index pass classify to re-check their constraint and
// surface its categorical error; only an unclassified duplicate is treated
// as a collision worth a fresh id. Retries are internal and bounded;
// exhaustion surfaces as internal_error.
func insertWithRandomID(tx *gorm.DB, insert func(tx *gorm.DB, id int64) error, classify func(tx *gorm.DB) error) error {
	for attempt := 0; attempt < idAllocationAttempts; attempt++ {
		id, err := randomEntityID()
		if err != nil {
			return err
		}

		err = tx.Transaction(func(nested *gorm.DB) error {
			return insert(nested, id)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}

		if classify != nil {
			if classified := classify(tx); classified != nil {
				return classified
			}
		}

		logger.Warn("entity_id_collision", map[string]interface{}{
			"candidate_id": id,
			"attempt":      attempt + 1,
		})
	}

	logger.Error("entity_id_allocation_exhausted", nil, map[string]interface{}{
		"attempts": idAllocationAttempts,
	})
	return apperr.ErrInternal
}
