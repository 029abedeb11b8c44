package services

import (
	"errors"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

// maxVersionRetries bounds the internal retry loop around optimistic-lock
// conflicts. Past this the conflict surfaces to the caller as a
// RowVersionConflictError carrying the latest row.
const maxVersionRetries = 3

func isVersionConflict(err error) bool {
	return errors.Is(err, utils.ErrRowVersionConflict)
}
