package sqlstore

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DriverMemory keeps everything in a private in-memory SQLite database that
// disappears with the process. Useful for dry runs.
const DriverMemory = "memory"

// OpenMemory opens an isolated in-memory database.
func OpenMemory(logger *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:scout_%s?mode=memory&cache=shared", uuid.NewString())
	return Open(DriverSQLite, dsn, logger)
}
