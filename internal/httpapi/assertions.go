package httpapi

import (
	"github.com/tinoosan/fxledger/internal/storage/memory"
	"github.com/tinoosan/fxledger/internal/storage/postgres"
)

// Compile-time assertions that both storage backends satisfy the API's
// Store interface.
var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)
