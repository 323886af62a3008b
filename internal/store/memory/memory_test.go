package memory

import (
	"testing"

	"famfin/internal/store"
	"famfin/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}
