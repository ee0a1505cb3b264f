package tasks

import "testing"

func TestMemoryRepository(t *testing.T) {
	runStoreContract(t, NewMemoryRepository())
}
