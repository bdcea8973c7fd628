package memory

import (
	"testing"

	"github.com/tdjsnelling/sqtracker-sub000/store"
)

func TestMemoryStore(t *testing.T) {
	store.TestStore(t, NewDriver())
}
