package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEveryUpHasDown(t *testing.T) {
	ups, err := fs.Glob(Schema(), "*.up.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(Schema(), down); err != nil {
			t.Fatalf("missing %s: %v", down, err)
		}
	}
}

func TestSeedsEmbedded(t *testing.T) {
	seeds, err := fs.Glob(Seeds(), "*.sql")
	if err != nil || len(seeds) == 0 {
		t.Fatalf("expected seed files, got %v %v", seeds, err)
	}
}
