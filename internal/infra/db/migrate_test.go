package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil || len(names) == 0 {
		t.Fatalf("миграции не встроены: %v %v", names, err)
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	for _, n := range names {
		if base, ok := strings.CutSuffix(n, ".up.sql"); ok && !set[base+".down.sql"] {
			t.Fatalf("нет отката для %s", n)
		}
		if base, ok := strings.CutSuffix(n, ".down.sql"); ok && !set[base+".up.sql"] {
			t.Fatalf("нет наката для %s", n)
		}
	}
}
