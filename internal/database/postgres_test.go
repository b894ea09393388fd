package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationVersion(t *testing.T) {
	cases := map[string]int{
		"001_study_engine.sql": 1,
		"012_indexes.sql":      12,
		"001_study_engine.txt": 0,
		"README.md":            0,
		"abc_thing.sql":        0,
		"007.sql":              0,
	}
	for name, want := range cases {
		assert.Equal(t, want, migrationVersion(name), name)
	}
}
