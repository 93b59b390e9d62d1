package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldV, oldSHA, oldTime := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldTime })

	assert.Equal(t, "filter-motor dev (commit unknown, built unknown)", String("filter-motor"))

	Version, GitSHA, BuildTime = "v0.3.0", "abc1234", "2026-10-19T00:00:00Z"
	assert.Equal(t, "find-cylinders v0.3.0 (commit abc1234, built 2026-10-19T00:00:00Z)", String("find-cylinders"))
}
