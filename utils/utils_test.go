package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	assert.Equal(t, HashString("job-1"), HashBytes([]byte("job-"), []byte("1")))
	assert.NotEqual(t, HashString("job-1"), HashString("job-2"))
	assert.GreaterOrEqual(t, SeedFromString("job-1"), int64(0))
	assert.Equal(t, SeedFromString("job-1"), SeedFromString("job-1"))
}

func TestRecoverWithError(t *testing.T) {
	run := func() (err error) {
		defer RecoverWithError(&err)
		panic("boom")
	}
	err := run()
	assert.EqualError(t, err, "got panic: boom")

	clean := func() (err error) {
		defer RecoverWithError(&err)
		return errors.New("plain")
	}
	assert.EqualError(t, clean(), "plain")
}
