package utils

import (
	"github.com/twmb/murmur3"
)

func HashString(s string) uint64 {
	return HashBytes([]byte(s))
}

func HashBytes(bytes ...[]byte) uint64 {
	hash := murmur3.New64()
	for _, b := range bytes {
		_, err := hash.Write(b)
		if err != nil {
			panic(err)
		}
	}
	return hash.Sum64()
}

// SeedFromString maps an identifier (a job id, a configuration name) to a non-negative random seed.
func SeedFromString(s string) int64 {
	return int64(HashString(s) >> 1)
}
