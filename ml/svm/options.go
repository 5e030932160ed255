package svm

import (
	"encoding/binary"
	"sync"

	"github.com/rs/zerolog"
	"text2phenotype.com/svm/utils"
)

// Options carry the run-time collaborators of a training run. They are not persisted.
type Options struct {
	Logger *zerolog.Logger
	// Seed drives every random shuffle (Platt folds, cross-validation folds).
	Seed int64
	// Workers bounds how many independent sub-problems are solved concurrently.
	Workers int
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return 1
	}
	return o.Workers
}

// derive returns options for a nested unit of work with its own random stream.
func (o Options) derive(stream int) Options {
	o.Seed = deriveSeed(o.Seed, stream)
	o.Workers = 1
	return o
}

func deriveSeed(seed int64, stream int) int64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:], uint64(stream))
	return int64(utils.HashBytes(buf[:]) >> 1)
}

// runParallel calls fn for 0..n-1 with at most workers goroutines and returns the first error.
func runParallel(n, workers int, fn func(i int) error) error {
	if workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var wg sync.WaitGroup
	errChan := make(chan error, n)
	sem := make(chan struct{}, workers)
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			errChan <- fn(i)
		}(i)
	}
	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return err
		}
	}
	return nil
}
