// Package storagetest provides storage.KV doubles for package tests.
package storagetest

import (
	"context"
	"errors"

	"github.com/carepoint/portal/internal/platform/storage"
)

// ErrUnavailable is the error returned by Failing when no other is set.
var ErrUnavailable = errors.New("storage unavailable")

// Failing wraps a KV and fails writes (and optionally reads) on demand.
type Failing struct {
	storage.KV
	FailGet bool
	FailSet bool
	Err     error
}

// NewFailing wraps an in-memory KV whose writes fail.
func NewFailing() *Failing {
	return &Failing{KV: storage.NewMemory(), FailSet: true}
}

func (f *Failing) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrUnavailable
}

func (f *Failing) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.FailGet {
		return nil, false, f.err()
	}
	return f.KV.Get(ctx, key)
}

func (f *Failing) Set(ctx context.Context, key string, value []byte) error {
	if f.FailSet {
		return f.err()
	}
	return f.KV.Set(ctx, key, value)
}
