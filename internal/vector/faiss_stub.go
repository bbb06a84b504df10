//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import (
	"context"
	"errors"
)

var errNoFAISS = errors.New("FAISS not available: build with -tags=faiss and install the FAISS library")

// FAISSIndex is a stub; build with -tags=faiss to enable FAISS support.
type FAISSIndex struct{}

// NewFAISSIndex returns an error because FAISS is not compiled in.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	return nil, errNoFAISS
}

func (f *FAISSIndex) Add(context.Context, []string, [][]float32) error { return errNoFAISS }

func (f *FAISSIndex) Search(context.Context, []float32, int) ([]Result, error) {
	return nil, errNoFAISS
}

func (f *FAISSIndex) Entries() ([]string, [][]float32, error) { return nil, nil, errNoFAISS }
func (f *FAISSIndex) Save(string) error                       { return errNoFAISS }
func (f *FAISSIndex) Load(string) error                       { return errNoFAISS }
func (f *FAISSIndex) Size() int                               { return 0 }
func (f *FAISSIndex) Dimensions() int                         { return 0 }
func (f *FAISSIndex) Type() string                            { return string(IndexTypeFAISS) }
func (f *FAISSIndex) Close() error                            { return nil }
