//go:build !cgo
// +build !cgo

package embedding

import (
	"errors"
)

func newONNX(_ string, _, _ int) (Embedder, error) {
	return nil, errors.New("onnx embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}
