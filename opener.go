package wsi

import (
	"io"
	"os"
)

// File is a byte-addressable read-only stream yielded by an Opener.
type File interface {
	io.ReaderAt
	io.Closer
}

// Opener is the single seam through which backends reach the filesystem,
// so that file errors surface uniformly and tests can substitute counting
// or fault-injecting implementations.
type Opener interface {
	Open(name string) (File, error)
}

// osOpener opens files directly from the local filesystem.
type osOpener struct{}

func (osOpener) Open(name string) (File, error) {
	return os.Open(name)
}

// DefaultOpener reads from the local filesystem via os.Open.
var DefaultOpener Opener = osOpener{}
