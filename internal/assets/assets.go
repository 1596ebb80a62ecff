package assets

import (
	_ "embed"
)

//go:embed bootci.yaml
var exampleConfig []byte

// ExampleConfig returns the starter pipeline definition written by
// `bootci init`. It reproduces the django-bootstrap py2/py3 matrix.
func ExampleConfig() []byte {
	out := make([]byte, len(exampleConfig))
	copy(out, exampleConfig)
	return out
}
