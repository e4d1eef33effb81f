// Package identity computes content-addressed step identities.
//
// An identity is a hex digest over, in this order: the identities of required
// steps, the identity of the base step, declared environment variables, every
// tracked file (relative path, content and permission bits), the execution user
// and, for containerised steps, the initial base image name and platform.
// Every field is length-prefixed so adjacent values cannot run together.
package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/zeebo/blake3"

	ferrors "git.home.luguber.info/inful/stepbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/stepbuilder/internal/platform"
)

// Algorithm selects the digest used for identities.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// New returns a fresh hash for a. Unknown values fall back to sha256.
func (a Algorithm) New() hash.Hash {
	if a == BLAKE3 {
		return blake3.New()
	}
	return sha256.New()
}

// Valid reports whether a names a supported algorithm.
func (a Algorithm) Valid() bool {
	return a == SHA256 || a == BLAKE3
}

// Inputs are the resolved inputs of a single step.
type Inputs struct {
	// RequiredSteps maps the environment variable exposing a required step to
	// that step's identity.
	RequiredSteps map[string]string
	// BaseStep is the identity of the base environment step, empty when none.
	BaseStep string
	Env      map[string]string
	// Root is the source root; Files are slash-separated paths relative to it.
	Root  string
	Files []string
	User  string
	// BaseImage and Platform are set only for steps running in a container.
	BaseImage string
	Platform  platform.DockerPlatform
}

// Compute returns the hex identity for in.
func Compute(alg Algorithm, in Inputs) (string, error) {
	h := alg.New()
	w := fieldWriter{h: h}

	for _, k := range sortedKeys(in.RequiredSteps) {
		w.string(in.RequiredSteps[k])
	}
	if in.BaseStep != "" {
		w.string(in.BaseStep)
	}
	for _, k := range sortedKeys(in.Env) {
		w.string(k)
		w.string(in.Env[k])
	}

	files := slices.Clone(in.Files)
	slices.Sort(files)
	for _, rel := range files {
		if err := w.file(in.Root, rel); err != nil {
			return "", err
		}
	}

	w.string(in.User)
	if in.BaseImage != "" {
		w.string(in.BaseImage)
		w.string(in.Platform.Dashed())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type fieldWriter struct {
	h hash.Hash
}

func (w fieldWriter) length(n uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	_, _ = w.h.Write(buf[:])
}

func (w fieldWriter) string(s string) {
	w.length(uint64(len(s)))
	_, _ = io.WriteString(w.h, s)
}

func (w fieldWriter) file(root, rel string) error {
	path := filepath.Join(root, filepath.FromSlash(rel))
	f, err := os.Open(path)
	if err != nil {
		return ferrors.MissingInputError("open tracked file").
			WithContext("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return ferrors.FileSystemError(err, "stat tracked file").WithContext("path", path).Build()
	}

	w.string(rel)
	w.length(uint64(info.Size()))
	if _, err := io.Copy(w.h, f); err != nil {
		return ferrors.FileSystemError(err, "read tracked file").WithContext("path", path).Build()
	}
	w.string(fmt.Sprintf("%o", info.Mode().Perm()))
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
