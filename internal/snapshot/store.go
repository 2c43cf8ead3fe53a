// Package snapshot provides structured persistence and retrieval of
// snapshot files. A snapshot is a text body preceded by a YAML metadata
// header describing where it came from.
package snapshot

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"
)

// Extension is the file extension of an accepted snapshot. A pending
// snapshot awaiting review carries PendingSuffix after it.
const (
	Extension     = ".snap"
	PendingSuffix = ".new"
)

// Store persists and retrieves snapshots by file path.
type Store interface {
	Save(path string, snap *Snapshot) error
	Load(path string) (*Snapshot, error)
	Delete(path string) error
}

// Stater is implemented by stores whose files other processes may rewrite.
// LRUStore uses it to notice a file changed behind its back.
type Stater interface {
	Stat(path string) (fs.FileInfo, error)
}

// Snapshot holds one recorded snapshot.
type Snapshot struct {
	Meta Meta
	Body string
}

// Meta is the YAML header of a snapshot file. Only Body takes part in
// comparisons.
type Meta struct {
	Source     string `yaml:"source,omitempty"`     // test that produced it
	Expression string `yaml:"expression,omitempty"` // human-readable invocation
	Info       any    `yaml:"info,omitempty"`       // invocation descriptor
}

const delim = "---"

// Encode renders s in the .snap file format:
//
//	---
//	source: TestEcho
//	info:
//	  program: echo
//	---
//	<body>
func Encode(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s.Meta); err != nil {
		return nil, fmt.Errorf("encoding snapshot metadata: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding snapshot metadata: %w", err)
	}
	buf.WriteString(delim + "\n")
	buf.WriteString(s.Body)
	if !strings.HasSuffix(s.Body, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Decode parses a .snap file. A file without a metadata header is read as
// a bare body.
func Decode(data []byte) (*Snapshot, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	rest, ok := strings.CutPrefix(text, delim+"\n")
	if !ok {
		return &Snapshot{Body: Normalize(text)}, nil
	}

	var header, body string
	if b, found := strings.CutPrefix(rest, delim+"\n"); found {
		body = b
	} else if h, b, found := strings.Cut(rest, "\n"+delim+"\n"); found {
		header, body = h, b
	} else if h, found := strings.CutSuffix(rest, "\n"+delim); found {
		header = h
	} else {
		return nil, fmt.Errorf("unterminated snapshot header")
	}

	s := &Snapshot{Body: Normalize(body)}
	if strings.TrimSpace(header) != "" {
		if err := yaml.Unmarshal([]byte(header), &s.Meta); err != nil {
			return nil, fmt.Errorf("decoding snapshot metadata: %w", err)
		}
	}
	return s, nil
}

// Normalize converts line endings to LF and trims trailing whitespace at
// the end of the document.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimRight(s, " \t\n")
}

// PendingPath returns the path of the pending snapshot for path.
func PendingPath(path string) string {
	return path + PendingSuffix
}

// TargetPath returns the accepted snapshot path for a pending path, and
// false when pending is not a pending snapshot path.
func TargetPath(pending string) (string, bool) {
	target, ok := strings.CutSuffix(pending, PendingSuffix)
	if !ok || !strings.HasSuffix(target, Extension) {
		return "", false
	}
	return target, true
}
