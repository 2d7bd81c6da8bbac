package flow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Errors wrapped by PathError.
var (
	ErrNotFound  = errors.New("member not found")
	ErrNotObject = errors.New("member is not an object")
)

// ParseError represents a decoding error with location info.
type ParseError struct {
	Path    string
	Offset  int64
	Message string
}

func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("%s: offset %d: %s", e.Path, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// PathError reports a missing or mistyped member along an expected path.
type PathError struct {
	Path    string // Source file
	Pointer string // JSON pointer of the member
	Err     error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Pointer, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Document is a loaded workflow definition file.
type Document struct {
	SourcePath string         // Path the document was read from
	Root       map[string]any // Decoded tree, numbers kept as json.Number
	data       []byte
}

// ParseFile reads and decodes a workflow definition file.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is the user-selected flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes workflow definition content.
func Parse(data []byte, sourcePath string) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root map[string]any
	if err := dec.Decode(&root); err != nil {
		return nil, wrapParseError(sourcePath, err)
	}
	if dec.More() {
		return nil, &ParseError{
			Path:    sourcePath,
			Offset:  dec.InputOffset(),
			Message: "unexpected data after top-level object",
		}
	}
	if root == nil {
		return nil, &ParseError{Path: sourcePath, Message: "document is not an object"}
	}

	return &Document{
		SourcePath: sourcePath,
		Root:       root,
		data:       data,
	}, nil
}

func wrapParseError(path string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ParseError{Path: path, Offset: syntaxErr.Offset, Message: syntaxErr.Error()}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ParseError{Path: path, Offset: typeErr.Offset, Message: "document is not an object"}
	}
	return &ParseError{Path: path, Message: err.Error()}
}

// Bytes returns the content the document was parsed from.
func (d *Document) Bytes() []byte {
	return d.data
}

// ActionsPath is the location of the top-level actions mapping.
var ActionsPath = []string{"properties", "definition", "actions"}

// Actions locates properties.definition.actions.
func (d *Document) Actions() (map[string]any, error) {
	return d.Lookup(ActionsPath...)
}

// Lookup walks the document through nested objects.
func (d *Document) Lookup(keys ...string) (map[string]any, error) {
	cur := d.Root
	for i, key := range keys {
		next, err := Object(cur, key)
		if err != nil {
			return nil, &PathError{
				Path:    d.SourcePath,
				Pointer: Pointer(keys[:i+1]...),
				Err:     err,
			}
		}
		cur = next
	}
	return cur, nil
}

// Object returns the member key of m, which must itself be an object.
func Object(m map[string]any, key string) (map[string]any, error) {
	v, ok := m[key]
	if !ok {
		return nil, ErrNotFound
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// Pointer builds an RFC 6901 JSON pointer from object keys.
func Pointer(keys ...string) string {
	var b strings.Builder
	for _, k := range keys {
		b.WriteByte('/')
		b.WriteString(pointerEscaper.Replace(k))
	}
	return b.String()
}

// Format re-indents JSON content with two spaces.
func Format(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes content to path, creating missing parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil { //#nosec G306 -- solution files are not secret
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
