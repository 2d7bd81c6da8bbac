// Package solution rebuilds an exported Power Platform solution archive with
// a replacement workflow definition.
package solution

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/flowpatch/pkg/logger"
)

// ErrSameArchive is returned when the source and destination are the same file.
var ErrSameArchive = errors.New("source and destination archive are the same file")

// WorkflowsDir is the archive folder holding workflow definitions.
const WorkflowsDir = "Workflows"

// Result describes a rebuilt archive.
type Result struct {
	Entries  int  // Entries written, including the replacement
	Replaced bool // False when the entry was missing and got appended
}

// EntryName returns the archive entry name of a workflow definition file.
func EntryName(flowPath string) string {
	return path.Join(WorkflowsDir, filepath.Base(flowPath))
}

// Repack copies the archive at src to dst, replacing the entry named entry
// with content. Other entries are copied without recompression.
func Repack(src, dst, entry string, content []byte) (*Result, error) {
	if same, err := sameFile(src, dst); err != nil {
		return nil, err
	} else if same {
		return nil, ErrSameArchive
	}

	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer r.Close()

	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	out, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	result, err := repack(r, out, entry, content)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return nil, err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return result, nil
}

func repack(r *zip.ReadCloser, out *os.File, entry string, content []byte) (*Result, error) {
	w := zip.NewWriter(out)
	result := &Result{}

	for _, f := range r.File {
		if f.Name == entry {
			if err := writeEntry(w, f.FileHeader, content); err != nil {
				return nil, err
			}
			logger.Info("replaced %s (%d bytes)", entry, len(content))
			result.Replaced = true
		} else if err := w.Copy(f); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
		result.Entries++
	}

	if !result.Replaced {
		logger.Warn("%s not found in archive, appending", entry)
		hdr := zip.FileHeader{Name: entry, Method: zip.Deflate, Modified: time.Now()}
		if err := writeEntry(w, hdr, content); err != nil {
			return nil, err
		}
		result.Entries++
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return result, nil
}

// writeEntry writes content under the name, method and timestamps of hdr.
func writeEntry(w *zip.Writer, hdr zip.FileHeader, content []byte) error {
	fresh := &zip.FileHeader{
		Name:     hdr.Name,
		Comment:  hdr.Comment,
		Method:   hdr.Method,
		Modified: hdr.Modified,
	}
	fresh.SetMode(0644)
	fw, err := w.CreateHeader(fresh)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", hdr.Name, err)
	}
	if _, err := fw.Write(content); err != nil {
		return fmt.Errorf("failed to write %s: %w", hdr.Name, err)
	}
	return nil
}

func sameFile(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", a, err)
	}
	bi, err := os.Stat(b)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}
