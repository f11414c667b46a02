package core

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/JonMunkholm/courierimport/internal/logging"
)

// maxEntrySize caps the decompressed size of one bundle entry.
var maxEntrySize int64 = 100 * 1024 * 1024

// ImportBundle imports every recognized file of a zip archive. Each entry
// is routed to a table by its base name and parsed by its extension;
// unrecognized entries are skipped with a warning. A failed file does not
// stop the others. Entries are processed in name order.
func (im *Importer) ImportBundle(ctx context.Context, archive []byte) (RunResult, error) {
	run := RunResult{RunID: logging.RunID(ctx), Tables: make(map[string]TableResult)}

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return run, &StructuralError{Err: ErrMalformedRecords, Detail: fmt.Sprintf("open bundle: %v", err)}
	}

	entries := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, f)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	log := logging.FromContext(ctx)
	for _, f := range entries {
		name := f.Name
		skip := func(reason string) {
			log.Warn("bundle entry skipped", "entry", name, "reason", reason)
			run.Skipped = append(run.Skipped, SkippedEntry{Name: name, Reason: reason})
		}

		if hiddenEntry(name) {
			continue
		}
		if FormatForName(name) == FormatUnknown {
			skip("unsupported format")
			continue
		}
		def, ok := Resolve(name)
		if !ok {
			skip("no table for file name")
			continue
		}

		data, err := readEntry(f)
		if err != nil {
			res := TableResult{Table: def.Info.Key, File: name, Error: err.Error(), err: err}
			log.Error("bundle entry unreadable", "entry", name, "error", err)
			run.add(res)
			continue
		}

		run.add(im.ImportFile(ctx, def, RawFile{Name: path.Base(name), Data: data}))
	}

	return run, nil
}

func (r *RunResult) add(res TableResult) {
	r.Files = append(r.Files, res)
	agg := r.Tables[res.Table]
	agg.Table = res.Table
	agg.merge(res)
	r.Tables[res.Table] = agg
}

// hiddenEntry matches archive metadata such as __MACOSX/ and dotfiles.
func hiddenEntry(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	return strings.HasPrefix(path.Base(name), ".")
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if int64(len(data)) > maxEntrySize {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrFileTooLarge)
	}
	return data, nil
}
