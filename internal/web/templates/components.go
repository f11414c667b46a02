// Package templates renders the HTML fragments HTMX swaps into the
// dashboard after an import. Components are plain templ components so the
// handlers render them like generated ones.
package templates

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/JonMunkholm/courierimport/internal/core"
	"github.com/a-h/templ"
)

// maxRowErrors is how many row errors a result fragment lists.
const maxRowErrors = 10

// htmlWriter stops writing after the first error and remembers it.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) { h.raw(templ.EscapeString(s)) }

func (h *htmlWriter) rawf(format string, args ...any) { h.raw(fmt.Sprintf(format, args...)) }

// ErrorAlert is the fragment shown when a request fails.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div class="alert alert-error" role="alert"><p class="font-semibold">`)
		h.text(message)
		h.raw(`</p>`)
		if action != "" {
			h.raw(`<p class="text-sm">`)
			h.text(action)
			h.raw(`</p>`)
		}
		h.raw(`<p class="text-xs opacity-70">Code: `)
		h.text(code)
		h.raw(`</p></div>`)
		return h.err
	})
}

// ImportResult summarizes one imported file.
func ImportResult(res core.TableResult) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		writeTableResult(h, res)
		return h.err
	})
}

// BundleResult lists every file of a bundle run and the skipped entries.
func BundleResult(run core.RunResult) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<section class="bundle-result" data-run-id="`)
		h.text(run.RunID)
		h.raw(`">`)

		totals := run.Totals()
		h.rawf(`<p class="font-semibold">%d files: %d inserted, %d updated, %d skipped, %d rejected</p>`,
			len(run.Files), totals.Inserted, totals.Updated, totals.Skipped(), totals.Rejected)

		for _, res := range run.Files {
			writeTableResult(h, res)
		}

		if len(run.Skipped) > 0 {
			h.raw(`<details><summary>Skipped entries</summary><ul>`)
			for _, s := range run.Skipped {
				h.raw(`<li>`)
				h.text(s.Name)
				h.raw(`: `)
				h.text(s.Reason)
				h.raw(`</li>`)
			}
			h.raw(`</ul></details>`)
		}

		h.raw(`</section>`)
		return h.err
	})
}

// PreviewSummary shows the counts of a dry run and the column mapping.
func PreviewSummary(p *core.PreviewResponse) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		s := p.Summary
		h.raw(`<section class="preview"><h3>`)
		h.text(p.File)
		h.raw(` &rarr; `)
		h.text(p.Table)
		h.raw(`</h3>`)
		h.rawf(`<p>%d rows: %d new, %d updates, %d unchanged, %d collisions, %d rejected, %d errors</p>`,
			s.TotalRows, s.Inserts, s.Updates, s.Unchanged, s.Collisions, s.Rejected, s.ErrorRows)
		if s.WouldClear > 0 {
			h.rawf(`<p class="text-warning">%d existing records will be deleted first</p>`, s.WouldClear)
		}
		if s.DuplicateInFile > 0 {
			h.rawf(`<p class="text-warning">%d keys appear on several lines</p>`, s.DuplicateInFile)
		}

		h.raw(`<table class="mapping"><thead><tr><th>Column</th><th>Field</th></tr></thead><tbody>`)
		for _, c := range p.Mapping.Columns {
			h.raw(`<tr><td>`)
			h.text(c.Header)
			h.raw(`</td><td>`)
			if c.Field == "" {
				h.raw(`<em>`)
				h.text(c.Label)
				h.raw(`</em>`)
			} else {
				h.text(string(c.Field))
			}
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table>`)

		writeRowErrors(h, p.ErrorSamples)
		h.raw(`</section>`)
		return h.err
	})
}

func writeTableResult(h *htmlWriter, res core.TableResult) {
	class := "import-result"
	if res.Failed() {
		class += " failed"
	}
	h.raw(`<div class="`)
	h.raw(class)
	h.raw(`"><h4>`)
	h.text(res.Table)
	if res.File != "" {
		h.raw(` <small>`)
		h.text(res.File)
		h.raw(`</small>`)
	}
	h.raw(`</h4><dl>`)

	counts := map[string]int{
		"Inserted":   res.Inserted,
		"Updated":    res.Updated,
		"Unchanged":  res.Unchanged,
		"Collisions": res.Collisions,
		"Rejected":   res.Rejected,
		"Cleared":    res.Cleared,
	}
	labels := make([]string, 0, len(counts))
	for k := range counts {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	for _, k := range labels {
		h.raw(`<dt>`)
		h.raw(k)
		h.raw(`</dt><dd>`)
		h.raw(strconv.Itoa(counts[k]))
		h.raw(`</dd>`)
	}
	h.raw(`</dl>`)

	if res.Error != "" {
		h.raw(`<p class="text-error">`)
		h.text(res.Error)
		h.raw(`</p>`)
	}
	writeRowErrors(h, res.RowErrors)
	h.raw(`</div>`)
}

func writeRowErrors(h *htmlWriter, errs []core.RowError) {
	if len(errs) == 0 {
		return
	}
	h.rawf(`<details><summary>%d rows skipped</summary><ul>`, len(errs))
	for i, re := range errs {
		if i == maxRowErrors {
			h.rawf(`<li>and %d more</li>`, len(errs)-maxRowErrors)
			break
		}
		h.rawf(`<li>line %d: `, re.Line)
		h.text(re.Reason)
		h.raw(`</li>`)
	}
	h.raw(`</ul></details>`)
}
