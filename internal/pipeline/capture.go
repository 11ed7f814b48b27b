package pipeline

import (
	"errors"
	"path"
	"slices"
	"unicode/utf8"

	"github.com/nao1215/siteharvest/internal/canon"
	"github.com/nao1215/siteharvest/internal/capture"
	"github.com/nao1215/siteharvest/internal/crawler"
	"github.com/nao1215/siteharvest/internal/manifest"
	"github.com/nao1215/siteharvest/internal/model"
)

// ErrNoScope is returned when the captures yield neither a seed route nor
// a primary host, so the crawl would have no defined scope.
var ErrNoScope = errors.New("no seed routes and no primary host could be derived from the captures")

// CaptureResult holds the records derived from the capture files.
type CaptureResult struct {
	Summaries    []model.CaptureSummary
	Observations []model.Observation
	Bodies       []model.BodyRecord
	Missing      []model.MissingBody
	Texts        []model.TextRecord

	// Seeds are the canonical seed routes, sorted.
	Seeds []string

	// PrimaryHosts are the lowercased in-scope hosts, sorted.
	PrimaryHosts []string

	// Skipped is the number of malformed entries across all files.
	Skipped int
}

// DecodeCaptures derives body, missing-body, text and observation records,
// the seed routes and the primary host set from decoded capture files.
//
// Primary hosts are the hosts of page titles that are HTTP(S) URLs, across
// all files. Seeds are those titles plus every HTML entry on a primary
// host. When no title names a host, every HTML entry is a seed and the
// host of the first sorted seed becomes the only primary host.
//
// DecodeCaptures returns ErrNoScope when neither seeds nor primary hosts
// can be derived. The other records are valid in that case too.
func DecodeCaptures(files []*capture.File) (*CaptureResult, error) {
	res := &CaptureResult{
		Summaries:    make([]model.CaptureSummary, 0, len(files)),
		Observations: make([]model.Observation, 0),
		Bodies:       make([]model.BodyRecord, 0),
		Missing:      make([]model.MissingBody, 0),
		Texts:        make([]model.TextRecord, 0),
	}

	hosts := make(map[string]bool)
	seeds := make(map[string]bool)
	for _, f := range files {
		pageURLs := f.PageURLs()
		for _, title := range pageURLs {
			if normalized, err := canon.NormalizeString(title); err == nil {
				seeds[normalized] = true
				hosts[canon.Host(normalized)] = true
			}
		}
		slices.Sort(pageURLs)
		res.Summaries = append(res.Summaries, model.CaptureSummary{
			HARFile:  f.Name,
			Entries:  f.EntryCount(),
			Pages:    f.PageCount(),
			PageURLs: pageURLs,
		})
		res.Skipped += f.Skipped()
	}

	titledHosts := len(hosts) > 0
	var htmlEntries []capture.Entry
	for _, f := range files {
		for entry := range f.Entries() {
			res.Observations = append(res.Observations, model.Observation{
				URL:    entry.URL,
				Status: entry.Status,
				MIME:   entry.MIME,
			})

			if entry.IsHTML() && (!titledHosts || hosts[entry.Host()]) {
				if normalized, err := canon.NormalizeString(entry.URL); err == nil {
					seeds[normalized] = true
				}
			}

			if !entry.HasBody {
				res.Missing = append(res.Missing, model.MissingBody{
					HARFile: f.Name,
					URL:     entry.URL,
					Status:  entry.Status,
					MIME:    entry.MIME,
				})
				continue
			}

			file, ok := bodyFile(entry)
			if !ok {
				res.Missing = append(res.Missing, model.MissingBody{
					HARFile: f.Name,
					URL:     entry.URL,
					Status:  entry.Status,
					MIME:    entry.MIME,
				})
				continue
			}
			res.Bodies = append(res.Bodies, model.BodyRecord{
				HARFile:   f.Name,
				URL:       entry.URL,
				Status:    entry.Status,
				MIME:      entry.MIME,
				SizeBytes: len(entry.Body),
				File:      file,
				Payload:   entry.Body,
			})

			if entry.IsHTML() {
				htmlEntries = append(htmlEntries, entry)
			}
		}
	}

	res.Seeds = sortedSet(seeds)
	if !titledHosts && len(res.Seeds) > 0 {
		hosts[canon.Host(res.Seeds[0])] = true
	}
	res.PrimaryHosts = sortedSet(hosts)

	for _, entry := range htmlEntries {
		if !hosts[entry.Host()] {
			continue
		}
		if text, ok := textRecord(entry); ok {
			res.Texts = append(res.Texts, text)
		}
	}

	if len(res.Seeds) == 0 && len(res.PrimaryHosts) == 0 {
		return res, ErrNoScope
	}
	return res, nil
}

// bodyFile returns the export-relative path of an entry body.
func bodyFile(entry capture.Entry) (string, bool) {
	u, err := canon.Parse(entry.URL)
	if err != nil {
		return "", false
	}
	ext := canon.ExtensionForMIME(entry.MIME)
	if ext == "" && entry.MIME == "" {
		ext = canon.SniffExtension(entry.Body)
	}
	return path.Join(manifest.HARBodiesDir, canon.StoragePath(u, ext)), true
}

// textRecord extracts the visible text of an HTML entry body.
func textRecord(entry capture.Entry) (model.TextRecord, bool) {
	u, err := canon.Parse(entry.URL)
	if err != nil {
		return model.TextRecord{}, false
	}
	parsed, _ := crawler.Extract(entry.URL, entry.Body) //nolint:errcheck // partial results are kept
	return model.TextRecord{
		URL:       entry.URL,
		TextFile:  path.Join(manifest.HARPagesDir, canon.StoragePath(u, ".txt")),
		TextChars: utf8.RuneCountInString(parsed.Text),
		Text:      parsed.Text,
	}, true
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		if k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
