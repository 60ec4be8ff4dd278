package transform

import (
	"strconv"
	"strings"

	"github.com/walteh/envmirror/pkg/status"
)

// 📄 FileResult is what the transform did to one file
type FileResult struct {
	Path         string
	Status       status.FileStatus
	RuleSets     []string // rule set names selected for the file
	Applied      []string // rule names that changed the content
	Replacements int
	Checksum     string
	Diff         string // set only with ShowDiff
}

// 📊 Report summarizes one ProcessTree call
type Report struct {
	Root         string
	Files        []FileResult
	Warnings     []string
	DatabaseMode string

	Modified     int
	Replacements int
}

func (r *Report) tally() {
	r.Modified, r.Replacements = 0, 0
	for _, f := range r.Files {
		if f.Status == status.StatusModified {
			r.Modified++
		}
		r.Replacements += f.Replacements
	}
}

// File returns the result for rel
func (r *Report) File(rel string) (FileResult, bool) {
	for _, f := range r.Files {
		if f.Path == rel {
			return f, true
		}
	}
	return FileResult{}, false
}

// Rows renders the report as table rows, header first
func (r *Report) Rows() [][]string {
	rows := [][]string{{"file", "status", "rule sets", "replacements"}}
	for _, f := range r.Files {
		rows = append(rows, []string{f.Path, f.Status.String(), strings.Join(f.RuleSets, ","), strconv.Itoa(f.Replacements)})
	}
	return rows
}
