package operation

import (
	"fmt"
	"strings"

	"github.com/walteh/envmirror/pkg/config"
	"github.com/walteh/envmirror/pkg/manifest"
	"github.com/walteh/envmirror/pkg/mirror"
	"github.com/walteh/envmirror/pkg/publish"
	"github.com/walteh/envmirror/pkg/transform"
	"github.com/walteh/envmirror/pkg/verify"
)

// 📊 Summary collects what each stage of a run produced. Stages that did not
// run leave their field nil.
type Summary struct {
	Source config.Environment
	Target config.Environment

	SourceURL string
	TargetURL string

	// SourceStale is set when the source could not be refreshed and the
	// cached working copy was mirrored instead
	SourceStale error

	// SourceMissing lists required entries already absent from the source
	SourceMissing []string

	Tree      mirror.ConfigTree
	Transform *transform.Report
	Verify    *verify.Report
	Publish   *publish.Outcome
	Manifest  *manifest.Output

	// Pending lists target paths a sync would commit; set by Status
	Pending []string
}

// Rows renders the summary as stage/result table rows, header first
func (s *Summary) Rows() [][]string {
	rows := [][]string{{"stage", "result"}}

	if s.TargetURL != "" {
		rows = append(rows, []string{"resolve", s.TargetURL})
	}
	if s.SourceStale != nil {
		rows = append(rows, []string{"mirror", "cached copy, refresh failed"})
	}
	if s.Tree.Root != "" {
		res := fmt.Sprintf("%d files", s.Tree.Len())
		if len(s.Tree.Skipped) > 0 {
			res += fmt.Sprintf(", %d skipped", len(s.Tree.Skipped))
		}
		rows = append(rows, []string{"copy", res})
	}
	if s.Transform != nil {
		rows = append(rows, []string{"transform",
			fmt.Sprintf("%d modified, %d replacements", s.Transform.Modified, s.Transform.Replacements)})
	}
	if s.Verify != nil {
		res := "ok"
		switch {
		case !s.Verify.OK():
			res = "missing " + strings.Join(s.Verify.Missing, ", ")
		case !s.Verify.CountsMatch():
			res = fmt.Sprintf("ok, count mismatch %d/%d", s.Verify.SourceCount, s.Verify.TargetCount)
		}
		rows = append(rows, []string{"verify", res})
	}
	if s.Pending != nil {
		rows = append(rows, []string{"pending", fmt.Sprintf("%d paths", len(s.Pending))})
	}
	if s.Publish != nil {
		rows = append(rows, []string{"publish", publishResult(*s.Publish)})
	}
	if s.Manifest != nil {
		res := s.Manifest.Path
		if s.Manifest.Applied {
			res += " (applied)"
		}
		rows = append(rows, []string{"manifest", res})
	}
	return rows
}

func publishResult(o publish.Outcome) string {
	switch {
	case !o.Committed:
		return "nothing to commit"
	case !o.Pushed:
		return "committed " + shortSHA(o.Commit)
	default:
		return fmt.Sprintf("pushed %s (%s)", shortSHA(o.Commit), o.ConflictResolution)
	}
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
