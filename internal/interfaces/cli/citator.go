package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sagerock/ai-law-research/pkg/client"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// ErrProblemsFound is returned by briefcheck --strict when any citation is
// negative, cautionary, unresolved or ambiguous.
var ErrProblemsFound = errors.New(errors.ErrCodeConflict, "brief has problematic citations")

func NewBadgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "badge CASE_ID",
		Short: "Show the treatment badge of a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			b, err := cc.Client.Citations().Badge(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd, b, func(w io.Writer) {
				fmt.Fprintf(w, "%s  %s\n", b.CaseID, colorBadge(b.Badge))
			})
		},
	}
}

func NewTreatmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "treatments CASE_ID",
		Short: "List how later cases treated a case, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			tr, err := cc.Client.Citations().Treatments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd, tr, func(w io.Writer) {
				if len(tr.Treatments) == 0 {
					fmt.Fprintf(w, "No citing cases for %s.\n", tr.CaseID)
					return
				}
				writeTreatments(w, tr.Treatments)
			})
		},
	}
}

func writeTreatments(w io.Writer, treatments []client.Treatment) {
	t := newTable(w, "Date", "Citing case", "Signal", "Conf", "Snippet")
	for _, tr := range treatments {
		t.Append([]string{
			formatDate(tr.CitingCase.DecisionDate),
			truncate(caseLabel(tr.CitingCase), 40),
			colorSignal(tr.Signal),
			strconv.FormatFloat(tr.Confidence, 'f', 2, 64),
			truncate(tr.Snippet, 60),
		})
	}
	t.Render()
}

func caseLabel(c client.CaseSummary) string {
	if c.Title == "" {
		return c.ID
	}
	return c.Title
}

func NewCitatorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "citator CASE_ID",
		Short: "Show the badge with the latest negative and positive treatments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			sum, err := cc.Client.Citations().Citator(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd, sum, func(w io.Writer) {
				fmt.Fprintf(w, "%s  %s\n", color.New(color.Bold).Sprint(caseLabel(sum.Case)), colorBadge(sum.Badge))
				fmt.Fprintf(w, "cited by %d: %d negative, %d caution, %d positive\n",
					sum.CitingCount, sum.NegativeCount, sum.CautionCount, sum.PositiveCount)
				if len(sum.NegativeTreatments) > 0 {
					fmt.Fprintln(w, "\nNegative treatment")
					writeTreatments(w, sum.NegativeTreatments)
				}
				if len(sum.PositiveTreatments) > 0 {
					fmt.Fprintln(w, "\nPositive treatment")
					writeTreatments(w, sum.PositiveTreatments)
				}
			})
		},
	}
}

func NewCitationsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "citations CASE_ID",
		Short: "List the cases citing and cited by a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			panel, err := cc.Client.Citations().Citations(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return render(cmd, panel, func(w io.Writer) {
				fmt.Fprintf(w, "Cited by (%d)\n", panel.CitingCount)
				writeEdgeViews(w, panel.CitingCases)
				fmt.Fprintf(w, "\nCites (%d)\n", panel.CitedCount)
				writeEdgeViews(w, panel.CitedCases)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "rows per list")
	return cmd
}

func writeEdgeViews(w io.Writer, views []client.EdgeView) {
	t := newTable(w, "Date", "Case", "Signal", "Para")
	for _, v := range views {
		label := caseLabel(v.Neighbor)
		if v.Dangling {
			label += " (removed)"
		}
		t.Append([]string{formatDate(v.Neighbor.DecisionDate), truncate(label, 50), colorSignal(v.Signal), strconv.Itoa(v.Paragraph)})
	}
	t.Render()
}

func NewResolveCmd() *cobra.Command {
	var file, sourceID string
	cmd := &cobra.Command{
		Use:   "resolve [TEXT...]",
		Short: "Extract and resolve the citations in a passage without storing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			text, err := readText(cmd, args, file)
			if err != nil {
				return err
			}
			res, err := cc.Client.Citations().Resolve(cmd.Context(), text, sourceID)
			if err != nil {
				return err
			}
			return render(cmd, res, func(w io.Writer) {
				t := newTable(w, "Citation", "Kind", "Status", "Case", "Signal", "Conf")
				for _, c := range res.Citations {
					t.Append([]string{
						truncate(c.Raw, 40), c.Kind, resolutionStatus(c.Status), c.CaseID,
						colorSignal(c.Signal), strconv.FormatFloat(c.Confidence, 'f', 2, 64),
					})
				}
				t.Render()
				if len(res.Edges) > 0 {
					fmt.Fprintln(w, "\nEdges")
					et := newTable(w, "Source", "Target", "Signal", "Para")
					for _, e := range res.Edges {
						et.Append([]string{orDash(e.SourceID), e.TargetID, colorSignal(e.Signal), strconv.Itoa(e.Paragraph)})
					}
					et.Render()
				}
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read text from a file, or - for stdin")
	cmd.Flags().StringVar(&sourceID, "source-id", "", "case id of the citing document")
	return cmd
}

func resolutionStatus(s string) string {
	switch s {
	case "resolved":
		return color.GreenString(s)
	case "ambiguous":
		return color.YellowString(s)
	case "unresolved":
		return color.RedString(s)
	default:
		return s
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func NewBriefCheckCmd() *cobra.Command {
	var file string
	var strict bool
	cmd := &cobra.Command{
		Use:   "briefcheck [TEXT...]",
		Short: "Check every citation in a brief for negative treatment or resolution problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			text, err := readText(cmd, args, file)
			if err != nil {
				return err
			}
			report, err := cc.Client.Citations().BriefCheck(cmd.Context(), text)
			if err != nil {
				return err
			}
			err = render(cmd, report, func(w io.Writer) {
				t := newTable(w, "Citation", "Case", "Badge", "Problem")
				for _, c := range report.Citations {
					t.Append([]string{truncate(c.Citation, 30), truncate(orDash(c.Title), 40), colorBadge(c.Badge), c.Problem})
				}
				t.Render()
				summary := fmt.Sprintf("%d citations, %d need attention", report.Total, len(report.Problematic))
				if len(report.Problematic) > 0 {
					summary = color.YellowString(summary)
				}
				fmt.Fprintln(w, "\n"+summary)
			})
			if err != nil {
				return err
			}
			if strict && len(report.Problematic) > 0 {
				return ErrProblemsFound
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the brief from a file, or - for stdin")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any citation needs attention")
	return cmd
}

//Personal.AI order the ending
