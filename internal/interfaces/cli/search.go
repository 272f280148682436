package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagerock/ai-law-research/pkg/client"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

type searchOptions struct {
	mode         string
	jurisdiction string
	courts       []string
	from, to     string
	limit        int
	weights      string
}

func NewSearchCmd() *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Hybrid case search fusing keyword, semantic and authority rankings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			req, err := opts.request(strings.Join(args, " "))
			if err != nil {
				return err
			}
			resp, err := cc.Client.Search().Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			return render(cmd, resp, func(w io.Writer) { writeSearch(w, resp) })
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.mode, "mode", client.ModeHybrid, "hybrid, keyword or semantic")
	f.StringVar(&opts.jurisdiction, "jurisdiction", "", "restrict to a jurisdiction")
	f.StringSliceVar(&opts.courts, "court", nil, "restrict to court ids (repeatable)")
	f.StringVar(&opts.from, "from", "", "earliest decision date (YYYY-MM-DD)")
	f.StringVar(&opts.to, "to", "", "latest decision date (YYYY-MM-DD)")
	f.IntVar(&opts.limit, "limit", 0, "maximum results (server default when 0)")
	f.StringVar(&opts.weights, "weights", "", "override fusion weights, e.g. lexical=1,semantic=0.5,authority=1")
	return cmd
}

func (o *searchOptions) request(query string) (client.SearchRequest, error) {
	req := client.SearchRequest{
		Query: query,
		Mode:  o.mode,
		Limit: o.limit,
		Filter: client.SearchFilter{
			Jurisdiction: o.jurisdiction,
			CourtIDs:     o.courts,
		},
	}
	var err error
	if req.Filter.DateRange.From, err = parseDate("from", o.from); err != nil {
		return req, err
	}
	if req.Filter.DateRange.To, err = parseDate("to", o.to); err != nil {
		return req, err
	}
	if o.weights != "" {
		w, err := parseWeights(o.weights)
		if err != nil {
			return req, err
		}
		req.Weights = w
	}
	return req, nil
}

func parseDate(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, errors.InvalidParam("--" + flag + " must be YYYY-MM-DD").WithDetail(s)
	}
	return &t, nil
}

// parseWeights reads "name=value" pairs. Names left out weigh zero.
func parseWeights(s string) (*client.Weights, error) {
	w := &client.Weights{}
	for _, part := range strings.Split(s, ",") {
		name, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, errors.InvalidParam("weights must be name=value pairs").WithDetail(part)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || f < 0 {
			return nil, errors.New(errors.ErrCodeInvalidWeights, "weights must be non-negative numbers").WithDetail(part)
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "lexical":
			w.Lexical = f
		case "semantic":
			w.Semantic = f
		case "authority":
			w.Authority = f
		default:
			return nil, errors.InvalidParam("unknown weight").WithDetail(name)
		}
	}
	return w, nil
}

func writeSearch(w io.Writer, resp *client.SearchResponse) {
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No matching cases.")
		return
	}
	t := newTable(w, "#", "Case", "Court", "Date", "Citation", "Badge", "Score")
	for i, r := range resp.Results {
		t.Append([]string{
			strconv.Itoa(i + 1),
			truncate(orDash(r.Title), 45),
			truncate(r.CourtName, 25),
			formatDate(r.DecisionDate),
			r.Citation,
			colorBadge(r.Badge),
			strconv.FormatFloat(r.FusedScore, 'f', 4, 64),
		})
	}
	t.Render()

	var notes []string
	notes = append(notes, "sources: "+strings.Join(resp.Sources, ", "))
	if resp.Degraded {
		notes = append(notes, "degraded")
	}
	if resp.Partial {
		notes = append(notes, "partial (deadline)")
	}
	if resp.Cached {
		notes = append(notes, "cached")
	}
	fmt.Fprintln(w, "\n"+strings.Join(notes, "; "))
}

//Personal.AI order the ending
