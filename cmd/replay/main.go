package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	jsonOut := flag.Bool("json", false, "output results as JSON instead of table")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--json]")
		os.Exit(2)
	}

	os.Exit(runFixture(*fixturePath, *jsonOut))
}

// #endregion main

// #region fixture-mode

func runFixture(path string, jsonOut bool) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	startState := f.StartState.ToState()
	config := f.Config.ToConfig()

	steps := make([]replay.Step, len(f.Steps))
	for i := range f.Steps {
		steps[i] = f.Steps[i].ToStep()
	}

	results := replay.Replay(startState, steps, config)
	final := replay.FinalState(startState, steps, config)
	summary := replay.Summarize(results, final)

	if jsonOut {
		return printJSON(results, summary)
	}

	expected := make(map[string]string, len(f.ExpectedResults))
	for _, e := range f.ExpectedResults {
		expected[e.StepID] = e.Action
	}
	return printComparison(results, expected, summary)
}

// #endregion fixture-mode

// #region output

// printComparison outputs a step-by-step comparison table and returns the
// exit code: 0 when every step matches its expectation, 1 on divergence.
func printComparison(results []replay.Result, expected map[string]string, summary replay.Summary) int {
	fmt.Printf("%-28s| %-4s| %-24s| %-24s| %s\n", "Step", "Day", "Expected", "Replayed", "Match")
	fmt.Printf("%-28s+%-5s+%-25s+%-25s+%s\n",
		"----------------------------", "-----", "-------------------------", "-------------------------", "------")

	matches, compared := 0, 0
	for _, r := range results {
		exp, ok := expected[r.StepID]
		if !ok {
			fmt.Printf("%-28s| %-4d| %-24s| %-24s| %s\n", r.StepID, r.Day, "—", r.Action, "SKIP")
			continue
		}
		compared++
		match := "DIFF"
		if exp == r.Action {
			match = "OK"
			matches++
		}
		fmt.Printf("%-28s| %-4d| %-24s| %-24s| %s\n", r.StepID, r.Day, exp, r.Action, match)
	}

	diverge := compared - matches
	fmt.Printf("\nSummary: %d steps, %d displays, %d suppressions, %d cooling, %d locks, %d reflections, %d rejections\n",
		summary.TotalSteps, summary.Displays, summary.Suppressions,
		summary.CoolingPeriods, summary.ProceedLocks, summary.Reflections, summary.Rejections)
	fmt.Printf("Expectations: %d compared, %d match, %d diverge\n", compared, matches, diverge)

	if diverge > 0 {
		return 1
	}
	return 0
}

func printJSON(results []replay.Result, summary replay.Summary) int {
	out := struct {
		Results []replay.Result `json:"results"`
		Summary replay.Summary  `json:"summary"`
	}{results, summary}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal json: %v\n", err)
		return 2
	}
	fmt.Println(string(data))
	return 0
}

// #endregion output
