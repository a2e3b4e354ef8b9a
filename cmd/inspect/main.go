package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/omtobe/go-controller/internal/cycle"
	"github.com/danielpatrickdp/omtobe/go-controller/internal/state"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to omtobe.db")
	userID := flag.String("user", "", "show single user detail")
	last := flag.Int("last", 20, "show N most recent log entries")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/omtobe.db [--user id] [--last N] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *userID != "" {
		if err := runDetailMode(store, *userID, *last, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := runListMode(store, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	UserID     string `json:"user_id"`
	Timezone   string `json:"timezone"`
	CycleStart string `json:"cycle_start"`
	Day        int    `json:"day"`
	Phase      string `json:"phase"`
	Cooling    bool   `json:"cooling_active"`
	Locked     bool   `json:"decision_locked"`
}

func runListMode(store *state.Store, jsonOut bool) error {
	users, err := store.ListUsers()
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(os.Stderr, "no users found")
		return nil
	}

	machine := cycle.NewMachine(cycle.DefaultConfig())
	now := time.Now().UTC()

	rows := make([]listRow, len(users))
	for i, u := range users {
		st, err := store.GetCycleState(u.ID)
		if err != nil {
			return err
		}
		day := machine.DayOf(st, now)
		rows[i] = listRow{
			UserID:     u.ID,
			Timezone:   u.Timezone,
			CycleStart: st.CycleStart.Format(time.RFC3339),
			Day:        day,
			Phase:      string(cycle.PhaseOf(day)),
			Cooling:    st.CoolingActive,
			Locked:     st.LockedEventID != "",
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-16s  %-20s  %-20s  %3s  %-12s  %-7s  %s\n",
		"User", "Timezone", "Cycle Start", "Day", "Phase", "Cooling", "Locked")
	for _, r := range rows {
		fmt.Printf("%-16s  %-20s  %-20s  %3d  %-12s  %-7v  %v\n",
			r.UserID, r.Timezone, r.CycleStart, r.Day, r.Phase, r.Cooling, r.Locked)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	UserID      string             `json:"user_id"`
	Timezone    string             `json:"timezone"`
	CycleStart  string             `json:"cycle_start"`
	Day         int                `json:"day"`
	Phase       string             `json:"phase"`
	Cooling     bool               `json:"cooling_active"`
	CoolingEnds string             `json:"cooling_ends,omitempty"`
	Locked      string             `json:"locked_event_id,omitempty"`
	Decisions   []decisionOutput   `json:"decisions"`
	Reflections []reflectionOutput `json:"reflections"`
}

type decisionOutput struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"decision_type"`
	Day       int    `json:"day"`
}

type reflectionOutput struct {
	Timestamp  string `json:"timestamp"`
	Response   string `json:"response"`
	CycleStart string `json:"cycle_start"`
}

func runDetailMode(store *state.Store, userID string, last int, jsonOut bool) error {
	user, err := store.GetUser(userID)
	if err != nil {
		return err
	}
	st, err := store.GetCycleState(userID)
	if err != nil {
		return err
	}
	decisions, err := store.ListDecisions(userID, last)
	if err != nil {
		return err
	}
	reflections, err := store.ListReflections(userID, last)
	if err != nil {
		return err
	}

	machine := cycle.NewMachine(cycle.DefaultConfig())
	now := time.Now().UTC()
	day := machine.DayOf(st, now)

	out := detailOutput{
		UserID:     user.ID,
		Timezone:   user.Timezone,
		CycleStart: st.CycleStart.Format(time.RFC3339),
		Day:        day,
		Phase:      string(cycle.PhaseOf(day)),
		Cooling:    st.CoolingActive,
		Locked:     st.LockedEventID,
	}
	if st.CoolingActive {
		out.CoolingEnds = st.CoolingStart.Add(machine.Config().CoolingPeriod).Format(time.RFC3339)
	}
	for _, d := range decisions {
		out.Decisions = append(out.Decisions, decisionOutput{
			Timestamp: d.Timestamp.Format(time.RFC3339),
			Type:      string(d.Type),
			Day:       d.Day,
		})
	}
	for _, r := range reflections {
		out.Reflections = append(out.Reflections, reflectionOutput{
			Timestamp:  r.Timestamp.Format(time.RFC3339),
			Response:   string(r.Response),
			CycleStart: r.CycleStart.Format(time.RFC3339),
		})
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("User:        %s\n", out.UserID)
	fmt.Printf("Timezone:    %s\n", out.Timezone)
	fmt.Printf("Cycle Start: %s\n", out.CycleStart)
	fmt.Printf("Day:         %d (%s)\n", out.Day, out.Phase)
	fmt.Printf("Cooling:     %v", out.Cooling)
	if out.CoolingEnds != "" {
		fmt.Printf(" (until %s)", out.CoolingEnds)
	}
	fmt.Println()
	if out.Locked != "" {
		fmt.Printf("Locked:      %s\n", out.Locked)
	}

	fmt.Printf("\nDecisions (%d):\n", len(out.Decisions))
	for _, d := range out.Decisions {
		fmt.Printf("  %-22s  day %d  %s\n", d.Timestamp, d.Day, d.Type)
	}

	fmt.Printf("\nReflections (%d):\n", len(out.Reflections))
	for _, r := range out.Reflections {
		fmt.Printf("  %-22s  %-5s  cycle %s\n", r.Timestamp, r.Response, r.CycleStart)
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output
