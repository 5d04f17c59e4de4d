package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpm/rpm/internal/domain/patient"
	"github.com/rpm/rpm/internal/simulator"
)

type simulateOptions struct {
	baseURL       string
	username      string
	password      string
	patientsFile  string
	patientIDs    []string
	scenario      string
	event         string
	eventStart    int
	eventDuration int
	minutes       int
	interval      time.Duration
	seed          int64
}

func simulateCmd() *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Post synthetic vitals to a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "base-url", "http://localhost:8000", "Server base URL")
	f.StringVar(&opts.username, "username", "simulator", "Account used to post measurements")
	f.StringVar(&opts.password, "password", "simulator123", "Account password")
	f.StringVar(&opts.patientsFile, "patients-file", "data/patients.yaml", "YAML file with patient baselines")
	f.StringSliceVar(&opts.patientIDs, "patient", nil, "Patient ids to simulate (default: every patient in the file)")
	f.StringVar(&opts.scenario, "scenario", "stable", "Scenario: "+strings.Join(simulator.ScenarioNames(), ", "))
	f.StringVar(&opts.event, "event", "", "Custom acute event, e.g. heart_rate=1.4,spo2=0.88")
	f.IntVar(&opts.eventStart, "event-start", 30, "Minute the custom event starts")
	f.IntVar(&opts.eventDuration, "event-duration", 15, "Length of the custom event in minutes")
	f.IntVar(&opts.minutes, "minutes", 60, "Simulated minutes to post")
	f.DurationVar(&opts.interval, "interval", time.Second, "Wall-clock pause between simulated minutes")
	f.Int64Var(&opts.seed, "seed", 42, "Random seed")
	return cmd
}

func runSimulation(ctx context.Context, opts simulateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))

	sc, err := buildScenario(opts)
	if err != nil {
		return err
	}
	all, err := patient.LoadSeedFile(opts.patientsFile)
	if err != nil {
		return err
	}
	patients, err := selectPatients(all, opts.patientIDs)
	if err != nil {
		return err
	}

	client := simulator.NewClient(opts.baseURL, 10*time.Second)
	if err := client.Login(ctx, opts.username, opts.password); err != nil {
		return err
	}

	logger.Info().
		Str("scenario", sc.Name).
		Int("patients", len(patients)).
		Int("minutes", opts.minutes).
		Msg("starting simulation")

	total, err := simulator.NewRunner(client, logger).Run(ctx, patients, simulator.RunConfig{
		Scenario:        sc,
		DurationMinutes: opts.minutes,
		Interval:        opts.interval,
		Seed:            opts.seed,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Posted %d measurement(s), %d alert(s) generated.\n", total.Ingested, total.AlertsGenerated)
	return nil
}

func buildScenario(opts simulateOptions) (simulator.Scenario, error) {
	sc, err := simulator.LookupScenario(opts.scenario)
	if err != nil {
		return sc, err
	}
	if opts.event == "" {
		return sc, nil
	}
	return sc.WithEvent(opts.event, opts.eventStart, opts.eventDuration)
}

// selectPatients keeps file order. An empty ids list selects everyone.
func selectPatients(all []patient.Patient, ids []string) ([]patient.Patient, error) {
	if len(ids) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []patient.Patient
	for _, p := range all {
		if want[p.ID] {
			out = append(out, p)
			delete(want, p.ID)
		}
	}
	for id := range want {
		return nil, fmt.Errorf("patient %s is not in the seed file", id)
	}
	return out, nil
}
