package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hivewatch/hivewatch/pkg/store"
	"github.com/hivewatch/hivewatch/pkg/types"
	"github.com/hivewatch/hivewatch/updater/internal/alerts"
	"github.com/hivewatch/hivewatch/updater/internal/simulate"
)

// Result is the outcome of one hive's write.
type Result struct {
	ID     string
	Record types.HiveRecord
	Err    error
}

// Report describes one tick. Results are in fetch order.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
}

// Err joins every per-hive write failure, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("hive %s: %w", res.ID, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Failed returns the results whose write failed.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Succeeded returns the number of hives written successfully.
func (r *Report) Succeeded() int {
	return len(r.Results) - len(r.Failed())
}

// Alerting returns the number of successfully written hives in alert.
func (r *Report) Alerting() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil && res.Record.Alert {
			n++
		}
	}
	return n
}

// Records returns the successfully written records.
func (r *Report) Records() []types.HiveRecord {
	out := make([]types.HiveRecord, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res.Record)
		}
	}
	return out
}

// Duration is the wall time the tick took.
func (r *Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Updater mutates every hive in one collection per Run.
type Updater struct {
	store      store.Store
	collection string
	sim        *simulate.Simulator
	now        func() time.Time
}

// New returns an Updater over collection in st.
func New(st store.Store, collection string, sim *simulate.Simulator) *Updater {
	return &Updater{
		store:      st,
		collection: collection,
		sim:        sim,
		now:        time.Now,
	}
}

// Run performs one tick. A failed fetch returns a nil Report and processes
// nothing. Otherwise every hive is written and the Report is returned
// together with Report.Err(). The success line is logged only when every
// write succeeded.
func (u *Updater) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: u.now()}

	docs, err := u.store.List(ctx, u.collection)
	if err != nil {
		return nil, fmt.Errorf("updater: list %q: %w", u.collection, err)
	}

	report.Results = make([]Result, len(docs))
	for i, doc := range docs {
		report.Results[i] = Result{ID: doc.ID, Record: u.next(doc)}
	}

	var wg sync.WaitGroup
	for i := range report.Results {
		wg.Add(1)
		go func(res *Result) {
			defer wg.Done()
			res.Err = u.store.Update(ctx, u.collection, res.ID, res.Record.Fields())
		}(&report.Results[i])
	}
	wg.Wait()
	report.FinishedAt = u.now()

	if err := report.Err(); err != nil {
		return report, fmt.Errorf("updater: %d of %d writes failed: %w",
			len(report.Failed()), len(report.Results), err)
	}

	slog.Info("updater: hives updated",
		"run", report.RunID,
		"collection", u.collection,
		"hives", len(report.Results),
		"alerting", report.Alerting(),
		"duration", report.Duration(),
	)
	return report, nil
}

// next derives the record to write for doc.
func (u *Updater) next(doc store.Document) types.HiveRecord {
	rec := u.sim.Next(types.PriorFromFields(doc.Fields))
	rec.ID = doc.ID
	rec.AlertReasons = alerts.Evaluate(alerts.Candidate{
		In:          rec.In,
		Out:         rec.Out,
		Total:       rec.Total,
		Temperature: rec.Temperature,
		Spectrum:    rec.Spectrum,
	})
	if rec.AlertReasons == nil {
		rec.AlertReasons = []string{}
	}
	rec.Alert = len(rec.AlertReasons) > 0
	return rec
}
