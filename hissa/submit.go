package hissa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

type Region int

const (
	Mumbai      Region = 1
	OutOfMumbai Region = 2
)

func (r Region) Valid() bool { return r == Mumbai || r == OutOfMumbai }

func (r Region) String() string {
	switch r {
	case Mumbai:
		return "Mumbai"
	case OutOfMumbai:
		return "Out of Mumbai"
	}
	return fmt.Sprintf("Region(%d)", int(r))
}

// RegionsInchargeOf restricts which regions a collector may submit for.
type RegionsInchargeOf int

const (
	BothRegions     RegionsInchargeOf = 0
	MumbaiOnly      RegionsInchargeOf = 1
	OutOfMumbaiOnly RegionsInchargeOf = 2
)

func (r RegionsInchargeOf) Valid() bool { return r >= BothRegions && r <= OutOfMumbaiOnly }

// DefaultRegion is the region preselected for a collector.
func (r RegionsInchargeOf) DefaultRegion() Region {
	if r == MumbaiOnly {
		return Mumbai
	}
	return OutOfMumbai
}

// RegionAllowed reports whether a collector in charge of r may submit region.
func RegionAllowed(r RegionsInchargeOf, region Region) bool {
	switch r {
	case BothRegions:
		return region.Valid()
	case MumbaiOnly:
		return region == Mumbai
	case OutOfMumbaiOnly:
		return region == OutOfMumbai
	}
	return false
}

// Submitter describes the collector submitting the shares.
type Submitter struct {
	Name         string
	AreaName     string
	AreaIncharge string
	ZoneName     string
	ZoneIncharge string
	InchargeOf   RegionsInchargeOf
}

type Submission struct {
	// ID identifies the slot set across retries. Empty means a new ID is
	// generated and retries will not be deduplicated.
	ID        string
	Receipt   string
	Mobile    string
	Region    Region
	Submitter Submitter
}

// Record is one hissa unit handed to the record store.
type Record struct {
	SubmissionID   string
	IdempotencyKey string
	Receipt        string
	Name           string
	Phone          *string
	Type           Type
	Region         Region
	UserName       string
	AreaName       string
	AreaIncharge   string
	ZoneName       string
	ZoneIncharge   string
	Status         bool
	PaymentStatus  bool
	AmountPaid     float64
}

// RecordCreator persists one unit record. A repeated IdempotencyKey must not
// create a second row; the stored row takes the content of rec, so a retry
// after the slots were edited saves the edited names. A stored row that
// belongs to another collector, or was already exported or paid, is left
// alone and the call fails.
type RecordCreator interface {
	CreateRecord(ctx context.Context, rec Record) error
}

// ErrSubmissionClosed is returned when a submission id already completed or
// belongs to another collector.
var ErrSubmissionClosed = errors.New("this submission was already saved; start a new one")

// Ledger tracks submission ids. Open registers id for userName, or accepts it
// again while it is still open for the same collector; any other case returns
// ErrSubmissionClosed. Complete marks id as saved so it is never reused.
type Ledger interface {
	OpenSubmission(ctx context.Context, id, userName string) error
	CompleteSubmission(ctx context.Context, id string) error
}

// Pruner is implemented by stores that can remove units an earlier attempt of
// the same submission saved but the current batch no longer holds, such as
// the second unit of a slot switched away from Aqeeqah (Boy). Rows of another
// collector, or already exported or paid, are never removed.
type Pruner interface {
	Prune(ctx context.Context, submissionID, userName string, keep []string) error
}

// Batch validates s for submission and returns one record per consumed
// hissa, in ascending slot order. An Aqeeqah (Boy) entry yields two
// identical records apart from their idempotency keys.
func (s Slots) Batch(sub Submission) ([]Record, error) {
	receipt := strings.TrimSpace(sub.Receipt)
	if receipt == "" {
		return nil, ErrNoReceipt
	}
	if !sub.Region.Valid() {
		return nil, ErrInvalidRegion
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Used() == 0 {
		return nil, ErrNoNames
	}
	if s.TotalWeight() > Capacity {
		return nil, ErrOverCapacity
	}

	id := sub.ID
	if id == "" {
		id = uuid.NewString()
	}
	var phone *string
	if m := strings.TrimSpace(sub.Mobile); m != "" {
		phone = &m
	}

	out := make([]Record, 0, s.TotalWeight())
	for _, sl := range s {
		if !sl.counted() {
			continue
		}
		for unit := 0; unit < sl.Type.Weight(); unit++ {
			out = append(out, Record{
				SubmissionID:   id,
				IdempotencyKey: fmt.Sprintf("%s:%d:%d", id, sl.ID, unit),
				Receipt:        receipt,
				Name:           sl.Text,
				Phone:          phone,
				Type:           sl.Type,
				Region:         sub.Region,
				UserName:       sub.Submitter.Name,
				AreaName:       sub.Submitter.AreaName,
				AreaIncharge:   sub.Submitter.AreaIncharge,
				ZoneName:       sub.Submitter.ZoneName,
				ZoneIncharge:   sub.Submitter.ZoneIncharge,
			})
		}
	}
	return out, nil
}

// SubmitError reports a batch in which some record creations failed.
type SubmitError struct {
	Total  int
	Failed int
	Err    error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%d of %d hissa records could not be saved: %v", e.Failed, e.Total, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Partial reports whether some records were saved before the failure.
func (e *SubmitError) Partial() bool { return e.Failed < e.Total }

// Submit builds the batch for s and hands every record to rc concurrently.
// It waits for all calls to settle. On success it returns a fresh slot set and
// the number of records created; on failure it returns s untouched.
//
// When rc is also a Ledger the submission id is opened before anything is
// written and completed once every record is saved.
func Submit(ctx context.Context, s Slots, sub Submission, rc RecordCreator) (Slots, int, error) {
	batch, err := s.Batch(sub)
	if err != nil {
		return s, 0, err
	}
	id := batch[0].SubmissionID
	ledger, _ := rc.(Ledger)
	if ledger != nil {
		if err := ledger.OpenSubmission(ctx, id, sub.Submitter.Name); err != nil {
			return s, 0, err
		}
	}
	if p, ok := rc.(Pruner); ok {
		keep := make([]string, len(batch))
		for i, rec := range batch {
			keep[i] = rec.IdempotencyKey
		}
		if err := p.Prune(ctx, id, sub.Submitter.Name, keep); err != nil {
			return s, 0, &SubmitError{Total: len(batch), Failed: len(batch), Err: fmt.Errorf("prune earlier attempt: %w", err)}
		}
	}

	var (
		mu     sync.Mutex
		errs   error
		failed int
		g      errgroup.Group
	)
	for _, rec := range batch {
		rec := rec
		g.Go(func() error {
			if err := rc.CreateRecord(ctx, rec); err != nil {
				mu.Lock()
				failed++
				errs = multierr.Append(errs, fmt.Errorf("%s (slot unit %s): %w", rec.Name, rec.IdempotencyKey, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 {
		return s, 0, &SubmitError{Total: len(batch), Failed: failed, Err: errs}
	}
	if ledger != nil {
		if err := ledger.CompleteSubmission(ctx, id); err != nil {
			return s, 0, fmt.Errorf("complete submission %s: %w", id, err)
		}
	}
	return NewSlots(), len(batch), nil
}
