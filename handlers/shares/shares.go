// Package shares exposes the hissa slot allocator to collectors. The client
// keeps the slot state and sends it with every call; nothing is stored until
// submit.
package shares

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"Qurbani-app-backend/cache"
	"Qurbani-app-backend/db"
	"Qurbani-app-backend/handlers/common"
	"Qurbani-app-backend/handlers/customers"
	"Qurbani-app-backend/handlers/users"
	"Qurbani-app-backend/hissa"
	mw "Qurbani-app-backend/middleware"
	"Qurbani-app-backend/models"
)

// Backend is what the share handlers need from storage.
type Backend interface {
	hissa.RecordCreator
	hissa.Pruner
	hissa.Ledger
	Submitter(ctx context.Context, userID int64) (hissa.Submitter, error)
	Locked(ctx context.Context) (bool, error)
	Customers(ctx context.Context, userName string) ([]models.Customer, error)
}

// ErrUnknownSubmitter is returned by a Backend when the account is gone.
var ErrUnknownSubmitter = errors.New("submitter not found")

// PoolBackend is the PostgreSQL Backend.
type PoolBackend struct {
	Pool *pgxpool.Pool
}

func (b PoolBackend) CreateRecord(ctx context.Context, rec hissa.Record) error {
	return customers.Store{DB: b.Pool}.CreateRecord(ctx, rec)
}

func (b PoolBackend) Prune(ctx context.Context, submissionID, userName string, keep []string) error {
	return customers.Store{DB: b.Pool}.Prune(ctx, submissionID, userName, keep)
}

func (b PoolBackend) OpenSubmission(ctx context.Context, id, userName string) error {
	return customers.Store{DB: b.Pool}.OpenSubmission(ctx, id, userName)
}

func (b PoolBackend) CompleteSubmission(ctx context.Context, id string) error {
	return customers.Store{DB: b.Pool}.CompleteSubmission(ctx, id)
}

func (b PoolBackend) Submitter(ctx context.Context, userID int64) (hissa.Submitter, error) {
	u, err := users.FindByID(ctx, b.Pool, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return hissa.Submitter{}, ErrUnknownSubmitter
		}
		return hissa.Submitter{}, err
	}
	return u.Submitter(), nil
}

func (b PoolBackend) Locked(ctx context.Context) (bool, error) {
	var locked bool
	err := b.Pool.QueryRow(ctx, `SELECT lock_status FROM settings WHERE id = 1`).Scan(&locked)
	if db.IsNoRows(err) {
		return false, nil
	}
	return locked, err
}

func (b PoolBackend) Customers(ctx context.Context, userName string) ([]models.Customer, error) {
	return customers.ListByUser(ctx, b.Pool, userName, false)
}

// Register mounts the allocator under /shares for collectors.
func Register(g fiber.Router, be Backend, cch *cache.Cache, jwtGuard, requireUser fiber.Handler) {
	g.Get("/new", jwtGuard, requireUser, New(be))
	g.Post("/type", jwtGuard, requireUser, SetType())
	g.Post("/text", jwtGuard, requireUser, SetText())
	g.Post("/clear", jwtGuard, requireUser, Clear())
	g.Post("/submit", jwtGuard, requireUser, Submit(be, cch))
	g.Get("/me", jwtGuard, requireUser, Mine(be))
}

func submitter(c *fiber.Ctx, be Backend) (hissa.Submitter, error) {
	id, err := mw.GetUserIDFromClaims(c)
	if err != nil {
		return hissa.Submitter{}, err
	}
	s, err := be.Submitter(c.Context(), id)
	if errors.Is(err, ErrUnknownSubmitter) {
		return s, fiber.NewError(fiber.StatusUnauthorized, "account no longer exists")
	}
	return s, err
}

func state(id string, s hissa.Slots) models.ShareState {
	return models.ShareState{SubmissionID: id, Slots: s, TotalWeight: s.TotalWeight()}
}

// rejected reports a rule violation together with the unchanged state.
func rejected(c *fiber.Ctx, s hissa.Slots, err error) error {
	st := state("", s)
	st.Error = err.Error()
	return c.Status(fiber.StatusUnprocessableEntity).JSON(st)
}

// New - GET /shares/new: a blank slot set and a fresh submission id.
func New(be Backend) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sub, err := submitter(c, be)
		if err != nil {
			return err
		}
		st := state(uuid.NewString(), hissa.NewSlots())
		st.Region = sub.InchargeOf.DefaultRegion()
		return c.JSON(st)
	}
}

// apply validates the client state, runs op and renders the result.
func apply(c *fiber.Ctx, s hissa.Slots, op func(hissa.Slots) (hissa.Slots, error)) error {
	if err := s.Validate(); err != nil {
		return rejected(c, s, err)
	}
	next, err := op(s)
	if err != nil {
		return rejected(c, s, err)
	}
	return c.JSON(state("", next))
}

// SetType - POST /shares/type
func SetType() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.SetShareTypeRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}
		return apply(c, b.Slots, func(s hissa.Slots) (hissa.Slots, error) { return s.SetType(b.SlotID, b.Type) })
	}
}

// SetText - POST /shares/text
func SetText() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.SetShareTextRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}
		return apply(c, b.Slots, func(s hissa.Slots) (hissa.Slots, error) { return s.SetText(b.SlotID, b.Text) })
	}
}

// Clear - POST /shares/clear
func Clear() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.ClearShareRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}
		return apply(c, b.Slots, func(s hissa.Slots) (hissa.Slots, error) { return s.Clear(b.SlotID) })
	}
}

// Submit - POST /shares/submit. Refused while the admin lock is on.
func Submit(be Backend, cch *cache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var b models.SubmitSharesRequest
		if err := common.Bind(c, &b); err != nil {
			return err
		}

		locked, err := be.Locked(c.Context())
		if err != nil {
			return err
		}
		if locked {
			return fiber.NewError(fiber.StatusLocked, "Submissions are closed by the admin")
		}

		sub, err := submitter(c, be)
		if err != nil {
			return err
		}
		region := b.Region
		if region == 0 {
			region = sub.InchargeOf.DefaultRegion()
		}
		if region.Valid() && !hissa.RegionAllowed(sub.InchargeOf, region) {
			return fiber.NewError(fiber.StatusForbidden, "You are not in charge of the "+region.String()+" region")
		}

		id := b.SubmissionID
		if id == "" {
			id = uuid.NewString()
		}
		next, created, err := hissa.Submit(c.Context(), b.Slots, hissa.Submission{
			ID:        id,
			Receipt:   b.ReceiptNumber,
			Mobile:    b.MobileNumber,
			Region:    region,
			Submitter: sub,
		}, be)

		var serr *hissa.SubmitError
		switch {
		case errors.As(err, &serr):
			zap.L().Error("hissa submit failed",
				zap.String("submission_id", id),
				zap.String("user", sub.Name),
				zap.Int("failed", serr.Failed),
				zap.Int("total", serr.Total),
				zap.Error(serr.Err))
			if serr.Partial() {
				cch.Invalidate(c.Context(), cache.Summaries...)
			}
			st := state(id, b.Slots)
			st.Region = region
			st.Error = serr.Error()
			st.PartialFailed = serr.Partial()
			return c.Status(fiber.StatusInternalServerError).JSON(st)
		case errors.Is(err, hissa.ErrSubmissionClosed):
			st := state(id, b.Slots)
			st.Region = region
			st.Error = err.Error()
			return c.Status(fiber.StatusConflict).JSON(st)
		case common.IsHissaError(err):
			st := state(id, b.Slots)
			st.Region = region
			st.Error = err.Error()
			return c.Status(fiber.StatusUnprocessableEntity).JSON(st)
		case err != nil:
			return err
		}

		cch.Invalidate(c.Context(), cache.Summaries...)
		zap.L().Info("hissa submitted",
			zap.String("submission_id", id),
			zap.String("user", sub.Name),
			zap.Int("records", created))

		st := state(uuid.NewString(), next)
		st.Region = region
		st.CreatedCount = created
		return c.Status(fiber.StatusCreated).JSON(st)
	}
}

// Mine - GET /shares/me: everything the caller has submitted.
func Mine(be Backend) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sub, err := submitter(c, be)
		if err != nil {
			return err
		}
		out, err := be.Customers(c.Context(), sub.Name)
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}
