package shares

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Qurbani-app-backend/cache"
	"Qurbani-app-backend/handlers/common"
	"Qurbani-app-backend/hissa"
	mw "Qurbani-app-backend/middleware"
	"Qurbani-app-backend/models"
)

const secret = "shares-test"

type fakeBackend struct {
	mu        sync.Mutex
	locked    bool
	inCharge  hissa.RegionsInchargeOf
	records   map[string]hissa.Record
	failNames map[string]bool
	owners    map[string]string
	completed map[string]bool
}

func newFake() *fakeBackend {
	return &fakeBackend{
		inCharge:  hissa.BothRegions,
		records:   map[string]hissa.Record{},
		failNames: map[string]bool{},
		owners:    map[string]string{},
		completed: map[string]bool{},
	}
}

func (f *fakeBackend) CreateRecord(_ context.Context, rec hissa.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNames[rec.Name] {
		return errors.New("insert failed")
	}
	f.records[rec.IdempotencyKey] = rec
	return nil
}

func (f *fakeBackend) Prune(_ context.Context, submissionID, userName string, keep []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := map[string]bool{}
	for _, k := range keep {
		kept[k] = true
	}
	for k, r := range f.records {
		if r.SubmissionID == submissionID && r.UserName == userName && !kept[k] {
			delete(f.records, k)
		}
	}
	return nil
}

func (f *fakeBackend) OpenSubmission(_ context.Context, id, userName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[id]
	if !ok {
		f.owners[id] = userName
		return nil
	}
	if owner != userName || f.completed[id] {
		return hissa.ErrSubmissionClosed
	}
	return nil
}

func (f *fakeBackend) CompleteSubmission(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[id] = true
	return nil
}

func (f *fakeBackend) Submitter(_ context.Context, userID int64) (hissa.Submitter, error) {
	if userID != 7 {
		return hissa.Submitter{}, ErrUnknownSubmitter
	}
	return hissa.Submitter{Name: "Yusuf", AreaName: "Bhiwandi", ZoneName: "Thane", InchargeOf: f.inCharge}, nil
}

func (f *fakeBackend) Locked(context.Context) (bool, error) { return f.locked, nil }

func (f *fakeBackend) Customers(_ context.Context, userName string) ([]models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Customer{}
	for _, r := range f.records {
		if r.UserName == userName {
			out = append(out, models.Customer{Name: r.Name, Receipt: r.Receipt, Type: r.Type, Region: r.Region, UserName: r.UserName})
		}
	}
	return out, nil
}

func newApp(be Backend) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: common.ErrorHandler})
	Register(app.Group("/shares"), be, &cache.Cache{}, mw.JwtGuard(secret), mw.RequireRole(models.UserRoleUser))
	return app
}

func token(t *testing.T, id int64, role models.UserRole) string {
	t.Helper()
	tok, err := mw.BuildAccessToken(secret, id, role, time.Minute)
	require.NoError(t, err)
	return tok
}

func call(t *testing.T, app *fiber.App, method, path, tok string, body any) (int, models.ShareState) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req)
	require.NoError(t, err)

	var st models.ShareState
	_ = json.NewDecoder(resp.Body).Decode(&st)
	return resp.StatusCode, st
}

func TestNewIssuesBlankState(t *testing.T) {
	be := newFake()
	be.inCharge = hissa.MumbaiOnly
	app := newApp(be)

	code, st := call(t, app, "GET", "/shares/new", token(t, 7, models.UserRoleUser), nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.NotEmpty(t, st.SubmissionID)
	assert.Equal(t, hissa.NewSlots(), st.Slots)
	assert.Equal(t, 0, st.TotalWeight)
	assert.Equal(t, hissa.Mumbai, st.Region)
}

func TestRoutesRequireUserRole(t *testing.T) {
	app := newApp(newFake())
	code, _ := call(t, app, "GET", "/shares/new", token(t, 1, models.UserRoleAdmin), nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = call(t, app, "GET", "/shares/new", token(t, 99, models.UserRoleUser), nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestEditingFlow(t *testing.T) {
	app := newApp(newFake())
	tok := token(t, 7, models.UserRoleUser)

	code, st := call(t, app, "POST", "/shares/text", tok,
		models.SetShareTextRequest{Slots: hissa.NewSlots(), SlotID: 1, Text: "Ali"})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "Ali", st.Slots[0].Text)
	assert.Equal(t, 1, st.TotalWeight)

	code, st = call(t, app, "POST", "/shares/type", tok,
		models.SetShareTypeRequest{Slots: st.Slots, SlotID: 1, Type: hissa.AqeeqahBoy})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, 2, st.TotalWeight)
	assert.True(t, st.Slots[1].IsPaired)
	require.NotNil(t, st.Slots[1].PairID)
	assert.Equal(t, 1, *st.Slots[1].PairID)
	assert.Equal(t, "Ali", st.Slots[1].Text)

	code, st = call(t, app, "POST", "/shares/clear", tok, models.ClearShareRequest{Slots: st.Slots, SlotID: 1})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, hissa.NewSlots(), st.Slots)
}

func TestRejectionReturnsUnchangedState(t *testing.T) {
	app := newApp(newFake())
	tok := token(t, 7, models.UserRoleUser)

	s := hissa.NewSlots()
	var err error
	for id, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		s, err = s.SetText(id+1, name)
		require.NoError(t, err)
	}

	code, st := call(t, app, "POST", "/shares/type", tok,
		models.SetShareTypeRequest{Slots: s, SlotID: 7, Type: hissa.AqeeqahBoy})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.Equal(t, hissa.ErrNoPairSlot.Error(), st.Error)
	assert.Equal(t, s, st.Slots)
}

func TestInvalidClientStateIsRejected(t *testing.T) {
	app := newApp(newFake())
	s := hissa.NewSlots()
	s[3].IsPaired = true

	code, st := call(t, app, "POST", "/shares/text", token(t, 7, models.UserRoleUser),
		models.SetShareTextRequest{Slots: s, SlotID: 1, Text: "Ali"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.Contains(t, st.Error, hissa.ErrInvalidState.Error())
}

func filled(t *testing.T) hissa.Slots {
	t.Helper()
	s, err := hissa.NewSlots().SetText(1, "Ali")
	require.NoError(t, err)
	s, err = s.SetText(2, "Bilal")
	require.NoError(t, err)
	s, err = s.SetType(2, hissa.AqeeqahBoy)
	require.NoError(t, err)
	return s
}

func TestSubmitCreatesRecords(t *testing.T) {
	be := newFake()
	app := newApp(be)
	tok := token(t, 7, models.UserRoleUser)

	req := models.SubmitSharesRequest{
		SubmissionID:  "6f1c1e7e-4c59-4a53-9d0b-2f7c5a0d2a11",
		Slots:         filled(t),
		ReceiptNumber: "R-1001",
		MobileNumber:  "9820000000",
		Region:        hissa.Mumbai,
	}
	code, st := call(t, app, "POST", "/shares/submit", tok, req)
	require.Equal(t, fiber.StatusCreated, code)
	assert.Equal(t, 3, st.CreatedCount)
	assert.Equal(t, hissa.NewSlots(), st.Slots)
	assert.NotEqual(t, req.SubmissionID, st.SubmissionID)
	assert.Len(t, be.records, 3)

	// A saved submission id cannot be replayed.
	replay := req
	replay.Slots = hissa.NewSlots()
	replay.Slots[0].Text = "Zaid"
	replay.ReceiptNumber = "R-2002"
	code, st = call(t, app, "POST", "/shares/submit", tok, replay)
	require.Equal(t, fiber.StatusConflict, code)
	assert.Equal(t, hissa.ErrSubmissionClosed.Error(), st.Error)
	assert.Equal(t, replay.Slots, st.Slots)
	require.Len(t, be.records, 3)
	for _, r := range be.records {
		assert.Equal(t, "R-1001", r.Receipt)
	}

	mreq := httptest.NewRequest("GET", "/shares/me", nil)
	mreq.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(mreq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var mine []models.Customer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&mine))
	assert.Len(t, mine, 3)
}

func TestSubmitDefaultsRegion(t *testing.T) {
	be := newFake()
	be.inCharge = hissa.OutOfMumbaiOnly
	app := newApp(be)

	code, st := call(t, app, "POST", "/shares/submit", token(t, 7, models.UserRoleUser),
		models.SubmitSharesRequest{Slots: filled(t), ReceiptNumber: "R-1"})
	require.Equal(t, fiber.StatusCreated, code)
	assert.Equal(t, hissa.OutOfMumbai, st.Region)
	for _, r := range be.records {
		assert.Equal(t, hissa.OutOfMumbai, r.Region)
	}
}

func TestSubmitRefusals(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*fakeBackend)
		req    models.SubmitSharesRequest
		code   int
		errMsg string
	}{
		{
			name:  "locked",
			setup: func(f *fakeBackend) { f.locked = true },
			req:   models.SubmitSharesRequest{ReceiptNumber: "R-1", Region: hissa.Mumbai},
			code:  fiber.StatusLocked,
		},
		{
			name:  "region not in charge",
			setup: func(f *fakeBackend) { f.inCharge = hissa.OutOfMumbaiOnly },
			req:   models.SubmitSharesRequest{ReceiptNumber: "R-1", Region: hissa.Mumbai},
			code:  fiber.StatusForbidden,
		},
		{
			name:   "missing receipt",
			req:    models.SubmitSharesRequest{Region: hissa.Mumbai},
			code:   fiber.StatusUnprocessableEntity,
			errMsg: hissa.ErrNoReceipt.Error(),
		},
		{
			name:   "bad region",
			req:    models.SubmitSharesRequest{ReceiptNumber: "R-1", Region: 5},
			code:   fiber.StatusUnprocessableEntity,
			errMsg: hissa.ErrInvalidRegion.Error(),
		},
		{
			name: "bad submission id",
			req:  models.SubmitSharesRequest{SubmissionID: "not-a-uuid", ReceiptNumber: "R-1"},
			code: fiber.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := newFake()
			if tt.setup != nil {
				tt.setup(be)
			}
			tt.req.Slots = filled(t)
			code, st := call(t, newApp(be), "POST", "/shares/submit", token(t, 7, models.UserRoleUser), tt.req)
			assert.Equal(t, tt.code, code)
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, st.Error)
				assert.Equal(t, tt.req.Slots, st.Slots)
			}
			assert.Empty(t, be.records)
		})
	}
}

func TestSubmitNoNames(t *testing.T) {
	be := newFake()
	code, st := call(t, newApp(be), "POST", "/shares/submit", token(t, 7, models.UserRoleUser),
		models.SubmitSharesRequest{Slots: hissa.NewSlots(), ReceiptNumber: "R-1", Region: hissa.Mumbai})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.Equal(t, hissa.ErrNoNames.Error(), st.Error)
}

func TestSubmitPartialFailureKeepsState(t *testing.T) {
	be := newFake()
	be.failNames["Bilal"] = true
	app := newApp(be)
	tok := token(t, 7, models.UserRoleUser)

	req := models.SubmitSharesRequest{
		SubmissionID:  "0b7a4d0e-91f3-4a7e-8d43-4f0f6a7e2c10",
		Slots:         filled(t),
		ReceiptNumber: "R-2",
		Region:        hissa.Mumbai,
	}
	code, st := call(t, app, "POST", "/shares/submit", tok, req)
	require.Equal(t, fiber.StatusInternalServerError, code)
	assert.True(t, st.PartialFailed)
	assert.Equal(t, req.SubmissionID, st.SubmissionID)
	assert.Equal(t, req.Slots, st.Slots)
	assert.Contains(t, st.Error, "2 of 3")
	assert.Len(t, be.records, 1)

	// The retry only adds the missing units.
	delete(be.failNames, "Bilal")
	code, st = call(t, app, "POST", "/shares/submit", tok, req)
	require.Equal(t, fiber.StatusCreated, code)
	assert.Equal(t, 3, st.CreatedCount)
	assert.Len(t, be.records, 3)
}

func TestSubmitRetryAfterEdit(t *testing.T) {
	be := newFake()
	be.failNames["Bilal"] = true
	app := newApp(be)
	tok := token(t, 7, models.UserRoleUser)

	req := models.SubmitSharesRequest{
		SubmissionID:  "3d5e0c52-8a0b-4c1e-9f3c-0d2f2b6a9e41",
		Slots:         filled(t),
		ReceiptNumber: "R-3",
		Region:        hissa.Mumbai,
	}
	code, _ := call(t, app, "POST", "/shares/submit", tok, req)
	require.Equal(t, fiber.StatusInternalServerError, code)
	require.Len(t, be.records, 1)

	code, st := call(t, app, "POST", "/shares/text", tok,
		models.SetShareTextRequest{Slots: req.Slots, SlotID: 1, Text: "Aliya"})
	require.Equal(t, fiber.StatusOK, code)
	req.Slots = st.Slots
	delete(be.failNames, "Bilal")

	code, st = call(t, app, "POST", "/shares/submit", tok, req)
	require.Equal(t, fiber.StatusCreated, code)
	assert.Equal(t, 3, st.CreatedCount)
	require.Len(t, be.records, 3)
	var names []string
	for _, r := range be.records {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"Aliya", "Bilal", "Bilal"}, names)
}

func TestEditRejectsOutOfRangeSlotID(t *testing.T) {
	app := newApp(newFake())
	code, _ := call(t, app, "POST", "/shares/clear", token(t, 7, models.UserRoleUser),
		models.ClearShareRequest{Slots: hissa.NewSlots(), SlotID: 8})
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestSubmitRefusesForeignSubmissionID(t *testing.T) {
	be := newFake()
	be.owners["9a0c7d3e-2b1f-4e55-8c6a-1f4e2d3c4b5a"] = "Imran"

	code, st := call(t, newApp(be), "POST", "/shares/submit", token(t, 7, models.UserRoleUser),
		models.SubmitSharesRequest{
			SubmissionID:  "9a0c7d3e-2b1f-4e55-8c6a-1f4e2d3c4b5a",
			Slots:         filled(t),
			ReceiptNumber: "R-5",
			Region:        hissa.Mumbai,
		})
	assert.Equal(t, fiber.StatusConflict, code)
	assert.NotEmpty(t, st.Error)
	assert.Empty(t, be.records)
}
