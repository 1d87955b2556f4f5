package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"custos/internal/ledger"
	"custos/internal/ledger/handler/mocks"
	"custos/internal/policy"
	id "custos/pkg/domain"
)

//go:generate mockgen -source=handler.go -destination=mocks/ledger-mocks.go -package=mocks Service
type LedgerHandlerSuite struct {
	suite.Suite
}

func TestLedgerHandlerSuite(t *testing.T) {
	suite.Run(t, new(LedgerHandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(mockService, logger, nil, nil, ""), mockService
}

func sampleRecord(seq uint64) ledger.Record {
	return ledger.Record{
		Sequence:  seq,
		EventType: ledger.EventDecision,
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Actor:     id.UserID(uuid.New()),
		AssetTag:  "AST-00042",
		Site:      id.SiteID(uuid.New()),
		Action:    id.ActionCheckout,
		Outcome:   policy.OutcomeDeny,
		Reason:    policy.ReasonNumberMismatch,
		PrevHash:  "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		EventHash: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
	}
}

func (s *LedgerHandlerSuite) TestListEvents() {
	h, mockService := newTestHandler(s.T())
	mockService.EXPECT().List(gomock.Any(), ledger.Filter{}).
		Return([]ledger.Record{sampleRecord(1), sampleRecord(2)}, nil)

	req := httptest.NewRequest(http.MethodGet, "/audit/events", nil)
	w := httptest.NewRecorder()
	h.handleListEvents(w, req)

	require.Equal(s.T(), http.StatusOK, w.Code)
	var resp struct {
		Events []ledger.View `json:"events"`
	}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(s.T(), resp.Events, 2)
	assert.Equal(s.T(), uint64(1), resp.Events[0].Sequence)
	// Hashes are truncated for display.
	assert.Equal(s.T(), "bbbbbbbbbbbb", resp.Events[0].EventHash)
	assert.Equal(s.T(), "aaaaaaaaaaaa", resp.Events[0].PrevHash)
}

func (s *LedgerHandlerSuite) TestListEvents_Filtered() {
	h, mockService := newTestHandler(s.T())

	deny := policy.OutcomeDeny
	tag := id.AssetTag("AST-00042")
	et := ledger.EventDecision
	mockService.EXPECT().List(gomock.Any(), ledger.Filter{
		EventType: &et,
		Outcome:   &deny,
		AssetTag:  &tag,
		Limit:     10,
	}).Return([]ledger.Record{sampleRecord(7)}, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/audit/events?event_type=DECISION&decision=DENY&asset_id=AST-00042&limit=10", nil)
	w := httptest.NewRecorder()
	h.handleListEvents(w, req)

	require.Equal(s.T(), http.StatusOK, w.Code)
}

func (s *LedgerHandlerSuite) TestListEvents_RejectsUnknownOutcome() {
	h, _ := newTestHandler(s.T())

	req := httptest.NewRequest(http.MethodGet, "/audit/events?decision=MAYBE", nil)
	w := httptest.NewRecorder()
	h.handleListEvents(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *LedgerHandlerSuite) TestListEvents_RejectsOversizedLimit() {
	h, _ := newTestHandler(s.T())

	req := httptest.NewRequest(http.MethodGet, "/audit/events?limit=100000", nil)
	w := httptest.NewRecorder()
	h.handleListEvents(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
}

func (s *LedgerHandlerSuite) TestListEvents_StoreFailure() {
	h, mockService := newTestHandler(s.T())
	mockService.EXPECT().List(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused"))

	req := httptest.NewRequest(http.MethodGet, "/audit/events", nil)
	w := httptest.NewRecorder()
	h.handleListEvents(w, req)

	require.Equal(s.T(), http.StatusInternalServerError, w.Code)
	// Infrastructure details never leak to clients.
	assert.NotContains(s.T(), w.Body.String(), "connection refused")
}

func (s *LedgerHandlerSuite) TestVerifyChain_Valid() {
	h, mockService := newTestHandler(s.T())
	mockService.EXPECT().Verify(gomock.Any()).
		Return(ledger.VerifyReport{Valid: true, Records: 12}, nil)

	req := httptest.NewRequest(http.MethodGet, "/audit/verify-chain", nil)
	w := httptest.NewRecorder()
	h.handleVerifyChain(w, req)

	require.Equal(s.T(), http.StatusOK, w.Code)
	var report ledger.VerifyReport
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(s.T(), report.Valid)
	assert.Equal(s.T(), uint64(12), report.Records)
	assert.Nil(s.T(), report.FirstInvalidSequence)
}

func (s *LedgerHandlerSuite) TestVerifyChain_Corrupted() {
	h, mockService := newTestHandler(s.T())
	bad := uint64(3)
	mockService.EXPECT().Verify(gomock.Any()).
		Return(ledger.VerifyReport{Valid: false, Records: 9, FirstInvalidSequence: &bad}, nil)

	req := httptest.NewRequest(http.MethodGet, "/audit/verify-chain", nil)
	w := httptest.NewRecorder()
	h.handleVerifyChain(w, req)

	require.Equal(s.T(), http.StatusOK, w.Code)
	var report ledger.VerifyReport
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &report))
	assert.False(s.T(), report.Valid)
	require.NotNil(s.T(), report.FirstInvalidSequence)
	assert.Equal(s.T(), uint64(3), *report.FirstInvalidSequence)
}
