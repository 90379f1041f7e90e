package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-editorial-be/internal/config"
	"ai-editorial-be/internal/dto"
	"ai-editorial-be/internal/entity"
	"ai-editorial-be/internal/pkg/logger"
	"ai-editorial-be/internal/repository/contract"
	"ai-editorial-be/internal/repository/specification"
	"ai-editorial-be/pkg/editor"
	"ai-editorial-be/pkg/events"
	"ai-editorial-be/pkg/extract"
	"ai-editorial-be/pkg/notify"
	"ai-editorial-be/pkg/revision"
	"ai-editorial-be/pkg/workflow"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

const (
	firstStageStream = `data: {"type":"stage_progress","stage":"line","stage_index":0,"total_stages":2}
data: {"type":"stage_complete","stage":"line","stage_index":0,"total_stages":2,"thread_ref":"t-1","sequential":true,"is_last_stage":false,"paragraph_edits":[{"index":0,"original":"hello world","edited":"Hello, world.","editorial_feedback":{"line":[{"issue":"capitalise"}]}}]}
data: [DONE]
`
	lastStageStream = `data: {"type":"stage_progress","stage":"brand-alignment","stage_index":1,"total_stages":2}
data: {"type":"stage_complete","stage":"brand-alignment","stage_index":1,"total_stages":2,"thread_ref":"t-1","sequential":true,"is_last_stage":true,"paragraph_edits":[{"index":0,"original":"hello world","edited":"Hello, brave world.","editorial_feedback":{"brand-alignment":[{"issue":"tone"}]}}]}
data: [DONE]
`
)

// --- fakes ---

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]entity.WorkflowSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]entity.WorkflowSession)}
}

func (r *fakeSessionRepo) Save(ctx context.Context, session *entity.WorkflowSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.Id] = *session
	return nil
}

func (r *fakeSessionRepo) FindOne(ctx context.Context, id uuid.UUID) (*entity.WorkflowSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, contract.ErrSessionNotFound
	}
	return &s, nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) state(t *testing.T, id uuid.UUID) workflow.State {
	t.Helper()
	s, err := r.FindOne(context.Background(), id)
	require.NoError(t, err)
	return s.State
}

type fakeDocumentRepo struct {
	mu      sync.Mutex
	created []*entity.RevisedDocument
}

func (r *fakeDocumentRepo) Create(ctx context.Context, doc *entity.RevisedDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, doc)
	return nil
}

func (r *fakeDocumentRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RevisedDocument, error) {
	return nil, nil
}

func (r *fakeDocumentRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RevisedDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.RevisedDocument(nil), r.created...), nil
}

func (r *fakeDocumentRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.created)), nil
}

// fakeReviser answers Start and Continue with queued streams. A nil body
// yields a stream that stays open until the request context is cancelled.
// With holdOpen every stream stays open after its events until it is closed.
type fakeReviser struct {
	mu        sync.Mutex
	streams   []string
	holdOpen  bool
	startErr  error
	final     *revision.FinalizeResponse
	finalErr  error
	continues []revision.ContinueRequest
	finalizes []revision.FinalizeRequest
}

func (f *fakeReviser) next(ctx context.Context) (*revision.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil, errors.New("no stream queued")
	}
	body := f.streams[0]
	f.streams = f.streams[1:]

	if body == "" {
		pr, pw := io.Pipe()
		go func() {
			<-ctx.Done()
			pw.CloseWithError(ctx.Err())
		}()
		return revision.NewStream(pr), nil
	}
	if f.holdOpen {
		pr, pw := io.Pipe()
		go func() {
			<-ctx.Done()
			pw.CloseWithError(ctx.Err())
		}()
		return revision.NewStream(heldBody{Reader: io.MultiReader(strings.NewReader(body), pr), pipe: pr}), nil
	}
	return revision.NewStream(io.NopCloser(strings.NewReader(body))), nil
}

func (f *fakeReviser) Start(ctx context.Context, req revision.StartRequest) (*revision.Stream, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.next(ctx)
}

func (f *fakeReviser) Continue(ctx context.Context, req revision.ContinueRequest) (*revision.Stream, error) {
	f.mu.Lock()
	f.continues = append(f.continues, req)
	f.mu.Unlock()
	return f.next(ctx)
}

func (f *fakeReviser) Finalize(ctx context.Context, req revision.FinalizeRequest) (*revision.FinalizeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizes = append(f.finalizes, req)
	if f.finalErr != nil {
		return nil, f.finalErr
	}
	return f.final, nil
}

type heldBody struct {
	io.Reader
	pipe *io.PipeReader
}

func (b heldBody) Close() error { return b.pipe.Close() }

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	return f.text, f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []workflow.Message
	busy map[notify.Indicator]bool
}

func (n *fakeNotifier) Notify(sessionID string, msgs ...workflow.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msgs...)
	return nil
}

func (n *fakeNotifier) SetBusy(sessionID string, indicator notify.Indicator, busy bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.busy == nil {
		n.busy = make(map[notify.Indicator]bool)
	}
	n.busy[indicator] = busy
	return nil
}

func (n *fakeNotifier) texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.msgs))
	for _, m := range n.msgs {
		out = append(out, m.Text)
	}
	return out
}

type fakePublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *fakePublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, event.EventType())
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

// --- harness ---

type harness struct {
	svc       IWorkflowService
	sessions  *fakeSessionRepo
	documents *fakeDocumentRepo
	reviser   *fakeReviser
	notifier  *fakeNotifier
	publisher *fakePublisher
}

func newHarness(t *testing.T, reviser *fakeReviser) *harness {
	t.Helper()
	h := &harness{
		sessions:  newFakeSessionRepo(),
		documents: &fakeDocumentRepo{},
		reviser:   reviser,
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}
	cfg := config.WorkflowConfig{
		SelectionAdvanceDelay: 10 * time.Millisecond,
		CompletionResetDelay:  200 * time.Millisecond,
		IncludeQualityChecks:  true,
	}
	h.svc = NewWorkflowService(
		workflow.NewMachine(editor.DefaultCatalog()),
		h.sessions,
		h.documents,
		reviser,
		fakeExtractor{text: "hello world"},
		h.notifier,
		h.publisher,
		cfg,
		logger.NewNopLogger(),
	)
	t.Cleanup(func() { _ = h.svc.Close() })
	return h
}

func (h *harness) waitForStep(t *testing.T, id uuid.UUID, step workflow.Step) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.sessions.state(t, id).Step == step
	}, 2*time.Second, 5*time.Millisecond, "session never reached %s", step)
}

// --- tests ---

func TestWorkflowServiceFullRun(t *testing.T) {
	reviser := &fakeReviser{
		streams: []string{firstStageStream, lastStageStream},
		final:   &revision.FinalizeResponse{FinalArticle: "Hello, brave world."},
	}
	h := newHarness(t, reviser)
	ctx := context.Background()

	res, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{StageIds: []string{"line"}, Content: "hello world"})
	require.NoError(t, err)
	assert.Equal(t, workflow.StepProcessing, res.Step)
	assert.Equal(t, []string{"line", "brand-alignment"}, res.SelectedStageIds)

	h.waitForStep(t, res.Id, workflow.StepAwaitingApproval)

	shown, err := h.svc.Show(ctx, "user-1", res.Id)
	require.NoError(t, err)
	require.NotNil(t, shown.Review)
	assert.Equal(t, 1, shown.Review.Feedback.Total)

	// Advancing with undecided feedback is refused
	_, err = h.svc.AdvanceToNextStage(ctx, "user-1", res.Id, "")
	assert.ErrorIs(t, err, workflow.ErrNotAllDecided)

	_, err = h.svc.DecideAllFeedback(ctx, "user-1", res.Id, true)
	require.NoError(t, err)

	res, err = h.svc.AdvanceToNextStage(ctx, "user-1", res.Id, "")
	require.NoError(t, err)
	assert.Equal(t, workflow.StepProcessing, res.Step)

	h.waitForStep(t, res.Id, workflow.StepAwaitingApproval)
	st := h.sessions.state(t, res.Id)
	assert.True(t, st.Continuation.IsLastStage)

	require.Len(t, reviser.continues, 1)
	assert.Equal(t, "t-1", reviser.continues[0].ThreadRef)

	_, err = h.svc.Approve(ctx, "user-1", res.Id, 0)
	require.NoError(t, err)
	_, err = h.svc.DecideFeedback(ctx, "user-1", res.Id, 0, &dto.FeedbackDecisionRequest{
		Category: "brand-alignment",
		Position: intPtr(0),
		Approved: boolPtr(false),
	})
	require.NoError(t, err)

	res, err = h.svc.Finalize(ctx, "user-1", res.Id)
	require.NoError(t, err)
	assert.Equal(t, "Hello, brave world.", res.FinalDocument)

	_, err = h.svc.Finalize(ctx, "user-1", res.Id)
	assert.ErrorIs(t, err, workflow.ErrAlreadyFinalized)

	require.Len(t, h.documents.created, 1)
	assert.Equal(t, "hello world", h.documents.created[0].OriginalContent)

	// The workflow resets once the completion delay has passed
	h.waitForStep(t, res.Id, workflow.StepIdle)

	assert.Equal(t, []string{
		events.TypeWorkflowStarted,
		events.TypeWorkflowStageCompleted,
		events.TypeWorkflowAdvanced,
		events.TypeWorkflowStageCompleted,
		events.TypeWorkflowFinalized,
	}, h.publisher.published())
}

func TestWorkflowServiceSelectionFlow(t *testing.T) {
	h := newHarness(t, &fakeReviser{streams: []string{firstStageStream}})
	ctx := context.Background()

	res, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{})
	require.NoError(t, err)
	assert.Equal(t, workflow.StepAwaitingStageSelection, res.Step)
	require.NotEmpty(t, res.Messages)
	assert.Equal(t, workflow.MessagePrompt, res.Messages[0].Kind)

	_, err = h.svc.SubmitSelection(ctx, "user-1", res.Id, "1-2, 9")
	var invalid *editor.InvalidSelectionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, workflow.StepAwaitingStageSelection, h.sessions.state(t, res.Id).Step)

	_, err = h.svc.SubmitSelection(ctx, "user-1", res.Id, "line")
	require.NoError(t, err)
	h.waitForStep(t, res.Id, workflow.StepAwaitingContent)

	_, err = h.svc.SubmitSelection(ctx, "user-1", res.Id, "go ahead")
	assert.ErrorIs(t, err, workflow.ErrUploadRequired)

	_, err = h.svc.UploadContent(ctx, "user-1", res.Id, "draft.txt", []byte("hello world"))
	require.NoError(t, err)
	h.waitForStep(t, res.Id, workflow.StepAwaitingApproval)
}

func TestWorkflowServiceOwnership(t *testing.T) {
	h := newHarness(t, &fakeReviser{})
	ctx := context.Background()

	res, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{})
	require.NoError(t, err)

	_, err = h.svc.Show(ctx, "user-2", res.Id)
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)

	_, err = h.svc.Cancel(ctx, "user-2", res.Id)
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)

	_, err = h.svc.Show(ctx, "user-1", uuid.New())
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)
}

func TestWorkflowServiceCancel(t *testing.T) {
	// An empty body keeps the stream open
	h := newHarness(t, &fakeReviser{streams: []string{""}})
	ctx := context.Background()

	res, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{StageIds: []string{"line"}, Content: "hello world"})
	require.NoError(t, err)

	_, err = h.svc.Cancel(ctx, "user-1", res.Id)
	assert.ErrorIs(t, err, workflow.ErrProcessingNotCancellable)
	assert.Equal(t, workflow.StepProcessing, h.sessions.state(t, res.Id).Step)

	idle, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{})
	require.NoError(t, err)
	res, err = h.svc.Cancel(ctx, "user-1", idle.Id)
	require.NoError(t, err)
	assert.Equal(t, workflow.StepIdle, res.Step)
	assert.Contains(t, h.publisher.published(), events.TypeWorkflowCancelled)
}

func TestWorkflowServiceCancelDetachesOpenStream(t *testing.T) {
	open := strings.TrimSuffix(firstStageStream, "data: [DONE]\n")
	h := newHarness(t, &fakeReviser{streams: []string{open}, holdOpen: true})
	ctx := context.Background()

	res, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{StageIds: []string{"line", "brand-alignment"}, Content: "hello world"})
	require.NoError(t, err)
	h.waitForStep(t, res.Id, workflow.StepAwaitingApproval)

	svc := h.svc.(*workflowService)
	_, ok := svc.streams.Load(res.Id)
	require.True(t, ok, "stream should still feed the session")

	res, err = h.svc.Cancel(ctx, "user-1", res.Id)
	require.NoError(t, err)
	assert.Equal(t, workflow.StepIdle, res.Step)

	_, ok = svc.streams.Load(res.Id)
	assert.False(t, ok)
	assert.False(t, h.notifier.busy[notify.IndicatorGeneratingNextStage])

	// The closed stream ends its consumer without touching the session
	before := h.sessions.state(t, res.Id)
	time.Sleep(50 * time.Millisecond)
	after := h.sessions.state(t, res.Id)
	assert.Equal(t, workflow.StepIdle, after.Step)
	assert.Equal(t, before.Revision, after.Revision)
	assert.Zero(t, after.Ledger.Len())
}

func TestWorkflowServiceReleasesSessionLocks(t *testing.T) {
	h := newHarness(t, &fakeReviser{streams: []string{firstStageStream}})
	ctx := context.Background()

	res, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{StageIds: []string{"line", "brand-alignment"}, Content: "hello world"})
	require.NoError(t, err)
	h.waitForStep(t, res.Id, workflow.StepAwaitingApproval)

	_, err = h.svc.Approve(ctx, "user-1", res.Id, 0)
	require.NoError(t, err)
	_, err = h.svc.Cancel(ctx, "user-1", res.Id)
	require.NoError(t, err)

	svc := h.svc.(*workflowService)
	assert.Eventually(t, func() bool {
		svc.locksMu.Lock()
		defer svc.locksMu.Unlock()
		return len(svc.locks) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestWorkflowServiceContentSizeLimit(t *testing.T) {
	h := newHarness(t, &fakeReviser{})
	svc := h.svc.(*workflowService)
	svc.cfg.MaxUploadBytes = 16
	ctx := context.Background()

	tooLarge := strings.Repeat("a", 17)

	tests := []struct {
		name string
		call func() error
	}{
		{
			name: "begin",
			call: func() error {
				_, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{StageIds: []string{"line"}, Content: tooLarge})
				return err
			},
		},
		{
			name: "submit",
			call: func() error {
				res, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{StageIds: []string{"line"}})
				require.NoError(t, err)
				require.Equal(t, workflow.StepAwaitingContent, res.Step)

				_, err = h.svc.SubmitContent(ctx, "user-1", res.Id, tooLarge)
				assert.Equal(t, workflow.StepAwaitingContent, h.sessions.state(t, res.Id).Step)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), extract.ErrFileTooLarge)
		})
	}

	// Ownership is checked before the size
	_, err := h.svc.SubmitContent(ctx, "user-1", uuid.New(), tooLarge)
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)
}

func TestWorkflowServiceStreamFailureResets(t *testing.T) {
	broken := "data: {\"type\":\"stage_progress\",\"stage\":\"line\",\"stage_index\":0}\ndata: not json\n"
	h := newHarness(t, &fakeReviser{streams: []string{broken}})
	ctx := context.Background()

	res, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{StageIds: []string{"line"}, Content: "hello world"})
	require.NoError(t, err)

	// A malformed line is skipped and the stream ends without results
	h.waitForStep(t, res.Id, workflow.StepIdle)
	assert.Contains(t, h.notifier.texts(), "The revision ended before any results were produced.")
}

func TestWorkflowServiceStartFailure(t *testing.T) {
	h := newHarness(t, &fakeReviser{startErr: &revision.ServiceError{Status: 503, Detail: "busy"}})
	ctx := context.Background()

	res, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{StageIds: []string{"line"}, Content: "hello world"})
	require.NoError(t, err)

	h.waitForStep(t, res.Id, workflow.StepIdle)
	require.Eventually(t, func() bool {
		for _, typ := range h.publisher.published() {
			if typ == events.TypeWorkflowFailed {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestWorkflowServiceFinalizeFailureKeepsLedger(t *testing.T) {
	h := newHarness(t, &fakeReviser{
		streams:  []string{lastStageStream},
		finalErr: &revision.ServiceError{Status: 500, Detail: "boom"},
	})
	ctx := context.Background()

	res, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{StageIds: []string{"line"}, Content: "hello world"})
	require.NoError(t, err)
	h.waitForStep(t, res.Id, workflow.StepAwaitingApproval)

	_, err = h.svc.DecideAllFeedback(ctx, "user-1", res.Id, false)
	require.NoError(t, err)

	_, err = h.svc.Finalize(ctx, "user-1", res.Id)
	var serviceErr *revision.ServiceError
	require.True(t, errors.As(err, &serviceErr))

	st := h.sessions.state(t, res.Id)
	assert.Equal(t, workflow.StepAwaitingApproval, st.Step)
	assert.Empty(t, st.FinalDocument)
	assert.Equal(t, 1, st.Ledger.Len())
	assert.False(t, h.notifier.busy[notify.IndicatorGeneratingFinal])
}

func TestWorkflowServiceCloseLeavesSessionsAlone(t *testing.T) {
	h := newHarness(t, &fakeReviser{streams: []string{""}})
	ctx := context.Background()

	res, err := h.svc.Begin(ctx, "user-1", &dto.BeginWorkflowRequest{StageIds: []string{"line"}, Content: "hello world"})
	require.NoError(t, err)

	require.NoError(t, h.svc.Close())
	assert.Equal(t, workflow.StepProcessing, h.sessions.state(t, res.Id).Step)
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
