package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"ai-editorial-be/internal/config"
	"ai-editorial-be/internal/dto"
	"ai-editorial-be/internal/entity"
	"ai-editorial-be/internal/mapper"
	"ai-editorial-be/internal/pkg/logger"
	"ai-editorial-be/internal/repository/contract"
	"ai-editorial-be/pkg/events"
	"ai-editorial-be/pkg/extract"
	"ai-editorial-be/pkg/notify"
	"ai-editorial-be/pkg/revision"
	"ai-editorial-be/pkg/workflow"

	"github.com/google/uuid"
)

// IRevisionClient is the remote revision service.
type IRevisionClient interface {
	Start(ctx context.Context, req revision.StartRequest) (*revision.Stream, error)
	Continue(ctx context.Context, req revision.ContinueRequest) (*revision.Stream, error)
	Finalize(ctx context.Context, req revision.FinalizeRequest) (*revision.FinalizeResponse, error)
}

// IContentExtractor turns an upload into document text.
type IContentExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// INotifier delivers user-facing messages and busy indicators.
type INotifier interface {
	Notify(sessionID string, msgs ...workflow.Message) error
	SetBusy(sessionID string, indicator notify.Indicator, busy bool) error
}

// IEventPublisher records workflow lifecycle events.
type IEventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IWorkflowService interface {
	Catalog() *dto.CatalogResponse
	Begin(ctx context.Context, ownerId string, req *dto.BeginWorkflowRequest) (*dto.WorkflowSessionResponse, error)
	Show(ctx context.Context, ownerId string, id uuid.UUID) (*dto.WorkflowSessionResponse, error)
	SubmitSelection(ctx context.Context, ownerId string, id uuid.UUID, text string) (*dto.WorkflowSessionResponse, error)
	SubmitContent(ctx context.Context, ownerId string, id uuid.UUID, content string) (*dto.WorkflowSessionResponse, error)
	UploadContent(ctx context.Context, ownerId string, id uuid.UUID, filename string, data []byte) (*dto.WorkflowSessionResponse, error)
	Approve(ctx context.Context, ownerId string, id uuid.UUID, index int) (*dto.WorkflowSessionResponse, error)
	Decline(ctx context.Context, ownerId string, id uuid.UUID, index int) (*dto.WorkflowSessionResponse, error)
	DecideFeedback(ctx context.Context, ownerId string, id uuid.UUID, index int, req *dto.FeedbackDecisionRequest) (*dto.WorkflowSessionResponse, error)
	DecideAllFeedback(ctx context.Context, ownerId string, id uuid.UUID, approved bool) (*dto.WorkflowSessionResponse, error)
	AdvanceToNextStage(ctx context.Context, ownerId string, id uuid.UUID, threadRef string) (*dto.WorkflowSessionResponse, error)
	Finalize(ctx context.Context, ownerId string, id uuid.UUID) (*dto.WorkflowSessionResponse, error)
	Cancel(ctx context.Context, ownerId string, id uuid.UUID) (*dto.WorkflowSessionResponse, error)
	Close() error
}

type workflowService struct {
	machine   *workflow.Machine
	mapper    *mapper.WorkflowSessionMapper
	sessions  contract.WorkflowSessionRepository
	documents contract.RevisedDocumentRepository
	reviser   IRevisionClient
	extractor IContentExtractor
	notifier  INotifier
	publisher IEventPublisher
	cfg       config.WorkflowConfig
	logger    logger.ILogger

	// locks serializes commands and stream events per session. An entry
	// lives only while someone holds or waits for it.
	locksMu sync.Mutex
	locks   map[uuid.UUID]*sessionLock
	// streams holds the stream currently feeding each session. Events from
	// any other stream are stale and dropped.
	streams sync.Map

	// ctx outlives requests; streams and timers stop when it is cancelled.
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewWorkflowService wires the workflow engine. documents and publisher may
// be nil when archiving or event publishing is unavailable.
func NewWorkflowService(
	machine *workflow.Machine,
	sessions contract.WorkflowSessionRepository,
	documents contract.RevisedDocumentRepository,
	reviser IRevisionClient,
	extractor IContentExtractor,
	notifier INotifier,
	publisher IEventPublisher,
	cfg config.WorkflowConfig,
	log logger.ILogger,
) IWorkflowService {
	ctx, cancel := context.WithCancel(context.Background())
	return &workflowService{
		machine:   machine,
		mapper:    mapper.NewWorkflowSessionMapper(machine.Catalog()),
		sessions:  sessions,
		documents: documents,
		reviser:   reviser,
		extractor: extractor,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
		logger:    log,
		locks:     make(map[uuid.UUID]*sessionLock),
		ctx:       ctx,
		cancel:    cancel,
	}
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (s *workflowService) Catalog() *dto.CatalogResponse {
	return s.mapper.ToCatalogResponse()
}

func (s *workflowService) Begin(ctx context.Context, ownerId string, req *dto.BeginWorkflowRequest) (*dto.WorkflowSessionResponse, error) {
	if err := s.checkContentSize(req.Content); err != nil {
		return nil, err
	}

	now := time.Now()
	session := &entity.WorkflowSession{
		Id:        uuid.New(),
		OwnerId:   ownerId,
		State:     workflow.NewState(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	unlock := s.lock(session.Id)
	defer unlock()

	tr, err := s.machine.Begin(session.State, req.StageIds, req.Content)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, session, tr.State); err != nil {
		return nil, err
	}

	s.logger.Info("WorkflowService", "Workflow started", map[string]interface{}{"session_id": session.Id, "step": tr.State.Step})
	s.notify(session.Id, tr.Messages)
	s.handleEffect(session, tr)
	return s.respond(session, tr.Messages), nil
}

func (s *workflowService) Show(ctx context.Context, ownerId string, id uuid.UUID) (*dto.WorkflowSessionResponse, error) {
	session, err := s.load(ctx, ownerId, id)
	if err != nil {
		return nil, err
	}
	return s.respond(session, nil), nil
}

func (s *workflowService) SubmitSelection(ctx context.Context, ownerId string, id uuid.UUID, text string) (*dto.WorkflowSessionResponse, error) {
	wasActive := false
	res, err := s.command(ctx, ownerId, id, func(st workflow.State) (workflow.Transition, error) {
		wasActive = st.Step != workflow.StepIdle
		return s.machine.SubmitSelection(st, text)
	})
	if err == nil && wasActive && res.Step == workflow.StepIdle {
		s.publish(id, ownerId, events.TypeWorkflowCancelled, nil)
	}
	return res, err
}

func (s *workflowService) SubmitContent(ctx context.Context, ownerId string, id uuid.UUID, content string) (*dto.WorkflowSessionResponse, error) {
	if err := s.checkContentSize(content); err != nil {
		if _, loadErr := s.load(ctx, ownerId, id); loadErr != nil {
			return nil, loadErr
		}
		s.notify(id, []workflow.Message{{Kind: workflow.MessagePrompt, Text: "The document is too large: " + err.Error()}})
		return nil, err
	}
	return s.command(ctx, ownerId, id, func(st workflow.State) (workflow.Transition, error) {
		return s.machine.SubmitContent(st, content)
	})
}

// UploadContent extracts the text of an uploaded file before submitting it.
// Extraction errors are content errors: the user is re-prompted and the step
// is unchanged.
func (s *workflowService) UploadContent(ctx context.Context, ownerId string, id uuid.UUID, filename string, data []byte) (*dto.WorkflowSessionResponse, error) {
	session, err := s.load(ctx, ownerId, id)
	if err != nil {
		return nil, err
	}
	if step := session.State.Step; step != workflow.StepAwaitingContent && step != workflow.StepAwaitingStageSelection {
		return nil, fmt.Errorf("%w: %s", workflow.ErrWrongStep, step)
	}

	text, err := s.extractor.Extract(ctx, filename, data)
	if err != nil {
		s.logger.Warn("WorkflowService", "Failed to extract upload", map[string]interface{}{"session_id": id, "file": filename, "error": err.Error()})
		s.notify(id, []workflow.Message{{
			Kind: workflow.MessagePrompt,
			Text: "Could not read the uploaded document: " + err.Error(),
		}})
		return nil, err
	}

	return s.SubmitContent(ctx, ownerId, id, text)
}

func (s *workflowService) Approve(ctx context.Context, ownerId string, id uuid.UUID, index int) (*dto.WorkflowSessionResponse, error) {
	return s.command(ctx, ownerId, id, func(st workflow.State) (workflow.Transition, error) {
		return s.machine.Approve(st, index)
	})
}

func (s *workflowService) Decline(ctx context.Context, ownerId string, id uuid.UUID, index int) (*dto.WorkflowSessionResponse, error) {
	return s.command(ctx, ownerId, id, func(st workflow.State) (workflow.Transition, error) {
		return s.machine.Decline(st, index)
	})
}

func (s *workflowService) DecideFeedback(ctx context.Context, ownerId string, id uuid.UUID, index int, req *dto.FeedbackDecisionRequest) (*dto.WorkflowSessionResponse, error) {
	return s.command(ctx, ownerId, id, func(st workflow.State) (workflow.Transition, error) {
		return s.machine.DecideFeedback(st, index, req.Category, *req.Position, *req.Approved)
	})
}

func (s *workflowService) DecideAllFeedback(ctx context.Context, ownerId string, id uuid.UUID, approved bool) (*dto.WorkflowSessionResponse, error) {
	return s.command(ctx, ownerId, id, func(st workflow.State) (workflow.Transition, error) {
		return s.machine.DecideAllFeedback(st, approved)
	})
}

// AdvanceToNextStage sends the decisions to the revision service and resumes
// the pipeline at the next stage. The response stream is consumed in the
// background.
func (s *workflowService) AdvanceToNextStage(ctx context.Context, ownerId string, id uuid.UUID, threadRef string) (*dto.WorkflowSessionResponse, error) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.load(ctx, ownerId, id)
	if err != nil {
		return nil, err
	}

	// 1. Validate and build the continuation request
	req, tr, err := s.machine.PrepareAdvance(session.State, threadRef)
	if err != nil {
		s.notify(id, tr.Messages)
		return nil, err
	}

	// 2. Open the continuation stream
	s.setBusy(id, notify.IndicatorGeneratingNextStage, true)
	stream, err := s.reviser.Continue(s.ctx, req)
	if err != nil {
		s.setBusy(id, notify.IndicatorGeneratingNextStage, false)
		s.logger.Error("WorkflowService", "Continue request failed", map[string]interface{}{"session_id": id, "error": err.Error()})
		s.notify(id, s.machine.ContinueFailed(session.State, err).Messages)
		return nil, err
	}

	// 3. Enter processing and hand the stream to a consumer
	if err := s.store(ctx, session, tr.State); err != nil {
		stream.Close()
		s.setBusy(id, notify.IndicatorGeneratingNextStage, false)
		return nil, err
	}
	s.notify(id, tr.Messages)
	s.publish(id, ownerId, events.TypeWorkflowAdvanced, map[string]interface{}{
		"stage_id":    tr.State.CurrentStageID,
		"stage_index": tr.State.Continuation.CurrentStageIndex,
		"accept_all":  req.AcceptAll,
		"reject_all":  req.RejectAll,
	})

	s.streams.Store(id, stream)
	if !s.spawn(func() { s.consume(id, stream) }) {
		s.streams.CompareAndDelete(id, stream)
		stream.Close()
	}
	return s.respond(session, tr.Messages), nil
}

// Finalize requests the merged document. On failure the ledger stays
// reviewable; on success the workflow resets after the completion delay.
func (s *workflowService) Finalize(ctx context.Context, ownerId string, id uuid.UUID) (*dto.WorkflowSessionResponse, error) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.load(ctx, ownerId, id)
	if err != nil {
		return nil, err
	}

	req, tr, err := s.machine.PrepareFinalize(session.State, s.cfg.IncludeQualityChecks)
	if err != nil {
		s.notify(id, tr.Messages)
		return nil, err
	}

	s.setBusy(id, notify.IndicatorGeneratingFinal, true)
	defer s.setBusy(id, notify.IndicatorGeneratingFinal, false)

	resp, err := s.reviser.Finalize(ctx, req)
	if err != nil {
		s.logger.Error("WorkflowService", "Finalize request failed", map[string]interface{}{"session_id": id, "error": err.Error()})
		s.notify(id, s.machine.FinalizeFailed(session.State, err).Messages)
		return nil, err
	}

	done := s.machine.CompleteFinalize(session.State, resp)
	if err := s.store(ctx, session, done.State); err != nil {
		return nil, err
	}
	s.notify(id, done.Messages)
	s.publish(id, ownerId, events.TypeWorkflowFinalized, map[string]interface{}{
		"paragraphs": done.State.Ledger.Len(),
		"stage_ids":  done.State.SelectedStageIDs,
	})
	s.archive(ctx, session)
	s.handleEffect(session, done)
	return s.respond(session, done.Messages), nil
}

// Cancel resets the workflow. A stream still attached to the session, such
// as a non-sequential run that has not closed yet, is detached and closed.
func (s *workflowService) Cancel(ctx context.Context, ownerId string, id uuid.UUID) (*dto.WorkflowSessionResponse, error) {
	wasActive := false
	res, err := s.command(ctx, ownerId, id, func(st workflow.State) (workflow.Transition, error) {
		wasActive = st.Step != workflow.StepIdle
		tr, err := s.machine.Cancel(st)
		if err == nil {
			s.detachStream(id)
		}
		return tr, err
	})
	if err == nil && wasActive {
		s.publish(id, ownerId, events.TypeWorkflowCancelled, nil)
	}
	return res, err
}

// Close stops background streams and timers and waits for them to exit.
func (s *workflowService) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

// command applies a state machine command under the session lock. A
// rejected command leaves the stored state untouched; its messages are
// still delivered.
func (s *workflowService) command(ctx context.Context, ownerId string, id uuid.UUID, fn func(st workflow.State) (workflow.Transition, error)) (*dto.WorkflowSessionResponse, error) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.load(ctx, ownerId, id)
	if err != nil {
		return nil, err
	}

	tr, err := fn(session.State)
	if err != nil {
		s.notify(id, tr.Messages)
		return nil, err
	}
	if err := s.store(ctx, session, tr.State); err != nil {
		return nil, err
	}

	s.notify(id, tr.Messages)
	s.handleEffect(session, tr)
	return s.respond(session, tr.Messages), nil
}

func (s *workflowService) handleEffect(session *entity.WorkflowSession, tr workflow.Transition) {
	id := session.Id
	switch tr.Effect {
	case workflow.EffectScheduleAdvance:
		revisionAt := tr.State.Revision
		s.after(s.cfg.SelectionAdvanceDelay, func() { s.advanceSelection(id, revisionAt) })
	case workflow.EffectStartRevision:
		req := workflow.StartRequest(tr.State)
		s.publish(id, session.OwnerId, events.TypeWorkflowStarted, map[string]interface{}{
			"stage_ids": req.SelectedStageIDs,
		})
		s.spawn(func() { s.startRevision(id, req) })
	case workflow.EffectScheduleReset:
		finalizedAt := tr.State.FinalizedAt
		s.after(s.cfg.CompletionResetDelay, func() { s.complete(id, finalizedAt) })
	}
}

func (s *workflowService) startRevision(id uuid.UUID, req revision.StartRequest) {
	stream, err := s.reviser.Start(s.ctx, req)
	if err != nil {
		if s.ctx.Err() == nil {
			s.finishStream(id, nil, err)
		}
		return
	}
	s.streams.Store(id, stream)
	s.consume(id, stream)
}

// consume feeds stream events to the interpreter in arrival order.
func (s *workflowService) consume(id uuid.UUID, stream *revision.Stream) {
	defer stream.Close()

	for {
		ev, err := stream.Next()
		switch {
		case err == nil:
			if !s.applyEvent(id, stream, ev) {
				s.streams.CompareAndDelete(id, stream)
				return
			}
		case errors.Is(err, io.EOF):
			s.finishStream(id, stream, nil)
			return
		case errors.Is(err, revision.ErrMalformedEvent):
			s.logger.Warn("WorkflowService", "Skipping malformed stream event", map[string]interface{}{"session_id": id, "error": err.Error()})
		default:
			// The stream is closed before the failure is surfaced.
			stream.Close()
			if s.ctx.Err() != nil {
				return
			}
			s.finishStream(id, stream, err)
			return
		}
	}
}

// applyEvent folds one event into the session. It reports false when the
// session is gone or the stream was superseded and should be abandoned.
func (s *workflowService) applyEvent(id uuid.UUID, stream *revision.Stream, ev revision.Event) bool {
	unlock := s.lock(id)
	defer unlock()

	if !s.owns(id, stream) {
		return false
	}

	session, err := s.sessions.FindOne(s.ctx, id)
	if err != nil {
		s.logger.Warn("WorkflowService", "Dropping stream for missing session", map[string]interface{}{"session_id": id, "error": err.Error()})
		return false
	}

	next, msgs := s.machine.Interpreter().Apply(session.State, ev)
	if err := s.store(s.ctx, session, next); err != nil {
		return false
	}
	s.notify(id, msgs)

	switch e := ev.(type) {
	case revision.StageComplete:
		s.publish(id, session.OwnerId, events.TypeWorkflowStageCompleted, map[string]interface{}{
			"stage_id":   e.StageID,
			"paragraphs": next.Ledger.Len(),
		})
	case revision.StageError:
		s.publish(id, session.OwnerId, events.TypeWorkflowStageFailed, map[string]interface{}{
			"stage_id": e.StageID,
			"error":    e.Message,
		})
	case revision.Ignored:
		s.logger.Debug("WorkflowService", "Ignored stream event", map[string]interface{}{"session_id": id, "type": e.Type})
	}
	return true
}

// finishStream applies the end-of-stream rule. A non-nil err is a transport
// failure. stream is nil when the request never produced one.
func (s *workflowService) finishStream(id uuid.UUID, stream *revision.Stream, streamErr error) {
	unlock := s.lock(id)
	defer unlock()

	if stream != nil {
		if !s.owns(id, stream) {
			return
		}
		s.streams.CompareAndDelete(id, stream)
	}
	s.setBusy(id, notify.IndicatorGeneratingNextStage, false)

	session, err := s.sessions.FindOne(s.ctx, id)
	if err != nil {
		return
	}

	next, msgs := s.machine.Interpreter().Finish(session.State, streamErr)
	if err := s.store(s.ctx, session, next); err != nil {
		return
	}
	s.notify(id, msgs)

	if streamErr != nil {
		s.logger.Error("WorkflowService", "Revision stream failed", map[string]interface{}{"session_id": id, "error": streamErr.Error()})
		s.publish(id, session.OwnerId, events.TypeWorkflowFailed, map[string]interface{}{"error": streamErr.Error()})
	}
}

// detachStream drops and closes the stream feeding id. The caller holds the
// session lock, so the consumer sees the stream as superseded.
func (s *workflowService) detachStream(id uuid.UUID) {
	v, ok := s.streams.LoadAndDelete(id)
	if !ok {
		return
	}
	v.(*revision.Stream).Close()
	s.setBusy(id, notify.IndicatorGeneratingNextStage, false)
}

func (s *workflowService) owns(id uuid.UUID, stream *revision.Stream) bool {
	current, ok := s.streams.Load(id)
	return ok && current.(*revision.Stream) == stream
}

func (s *workflowService) advanceSelection(id uuid.UUID, scheduledAt int64) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.sessions.FindOne(s.ctx, id)
	if err != nil {
		return
	}
	tr, ok := s.machine.AdvanceSelection(session.State, scheduledAt)
	if !ok {
		return
	}
	if err := s.store(s.ctx, session, tr.State); err != nil {
		return
	}
	s.notify(id, tr.Messages)
	s.handleEffect(session, tr)
}

func (s *workflowService) complete(id uuid.UUID, scheduledAt int64) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.sessions.FindOne(s.ctx, id)
	if err != nil {
		return
	}
	tr, ok := s.machine.Complete(session.State, scheduledAt)
	if !ok {
		return
	}
	if err := s.store(s.ctx, session, tr.State); err != nil {
		return
	}
	s.notify(id, tr.Messages)
}

// checkContentSize applies the upload limit to text sent inline.
func (s *workflowService) checkContentSize(content string) error {
	if limit := s.cfg.MaxUploadBytes; limit > 0 && len(content) > limit {
		return fmt.Errorf("%w: %d bytes exceeds %d", extract.ErrFileTooLarge, len(content), limit)
	}
	return nil
}

func (s *workflowService) archive(ctx context.Context, session *entity.WorkflowSession) {
	if s.documents == nil {
		return
	}
	st := session.State
	doc := &entity.RevisedDocument{
		Id:              uuid.New(),
		SessionId:       session.Id,
		OwnerId:         session.OwnerId,
		StageIds:        st.SelectedStageIDs,
		OriginalContent: st.OriginalContent,
		FinalDocument:   st.FinalDocument,
		Paragraphs:      st.Ledger.Paragraphs(),
		CreatedAt:       time.Now(),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		s.logger.Warn("WorkflowService", "Failed to archive final document", map[string]interface{}{"session_id": session.Id, "error": err.Error()})
	}
}

func (s *workflowService) lock(id uuid.UUID) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

func (s *workflowService) load(ctx context.Context, ownerId string, id uuid.UUID) (*entity.WorkflowSession, error) {
	session, err := s.sessions.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.OwnerId != ownerId {
		return nil, contract.ErrSessionNotFound
	}
	return session, nil
}

func (s *workflowService) store(ctx context.Context, session *entity.WorkflowSession, next workflow.State) error {
	session.State = next
	session.UpdatedAt = time.Now()
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Error("WorkflowService", "Failed to save session", map[string]interface{}{"session_id": session.Id, "error": err.Error()})
		return fmt.Errorf("save session %s: %w", session.Id, err)
	}
	return nil
}

func (s *workflowService) respond(session *entity.WorkflowSession, msgs []workflow.Message) *dto.WorkflowSessionResponse {
	res := s.mapper.ToResponse(session)
	res.Messages = msgs
	return res
}

func (s *workflowService) notify(id uuid.UUID, msgs []workflow.Message) {
	if len(msgs) == 0 {
		return
	}
	if err := s.notifier.Notify(id.String(), msgs...); err != nil {
		s.logger.Warn("WorkflowService", "Failed to deliver messages", map[string]interface{}{"session_id": id, "error": err.Error()})
	}
}

func (s *workflowService) setBusy(id uuid.UUID, indicator notify.Indicator, busy bool) {
	if err := s.notifier.SetBusy(id.String(), indicator, busy); err != nil {
		s.logger.Warn("WorkflowService", "Failed to update busy indicator", map[string]interface{}{"session_id": id, "indicator": indicator, "error": err.Error()})
	}
}

func (s *workflowService) publish(id uuid.UUID, ownerId, eventType string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	event := events.NewWorkflowEvent(eventType, id.String(), ownerId, data)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("WorkflowService", "Failed to publish event", map[string]interface{}{"session_id": id, "type": eventType, "error": err.Error()})
	}
}

// spawn runs fn in a tracked goroutine. It reports false once the service
// is closed.
func (s *workflowService) spawn(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

// after runs fn once d has elapsed unless the service closes first.
func (s *workflowService) after(d time.Duration, fn func()) {
	s.spawn(func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
		case <-timer.C:
			fn()
		}
	})
}
