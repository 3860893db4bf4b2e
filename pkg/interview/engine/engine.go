// Package engine runs one spoken interview session end to end.
//
// An Engine owns the session handle, the audio adapter, the voice activity
// monitor and both transports. All session state is mutated on the goroutine
// running Run; capture, playback, network and timer callbacks only post
// messages to it. Every resource the engine acquires is tracked on the
// session handle, so cleanup from any exit path releases all of them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haivivi/interviewer/pkg/interview"
	"github.com/haivivi/interviewer/pkg/interview/ending"
	"github.com/haivivi/interviewer/pkg/interview/phase"
	"github.com/haivivi/interviewer/pkg/interview/transport"
	"github.com/haivivi/interviewer/pkg/realtime"
	"github.com/haivivi/interviewer/pkg/voice"
)

var (
	// ErrTextUnavailable is returned by SendText while the fallback
	// transport is authoritative.
	ErrTextUnavailable = errors.New("engine: text input requires the streaming transport")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("engine: already running")
)

// Result describes how a session ended.
type Result struct {
	Session *interview.Session
	// NextStage is the stage the agent recommended, if any.
	NextStage string
	// Transport is the transport that was authoritative at the end.
	Transport transport.Kind
	Reason    string
}

// Status is a point-in-time view of a running session.
type Status struct {
	SessionID string
	Stage     interview.Stage
	// Phase is empty outside phone_screen.
	Phase     string
	Transport transport.Kind
	State     transport.State
	Elapsed   time.Duration
	Recording bool
	Playing   bool
	Turns     int
	// Ending holds the end reason during the grace period.
	Ending string
}

// Engine is the real-time voice session engine.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	monitor   *voice.Monitor
	level     func([]float32) float64
	threshold float64
	arbiter   *transport.Arbiter
	phases    *phase.Controller

	started atomic.Bool
	voiced  atomic.Int64

	inbox  chan any
	endCh  chan struct{}
	textCh chan textRequest

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup

	mu        sync.Mutex
	h         *interview.Handle
	turns     int
	endReason string
	nextStage string

	// Owned by the Run goroutine.
	adapter      *voice.Adapter
	bg           context.Context
	reqCtx       context.Context
	events       <-chan realtime.Event
	fallbackReq  <-chan error
	draft        strings.Builder
	agentTurn    bool
	pending      bool
	turnFailures int
}

type (
	decisionMsg struct{ d voice.Decision }
	playbackMsg struct {
		end voice.PlaybackEnd
		err error
	}
	beginMsg struct {
		res *transport.BeginResult
		err error
	}
	turnMsg struct {
		res *transport.TurnResult
		err error
	}
	graceMsg struct{}
)

type textRequest struct {
	text  string
	reply chan error
}

// outcome ends the run loop.
type outcome struct {
	complete bool
	reason   string
	err      error
}

// New validates cfg and returns an Engine ready to Run.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	threshold := cfg.Monitor.Threshold
	if threshold <= 0 {
		threshold = voice.DefaultVoiceThreshold
	}
	e := &Engine{
		cfg:       cfg,
		logger:    cfg.Logger.With("stage", cfg.Stage),
		monitor:   voice.NewMonitor(cfg.Monitor),
		level:     cfg.Level,
		threshold: threshold,
		arbiter:   transport.NewArbiter(),
		inbox:     make(chan any, 64),
		endCh:     make(chan struct{}, 1),
		textCh:    make(chan textRequest),
		quit:      make(chan struct{}),
	}
	if e.level == nil {
		e.level = voice.NewAnalyser(cfg.Analyser).Level
	}
	if cfg.Stage == interview.StagePhoneScreen {
		e.phases = phase.New()
	}
	return e, nil
}

// Run starts a session, conducts the interview and returns when the session
// is completed or cancelled. Cancelling ctx cancels the session.
//
// Blocking failures (microphone permission, session creation) are returned
// as *interview.Error before any audio flows.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if !e.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	e.bg = context.WithoutCancel(ctx)

	h, err := e.cfg.Manager.Start(ctx, e.cfg.User, e.cfg.Stage)
	if err != nil {
		e.stop()
		return nil, err
	}
	e.mu.Lock()
	e.h = h
	e.mu.Unlock()
	e.logger = e.logger.With("session_id", h.ID())

	if err := h.Begin(ctx); err != nil {
		e.stop()
		e.cfg.Manager.Cancel(e.bg, h)
		return nil, err
	}

	e.adapter = voice.NewAdapter(e.cfg.Device, e.cfg.Audio, voice.Hooks{
		Active:        h.Active,
		Chunk:         e.onChunk,
		Frame:         e.onFrame,
		PlaybackEnded: e.onPlaybackEnded,
	})
	if err := e.adapter.Open(); err != nil {
		kind := interview.KindPlayback
		if errors.Is(err, voice.ErrMicrophoneUnavailable) {
			kind = interview.KindPermission
		}
		ierr := interview.NewError(kind, "open audio", err)
		e.logger.Error("audio unavailable", "err", ierr)
		e.stop()
		e.cfg.Manager.Cancel(e.bg, h)
		return e.result(h.Session(), "audio unavailable"), ierr
	}
	h.Track("audio", e.adapter)

	reqCtx, reqCancel := context.WithCancel(ctx)
	e.reqCtx = reqCtx
	h.Track("requests", interview.CloseFunc(func() error {
		reqCancel()
		return nil
	}))
	if e.cfg.Streaming != nil {
		h.Track("streaming", interview.CloseFunc(e.cfg.Streaming.Close))
	}
	// Closed first on cleanup so that no callback blocks on the engine
	// while the adapter waits for it.
	h.Track("engine", interview.CloseFunc(func() error {
		e.stop()
		return nil
	}))

	ticker := time.NewTicker(e.cfg.StatusInterval)
	defer ticker.Stop()

	e.logger.Info("interview started", "user", e.cfg.User)
	e.connect()
	e.emitStatus()

	for {
		var out *outcome
		select {
		case <-ctx.Done():
			out = &outcome{reason: "interrupted", err: ctx.Err()}
		case <-e.quit:
			out = &outcome{reason: "cleaned up", err: interview.ErrInactive}
		case <-e.endCh:
			out = &outcome{complete: true, reason: "ended by candidate"}
		case req := <-e.textCh:
			req.reply <- e.handleText(req.text)
		case ev, ok := <-e.events:
			if !ok {
				out = e.streamClosed()
				break
			}
			out = e.handleEvent(ev)
		case err := <-e.fallbackReq:
			e.switchToFallback(err)
		case msg := <-e.inbox:
			out = e.handle(msg)
		case <-ticker.C:
			e.emitStatus()
		}
		if out != nil {
			return e.finish(out)
		}
	}
}

// End completes the session now, without a grace period. It is the manual
// "end interview" trigger.
func (e *Engine) End() {
	select {
	case e.endCh <- struct{}{}:
	default:
	}
}

// SendText submits typed candidate input in place of speech. It is only
// available while the streaming transport is authoritative.
func (e *Engine) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	req := textRequest{text: text, reply: make(chan error, 1)}
	select {
	case e.textCh <- req:
	case <-e.quit:
		return interview.ErrInactive
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the session. It is safe to call from any
// goroutine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	h, turns, end := e.h, e.turns, e.endReason
	e.mu.Unlock()

	vs := e.monitor.State()
	st := Status{
		Stage:     e.cfg.Stage,
		Transport: e.arbiter.Active(),
		State:     e.arbiter.State(),
		Recording: vs.Recording,
		Playing:   vs.PlayingAgentAudio,
		Turns:     turns,
		Ending:    end,
	}
	if e.phases != nil {
		st.Phase = e.phases.Phase().String()
	}
	if h != nil {
		st.SessionID = h.ID()
		if h.Active() {
			st.Elapsed = e.cfg.Now().Sub(h.CreatedAt())
		}
	}
	return st
}

func (e *Engine) connect() {
	if e.cfg.Streaming == nil {
		e.arbiter.Degrade()
		e.logger.Info("using fallback transport")
		e.monitor.SetAutoStop(true)
		e.beginFallback()
		return
	}

	e.arbiter.Connecting()
	events, err := e.cfg.Streaming.Connect(e.reqCtx, e.cfg.Stage, e.h.ID())
	if err != nil {
		e.switchToFallback(err)
		return
	}
	if !e.arbiter.Connected() {
		return
	}
	e.events = events
	e.fallbackReq = e.cfg.Streaming.FallbackRequired()
	e.monitor.SetAutoStop(false)
	e.logger.Info("using streaming transport")

	// The agent opens the conversation.
	if err := e.cfg.Streaming.RequestResponse(); err != nil {
		e.logger.Warn("request opening response", "err", err)
	}
	e.startRecording()
}

// switchToFallback hands the session to the fallback transport. It keeps
// the session id; only the first call has any effect.
func (e *Engine) switchToFallback(reason error) {
	if !e.arbiter.Degrade() {
		return
	}
	e.logger.Warn("switching to fallback transport", "err", reason)

	e.events = nil
	e.fallbackReq = nil
	if err := e.cfg.Streaming.Close(); err != nil {
		e.logger.Debug("close streaming transport", "err", err)
	}

	e.adapter.CancelPlayback()
	e.adapter.StopRecording()
	e.monitor.StopRecording()
	e.monitor.PlaybackFinished()
	e.monitor.EndAgentTurn()
	e.monitor.SetAutoStop(true)
	e.draft.Reset()
	e.agentTurn = false

	if e.endReason != "" {
		return
	}
	if e.turnCount() == 0 {
		e.beginFallback()
		return
	}
	e.startRecording()
}

func (e *Engine) beginFallback() {
	e.pending = true
	ctx, stage, id := e.reqCtx, e.cfg.Stage, e.h.ID()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		res, err := e.cfg.Fallback.Begin(ctx, stage, id)
		e.post(beginMsg{res: res, err: err})
	}()
}

func (e *Engine) sendTurn(audio []byte) {
	e.pending = true
	e.h.AddTurnAudio(audio)
	tc := transport.TurnContext{
		Stage:      e.cfg.Stage,
		SessionID:  e.h.ID(),
		Transcript: e.h.Transcript(),
	}
	if e.phases != nil {
		tc.Phase = e.phases.Phase().String()
		tc.AskedQuestions = e.phases.AskedQuestions()
	}
	ctx := e.reqCtx
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		res, err := e.cfg.Fallback.Turn(ctx, audio, tc)
		e.post(turnMsg{res: res, err: err})
	}()
}

func (e *Engine) handle(msg any) *outcome {
	switch m := msg.(type) {
	case decisionMsg:
		e.handleDecision(m.d)
	case playbackMsg:
		e.handlePlayback(m.end, m.err)
	case beginMsg:
		return e.handleBegin(m.res, m.err)
	case turnMsg:
		return e.handleTurn(m.res, m.err)
	case graceMsg:
		return &outcome{complete: true, reason: e.endReason}
	}
	return nil
}

func (e *Engine) handleDecision(d voice.Decision) {
	switch d {
	case voice.DecisionBargeIn:
		e.logger.Debug("barge-in")
		e.adapter.CancelPlayback()
		if e.arbiter.Active() == transport.KindFallback {
			// A fallback reply is a whole turn; nothing more will arrive for it.
			e.monitor.EndAgentTurn()
		}
		if !e.pending {
			e.startRecording()
		}

	case voice.DecisionRestart:
		e.restartRecording()
		e.logger.Debug("silence with nothing captured, capture restarted",
			"err", interview.NewError(interview.KindEmptyCapture, "capture", nil))

	case voice.DecisionStopAndSend:
		audio := e.adapter.StopRecording()
		if e.arbiter.Active() != transport.KindFallback || e.pending || e.endReason != "" {
			return
		}
		if len(audio) == 0 {
			e.startRecording()
			return
		}
		e.sendTurn(audio)
	}
}

func (e *Engine) handlePlayback(end voice.PlaybackEnd, err error) {
	if end == voice.PlaybackFailed {
		e.logger.Warn("agent audio failed", "err", interview.NewError(interview.KindPlayback, "play", err))
	}
	if e.adapter.Playing() {
		// More audio was queued after this stretch drained.
		return
	}
	if !e.monitor.PlaybackFinished() {
		return
	}
	e.resumeAfterAgent()
}

// resumeAfterAgent gives the turn back to the candidate once the agent has
// finished speaking.
func (e *Engine) resumeAfterAgent() {
	if e.pending || e.endReason != "" {
		return
	}
	if e.arbiter.Active() == transport.KindStreaming && e.agentTurn {
		return
	}
	if e.adapter.Playing() {
		return
	}
	e.startRecording()
}

func (e *Engine) handleBegin(res *transport.BeginResult, err error) *outcome {
	e.pending = false
	if err != nil {
		if e.reqCtx.Err() != nil {
			return nil
		}
		return &outcome{reason: "fallback start failed", err: err}
	}
	if p, err := phase.Parse(res.ConversationPhase); err == nil && e.phases != nil {
		e.phases.Advance(p)
	}
	e.agentSaid(res.Message, false)
	e.playOrResume(res.Audio)
	return nil
}

func (e *Engine) handleTurn(res *transport.TurnResult, err error) *outcome {
	e.pending = false
	if err != nil {
		if e.reqCtx.Err() != nil {
			return nil
		}
		e.turnFailures++
		e.logger.Warn("fallback turn failed", "failures", e.turnFailures, "err", err)
		if e.turnFailures >= e.cfg.MaxTurnFailures {
			return &outcome{reason: "fallback turns failing", err: err}
		}
		e.startRecording()
		return nil
	}
	e.turnFailures = 0

	e.appendUtterance(interview.SpeakerCandidate, res.UserUtterance)
	if p, err := phase.Parse(res.ConversationPhase); err == nil && e.phases != nil {
		e.phases.Advance(p)
	}
	if res.NextStage != "" {
		e.mu.Lock()
		e.nextStage = res.NextStage
		e.mu.Unlock()
	}
	e.agentSaid(res.AgentUtterance, false)
	if res.Complete {
		e.scheduleEnd("agent completed the interview")
	}
	e.playOrResume(res.Audio)
	return nil
}

func (e *Engine) playOrResume(audio []byte) {
	if len(audio) > 0 && e.playAgentAudio(audio) {
		return
	}
	e.resumeAfterAgent()
}

// playAgentAudio queues agent audio. It reports whether playback started or
// continues.
func (e *Engine) playAgentAudio(audio []byte) bool {
	if !e.h.Active() {
		return false
	}
	if !e.monitor.BeginPlayback() {
		// Suppressed after a barge-in.
		return false
	}
	e.adapter.StopRecording()
	if err := e.adapter.Enqueue(audio); err != nil {
		e.logger.Warn("queue agent audio", "err", interview.NewError(interview.KindPlayback, "enqueue", err))
		e.monitor.PlaybackFinished()
		return false
	}
	return true
}

func (e *Engine) handleEvent(ev realtime.Event) *outcome {
	switch ev := ev.(type) {
	case *realtime.ConfigAcknowledged:
		e.logger.Debug("streaming session configured", "agent_session", ev.SessionID)

	case *realtime.TranscriptDelta:
		e.agentTurn = true
		e.draft.WriteString(ev.Delta)

	case *realtime.TranscriptDone:
		text := ev.Transcript
		if text == "" {
			text = e.draft.String()
		}
		e.draft.Reset()
		e.agentSaid(text, true)

	case *realtime.UserTranscriptDone:
		e.appendUtterance(interview.SpeakerCandidate, ev.Transcript)

	case *realtime.AudioDelta:
		e.agentTurn = true
		e.playAgentAudio(ev.Audio)

	case *realtime.ErrorEvent:
		// Logged by the transport; auth failures arrive on FallbackRequired.

	case *realtime.Lifecycle:
		if ev.Kind == realtime.EventTypeResponseDone {
			e.agentTurn = false
			e.monitor.EndAgentTurn()
			if !e.monitor.State().PlayingAgentAudio {
				e.resumeAfterAgent()
			}
		}
	}
	return nil
}

// streamClosed handles the end of the streaming event channel. A pending
// fallback signal wins; otherwise the agent closed the conversation.
func (e *Engine) streamClosed() *outcome {
	e.events = nil
	select {
	case err := <-e.fallbackReq:
		e.switchToFallback(err)
		return nil
	default:
	}
	if e.arbiter.Active() != transport.KindStreaming {
		return nil
	}
	return &outcome{complete: true, reason: "agent closed the connection"}
}

func (e *Engine) handleText(text string) error {
	// Run may pick a queued request after cleanup has begun.
	if !e.h.Active() {
		return interview.ErrInactive
	}
	if e.arbiter.Active() != transport.KindStreaming {
		return ErrTextUnavailable
	}
	if err := e.cfg.Streaming.SendText(text); err != nil {
		return fmt.Errorf("engine: send text: %w", err)
	}
	e.appendUtterance(interview.SpeakerCandidate, text)
	return nil
}

// agentSaid records a finalized agent utterance and evaluates the ending
// condition. observe feeds the phase heuristics on the streaming path.
func (e *Engine) agentSaid(text string, observe bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if !e.appendUtterance(interview.SpeakerAgent, text) {
		return
	}
	if e.phases != nil {
		if observe {
			e.phases.Observe(text)
		} else {
			e.phases.RecordQuestion(text)
		}
	}
	e.mu.Lock()
	e.turns++
	turns := e.turns
	e.mu.Unlock()

	if e.endReason != "" {
		return
	}
	end, reason := e.cfg.Ending.ShouldEnd(ending.Snapshot{
		Stage:   e.cfg.Stage,
		Text:    text,
		Turns:   turns,
		Elapsed: e.cfg.Now().Sub(e.h.CreatedAt()),
	})
	if end {
		e.scheduleEnd(reason)
	}
}

func (e *Engine) appendUtterance(speaker interview.Speaker, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	u := interview.Utterance{Speaker: speaker, Text: text}
	if err := e.h.Append(e.bg, u); err != nil {
		e.logger.Debug("drop utterance", "speaker", speaker, "err", err)
		return false
	}
	if e.cfg.OnUtterance != nil {
		e.cfg.OnUtterance(u)
	}
	return true
}

// scheduleEnd stops capture and completes the session after the grace
// period, letting the final agent audio play out.
func (e *Engine) scheduleEnd(reason string) {
	if e.endReason != "" {
		return
	}
	e.mu.Lock()
	e.endReason = reason
	e.mu.Unlock()
	e.logger.Info("ending interview", "reason", reason, "grace", e.cfg.GracePeriod)

	e.monitor.StopRecording()
	e.adapter.StopRecording()
	timer := time.AfterFunc(e.cfg.GracePeriod, func() { e.post(graceMsg{}) })
	e.h.Track("grace timer", interview.CloseFunc(func() error {
		timer.Stop()
		return nil
	}))
}

func (e *Engine) startRecording() {
	if !e.h.Active() || e.endReason != "" || e.pending {
		return
	}
	// Only this goroutine begins playback, so the check cannot go stale.
	if e.monitor.State().PlayingAgentAudio {
		return
	}
	e.restartRecording()
	e.monitor.StartRecording(e.cfg.Now())
}

func (e *Engine) restartRecording() {
	if !e.h.Active() {
		return
	}
	mode := voice.ModeTurn
	if e.arbiter.Active() == transport.KindStreaming {
		mode = voice.ModeStreaming
	}
	e.voiced.Store(0)
	if err := e.adapter.StartRecording(mode); err != nil {
		e.logger.Debug("start recording", "err", err)
	}
}

func (e *Engine) finish(out *outcome) (*Result, error) {
	e.stop()
	kind := e.arbiter.Active()

	var sess *interview.Session
	if out.complete {
		final, err := e.cfg.Manager.Complete(e.bg, e.h)
		if err != nil {
			e.logger.Debug("complete", "err", err)
			e.cfg.Manager.Cancel(e.bg, e.h)
		}
		sess = final
	} else {
		e.cfg.Manager.Cancel(e.bg, e.h)
	}
	e.wg.Wait()
	e.arbiter.Close()
	e.monitor.Reset()
	if sess == nil {
		sess = e.h.Session()
	}

	res := e.result(sess, out.reason)
	res.Transport = kind
	e.logger.Info("interview finished", "status", sess.Status, "reason", out.reason, "transport", kind)
	return res, out.err
}

func (e *Engine) result(sess *interview.Session, reason string) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &Result{Session: sess, NextStage: e.nextStage, Reason: reason}
}

func (e *Engine) emitStatus() {
	if e.cfg.OnStatus != nil {
		e.cfg.OnStatus(e.Status())
	}
}

func (e *Engine) turnCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turns
}

func (e *Engine) stop() {
	e.quitOnce.Do(func() { close(e.quit) })
}

// post delivers msg to the Run goroutine unless the engine has stopped.
func (e *Engine) post(msg any) {
	select {
	case e.inbox <- msg:
	case <-e.quit:
	}
}

// onFrame runs on the capture goroutine for every frame while the session
// is active.
func (e *Engine) onFrame(frame []float32) {
	level := e.level(frame)
	if level > e.threshold && e.adapter.Recording() {
		e.voiced.Add(1)
	}
	// The microphone delivers frames continuously, so a raw frame count is
	// never zero when the silence clock runs out. A capture holds audio
	// worth sending only once a recorded frame crossed the threshold.
	buffered := 0
	if e.voiced.Load() > 0 {
		buffered = e.adapter.BufferedFrames()
	}
	if d := e.monitor.Sample(level, buffered, e.cfg.Now()); d != voice.DecisionNone {
		e.post(decisionMsg{d: d})
	}
}

func (e *Engine) onChunk(chunk []byte) {
	if e.arbiter.Active() != transport.KindStreaming {
		return
	}
	if err := e.cfg.Streaming.SendAudio(chunk); err != nil {
		e.logger.Debug("send audio", "err", err)
	}
}

// onPlaybackEnded may run on the caller of CancelPlayback; cancellations are
// already handled there.
func (e *Engine) onPlaybackEnded(end voice.PlaybackEnd, err error) {
	if end == voice.PlaybackCanceled {
		return
	}
	e.post(playbackMsg{end: end, err: err})
}
