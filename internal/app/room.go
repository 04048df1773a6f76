package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// RoomConfig holds the engine timings applied to every room.
type RoomConfig struct {
	// DefaultTimeLimit applies to questions without their own limit.
	DefaultTimeLimit time.Duration
	// StartDelay is the countdown between start and the first question.
	StartDelay time.Duration
	// ReviewDelay auto-advances out of review; zero leaves it to the admin.
	ReviewDelay time.Duration
	InboxSize   int
}

// RoomParams wires a room to its collaborators.
type RoomParams struct {
	ID         string
	AdminID    string
	Quiz       domain.Quiz
	Config     RoomConfig
	Registry   *Registry
	Dispatcher *Dispatcher
	Results    ResultsHandoff
	Logger     *zap.Logger
	Now        func() time.Time
	// OnTerminal runs on the room goroutine once the room completes or is cancelled.
	// It must not call back into the room.
	OnTerminal func(sessionID string)
	// OnChange runs on the room goroutine whenever the status, question index or
	// participant count moves. Same rule as OnTerminal.
	OnChange func(info domain.SessionInfo)
}

type phase int

const (
	phaseCountdown phase = iota + 1
	phaseQuestion
	phaseReview
)

func (p phase) String() string {
	switch p {
	case phaseCountdown:
		return "countdown"
	case phaseQuestion:
		return "question"
	case phaseReview:
		return "review"
	}
	return "none"
}

type expiry struct {
	phase phase
	index int
	gen   uint64
}

type command struct {
	name  string
	apply func() error
	reply chan error
}

// Room owns one live session. Every mutation runs on its own goroutine, so commands
// and deadline expiries are applied one at a time in arrival order.
type Room struct {
	id        string
	adminID   string
	quiz      domain.Quiz
	createdAt time.Time
	cfg       RoomConfig
	now       func() time.Time
	logger    *zap.Logger

	registry   *Registry
	dispatcher *Dispatcher
	results    ResultsHandoff
	onTerminal func(string)
	onChange   func(domain.SessionInfo)
	scheduler  *Scheduler

	// owned by the run goroutine
	status            domain.Status
	index             int
	startedAt         time.Time
	questionStartedAt time.Time
	deadline          time.Time
	participants      map[string]*domain.Participant
	order             []string
	answers           []map[string]domain.AnswerRecord
	armed             expiry
	handedOff         bool

	inbox    chan command
	expiries chan expiry
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	info     atomic.Value
}

// NewRoom builds a room in the lobby and starts its goroutine.
func NewRoom(p RoomParams) *Room {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Config.InboxSize <= 0 {
		p.Config.InboxSize = 64
	}
	if p.Config.DefaultTimeLimit <= 0 {
		p.Config.DefaultTimeLimit = 30 * time.Second
	}
	if p.Dispatcher == nil {
		p.Dispatcher = NewDispatcher(p.Registry, p.Logger)
	}

	answers := make([]map[string]domain.AnswerRecord, len(p.Quiz.Questions))
	for i := range answers {
		answers[i] = make(map[string]domain.AnswerRecord)
	}

	r := &Room{
		id:           p.ID,
		adminID:      p.AdminID,
		quiz:         p.Quiz,
		createdAt:    p.Now(),
		cfg:          p.Config,
		now:          p.Now,
		logger:       p.Logger.With(zap.String("session_id", p.ID), zap.String("quiz_id", p.Quiz.ID)),
		registry:     p.Registry,
		dispatcher:   p.Dispatcher,
		results:      p.Results,
		onTerminal:   p.OnTerminal,
		onChange:     p.OnChange,
		scheduler:    NewScheduler(),
		status:       domain.StatusLobby,
		index:        -1,
		participants: make(map[string]*domain.Participant),
		answers:      answers,
		inbox:        make(chan command, p.Config.InboxSize),
		expiries:     make(chan expiry, 1),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	r.publishInfo()
	go r.run()
	return r
}

func (r *Room) ID() string { return r.id }

func (r *Room) AdminID() string { return r.adminID }

// Info returns the latest published summary without touching the room goroutine.
func (r *Room) Info() domain.SessionInfo {
	return r.info.Load().(domain.SessionInfo)
}

// Join adds or reactivates a participant and registers ch as their push channel.
// The admin only gets a channel; they never enter the roster.
func (r *Room) Join(ctx context.Context, userID, displayName string, ch Channel) error {
	return r.exec(ctx, domain.MsgJoin, func() error {
		if r.status.Terminal() {
			return domain.ErrSessionClosed
		}
		if prev, replaced := r.registry.Register(r.id, userID, ch); replaced && prev != nil {
			_ = prev.Close()
		}
		if userID == r.adminID {
			r.sendState(userID)
			return nil
		}

		p, exists := r.participants[userID]
		changed := true
		switch {
		case !exists:
			p = &domain.Participant{UserID: userID, DisplayName: displayName, JoinedAt: r.now(), Active: true}
			r.participants[userID] = p
			r.order = append(r.order, userID)
		case !p.Active:
			p.Active = true
		default:
			changed = false
		}
		if displayName != "" {
			p.DisplayName = displayName
		}
		if !changed {
			r.sendState(userID)
			return nil
		}

		r.logger.Info("participant joined", zap.String("user_id", userID), zap.Bool("rejoin", exists))
		r.dispatcher.Publish(r.id, domain.Envelope{Type: domain.MsgParticipantJoined, Payload: r.participantEvent(p)})
		r.broadcastState()
		return nil
	})
}

// Leave marks the participant inactive. Their score and answers are kept.
func (r *Room) Leave(ctx context.Context, userID string) error {
	return r.exec(ctx, domain.MsgLeave, func() error {
		if r.status.Terminal() {
			return domain.ErrSessionClosed
		}
		if userID == r.adminID {
			r.registry.Unregister(r.id, userID)
			return nil
		}
		p, ok := r.participants[userID]
		if !ok || !p.Active {
			return domain.ErrNotParticipant
		}
		p.Active = false
		r.registry.Unregister(r.id, userID)

		r.logger.Info("participant left", zap.String("user_id", userID))
		r.dispatcher.Publish(r.id, domain.Envelope{Type: domain.MsgParticipantLeft, Payload: r.participantEvent(p)})
		r.broadcastState()
		r.closeIfAllAnswered()
		return nil
	})
}

// Start moves the lobby into play. Only the admin may start, and only with someone to play.
func (r *Room) Start(ctx context.Context, userID string) error {
	return r.exec(ctx, domain.MsgStart, func() error {
		if err := r.authorize(userID); err != nil {
			return err
		}
		if r.status != domain.StatusLobby {
			return fmt.Errorf("%w: cannot start from %s", domain.ErrInvalidState, r.status)
		}
		if r.activeCount() == 0 {
			return fmt.Errorf("%w: no participants have joined", domain.ErrInvalidState)
		}

		r.status = domain.StatusInProgress
		r.startedAt = r.now()
		r.logger.Info("session started", zap.Int("participants", r.activeCount()))
		if r.cfg.StartDelay > 0 {
			r.broadcastState()
			r.arm(phaseCountdown, r.cfg.StartDelay)
			return nil
		}
		r.advance()
		return nil
	})
}

// Submit records the participant's one answer for the active question.
func (r *Room) Submit(ctx context.Context, userID string, sub domain.Submission) error {
	return r.exec(ctx, domain.MsgSubmitAnswer, func() error {
		if r.status.Terminal() {
			return domain.ErrSessionClosed
		}
		p, ok := r.participants[userID]
		if !ok || !p.Active {
			return domain.ErrNotParticipant
		}
		if r.index < 0 || sub.QuestionIndex != r.index {
			return fmt.Errorf("%w: got %d, current is %d", domain.ErrWrongQuestion, sub.QuestionIndex, r.index)
		}
		if _, answered := r.answers[r.index][userID]; answered {
			return domain.ErrAlreadyAnswered
		}
		if r.status != domain.StatusQuestionActive {
			return fmt.Errorf("%w: question %d is closed", domain.ErrInvalidState, r.index)
		}
		if r.now().After(r.deadline) {
			return fmt.Errorf("%w: deadline passed", domain.ErrInvalidState)
		}

		question := r.quiz.Questions[r.index]
		grade := DeclinedGrade()
		if !sub.Declined {
			value, err := DecodeAnswer(question, sub.Answer)
			if err != nil {
				return err
			}
			grade = GradeAnswer(question, value)
		}
		r.record(p, grade, sub.Answer)

		r.logger.Debug("answer recorded",
			zap.String("user_id", userID),
			zap.Int("question_index", r.index),
			zap.Bool("correct", grade.Correct),
			zap.Bool("declined", grade.Declined))
		r.dispatcher.SendTo(r.id, userID, domain.Envelope{
			Type:    domain.MsgAnswerAccepted,
			Payload: domain.AnswerAccepted{QuestionIndex: r.index, Declined: grade.Declined},
		})
		r.broadcastState()
		r.closeIfAllAnswered()
		return nil
	})
}

// Cancel ends the session from any non-terminal state.
func (r *Room) Cancel(ctx context.Context, userID string) error {
	return r.exec(ctx, domain.MsgCancel, func() error {
		if err := r.authorize(userID); err != nil {
			return err
		}
		r.disarm()
		r.status = domain.StatusCancelled
		r.logger.Info("session cancelled", zap.Int("question_index", r.index))
		r.finish(domain.EndCancelled)
		return nil
	})
}

// Next is the admin's manual advance: it ends the countdown or review, or closes the
// active question early.
func (r *Room) Next(ctx context.Context, userID string) error {
	return r.exec(ctx, domain.MsgNextQuestion, func() error {
		if err := r.authorize(userID); err != nil {
			return err
		}
		switch r.status {
		case domain.StatusInProgress, domain.StatusQuestionReview:
			r.advance()
		case domain.StatusQuestionActive:
			r.closeQuestion("admin")
		default:
			return fmt.Errorf("%w: cannot advance from %s", domain.ErrInvalidState, r.status)
		}
		return nil
	})
}

// Snapshot returns the current redacted state as seen by an observer.
func (r *Room) Snapshot(ctx context.Context) (domain.GameState, error) {
	var state domain.GameState
	err := r.exec(ctx, domain.MsgGameState, func() error {
		state = r.snapshot()
		return nil
	})
	return state, err
}

// Stop disarms any deadline and terminates the room goroutine. It must not be called
// from the room goroutine itself.
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		r.scheduler.Disarm()
		close(r.quit)
	})
	<-r.done
}

// Done is closed once the room goroutine exits.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) exec(ctx context.Context, name string, apply func() error) error {
	cmd := command{name: name, apply: apply, reply: make(chan error, 1)}
	select {
	case r.inbox <- cmd:
	case <-r.done:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-r.done:
		select {
		case err := <-cmd.reply:
			return err
		default:
			return domain.ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) run() {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			return
		case cmd := <-r.inbox:
			cmd.reply <- r.safely(cmd.name, cmd.apply)
		case e := <-r.expiries:
			_ = r.safely("expiry", func() error {
				r.onExpiry(e)
				return nil
			})
		}
	}
}

// safely turns a panic into ErrInternal so one bad command cannot kill the room.
func (r *Room) safely(name string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("room command panicked",
				zap.String("command", name),
				zap.Any("panic", rec),
				zap.Stack("stack"))
			err = fmt.Errorf("%w: %s", domain.ErrInternal, name)
		}
		r.publishInfo()
	}()
	return fn()
}

func (r *Room) authorize(userID string) error {
	if r.status.Terminal() {
		return domain.ErrSessionClosed
	}
	if userID != r.adminID {
		return domain.ErrUnauthorized
	}
	return nil
}

func (r *Room) arm(p phase, d time.Duration) {
	index := r.index
	gen := r.scheduler.Arm(d, func(gen uint64) {
		r.signal(expiry{phase: p, index: index, gen: gen})
	})
	r.armed = expiry{phase: p, index: index, gen: gen}
}

func (r *Room) disarm() {
	r.scheduler.Disarm()
	r.armed = expiry{}
}

// signal runs under the scheduler lock; it replaces any unread expiry instead of blocking.
func (r *Room) signal(e expiry) {
	for {
		select {
		case r.expiries <- e:
			return
		default:
		}
		select {
		case <-r.expiries:
		default:
		}
	}
}

func (r *Room) onExpiry(e expiry) {
	if e.gen == 0 || e != r.armed {
		r.logger.Debug("stale deadline ignored", zap.Stringer("phase", e.phase), zap.Int("question_index", e.index))
		return
	}
	r.armed = expiry{}

	switch e.phase {
	case phaseCountdown:
		if r.status == domain.StatusInProgress {
			r.advance()
		}
	case phaseQuestion:
		if r.status == domain.StatusQuestionActive && r.index == e.index {
			r.closeQuestion("deadline")
		}
	case phaseReview:
		if r.status == domain.StatusQuestionReview && r.index == e.index {
			r.advance()
		}
	}
}

// advance opens the next question or completes the session after the last one.
func (r *Room) advance() {
	r.disarm()
	next := r.index + 1
	if next >= len(r.quiz.Questions) {
		r.complete()
		return
	}

	question := r.quiz.Questions[next]
	budget := question.TimeBudget(r.cfg.DefaultTimeLimit)
	r.index = next
	r.questionStartedAt = r.now()
	r.deadline = r.questionStartedAt.Add(budget)
	for _, p := range r.participants {
		p.Answered = false
	}
	r.status = domain.StatusQuestionActive
	r.arm(phaseQuestion, budget)

	r.logger.Info("question opened", zap.Int("question_index", next), zap.Duration("time_limit", budget))
	r.broadcastState()
}

// closeQuestion declines everyone active who has not answered and enters review.
func (r *Room) closeQuestion(reason string) {
	r.disarm()
	declined := 0
	for _, userID := range r.order {
		p := r.participants[userID]
		if !p.Active || p.Answered {
			continue
		}
		r.record(p, DeclinedGrade(), nil)
		declined++
	}
	r.status = domain.StatusQuestionReview

	r.logger.Info("question closed",
		zap.Int("question_index", r.index),
		zap.String("reason", reason),
		zap.Int("declined", declined))
	question := r.quiz.Questions[r.index]
	r.dispatcher.Publish(r.id, domain.Envelope{
		Type: domain.MsgQuestionClosed,
		Payload: domain.QuestionClosed{
			QuestionIndex: r.index,
			Kind:          question.Kind,
			AnswerKey:     question.RevealKey(),
			Results:       r.questionResults(r.index),
		},
	})
	r.broadcastState()
	if r.cfg.ReviewDelay > 0 {
		r.arm(phaseReview, r.cfg.ReviewDelay)
	}
}

func (r *Room) closeIfAllAnswered() {
	if r.status != domain.StatusQuestionActive {
		return
	}
	active := 0
	for _, p := range r.participants {
		if !p.Active {
			continue
		}
		if !p.Answered {
			return
		}
		active++
	}
	if active > 0 {
		r.closeQuestion("all_answered")
	}
}

func (r *Room) complete() {
	r.status = domain.StatusCompleted
	r.logger.Info("session completed", zap.Int("questions", len(r.quiz.Questions)))
	scores := r.finish(domain.EndCompleted)
	if r.handedOff || r.results == nil {
		return
	}
	r.handedOff = true
	r.results.Publish(r.result(scores))
}

func (r *Room) finish(reason string) []domain.FinalScore {
	r.disarm()
	scores := r.finalScores()
	r.broadcastState()
	r.dispatcher.Publish(r.id, domain.Envelope{
		Type:    domain.MsgSessionEnded,
		Payload: domain.SessionEnded{SessionID: r.id, Reason: reason, Scores: scores},
	})
	if r.onTerminal != nil {
		r.onTerminal(r.id)
	}
	return scores
}

func (r *Room) record(p *domain.Participant, grade Grade, raw []byte) {
	r.answers[r.index][p.UserID] = domain.AnswerRecord{
		UserID:        p.UserID,
		QuestionIndex: r.index,
		Raw:           raw,
		SubmittedAt:   r.now(),
		Points:        grade.Points,
		Correct:       grade.Correct,
		Declined:      grade.Declined,
	}
	p.Score += grade.Points
	p.Answered = true
}

func (r *Room) questionResults(index int) []domain.QuestionResult {
	out := make([]domain.QuestionResult, 0, len(r.answers[index]))
	for _, userID := range r.order {
		rec, ok := r.answers[index][userID]
		if !ok {
			continue
		}
		out = append(out, domain.QuestionResult{UserID: userID, Points: rec.Points, Correct: rec.Correct, Declined: rec.Declined})
	}
	return out
}

func (r *Room) finalScores() []domain.FinalScore {
	scores := make([]domain.FinalScore, 0, len(r.order))
	for _, userID := range r.order {
		p := r.participants[userID]
		score := domain.FinalScore{UserID: userID, DisplayName: p.DisplayName, Score: p.Score, Left: !p.Active}
		for _, byUser := range r.answers {
			rec, ok := byUser[userID]
			switch {
			case !ok:
			case rec.Declined:
				score.Declined++
			case rec.Correct:
				score.Correct++
			default:
				score.Wrong++
			}
		}
		scores = append(scores, score)
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return r.participants[scores[i].UserID].JoinedAt.Before(r.participants[scores[j].UserID].JoinedAt)
	})
	return scores
}

func (r *Room) result(scores []domain.FinalScore) domain.SessionResult {
	var answers []domain.AnswerRecord
	for _, byUser := range r.answers {
		for _, userID := range r.order {
			if rec, ok := byUser[userID]; ok {
				answers = append(answers, rec)
			}
		}
	}
	return domain.SessionResult{
		ID:             uuid.NewString(),
		SessionID:      r.id,
		QuizID:         r.quiz.ID,
		AdminID:        r.adminID,
		TotalQuestions: len(r.quiz.Questions),
		StartedAt:      r.startedAt,
		FinishedAt:     r.now(),
		Scores:         scores,
		Answers:        answers,
	}
}

func (r *Room) snapshot() domain.GameState {
	active := lo.Filter(lo.Map(r.order, func(id string, _ int) *domain.Participant { return r.participants[id] }),
		func(p *domain.Participant, _ int) bool { return p.Active })

	// Score desc, then earliest join, then name.
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Score != active[j].Score {
			return active[i].Score > active[j].Score
		}
		if !active[i].JoinedAt.Equal(active[j].JoinedAt) {
			return active[i].JoinedAt.Before(active[j].JoinedAt)
		}
		return active[i].DisplayName < active[j].DisplayName
	})

	answeredBy := make(map[string]bool)
	summaries := make([]domain.ParticipantSummary, 0, len(active))
	for _, p := range active {
		if p.Answered {
			answeredBy[p.UserID] = true
		}
		summaries = append(summaries, domain.ParticipantSummary{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			Answered:    p.Answered,
		})
	}

	state := domain.GameState{
		SessionID:      r.id,
		QuizID:         r.quiz.ID,
		Status:         r.status,
		QuestionIndex:  r.index,
		TotalQuestions: len(r.quiz.Questions),
		Participants:   summaries,
		AnsweredCount:  len(answeredBy),
	}
	if r.status == domain.StatusQuestionActive || r.status == domain.StatusQuestionReview {
		startedAt, deadline := r.questionStartedAt, r.deadline
		state.Question = r.quiz.Questions[r.index].Public(r.index)
		state.QuestionStartedAt = &startedAt
		state.Deadline = &deadline
	}
	return state.WithAnsweredBy(answeredBy)
}

func (r *Room) broadcastState() {
	r.dispatcher.Broadcast(r.snapshot())
}

func (r *Room) sendState(userID string) {
	r.dispatcher.SendTo(r.id, userID, domain.Envelope{Type: domain.MsgGameState, Payload: r.snapshot().For(userID)})
}

func (r *Room) participantEvent(p *domain.Participant) domain.ParticipantEvent {
	return domain.ParticipantEvent{UserID: p.UserID, DisplayName: p.DisplayName, ParticipantCount: r.activeCount()}
}

func (r *Room) activeCount() int {
	return lo.CountBy(lo.Values(r.participants), func(p *domain.Participant) bool { return p.Active })
}

func (r *Room) publishInfo() {
	info := domain.SessionInfo{
		SessionID:     r.id,
		QuizID:        r.quiz.ID,
		AdminID:       r.adminID,
		Status:        r.status,
		QuestionIndex: r.index,
		Participants:  r.activeCount(),
		CreatedAt:     r.createdAt,
	}
	prev, published := r.info.Load().(domain.SessionInfo)
	r.info.Store(info)
	if r.onChange != nil && (!published || prev != info) {
		r.onChange(info)
	}
}
