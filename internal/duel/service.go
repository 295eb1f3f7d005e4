package duel

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kollektive-hackathon/clash-duels-backend/internal/clashroyale"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/pubsub"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/reconcile"
	"github.com/rs/zerolog/log"
)

const DefaultMonitorDeadline = 30 * time.Minute

var wagerAmountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

type PlayerLookup interface {
	Player(ctx context.Context, tag string) (*model.Player, error)
}

type ResultReconciler interface {
	Reconcile(ctx context.Context, creatorTag, opponentTag string, since time.Time) (reconcile.Outcome, error)
}

// Watcher runs the background result polling for accepted duels.
type Watcher interface {
	Watch(duel model.Duel)
	Stop(duelId string)
}

type ServiceConfig struct {
	MonitorDeadline time.Duration
	Now             func() time.Time
	NewId           func(now time.Time) string
}

type Service struct {
	repo       Repository
	players    PlayerLookup
	reconciler ResultReconciler
	watcher    Watcher
	publisher  pubsub.Publisher

	monitorDeadline time.Duration
	now             func() time.Time
	newId           func(now time.Time) string
}

func NewService(
	repo Repository,
	players PlayerLookup,
	reconciler ResultReconciler,
	watcher Watcher,
	publisher pubsub.Publisher,
	cfg ServiceConfig,
) *Service {
	s := &Service{
		repo:            repo,
		players:         players,
		reconciler:      reconciler,
		watcher:         watcher,
		publisher:       publisher,
		monitorDeadline: cfg.MonitorDeadline,
		now:             cfg.Now,
		newId:           cfg.NewId,
	}
	if s.monitorDeadline <= 0 {
		s.monitorDeadline = DefaultMonitorDeadline
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newId == nil {
		s.newId = NewDuelId
	}
	if s.publisher == nil {
		s.publisher = pubsub.NoopPublisher{}
	}
	return s
}

// NewDuelId builds CR_<unix millis>_<9 base36 chars>. Unique enough for a
// single store, not a security token.
func NewDuelId(now time.Time) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return fmt.Sprintf("CR_%d_%s", now.UnixMilli(), suffix)
}

type CreateDuelRequest struct {
	PlayerTag   string      `json:"playerTag"`
	WagerAmount WagerAmount `json:"wagerAmount"`
	Token       string      `json:"token"`
	// PlayerName, when set, must match the looked up name case-insensitively.
	PlayerName string `json:"playerName,omitempty"`
}

func (s *Service) Create(ctx context.Context, req CreateDuelRequest) (*model.Duel, *reject.ProblemWithTrace) {
	token, details := validateCreate(req)
	if len(details) > 0 {
		return nil, validationProblem(details)
	}

	player, problem := s.lookupPlayer(ctx, req.PlayerTag)
	if problem != nil {
		return nil, problem
	}
	if req.PlayerName != "" && !strings.EqualFold(strings.TrimSpace(req.PlayerName), player.Name) {
		return nil, nameMismatchProblem()
	}

	now := s.now()
	duel := &model.Duel{
		Id:              s.newId(now),
		Status:          model.DuelPending,
		CreatorTag:      player.Tag,
		CreatorName:     player.Name,
		CreatorTrophies: player.Trophies,
		WagerAmount:     string(req.WagerAmount),
		WagerToken:      token,
		CreatedAt:       now,
	}
	if err := s.repo.Create(ctx, duel); err != nil {
		return nil, upstreamProblem(err)
	}

	log.Info().Str("duelId", duel.Id).Str("creatorTag", duel.CreatorTag).
		Str("wager", duel.WagerAmount+" "+string(duel.WagerToken)).Msg("Duel created")
	s.publish(ctx, EventCreated, *duel)
	return duel, nil
}

func (s *Service) Accept(ctx context.Context, id string, playerTag string) (*model.Duel, *reject.ProblemWithTrace) {
	if strings.TrimSpace(playerTag) == "" {
		return nil, validationProblem([]reject.ProblemDetail{{Property: "playerTag", Info: "Player tag is required", Code: "required"}})
	}

	current, problem := s.Get(ctx, id)
	if problem != nil {
		return nil, problem
	}
	if current.Status != model.DuelPending {
		return nil, invalidStateProblem("Duel is no longer available", nil)
	}

	player, problem := s.lookupPlayer(ctx, playerTag)
	if problem != nil {
		return nil, problem
	}
	if clashroyale.SameTag(player.Tag, current.CreatorTag) {
		return nil, ownDuelProblem()
	}

	now := s.now()
	accepted, err := s.repo.Accept(ctx, id, AcceptInput{
		Opponent:      model.Party{Tag: player.Tag, Name: player.Name, Trophies: player.Trophies},
		AcceptedAt:    now,
		WatchDeadline: now.Add(s.monitorDeadline),
	})
	if err != nil {
		return nil, s.transitionProblem(err, "Duel is no longer available")
	}

	log.Info().Str("duelId", id).Str("opponentTag", player.Tag).
		Time("watchDeadline", *accepted.WatchDeadline).Msg("Duel accepted")
	s.watcher.Watch(*accepted)
	s.publish(ctx, EventAccepted, *accepted)
	return accepted, nil
}

// Verify runs one synchronous reconciliation for an accepted duel.
func (s *Service) Verify(ctx context.Context, id string) (*model.Duel, *reject.ProblemWithTrace) {
	current, problem := s.Get(ctx, id)
	if problem != nil {
		return nil, problem
	}
	if current.Status.Terminal() {
		return nil, invalidStateProblem("Duel is already resolved", nil)
	}
	if current.Status != model.DuelAccepted {
		return nil, invalidStateProblem("Duel is not in progress", nil)
	}
	if current.OpponentTag == nil || current.AcceptedAt == nil {
		err := fmt.Errorf("accepted duel %s is missing opponent or acceptance time", id)
		return nil, reject.WithTrace(reject.UnexpectedProblem(err), err)
	}

	outcome, err := s.reconciler.Reconcile(ctx, current.CreatorTag, *current.OpponentTag, *current.AcceptedAt)
	if errors.Is(err, reconcile.ErrConflict) {
		log.Warn().Err(err).Str("duelId", id).Msg("Battle logs disagree on duel result")
		return nil, conflictProblem(err)
	}
	if err != nil {
		return nil, upstreamProblem(err)
	}

	switch outcome.Kind {
	case reconcile.NotFound:
		return nil, notYetResolvedProblem()
	case reconcile.Draw:
		return nil, drawProblem()
	}

	completed, problem := s.complete(ctx, id, outcome)
	if problem != nil {
		return nil, problem
	}
	s.watcher.Stop(id)
	return completed, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (*model.Duel, *reject.ProblemWithTrace) {
	cancelled, err := s.repo.Cancel(ctx, id, []model.DuelStatus{model.DuelPending, model.DuelAccepted}, s.now())
	if err != nil {
		return nil, s.transitionProblem(err, "Duel can no longer be cancelled")
	}

	s.watcher.Stop(id)
	log.Info().Str("duelId", id).Msg("Duel cancelled")
	s.publish(ctx, EventCancelled, *cancelled)
	return cancelled, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Duel, *reject.ProblemWithTrace) {
	duel, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFoundProblem(err)
	}
	if err != nil {
		return nil, upstreamProblem(err)
	}
	return duel, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]model.Duel, int64, *reject.ProblemWithTrace) {
	if filter.PlayerTag != "" {
		filter.PlayerTag = clashroyale.FormatTag(filter.PlayerTag)
	}
	duels, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, upstreamProblem(err)
	}
	return duels, total, nil
}

// Complete records a decided outcome found by the monitor. A duel that already
// left ACCEPTED is not an error: some other path resolved it first.
func (s *Service) Complete(ctx context.Context, id string, outcome reconcile.Outcome) error {
	_, problem := s.complete(ctx, id, outcome)
	if problem != nil && !errors.Is(problem, ErrNotTransitioned) {
		return problem
	}
	return nil
}

// Expire cancels an accepted duel whose watch deadline passed.
func (s *Service) Expire(ctx context.Context, id string) error {
	expired, err := s.repo.Cancel(ctx, id, []model.DuelStatus{model.DuelAccepted}, s.now())
	if errors.Is(err, ErrNotTransitioned) || errors.Is(err, ErrNotFound) {
		log.Debug().Str("duelId", id).Msg("Duel already resolved before expiry")
		return nil
	}
	if err != nil {
		return fmt.Errorf("expire duel %s: %w", id, err)
	}

	log.Info().Str("duelId", id).Msg("Duel cancelled due to timeout, no battle found")
	s.publish(ctx, EventExpired, *expired)
	return nil
}

// Rehydrate restarts watching for persisted accepted duels and expires those
// whose deadline passed while no process was watching.
func (s *Service) Rehydrate(ctx context.Context) (resumed int, expired int, err error) {
	watched, err := s.repo.ListWatching(ctx)
	if err != nil {
		return 0, 0, err
	}

	now := s.now()
	for _, duel := range watched {
		deadline := watchDeadline(duel, s.monitorDeadline)
		if now.After(deadline) {
			if err := s.Expire(ctx, duel.Id); err != nil {
				log.Warn().Err(err).Str("duelId", duel.Id).Msg("Failed to expire overdue duel during rehydration")
				continue
			}
			expired++
			continue
		}
		duel.WatchDeadline = &deadline
		s.watcher.Watch(duel)
		resumed++
	}

	log.Info().Int("resumed", resumed).Int("expired", expired).Msg("Battle monitors rehydrated")
	return resumed, expired, nil
}

func (s *Service) complete(ctx context.Context, id string, outcome reconcile.Outcome) (*model.Duel, *reject.ProblemWithTrace) {
	completed, err := s.repo.Complete(ctx, id, CompleteInput{
		WinnerTag:      outcome.WinnerTag,
		BattleTime:     outcome.BattleTime,
		CreatorCrowns:  outcome.CreatorCrowns,
		OpponentCrowns: outcome.OpponentCrowns,
		CompletedAt:    s.now(),
	})
	if err != nil {
		return nil, s.transitionProblem(err, "Duel is not in progress")
	}

	log.Info().Str("duelId", id).Str("winnerTag", outcome.WinnerTag).
		Int("creatorCrowns", outcome.CreatorCrowns).Int("opponentCrowns", outcome.OpponentCrowns).
		Msg("Duel completed")
	s.publish(ctx, EventCompleted, *completed)
	return completed, nil
}

func (s *Service) lookupPlayer(ctx context.Context, tag string) (*model.Player, *reject.ProblemWithTrace) {
	if !clashroyale.ValidTag(tag) {
		return nil, invalidPlayerProblem(fmt.Errorf("malformed tag %q", tag))
	}
	player, err := s.players.Player(ctx, clashroyale.FormatTag(tag))
	if errors.Is(err, clashroyale.ErrPlayerNotFound) {
		return nil, invalidPlayerProblem(err)
	}
	if err != nil {
		log.Warn().Err(err).Str("playerTag", tag).Msg("Player lookup failed")
		return nil, upstreamProblem(err)
	}
	if player.Tag == "" {
		player.Tag = clashroyale.FormatTag(tag)
	}
	return player, nil
}

func (s *Service) transitionProblem(err error, staleTitle string) *reject.ProblemWithTrace {
	switch {
	case errors.Is(err, ErrNotFound):
		return notFoundProblem(err)
	case errors.Is(err, ErrNotTransitioned):
		return invalidStateProblem(staleTitle, err)
	default:
		return upstreamProblem(err)
	}
}

func (s *Service) publish(ctx context.Context, eventType EventType, duel model.Duel) {
	s.publisher.Publish(ctx, newDuelEvent(eventType, duel, s.now()))
}

func watchDeadline(duel model.Duel, fallback time.Duration) time.Time {
	if duel.WatchDeadline != nil {
		return *duel.WatchDeadline
	}
	if duel.AcceptedAt != nil {
		return duel.AcceptedAt.Add(fallback)
	}
	return time.Time{}
}

func validateCreate(req CreateDuelRequest) (model.Token, []reject.ProblemDetail) {
	var details []reject.ProblemDetail
	if strings.TrimSpace(req.PlayerTag) == "" {
		details = append(details, reject.ProblemDetail{Property: "playerTag", Info: "Player tag is required", Code: "required"})
	}

	amount := strings.TrimSpace(string(req.WagerAmount))
	switch {
	case amount == "":
		details = append(details, reject.ProblemDetail{Property: "wagerAmount", Info: "Wager amount is required", Code: "required"})
	case !wagerAmountPattern.MatchString(amount):
		details = append(details, reject.ProblemDetail{Property: "wagerAmount", Info: "Wager amount must be a decimal number", Code: "format"})
	case !positive(amount):
		details = append(details, reject.ProblemDetail{Property: "wagerAmount", Info: "Wager amount must be positive", Code: "range"})
	}

	token, ok := model.ParseToken(req.Token)
	switch {
	case strings.TrimSpace(req.Token) == "":
		details = append(details, reject.ProblemDetail{Property: "token", Info: "Token is required", Code: "required"})
	case !ok:
		details = append(details, reject.ProblemDetail{Property: "token", Info: "Unsupported token " + req.Token, Code: "enum"})
	}
	return token, details
}

func positive(amount string) bool {
	return strings.Trim(amount, "0.") != ""
}

// WagerAmount accepts both "10.5" and 10.5 on the wire and keeps the decimal text.
type WagerAmount string

func (w *WagerAmount) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		*w = ""
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return err
		}
		*w = WagerAmount(strings.TrimSpace(unquoted))
		return nil
	}
	*w = WagerAmount(text)
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
