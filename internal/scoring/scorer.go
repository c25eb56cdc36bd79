// Package scoring implements the Expression Scorer: it evaluates a
// channel's rule expressions over a feature bag and persists the
// resulting ScoringEvent and TriggeredRule rows (spec §4.5).
package scoring

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/quave-io/frida-go/internal/adapter/observability"
	"github.com/quave-io/frida-go/internal/domain"
)

// ExpressionScorer evaluates a channel's rules against a feature bag. It is
// loaded once at startup and is immutable thereafter (§5: "the scorer's
// rule list is loaded once at startup and is immutable; no locking
// required").
//
// Feature names are only known per-evaluation, so the CEL environment that
// declares them (and therefore full identifier resolution) is necessarily
// built per call to ScoreAndSave, not at load time. What load time can and
// does check is syntax: every rule is parsed once against a bare
// environment so a malformed expression fails fast with ErrConfig, per
// §9's "reject ... at parse time" note applied to the degree the contract
// allows given a runtime-only variable universe.
type ExpressionScorer struct {
	channel domain.Channel
	model   domain.ScoringModel
	rules   []domain.ExpressionRule
	storage domain.CommonStorage
	events  domain.EventPublisher
}

// NewExpressionScorer loads channelName and its model's rules once, parsing
// each rule's expression against a bare environment to catch syntax errors
// before the scorer ever reaches the hot path.
func NewExpressionScorer(ctx domain.Context, scoringStorage domain.ScoringStorage, storage domain.CommonStorage, events domain.EventPublisher, channelName string) (*ExpressionScorer, error) {
	channel, model, rules, err := scoringStorage.GetChannelByName(ctx, channelName)
	if err != nil {
		return nil, fmt.Errorf("op=scoring.NewExpressionScorer channel=%s: %w: %w", channelName, domain.ErrConfig, err)
	}

	bareEnv, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("op=scoring.NewExpressionScorer: %w: %w", domain.ErrConfig, err)
	}
	for _, r := range rules {
		if _, iss := bareEnv.Parse(r.Rule); iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("op=scoring.NewExpressionScorer rule=%s: %w: %w", r.Name, domain.ErrConfig, iss.Err())
		}
	}

	return &ExpressionScorer{
		channel: channel,
		model:   model,
		rules:   rules,
		storage: storage,
		events:  events,
	}, nil
}

// ChannelID returns the id of the loaded channel.
func (s *ExpressionScorer) ChannelID() int64 { return s.channel.ID }

// ScoreAndSave builds the evaluation environment from features (feature
// name -> CEL-typed value), evaluates every rule, and persists a
// ScoringEvent plus its TriggeredRule rows atomically. A feature name
// appearing more than once is rejected with ErrEvaluation before any rule
// runs (§4.5).
func (s *ExpressionScorer) ScoreAndSave(ctx domain.Context, transactionID int64, activationID int64, features []domain.Feature) (domain.ScoringEvent, error) {
	start := time.Now()

	env, vars, err := buildEnvironment(features)
	if err != nil {
		return domain.ScoringEvent{}, fmt.Errorf("op=scoring.ScoreAndSave: %w", err)
	}

	totalScore := 0
	var triggeredIDs []int64
	for _, rule := range s.rules {
		triggered, err := evaluateRule(env, vars, rule.Rule)
		if err != nil {
			slog.Error("rule evaluation error",
				slog.String("rule", rule.Name),
				slog.String("expression", rule.Rule),
				slog.Any("error", err))
			observability.RecordRuleError(s.channel.Name, rule.Name)
			continue
		}
		if !triggered {
			continue
		}
		totalScore += rule.Score
		triggeredIDs = append(triggeredIDs, rule.ID)
	}

	event := domain.ScoringEvent{
		TransactionID: transactionID,
		ChannelID:     s.channel.ID,
		TotalScore:    totalScore,
		CreatedAt:     time.Now(),
	}

	eventID, err := s.storage.SaveScoringEvent(ctx, event, triggeredIDs)
	if err != nil {
		return domain.ScoringEvent{}, fmt.Errorf("op=scoring.ScoreAndSave: %w: %w", domain.ErrStorage, err)
	}
	event.ID = eventID

	observability.ObserveScoring(s.channel.Name, time.Since(start), totalScore)

	if s.events != nil {
		triggered := make([]domain.TriggeredRule, 0, len(triggeredIDs))
		for _, id := range triggeredIDs {
			triggered = append(triggered, domain.TriggeredRule{ScoringEventID: eventID, RuleID: id})
		}
		if err := s.events.PublishScoringEvent(ctx, transactionID, event, triggered); err != nil {
			slog.Warn("scoring event publish failed", slog.Int64("transaction_id", transactionID), slog.Any("error", err))
		}
	}

	return event, nil
}

// evaluateRule compiles expr against env (cheap: already-declared
// variables, no further parsing of the feature bag) and evaluates it. A
// rule whose expression doesn't type-check or fails to evaluate returns an
// error, which the caller logs and treats as "did not trigger", matching
// §4.5's "evaluation errors for one rule do not abort the run"; a rule
// that evaluates to a non-boolean value returns false with no error.
func evaluateRule(env *cel.Env, vars map[string]any, expr string) (bool, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return false, iss.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	return ok && b, nil
}

// buildEnvironment declares one CEL variable per feature name, typed per
// FeatureKind, and rejects a duplicate feature name with ErrEvaluation
// before the environment is ever used to compile a rule (§4.5).
func buildEnvironment(features []domain.Feature) (*cel.Env, map[string]any, error) {
	seen := map[string]bool{}
	opts := make([]cel.EnvOption, 0, len(features))
	vars := make(map[string]any, len(features))

	for _, f := range features {
		if seen[f.Name] {
			return nil, nil, fmt.Errorf("%w: duplicate feature name %q", domain.ErrEvaluation, f.Name)
		}
		seen[f.Name] = true

		celVal, celType, err := toCELValue(f.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: feature %q: %w", domain.ErrEvaluation, f.Name, err)
		}
		opts = append(opts, cel.Variable(f.Name, celType))
		vars[f.Name] = celVal
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrEvaluation, err)
	}
	return env, vars, nil
}

// toCELValue maps a domain.FeatureValue onto a CEL-evaluable Go value and
// its declared cel.Type.
func toCELValue(v domain.FeatureValue) (any, *cel.Type, error) {
	switch v.Kind {
	case domain.FeatureInt:
		return v.IntVal, cel.IntType, nil
	case domain.FeatureDouble:
		return v.DoubleVal, cel.DoubleType, nil
	case domain.FeatureString:
		return v.StringVal, cel.StringType, nil
	case domain.FeatureBool:
		return v.BoolVal, cel.BoolType, nil
	case domain.FeatureDateTime:
		return types.Timestamp{Time: v.DateTimeVal}, cel.TimestampType, nil
	case domain.FeatureIntList:
		return v.IntListVal, cel.ListType(cel.IntType), nil
	case domain.FeatureDoubleList:
		return v.DoubleListVal, cel.ListType(cel.DoubleType), nil
	case domain.FeatureStringList:
		return v.StringListVal, cel.ListType(cel.StringType), nil
	case domain.FeatureBoolList:
		return v.BoolListVal, cel.ListType(cel.BoolType), nil
	default:
		return nil, nil, fmt.Errorf("unsupported feature kind %v", v.Kind)
	}
}

