package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/quave-io/frida-go/internal/domain"
)

// GetChannelByName loads a channel and its model's rules, failing with
// ErrConfig if no channel by that name exists (§4.5).
func (s *Store) GetChannelByName(ctx domain.Context, name string) (domain.Channel, domain.ScoringModel, []domain.ExpressionRule, error) {
	tracer := otel.Tracer("repo.scoring")
	ctx, span := tracer.Start(ctx, "scoring.GetChannelByName")
	defer span.End()
	span.SetAttributes(attribute.String("channel.name", name))

	channelQ := `SELECT id, name, model_id FROM channels WHERE name = $1`
	row := s.Pool.QueryRow(ctx, channelQ, name)
	var channel domain.Channel
	if err := row.Scan(&channel.ID, &channel.Name, &channel.ModelID); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Channel{}, domain.ScoringModel{}, nil, fmt.Errorf("op=scoring.get_channel name=%s: %w", name, domain.ErrConfig)
		}
		return domain.Channel{}, domain.ScoringModel{}, nil, fmt.Errorf("op=scoring.get_channel name=%s: %w: %w", name, domain.ErrStorage, err)
	}

	modelQ := `SELECT id, name FROM models WHERE id = $1`
	row = s.Pool.QueryRow(ctx, modelQ, channel.ModelID)
	var model domain.ScoringModel
	if err := row.Scan(&model.ID, &model.Name); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Channel{}, domain.ScoringModel{}, nil, fmt.Errorf("op=scoring.get_channel name=%s model_id=%d: %w", name, channel.ModelID, domain.ErrConfig)
		}
		return domain.Channel{}, domain.ScoringModel{}, nil, fmt.Errorf("op=scoring.get_channel name=%s: %w: %w", name, domain.ErrStorage, err)
	}

	rulesQ := `SELECT id, model_id, name, description, rule, score FROM scoring_rules WHERE model_id = $1 ORDER BY id`
	rows, err := s.Pool.Query(ctx, rulesQ, model.ID)
	if err != nil {
		return domain.Channel{}, domain.ScoringModel{}, nil, fmt.Errorf("op=scoring.get_channel name=%s: %w: %w", name, domain.ErrStorage, err)
	}
	defer rows.Close()

	var rules []domain.ExpressionRule
	for rows.Next() {
		var r domain.ExpressionRule
		if err := rows.Scan(&r.ID, &r.ModelID, &r.Name, &r.Description, &r.Rule, &r.Score); err != nil {
			return domain.Channel{}, domain.ScoringModel{}, nil, fmt.Errorf("op=scoring.get_channel name=%s: %w: %w", name, domain.ErrStorage, err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return domain.Channel{}, domain.ScoringModel{}, nil, fmt.Errorf("op=scoring.get_channel name=%s: %w: %w", name, domain.ErrStorage, err)
	}

	return channel, model, rules, nil
}

// SaveScoringEvent persists event and its triggered rule ids atomically in
// one explicit transaction (§4.5).
func (s *Store) SaveScoringEvent(ctx domain.Context, event domain.ScoringEvent, triggeredRuleIDs []int64) (int64, error) {
	tracer := otel.Tracer("repo.scoring")
	ctx, span := tracer.Start(ctx, "scoring.SaveScoringEvent")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("transaction.id", event.TransactionID),
		attribute.Int64("channel.id", event.ChannelID),
		attribute.Int("scoring.triggered_rules", len(triggeredRuleIDs)),
	)

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("op=scoring.save_event.begin_tx: %w: %w", domain.ErrStorage, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	insertEvent := `INSERT INTO scoring_events (transaction_id, channel_id, total_score, created_at)
	                VALUES ($1, $2, $3, now()) RETURNING id`
	row := tx.QueryRow(ctx, insertEvent, event.TransactionID, event.ChannelID, event.TotalScore)
	var eventID int64
	if err := row.Scan(&eventID); err != nil {
		return 0, fmt.Errorf("op=scoring.save_event: %w: %w", domain.ErrStorage, err)
	}

	for _, ruleID := range triggeredRuleIDs {
		insertTriggered := `INSERT INTO triggered_rules (scoring_event_id, rule_id) VALUES ($1, $2)`
		if _, err := tx.Exec(ctx, insertTriggered, eventID, ruleID); err != nil {
			return 0, fmt.Errorf("op=scoring.save_event.triggered: %w: %w", domain.ErrStorage, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("op=scoring.save_event.commit: %w: %w", domain.ErrStorage, err)
	}
	committed = true
	return eventID, nil
}
