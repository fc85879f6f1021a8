package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pageflow/internal/entities"
)

type FlowRepository struct {
	db *pgxpool.Pool
}

func NewFlowRepository(db *pgxpool.Pool) *FlowRepository {
	return &FlowRepository{db: db}
}

// ActiveFlows returns a page's active flows with their steps, ordered by
// creation time so matching tie-breaks are stable across invocations.
func (r *FlowRepository) ActiveFlows(ctx context.Context, pageID string) ([]entities.Flow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, page_id, user_id, name, trigger_type, COALESCE(trigger_value, ''), is_active, description, created_at
		FROM flows WHERE page_id = $1 AND is_active = TRUE
		ORDER BY created_at`,
		pageID)
	if err != nil {
		return nil, err
	}
	flows, err := scanFlows(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachSteps(ctx, flows); err != nil {
		return nil, err
	}
	return flows, nil
}

// ListForUser returns all of a user's flows (any page, any state) with
// steps, for the dashboard.
func (r *FlowRepository) ListForUser(ctx context.Context, userID string) ([]entities.Flow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, page_id, user_id, name, trigger_type, COALESCE(trigger_value, ''), is_active, description, created_at
		FROM flows WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	flows, err := scanFlows(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachSteps(ctx, flows); err != nil {
		return nil, err
	}
	return flows, nil
}

func (r *FlowRepository) GetForUser(ctx context.Context, userID, id string) (*entities.Flow, error) {
	var flow entities.Flow
	err := r.db.QueryRow(ctx, `
		SELECT id, page_id, user_id, name, trigger_type, COALESCE(trigger_value, ''), is_active, description, created_at
		FROM flows WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&flow.ID, &flow.PageID, &flow.UserID, &flow.Name, &flow.TriggerType,
		&flow.TriggerValue, &flow.IsActive, &flow.Description, &flow.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	flows := []entities.Flow{flow}
	if err := r.attachSteps(ctx, flows); err != nil {
		return nil, err
	}
	return &flows[0], nil
}

// Create inserts a flow. Keyword trigger values are stored lower-cased
// so matching never has to normalize stored data.
func (r *FlowRepository) Create(ctx context.Context, flow *entities.Flow) error {
	if flow.ID == "" {
		flow.ID = uuid.NewString()
	}
	var triggerValue interface{}
	if flow.TriggerType == entities.TriggerKeyword {
		flow.TriggerValue = strings.ToLower(strings.TrimSpace(flow.TriggerValue))
		triggerValue = flow.TriggerValue
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO flows (id, page_id, user_id, name, trigger_type, trigger_value, is_active, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		flow.ID, flow.PageID, flow.UserID, flow.Name, flow.TriggerType,
		triggerValue, flow.IsActive, flow.Description,
	).Scan(&flow.CreatedAt)
}

func (r *FlowRepository) SetActive(ctx context.Context, userID, id string, active bool) (bool, error) {
	tag, err := r.db.Exec(ctx,
		"UPDATE flows SET is_active = $3 WHERE id = $1 AND user_id = $2",
		id, userID, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *FlowRepository) Delete(ctx context.Context, userID, id string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		"DELETE FROM flows WHERE id = $1 AND user_id = $2",
		id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AddStep appends a validated step to a flow the user owns.
func (r *FlowRepository) AddStep(ctx context.Context, userID string, step *entities.FlowStep) (bool, error) {
	owned, err := r.ownsFlow(ctx, userID, step.FlowID)
	if err != nil || !owned {
		return false, err
	}
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO flow_steps (id, flow_id, step_order, step_type, config)
		VALUES ($1, $2, $3, $4, $5)`,
		step.ID, step.FlowID, step.StepOrder, step.StepType, step.Config)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *FlowRepository) DeleteStep(ctx context.Context, userID, stepID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM flow_steps s USING flows f
		WHERE s.id = $1 AND f.id = s.flow_id AND f.user_id = $2`,
		stepID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *FlowRepository) ownsFlow(ctx context.Context, userID, flowID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM flows WHERE id = $1 AND user_id = $2)",
		flowID, userID).Scan(&exists)
	return exists, err
}

func scanFlows(rows pgx.Rows) ([]entities.Flow, error) {
	defer rows.Close()
	var flows []entities.Flow
	for rows.Next() {
		var flow entities.Flow
		if err := rows.Scan(&flow.ID, &flow.PageID, &flow.UserID, &flow.Name, &flow.TriggerType,
			&flow.TriggerValue, &flow.IsActive, &flow.Description, &flow.CreatedAt); err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}
	return flows, rows.Err()
}

// attachSteps loads steps for all given flows in one query, ascending
// step order.
func (r *FlowRepository) attachSteps(ctx context.Context, flows []entities.Flow) error {
	if len(flows) == 0 {
		return nil
	}
	ids := make([]string, len(flows))
	index := make(map[string]*entities.Flow, len(flows))
	for i := range flows {
		ids[i] = flows[i].ID
		index[flows[i].ID] = &flows[i]
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, flow_id, step_order, step_type, config
		FROM flow_steps WHERE flow_id = ANY($1)
		ORDER BY flow_id, step_order`,
		ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var step entities.FlowStep
		if err := rows.Scan(&step.ID, &step.FlowID, &step.StepOrder, &step.StepType, &step.Config); err != nil {
			return err
		}
		if flow, ok := index[step.FlowID]; ok {
			flow.Steps = append(flow.Steps, step)
		}
	}
	return rows.Err()
}
