package gormrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agentbridge/internal/adapter/repo/gorm/model"
	"agentbridge/internal/app/ports"
	"agentbridge/internal/domain/world"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RunRepo struct {
	db *gorm.DB
	tx TxManager
}

func NewRunRepo(db *gorm.DB) RunRepo {
	return RunRepo{db: db, tx: NewTxManager(db)}
}

// Save writes the run and its events in one transaction.
func (r RunRepo) Save(ctx context.Context, run ports.RunRecord) error {
	events := make([]model.StepEvent, 0, len(run.Events))
	for i, e := range run.Events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode event %d: %w", i, err)
		}
		events = append(events, model.StepEvent{RunID: run.ID, Seq: int32(i), Kind: e.Kind, Payload: payload})
	}
	row := model.StepRun{
		RunID:      run.ID,
		SessionID:  run.SessionID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Code:       run.Code,
		Programs:   run.Programs,
		Outcome:    run.Outcome,
		Message:    run.Message,
		EventCount: int32(len(run.Events)),
	}
	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		db := dbFrom(ctx, r.db)
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ports.ErrConflict
		}
		if len(events) == 0 {
			return nil
		}
		return db.Create(&events).Error
	})
}

func (r RunRepo) Get(ctx context.Context, id string) (ports.RunRecord, error) {
	db := dbFrom(ctx, r.db)
	var row model.StepRun
	err := db.Where(&model.StepRun{RunID: id}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.RunRecord{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.RunRecord{}, err
	}
	var rows []model.StepEvent
	err = db.Where(&model.StepEvent{RunID: id}).
		Clauses(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: "seq"}}}}).
		Find(&rows).Error
	if err != nil {
		return ports.RunRecord{}, err
	}
	run := toRecord(row)
	run.Events = make([]world.Event, 0, len(rows))
	for _, e := range rows {
		var payload map[string]any
		if len(e.Payload) > 0 {
			_ = json.Unmarshal(e.Payload, &payload)
		}
		run.Events = append(run.Events, world.NewEvent(e.Kind, payload))
	}
	return run, nil
}

// List returns runs newest first without their events.
func (r RunRepo) List(ctx context.Context, q ports.RunQuery) ([]ports.RunRecord, error) {
	query := dbFrom(ctx, r.db).Model(&model.StepRun{})
	if !q.From.IsZero() {
		query = query.Where("started_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		query = query.Where("started_at <= ?", q.To)
	}
	query = query.Clauses(clause.OrderBy{
		Columns: []clause.OrderByColumn{{Column: clause.Column{Name: "started_at"}, Desc: true}},
	})
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	var rows []model.StepRun
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ports.RunRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRecord(row))
	}
	return out, nil
}

func toRecord(row model.StepRun) ports.RunRecord {
	return ports.RunRecord{
		ID:         row.RunID,
		SessionID:  row.SessionID,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
		Code:       row.Code,
		Programs:   row.Programs,
		Outcome:    row.Outcome,
		Message:    row.Message,
	}
}
