package auth

import (
	"context"
	"fmt"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Tasks interface {
	repository.Repository[*Task]

	Create(ctx context.Context, record *Task, criteria ...repository.InsertCriteria) (*Task, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Task, criteria ...repository.InsertCriteria) (*Task, error)

	ListAll(ctx context.Context) ([]*Task, error)
	ListAllTx(ctx context.Context, tx bun.IDB) ([]*Task, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Task, error)
	ListByOwnerTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID) ([]*Task, error)

	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type tasks struct {
	repository.Repository[*Task]
	db *bun.DB
}

var (
	_ Tasks                        = (*tasks)(nil)
	_ repository.Repository[*Task] = (*tasks)(nil)
)

func NewTasksRepository(db *bun.DB) Tasks {
	repo := repository.NewRepository[*Task](db, repository.ModelHandlers[*Task]{
		NewRecord: func() *Task { return &Task{} },
		GetID: func(t *Task) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Task, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &tasks{
		Repository: repo,
		db:         db,
	}
}

func (a *tasks) Create(ctx context.Context, record *Task, criteria ...repository.InsertCriteria) (*Task, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *tasks) CreateTx(ctx context.Context, tx bun.IDB, record *Task, criteria ...repository.InsertCriteria) (*Task, error) {
	prepareTaskDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *tasks) ListAll(ctx context.Context) ([]*Task, error) {
	return a.ListAllTx(ctx, a.db)
}

func (a *tasks) ListAllTx(ctx context.Context, tx bun.IDB) ([]*Task, error) {
	records := []*Task{}
	err := tx.NewSelect().
		Model(&records).
		Order("tsk.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *tasks) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Task, error) {
	return a.ListByOwnerTx(ctx, a.db, ownerID)
}

func (a *tasks) ListByOwnerTx(ctx context.Context, tx bun.IDB, ownerID uuid.UUID) ([]*Task, error) {
	records := []*Task{}
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", ownerID).
		Order("tsk.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *tasks) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return a.DeleteByIDTx(ctx, a.db, id)
}

func (a *tasks) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	record := &Task{ID: id}
	res, err := tx.NewDelete().
		Model(record).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}

	if rows, rerr := res.RowsAffected(); rerr == nil && rows == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

// GetByID scans by primary key. The identifier column for tasks is the id
// itself, the fallback GetByIdentifier would otherwise require.
func (a *tasks) getByID(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Task, error) {
	record := &Task{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", "id"), id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func prepareTaskDefaults(record *Task) {
	if record == nil {
		return
	}

	if record.Status == "" {
		record.Status = TaskStatusPending
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
