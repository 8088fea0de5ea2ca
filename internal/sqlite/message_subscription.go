package sqlite

import (
	"context"
	"database/sql"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

const messageSubscriptionColumns = "id, message_name, case_definition_id, case_definition_key, case_instance_id, execution_id, activity_id, created_at"

func saveMessageSubscriptionStatement(s runtime.MessageSubscription) statement {
	return statement{
		query: "INSERT OR REPLACE INTO message_subscription (" + messageSubscriptionColumns + ") VALUES (" + placeholders(8) + ")",
		args: []any{s.Id, s.MessageName, s.CaseDefinitionId, s.CaseDefinitionKey, s.CaseInstanceId, s.ExecutionId,
			s.ActivityId, toMillis(s.CreatedAt)},
	}
}

func deleteMessageSubscriptionStatement(id string) statement {
	return statement{query: "DELETE FROM message_subscription WHERE id = ?", args: []any{id}}
}

var _ storage.MessageSubscriptionStorageReader = &DB{}

func (d *DB) FindMessageSubscriptions(ctx context.Context, c storage.MessageSubscriptionCriteria) ([]runtime.MessageSubscription, error) {
	w := &where{}
	w.addIf(c.MessageName != "", "message_name = ?", c.MessageName)
	w.addIf(c.CaseDefinitionId != "", "case_definition_id = ?", c.CaseDefinitionId)
	w.addIf(c.CaseInstanceId != "", "case_instance_id = ?", c.CaseInstanceId)
	w.addIf(c.ExecutionId != "", "execution_id = ?", c.ExecutionId)
	w.addIf(c.StartOnly, "execution_id = ''")
	w.addIf(c.ExecutionOnly, "execution_id <> ''")

	res := make([]runtime.MessageSubscription, 0)
	query := "SELECT " + messageSubscriptionColumns + " FROM message_subscription" + w.String() + " ORDER BY created_at, id"
	err := d.queryRows(ctx, query, w.args, func(rows *sql.Rows) error {
		var (
			s         runtime.MessageSubscription
			createdAt int64
		)
		if err := rows.Scan(&s.Id, &s.MessageName, &s.CaseDefinitionId, &s.CaseDefinitionKey, &s.CaseInstanceId,
			&s.ExecutionId, &s.ActivityId, &createdAt); err != nil {
			return err
		}
		s.CreatedAt = fromMillis(createdAt)
		res = append(res, s)
		return nil
	})
	return res, err
}

var _ storage.MessageSubscriptionStorageWriter = &DB{}

func (d *DB) SaveMessageSubscription(ctx context.Context, subscription runtime.MessageSubscription) error {
	return d.exec(ctx, saveMessageSubscriptionStatement(subscription))
}

func (d *DB) DeleteMessageSubscription(ctx context.Context, id string) error {
	return d.exec(ctx, deleteMessageSubscriptionStatement(id))
}
