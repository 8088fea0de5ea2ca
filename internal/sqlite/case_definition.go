package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/pbinitiative/zencmmn/pkg/cmmn/runtime"
	"github.com/pbinitiative/zencmmn/pkg/storage"
)

const caseDefinitionColumns = "id, key, name, category, version, deployment_id, resource_name, checksum, history_time_to_live, start_message, data"

var caseDefinitionOrderColumns = map[storage.CaseDefinitionOrderField]string{
	storage.CaseDefinitionOrderById:           "id",
	storage.CaseDefinitionOrderByKey:          "key",
	storage.CaseDefinitionOrderByName:         "name",
	storage.CaseDefinitionOrderByCategory:     "category",
	storage.CaseDefinitionOrderByVersion:      "version",
	storage.CaseDefinitionOrderByDeploymentId: "deployment_id",
}

func scanCaseDefinition(rows *sql.Rows) (runtime.CaseDefinition, error) {
	var d runtime.CaseDefinition
	err := rows.Scan(&d.Id, &d.Key, &d.Name, &d.Category, &d.Version, &d.DeploymentId, &d.ResourceName,
		&d.Checksum, &d.HistoryTimeToLive, &d.StartMessage, &d.Data)
	return d, err
}

func saveCaseDefinitionStatement(d runtime.CaseDefinition) statement {
	if d.Data == nil {
		d.Data = []byte{}
	}
	return statement{
		query: "INSERT INTO case_definition (" + caseDefinitionColumns + ") VALUES (" + placeholders(11) + ")" +
			" ON CONFLICT (id) DO UPDATE SET key = excluded.key, name = excluded.name, category = excluded.category," +
			" version = excluded.version, deployment_id = excluded.deployment_id, resource_name = excluded.resource_name," +
			" checksum = excluded.checksum, history_time_to_live = excluded.history_time_to_live," +
			" start_message = excluded.start_message, data = excluded.data",
		args: []any{d.Id, d.Key, d.Name, d.Category, d.Version, d.DeploymentId, d.ResourceName,
			d.Checksum, d.HistoryTimeToLive, d.StartMessage, d.Data},
	}
}

func caseDefinitionWhere(c storage.CaseDefinitionCriteria) *where {
	w := &where{}
	w.addIf(c.Id != "", "id = ?", c.Id)
	w.addIf(c.Key != "", "key = ?", c.Key)
	w.addIf(c.KeyLike != "", "key LIKE ?", c.KeyLike)
	w.addIf(c.Name != "", "name = ?", c.Name)
	w.addIf(c.NameLike != "", "name LIKE ?", c.NameLike)
	w.addIf(c.Category != "", "category = ?", c.Category)
	w.addIf(c.CategoryLike != "", "category LIKE ?", c.CategoryLike)
	w.addIf(c.Version > 0, "version = ?", c.Version)
	w.addIf(c.DeploymentId != "", "deployment_id = ?", c.DeploymentId)
	w.addIf(c.ResourceName != "", "resource_name = ?", c.ResourceName)
	w.addIf(c.ResourceNameLike != "", "resource_name LIKE ?", c.ResourceNameLike)
	w.addIf(c.Latest, "version = (SELECT MAX(l.version) FROM case_definition l WHERE l.key = case_definition.key)")
	return w
}

func (d *DB) findCaseDefinitions(ctx context.Context, query string, args []any) ([]runtime.CaseDefinition, error) {
	res := make([]runtime.CaseDefinition, 0)
	err := d.queryRows(ctx, query, args, func(rows *sql.Rows) error {
		def, err := scanCaseDefinition(rows)
		if err != nil {
			return err
		}
		res = append(res, def)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, def := range res {
		d.defCache.Add(def.Id, def)
	}
	return res, nil
}

var _ storage.CaseDefinitionStorageReader = &DB{}

func (d *DB) FindCaseDefinitionById(ctx context.Context, id string) (runtime.CaseDefinition, error) {
	if def, ok := d.defCache.Get(id); ok {
		return def, nil
	}
	res, err := d.findCaseDefinitions(ctx, "SELECT "+caseDefinitionColumns+" FROM case_definition WHERE id = ?", []any{id})
	if err != nil {
		return runtime.CaseDefinition{}, err
	}
	if len(res) == 0 {
		return runtime.CaseDefinition{}, storage.ErrNotFound
	}
	return res[0], nil
}

func (d *DB) FindLatestCaseDefinitionByKey(ctx context.Context, key string) (runtime.CaseDefinition, error) {
	res, err := d.findCaseDefinitions(ctx, "SELECT "+caseDefinitionColumns+" FROM case_definition WHERE key = ? ORDER BY version DESC LIMIT 1", []any{key})
	if err != nil {
		return runtime.CaseDefinition{}, err
	}
	if len(res) == 0 {
		return runtime.CaseDefinition{}, storage.ErrNotFound
	}
	return res[0], nil
}

func (d *DB) FindCaseDefinitions(ctx context.Context, criteria storage.CaseDefinitionCriteria, page storage.Page) ([]runtime.CaseDefinition, error) {
	w := caseDefinitionWhere(criteria)
	order := make([]string, 0, len(criteria.OrderBy)+1)
	for _, o := range criteria.OrderBy {
		column, ok := caseDefinitionOrderColumns[o.Field]
		if !ok {
			continue
		}
		if o.Desc {
			column += " DESC"
		}
		order = append(order, column)
	}
	order = append(order, "id")
	query := "SELECT " + caseDefinitionColumns + " FROM case_definition" + w.String() +
		" ORDER BY " + strings.Join(order, ", ") + limit(page.FirstResult, page.MaxResults)
	return d.findCaseDefinitions(ctx, query, w.args)
}

func (d *DB) CountCaseDefinitions(ctx context.Context, criteria storage.CaseDefinitionCriteria) (int64, error) {
	w := caseDefinitionWhere(criteria)
	return d.count(ctx, "SELECT COUNT(*) FROM case_definition"+w.String(), w.args)
}

func (d *DB) count(ctx context.Context, query string, args []any) (int64, error) {
	var count int64
	found := false
	err := d.queryRows(ctx, query, args, func(rows *sql.Rows) error {
		found = true
		return rows.Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.New("count query returned no rows")
	}
	return count, nil
}

var _ storage.CaseDefinitionStorageWriter = &DB{}

func (d *DB) SaveCaseDefinition(ctx context.Context, definition runtime.CaseDefinition) error {
	if err := d.exec(ctx, saveCaseDefinitionStatement(definition)); err != nil {
		return err
	}
	d.defCache.Remove(definition.Id)
	return nil
}
