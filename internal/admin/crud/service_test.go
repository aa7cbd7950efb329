package crud

import (
	"context"
	"net/url"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelkit/panelkit/internal/admin/query"
	"github.com/panelkit/panelkit/internal/admin/registry"
	"github.com/panelkit/panelkit/internal/admin/schema"
	"github.com/panelkit/panelkit/internal/admin/store"
)

func floatPtr(f float64) *float64 { return &f }

func buildRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()

	require.NoError(t, r.RegisterApp(&registry.App{Name: "accounts"}))
	require.NoError(t, r.RegisterModel(&registry.Model{
		Name:       "group",
		App:        "accounts",
		Table:      "groups",
		PrimaryKey: "id",
		// Shown when a group appears as a relationship target.
		DisplayField: "name",
		Columns:      []string{"id", "name"},
	}))
	require.NoError(t, r.RegisterModel(&registry.Model{
		Name:       "user",
		App:        "accounts",
		Table:      "users",
		PrimaryKey: "id",
		Columns:    []string{"id", "username", "email", "age", "group_id"},
	}))

	require.NoError(t, r.RegisterView(&schema.View{
		Name:  "user_form",
		Model: "user",
		Kind:  schema.KindForm,
		Fields: []*schema.Field{
			{Name: "id", Type: schema.TypePrimaryKey, ReadOnly: true, Disabled: true},
			{Name: "username", Type: schema.TypeString, Required: true},
			{Name: "email", Type: schema.TypeString, Required: true},
			{Name: "age", Type: schema.TypeNumber, Rules: schema.Rules{MinValue: floatPtr(13)}},
			{Name: "group_id", Type: schema.TypeForeignKey, Relation: &schema.Relation{Model: "group"}},
		},
		CreationFields:      []string{"username", "email", "age", "group_id"},
		AllowedUpdateFields: []string{"email", "age", "group_id"},
	}))
	require.NoError(t, r.RegisterView(&schema.View{
		Name:  "user_groups_form",
		Model: "user",
		Kind:  schema.KindForm,
		Fields: []*schema.Field{
			{Name: "id", Type: schema.TypePrimaryKey, ReadOnly: true, Disabled: true},
			{Name: "username", Type: schema.TypeString, Required: true},
			{Name: "groups", Type: schema.TypeManyToMany, Relation: &schema.Relation{
				Model:        "group",
				JoinTable:    "user_groups",
				SourceColumn: "user_id",
				TargetColumn: "group_id",
			}},
		},
		CreationFields:      []string{"username", "groups"},
		AllowedUpdateFields: []string{"groups"},
	}))
	require.NoError(t, r.Freeze())
	return r
}

func newService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(
		buildRegistry(t),
		store.NewSQLStore(),
		store.NewTxManager(db),
		query.Limits{DefaultPageSize: 20, MaxPageSize: 100},
		nil,
	)
	return svc, mock
}

func TestServiceCreate(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO users (age, email, username) VALUES ($1, $2, $3) RETURNING age, email, group_id, id, username")).
		WithArgs(int64(30), "bob@example.com", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"age", "email", "group_id", "id", "username"}).
			AddRow(int64(30), "bob@example.com", nil, int64(1), "bob"))
	mock.ExpectCommit()

	record, err := svc.Create(context.Background(), "user_form", map[string]any{
		"username": "bob",
		"email":    "bob@example.com",
		"age":      30,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), record["id"])
	assert.Equal(t, "bob", record["username"])
	assert.Nil(t, record["group_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceCreateValidationFailure(t *testing.T) {
	svc, mock := newService(t)

	// The rejection happens before any database work.
	_, err := svc.Create(context.Background(), "user_form", map[string]any{
		"username": "bob",
	})
	require.Error(t, err)
	require.True(t, IsValidationFailed(err))

	result, ok := ValidationResult(err)
	require.True(t, ok)
	assert.True(t, result.Has("email", schema.CodeRequired))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceCreateRejectsUnknownField(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Create(context.Background(), "user_form", map[string]any{
		"username": "bob",
		"email":    "bob@example.com",
		"is_admin": true,
	})
	require.True(t, IsValidationFailed(err))
	result, _ := ValidationResult(err)
	assert.True(t, result.Has("is_admin", schema.CodeFieldNotAllowed))
}

func TestServiceRead(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, username, email, age, group_id FROM users WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "age", "group_id"}).
			AddRow(int64(1), "bob", "bob@example.com", int64(30), int64(2)))
	// The relationship expands to an id/display pair inside the same
	// transaction.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM groups WHERE id = $1")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(2), "staff"))
	mock.ExpectCommit()

	record, err := svc.Read(context.Background(), "user_form", int64(1))
	require.NoError(t, err)
	assert.Equal(t, "bob", record["username"])
	assert.Equal(t, map[string]any{"id": int64(2), "display": "staff"}, record["group_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceReadNotFound(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "age", "group_id"}))
	mock.ExpectRollback()

	_, err := svc.Read(context.Background(), "user_form", int64(404))
	assert.True(t, IsNotFound(err))
}

func TestServiceUpdate(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, username, email, age, group_id FROM users WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "age", "group_id"}).
			AddRow(int64(1), "bob", "bob@example.com", int64(30), nil))
	// Only the field the caller sent is written; merged stored values are
	// not echoed back into the UPDATE.
	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE users SET email = $1 WHERE id = $2 RETURNING age, email, group_id, id, username")).
		WithArgs("bob@corp.example.com", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"age", "email", "group_id", "id", "username"}).
			AddRow(int64(30), "bob@corp.example.com", nil, int64(1), "bob"))
	mock.ExpectCommit()

	record, err := svc.Update(context.Background(), "user_form", int64(1), map[string]any{
		"email": "bob@corp.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob@corp.example.com", record["email"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceUpdateForbiddenField(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "age", "group_id"}).
			AddRow(int64(1), "bob", "bob@example.com", int64(30), nil))
	mock.ExpectRollback()

	// username is outside the update allow-list, even as a no-op write of
	// its current value.
	_, err := svc.Update(context.Background(), "user_form", int64(1), map[string]any{
		"username": "bob",
	})
	require.True(t, IsValidationFailed(err))
	result, _ := ValidationResult(err)
	assert.True(t, result.Has("username", schema.CodeFieldNotAllowed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

const linkedGroupsQuery = "SELECT groups.id, groups.name FROM groups JOIN user_groups ON user_groups.group_id = groups.id WHERE user_groups.user_id = $1 ORDER BY groups.id ASC"

func TestServiceCreatePersistsLinks(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO users (username) VALUES ($1) RETURNING age, email, group_id, id, username")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"age", "email", "group_id", "id", "username"}).
			AddRow(nil, nil, nil, int64(1), "bob"))
	// The creation payload's group keys land in the join table within the
	// same transaction as the row insert.
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_groups WHERE user_id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2), ($1, $3)")).
		WithArgs(int64(1), int64(10), int64(20)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta(linkedGroupsQuery)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(10), "staff").
			AddRow(int64(20), "admins"))
	mock.ExpectCommit()

	record, err := svc.Create(context.Background(), "user_groups_form", map[string]any{
		"username": "bob",
		"groups":   []int{10, 20},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"id": int64(10), "display": "staff"},
		map[string]any{"id": int64(20), "display": "admins"},
	}, record["groups"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceUpdateReplacesLinks(t *testing.T) {
	svc, mock := newService(t)

	existing := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "username", "email", "age", "group_id"}).
			AddRow(int64(1), "bob", "bob@example.com", int64(30), nil)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, username, email, age, group_id FROM users WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(existing())
	// groups is not a stored column, so the delta is empty and no UPDATE is
	// issued; the row is re-read instead.
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, username, email, age, group_id FROM users WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(existing())
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_groups WHERE user_id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2)")).
		WithArgs(int64(1), int64(30)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(linkedGroupsQuery)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(30), "ops"))
	mock.ExpectCommit()

	record, err := svc.Update(context.Background(), "user_groups_form", int64(1), map[string]any{
		"groups": []int{30},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": int64(30), "display": "ops"}}, record["groups"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceUpdateClearsLinks(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, username, email, age, group_id FROM users WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "age", "group_id"}).
			AddRow(int64(1), "bob", "bob@example.com", int64(30), nil))
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, username, email, age, group_id FROM users WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "age", "group_id"}).
			AddRow(int64(1), "bob", "bob@example.com", int64(30), nil))
	// An empty list unlinks everything; no join-table insert follows.
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_groups WHERE user_id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta(linkedGroupsQuery)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	mock.ExpectCommit()

	record, err := svc.Update(context.Background(), "user_groups_form", int64(1), map[string]any{
		"groups": []any{},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{}, record["groups"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceReadExpandsLinks(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username FROM users WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(int64(1), "bob"))
	mock.ExpectQuery(regexp.QuoteMeta(linkedGroupsQuery)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(10), "staff"))
	mock.ExpectCommit()

	record, err := svc.Read(context.Background(), "user_groups_form", int64(1))
	require.NoError(t, err)
	assert.Equal(t, "bob", record["username"])
	assert.Equal(t, []any{map[string]any{"id": int64(10), "display": "staff"}}, record["groups"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceDelete(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Delete(context.Background(), "user_form", int64(1)))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM users").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := svc.Delete(context.Background(), "user_form", int64(404))
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceList(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE age >= $1")).
		WithArgs(int64(18)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, username, email, age, group_id FROM users WHERE age >= $1 ORDER BY username ASC, id ASC LIMIT $2 OFFSET $3")).
		WithArgs(int64(18), 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "age", "group_id"}).
			AddRow(int64(3), "carol", "carol@example.com", int64(25), nil).
			AddRow(int64(4), "dave", "dave@example.com", int64(40), nil))
	mock.ExpectCommit()

	params := url.Values{}
	params.Set("filter[age__gte]", "18")
	params.Set("sort", "username")
	params.Set("page", "2")
	params.Set("page_size", "2")

	page, err := svc.List(context.Background(), "user_form", params)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "carol", page.Items[0]["username"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceListExpandsLinks(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	// Link fields never reach the row SELECT; they resolve per record
	// through the join table.
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, username FROM users ORDER BY id ASC LIMIT $1 OFFSET $2")).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(int64(1), "bob"))
	mock.ExpectQuery(regexp.QuoteMeta(linkedGroupsQuery)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(10), "staff"))
	mock.ExpectCommit()

	page, err := svc.List(context.Background(), "user_groups_form", url.Values{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, []any{map[string]any{"id": int64(10), "display": "staff"}}, page.Items[0]["groups"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceListInvalidFilter(t *testing.T) {
	svc, mock := newService(t)

	params := url.Values{}
	params.Set("filter[age__gt]", "abc")

	_, err := svc.List(context.Background(), "user_form", params)
	require.Error(t, err)
	assert.True(t, IsInvalidFilter(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceListProjection(t *testing.T) {
	svc, mock := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, username FROM users ORDER BY id ASC LIMIT $1 OFFSET $2")).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).
			AddRow(int64(1), "bob"))
	mock.ExpectCommit()

	params := url.Values{}
	params.Set("fields", "id,username")

	page, err := svc.List(context.Background(), "user_form", params)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, map[string]any{"id": int64(1), "username": "bob"}, page.Items[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceUnknownView(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Read(context.Background(), "nonexistent_view", int64(1))
	assert.True(t, IsNotFound(err))
}
