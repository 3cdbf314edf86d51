package sqlite

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	attemptRecordsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "lesson_id", Type: field.TypeString},
		{Name: "score", Type: field.TypeInt},
		{Name: "total_questions", Type: field.TypeInt},
		{Name: "review", Type: field.TypeJSON},
		{Name: "submitted_at", Type: field.TypeInt64},
		{Name: "comment", Type: field.TypeString, Default: ""},
	}
	attemptRecordsTable = &schema.Table{
		Name:       "attempt_records",
		Columns:    attemptRecordsColumns,
		PrimaryKey: []*schema.Column{attemptRecordsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "attemptrecord_user_id_lesson_id", Columns: []*schema.Column{attemptRecordsColumns[1], attemptRecordsColumns[2]}},
		},
	}

	overridesColumns = []*schema.Column{
		{Name: "user_id", Type: field.TypeString},
		{Name: "lesson_id", Type: field.TypeString},
		{Name: "allowed", Type: field.TypeInt},
	}
	overridesTable = &schema.Table{
		Name:       "attempt_overrides",
		Columns:    overridesColumns,
		PrimaryKey: []*schema.Column{overridesColumns[0], overridesColumns[1]},
	}

	requestsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "lesson_id", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeInt64},
		{Name: "status", Type: field.TypeString},
		{Name: "resolved_at", Type: field.TypeInt64, Nullable: true},
	}
	requestsTable = &schema.Table{
		Name:       "attempt_requests",
		Columns:    requestsColumns,
		PrimaryKey: []*schema.Column{requestsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "attemptrequest_status_created_at", Columns: []*schema.Column{requestsColumns[4], requestsColumns[3]}},
		},
	}

	eventConfigsColumns = []*schema.Column{
		{Name: "name", Type: field.TypeString},
		{Name: "config", Type: field.TypeJSON},
		{Name: "active", Type: field.TypeBool, Default: false},
	}
	eventConfigsTable = &schema.Table{
		Name:       "event_configs",
		Columns:    eventConfigsColumns,
		PrimaryKey: []*schema.Column{eventConfigsColumns[0]},
	}

	tables = []*schema.Table{
		attemptRecordsTable,
		overridesTable,
		requestsTable,
		eventConfigsTable,
	}
)
