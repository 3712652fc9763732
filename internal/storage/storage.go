// Package storage is the SQLite-backed storage gateway: it owns the
// Endpoint, User, Group, GroupMember, and RequestLog tables, the uniqueness
// invariants scoped by endpointId, and cascading endpoint deletes.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pranems/scimserver/internal/filter"
	"github.com/pranems/scimserver/scim"
)

// Store is the sole storage backend: a pure-Go SQLite connection plus the
// CRUD operations every resource service needs.
type Store struct {
	db *sqlx.DB
}

// Open creates (or attaches to) a SQLite database at dsn and ensures the
// schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer keeps WAL contention simple

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Endpoint is a provisioning tenant: its config map holds the Entra
// compatibility flags resolved by internal/endpoint.
type Endpoint struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	DisplayName string         `db:"display_name" json:"displayName"`
	Description string         `db:"description" json:"description"`
	Config      map[string]any `db:"-" json:"config"`
	ConfigJSON  string         `db:"config" json:"-"`
	Active      bool           `db:"active" json:"active"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

func (e *Endpoint) marshalConfig() error {
	data, err := json.Marshal(e.Config)
	if err != nil {
		return err
	}
	e.ConfigJSON = string(data)
	return nil
}

func (e *Endpoint) unmarshalConfig() error {
	if e.ConfigJSON == "" {
		e.Config = map[string]any{}
		return nil
	}
	return json.Unmarshal([]byte(e.ConfigJSON), &e.Config)
}

func (s *Store) CreateEndpoint(ctx context.Context, e *Endpoint) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	if err := e.marshalConfig(); err != nil {
		return fmt.Errorf("marshal endpoint config: %w", err)
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO endpoints (id, name, display_name, description, config, active, created_at, updated_at)
		VALUES (:id, :name, :display_name, :description, :config, :active, :created_at, :updated_at)
	`, e)
	if err != nil {
		if isUniqueViolation(err) {
			return scim.ErrUniqueness(fmt.Sprintf("endpoint name %q already exists", e.Name))
		}
		return fmt.Errorf("insert endpoint: %w", err)
	}
	return nil
}

func (s *Store) GetEndpoint(ctx context.Context, id string) (*Endpoint, error) {
	var e Endpoint
	err := s.db.GetContext(ctx, &e, `SELECT * FROM endpoints WHERE id = ?`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, scim.ErrNotFound("Endpoint", id)
		}
		return nil, fmt.Errorf("get endpoint: %w", err)
	}
	if err := e.unmarshalConfig(); err != nil {
		return nil, fmt.Errorf("unmarshal endpoint config: %w", err)
	}
	return &e, nil
}

func (s *Store) GetEndpointByName(ctx context.Context, name string) (*Endpoint, error) {
	var e Endpoint
	err := s.db.GetContext(ctx, &e, `SELECT * FROM endpoints WHERE name = ?`, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, scim.ErrNotFound("Endpoint", name)
		}
		return nil, fmt.Errorf("get endpoint by name: %w", err)
	}
	if err := e.unmarshalConfig(); err != nil {
		return nil, fmt.Errorf("unmarshal endpoint config: %w", err)
	}
	return &e, nil
}

func (s *Store) ListEndpoints(ctx context.Context) ([]*Endpoint, error) {
	var rows []Endpoint
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM endpoints ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	out := make([]*Endpoint, len(rows))
	for i := range rows {
		if err := rows[i].unmarshalConfig(); err != nil {
			return nil, fmt.Errorf("unmarshal endpoint config: %w", err)
		}
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *Store) UpdateEndpoint(ctx context.Context, e *Endpoint) error {
	e.UpdatedAt = time.Now().UTC()
	if err := e.marshalConfig(); err != nil {
		return fmt.Errorf("marshal endpoint config: %w", err)
	}
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE endpoints SET name = :name, display_name = :display_name, description = :description,
			config = :config, active = :active, updated_at = :updated_at
		WHERE id = :id
	`, e)
	if err != nil {
		if isUniqueViolation(err) {
			return scim.ErrUniqueness(fmt.Sprintf("endpoint name %q already exists", e.Name))
		}
		return fmt.Errorf("update endpoint: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return scim.ErrNotFound("Endpoint", e.ID)
	}
	return nil
}

// DeleteEndpoint removes the endpoint and, via ON DELETE CASCADE, every
// User/Group/GroupMember it owns.
func (s *Store) DeleteEndpoint(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM endpoints WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return scim.ErrNotFound("Endpoint", id)
	}
	return nil
}

// --- Users ---

type userRow struct {
	ID            int64     `db:"id"`
	ScimID        string    `db:"scim_id"`
	EndpointID    string    `db:"endpoint_id"`
	ExternalID    *string   `db:"external_id"`
	UserName      string    `db:"user_name"`
	UserNameLower string    `db:"user_name_lower"`
	Active        bool      `db:"active"`
	RawPayload    string    `db:"raw_payload"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func userToResource(r userRow) (map[string]any, error) {
	res := map[string]any{}
	if r.RawPayload != "" {
		if err := json.Unmarshal([]byte(r.RawPayload), &res); err != nil {
			return nil, fmt.Errorf("unmarshal user payload: %w", err)
		}
	}
	res["id"] = r.ScimID
	res["userName"] = r.UserName
	res["active"] = r.Active
	if r.ExternalID != nil {
		res["externalId"] = *r.ExternalID
	}
	if _, ok := res["schemas"]; !ok {
		res["schemas"] = []string{scim.SchemaUser}
	}
	res["meta"] = map[string]any{
		"resourceType": "User",
		"created":      r.CreatedAt.UTC().Format(time.RFC3339),
		"lastModified": r.UpdatedAt.UTC().Format(time.RFC3339),
		"version":      scim.NewETagGenerator().Generate(r.UpdatedAt.UTC().Format(time.RFC3339Nano)),
	}
	return res, nil
}

func resourceToUserRow(endpointID string, res map[string]any) userRow {
	userName, _ := res["userName"].(string)
	active := true
	if a, ok := res["active"]; ok {
		if b, ok := scim.CoerceBool(a).(bool); ok {
			active = b
		}
	}

	payload := make(map[string]any, len(res))
	for k, v := range res {
		switch strings.ToLower(k) {
		case "id", "username", "active", "externalid", "meta", "schemas":
			continue
		default:
			payload[k] = v
		}
	}

	row := userRow{
		EndpointID:    endpointID,
		UserName:      userName,
		UserNameLower: strings.ToLower(userName),
		Active:        active,
	}
	if ext, ok := res["externalId"].(string); ok && ext != "" {
		row.ExternalID = &ext
	}
	data, _ := json.Marshal(payload)
	row.RawPayload = string(data)
	return row
}

func (s *Store) CreateUser(ctx context.Context, endpointID string, res map[string]any) (map[string]any, error) {
	row := resourceToUserRow(endpointID, res)
	row.ScimID = uuid.NewString()
	now := time.Now().UTC()
	row.CreatedAt, row.UpdatedAt = now, now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (scim_id, endpoint_id, external_id, user_name, user_name_lower, active, raw_payload, created_at, updated_at)
		VALUES (:scim_id, :endpoint_id, :external_id, :user_name, :user_name_lower, :active, :raw_payload, :created_at, :updated_at)
	`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, scim.ErrUniqueness(fmt.Sprintf("userName %q already exists", row.UserName))
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return userToResource(row)
}

func (s *Store) GetUser(ctx context.Context, endpointID, scimID string) (map[string]any, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE endpoint_id = ? AND scim_id = ?`, endpointID, scimID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, scim.ErrNotFound("User", scimID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return userToResource(row)
}

func (s *Store) GetUserByUserName(ctx context.Context, endpointID, userName string) (map[string]any, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE endpoint_id = ? AND user_name_lower = ?`, endpointID, strings.ToLower(userName))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, scim.ErrNotFound("User", userName)
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return userToResource(row)
}

// ListUsers returns every User for the endpoint. When hint is non-nil, the
// eq-on-allowlisted-column filter is pushed into the WHERE clause; the
// caller is still responsible for applying the full in-memory predicate
// (the pushdown is a narrowing optimization, not a substitute).
func (s *Store) ListUsers(ctx context.Context, endpointID string, hint *filter.PushdownHint) ([]map[string]any, error) {
	query := `SELECT * FROM users WHERE endpoint_id = ?`
	args := []any{endpointID}

	if hint != nil {
		switch hint.Attribute {
		case "username":
			query += ` AND user_name_lower = ?`
			args = append(args, strings.ToLower(hint.Value))
		case "externalid":
			query += ` AND external_id = ?`
			args = append(args, hint.Value)
		case "id":
			query += ` AND scim_id = ?`
			args = append(args, hint.Value)
		}
	}
	query += ` ORDER BY created_at, id`

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		res, err := userToResource(row)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Store) ReplaceUser(ctx context.Context, endpointID, scimID string, res map[string]any) (map[string]any, error) {
	row := resourceToUserRow(endpointID, res)
	row.ScimID = scimID
	row.UpdatedAt = time.Now().UTC()

	result, err := s.db.NamedExecContext(ctx, `
		UPDATE users SET external_id = :external_id, user_name = :user_name, user_name_lower = :user_name_lower,
			active = :active, raw_payload = :raw_payload, updated_at = :updated_at
		WHERE endpoint_id = :endpoint_id AND scim_id = :scim_id
	`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, scim.ErrUniqueness(fmt.Sprintf("userName %q already exists", row.UserName))
		}
		return nil, fmt.Errorf("replace user: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, scim.ErrNotFound("User", scimID)
	}

	var created time.Time
	if err := s.db.GetContext(ctx, &created, `SELECT created_at FROM users WHERE endpoint_id = ? AND scim_id = ?`, endpointID, scimID); err == nil {
		row.CreatedAt = created
	}
	return userToResource(row)
}

// MutateUser loads a user, applies fn to its resource map, and persists the
// result in one round trip. fn is expected to update first-class fields
// (userName/externalId/active) in place on the returned map.
func (s *Store) MutateUser(ctx context.Context, endpointID, scimID string, fn func(map[string]any) error) (map[string]any, error) {
	current, err := s.GetUser(ctx, endpointID, scimID)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}
	return s.ReplaceUser(ctx, endpointID, scimID, current)
}

func (s *Store) DeleteUser(ctx context.Context, endpointID, scimID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE endpoint_id = ? AND scim_id = ?`, endpointID, scimID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return scim.ErrNotFound("User", scimID)
	}
	return nil
}

// --- Groups ---

type groupRow struct {
	ID                int64     `db:"id"`
	ScimID            string    `db:"scim_id"`
	EndpointID        string    `db:"endpoint_id"`
	ExternalID        *string   `db:"external_id"`
	DisplayName       string    `db:"display_name"`
	DisplayNameLower  string    `db:"display_name_lower"`
	RawPayload        string    `db:"raw_payload"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

type memberRow struct {
	ID           int64   `db:"id"`
	GroupID      int64   `db:"group_id"`
	MemberScimID *string `db:"member_scim_id"`
	Value        string  `db:"value"`
	Display      *string `db:"display"`
	MemberType   *string `db:"member_type"`
}

func groupToResource(r groupRow, members []memberRow) (map[string]any, error) {
	res := map[string]any{}
	if r.RawPayload != "" {
		if err := json.Unmarshal([]byte(r.RawPayload), &res); err != nil {
			return nil, fmt.Errorf("unmarshal group payload: %w", err)
		}
	}
	res["id"] = r.ScimID
	res["displayName"] = r.DisplayName
	if r.ExternalID != nil {
		res["externalId"] = *r.ExternalID
	}
	if _, ok := res["schemas"]; !ok {
		res["schemas"] = []string{scim.SchemaGroup}
	}

	memberList := make([]any, 0, len(members))
	for _, m := range members {
		entry := map[string]any{"value": m.Value}
		if m.Display != nil {
			entry["display"] = *m.Display
		}
		if m.MemberType != nil {
			entry["type"] = *m.MemberType
		}
		memberList = append(memberList, entry)
	}
	res["members"] = memberList

	res["meta"] = map[string]any{
		"resourceType": "Group",
		"created":      r.CreatedAt.UTC().Format(time.RFC3339),
		"lastModified": r.UpdatedAt.UTC().Format(time.RFC3339),
		"version":      scim.NewETagGenerator().Generate(r.UpdatedAt.UTC().Format(time.RFC3339Nano)),
	}
	return res, nil
}

func resourceToGroupRow(endpointID string, res map[string]any) groupRow {
	displayName, _ := res["displayName"].(string)

	payload := make(map[string]any, len(res))
	for k, v := range res {
		switch strings.ToLower(k) {
		case "id", "displayname", "externalid", "meta", "schemas", "members":
			continue
		default:
			payload[k] = v
		}
	}

	row := groupRow{
		EndpointID:       endpointID,
		DisplayName:      displayName,
		DisplayNameLower: strings.ToLower(displayName),
	}
	if ext, ok := res["externalId"].(string); ok && ext != "" {
		row.ExternalID = &ext
	}
	data, _ := json.Marshal(payload)
	row.RawPayload = string(data)
	return row
}

// memberRowsFromResource extracts the members array out of a Group resource
// map, resolving memberId against endpoint users where the value matches a
// known scimId. Member resolution happens outside any write transaction, so
// a slow User lookup never holds a Group write lock.
func (s *Store) memberRowsFromResource(ctx context.Context, endpointID string, res map[string]any) []memberRow {
	members, _ := res["members"].([]any)
	rows := make([]memberRow, 0, len(members))
	for _, m := range members {
		mm, ok := m.(map[string]any)
		if !ok {
			continue
		}
		value, _ := mm["value"].(string)
		if value == "" {
			continue
		}
		row := memberRow{Value: value}
		if d, ok := mm["display"].(string); ok {
			row.Display = &d
		}
		if t, ok := mm["type"].(string); ok {
			row.MemberType = &t
		}
		if _, err := s.GetUser(ctx, endpointID, value); err == nil {
			id := value
			row.MemberScimID = &id
		}
		rows = append(rows, row)
	}
	return rows
}

func (s *Store) CreateGroup(ctx context.Context, endpointID string, res map[string]any) (map[string]any, error) {
	row := resourceToGroupRow(endpointID, res)
	row.ScimID = uuid.NewString()
	now := time.Now().UTC()
	row.CreatedAt, row.UpdatedAt = now, now

	members := s.memberRowsFromResource(ctx, endpointID, res)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create group: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.NamedExecContext(ctx, `
		INSERT INTO groups (scim_id, endpoint_id, external_id, display_name, display_name_lower, raw_payload, created_at, updated_at)
		VALUES (:scim_id, :endpoint_id, :external_id, :display_name, :display_name_lower, :raw_payload, :created_at, :updated_at)
	`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, scim.ErrUniqueness(fmt.Sprintf("displayName %q already exists", row.DisplayName))
		}
		return nil, fmt.Errorf("insert group: %w", err)
	}
	groupID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("resolve inserted group id: %w", err)
	}

	if err := insertMembers(ctx, tx, groupID, members); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create group: %w", err)
	}

	return groupToResource(row, members)
}

// insertMembers clears and repopulates a group's membership rows within tx,
// so the column update and the membership replace are never visible apart.
func insertMembers(ctx context.Context, tx *sqlx.Tx, groupID int64, members []memberRow) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("clear group members: %w", err)
	}
	for i := range members {
		members[i].GroupID = groupID
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO group_members (group_id, member_scim_id, value, display, member_type)
			VALUES (:group_id, :member_scim_id, :value, :display, :member_type)
		`, members[i])
		if err != nil {
			return fmt.Errorf("insert group member: %w", err)
		}
	}
	return nil
}

func (s *Store) getGroupRow(ctx context.Context, endpointID, scimID string) (groupRow, error) {
	var row groupRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM groups WHERE endpoint_id = ? AND scim_id = ?`, endpointID, scimID)
	if err == sql.ErrNoRows {
		return row, scim.ErrNotFound("Group", scimID)
	}
	return row, err
}

func (s *Store) getMembers(ctx context.Context, groupID int64) ([]memberRow, error) {
	var members []memberRow
	if err := s.db.SelectContext(ctx, &members, `SELECT * FROM group_members WHERE group_id = ? ORDER BY id`, groupID); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return members, nil
}

func (s *Store) GetGroup(ctx context.Context, endpointID, scimID string) (map[string]any, error) {
	row, err := s.getGroupRow(ctx, endpointID, scimID)
	if err != nil {
		return nil, err
	}
	members, err := s.getMembers(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return groupToResource(row, members)
}

func (s *Store) GetGroupByDisplayName(ctx context.Context, endpointID, displayName string) (map[string]any, error) {
	var row groupRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM groups WHERE endpoint_id = ? AND display_name_lower = ?`, endpointID, strings.ToLower(displayName))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, scim.ErrNotFound("Group", displayName)
		}
		return nil, fmt.Errorf("get group by displayName: %w", err)
	}
	members, err := s.getMembers(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	return groupToResource(row, members)
}

func (s *Store) ListGroups(ctx context.Context, endpointID string, hint *filter.PushdownHint) ([]map[string]any, error) {
	query := `SELECT * FROM groups WHERE endpoint_id = ?`
	args := []any{endpointID}

	if hint != nil {
		switch hint.Attribute {
		case "displayname":
			query += ` AND display_name_lower = ?`
			args = append(args, strings.ToLower(hint.Value))
		case "externalid":
			query += ` AND external_id = ?`
			args = append(args, hint.Value)
		case "id":
			query += ` AND scim_id = ?`
			args = append(args, hint.Value)
		}
	}

	var rows []groupRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		members, err := s.getMembers(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		res, err := groupToResource(row, members)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Store) ReplaceGroup(ctx context.Context, endpointID, scimID string, res map[string]any) (map[string]any, error) {
	existing, err := s.getGroupRow(ctx, endpointID, scimID)
	if err != nil {
		return nil, err
	}

	row := resourceToGroupRow(endpointID, res)
	row.ScimID = scimID
	row.CreatedAt = existing.CreatedAt
	row.UpdatedAt = time.Now().UTC()

	members := s.memberRowsFromResource(ctx, endpointID, res)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace group: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		UPDATE groups SET external_id = :external_id, display_name = :display_name, display_name_lower = :display_name_lower,
			raw_payload = :raw_payload, updated_at = :updated_at
		WHERE endpoint_id = :endpoint_id AND scim_id = :scim_id
	`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, scim.ErrUniqueness(fmt.Sprintf("displayName %q already exists", row.DisplayName))
		}
		return nil, fmt.Errorf("replace group: %w", err)
	}

	if err := insertMembers(ctx, tx, existing.ID, members); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace group: %w", err)
	}

	return groupToResource(row, members)
}

// MutateGroup loads a group (as a resource map, members included), applies
// fn, and persists the result.
func (s *Store) MutateGroup(ctx context.Context, endpointID, scimID string, fn func(map[string]any) error) (map[string]any, error) {
	current, err := s.GetGroup(ctx, endpointID, scimID)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}
	return s.ReplaceGroup(ctx, endpointID, scimID, current)
}

func (s *Store) DeleteGroup(ctx context.Context, endpointID, scimID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE endpoint_id = ? AND scim_id = ?`, endpointID, scimID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return scim.ErrNotFound("Group", scimID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "UNIQUE CONSTRAINT")
}

// CountEndpointResources returns the number of Users, Groups, and logged
// requests owned by an endpoint, for the admin stats endpoint.
func (s *Store) CountEndpointResources(ctx context.Context, endpointID string) (userCount, groupCount, requestCount int, err error) {
	if err = s.db.GetContext(ctx, &userCount, `SELECT COUNT(*) FROM users WHERE endpoint_id = ?`, endpointID); err != nil {
		return 0, 0, 0, fmt.Errorf("count users: %w", err)
	}
	if err = s.db.GetContext(ctx, &groupCount, `SELECT COUNT(*) FROM groups WHERE endpoint_id = ?`, endpointID); err != nil {
		return 0, 0, 0, fmt.Errorf("count groups: %w", err)
	}
	if err = s.db.GetContext(ctx, &requestCount, `SELECT COUNT(*) FROM request_logs WHERE endpoint_id = ?`, endpointID); err != nil {
		return 0, 0, 0, fmt.Errorf("count request logs: %w", err)
	}
	return userCount, groupCount, requestCount, nil
}
