package memorydb

import (
	"database/sql"
	"encoding/json"
	"time"
)

// CreateSkill inserts a brand new skill row. name must be unique, per
// .
func (s *Store) CreateSkill(rec SkillRecord) error {
	if rec.Owner == "" {
		rec.Owner = OwnerGlobal
	}
	if len(rec.SkillData) == 0 {
		rec.SkillData = json.RawMessage("{}")
	}
	if len(rec.TrainingProgress) == 0 {
		rec.TrainingProgress = json.RawMessage("{}")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		INSERT INTO skills(name, description, instructions, owner, skill_data, training_progress, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Name, rec.Description, rec.Instructions, rec.Owner, string(rec.SkillData), string(rec.TrainingProgress), now, now)
	return err
}

func (s *Store) GetSkill(name string) (*SkillRecord, error) {
	row := s.db.QueryRow(`SELECT name, description, instructions, owner, skill_data, training_progress, created_at, updated_at FROM skills WHERE name = ?`, name)
	return scanSkillRow(row)
}

// ListSkills returns every skill visible to user (global skills plus
// skills owned by user).
func (s *Store) ListSkills(user string) ([]SkillRecord, error) {
	rows, err := s.db.Query(`SELECT name, description, instructions, owner, skill_data, training_progress, created_at, updated_at FROM skills WHERE owner = ? OR owner = ? ORDER BY name`, OwnerGlobal, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SkillRecord
	for rows.Next() {
		rec, err := scanSkillRowFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// DeleteSkill removes a skill permanently; this is the only way a skill
// is removed, since ordinary updates only merge or clear its data.
func (s *Store) DeleteSkill(name string) error {
	res, err := s.db.Exec(`DELETE FROM skills WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSkill applies the deep-merge update semantics: update accepts
// any of three input shapes (direct fields, {skill_data: obj} wrapper,
// or {skill_data: null} clear sentinel); nested objects in skill_data
// merge recursively, arrays replace wholesale, and a null leaf deletes
// the field it names. instructions/description are top-level fields,
// never merged into skill_data.
func (s *Store) UpdateSkill(name string, update SkillUpdate) error {
	existing, err := s.GetSkill(name)
	if err != nil {
		return err
	}

	if update.Description != nil {
		existing.Description = *update.Description
	}
	if update.Instructions != nil {
		existing.Instructions = *update.Instructions
	}

	switch update.SkillDataMode {
	case SkillDataClear:
		existing.SkillData = json.RawMessage("{}")
	case SkillDataMerge:
		var current, patch map[string]any
		if err := json.Unmarshal(existing.SkillData, &current); err != nil || current == nil {
			current = map[string]any{}
		}
		if err := json.Unmarshal(update.SkillData, &patch); err != nil {
			return err
		}
		merged := DeepMerge(current, patch)
		data, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		existing.SkillData = data
	case SkillDataUnset:
		// no change
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.Exec(`
		UPDATE skills SET description = ?, instructions = ?, skill_data = ?, updated_at = ?
		WHERE name = ?
	`, existing.Description, existing.Instructions, string(existing.SkillData), now, name)
	return err
}

// SkillDataUpdateMode tags how SkillUpdate.SkillData should be applied:
// an explicit tagged variant (Set | Clear | Unset) in place of an
// overloaded null, so "no skill_data key" and "skill_data: null" are
// distinguishable.
type SkillDataUpdateMode int

const (
	SkillDataUnset SkillDataUpdateMode = iota
	SkillDataMerge
	SkillDataClear
)

// SkillUpdate is the normalized form of the three input shapes this
// requires an LLM-originated skill update to accept. Callers
// (toolregistry handlers) are responsible for normalizing a raw JSON
// object into this struct; see ParseSkillUpdate.
type SkillUpdate struct {
	Description   *string
	Instructions  *string
	SkillData     json.RawMessage
	SkillDataMode SkillDataUpdateMode
}

// ParseSkillUpdate accepts the three shapes named in :
//  1. direct fields: {description, instructions, skill_data: {...}}
//  2. wrapper: {skill_data: {...}}
//  3. clear sentinel: {skill_data: null}
func ParseSkillUpdate(raw map[string]any) (SkillUpdate, error) {
	var upd SkillUpdate

	if d, ok := raw["description"].(string); ok {
		upd.Description = &d
	}
	if i, ok := raw["instructions"].(string); ok {
		upd.Instructions = &i
	}

	sdRaw, hasSD := raw["skill_data"]
	if !hasSD {
		upd.SkillDataMode = SkillDataUnset
		return upd, nil
	}
	if sdRaw == nil {
		upd.SkillDataMode = SkillDataClear
		return upd, nil
	}
	data, err := json.Marshal(sdRaw)
	if err != nil {
		return upd, err
	}
	upd.SkillData = data
	upd.SkillDataMode = SkillDataMerge
	return upd, nil
}

// GetContextSkills returns name/description/instructions/owner rows for
// skills visible to user — the auto-injection helper the orchestrator
// calls when assembling a prompt's skill context.
func (s *Store) GetContextSkills(user string) ([]ContextSkillEntry, error) {
	recs, err := s.ListSkills(user)
	if err != nil {
		return nil, err
	}
	out := make([]ContextSkillEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, ContextSkillEntry{
			Name:         r.Name,
			Description:  r.Description,
			Instructions: r.Instructions,
			Owner:        r.Owner,
		})
	}
	return out, nil
}

func scanSkillRow(row *sql.Row) (*SkillRecord, error) {
	var rec SkillRecord
	var data, progress, created, updated string
	if err := row.Scan(&rec.Name, &rec.Description, &rec.Instructions, &rec.Owner, &data, &progress, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.SkillData = json.RawMessage(data)
	rec.TrainingProgress = json.RawMessage(progress)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &rec, nil
}

func scanSkillRowFromRows(rows *sql.Rows) (*SkillRecord, error) {
	var rec SkillRecord
	var data, progress, created, updated string
	if err := rows.Scan(&rec.Name, &rec.Description, &rec.Instructions, &rec.Owner, &data, &progress, &created, &updated); err != nil {
		return nil, err
	}
	rec.SkillData = json.RawMessage(data)
	rec.TrainingProgress = json.RawMessage(progress)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &rec, nil
}
