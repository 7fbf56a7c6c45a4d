// Package memory provides in-memory implementations of every store
// interface, for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/milestone"
	"github.com/warp/absence-engine/sickness"
	"github.com/warp/absence-engine/trigger"
)

// Store holds everything in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	cases       map[string]sickness.SicknessCase
	transitions map[string][]sickness.CaseTransition // keyed by case ID, creation order

	configs map[string]milestone.MilestoneConfig // keyed by config ID
	actions map[string]milestone.MilestoneAction // keyed by action ID

	triggerConfigs map[string]trigger.TriggerConfig
	alerts         map[string]trigger.TriggerAlert
	alertPairs     map[string]string // configID+"|"+caseID -> alert ID

	audit []engine.AuditEntry
}

var (
	_ sickness.TxStore    = (*Store)(nil)
	_ milestone.Store     = (*Store)(nil)
	_ milestone.CaseState = (*Store)(nil)
	_ trigger.Store       = (*Store)(nil)
	_ trigger.CaseHistory = (*Store)(nil)
	_ engine.AuditLog     = (*Store)(nil)
)

func New() *Store {
	return &Store{
		cases:          make(map[string]sickness.SicknessCase),
		transitions:    make(map[string][]sickness.CaseTransition),
		configs:        make(map[string]milestone.MilestoneConfig),
		actions:        make(map[string]milestone.MilestoneAction),
		triggerConfigs: make(map[string]trigger.TriggerConfig),
		alerts:         make(map[string]trigger.TriggerAlert),
		alertPairs:     make(map[string]string),
	}
}

// SeedDefaults loads the system-default milestone catalog, mirroring what
// the sqlite migration does.
func (m *Store) SeedDefaults() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range milestone.SystemDefaults() {
		c.ID = uuid.NewString()
		m.configs[c.ID] = c
	}
}

// WithTx runs fn against the same store. The memory store offers no
// rollback; tests exercise transactional boundaries against sqlite.
func (m *Store) WithTx(_ context.Context, fn func(sickness.Store) error) error {
	return fn(m)
}

// =============================================================================
// CASES
// =============================================================================

func (m *Store) InsertCase(_ context.Context, c *sickness.SicknessCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[c.ID] = *c
	return nil
}

func (m *Store) GetCase(_ context.Context, orgID, caseID string) (*sickness.SicknessCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cases[caseID]
	if !ok || c.OrganisationID != orgID {
		return nil, engine.ErrNotFound
	}
	out := c
	return &out, nil
}

func (m *Store) ListCasesByEmployee(_ context.Context, orgID, employeeID string) ([]sickness.SicknessCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []sickness.SicknessCase
	for _, c := range m.cases {
		if c.OrganisationID == orgID && c.EmployeeID == employeeID {
			out = append(out, c)
		}
	}
	sortCases(out)
	return out, nil
}

func (m *Store) ListCases(_ context.Context, orgID string, filter sickness.CaseFilter) ([]sickness.SicknessCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []sickness.SicknessCase
	for _, c := range m.cases {
		if c.OrganisationID != orgID {
			continue
		}
		if filter.EmployeeID != "" && c.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, c)
	}
	sortCases(out)
	return out, nil
}

func sortCases(cases []sickness.SicknessCase) {
	sort.Slice(cases, func(i, j int) bool {
		if !cases[i].StartDate.Equal(cases[j].StartDate) {
			return cases[i].StartDate.Before(cases[j].StartDate)
		}
		return cases[i].ID < cases[j].ID
	})
}

func (m *Store) UpdateCaseStatus(_ context.Context, caseID string, from, to sickness.CaseStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = time.Now()
	m.cases[caseID] = c
	return true, nil
}

func (m *Store) UpdateCaseDates(_ context.Context, c *sickness.SicknessCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.cases[c.ID]
	if !ok {
		return engine.ErrNotFound
	}
	stored.StartDate = c.StartDate
	stored.EndDate = c.EndDate
	stored.WorkingDaysLost = c.WorkingDaysLost
	stored.IsLongTerm = c.IsLongTerm
	stored.UpdatedAt = c.UpdatedAt
	m.cases[c.ID] = stored
	return nil
}

func (m *Store) SetLongTerm(_ context.Context, caseID string, longTerm bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[caseID]
	if !ok {
		return engine.ErrNotFound
	}
	c.IsLongTerm = longTerm
	m.cases[caseID] = c
	return nil
}

func (m *Store) AppendTransition(_ context.Context, t sickness.CaseTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[t.CaseID] = append(m.transitions[t.CaseID], t)
	return nil
}

func (m *Store) ListTransitions(_ context.Context, caseID string) ([]sickness.CaseTransition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]sickness.CaseTransition, len(m.transitions[caseID]))
	copy(out, m.transitions[caseID])
	return out, nil
}

func (m *Store) IsCaseClosed(_ context.Context, caseID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cases[caseID]
	if !ok {
		return false, engine.ErrNotFound
	}
	return c.Status == sickness.StatusClosed, nil
}

// =============================================================================
// MILESTONE CONFIGS & ACTIONS
// =============================================================================

func (m *Store) ListDefaultMilestones(_ context.Context) ([]milestone.MilestoneConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []milestone.MilestoneConfig
	for _, c := range m.configs {
		if c.IsDefault() {
			out = append(out, c)
		}
	}
	sortConfigs(out)
	return out, nil
}

func (m *Store) ListOrgMilestones(_ context.Context, orgID string) ([]milestone.MilestoneConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []milestone.MilestoneConfig
	for _, c := range m.configs {
		if c.OrganisationID == orgID {
			out = append(out, c)
		}
	}
	sortConfigs(out)
	return out, nil
}

func sortConfigs(configs []milestone.MilestoneConfig) {
	sort.Slice(configs, func(i, j int) bool {
		if configs[i].DayOffset != configs[j].DayOffset {
			return configs[i].DayOffset < configs[j].DayOffset
		}
		return configs[i].MilestoneKey < configs[j].MilestoneKey
	})
}

func (m *Store) GetOrgMilestone(_ context.Context, orgID, milestoneKey string) (*milestone.MilestoneConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.configs {
		if c.OrganisationID == orgID && c.MilestoneKey == milestoneKey {
			out := c
			return &out, nil
		}
	}
	return nil, engine.ErrNotFound
}

func (m *Store) InsertMilestoneConfig(_ context.Context, c *milestone.MilestoneConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[c.ID] = *c
	return nil
}

func (m *Store) UpdateMilestoneConfig(_ context.Context, c *milestone.MilestoneConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[c.ID]; !ok {
		return engine.ErrNotFound
	}
	m.configs[c.ID] = *c
	return nil
}

func (m *Store) DeleteMilestoneConfig(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[id]; !ok {
		return engine.ErrNotFound
	}
	delete(m.configs, id)
	return nil
}

func (m *Store) BulkInsertActions(_ context.Context, actions []milestone.MilestoneAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range actions {
		m.actions[a.ID] = a
	}
	return nil
}

func (m *Store) GetAction(_ context.Context, orgID, actionID string) (*milestone.MilestoneAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actions[actionID]
	if !ok {
		return nil, engine.ErrNotFound
	}
	c, ok := m.cases[a.CaseID]
	if !ok || c.OrganisationID != orgID {
		return nil, engine.ErrNotFound
	}
	out := a
	return &out, nil
}

func (m *Store) UpdateAction(_ context.Context, a *milestone.MilestoneAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actions[a.ID]; !ok {
		return engine.ErrNotFound
	}
	m.actions[a.ID] = *a
	return nil
}

func (m *Store) ListActionsByCase(_ context.Context, caseID string) ([]milestone.MilestoneAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []milestone.MilestoneAction
	for _, a := range m.actions {
		if a.CaseID == caseID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].MilestoneKey < out[j].MilestoneKey
	})
	return out, nil
}

// =============================================================================
// TRIGGER CONFIGS & ALERTS
// =============================================================================

func (m *Store) ListTriggerConfigs(_ context.Context, orgID string) ([]trigger.TriggerConfig, error) {
	return m.listTriggerConfigs(orgID, false)
}

func (m *Store) ListActiveTriggerConfigs(_ context.Context, orgID string) ([]trigger.TriggerConfig, error) {
	return m.listTriggerConfigs(orgID, true)
}

func (m *Store) listTriggerConfigs(orgID string, activeOnly bool) ([]trigger.TriggerConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []trigger.TriggerConfig
	for _, c := range m.triggerConfigs {
		if c.OrganisationID != orgID {
			continue
		}
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) GetTriggerConfig(_ context.Context, orgID, configID string) (*trigger.TriggerConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.triggerConfigs[configID]
	if !ok || c.OrganisationID != orgID {
		return nil, engine.ErrNotFound
	}
	out := c
	return &out, nil
}

func (m *Store) InsertTriggerConfig(_ context.Context, c *trigger.TriggerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggerConfigs[c.ID] = *c
	return nil
}

func (m *Store) UpdateTriggerConfig(_ context.Context, c *trigger.TriggerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.triggerConfigs[c.ID]; !ok {
		return engine.ErrNotFound
	}
	m.triggerConfigs[c.ID] = *c
	return nil
}

func (m *Store) AlertExists(_ context.Context, configID, caseID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.alertPairs[configID+"|"+caseID]
	return ok, nil
}

func (m *Store) InsertAlert(_ context.Context, a *trigger.TriggerAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pair := a.TriggerConfigID + "|" + a.SicknessCaseID
	if _, ok := m.alertPairs[pair]; ok {
		return engine.ErrAlertExists
	}
	m.alerts[a.ID] = *a
	m.alertPairs[pair] = a.ID
	return nil
}

func (m *Store) GetAlert(_ context.Context, orgID, alertID string) (*trigger.TriggerAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[alertID]
	if !ok || a.OrganisationID != orgID {
		return nil, engine.ErrNotFound
	}
	out := a
	return &out, nil
}

func (m *Store) ListAlerts(_ context.Context, orgID string, filter trigger.AlertFilter) ([]trigger.TriggerAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []trigger.TriggerAlert
	for _, a := range m.alerts {
		if a.OrganisationID != orgID {
			continue
		}
		if filter.EmployeeID != "" && a.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Acknowledged != nil && a.Acknowledged() != *filter.Acknowledged {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) StampAcknowledgement(_ context.Context, alertID, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[alertID]
	if !ok {
		return engine.ErrNotFound
	}
	a.AcknowledgedBy = userID
	a.AcknowledgedAt = &at
	m.alerts[alertID] = a
	return nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (m *Store) Record(_ context.Context, entry engine.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// AuditEntries returns a copy of the recorded audit trail, for tests.
func (m *Store) AuditEntries() []engine.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}
