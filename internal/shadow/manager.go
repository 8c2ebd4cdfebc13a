package shadow

import (
	"slices"
	"strings"
	"sync"
	"time"

	dErrors "mirage/pkg/domainerrors"
)

// State is one session's private fake data. Every session starts from the
// same seed and diverges independently; ID counters are monotonic and never
// reused even after deletes.
type State struct {
	Users []User
	Ads   []Ad
	Home  Home
	Theme Theme

	nextUserID int64
	nextAdID   int64
}

// Manager owns all shadow states, keyed by session ID. A single mutex guards
// the map and the states behind it, which also makes each mutation atomic;
// cross-request ordering within one session is deliberately not guaranteed.
type Manager struct {
	mu     sync.Mutex
	states map[string]*State
}

func NewManager() *Manager {
	return &Manager{states: make(map[string]*State)}
}

// seedState builds the fixed starting data every session sees.
func seedState() *State {
	created := time.Now().Add(-90 * 24 * time.Hour)
	return &State{
		Users: []User{
			{ID: 1, Username: "root", Role: "superadmin", Active: true, CreatedAt: created},
			{ID: 2, Username: "jsmith", Role: "admin", Active: true, CreatedAt: created.Add(36 * time.Hour)},
			{ID: 3, Username: "mchen", Role: "editor", Active: true, CreatedAt: created.Add(12 * 24 * time.Hour)},
			{ID: 4, Username: "backup_svc", Role: "service", Active: false, CreatedAt: created.Add(20 * 24 * time.Hour)},
		},
		Ads: []Ad{
			{ID: 1, Slot: "homepage_banner", URL: "https://cdn.example.com/promo/spring.png", Enabled: true},
			{ID: 2, Slot: "sidebar_300x250", URL: "https://cdn.example.com/promo/app.png", Enabled: false},
		},
		Home:       Home{Title: "Welcome to the Portal"},
		Theme:      Theme{Current: DefaultTheme},
		nextUserID: 5,
		nextAdID:   3,
	}
}

// Ensure creates-or-returns the state for a session. Callers never see a nil
// state; a brand-new visitor gets the seed data.
func (m *Manager) Ensure(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(sessionID)
}

func (m *Manager) ensureLocked(sessionID string) *State {
	st, ok := m.states[sessionID]
	if !ok {
		st = seedState()
		m.states[sessionID] = st
	}
	return st
}

// Drop releases a session's state. Used when the session layer expires a
// visitor; losing fake data is part of the model.
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
}

// ListUsers returns a copy of the session's fake users.
func (m *Manager) ListUsers(sessionID string) []User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ensureLocked(sessionID).Users)
}

// AddUser appends a fake user. Username is required; role defaults to "user".
func (m *Manager) AddUser(sessionID, username, role string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, dErrors.New(dErrors.CodeInvalidInput, "username is required")
	}
	if role = strings.TrimSpace(role); role == "" {
		role = "user"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.ensureLocked(sessionID)
	user := User{
		ID:        st.nextUserID,
		Username:  username,
		Role:      role,
		Active:    true,
		CreatedAt: time.Now(),
	}
	st.nextUserID++
	st.Users = append(st.Users, user)
	return user, nil
}

// ToggleUser flips the active flag of the given fake user.
func (m *Manager) ToggleUser(sessionID string, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.ensureLocked(sessionID)
	for i := range st.Users {
		if st.Users[i].ID == id {
			st.Users[i].Active = !st.Users[i].Active
			return st.Users[i], nil
		}
	}
	return User{}, dErrors.New(dErrors.CodeNotFound, "user not found")
}

// DeleteUser removes a fake user by ID and reports whether it existed.
func (m *Manager) DeleteUser(sessionID string, id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.ensureLocked(sessionID)
	for i := range st.Users {
		if st.Users[i].ID == id {
			st.Users = slices.Delete(st.Users, i, i+1)
			return true
		}
	}
	return false
}

// ListAds returns a copy of the session's fake ads.
func (m *Manager) ListAds(sessionID string) []Ad {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ensureLocked(sessionID).Ads)
}

// AddAd appends a fake ad. Slot is required.
func (m *Manager) AddAd(sessionID, slot, url string) (Ad, error) {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return Ad{}, dErrors.New(dErrors.CodeInvalidInput, "slot is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.ensureLocked(sessionID)
	ad := Ad{ID: st.nextAdID, Slot: slot, URL: strings.TrimSpace(url), Enabled: true}
	st.nextAdID++
	st.Ads = append(st.Ads, ad)
	return ad, nil
}

// ToggleAd flips the enabled flag of the given fake ad.
func (m *Manager) ToggleAd(sessionID string, id int64) (Ad, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.ensureLocked(sessionID)
	for i := range st.Ads {
		if st.Ads[i].ID == id {
			st.Ads[i].Enabled = !st.Ads[i].Enabled
			return st.Ads[i], nil
		}
	}
	return Ad{}, dErrors.New(dErrors.CodeNotFound, "ad not found")
}

// DeleteAd removes a fake ad by ID and reports whether it existed.
func (m *Manager) DeleteAd(sessionID string, id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.ensureLocked(sessionID)
	for i := range st.Ads {
		if st.Ads[i].ID == id {
			st.Ads = slices.Delete(st.Ads, i, i+1)
			return true
		}
	}
	return false
}

// UpdateHome sets the fake site title.
func (m *Manager) UpdateHome(sessionID, title string) (Home, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Home{}, dErrors.New(dErrors.CodeInvalidInput, "title is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.ensureLocked(sessionID)
	st.Home.Title = title
	return st.Home, nil
}

// SetTheme applies a theme from the allow-list. Anything unrecognized
// silently falls back to the default so the decoy experience never errors.
func (m *Manager) SetTheme(sessionID, value string) Theme {
	value = strings.ToLower(strings.TrimSpace(value))
	if !slices.Contains(ValidThemes, value) {
		value = DefaultTheme
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.ensureLocked(sessionID)
	st.Theme.Current = value
	return st.Theme
}

// Theme returns the session's current theme.
func (m *Manager) Theme(sessionID string) Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(sessionID).Theme
}

// Home returns the session's current home config.
func (m *Manager) Home(sessionID string) Home {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(sessionID).Home
}

// RunQuery answers the fake database console. The submitted text is only
// pattern-matched for a recognizable shape and is never interpreted or
// executed; every result is canned.
func (m *Manager) RunQuery(query string) QueryResult {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "from users"):
		return QueryResult{
			Columns: []string{"id", "username", "role", "active"},
			Rows: [][]string{
				{"1", "root", "superadmin", "1"},
				{"2", "jsmith", "admin", "1"},
				{"3", "mchen", "editor", "1"},
				{"4", "backup_svc", "service", "0"},
			},
			RowCount: 4,
		}
	case strings.Contains(q, "from ads"):
		return QueryResult{
			Columns: []string{"id", "slot", "url", "enabled"},
			Rows: [][]string{
				{"1", "homepage_banner", "https://cdn.example.com/promo/spring.png", "1"},
				{"2", "sidebar_300x250", "https://cdn.example.com/promo/app.png", "0"},
			},
			RowCount: 2,
		}
	default:
		return QueryResult{Columns: []string{"result"}, Rows: [][]string{}, RowCount: 0}
	}
}
