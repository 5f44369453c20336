package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ozgurcan/studyr/internal/export"
	"github.com/ozgurcan/studyr/internal/model"
	"github.com/ozgurcan/studyr/internal/storage"
)

// Profiles returns the persisted profile index.
func (e *Engine) Profiles() model.ProfileIndex {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profiles
}

// ActiveProfile returns the profile whose data is currently loaded.
func (e *Engine) ActiveProfile() model.Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.profileLocked(e.profiles.ActiveID)
}

// CreateProfile adds a profile without switching to it. Its data key starts
// empty and materializes as defaults on first switch.
func (e *Engine) CreateProfile(name string) (model.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Profile{}, errors.New("create profile: empty name")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UnixMilli()
	p := model.Profile{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	e.profiles.Profiles = append(e.profiles.Profiles, p)
	return p, e.persistProfilesLocked()
}

// SwitchProfile makes another profile active and runs the load cycle against
// its data key.
func (e *Engine) SwitchProfile(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.profileLocked(id) == nil {
		return fmt.Errorf("switch profile: %s not found", id)
	}
	if e.profiles.ActiveID == id {
		return nil
	}
	e.profiles.ActiveID = id
	if err := e.persistProfilesLocked(); err != nil {
		return err
	}
	e.setDataCodecLocked(id)
	return e.reloadLocked()
}

func (e *Engine) RenameProfile(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("rename profile: empty name")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.profileLocked(id)
	if p == nil {
		return fmt.Errorf("rename profile: %s not found", id)
	}
	p.Name = name
	p.UpdatedAt = e.now().UnixMilli()
	return e.persistProfilesLocked()
}

// DeleteProfile removes a profile and its data key. The last remaining
// profile cannot be deleted; the app always has somewhere to store state.
func (e *Engine) DeleteProfile(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.profiles.Profiles) <= 1 {
		return errors.New("delete profile: cannot delete the last profile")
	}
	idx := -1
	for i, p := range e.profiles.Profiles {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("delete profile: %s not found", id)
	}

	e.profiles.Profiles = append(e.profiles.Profiles[:idx], e.profiles.Profiles[idx+1:]...)
	e.removeDataLocked(id)

	if e.profiles.ActiveID == id {
		e.profiles.ActiveID = e.profiles.Profiles[0].ID
		if err := e.persistProfilesLocked(); err != nil {
			return err
		}
		e.setDataCodecLocked(e.profiles.ActiveID)
		return e.reloadLocked()
	}
	return e.persistProfilesLocked()
}

// Export serializes the active profile and its full data as a JSON bundle.
func (e *Engine) Export() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return export.EncodeBundle(*e.profileLocked(e.profiles.ActiveID), e.data)
}

// Import replaces the active profile's data wholesale with an exported
// payload. The payload is re-stamped against the active profile; a payload
// that fails to decode changes nothing.
func (e *Engine) Import(payload []byte) error {
	_, raw, err := export.DecodeBundle(payload)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.data = e.reconcile(raw)
	if p := e.profileLocked(e.profiles.ActiveID); p != nil {
		p.UpdatedAt = e.now().UnixMilli()
		if err := e.persistProfilesLocked(); err != nil {
			return err
		}
	}
	return e.persistLocked()
}

// ensureProfileLocked loads the profile index, creating the default profile
// on first run and repairing a dangling active id.
func (e *Engine) ensureProfileLocked() error {
	e.profiles = storage.Load(e.profileCodec, func() model.ProfileIndex {
		return model.ProfileIndex{}
	})

	changed := false
	if len(e.profiles.Profiles) == 0 {
		now := e.now().UnixMilli()
		p := model.Profile{ID: uuid.NewString(), Name: "Default", CreatedAt: now, UpdatedAt: now}
		e.profiles.Profiles = []model.Profile{p}
		e.profiles.ActiveID = p.ID
		changed = true
	}
	if e.profileLocked(e.profiles.ActiveID) == nil {
		e.profiles.ActiveID = e.profiles.Profiles[0].ID
		changed = true
	}
	if !changed {
		return nil
	}
	return e.persistProfilesLocked()
}

// removeDataLocked deletes a profile's data key. The removal is our own
// write, so it is muted like a persist.
func (e *Engine) removeDataLocked(id string) {
	e.selfWrite.Store(true)
	defer e.selfWrite.Store(false)
	_ = e.codecFor(id).Remove()
}

func (e *Engine) persistProfilesLocked() error {
	e.selfWrite.Store(true)
	defer e.selfWrite.Store(false)
	return e.profileCodec.SaveRaw(e.profiles)
}

func (e *Engine) profileLocked(id string) *model.Profile {
	for i := range e.profiles.Profiles {
		if e.profiles.Profiles[i].ID == id {
			return &e.profiles.Profiles[i]
		}
	}
	return nil
}
