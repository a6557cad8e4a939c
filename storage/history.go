package storage

import (
	"fmt"

	"github.com/itiky/optimistic-sync/model"
)

// Snapshot returns the latest snapshot version and data.
// Performed for new client connections in order to seed the local snapshot.
func (s *Session) Snapshot() (int, model.Snapshot) {
	s.RLock()
	defer s.RUnlock()

	return s.latestVersion(), s.snapshot.Clone()
}

// EventsSince returns the snapshot version and the ServerEvent objects a
// client has to apply on a local snapshot of the given version in order to
// upgrade it to the latest one.
func (s *Session) EventsSince(version int) (int, []model.ServerEvent) {
	s.RLock()
	defer s.RUnlock()

	startVersion := version + 1
	if !s.isVersionValid(startVersion) {
		return version, nil
	}

	events := make([]model.ServerEvent, 0)
	for i := startVersion; i <= s.latestVersion(); i++ {
		events = append(events, s.revisions[i].Events...)
	}

	return s.latestVersion(), events
}

// BuildSnapshot rebuilds the snapshot of the specified version by replaying
// the event history over the v0 base.
func (s *Session) BuildSnapshot(version int) (model.Snapshot, error) {
	s.RLock()
	defer s.RUnlock()

	if !s.isVersionValid(version) {
		return model.Snapshot{}, fmt.Errorf("%s: unknown (%d)", "version", version)
	}

	snapshot := s.base.Clone()
	for i := 1; i <= version; i++ {
		next, err := model.ApplyServerEvents(snapshot, s.revisions[i].Events...)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("replay revision %d: %w", i, err)
		}
		snapshot = next
	}

	return snapshot, nil
}

// Diff returns, under one consistent read, the latest version, the events
// since the given version and the snapshots at both versions (for encoding
// the transition).
func (s *Session) Diff(version int) (int, []model.ServerEvent, model.Snapshot, model.Snapshot, error) {
	s.RLock()
	defer s.RUnlock()

	if !s.isVersionValid(version) {
		return 0, nil, model.Snapshot{}, model.Snapshot{}, fmt.Errorf("%s: unknown (%d)", "version", version)
	}

	latest := s.latestVersion()
	if version == latest {
		return latest, nil, s.snapshot.Clone(), s.snapshot.Clone(), nil
	}

	events := make([]model.ServerEvent, 0)
	from := s.base.Clone()
	for i := 1; i <= latest; i++ {
		if i <= version {
			next, err := model.ApplyServerEvents(from, s.revisions[i].Events...)
			if err != nil {
				return 0, nil, model.Snapshot{}, model.Snapshot{}, fmt.Errorf("replay revision %d: %w", i, err)
			}
			from = next
			continue
		}
		events = append(events, s.revisions[i].Events...)
	}

	return latest, events, from, s.snapshot.Clone(), nil
}

// isVersionValid checks if the snapshot version exists (lock held).
func (s *Session) isVersionValid(version int) bool {
	return version >= 0 && version < len(s.revisions)
}
