package service

import "sync"

// TimetableMutex serializes mutating operations per timetable so that lock
// edits, leave application and regeneration never interleave on the same
// timetable while leaving unrelated timetables untouched.
type TimetableMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTimetableMutex() *TimetableMutex {
	return &TimetableMutex{locks: map[string]*sync.Mutex{}}
}

// Lock acquires the mutex for one timetable, creating it on first use, and
// returns the unlock function.
func (m *TimetableMutex) Lock(timetableID string) func() {
	m.mu.Lock()
	lock, ok := m.locks[timetableID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[timetableID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
